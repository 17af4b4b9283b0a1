package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devbrain/devbrain/internal/adapters/repository/memory"
	"github.com/devbrain/devbrain/internal/core/checkpoint"
	"github.com/devbrain/devbrain/internal/core/state"
)

// failingSaver simulates a store outage.
type failingSaver struct{ err error }

func (f failingSaver) Save(context.Context, *checkpoint.Checkpoint) error { return f.err }
func (f failingSaver) Load(context.Context, string) (*checkpoint.Checkpoint, error) {
	return nil, f.err
}
func (f failingSaver) Delete(context.Context, string) error { return f.err }

func TestCheckpointService_LoadUnseenSession(t *testing.T) {
	svc := NewCheckpointService(memory.Default())

	st, err := svc.Load(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, state.Zero(), st)
}

func TestCheckpointService_LoadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewCheckpointService(memory.Default())

	st := state.Merge(state.Zero(), state.Partial{Messages: []state.Message{state.UserMessage("q")}})
	require.NoError(t, svc.Commit(ctx, "s", st))

	first, err := svc.Load(ctx, "s")
	require.NoError(t, err)
	second, err := svc.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, st.Messages, first.Messages)
}

func TestCheckpointService_CommitDoesNotAliasCaller(t *testing.T) {
	ctx := context.Background()
	svc := NewCheckpointService(memory.Default())

	st := state.Merge(state.Zero(), state.Partial{Messages: []state.Message{state.UserMessage("q")}})
	require.NoError(t, svc.Commit(ctx, "s", st))
	st.Messages[0].Content = "mutated after commit"

	loaded, err := svc.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "q", loaded.Messages[0].Content)
}

func TestCheckpointService_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	svc := NewCheckpointService(failingSaver{err: errors.New("connection refused")})

	_, err := svc.Load(ctx, "s")
	assert.ErrorIs(t, err, checkpoint.ErrStoreUnavailable)

	err = svc.Commit(ctx, "s", state.Zero())
	assert.ErrorIs(t, err, checkpoint.ErrStoreUnavailable)

	err = svc.Reset(ctx, "s")
	assert.ErrorIs(t, err, checkpoint.ErrStoreUnavailable)
}

func TestCheckpointService_InvalidSessionID(t *testing.T) {
	ctx := context.Background()
	svc := NewCheckpointService(memory.Default())

	_, err := svc.Load(ctx, "")
	assert.ErrorIs(t, err, checkpoint.ErrInvalidSessionID)
	assert.ErrorIs(t, svc.Commit(ctx, "bad id", state.Zero()), checkpoint.ErrInvalidSessionID)
	assert.ErrorIs(t, svc.Reset(ctx, "bad id"), checkpoint.ErrInvalidSessionID)
}

func TestCheckpointService_Reset(t *testing.T) {
	ctx := context.Background()
	svc := NewCheckpointService(memory.Default())
	st := state.Merge(state.Zero(), state.Partial{Messages: []state.Message{state.UserMessage("q")}})
	require.NoError(t, svc.Commit(ctx, "s", st))

	require.NoError(t, svc.Reset(ctx, "s"))
	_, err := svc.Get(ctx, "s")
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
	loaded, err := svc.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, state.Zero(), loaded)
}
