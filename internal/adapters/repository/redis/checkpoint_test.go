package redis

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devbrain/devbrain/internal/core/checkpoint"
	"github.com/devbrain/devbrain/internal/core/errx"
	"github.com/devbrain/devbrain/internal/core/state"
)

func newSaver(t *testing.T, ttl time.Duration) (*CheckpointSaver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCheckpointSaver(rdb, ttl, nil), mr
}

func TestCheckpointSaver_RoundTrip(t *testing.T) {
	ctx := context.Background()
	saver, mr := newSaver(t, 0)

	_, err := saver.Load(ctx, "thread-1")
	require.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)

	st := state.Merge(state.Zero(), state.Partial{Messages: []state.Message{state.UserMessage("hi")}})
	require.NoError(t, saver.Save(ctx, checkpoint.New("thread-1", st)))
	assert.True(t, mr.Exists("devbrain:checkpoint:thread-1"))

	loaded, err := saver.Load(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, st.Messages, loaded.State.Messages)

	require.NoError(t, saver.Delete(ctx, "thread-1"))
	_, err = saver.Load(ctx, "thread-1")
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
}

func TestCheckpointSaver_TTLRefreshedOnSave(t *testing.T) {
	ctx := context.Background()
	saver, mr := newSaver(t, time.Minute)
	saver.WithPrefix("test")

	require.NoError(t, saver.Save(ctx, checkpoint.New("s", state.Zero())))
	assert.Equal(t, time.Minute, mr.TTL("test:checkpoint:s"))

	mr.FastForward(30 * time.Second)
	require.NoError(t, saver.Save(ctx, checkpoint.New("s", state.Zero())))
	assert.Equal(t, time.Minute, mr.TTL("test:checkpoint:s"))

	mr.FastForward(2 * time.Minute)
	_, err := saver.Load(ctx, "s")
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
}

func TestCheckpointSaver_Outage(t *testing.T) {
	ctx := context.Background()
	saver, mr := newSaver(t, 0)
	mr.Close()

	err := saver.Save(ctx, checkpoint.New("s", state.Zero()))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))

	_, err = saver.Load(ctx, "s")
	require.Error(t, err)
	assert.NotErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
}
