package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/devbrain/devbrain/internal/core/checkpoint"
	"github.com/devbrain/devbrain/internal/core/state"
	"github.com/devbrain/devbrain/internal/infrastructure/metrics"
	logx "github.com/devbrain/devbrain/pkg/logger"
)

// CheckpointService is the engine's view of the checkpoint store.
// PRINCIPLES:
// - SRP: load, commit and reset session state
// - DIP: Depends on checkpoint.Saver abstraction
//
// Every backend failure other than "not found" surfaces as
// checkpoint.ErrStoreUnavailable so callers can classify it uniformly.
type CheckpointService struct {
	saver checkpoint.Saver
}

// NewCheckpointService creates a new checkpoint service
func NewCheckpointService(saver checkpoint.Saver) *CheckpointService {
	return &CheckpointService{saver: saver}
}

// Load returns the committed state of a session, or the zero state if the
// session has never been committed.
func (s *CheckpointService) Load(ctx context.Context, sessionID string) (state.State, error) {
	cp, err := s.Get(ctx, sessionID)
	if errors.Is(err, checkpoint.ErrCheckpointNotFound) {
		return state.Zero(), nil
	}
	if err != nil {
		return state.State{}, err
	}
	return cp.State.Clone(), nil
}

// Get returns the stored checkpoint record, including its timestamp.
func (s *CheckpointService) Get(ctx context.Context, sessionID string) (*checkpoint.Checkpoint, error) {
	if !checkpoint.ValidSessionID(sessionID) {
		return nil, checkpoint.ErrInvalidSessionID
	}
	cp, err := s.saver.Load(ctx, sessionID)
	switch {
	case err == nil:
		return cp, nil
	case errors.Is(err, checkpoint.ErrCheckpointNotFound):
		return nil, checkpoint.ErrCheckpointNotFound
	default:
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("checkpoint load failed")
		return nil, fmt.Errorf("%w: load %s: %w", checkpoint.ErrStoreUnavailable, sessionID, err)
	}
}

// Commit atomically replaces the session checkpoint with st.
func (s *CheckpointService) Commit(ctx context.Context, sessionID string, st state.State) error {
	cp := checkpoint.New(sessionID, st)
	if err := cp.Validate(); err != nil {
		return err
	}
	if err := s.saver.Save(ctx, cp); err != nil {
		metrics.CommitFailed()
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("checkpoint commit failed")
		return fmt.Errorf("%w: commit %s: %w", checkpoint.ErrStoreUnavailable, sessionID, err)
	}
	metrics.CommitSucceeded()
	return nil
}

// Reset deletes the session checkpoint; the next Load yields the zero state.
func (s *CheckpointService) Reset(ctx context.Context, sessionID string) error {
	if !checkpoint.ValidSessionID(sessionID) {
		return checkpoint.ErrInvalidSessionID
	}
	if err := s.saver.Delete(ctx, sessionID); err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("checkpoint delete failed")
		return fmt.Errorf("%w: delete %s: %w", checkpoint.ErrStoreUnavailable, sessionID, err)
	}
	return nil
}
