// Package memory provides an in-process checkpoint.Saver backed by go-cache.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/devbrain/devbrain/internal/core/checkpoint"
	"github.com/devbrain/devbrain/pkg/serialization"
)

// Config holds configuration for Saver
type Config struct {
	TTL             time.Duration // zero keeps checkpoints for the process lifetime
	CleanupInterval time.Duration
	Serializer      *serialization.Serializer
}

// Saver implements checkpoint.Saver in process memory.
// PRINCIPLES:
// - KISS: one cache entry per session
// - DIP: Implements checkpoint.Saver interface
//
// Entries hold serialized bytes, never live structs, so a loaded checkpoint
// can be mutated freely and a Save replaces the previous value in one Set.
type Saver struct {
	store      *cache.Cache
	ttl        time.Duration
	serializer *serialization.Serializer
}

// New creates an in-memory saver.
func New(cfg Config) *Saver {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.Serializer == nil {
		cfg.Serializer = serialization.Default()
	}
	return &Saver{
		store:      cache.New(ttl, cfg.CleanupInterval),
		ttl:        ttl,
		serializer: cfg.Serializer,
	}
}

// Default returns a saver without expiry using msgpack+zstd.
func Default() *Saver {
	return New(Config{})
}

func key(sessionID string) string {
	return "checkpoint:" + sessionID
}

// Save stores cp, replacing any previous checkpoint of the session.
func (s *Saver) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("checkpoint validation failed: %w", err)
	}
	data, err := s.serializer.Serialize(cp)
	if err != nil {
		return fmt.Errorf("checkpoint serialization failed: %w", err)
	}
	s.store.Set(key(cp.SessionID), data, s.ttl)
	return nil
}

// Load returns the session's checkpoint or checkpoint.ErrCheckpointNotFound.
func (s *Saver) Load(ctx context.Context, sessionID string) (*checkpoint.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := s.store.Get(key(sessionID))
	if !ok {
		return nil, checkpoint.ErrCheckpointNotFound
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid checkpoint entry type %T", v)
	}
	var cp checkpoint.Checkpoint
	if err := s.serializer.Deserialize(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint deserialization failed: %w", err)
	}
	return &cp, nil
}

// Delete removes the session's checkpoint. Deleting an unknown session is a no-op.
func (s *Saver) Delete(_ context.Context, sessionID string) error {
	s.store.Delete(key(sessionID))
	return nil
}

// Count returns the number of live checkpoints.
func (s *Saver) Count() int {
	return s.store.ItemCount()
}
