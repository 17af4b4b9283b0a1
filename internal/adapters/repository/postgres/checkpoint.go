// Package postgres provides a checkpoint.Saver backed by PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devbrain/devbrain/internal/core/checkpoint"
	"github.com/devbrain/devbrain/pkg/serialization"
)

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewPool parses dsn, applies pool settings and verifies connectivity.
func NewPool(ctx context.Context, dsn string, pc PoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// CheckpointSaver implements checkpoint.Saver interface for PostgreSQL
type CheckpointSaver struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
}

// NewCheckpointSaver creates a new PostgreSQL checkpoint saver
func NewCheckpointSaver(pool *pgxpool.Pool, serializer *serialization.Serializer) *CheckpointSaver {
	if serializer == nil {
		serializer = serialization.Default()
	}
	return &CheckpointSaver{
		pool:       pool,
		serializer: serializer,
		tableName:  "session_checkpoints",
	}
}

// CreateTables creates the checkpoint table if needed.
func (s *CheckpointSaver) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			session_id TEXT PRIMARY KEY,
			state BYTEA NOT NULL,
			query_type TEXT NOT NULL,
			message_count INTEGER NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, s.tableName)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Save upserts the session row; a single statement keeps replacement atomic.
func (s *CheckpointSaver) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if cp == nil {
		return checkpoint.ErrInvalidSessionID
	}
	if err := cp.Validate(); err != nil {
		return err
	}
	data, err := s.serializer.Serialize(cp.State)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint state: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (session_id, state, query_type, message_count, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET
			state = EXCLUDED.state,
			query_type = EXCLUDED.query_type,
			message_count = EXCLUDED.message_count,
			updated_at = EXCLUDED.updated_at`, s.tableName)
	_, err = s.pool.Exec(ctx, query,
		cp.SessionID, data, string(cp.State.QueryType), len(cp.State.Messages), cp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load retrieves a session's checkpoint
func (s *CheckpointSaver) Load(ctx context.Context, sessionID string) (*checkpoint.Checkpoint, error) {
	if sessionID == "" {
		return nil, checkpoint.ErrInvalidSessionID
	}
	query := fmt.Sprintf(`SELECT state, updated_at FROM %s WHERE session_id = $1`, s.tableName)

	cp := checkpoint.Checkpoint{SessionID: sessionID}
	var data []byte
	err := s.pool.QueryRow(ctx, query, sessionID).Scan(&data, &cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, checkpoint.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := s.serializer.Deserialize(data, &cp.State); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint state: %w", err)
	}
	return &cp, nil
}

// Delete removes a session's checkpoint; unknown sessions are ignored.
func (s *CheckpointSaver) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return checkpoint.ErrInvalidSessionID
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE session_id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *CheckpointSaver) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
