// Package redis provides a checkpoint.Saver that keeps one key per session in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devbrain/devbrain/internal/core/checkpoint"
	"github.com/devbrain/devbrain/internal/core/errx"
	logx "github.com/devbrain/devbrain/pkg/logger"
	"github.com/devbrain/devbrain/pkg/serialization"
)

// CheckpointSaver stores each checkpoint as a single value so SET replaces it atomically.
type CheckpointSaver struct {
	rdb        redis.Cmdable
	ttl        time.Duration
	prefix     string
	serializer *serialization.Serializer
}

// NewCheckpointSaver creates a Redis saver. A zero ttl keeps keys forever;
// otherwise every Save refreshes the expiry.
func NewCheckpointSaver(rdb redis.Cmdable, ttl time.Duration, serializer *serialization.Serializer) *CheckpointSaver {
	if serializer == nil {
		serializer = serialization.Default()
	}
	return &CheckpointSaver{rdb: rdb, ttl: ttl, prefix: "devbrain", serializer: serializer}
}

// WithPrefix namespaces keys, e.g. per deployment.
func (r *CheckpointSaver) WithPrefix(prefix string) *CheckpointSaver {
	if prefix != "" {
		r.prefix = prefix
	}
	return r
}

func (r *CheckpointSaver) key(sessionID string) string {
	return fmt.Sprintf("%s:checkpoint:%s", r.prefix, sessionID)
}

func (r *CheckpointSaver) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if cp == nil {
		return checkpoint.ErrInvalidSessionID
	}
	if err := cp.Validate(); err != nil {
		return err
	}
	b, err := r.serializer.Serialize(cp)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", cp.SessionID).Msg("failed to serialize checkpoint")
		return fmt.Errorf("serialize checkpoint: %w", err)
	}
	key := r.key(cp.SessionID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to write checkpoint to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *CheckpointSaver) Load(ctx context.Context, sessionID string) (*checkpoint.Checkpoint, error) {
	if sessionID == "" {
		return nil, checkpoint.ErrInvalidSessionID
	}
	key := r.key(sessionID)
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, checkpoint.ErrCheckpointNotFound
	}
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to load checkpoint from redis")
		return nil, errx.WrapRedis(err)
	}
	var cp checkpoint.Checkpoint
	if err := r.serializer.Deserialize(b, &cp); err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to deserialize checkpoint")
		return nil, fmt.Errorf("deserialize checkpoint: %w", err)
	}
	return &cp, nil
}

func (r *CheckpointSaver) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return checkpoint.ErrInvalidSessionID
	}
	key := r.key(sessionID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete checkpoint")
		return errx.WrapRedis(err)
	}
	return nil
}
