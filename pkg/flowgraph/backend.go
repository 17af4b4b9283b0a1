package flowgraph

import (
	"context"
	"fmt"

	"github.com/devbrain/devbrain/internal/adapters/repository/memory"
	"github.com/devbrain/devbrain/internal/adapters/repository/postgres"
	redisrepo "github.com/devbrain/devbrain/internal/adapters/repository/redis"
	"github.com/devbrain/devbrain/internal/adapters/repository/sqlite"
	"github.com/devbrain/devbrain/internal/config"
	"github.com/devbrain/devbrain/internal/core/checkpoint"
	logx "github.com/devbrain/devbrain/pkg/logger"
	"github.com/devbrain/devbrain/pkg/serialization"
)

// OpenSaver builds the checkpoint backend selected by cfg.Checkpoint.Backend.
// The returned func releases its connections.
func OpenSaver(ctx context.Context, cfg *config.Config) (checkpoint.Saver, func(), error) {
	cc := cfg.Checkpoint
	var key []byte
	if cc.EncryptionKey != "" {
		key = []byte(cc.EncryptionKey)
	}
	ser, err := serialization.FromNames(cc.Codec, cc.Compression, key)
	if err != nil {
		return nil, nil, fmt.Errorf("checkpoint serializer: %w", err)
	}

	switch cc.Backend {
	case config.BackendMemory, "":
		return memory.New(memory.Config{TTL: cc.TTL, Serializer: ser}), func() {}, nil

	case config.BackendRedis:
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		saver := redisrepo.NewCheckpointSaver(rdb, cc.TTL, ser).WithPrefix(cc.KeyPrefix)
		return saver, func() { _ = rdb.Close() }, nil

	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN, postgres.PoolConfig{
			MaxConns:        cfg.Postgres.MaxConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		saver := postgres.NewCheckpointSaver(pool, ser)
		if err := saver.CreateTables(ctx); err != nil {
			saver.Close()
			return nil, nil, err
		}
		return saver, saver.Close, nil

	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		saver := sqlite.NewCheckpointSaver(db, ser)
		if err := saver.CreateTables(ctx); err != nil {
			_ = saver.Close()
			return nil, nil, err
		}
		return saver, func() {
			if err := saver.Close(); err != nil {
				logx.Warn().Err(err).Msg("close sqlite")
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown checkpoint backend %q", cc.Backend)
}
