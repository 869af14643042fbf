package broadcast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/park285/eternal-chess/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	SnapshotKey   = "eternal:snapshot"
	EventsChannel = "eternal:events"

	redisTimeout = 2 * time.Second
)

// RedisMirror keeps the latest envelope under SnapshotKey and publishes every
// event on EventsChannel for out-of-process viewers.
type RedisMirror struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisMirror(rdb *redis.Client, logger *zap.Logger) *RedisMirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisMirror{rdb: rdb, logger: logger.Named("redis_mirror")}
}

func (m *RedisMirror) Emit(ctx context.Context, event string, snap domain.Snapshot) {
	msg, err := Encode(event, snap)
	if err != nil {
		m.logger.Warn("redis_encode_failed", zap.String("event", event), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	pipe := m.rdb.TxPipeline()
	pipe.Set(ctx, SnapshotKey, msg, 0)
	pipe.Publish(ctx, EventsChannel, msg)
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("redis_mirror_failed", zap.String("event", event), zap.Error(err))
	}
}

func (m *RedisMirror) Close() error {
	if m == nil || m.rdb == nil {
		return nil
	}
	return m.rdb.Close()
}

// OpenRedis parses a redis:// or rediss:// URL and pings the server.
func OpenRedis(ctx context.Context, raw string) (*redis.Client, error) {
	opts, err := parseRedisURL(raw)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// parseRedisURL accepts redis:// and rediss:// URLs. The port defaults to
// 6379, rediss enables TLS and the path selects the database.
func parseRedisURL(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}
