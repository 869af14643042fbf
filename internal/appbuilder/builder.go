package appbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/eternal-chess/internal/autoplay"
	"github.com/park285/eternal-chess/internal/broadcast"
	"github.com/park285/eternal-chess/internal/config"
	"github.com/park285/eternal-chess/internal/httpapi"
	"github.com/park285/eternal-chess/internal/msgcat"
	"github.com/park285/eternal-chess/internal/store"
	"go.uber.org/zap"
)

type Deps struct {
	Store     store.Store
	Table     *autoplay.Table
	Snapshots *autoplay.Snapshotter
	Scheduler *autoplay.Scheduler
	Hub       *broadcast.Hub
	Mirror    *broadcast.RedisMirror // nil without REDIS_URL
	API       *httpapi.Server
}

// New opens storage (and Redis when configured) and wires the scheduler,
// broadcast hub and HTTP views around one shared table.
func New(ctx context.Context, cfg *config.AppConfig, source autoplay.MoveSource, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if source == nil {
		source = autoplay.NewUniformSource(0)
	}

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var mirror *broadcast.RedisMirror
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rdb, err := broadcast.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		mirror = broadcast.NewRedisMirror(rdb, logger)
	}

	table := autoplay.NewTable()
	snaps := autoplay.NewSnapshotter(table, st, cfg.StoreTimeout)
	hub := broadcast.NewHub(snaps, logger, broadcast.WithOriginPatterns(cfg.AllowedOrigins))

	var emitter broadcast.Emitter = hub
	if mirror != nil {
		emitter = broadcast.Fanout{hub, mirror}
	}

	sched := autoplay.NewScheduler(table, st, snaps, emitter, source, catalog, logger, autoplay.Options{
		MoveInterval:  cfg.MoveInterval,
		SleepInterval: cfg.SleepInterval,
		RetryMax:      cfg.PersistRetryMax,
		RetryBase:     cfg.PersistRetryBase,
		StoreTimeout:  cfg.StoreTimeout,
		Site:          cfg.PGNSite,
	})

	api := httpapi.New(httpapi.Deps{
		Table:     table,
		Snapshots: snaps,
		Store:     st,
		Stream:    hub,
		Catalog:   catalog,
		Logger:    logger,
		Timeout:   cfg.StoreTimeout,
	})

	return &Deps{
		Store:     st,
		Table:     table,
		Snapshots: snaps,
		Scheduler: sched,
		Hub:       hub,
		Mirror:    mirror,
		API:       api,
	}, nil
}

// Close disconnects viewers, then releases Redis and storage.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.Hub != nil {
		d.Hub.Close()
	}
	if d.Mirror != nil {
		if err := d.Mirror.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
