// Package cli wires the ramal binary: it turns a config.Config into stores,
// metrics and a ready *ramal.Bot.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aretw0/ramal"
	"github.com/aretw0/ramal/internal/config"
	"github.com/aretw0/ramal/pkg/adapters/file"
	"github.com/aretw0/ramal/pkg/adapters/memory"
	"github.com/aretw0/ramal/pkg/adapters/redis"
	"github.com/aretw0/ramal/pkg/adapters/sqlite"
	"github.com/aretw0/ramal/pkg/observability"
	"github.com/aretw0/ramal/pkg/persistence/middleware"
	"github.com/aretw0/ramal/pkg/ports"
)

// EntityKeyPrefix is where the CRM writes debtor documents in Redis.
const EntityKeyPrefix = "ramal:entity:"

// EntityPathPrefix is the template root entity documents answer to,
// as in {{debtor.name}}.
const EntityPathPrefix = "debtor"

// Runtime holds everything built from a Config. Close releases it.
type Runtime struct {
	Config   config.Config
	Logger   *slog.Logger
	Graphs   ports.GraphStore
	Sessions ports.SessionStore
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	locker   ports.DistributedLocker
	resolver ports.EntityResolver
	closers  []func() error
}

// Build creates the stores selected by cfg. Nothing is started.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (rt *Runtime, err error) {
	rt = &Runtime{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	if rt.Graphs, err = rt.buildGraphs(ctx); err != nil {
		return nil, err
	}
	if rt.Sessions, err = rt.buildSessions(); err != nil {
		return nil, err
	}

	rt.Registry = prometheus.NewRegistry()
	rt.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if rt.Metrics, err = observability.NewMetrics(rt.Registry); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return rt, nil
}

func (rt *Runtime) buildGraphs(ctx context.Context) (ports.GraphStore, error) {
	switch rt.Config.Flows.Source {
	case config.SourceSQLite:
		db, err := sqlite.Open(rt.Config.Flows.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("open flow database: %w", err)
		}
		rt.closers = append(rt.closers, db.Close)
		return newSQLiteGraphs(ctx, db)
	default:
		return file.NewGraphStore(rt.Config.Flows.Dir, rt.Logger), nil
	}
}

func newSQLiteGraphs(ctx context.Context, db *sql.DB) (*sqlite.GraphStore, error) {
	store, err := sqlite.NewGraphStore(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("flow database: %w", err)
	}
	return store, nil
}

func (rt *Runtime) buildSessions() (ports.SessionStore, error) {
	var store ports.SessionStore
	switch rt.Config.Sessions.Backend {
	case config.BackendFile:
		store = file.NewSessionStore(rt.Config.Sessions.Dir)
	case config.BackendRedis:
		rc := rt.Config.Redis
		var opts []redis.Option
		if rc.Prefix != "" {
			opts = append(opts, redis.WithPrefix(rc.Prefix))
		}
		if rc.TTL > 0 {
			opts = append(opts, redis.WithTTL(rc.TTL))
		}
		rs := redis.New(rc.Addr, rc.Password, rc.DB, opts...)
		rt.closers = append(rt.closers, rs.Close)
		rt.locker = redis.NewLocker(rs.Client(), "ramal:")
		rt.resolver = redis.NewEntityResolver(rs.Client(), EntityKeyPrefix, EntityPathPrefix)
		store = rs
	default:
		store = memory.NewSessionStore()
	}

	enc, err := encryption(rt.Config.Encryption)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		store = middleware.Chain(store, enc)
	}
	return store, nil
}

func encryption(cfg config.EncryptionConfig) (middleware.Middleware, error) {
	if cfg.Key == "" {
		return nil, nil
	}
	active, err := middleware.ParseKey(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	mc := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("fallback key %d: %w", i, err)
		}
		mc.FallbackKeys = append(mc.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(mc)
}

// BotOptions translates the config into bot options. extra is applied last
// so callers can swap the channel or lifecycle.
func (rt *Runtime) BotOptions(extra ...ramal.Option) []ramal.Option {
	cfg := rt.Config
	opts := []ramal.Option{
		ramal.WithSessionStore(rt.Sessions),
		ramal.WithLogger(rt.Logger),
		ramal.WithLifecycleHooks(observability.LogHooks(rt.Logger)),
		ramal.WithMetrics(rt.Metrics),
	}
	if rt.locker != nil {
		opts = append(opts, ramal.WithLocker(rt.locker))
		if cfg.Redis.LockTTL > 0 {
			opts = append(opts, ramal.WithLockTTL(cfg.Redis.LockTTL))
		}
	}
	if rt.resolver != nil {
		opts = append(opts, ramal.WithResolver(rt.resolver))
	}
	if cfg.Engine.MaxSteps > 0 {
		opts = append(opts, ramal.WithMaxSteps(cfg.Engine.MaxSteps))
	}
	if cfg.Handoff.MaxBotTurns > 0 {
		opts = append(opts, ramal.WithMaxBotTurns(cfg.Handoff.MaxBotTurns))
	}
	if cfg.Handoff.Message != "" {
		opts = append(opts, ramal.WithHandoffMessage(cfg.Handoff.Message))
	}
	if cfg.Flows.CacheTTL > 0 {
		opts = append(opts, ramal.WithCatalogTTL(cfg.Flows.CacheTTL))
	}
	return append(opts, extra...)
}

// NewBot builds a bot over the runtime's stores.
func (rt *Runtime) NewBot(extra ...ramal.Option) (*ramal.Bot, error) {
	return ramal.New(rt.Graphs, rt.BotOptions(extra...)...)
}

// Close releases database and Redis connections.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
