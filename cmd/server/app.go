package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/config"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/logger"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/metrics"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/redis"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/catalog"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/service"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/store"
)

// app carries what every subcommand needs after configuration is loaded.
type app struct {
	cfg      config.Server
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	catalog  *catalog.Catalog
}

func newApp(cfg config.Server) *app {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &app{
		cfg:      cfg,
		logger:   logger.New(cfg.LogFormat, cfg.LogLevel),
		registry: registry,
		metrics:  metrics.NewWithRegistry(registry),
		catalog:  catalog.Africa(),
	}
}

// backend is an opened store plus its lifecycle hooks.
type backend struct {
	store.Store
	close  func() error
	health func(ctx context.Context) error
	// watch is set for drivers whose document can change behind our back.
	watch func(ctx context.Context, onChange func()) error
}

func (a *app) openStore(ctx context.Context) (*backend, error) {
	opts := []store.Option{
		store.WithLogger(a.logger),
		store.WithMetrics(a.metrics),
		store.WithMaxRetries(a.cfg.Store.MaxRetries),
	}
	noop := func() error { return nil }
	healthy := func(context.Context) error { return nil }

	switch a.cfg.Store.Driver {
	case config.DriverMemory:
		return &backend{Store: store.NewInMemory(opts...), close: noop, health: healthy}, nil

	case config.DriverFile:
		fs, err := store.NewFileStore(a.cfg.Store.Path, opts...)
		if err != nil {
			return nil, err
		}
		b := &backend{Store: fs, close: noop, health: healthy}
		if a.cfg.Store.Watch {
			b.watch = fs.Watch
		}
		return b, nil

	case config.DriverRedis:
		client, err := redis.New(ctx, a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.logger.InfoContext(ctx, "connected to redis", "target", client.Target())
		return &backend{
			Store:  store.NewRedisStore(client.Client, a.cfg.Store.Key, opts...),
			close:  client.Close,
			health: client.Health,
		}, nil

	case config.DriverPostgres:
		ps, err := store.OpenPostgres(ctx, a.cfg.Store.PostgresURL, a.cfg.Store.Key, opts...)
		if err != nil {
			return nil, err
		}
		return &backend{Store: ps, close: ps.Close, health: ps.Ping}, nil

	case config.DriverSQLite:
		ss, err := store.OpenSQLite(ctx, a.cfg.Store.SQLitePath, a.cfg.Store.Key, opts...)
		if err != nil {
			return nil, err
		}
		return &backend{Store: ss, close: ss.Close, health: ss.Ping}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

// newService builds the registration service on b, loading the seed file
// when one is configured.
func (a *app) newService(b *backend) (*service.Service, error) {
	opts := []service.Option{
		service.WithLogger(a.logger),
		service.WithMetrics(a.metrics),
		service.WithCatalog(a.catalog, a.cfg.Dashboard.StrictCountries),
		service.WithLimits(a.cfg.Dashboard.TopN, a.cfg.Dashboard.RecentN),
	}
	if a.cfg.Store.SeedFile != "" {
		seed, err := service.LoadSeedFile(a.cfg.Store.SeedFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithSeed(seed))
	}
	return service.New(b, opts...)
}

// withBackend opens the store, runs fn and closes the store.
func (a *app) withBackend(ctx context.Context, fn func(ctx context.Context, b *backend, svc *service.Service) error) error {
	b, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("open %s store: %w", a.cfg.Store.Driver, err)
	}
	defer func() {
		if err := b.close(); err != nil {
			a.logger.WarnContext(ctx, "failed to close store", "error", err.Error())
		}
	}()

	svc, err := a.newService(b)
	if err != nil {
		return err
	}
	return fn(ctx, b, svc)
}
