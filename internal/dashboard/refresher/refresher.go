// Package refresher re-runs the aggregation on a fixed schedule and caches
// the latest dashboard view.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/dashboard/view"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/metrics"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/catalog"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/service"
)

// DefaultInterval is the dashboard refresh period.
const DefaultInterval = 10 * time.Second

// ErrAlreadyRunning is returned when Run is called twice concurrently.
var ErrAlreadyRunning = errors.New("refresher already running")

// Source produces the aggregated snapshot a refresh renders.
type Source interface {
	Snapshot(ctx context.Context) (service.Snapshot, error)
}

// Refresher owns the cached view. Refresh, Trigger and Current are safe for
// concurrent use.
type Refresher struct {
	source   Source
	catalog  *catalog.Catalog
	location *time.Location
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	current atomic.Pointer[view.ViewModel]
	trigger chan struct{}
	running atomic.Bool

	// mu serializes refresh runs so a slow snapshot never races a newer one
	// into the cache.
	mu sync.Mutex
}

type Option func(*Refresher)

func WithInterval(d time.Duration) Option {
	return func(r *Refresher) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(r *Refresher) {
		if loc != nil {
			r.location = loc
		}
	}
}

func WithCatalog(c *catalog.Catalog) Option {
	return func(r *Refresher) {
		r.catalog = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Refresher) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Refresher) {
		r.metrics = m
	}
}

// New constructs a Refresher. Nothing runs until Run is called.
func New(source Source, opts ...Option) (*Refresher, error) {
	if source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	r := &Refresher{
		source:   source,
		catalog:  catalog.Africa(),
		location: time.UTC,
		interval: DefaultInterval,
		logger:   slog.New(slog.DiscardHandler),
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Interval returns the configured refresh period.
func (r *Refresher) Interval() time.Duration {
	return r.interval
}

// Current returns the most recently cached view. ok is false until the first
// successful refresh.
func (r *Refresher) Current() (view.ViewModel, bool) {
	vm := r.current.Load()
	if vm == nil {
		return view.ViewModel{}, false
	}
	return *vm, true
}

// Trigger asks the running loop for an immediate refresh. It never blocks;
// requests made while one is already pending are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Refresh re-aggregates now and replaces the cached view. On failure the
// previous view stays cached.
func (r *Refresher) Refresh(ctx context.Context) (view.ViewModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	snap, err := r.source.Snapshot(ctx)
	r.metrics.ObserveRefresh(start, err)
	if err != nil {
		return view.ViewModel{}, fmt.Errorf("refresh dashboard: %w", err)
	}

	vm := view.Build(snap.Summary, r.catalog, snap.GeneratedAt, r.location, r.interval)
	r.current.Store(&vm)
	r.metrics.SetTotals(vm.Total, vm.UniqueCountries)
	r.logger.DebugContext(ctx, "dashboard refreshed",
		"registrations", vm.Total,
		"countries", vm.UniqueCountries,
		"duration", time.Since(start),
	)
	return vm, nil
}

// Run refreshes once, then on every tick of the schedule and on every
// Trigger, until ctx is done. It returns nil on cancellation.
func (r *Refresher) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	scheduler := cron.New(cron.WithLocation(time.UTC))
	if _, err := scheduler.AddFunc("@every "+r.interval.String(), r.Trigger); err != nil {
		return fmt.Errorf("schedule refresh every %s: %w", r.interval, err)
	}

	r.refreshAndLog(ctx)
	scheduler.Start()
	r.logger.InfoContext(ctx, "dashboard refresher started", "interval", r.interval.String())

	for {
		select {
		case <-ctx.Done():
			<-scheduler.Stop().Done()
			r.logger.InfoContext(context.WithoutCancel(ctx), "dashboard refresher stopped")
			return nil
		case <-r.trigger:
			r.refreshAndLog(ctx)
		}
	}
}

func (r *Refresher) refreshAndLog(ctx context.Context) {
	if _, err := r.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.WarnContext(ctx, "dashboard refresh failed", "error", err.Error())
	}
}
