package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/metrics"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/aggregate"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/catalog"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
	dErrors "github.com/WilliamsPJ19/africa-map-tracker/pkg/domain-errors"
	"github.com/WilliamsPJ19/africa-map-tracker/pkg/platform/middleware/metadata"
	"github.com/WilliamsPJ19/africa-map-tracker/pkg/platform/sentinel"
	"github.com/WilliamsPJ19/africa-map-tracker/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/store-mocks.go -package=mocks Store

// Store is the registration store handle the service depends on.
type Store interface {
	List(ctx context.Context) ([]models.Registration, error)
	Append(ctx context.Context, reg models.Registration) error
	Initialize(ctx context.Context, seed models.Document) (bool, error)
}

// Snapshot is the aggregated state of the store at one instant.
type Snapshot struct {
	aggregate.Summary
	GeneratedAt time.Time
}

// Service writes registrations and derives the dashboard aggregates.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	clock   func() time.Time
	catalog *catalog.Catalog
	strict  bool
	seed    models.Document
	topN    int
	recentN int

	// mu serializes writers so id generation and blob read-modify-write
	// appends are race-free inside this process.
	mu         sync.Mutex
	lastID     int64
	lastIDInit bool

	subMu       sync.RWMutex
	subscribers []func(models.Registration)
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides time.Now for id and timestamp generation.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithCatalog canonicalizes known country spellings. With strict set,
// countries missing from the catalog are rejected.
func WithCatalog(c *catalog.Catalog, strict bool) Option {
	return func(s *Service) {
		s.catalog = c
		s.strict = strict
	}
}

// WithSeed replaces the default seed document.
func WithSeed(seed models.Document) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithLimits sets the top-N and most-recent sizes used by Snapshot.
func WithLimits(topN, recentN int) Option {
	return func(s *Service) {
		if topN > 0 {
			s.topN = topN
		}
		if recentN > 0 {
			s.recentN = recentN
		}
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("registration store is required")
	}
	s := &Service{
		store:   store,
		logger:  slog.New(slog.DiscardHandler),
		tracer:  otel.Tracer("github.com/WilliamsPJ19/africa-map-tracker/internal/registration/service"),
		clock:   time.Now,
		seed:    DefaultSeed(),
		topN:    aggregate.DefaultTopN,
		recentN: aggregate.DefaultRecentN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Subscribe registers fn to be called after every successful registration.
// Callbacks run synchronously on the writer's goroutine and must not block.
func (s *Service) Subscribe(fn func(models.Registration)) {
	if fn == nil {
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// EnsureDefault seeds the store when it does not exist yet. Calling it again
// has no effect.
func (s *Service) EnsureDefault(ctx context.Context) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "registration.EnsureDefault")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.store.Initialize(ctx, s.seed.Clone())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "initialize store")
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize registration store")
	}
	span.SetAttributes(attribute.Bool("store.created", created))
	if created {
		s.logger.InfoContext(ctx, "registration store initialized with seed data",
			"registrations", s.seed.Len(),
		)
	}
	return created, nil
}

// Register appends a new registration. name defaults to Anonymous and
// message is optional.
func (s *Service) Register(ctx context.Context, country, name, message string) (models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Register")
	defer span.End()
	requestID := requestcontext.RequestID(ctx)

	req := models.RegisterRequest{Country: country, Name: name, Message: message}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.metrics.IncrementRegistration("invalid")
		span.SetStatus(codes.Error, "invalid registration")
		return models.Registration{}, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if known, ok := s.catalog.Lookup(req.Country); ok {
		req.Country = known.Name
	} else if s.strict {
		s.metrics.IncrementRegistration("invalid")
		span.SetStatus(codes.Error, "unknown country")
		return models.Registration{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown country %q", req.Country))
	}
	span.SetAttributes(attribute.String("registration.country", req.Country))

	s.mu.Lock()
	reg, err := s.appendLocked(ctx, req)
	s.mu.Unlock()
	if err != nil {
		s.metrics.IncrementRegistration("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "append registration")
		s.logger.ErrorContext(ctx, "failed to store registration",
			"request_id", requestID,
			"country", req.Country,
			"error", err.Error(),
		)
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Registration{}, dErrors.Wrap(err, dErrors.CodeConflict, "registration store is busy, please try again")
		}
		return models.Registration{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store registration")
	}

	s.metrics.IncrementRegistration("created")
	attrs := []any{
		"request_id", requestID,
		"registration_id", reg.ID,
		"country", reg.Country,
	}
	if device := metadata.DeviceFromContext(ctx); device.Browser != "" {
		attrs = append(attrs, device.LogAttrs()...)
	}
	s.logger.InfoContext(ctx, "registration stored", attrs...)
	s.notify(reg)
	return reg, nil
}

// appendLocked must be called with s.mu held.
func (s *Service) appendLocked(ctx context.Context, req models.RegisterRequest) (models.Registration, error) {
	if !s.lastIDInit {
		regs, err := s.store.List(ctx)
		if err != nil {
			return models.Registration{}, fmt.Errorf("load registrations: %w", err)
		}
		for _, r := range regs {
			s.lastID = max(s.lastID, r.ID)
		}
		s.lastIDInit = true
	}

	now := s.now(ctx)
	id := max(now.UnixMilli(), s.lastID+1)
	reg := models.Registration{
		ID:        id,
		Country:   req.Country,
		Name:      req.Name,
		Message:   req.Message,
		Timestamp: now.UTC().Truncate(time.Millisecond),
	}
	if err := s.store.Append(ctx, reg); err != nil {
		return models.Registration{}, err
	}
	s.lastID = id
	return reg, nil
}

// List returns every stored registration in insertion order.
func (s *Service) List(ctx context.Context) ([]models.Registration, error) {
	regs, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registrations")
	}
	return regs, nil
}

// Snapshot loads the registrations and computes counts, top-N and most-recent.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Snapshot")
	defer span.End()

	regs, err := s.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list registrations")
		return Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registrations")
	}
	summary := aggregate.Summarize(regs, s.topN, s.recentN)
	span.SetAttributes(
		attribute.Int("registrations.total", summary.Total),
		attribute.Int("registrations.countries", summary.UniqueCountries),
	)
	return Snapshot{Summary: summary, GeneratedAt: s.now(ctx)}, nil
}

func (s *Service) now(ctx context.Context) time.Time {
	if t, ok := requestcontext.Time(ctx); ok {
		return t
	}
	return s.clock()
}

func (s *Service) notify(reg models.Registration) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, fn := range s.subscribers {
		fn(reg)
	}
}
