package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/dashboard/render"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/dashboard/view"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/metrics"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/middleware"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/ratelimit"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
	dErrors "github.com/WilliamsPJ19/africa-map-tracker/pkg/domain-errors"
	"github.com/WilliamsPJ19/africa-map-tracker/pkg/platform/httputil"
	"github.com/WilliamsPJ19/africa-map-tracker/pkg/platform/middleware/metadata"
	"github.com/WilliamsPJ19/africa-map-tracker/pkg/platform/middleware/requesttime"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Registrar,Dashboard

const (
	requestTimeout  = 15 * time.Second
	maxRequestBytes = 16 << 10
)

// Registrar writes and lists registrations.
type Registrar interface {
	Register(ctx context.Context, country, name, message string) (models.Registration, error)
	List(ctx context.Context) ([]models.Registration, error)
}

// Dashboard serves the cached view and refreshes it on demand.
type Dashboard interface {
	Current() (view.ViewModel, bool)
	Refresh(ctx context.Context) (view.ViewModel, error)
}

// Handler serves the kiosk dashboard, the registration form and the JSON API.
type Handler struct {
	logger    *slog.Logger
	registrar Registrar
	dashboard Dashboard
	renderer  *render.Renderer
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	countries []string
	health    func(ctx context.Context) error
	limiter   *ratelimit.Limiter
	proxies   []netip.Prefix
}

type Option func(*Handler)

// WithCountries fills the registration form's country suggestions.
func WithCountries(names []string) Option {
	return func(h *Handler) {
		h.countries = names
	}
}

// WithHealthCheck makes /healthz report the store's reachability.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(h *Handler) {
		h.health = check
	}
}

// WithRegistrationLimiter throttles both registration endpoints per client IP.
func WithRegistrationLimiter(l *ratelimit.Limiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// WithTrustedProxies names the reverse proxies whose forwarding headers
// identify the client. Without it the peer address is the client.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(h *Handler) {
		h.proxies = prefixes
	}
}

// WithGatherer selects the registry /metrics exposes.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		if g != nil {
			h.gatherer = g
		}
	}
}

// New creates a Handler.
func New(
	registrar Registrar,
	dashboard Dashboard,
	renderer *render.Renderer,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	opts ...Option,
) *Handler {
	h := &Handler{
		logger:    logger,
		registrar: registrar,
		dashboard: dashboard,
		renderer:  renderer,
		metrics:   metrics,
		gatherer:  prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on r.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(metadata.ClientMetadataBehind(h.proxies))
	router.Use(requesttime.Middleware)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(middleware.LatencyMiddleware(h.metrics))

	router.Get("/", h.handleDashboard)
	router.Post("/refresh", h.handleRefresh)
	router.Get("/register", h.handleRegisterForm)
	throttled := router.With(ratelimit.Middleware(h.limiter, h.logger))
	throttled.Post("/register", h.handleRegisterSubmit)

	router.Get("/api/stats", h.handleStats)
	router.Get("/api/registrations", h.handleListRegistrations)
	throttled.Post("/api/registrations", h.handleCreateRegistration)

	router.Get("/healthz", h.handleHealth)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Mount("/", router)
}

// currentView serves the cached view, refreshing once when nothing is cached yet.
func (h *Handler) currentView(ctx context.Context) (view.ViewModel, error) {
	if vm, ok := h.dashboard.Current(); ok {
		return vm, nil
	}
	return h.dashboard.Refresh(ctx)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vm, err := h.currentView(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build dashboard",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeHTML(ctx, w, http.StatusOK, func(w io.Writer) error {
		return h.renderer.Dashboard(w, vm)
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := h.dashboard.Refresh(ctx); err != nil {
		h.logger.ErrorContext(ctx, "manual refresh failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	form := render.Form{
		Country:   r.URL.Query().Get("country"),
		Countries: h.countries,
	}
	h.writeHTML(r.Context(), w, http.StatusOK, func(w io.Writer) error {
		return h.renderer.RegisterForm(w, form)
	})
}

func (h *Handler) handleRegisterSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseForm(); err != nil {
		h.logger.WarnContext(ctx, "invalid registration form",
			"request_id", requestID,
			"error", err.Error(),
		)
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	form := render.Form{
		Country:   r.PostForm.Get("country"),
		Name:      r.PostForm.Get("name"),
		Message:   r.PostForm.Get("message"),
		Countries: h.countries,
	}

	reg, err := h.registrar.Register(ctx, form.Country, form.Name, form.Message)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.WarnContext(ctx, "rejected registration",
				"request_id", requestID,
				"error", err.Error(),
			)
			form.Error = messageOf(err)
			h.writeHTML(ctx, w, http.StatusUnprocessableEntity, func(w io.Writer) error {
				return h.renderer.RegisterForm(w, form)
			})
			return
		}
		h.logger.ErrorContext(ctx, "failed to register",
			"request_id", requestID,
			"error", err.Error(),
		)
		status := http.StatusInternalServerError
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			status = http.StatusConflict
		}
		http.Error(w, "registration could not be saved, please try again", status)
		return
	}
	h.refreshAfterRegister(ctx, reg)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vm, err := h.currentView(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build stats",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, vm)
}

func (h *Handler) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regs, err := h.registrar.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list registrations",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	if regs == nil {
		regs = []models.Registration{}
	}
	httputil.WriteJSON(w, http.StatusOK, models.Document{Registrations: regs})
}

func (h *Handler) handleCreateRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req models.RegisterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid registration request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	reg, err := h.registrar.Register(ctx, req.Country, req.Name, req.Message)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.WarnContext(ctx, "rejected registration",
				"request_id", requestID,
				"error", err.Error(),
			)
		} else {
			h.logger.ErrorContext(ctx, "failed to register",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	h.refreshAfterRegister(ctx, reg)
	httputil.WriteJSON(w, http.StatusCreated, reg)
}

// refreshAfterRegister rebuilds the cached view before the response goes out,
// so the redirected page and /api/stats include the new entry. The stored
// registration stands even when the refresh fails.
func (h *Handler) refreshAfterRegister(ctx context.Context, reg models.Registration) {
	if _, err := h.dashboard.Refresh(ctx); err != nil {
		h.logger.WarnContext(ctx, "dashboard refresh after registration failed",
			"request_id", middleware.GetRequestID(ctx),
			"registration_id", reg.ID,
			"error", err.Error(),
		)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.health != nil {
		if err := h.health(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed",
				"request_id", middleware.GetRequestID(ctx),
				"error", err.Error(),
			)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeHTML(ctx context.Context, w http.ResponseWriter, status int, fn func(io.Writer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		h.logger.ErrorContext(ctx, "failed to render page",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func messageOf(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}
