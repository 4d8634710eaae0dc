package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/dashboard/handler"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/dashboard/refresher"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/dashboard/render"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/httpserver"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/ratelimit"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/service"
)

func newServeCmd(appFn func() *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard, registration form and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			if addr != "" {
				a.cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.withBackend(ctx, a.serve)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides AFRICAMAP_ADDR)")
	return cmd
}

// serve runs the HTTP server, the refresher and, for the file driver, the
// store watcher until ctx is done or one of them fails.
func (a *app) serve(ctx context.Context, b *backend, svc *service.Service) error {
	if _, err := svc.EnsureDefault(ctx); err != nil {
		return err
	}

	loc, err := a.cfg.Dashboard.Location()
	if err != nil {
		return err
	}
	dash, err := refresher.New(svc,
		refresher.WithInterval(a.cfg.Dashboard.RefreshInterval),
		refresher.WithLocation(loc),
		refresher.WithCatalog(a.catalog),
		refresher.WithLogger(a.logger),
		refresher.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}
	svc.Subscribe(func(models.Registration) { dash.Trigger() })

	renderer, err := render.New()
	if err != nil {
		return err
	}
	var limiter *ratelimit.Limiter
	if a.cfg.Dashboard.RegisterLimit > 0 {
		limiter = ratelimit.New(a.cfg.Dashboard.RegisterLimit, a.cfg.Dashboard.RegisterWindow)
	}
	h := handler.New(svc, dash, renderer, a.logger, a.metrics,
		handler.WithCountries(a.catalog.Names()),
		handler.WithHealthCheck(b.health),
		handler.WithGatherer(a.registry),
		handler.WithRegistrationLimiter(limiter),
		handler.WithTrustedProxies(a.cfg.Dashboard.TrustedProxies),
	)
	router := chi.NewRouter()
	h.Register(router)
	srv := httpserver.New(a.cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dash.Run(gctx)
	})
	if b.watch != nil {
		g.Go(func() error {
			return b.watch(gctx, dash.Trigger)
		})
	}
	if limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(a.cfg.Dashboard.RegisterWindow)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					limiter.Sweep()
				}
			}
		})
	}
	g.Go(func() error {
		a.logger.InfoContext(gctx, "starting africa-map-tracker",
			"addr", a.cfg.Addr,
			"store_driver", a.cfg.Store.Driver,
			"refresh_interval", a.cfg.Dashboard.RefreshInterval.String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.ShutdownTimeout)
		defer cancel()
		a.logger.InfoContext(shutdownCtx, "shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
