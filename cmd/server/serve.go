package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/civic-map/internal/api"
	"github.com/jengzang/civic-map/internal/auth"
	"github.com/jengzang/civic-map/internal/handler"
	"github.com/jengzang/civic-map/internal/logging"
	"github.com/jengzang/civic-map/internal/mapview"
	"github.com/jengzang/civic-map/internal/middleware"
	"github.com/jengzang/civic-map/internal/scene"
	"github.com/jengzang/civic-map/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func addServeCmd(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, report refresher and session reaper",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context())
		},
	})
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg
	gin.SetMode(cfg.Server.Mode)

	var probe *http.Client
	if cfg.Map.ProbeAssets {
		probe = &http.Client{Timeout: 10 * time.Second}
	}
	loader := mapview.NewLoader(scene.LoadFunc(cfg.Map.Assets, probe), a.log)

	maps := service.NewMapService(service.MapConfig{
		IdleTimeout: cfg.Map.IdleTimeout,
		MaxSessions: cfg.Map.MaxSessions,
		Assets:      cfg.Map.Assets,
		Options: []mapview.SessionOption{
			mapview.WithObserver(a.metrics.SessionObserver()),
		},
	}, loader, cfg.Map.Options, a.reports, auth.NewSigner(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), a.log)
	defer maps.Close()

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Events, cfg.RateLimit.Window)
	defer limiter.Stop()

	router, err := api.SetupRouter(api.Deps{
		Maps:    maps,
		Reports: a.reports,
		Metrics: a.metrics,
		Limiter: limiter,
		Page: handler.PageConfig{
			Title:  cfg.Map.Title,
			Theme:  cfg.Map.Options.Theme,
			Assets: cfg.Map.Assets,
			Poll:   cfg.Map.PagePoll,
		},
		Log:         a.log,
		ServiceName: "Civic map",
	})
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: cfg.Server.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("server starting", logging.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// a failed first refresh falls back to the cached snapshot
	g.Go(func() error {
		return a.reports.RunRefresher(gctx, cfg.Reports.RefreshInterval)
	})
	g.Go(func() error {
		return maps.RunReaper(gctx, cfg.Map.ReapInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		a.log.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
