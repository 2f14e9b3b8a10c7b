package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/loader"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/services"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"config", cfg,
	)

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialise application", "error", err)
		os.Exit(1)
	}

	logger.Info("starting graceful server")
	if err := a.server.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}

type app struct {
	dashboard *services.Dashboard
	handler   http.Handler
	server    *server.GracefulServer

	// loaded is closed once the initial load finishes, successfully or not.
	loaded chan struct{}
}

// newApp wires the dashboard, its data source and the HTTP stack. The
// initial load runs in the background; until it lands the dashboard serves
// an empty dataset and reports no data.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	dashboard := services.NewDashboard(cfg.Dashboard.Years, logger)
	dashboard.SetLoadTimeout(cfg.Data.LoadTimeout)

	source, err := loader.New(cfg.Data, logger)
	if err != nil {
		return nil, err
	}

	result := dashboard.LoadAsync(context.Background(), source)
	loaded := make(chan struct{})
	go func() {
		defer close(loaded)
		if err := <-result; err != nil {
			logger.Error("initial dataset load failed, serving empty dataset",
				"source", source.Name(),
				"error", err,
			)
		}
	}()

	srv := server.NewServer(dashboard, source, logger)
	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	handler := middlewareChain(srv)
	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook("rate-limiter", func(ctx context.Context) error {
		rateLimiter.Stop()
		return nil
	})

	return &app{
		dashboard: dashboard,
		handler:   handler,
		server:    gracefulServer,
		loaded:    loaded,
	}, nil
}
