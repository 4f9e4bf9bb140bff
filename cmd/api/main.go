package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/spa-booking-wizard/cmd/mainconfig"
	"github.com/wolfman30/spa-booking-wizard/internal/api/router"
	"github.com/wolfman30/spa-booking-wizard/internal/app/bootstrap"
	"github.com/wolfman30/spa-booking-wizard/internal/audit"
	"github.com/wolfman30/spa-booking-wizard/internal/auth"
	"github.com/wolfman30/spa-booking-wizard/internal/backend"
	"github.com/wolfman30/spa-booking-wizard/internal/bookings"
	appconfig "github.com/wolfman30/spa-booking-wizard/internal/config"
	"github.com/wolfman30/spa-booking-wizard/internal/observability/metrics"
	"github.com/wolfman30/spa-booking-wizard/internal/wizard"
	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting spa-booking-wizard API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"backend", cfg.BackendBaseURL,
		"state_backend", cfg.StateBackend,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	ctx := context.Background()

	srv, cleanup, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// buildServer wires every component from cfg. cleanup closes pools and clients.
func buildServer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*http.Server, func(), error) {
	if cfg.SessionJWTSecret == "" {
		return nil, nil, auth.ErrMissingSecret
	}

	stores, err := bootstrap.BuildStateStores(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	persistence := bootstrap.BuildPersistence(ctx, cfg.DatabaseURL, logger)
	cleanup := func() {
		persistence.Close()
		if stores.Redis != nil {
			_ = stores.Redis.Close()
		}
	}

	publisher, err := mainconfig.BuildBookingPublisher(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("booking events publisher: %w", err)
	}

	metricsHandler, wizardMetrics := setupMetrics()
	client := backend.NewClient(cfg.BackendBaseURL, logger, backend.WithTimeout(cfg.CatalogTimeout))

	svc, err := bootstrap.BuildWizardService(cfg, client, stores, bootstrap.WizardDeps{
		Metrics:     wizardMetrics,
		Persistence: persistence,
		Publisher:   publisher,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	manager := auth.NewManager(client, stores.Auth, cfg.SessionJWTSecret, cfg.AuthSessionTTL, logger)

	routerCfg := &router.Config{
		Logger:             logger,
		AuthHandler:        auth.NewHandler(manager, logger),
		Authenticator:      manager,
		WizardHandler:      wizard.NewHandler(svc, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		HealthChecks:       map[string]router.HealthCheck{},
	}
	if persistence.Bookings != nil {
		routerCfg.BookingsHandler = bookings.NewHandler(persistence.Bookings, logger)
		routerCfg.HealthChecks["postgres"] = persistence.Pool.Ping
	}
	if persistence.Audit != nil {
		routerCfg.AuditHandler = audit.NewHandler(persistence.Audit, logger)
	}
	if stores.Redis != nil {
		routerCfg.HealthChecks["redis"] = func(ctx context.Context) error {
			return stores.Redis.Ping(ctx).Err()
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, cleanup, nil
}

func setupMetrics() (http.Handler, *metrics.WizardMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewWizardMetrics(reg)
}
