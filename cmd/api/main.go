package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/pmcoach/internal/auth"
	"github.com/BradenHooton/pmcoach/internal/background"
	"github.com/BradenHooton/pmcoach/internal/config"
	"github.com/BradenHooton/pmcoach/internal/handlers"
	middlewareCustom "github.com/BradenHooton/pmcoach/internal/middleware"
	"github.com/BradenHooton/pmcoach/internal/repositories"
	"github.com/BradenHooton/pmcoach/internal/routes"
	"github.com/BradenHooton/pmcoach/internal/services"
	pkghttp "github.com/BradenHooton/pmcoach/pkg/http"
	pkglogger "github.com/BradenHooton/pmcoach/pkg/logger"
	"github.com/jonboulle/clockwork"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := pkglogger.New(pkglogger.Config{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
	})
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("quota_backend", cfg.Quota.Backend))

	// Initialize stores
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	stores, err := openStores(initCtx, cfg, logger)
	initCancel()
	if err != nil {
		logger.Error("failed to initialize stores", slog.Any("error", err))
		os.Exit(1)
	}
	defer stores.Close()

	clock := clockwork.NewRealClock()

	// Login throttle
	throttleConfig := services.ThrottleConfig{
		MaxAttempts:     cfg.Governance.LoginMaxAttempts,
		LockoutDuration: cfg.Governance.LoginLockoutDuration,
	}
	ledger := repositories.NewAttemptLedger(clock)
	throttle := services.NewLoginThrottle(ledger, throttleConfig, clock, logger)

	// Usage governance
	meter := services.NewUsageMeter(stores.quota, cfg.Store.Timeout, logger)
	recorder := services.NewActivityRecorder(stores.activity, stores.subscriptions, services.RecorderConfig{
		FreePlanID:   cfg.Governance.FreePlanID,
		StoreTimeout: cfg.Store.Timeout,
	}, clock, logger)
	governance := services.NewGovernanceService(meter, recorder, stores.subscriptions, cfg.Store.Timeout, logger)
	subscriptionService := services.NewSubscriptionService(stores.writer, stores.invalidator, recorder, cfg.Store.Timeout, logger)

	// Ledger pruner
	pruner := background.NewLedgerPruner(ledger, 2*throttleConfig.LockoutDuration, cfg.Governance.LedgerPruneInterval, clock, logger)

	// Timing delay for rejected internal keys
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   100 * time.Millisecond,
		RandomDelay: 50 * time.Millisecond,
	})

	router := routes.NewRouter(
		routes.Handlers{
			Throttle:     handlers.NewThrottleHandler(throttle),
			Usage:        handlers.NewUsageHandler(governance),
			Activity:     handlers.NewActivityHandler(governance),
			Subscription: handlers.NewSubscriptionHandler(subscriptionService),
			Health:       handlers.NewHealthHandler(stores.health),
		},
		routes.Config{
			Env:                 cfg.Server.Env,
			AllowedOrigins:      cfg.Server.AllowedOrigins,
			InternalAPIKey:      cfg.Auth.InternalAPIKey,
			RequestTimeout:      cfg.Server.WriteTimeout,
			InternalRateLimit:   middlewareCustom.DefaultInternalRateLimit(),
			SubscriberRateLimit: middlewareCustom.DefaultSubscriberRateLimit(),
		},
		auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience),
		timingDelay,
		pkghttp.NewClientIPResolver(cfg.Server.TrustedProxies),
		logger,
	)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start pruner
	prunerCtx, prunerCancel := context.WithCancel(context.Background())
	defer prunerCancel()

	go pruner.Start(prunerCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	pruner.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}
