package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arvetta/condo-ledger-go/internal/config"
	"github.com/arvetta/condo-ledger-go/internal/handler"
	"github.com/arvetta/condo-ledger-go/internal/infra/memstore"
	"github.com/arvetta/condo-ledger-go/internal/infra/notify"
	"github.com/arvetta/condo-ledger-go/internal/infra/observability"
	"github.com/arvetta/condo-ledger-go/internal/infra/resilience"
	"github.com/arvetta/condo-ledger-go/internal/infra/sqlite"
	"github.com/arvetta/condo-ledger-go/internal/port"
	"github.com/arvetta/condo-ledger-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_driver", cfg.StoreDriver),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("credit_expiry_months", cfg.CreditExpiryMonths),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "condo-ledger")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	var store port.Store
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store: data is lost on restart")
		store = memstore.New()
	default:
		db, err := sqlite.Open(context.Background(), cfg.SQLitePath)
		if err != nil {
			logger.Fatal("failed to open sqlite store", zap.Error(err))
		}
		defer db.Close()
		logger.Info("sqlite store ready", zap.String("path", cfg.SQLitePath))
		store = db
	}

	// --- Reminder delivery ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	var reminders port.ReminderSender
	if cfg.ReminderWebhookURL != "" {
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		cb := resilience.NewCircuitBreaker("reminder-webhook")
		reminders = notify.NewWebhookSender(httpClient, cfg.ReminderWebhookURL, cb, resilienceCfg, logger)
		logger.Info("reminder delivery via webhook", zap.String("url", cfg.ReminderWebhookURL))
	} else {
		reminders = notify.NopSender{}
		logger.Warn("no reminder webhook configured, reminders are dropped")
	}

	// --- Service ---
	svc := service.NewLedgerService(
		store,
		port.SystemClock{},
		reminders,
		metrics,
		logger,
		service.PolicyFromConfig(cfg),
		cfg.CacheTTL,
	)

	// --- Router ---
	router := handler.NewRouter(svc, metrics, logger, handler.Config{
		JWTSecret:  cfg.JWTSecret,
		APIKeyHash: cfg.APIKeyHash,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
