package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/yukikurage/unica-api/internal/config"
	"github.com/yukikurage/unica-api/internal/database"
	"github.com/yukikurage/unica-api/internal/logger"
	"github.com/yukikurage/unica-api/internal/metrics"
	"go.uber.org/zap"
)

const dbStatsInterval = 15 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cfg, skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not migrate the schema on startup")

	return cmd
}

func serve(cfg *config.Config, skipMigrations bool) error {
	// Initialize logger
	log, err := logger.New(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	log.Info("Starting Unica API",
		zap.String("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.GinMode),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("session_store", cfg.Session.Store),
	)

	// Connect to database
	if err := database.Connect(cfg, log); err != nil {
		return err
	}
	db := database.GetDB()

	if !skipMigrations {
		if err := database.Migrate(log); err != nil {
			return err
		}
	}

	// Metrics
	m := metrics.New(log)
	if err := database.RegisterMetricsCallbacks(db, m); err != nil {
		log.Warn("Failed to register database metrics callbacks", zap.Error(err))
	}
	stopStats := database.StartDBStatsCollector(db, m, dbStatsInterval)
	defer close(stopStats)

	database.ConfigureRetries(cfg.Database.MaxTransactionAttempts,
		func(attempt int, err error) {
			m.RecordTransactionRetry(attempt, err)
			log.Warn("Retrying transaction", zap.Int("attempt", attempt), zap.Error(err))
		},
		m.IncrementTransientFailure,
	)

	// Sessions
	store, err := newSessionStore(cfg)
	if err != nil {
		return err
	}

	r := newRouter(cfg, db, store, m, log)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("Server exited")
	return nil
}

func newSessionStore(cfg *config.Config) (sessions.Store, error) {
	var store sessions.Store

	switch cfg.Session.Store {
	case "cookie":
		store = cookie.NewStore([]byte(cfg.Session.Secret))
	case "redis", "":
		redisAddr := net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port)
		rs, err := redisStore.NewStore(
			cfg.Redis.PoolSize,
			"tcp",
			redisAddr,
			"", // username (empty for default user)
			cfg.Redis.Password,
			[]byte(cfg.Session.Secret),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
		store = rs
	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.Session.Store)
	}

	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Session.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Server.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}
