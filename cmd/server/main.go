package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	env "github.com/Netflix/go-env"

	"github.com/mcoot/pairchat/internal/admin"
	"github.com/mcoot/pairchat/internal/factory"
	"github.com/mcoot/pairchat/internal/relay"
	redisstorage "github.com/mcoot/pairchat/internal/storage/redis"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	level, err := config.Level()
	if err != nil {
		return err
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	relayCfg := relay.DefaultConfig()
	relayCfg.Addr = config.ListenAddr
	relayCfg.PairingTimeout = config.PairingTimeout
	relayCfg.MaxConnections = config.MaxConnections

	cfg := factory.Config{
		Logger:      logger,
		StorageType: config.StorageType,
		RelayConfig: relayCfg,
	}

	if config.AdminEnabled {
		adminCfg := admin.DefaultConfig()
		adminCfg.Addr = config.AdminAddr
		cfg.AdminConfig = &adminCfg
	}

	// Configure Redis if storage type is redis
	if cfg.StorageType == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = config.RedisURL
		cfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- app.Relay.Start()
	}()
	if app.Admin != nil {
		go func() {
			errCh <- app.Admin.Start()
		}()
	}

	logger.Info("server started",
		slog.String("relay_addr", config.ListenAddr),
		slog.Bool("admin_enabled", app.Admin != nil),
		slog.String("storage", config.StorageType))

	var runErr error
	select {
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error("server error", slog.String("error", runErr.Error()))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if app.Admin != nil {
		if err := app.Admin.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin shutdown error", slog.String("error", err.Error()))
		}
	}
	if err := app.Relay.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return runErr
}
