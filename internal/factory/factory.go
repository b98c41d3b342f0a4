package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/pairchat/internal/admin"
	"github.com/mcoot/pairchat/internal/dependencies/clock"
	"github.com/mcoot/pairchat/internal/relay"
	"github.com/mcoot/pairchat/internal/services/auth"
	"github.com/mcoot/pairchat/internal/services/session"
	"github.com/mcoot/pairchat/internal/storage"
	"github.com/mcoot/pairchat/internal/storage/memory"
	redisstorage "github.com/mcoot/pairchat/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock

	// Services
	AuthService *auth.Service
	Registry    *session.Registry

	// Servers. Admin is nil when disabled.
	Relay *relay.Server
	Admin *admin.Server

	closers []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// RelayConfig holds relay settings; zero fields take defaults
	RelayConfig relay.Config
	// AdminConfig enables the admin HTTP server when non-nil with a non-empty Addr
	AdminConfig *admin.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var store storage.Storage
	var closers []io.Closer
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("redis storage: %w", err)
		}
		store = redisStore
		closers = append(closers, redisStore)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory' or 'redis'", storageType)
	}

	authCfg := cfg.AuthConfig
	if authCfg.BcryptCost == 0 {
		authCfg = auth.DefaultConfig()
	}

	app := newWithDependencies(store, clock.New(), authCfg, cfg.RelayConfig, cfg.AdminConfig, logger)
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, authCfg auth.Config, relayCfg relay.Config, adminCfg *admin.Config, logger *slog.Logger) *App {
	authService := auth.New(store, clk, authCfg, logger)
	registry := session.NewRegistry(logger)
	relayServer := relay.NewServer(relayCfg, authService, registry, logger)

	app := &App{
		Storage:     store,
		Clock:       clk,
		AuthService: authService,
		Registry:    registry,
		Relay:       relayServer,
	}

	if adminCfg != nil && adminCfg.Addr != "" {
		router := admin.NewRouter(admin.RouterConfig{
			Logger:   logger,
			Relay:    relayServer,
			Registry: registry,
		})
		app.Admin = admin.NewServer(router, *adminCfg, logger)
	}

	return app
}

// Close releases storage connections
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
