package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config is the server configuration, read from the environment
type Config struct {
	ListenAddr     string        `env:"LISTEN_ADDR,default=:8080" validate:"required"`
	AdminAddr      string        `env:"ADMIN_ADDR,default=:8081" validate:"required_if=AdminEnabled true"`
	AdminEnabled   bool          `env:"ADMIN_ENABLED,default=true"`
	StorageType    string        `env:"STORAGE_TYPE,default=memory" validate:"oneof=memory redis"`
	RedisURL       string        `env:"REDIS_URL" validate:"required_if=StorageType redis"`
	PairingTimeout time.Duration `env:"PAIRING_TIMEOUT,default=15s" validate:"gt=0"`
	MaxConnections int           `env:"MAX_CONNECTIONS,default=0" validate:"gte=0"`
	LogLevel       string        `env:"LOG_LEVEL,default=info"`
}

// Validate checks field constraints
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level parses LogLevel
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
