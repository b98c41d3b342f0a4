package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/pairchat/internal/dependencies/clock"
	"github.com/mcoot/pairchat/internal/model"
	"github.com/mcoot/pairchat/internal/storage"
)

// MaxUsernameLength is the longest accepted username in bytes
const MaxUsernameLength = 32

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
)

// Service is the credential store: it registers users and verifies passwords
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger

	cost int
	// dummyHash is compared against when the user does not exist, so unknown
	// users and wrong passwords both cost one bcrypt comparison
	dummyHash []byte
}

// Config holds configuration for the auth service
type Config struct {
	BcryptCost int
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost: bcrypt.DefaultCost,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}

	secret := make([]byte, 16)
	_, _ = rand.Read(secret)
	dummy, err := bcrypt.GenerateFromPassword(secret, cfg.BcryptCost)
	if err != nil {
		// Only fails for out-of-range costs; fall back to a known-good one
		cfg.BcryptCost = bcrypt.DefaultCost
		dummy, _ = bcrypt.GenerateFromPassword(secret, cfg.BcryptCost)
	}

	return &Service{
		storage:   storage,
		clock:     clock,
		logger:    logger.With(slog.String("component", "auth")),
		cost:      cfg.BcryptCost,
		dummyHash: dummy,
	}
}

// Register creates a user account. Fails with ErrUsernameExists if taken.
func (s *Service) Register(ctx context.Context, username, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}

	if err := s.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserExists) {
			return ErrUsernameExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", slog.String("username", username))
	return nil
}

// Authenticate verifies a username/password pair
func (s *Service) Authenticate(ctx context.Context, username, password string) error {
	user, err := s.storage.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return ErrInvalidCredentials
		}
		return fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}

	return nil
}

// UserCount returns the number of registered users
func (s *Service) UserCount(ctx context.Context) (int, error) {
	return s.storage.CountUsers(ctx)
}

// ValidateUsername checks that a username is usable on the line protocol
func ValidateUsername(username string) error {
	if username == "" || len(username) > MaxUsernameLength || strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePassword checks that a password is usable on the line protocol.
// bcrypt ignores everything past 72 bytes, so longer passwords are rejected.
func ValidatePassword(password string) error {
	if password == "" || len(password) > 72 || strings.IndexFunc(password, unicode.IsSpace) >= 0 {
		return ErrInvalidPassword
	}
	return nil
}
