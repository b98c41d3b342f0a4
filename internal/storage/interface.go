package storage

import (
	"context"

	"github.com/mcoot/pairchat/internal/model"
)

// Storage defines the interface for credential persistence
type Storage interface {
	// CreateUser saves a new user. It must be atomic with respect to other
	// CreateUser calls and return model.ErrUserExists if the username is taken.
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, username string) (*model.User, error)
	CountUsers(ctx context.Context) (int, error)
}
