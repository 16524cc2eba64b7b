package repository

import (
	"context"
	"errors"

	"tips-service/internal/domain"
)

var (
	// ErrUserExists is returned by Create when the username is already stored.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned by lookups for unknown usernames.
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Count(ctx context.Context) (int64, error)
}
