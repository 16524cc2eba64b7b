package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tips-service/internal/domain"
	"tips-service/internal/repository"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
}

type userService struct {
	users    repository.UserRepository
	hashCost int
}

// UserOption configures the user service.
type UserOption func(*userService)

// WithHashCost sets the bcrypt cost used for new credentials.
func WithHashCost(cost int) UserOption {
	return func(s *userService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.hashCost = cost
		}
	}
}

func NewUserService(users repository.UserRepository, opts ...UserOption) UserService {
	s := &userService{
		users:    users,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register stores a new account. Username and password are used verbatim.
func (s *userService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", domain.ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("password is required: %w", domain.ErrInvalidInput)
	}
	if len(password) > maxPasswordBytes {
		return nil, fmt.Errorf("password must be at most %d bytes: %w", maxPasswordBytes, domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

// Authenticate reports domain.ErrInvalidCredentials for both unknown users and
// wrong passwords.
func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}
}
