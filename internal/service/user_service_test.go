package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tips-service/internal/domain"
	"tips-service/internal/repository/sqlite"
	"tips-service/internal/service"
)

func newUserService(t *testing.T) service.UserService {
	t.Helper()

	db, err := sqlite.Open(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))

	return service.NewUserService(repo, service.WithHashCost(bcrypt.MinCost))
}

func TestUserService_Register(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.PasswordHash, "hash never leaves the service")
	assert.NotZero(t, user.ID)

	_, err = svc.Register(ctx, "alice", "another")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUserService_RegisterKeepsInputVerbatim(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	username := " \tweird\nname "
	password := " pass word\x0b"
	_, err := svc.Register(ctx, username, password)
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, username, password)
	require.NoError(t, err)
	assert.Equal(t, username, user.Username)

	_, err = svc.Authenticate(ctx, "weird\nname", password)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestUserService_RegisterRejectsInvalidInput(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "empty username", username: "", password: "pw"},
		{name: "empty password", username: "alice", password: ""},
		{name: "password too long", username: "alice", password: string(make([]byte, 73))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestUserService_AuthenticateDoesNotDistinguishFailures(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "right")
	require.NoError(t, err)

	_, unknownErr := svc.Authenticate(ctx, "nobody", "right")
	_, wrongErr := svc.Authenticate(ctx, "alice", "wrong")

	assert.ErrorIs(t, unknownErr, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, domain.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())

	user, err := svc.Authenticate(ctx, "alice", "right")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}
