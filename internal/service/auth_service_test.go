package service

import (
	"context"
	"testing"
	"time"

	"stackit/internal/cache"
	"stackit/internal/middleware"
	"stackit/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-that-is-long-enough-1234"

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := NewAuthService(noopUserRepo(), nil, testSecret, time.Hour)

	tests := []struct {
		name    string
		in      RegisterInput
		message string
	}{
		{"missing username", RegisterInput{Email: "a@b.co", Password: "secret1"}, "All fields are required"},
		{"missing password", RegisterInput{Username: "alice", Email: "a@b.co"}, "All fields are required"},
		{"short password", RegisterInput{Username: "alice", Email: "a@b.co", Password: "12345"}, "Password must be at least 6 characters"},
		{"bad username", RegisterInput{Username: "a!", Email: "a@b.co", Password: "secret1"}, ""},
		{"bad email", RegisterInput{Username: "alice", Email: "not-an-email", Password: "secret1"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			assertValidationError(t, err, tt.message)
		})
	}
}

func TestAuthService_RegisterDuplicates(t *testing.T) {
	t.Run("email", func(t *testing.T) {
		users := noopUserRepo()
		users.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
			return &models.User{ID: 1, Email: email}, nil
		}
		_, err := NewAuthService(users, nil, testSecret, time.Hour).Register(context.Background(),
			RegisterInput{Username: "alice", Email: "A@B.co", Password: "secret1"})
		require.True(t, models.IsCode(err, models.CodeConflict))
		assert.Equal(t, "Email already exists", err.Error())
	})

	t.Run("username", func(t *testing.T) {
		users := noopUserRepo()
		users.getByUsernameFn = func(_ context.Context, name string) (*models.User, error) {
			return &models.User{ID: 1, Username: name}, nil
		}
		_, err := NewAuthService(users, nil, testSecret, time.Hour).Register(context.Background(),
			RegisterInput{Username: "alice", Email: "a@b.co", Password: "secret1"})
		require.True(t, models.IsCode(err, models.CodeConflict))
		assert.Equal(t, "Username already exists", err.Error())
	})

	t.Run("race on unique index", func(t *testing.T) {
		users := noopUserRepo()
		users.createFn = func(context.Context, *models.User) error {
			return models.NewConflictError("User already exists")
		}
		_, err := NewAuthService(users, nil, testSecret, time.Hour).Register(context.Background(),
			RegisterInput{Username: "alice", Email: "a@b.co", Password: "secret1"})
		require.True(t, models.IsCode(err, models.CodeConflict))
		assert.Equal(t, "User with this email or username already exists", err.Error())
	})

	t.Run("store unavailable", func(t *testing.T) {
		users := noopUserRepo()
		users.getByEmailFn = func(context.Context, string) (*models.User, error) {
			return nil, models.NewServiceUnavailableError(errStub)
		}
		_, err := NewAuthService(users, nil, testSecret, time.Hour).Register(context.Background(),
			RegisterInput{Username: "alice", Email: "a@b.co", Password: "secret1"})
		assert.True(t, models.IsCode(err, models.CodeServiceUnavailable))
	})
}

func TestAuthService_RegisterThenLogin(t *testing.T) {
	var stored *models.User
	users := noopUserRepo()
	users.createFn = func(_ context.Context, u *models.User) error {
		u.ID = 21
		stored = u
		return nil
	}
	svc := NewAuthService(users, nil, testSecret, time.Hour)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: " Alice@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.Equal(t, models.RoleUser, stored.Role)
	assert.NotEqual(t, "secret1", stored.Password)
	cost, err := bcrypt.Cost([]byte(stored.Password))
	require.NoError(t, err)
	assert.Equal(t, BcryptCost, cost)

	claims, err := middleware.ParseToken(testSecret, res.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(21), claims.UserID)

	users.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
		if email == stored.Email {
			return stored, nil
		}
		return nil, models.NewNotFoundError("User", email)
	}

	login, err := svc.Login(ctx, LoginInput{Email: "ALICE@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, uint(21), login.User.ID)
	assert.NotEmpty(t, login.Token)

	_, err = svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-pass"})
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))
	assert.Equal(t, "Invalid credentials", err.Error())

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret1"})
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))

	_, err = svc.Login(ctx, LoginInput{Email: "alice@example.com"})
	assertValidationError(t, err, "Email and password are required")
}

func TestAuthService_LogoutRevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewAuthService(noopUserRepo(), rdb, testSecret, time.Hour)
	ctx := context.Background()
	claims := &middleware.Claims{UserID: 1, JTI: "jti-1", ExpiresAt: time.Now().Add(30 * time.Minute)}

	revoked, err := svc.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, svc.Logout(ctx, claims))
	revoked, err = svc.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl := mr.TTL(cache.BlacklistKey("jti-1"))
	assert.Greater(t, ttl, 29*time.Minute)
	assert.LessOrEqual(t, ttl, 30*time.Minute)

	mr.FastForward(31 * time.Minute)
	revoked, err = svc.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestAuthService_LogoutWithoutRedis(t *testing.T) {
	svc := NewAuthService(noopUserRepo(), nil, testSecret, time.Hour)
	claims := &middleware.Claims{UserID: 1, JTI: "x", ExpiresAt: time.Now().Add(time.Minute)}
	assert.NoError(t, svc.Logout(context.Background(), claims))
	revoked, err := svc.IsRevoked(context.Background(), "x")
	assert.NoError(t, err)
	assert.False(t, revoked)
}

func TestAuthService_Profile(t *testing.T) {
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		if id == 1 {
			return &models.User{ID: 1, Username: "alice"}, nil
		}
		return nil, models.NewNotFoundError("User", id)
	}
	svc := NewAuthService(users, nil, testSecret, time.Hour)

	u, err := svc.Profile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = svc.Profile(context.Background(), 2)
	require.True(t, models.IsCode(err, models.CodeNotFound))
	assert.Equal(t, "User not found", err.Error())
}
