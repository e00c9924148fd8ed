package server

import (
	"context"
	"net/http"
	"testing"

	"stackit/internal/models"
	"stackit/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "new_user",
		"email":    "New@Example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decode[service.AuthResult](t, resp)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "new_user", res.User.Username)
	assert.Equal(t, 0, res.User.Reputation)
	assert.Equal(t, models.RoleUser, res.User.Role)

	stored, err := env.store.Users.GetByUsername(context.Background(), "new_user")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.Password)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "taken", "")

	tests := []struct {
		name    string
		body    any
		message string
	}{
		{"missing fields", map[string]string{"username": "a_user"}, "All fields are required"},
		{"short password", map[string]string{"username": "a_user", "email": "a@example.com", "password": "12345"}, "Password must be at least 6 characters"},
		{"duplicate email", map[string]string{"username": "other", "email": "taken@example.com", "password": "secret1"}, "Email already exists"},
		{"duplicate username", map[string]string{"username": "taken", "email": "fresh@example.com", "password": "secret1"}, "Username already exists"},
		{"malformed body", "{not json", "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/auth/register", "", tt.body)
			assertError(t, resp, http.StatusBadRequest, tt.message)
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "john_dev", "")

	t.Run("valid credentials", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "JOHN_DEV@example.com", "password": "password123",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		res := decode[service.AuthResult](t, resp)
		assert.Equal(t, u.ID, res.User.ID)

		profile := env.do(t, http.MethodGet, "/api/auth/profile", res.Token, nil)
		require.Equal(t, http.StatusOK, profile.StatusCode)
		assert.Equal(t, "john_dev", decode[models.User](t, profile).Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "john_dev@example.com", "password": "nope-nope",
		})
		assertError(t, resp, http.StatusUnauthorized, "Invalid credentials")
	})

	t.Run("unknown email", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "ghost@example.com", "password": "password123",
		})
		assertError(t, resp, http.StatusUnauthorized, "Invalid credentials")
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "john_dev@example.com"})
		assertError(t, resp, http.StatusBadRequest, "Email and password are required")
	})
}

func TestProfile_DeletedUser(t *testing.T) {
	env := newTestEnv(t)
	ghost := &models.User{ID: 999, Email: "ghost@example.com", Role: models.RoleUser}

	resp := env.do(t, http.MethodGet, "/api/auth/profile", env.token(t, ghost), nil)
	assertError(t, resp, http.StatusNotFound, "User not found")
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv(t, withRedis())
	u := env.user(t, "john_dev", "")
	tok := env.token(t, u)

	resp := env.do(t, http.MethodPost, "/api/auth/logout", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Logged out successfully", decode[map[string]string](t, resp)["message"])

	resp = env.do(t, http.MethodGet, "/api/auth/profile", tok, nil)
	assertError(t, resp, http.StatusForbidden, "Invalid or expired token")

	other := env.token(t, u)
	resp = env.do(t, http.MethodGet, "/api/auth/profile", other, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogout_WithoutRedisIsAccepted(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "john_dev", "")
	tok := env.token(t, u)

	resp := env.do(t, http.MethodPost, "/api/auth/logout", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Nothing to record the revocation in, so the token keeps working until it expires.
	resp = env.do(t, http.MethodGet, "/api/auth/profile", tok, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRevocationLookupFailureFailsOpen(t *testing.T) {
	env := newTestEnv(t, withRedis())
	u := env.user(t, "john_dev", "")
	tok := env.token(t, u)

	env.mr.SetError("READONLY unavailable")
	defer env.mr.SetError("")

	resp := env.do(t, http.MethodGet, "/api/auth/profile", tok, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRateLimit(t *testing.T) {
	login := map[string]string{"email": "ghost@example.com", "password": "password123"}

	t.Run("redis counter", func(t *testing.T) {
		t.Setenv("APP_ENV", "development")
		env := newTestEnv(t, withRedis(), withEnv("development"))

		for i := 0; i < authRateLimit; i++ {
			resp := env.do(t, http.MethodPost, "/api/auth/login", "", login)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
		}
		resp := env.do(t, http.MethodPost, "/api/auth/login", "", login)
		assertError(t, resp, http.StatusTooManyRequests, "Too many requests, please try again later.")
	})

	t.Run("in-process fallback", func(t *testing.T) {
		env := newTestEnv(t, withEnv("development"))

		for i := 0; i < authRateLimit; i++ {
			resp := env.do(t, http.MethodPost, "/api/auth/login", "", login)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
		}
		resp := env.do(t, http.MethodPost, "/api/auth/login", "", login)
		assertError(t, resp, http.StatusTooManyRequests, "Too many requests, please try again later.")
	})

	t.Run("disabled under test", func(t *testing.T) {
		env := newTestEnv(t)
		for i := 0; i < authRateLimit+2; i++ {
			resp := env.do(t, http.MethodPost, "/api/auth/login", "", login)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		}
	})
}

func TestIssueWSTicket(t *testing.T) {
	t.Run("stores the ticket briefly", func(t *testing.T) {
		env := newTestEnv(t, withRedis())
		u := env.user(t, "john_dev", "")

		resp := env.do(t, http.MethodPost, "/api/ws/ticket", env.token(t, u), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[map[string]any](t, resp)
		ticket, _ := body["ticket"].(string)
		require.NotEmpty(t, ticket)
		assert.EqualValues(t, 30, body["expiresIn"])

		assert.True(t, env.mr.Exists(wsTicketPrefix+ticket))
		assert.Equal(t, wsTicketTTL, env.mr.TTL(wsTicketPrefix+ticket))
	})

	t.Run("unavailable without redis", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.user(t, "john_dev", "")
		resp := env.do(t, http.MethodPost, "/api/ws/ticket", env.token(t, u), nil)
		assertError(t, resp, http.StatusServiceUnavailable, "Realtime tickets unavailable")
	})
}
