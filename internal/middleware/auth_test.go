package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stackit/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestIssueAndParseToken(t *testing.T) {
	user := &models.User{ID: 42, Email: "john@example.com", Role: models.RoleAdmin}

	signed, issued, err := IssueToken(testSecret, time.Hour, user)
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	assert.NotEmpty(t, issued.JTI)

	claims, err := ParseToken(testSecret, signed)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "john@example.com", claims.Email)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, issued.JTI, claims.JTI)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 2*time.Second)
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	_, _, err := IssueToken("", time.Hour, &models.User{ID: 1})
	assert.Error(t, err)
}

func TestParseToken_Rejects(t *testing.T) {
	sign := func(claims jwt.MapClaims, method jwt.SigningMethod, key any) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "7",
			"iss": TokenIssuer,
			"aud": TokenAudience,
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	expired := base()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	wrongIssuer := base()
	wrongIssuer["iss"] = "someone-else"
	wrongAudience := base()
	wrongAudience["aud"] = "other-client"
	noSubject := base()
	delete(noSubject, "sub")
	zeroSubject := base()
	zeroSubject["sub"] = "0"
	noExpiry := base()
	delete(noExpiry, "exp")

	tests := []struct {
		name  string
		token string
	}{
		{"Garbage", "not-a-token"},
		{"Wrong secret", sign(base(), jwt.SigningMethodHS256, []byte("other-secret"))},
		{"Expired", sign(expired, jwt.SigningMethodHS256, []byte(testSecret))},
		{"Wrong issuer", sign(wrongIssuer, jwt.SigningMethodHS256, []byte(testSecret))},
		{"Wrong audience", sign(wrongAudience, jwt.SigningMethodHS256, []byte(testSecret))},
		{"Missing subject", sign(noSubject, jwt.SigningMethodHS256, []byte(testSecret))},
		{"Zero subject", sign(zeroSubject, jwt.SigningMethodHS256, []byte(testSecret))},
		{"Missing expiry", sign(noExpiry, jwt.SigningMethodHS256, []byte(testSecret))},
		{"Unsigned", sign(base(), jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(testSecret, tt.token)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestParseToken_UnknownRoleDefaultsToUser(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":  "3",
		"role": "superuser",
		"iss":  TokenIssuer,
		"aud":  TokenAudience,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	parsed, err := ParseToken(testSecret, signed)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, parsed.Role)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantErr   bool
	}{
		{"Valid", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"Lowercase scheme", "bearer abc", "abc", false},
		{"Missing", "", "", true},
		{"Wrong scheme", "Basic dXNlcjpwYXNz", "", true},
		{"No token", "Bearer", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				token, err := BearerToken(c)
				if tt.wantErr {
					assert.ErrorIs(t, err, ErrMissingToken)
				} else {
					assert.NoError(t, err)
					assert.Equal(t, tt.wantToken, token)
				}
				return c.SendStatus(fiber.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			_ = resp.Body.Close()
		})
	}
}
