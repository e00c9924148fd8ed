package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"stackit/internal/cache"
	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/repository"
	"stackit/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for stored password hashes.
const BcryptCost = 12

var errInvalidCredentials = models.NewUnauthorizedError("Invalid credentials")

type AuthService struct {
	users  repository.UserRepository
	rdb    *redis.Client
	secret string
	ttl    time.Duration
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// NewAuthService builds the auth use cases. rdb may be nil, in which case
// logout cannot revoke tokens before they expire.
func NewAuthService(users repository.UserRepository, rdb *redis.Client, secret string, ttl time.Duration) *AuthService {
	return &AuthService{users: users, rdb: rdb, secret: secret, ttl: ttl}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := validation.NormalizeEmail(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return nil, models.NewValidationError("All fields are required")
	}
	if len(in.Password) < validation.MinPasswordLength {
		return nil, models.NewValidationError("Password must be at least 6 characters")
	}
	for _, err := range []error{
		validation.ValidateUsername(username),
		validation.ValidateEmail(email),
		validation.ValidatePassword(in.Password),
	} {
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	if taken, err := s.taken(ctx, s.users.GetByEmail, email); err != nil {
		return nil, err
	} else if taken {
		return nil, models.NewConflictError("Email already exists")
	}
	if taken, err := s.taken(ctx, s.users.GetByUsername, username); err != nil {
		return nil, err
	} else if taken {
		return nil, models.NewConflictError("Username already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), BcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hash),
		Role:     models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if models.IsCode(err, models.CodeConflict) {
			return nil, models.NewConflictError("User with this email or username already exists")
		}
		return nil, err
	}

	return s.issue(user)
}

func (s *AuthService) taken(ctx context.Context, lookup func(context.Context, string) (*models.User, error), key string) (bool, error) {
	_, err := lookup(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case models.IsCode(err, models.CodeNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := validation.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, _, err := middleware.IssueToken(s.secret, s.ttl, user)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Logout revokes the token identified by claims until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *middleware.Claims) error {
	if claims == nil || claims.JTI == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if s.rdb == nil {
		middleware.Logger.WarnContext(ctx, "logout without redis, token stays valid until expiry",
			slog.Uint64("user_id", uint64(claims.UserID)))
		return nil
	}
	if err := s.rdb.Set(ctx, cache.BlacklistKey(claims.JTI), "1", ttl).Err(); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// IsRevoked reports whether the token with jti has been logged out.
func (s *AuthService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := s.rdb.Exists(ctx, cache.BlacklistKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, &models.AppError{Code: models.CodeNotFound, Message: "User not found"}
		}
		return nil, err
	}
	return user, nil
}
