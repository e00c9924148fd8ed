package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stackit/internal/config"
	"stackit/internal/database"
	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type testEnv struct {
	server *Server
	app    *fiber.App
	store  *repository.Store
	redis  *redis.Client
	mr     *miniredis.Miniredis
}

type envOption func(*envOptions)

type envOptions struct {
	env       string
	withRedis bool
	memory    bool
}

func withRedis() envOption  { return func(o *envOptions) { o.withRedis = true } }
func withMemory() envOption { return func(o *envOptions) { o.memory = true } }
func withEnv(env string) envOption {
	return func(o *envOptions) { o.env = env }
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// newTestEnv builds a server over a SQLite store by default. Redis is only
// attached when requested so tests exercise the degraded paths too.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	o := envOptions{env: "test"}
	for _, opt := range opts {
		opt(&o)
	}

	var store *repository.Store
	if o.memory {
		store = repository.NewMemoryStore()
	} else {
		store = repository.NewGormStore(setupTestDB(t))
	}

	env := &testEnv{store: store}
	if o.withRedis {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(mr.Close)
		env.mr = mr
		env.redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = env.redis.Close() })
	}

	cfg := &config.Config{
		Env:       o.env,
		JWTSecret: testSecret,
		JWTTTL:    time.Hour,
	}
	s, err := NewServerWithDeps(cfg, store, env.redis)
	require.NoError(t, err)
	t.Cleanup(func() { s.shutdownFn() })

	env.server = s
	env.app = s.App()
	return env
}

func (e *testEnv) user(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	if role == "" {
		role = models.RoleUser
	}
	u := &models.User{Username: name, Email: name + "@example.com", Password: string(hash), Role: role}
	require.NoError(t, e.store.Users.Create(context.Background(), u))
	return u
}

func (e *testEnv) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, _, err := middleware.IssueToken(testSecret, time.Hour, u)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) question(t *testing.T, author *models.User, title string, tags ...string) *models.Question {
	t.Helper()
	q := &models.Question{Title: title, Description: "details for " + title, Tags: tags, AuthorID: author.ID}
	require.NoError(t, e.store.Questions.Create(context.Background(), q))
	return q
}

func (e *testEnv) answer(t *testing.T, q *models.Question, author *models.User, content string) *models.Answer {
	t.Helper()
	a := &models.Answer{QuestionID: q.ID, AuthorID: author.ID, Content: content}
	require.NoError(t, e.store.Answers.Create(context.Background(), a))
	return a
}

// do sends a request through the app. body may be nil, a string or any JSON value.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func assertError(t *testing.T, resp *http.Response, status int, message string) {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	require.Equal(t, message, body.Error)
}
