package server

import (
	"net/http"
	"testing"

	"stackit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifications_AnswerAndMention(t *testing.T) {
	env := newTestEnv(t)
	john := env.user(t, "john_dev", "")
	sarah := env.user(t, "sarah_react", "")
	mike := env.user(t, "mike_backend", "")
	q := env.question(t, john, "How to center a div?", "css")

	resp := env.do(t, http.MethodPost, "/api/answers", env.token(t, sarah), map[string]any{
		"questionId": q.ID,
		"content":    "Use flexbox, @mike_backend knows grid better. cc @sarah_react @nobody",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	johnTok := env.token(t, john)
	resp = env.do(t, http.MethodGet, "/api/notifications", johnTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	johnNotes := decode[[]models.Notification](t, resp)
	require.Len(t, johnNotes, 1)
	assert.Equal(t, models.NotificationAnswer, johnNotes[0].Kind)
	assert.Equal(t, "Your question was answered by sarah_react", johnNotes[0].Message)
	assert.Equal(t, q.ID, johnNotes[0].QuestionID)
	assert.False(t, johnNotes[0].IsRead)

	resp = env.do(t, http.MethodGet, "/api/notifications", env.token(t, mike), nil)
	mikeNotes := decode[[]models.Notification](t, resp)
	require.Len(t, mikeNotes, 1)
	assert.Equal(t, models.NotificationMention, mikeNotes[0].Kind)
	assert.Equal(t, "You were mentioned by sarah_react", mikeNotes[0].Message)

	resp = env.do(t, http.MethodGet, "/api/notifications", env.token(t, sarah), nil)
	assert.Empty(t, decode[[]models.Notification](t, resp), "self-mentions are ignored")

	resp = env.do(t, http.MethodPost, "/api/notifications/mark-read", johnTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, decode[map[string]int](t, resp)["updated"])

	resp = env.do(t, http.MethodGet, "/api/notifications", johnTok, nil)
	johnNotes = decode[[]models.Notification](t, resp)
	require.Len(t, johnNotes, 1)
	assert.True(t, johnNotes[0].IsRead)
}

func TestNotifications_OwnAnswerIsSilent(t *testing.T) {
	env := newTestEnv(t, withMemory())
	john := env.user(t, "john_dev", "")
	q := env.question(t, john, "Answering myself", "meta")
	tok := env.token(t, john)

	resp := env.do(t, http.MethodPost, "/api/answers", tok, map[string]any{"questionId": q.ID, "content": "Found it"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/notifications", tok, nil)
	assert.Empty(t, decode[[]models.Notification](t, resp))
}

func TestNotifications_RequireAuth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/notifications", "", nil)
	assertError(t, resp, http.StatusUnauthorized, "Access token required")
}
