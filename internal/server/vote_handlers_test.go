package server

import (
	"context"
	"net/http"
	"testing"

	"stackit/internal/models"
	"stackit/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVote_ToggleAndFlip(t *testing.T) {
	env := newTestEnv(t)
	john := env.user(t, "john_dev", "")
	sarah := env.user(t, "sarah_react", "")
	q := env.question(t, john, "How to center a div?", "css")
	tok := env.token(t, sarah)

	steps := []struct {
		name     string
		value    int
		votes    int
		userVote int
	}{
		{"upvote", 1, 1, 1},
		{"same again toggles off", 1, 0, 0},
		{"downvote", -1, -1, -1},
		{"flip to up", 1, 1, 1},
	}
	for _, step := range steps {
		resp := env.do(t, http.MethodPost, "/api/vote", tok, map[string]any{
			"targetId": q.ID, "targetType": "question", "value": step.value,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, step.name)
		res := decode[map[string]int](t, resp)
		assert.Equal(t, step.votes, res["votes"], step.name)
		assert.Equal(t, step.userVote, res["userVote"], step.name)
	}

	stored, err := env.store.Questions.GetByID(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Votes)
}

func TestVote_Answer(t *testing.T) {
	env := newTestEnv(t)
	john := env.user(t, "john_dev", "")
	sarah := env.user(t, "sarah_react", "")
	q := env.question(t, john, "How to center a div?", "css")
	a := env.answer(t, q, sarah, "Use flexbox")

	resp := env.do(t, http.MethodPost, "/api/vote", env.token(t, john), map[string]any{
		"targetId": a.ID, "targetType": "answer", "value": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, repository.VoteResult{Votes: 1, Standing: 1}, decode[repository.VoteResult](t, resp))

	author, err := env.store.Users.GetByID(context.Background(), sarah.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.AnswerVoteWeight, author.Reputation)
}

func TestVote_MissingTargetRecordsNothing(t *testing.T) {
	env := newTestEnv(t)
	sarah := env.user(t, "sarah_react", "")

	resp := env.do(t, http.MethodPost, "/api/vote", env.token(t, sarah), map[string]any{
		"targetId": 4242, "targetType": "question", "value": 1,
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	standing, err := env.store.Votes.Standing(context.Background(), sarah.ID, 4242, models.TargetQuestion)
	require.NoError(t, err)
	assert.Zero(t, standing)
}

func TestVote_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	sarah := env.user(t, "sarah_react", "")
	tok := env.token(t, sarah)

	bodies := map[string]any{
		"zero value":   map[string]any{"targetId": 1, "targetType": "question", "value": 0},
		"value of two": map[string]any{"targetId": 1, "targetType": "question", "value": 2},
		"bad type":     map[string]any{"targetId": 1, "targetType": "comment", "value": 1},
		"no target":    map[string]any{"targetType": "answer", "value": 1},
		"malformed":    "{",
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/vote", tok, body)
			assertError(t, resp, http.StatusBadRequest, "Invalid vote data")
		})
	}

	t.Run("requires auth", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/vote", "", map[string]any{"targetId": 1, "targetType": "question", "value": 1})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
