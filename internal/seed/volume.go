package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
)

var volumeTags = []string{
	"go", "react", "css", "html", "javascript", "typescript", "postgresql", "redis",
	"docker", "kubernetes", "nodejs", "performance", "testing", "security", "linux",
}

// VolumeOptions controls synthetic data generation.
type VolumeOptions struct {
	Users      int
	Questions  int
	MaxAnswers int
	// Seed makes runs reproducible; zero picks a random seed.
	Seed int64
}

// Volume adds generated users, questions, answers and votes on top of
// whatever the store already holds.
func Volume(ctx context.Context, store *repository.Store, opts VolumeOptions) (*Result, error) {
	if opts.Users < 2 {
		opts.Users = 2
	}
	if opts.MaxAnswers <= 0 {
		opts.MaxAnswers = 3
	}
	faker := gofakeit.New(opts.Seed)
	rng := rand.New(rand.NewPCG(uint64(faker.Uint32()), uint64(faker.Uint32())))

	res := &Result{
		Users:     map[string]*models.User{},
		Questions: map[string]*models.Question{},
		Answers:   map[string]*models.Answer{},
	}

	// Generated accounts share one hash; hashing per user dominates runtime.
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, opts.Users)
	for len(users) < opts.Users {
		name := fmt.Sprintf("%s_%d", strings.ToLower(faker.Username()), faker.Number(100, 99999))
		if len(name) > 30 {
			name = name[:30]
		}
		u := &models.User{
			Username: name,
			Email:    strings.ToLower(faker.Email()),
			Password: string(hash),
			Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", faker.UUID()),
		}
		if err := store.Users.Create(ctx, u); err != nil {
			if models.IsCode(err, models.CodeConflict) {
				continue
			}
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
		res.Users[u.Username] = u
	}

	for i := range opts.Questions {
		author := users[rng.IntN(len(users))]
		q := &models.Question{
			Title:       strings.TrimSuffix(faker.Question(), "?") + "?",
			Description: faker.Paragraph(2, 3, 12, "\n\n"),
			Tags:        pickTags(rng, 1+rng.IntN(models.MaxTags)),
			AuthorID:    author.ID,
		}
		if err := store.Questions.Create(ctx, q); err != nil {
			return nil, fmt.Errorf("create question: %w", err)
		}
		res.Questions[fmt.Sprintf("q%d", i)] = q

		answers := make([]*models.Answer, 0, opts.MaxAnswers)
		for j := range rng.IntN(opts.MaxAnswers + 1) {
			a := &models.Answer{
				QuestionID: q.ID,
				Content:    faker.Paragraph(1, 3, 10, "\n\n"),
				AuthorID:   users[rng.IntN(len(users))].ID,
			}
			if err := store.Answers.Create(ctx, a); err != nil {
				return nil, fmt.Errorf("create answer: %w", err)
			}
			answers = append(answers, a)
			res.Answers[fmt.Sprintf("q%d-a%d", i, j)] = a
		}
		if len(answers) > 0 && rng.IntN(2) == 0 {
			if _, err := store.Answers.Accept(ctx, answers[rng.IntN(len(answers))].ID, author.ID); err != nil {
				return nil, fmt.Errorf("accept answer: %w", err)
			}
		}

		for _, voter := range users {
			if rng.IntN(3) != 0 {
				continue
			}
			if _, err := store.Votes.Apply(ctx, voter.ID, q.ID, models.TargetQuestion, voteValue(rng)); err != nil {
				return nil, fmt.Errorf("vote question: %w", err)
			}
			res.Votes++
			for _, a := range answers {
				if rng.IntN(2) != 0 {
					continue
				}
				if _, err := store.Votes.Apply(ctx, voter.ID, a.ID, models.TargetAnswer, voteValue(rng)); err != nil {
					return nil, fmt.Errorf("vote answer: %w", err)
				}
				res.Votes++
			}
		}
	}

	middleware.Logger.InfoContext(ctx, "generated volume data",
		slog.Int("users", len(res.Users)),
		slog.Int("questions", len(res.Questions)),
		slog.Int("answers", len(res.Answers)),
		slog.Int("votes", res.Votes),
	)
	return res, nil
}

func pickTags(rng *rand.Rand, n int) models.Tags {
	idx := rng.Perm(len(volumeTags))[:n]
	out := make(models.Tags, 0, n)
	for _, i := range idx {
		out = append(out, volumeTags[i])
	}
	return out
}

// voteValue skews toward upvotes.
func voteValue(rng *rand.Rand) int {
	if rng.IntN(4) == 0 {
		return -1
	}
	return 1
}
