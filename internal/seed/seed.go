// Package seed loads demo data into a store through the same repository
// operations the API uses, so counters and the vote ledger stay consistent.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var fixtureYAML []byte

// Fixture is the demo dataset.
type Fixture struct {
	Password  string            `yaml:"password"`
	Users     []FixtureUser     `yaml:"users"`
	Questions []FixtureQuestion `yaml:"questions"`
	Votes     []FixtureVote     `yaml:"votes"`
}

type FixtureUser struct {
	Username   string      `yaml:"username"`
	Email      string      `yaml:"email"`
	Reputation int         `yaml:"reputation"`
	Role       models.Role `yaml:"role"`
}

type FixtureQuestion struct {
	Key         string          `yaml:"key"`
	Author      string          `yaml:"author"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Tags        []string        `yaml:"tags"`
	Answers     []FixtureAnswer `yaml:"answers"`
}

type FixtureAnswer struct {
	Key      string `yaml:"key"`
	Author   string `yaml:"author"`
	Content  string `yaml:"content"`
	Accepted bool   `yaml:"accepted"`
}

// FixtureVote targets either a question or an answer by key.
type FixtureVote struct {
	User     string `yaml:"user"`
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
	Value    int    `yaml:"value"`
}

// Result reports what a seeding run created.
type Result struct {
	Skipped   bool
	Users     map[string]*models.User
	Questions map[string]*models.Question
	Answers   map[string]*models.Answer
	Votes     int
}

// LoadFixture parses the embedded dataset.
func LoadFixture() (*Fixture, error) {
	return ParseFixture(fixtureYAML)
}

// ParseFixture parses and cross-checks a dataset.
func ParseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	users := map[string]bool{}
	for _, u := range f.Users {
		users[u.Username] = true
	}
	questions := map[string]bool{}
	answers := map[string]bool{}
	for _, q := range f.Questions {
		if !users[q.Author] {
			return fmt.Errorf("question %q: unknown author %q", q.Key, q.Author)
		}
		questions[q.Key] = true
		accepted := 0
		for _, a := range q.Answers {
			if !users[a.Author] {
				return fmt.Errorf("answer %q: unknown author %q", a.Key, a.Author)
			}
			if a.Accepted {
				accepted++
			}
			answers[a.Key] = true
		}
		if accepted > 1 {
			return fmt.Errorf("question %q: more than one accepted answer", q.Key)
		}
	}
	for i, v := range f.Votes {
		if !users[v.User] {
			return fmt.Errorf("vote %d: unknown user %q", i, v.User)
		}
		if (v.Question == "") == (v.Answer == "") {
			return fmt.Errorf("vote %d: exactly one of question or answer is required", i)
		}
		if v.Question != "" && !questions[v.Question] {
			return fmt.Errorf("vote %d: unknown question %q", i, v.Question)
		}
		if v.Answer != "" && !answers[v.Answer] {
			return fmt.Errorf("vote %d: unknown answer %q", i, v.Answer)
		}
		if v.Value != 1 && v.Value != -1 {
			return fmt.Errorf("vote %d: value must be 1 or -1", i)
		}
	}
	return nil
}

// Seed applies the embedded fixture unless its first user already exists.
func Seed(ctx context.Context, store *repository.Store) (*Result, error) {
	f, err := LoadFixture()
	if err != nil {
		return nil, err
	}
	return Apply(ctx, store, f)
}

// Apply writes f into store.
func Apply(ctx context.Context, store *repository.Store, f *Fixture) (*Result, error) {
	res := &Result{
		Users:     map[string]*models.User{},
		Questions: map[string]*models.Question{},
		Answers:   map[string]*models.Answer{},
	}
	if len(f.Users) == 0 {
		return res, nil
	}

	exists, err := store.Users.Exists(ctx, f.Users[0].Email, f.Users[0].Username)
	if err != nil {
		return nil, err
	}
	if exists {
		middleware.Logger.InfoContext(ctx, "store already seeded")
		res.Skipped = true
		return res, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(f.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	for _, fu := range f.Users {
		u := &models.User{
			Username:   fu.Username,
			Email:      fu.Email,
			Password:   string(hash),
			Reputation: fu.Reputation,
			Role:       fu.Role,
		}
		if err := store.Users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create user %s: %w", fu.Username, err)
		}
		res.Users[fu.Username] = u
	}

	for _, fq := range f.Questions {
		author := res.Users[fq.Author]
		q := &models.Question{
			Title:       fq.Title,
			Description: fq.Description,
			Tags:        models.Tags(fq.Tags),
			AuthorID:    author.ID,
		}
		if err := store.Questions.Create(ctx, q); err != nil {
			return nil, fmt.Errorf("create question %s: %w", fq.Key, err)
		}
		res.Questions[fq.Key] = q

		for _, fa := range fq.Answers {
			a := &models.Answer{
				QuestionID: q.ID,
				Content:    fa.Content,
				AuthorID:   res.Users[fa.Author].ID,
			}
			if err := store.Answers.Create(ctx, a); err != nil {
				return nil, fmt.Errorf("create answer %s: %w", fa.Key, err)
			}
			if fa.Accepted {
				if a, err = store.Answers.Accept(ctx, a.ID, author.ID); err != nil {
					return nil, fmt.Errorf("accept answer %s: %w", fa.Key, err)
				}
			}
			res.Answers[fa.Key] = a
		}
	}

	for _, fv := range f.Votes {
		targetID, targetType := uint(0), models.TargetQuestion
		if fv.Answer != "" {
			targetID, targetType = res.Answers[fv.Answer].ID, models.TargetAnswer
		} else {
			targetID = res.Questions[fv.Question].ID
		}
		if _, err := store.Votes.Apply(ctx, res.Users[fv.User].ID, targetID, targetType, fv.Value); err != nil {
			return nil, fmt.Errorf("vote by %s: %w", fv.User, err)
		}
		res.Votes++
	}

	middleware.Logger.InfoContext(ctx, "seeded demo data",
		slog.Int("users", len(res.Users)),
		slog.Int("questions", len(res.Questions)),
		slog.Int("answers", len(res.Answers)),
		slog.Int("votes", res.Votes),
		slog.String("store", store.Kind()),
	)
	return res, nil
}
