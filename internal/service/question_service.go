// Package service holds the application use cases: validation, caching,
// metrics and notification fan-out around the repositories.
package service

import (
	"context"
	"log/slog"
	"strings"

	"stackit/internal/cache"
	"stackit/internal/featureflags"
	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/observability"
	"stackit/internal/repository"
	"stackit/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Paging defaults for the question listing.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type QuestionService struct {
	questions repository.QuestionRepository
	answers   repository.AnswerRepository
	users     repository.UserRepository
	flags     *featureflags.Manager
}

type ListQuestionsInput struct {
	Search string
	Page   int
	Limit  int
}

type CreateQuestionInput struct {
	AuthorID    uint
	Title       string
	Description string
	Tags        []string
}

func NewQuestionService(
	questions repository.QuestionRepository,
	answers repository.AnswerRepository,
	users repository.UserRepository,
	flags *featureflags.Manager,
) *QuestionService {
	return &QuestionService{questions: questions, answers: answers, users: users, flags: flags}
}

// NormalizePaging applies listing defaults: page and limit below 1 fall back
// to the defaults and limit is capped at MaxLimit.
func NormalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func (s *QuestionService) List(ctx context.Context, in ListQuestionsInput) (*models.QuestionPage, error) {
	page, limit := NormalizePaging(in.Page, in.Limit)
	questions, total, err := s.questions.List(ctx, repository.QuestionFilter{
		Search: strings.TrimSpace(in.Search),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	return &models.QuestionPage{Questions: questions, Total: total, Page: page, Limit: limit}, nil
}

// Get returns the question with its answers, accepted first.
func (s *QuestionService) Get(ctx context.Context, id uint) (*models.QuestionDetail, error) {
	ctx, span := observability.StartServiceSpan(ctx, "QuestionService", "Get", attribute.Int64("question.id", int64(id)))
	var detail models.QuestionDetail
	fetch := func() error {
		q, err := s.questions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		answers, err := s.answers.ListByQuestion(ctx, id)
		if err != nil {
			return err
		}
		detail = models.QuestionDetail{Question: q, Answers: answers}
		return nil
	}

	var err error
	if s.flags.Enabled(featureflags.FlagQuestionCache, 0) {
		err = cache.Aside(ctx, "question", cache.QuestionKey(id), &detail, cache.QuestionTTL, fetch)
		if err == nil {
			s.refreshAuthors(ctx, &detail)
		}
	} else {
		err = fetch()
	}
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// refreshAuthors swaps the author snapshots of a possibly cached detail for
// current rows. Reputation moves on votes elsewhere without invalidating
// the entry. On failure the snapshots are served as they are.
func (s *QuestionService) refreshAuthors(ctx context.Context, d *models.QuestionDetail) {
	if s.users == nil || d.Question == nil {
		return
	}
	ids := make([]uint, 0, len(d.Answers)+1)
	ids = append(ids, d.Question.AuthorID)
	for _, a := range d.Answers {
		ids = append(ids, a.AuthorID)
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "could not refresh question authors",
			slog.Uint64("question_id", uint64(d.Question.ID)), slog.String("error", err.Error()))
		return
	}
	byID := make(map[uint]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	if u, ok := byID[d.Question.AuthorID]; ok {
		d.Question.Author = u
	}
	for _, a := range d.Answers {
		if u, ok := byID[a.AuthorID]; ok {
			a.Author = u
		}
	}
}

func (s *QuestionService) Create(ctx context.Context, in CreateQuestionInput) (*models.Question, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return nil, models.NewValidationError("Title and description are required")
	}
	if err := validation.ValidateTitle(title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	tags, err := validation.NormalizeTags(in.Tags)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	q := &models.Question{
		Title:       title,
		Description: description,
		Tags:        tags,
		AuthorID:    in.AuthorID,
	}
	if err := s.questions.Create(ctx, q); err != nil {
		return nil, err
	}
	cache.Invalidate(ctx, cache.TagsKey)
	return q, nil
}

// Tags lists every tag in use, most used first.
func (s *QuestionService) Tags(ctx context.Context) ([]models.TagCount, error) {
	var tags []models.TagCount
	fetch := func() error {
		var err error
		tags, err = s.questions.Tags(ctx)
		return err
	}
	if !s.flags.Enabled(featureflags.FlagQuestionCache, 0) {
		if err := fetch(); err != nil {
			return nil, err
		}
		return tags, nil
	}
	if err := cache.Aside(ctx, "tags", cache.TagsKey, &tags, cache.TagsTTL, fetch); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []models.TagCount{}
	}
	return tags, nil
}
