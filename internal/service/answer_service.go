package service

import (
	"context"
	"log/slog"
	"strings"

	"stackit/internal/cache"
	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/observability"
	"stackit/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// AnswerNotifier is told about new answers after they are stored.
type AnswerNotifier interface {
	AnswerCreated(ctx context.Context, answer *models.Answer) error
}

type AnswerService struct {
	answers  repository.AnswerRepository
	notifier AnswerNotifier
}

type CreateAnswerInput struct {
	AuthorID   uint
	QuestionID uint
	Content    string
}

func NewAnswerService(answers repository.AnswerRepository, notifier AnswerNotifier) *AnswerService {
	return &AnswerService{answers: answers, notifier: notifier}
}

func (s *AnswerService) Create(ctx context.Context, in CreateAnswerInput) (*models.Answer, error) {
	content := strings.TrimSpace(in.Content)
	if in.QuestionID == 0 || content == "" {
		return nil, models.NewValidationError("Question ID and content are required")
	}

	a := &models.Answer{
		QuestionID: in.QuestionID,
		Content:    content,
		AuthorID:   in.AuthorID,
	}
	if err := s.answers.Create(ctx, a); err != nil {
		return nil, err
	}
	cache.Invalidate(ctx, cache.QuestionKey(a.QuestionID))

	if s.notifier != nil {
		if err := s.notifier.AnswerCreated(ctx, a); err != nil {
			middleware.Logger.WarnContext(ctx, "answer notifications failed",
				slog.Uint64("answer_id", uint64(a.ID)), slog.String("error", err.Error()))
		}
	}
	return a, nil
}

// Accept makes answerID the accepted answer of its question. Only the
// question author may do this; accepting the current answer again is a no-op.
func (s *AnswerService) Accept(ctx context.Context, requesterID, answerID uint) (*models.Answer, error) {
	ctx, span := observability.StartServiceSpan(ctx, "AnswerService", "Accept",
		attribute.Int64("answer.id", int64(answerID)),
		attribute.Int64("user.id", int64(requesterID)),
	)
	a, err := s.answers.Accept(ctx, answerID, requesterID)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	observability.AcceptancesTotal.Inc()
	cache.Invalidate(ctx, cache.QuestionKey(a.QuestionID))
	return a, nil
}
