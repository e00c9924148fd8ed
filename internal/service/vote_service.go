package service

import (
	"context"
	"log/slog"

	"stackit/internal/cache"
	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/observability"
	"stackit/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

type VoteService struct {
	votes   repository.VoteRepository
	answers repository.AnswerRepository
}

type VoteInput struct {
	UserID     uint
	TargetID   uint
	TargetType models.TargetType
	Value      int
}

func NewVoteService(votes repository.VoteRepository, answers repository.AnswerRepository) *VoteService {
	return &VoteService{votes: votes, answers: answers}
}

// Vote records the caller's vote and returns the target's new tally.
// Repeating a vote withdraws it; the opposite value flips it.
func (s *VoteService) Vote(ctx context.Context, in VoteInput) (*repository.VoteResult, error) {
	if in.TargetID == 0 || !in.TargetType.Valid() || (in.Value != 1 && in.Value != -1) {
		return nil, models.NewValidationError("Invalid vote data")
	}

	ctx, span := observability.StartServiceSpan(ctx, "VoteService", "Vote",
		attribute.String("vote.target_type", string(in.TargetType)),
		attribute.Int64("vote.target_id", int64(in.TargetID)),
		attribute.Int("vote.value", in.Value),
	)
	res, err := s.votes.Apply(ctx, in.UserID, in.TargetID, in.TargetType, in.Value)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	observability.VotesTotal.WithLabelValues(string(in.TargetType), observability.VoteOutcome(res.Delta, res.Standing)).Inc()
	s.invalidate(ctx, in.TargetID, in.TargetType)
	return res, nil
}

// ViewerVotes sets UserVote on the question and each answer of d to userID's
// current vote, 0 where none is recorded.
func (s *VoteService) ViewerVotes(ctx context.Context, userID uint, d *models.QuestionDetail) error {
	if userID == 0 || d == nil || d.Question == nil {
		return nil
	}
	qv, err := s.votes.Standing(ctx, userID, d.Question.ID, models.TargetQuestion)
	if err != nil {
		return err
	}
	d.Question.UserVote = &qv

	ids := make([]uint, len(d.Answers))
	for i, a := range d.Answers {
		ids[i] = a.ID
	}
	byAnswer, err := s.votes.Standings(ctx, userID, models.TargetAnswer, ids)
	if err != nil {
		return err
	}
	for _, a := range d.Answers {
		v := byAnswer[a.ID]
		a.UserVote = &v
	}
	return nil
}

func (s *VoteService) invalidate(ctx context.Context, targetID uint, targetType models.TargetType) {
	if targetType == models.TargetQuestion {
		cache.Invalidate(ctx, cache.QuestionKey(targetID))
		return
	}
	a, err := s.answers.GetByID(ctx, targetID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "could not resolve question for answer vote",
			slog.Uint64("answer_id", uint64(targetID)), slog.String("error", err.Error()))
		return
	}
	cache.Invalidate(ctx, cache.QuestionKey(a.QuestionID))
}
