package repository

import (
	"context"
	"errors"

	"stackit/internal/models"
	"stackit/internal/observability"

	"gorm.io/gorm"
)

// Reputation weights per vote point.
const (
	QuestionVoteWeight = 5
	AnswerVoteWeight   = 10
)

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository returns the GORM-backed vote ledger.
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// votable is the subset of a question or answer row the ledger touches.
type votable struct {
	ID       uint
	AuthorID uint
	Votes    int
}

func targetModel(t models.TargetType) (model any, resource string, weight int) {
	if t == models.TargetAnswer {
		return &models.Answer{}, "Answer", AnswerVoteWeight
	}
	return &models.Question{}, "Question", QuestionVoteWeight
}

// Apply mutates the ledger and the target's tally in one transaction. The
// target row is locked first so concurrent votes on it serialize.
func (r *voteRepository) Apply(ctx context.Context, userID, targetID uint, targetType models.TargetType, value int) (*VoteResult, error) {
	defer observability.TrackQuery("apply", "votes")()
	model, resource, weight := targetModel(targetType)

	var result VoteResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target votable
		if err := forUpdate(tx).Model(model).
			Select("id", "author_id", "votes").
			Where("id = ?", targetID).
			Take(&target).Error; err != nil {
			return mapError(err, resource, targetID)
		}

		var existing models.Vote
		previous := 0
		err := tx.Where("user_id = ? AND target_id = ? AND target_type = ?", userID, targetID, targetType).
			Take(&existing).Error
		switch {
		case err == nil:
			previous = existing.Value
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		delta, standing := models.VoteDelta(previous, value)
		switch {
		case previous == 0:
			err = tx.Create(&models.Vote{UserID: userID, TargetID: targetID, TargetType: targetType, Value: standing}).Error
		case standing == 0:
			err = tx.Delete(&existing).Error
		default:
			err = tx.Model(&existing).Update("value", standing).Error
		}
		if err != nil {
			return err
		}

		if err := tx.Model(model).
			Where("id = ?", targetID).
			UpdateColumn("votes", gorm.Expr("votes + ?", delta)).Error; err != nil {
			return err
		}
		if err := adjustReputation(tx, target.AuthorID, delta*weight); err != nil {
			return err
		}

		if err := tx.Model(model).Select("votes").Where("id = ?", targetID).Scan(&result.Votes).Error; err != nil {
			return err
		}
		result.Delta = delta
		result.Standing = standing
		return nil
	})
	if err != nil {
		return nil, mapError(err, "Vote", targetID)
	}
	return &result, nil
}

func (r *voteRepository) Standing(ctx context.Context, userID, targetID uint, targetType models.TargetType) (int, error) {
	var v models.Vote
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND target_id = ? AND target_type = ?", userID, targetID, targetType).
		Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, mapError(err, "Vote", targetID)
	}
	return v.Value, nil
}

func (r *voteRepository) Standings(ctx context.Context, userID uint, targetType models.TargetType, targetIDs []uint) (map[uint]int, error) {
	out := make(map[uint]int, len(targetIDs))
	if len(targetIDs) == 0 {
		return out, nil
	}
	var votes []models.Vote
	err := r.db.WithContext(ctx).
		Select("target_id", "value").
		Where("user_id = ? AND target_type = ? AND target_id IN ?", userID, targetType, targetIDs).
		Find(&votes).Error
	if err != nil {
		return nil, mapError(err, "Vote", "standings")
	}
	for _, v := range votes {
		out[v.TargetID] = v.Value
	}
	return out, nil
}
