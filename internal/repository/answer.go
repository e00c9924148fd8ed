package repository

import (
	"context"

	"stackit/internal/database"
	"stackit/internal/models"
	"stackit/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AcceptReputation is the reputation granted for an accepted answer.
const AcceptReputation = 15

type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository returns a GORM-backed AnswerRepository.
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

// forUpdate locks selected rows on PostgreSQL. SQLite serializes writers on
// its own and has no row locks.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if database.IsPostgres(tx) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (r *answerRepository) Create(ctx context.Context, a *models.Answer) error {
	defer observability.TrackQuery("create", "answers")()
	a.IsAccepted = false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Question{}).
			Where("id = ?", a.QuestionID).
			UpdateColumn("answers_count", gorm.Expr("answers_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Question", a.QuestionID)
		}
		if err := tx.Omit("Author").Create(a).Error; err != nil {
			return err
		}
		return tx.Preload("Author").First(a, a.ID).Error
	})
	return mapError(err, "Answer", a.ID)
}

func (r *answerRepository) GetByID(ctx context.Context, id uint) (*models.Answer, error) {
	var a models.Answer
	if err := r.db.WithContext(ctx).Preload("Author").First(&a, id).Error; err != nil {
		return nil, mapError(err, "Answer", id)
	}
	return &a, nil
}

func (r *answerRepository) ListByQuestion(ctx context.Context, questionID uint) ([]*models.Answer, error) {
	answers := make([]*models.Answer, 0)
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("question_id = ?", questionID).
		Order("is_accepted DESC").
		Order("votes DESC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, mapError(err, "Answer", questionID)
	}
	return answers, nil
}

func (r *answerRepository) Accept(ctx context.Context, answerID, requesterID uint) (*models.Answer, error) {
	defer observability.TrackQuery("accept", "answers")()

	var answer models.Answer
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&answer, answerID).Error; err != nil {
			return mapError(err, "Answer", answerID)
		}

		var question models.Question
		if err := forUpdate(tx).Select("id", "author_id").First(&question, answer.QuestionID).Error; err != nil {
			return mapError(err, "Question", answer.QuestionID)
		}
		if question.AuthorID != requesterID {
			return models.NewForbiddenError("Only question author can accept answers")
		}
		// Re-read under the question lock; a concurrent accept may have
		// committed since the first read.
		var accepted []bool
		if err := tx.Model(&models.Answer{}).Where("id = ?", answer.ID).Pluck("is_accepted", &accepted).Error; err != nil {
			return err
		}
		if len(accepted) == 1 && accepted[0] {
			answer.IsAccepted = true
			return nil
		}

		var previous []models.Answer
		if err := tx.Select("id", "author_id").
			Where("question_id = ? AND is_accepted = ?", question.ID, true).
			Find(&previous).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Answer{}).
			Where("question_id = ? AND is_accepted = ?", question.ID, true).
			UpdateColumn("is_accepted", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Answer{}).
			Where("id = ?", answer.ID).
			UpdateColumn("is_accepted", true).Error; err != nil {
			return err
		}

		for _, p := range previous {
			if err := adjustReputation(tx, p.AuthorID, -AcceptReputation); err != nil {
				return err
			}
		}
		return adjustReputation(tx, answer.AuthorID, AcceptReputation)
	})
	if err != nil {
		return nil, mapError(err, "Answer", answerID)
	}
	return r.GetByID(ctx, answerID)
}

func adjustReputation(tx *gorm.DB, userID uint, delta int) error {
	if userID == 0 || delta == 0 {
		return nil
	}
	return tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("reputation", gorm.Expr("reputation + ?", delta)).Error
}
