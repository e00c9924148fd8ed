package repository

import (
	"context"
	"sort"
	"strings"

	"stackit/internal/models"
	"stackit/internal/observability"

	"gorm.io/gorm"
)

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository returns a GORM-backed QuestionRepository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) Create(ctx context.Context, q *models.Question) error {
	defer observability.TrackQuery("create", "questions")()
	if q.Tags == nil {
		q.Tags = models.Tags{}
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author").Create(q).Error; err != nil {
			return err
		}
		return tx.Preload("Author").First(q, q.ID).Error
	})
	return mapError(err, "Question", q.ID)
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var q models.Question
	if err := r.db.WithContext(ctx).Preload("Author").First(&q, id).Error; err != nil {
		return nil, mapError(err, "Question", id)
	}
	return &q, nil
}

// escapeLike escapes LIKE wildcards so the search term matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *questionRepository) List(ctx context.Context, filter QuestionFilter) ([]*models.Question, int64, error) {
	defer observability.TrackQuery("list", "questions")()

	base := r.db.WithContext(ctx).Model(&models.Question{})
	if term := models.NormalizeSearch(filter.Search); term != "" {
		base = base.Where(`search_text LIKE ? ESCAPE '\'`, "%"+escapeLike(term)+"%")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, mapError(err, "Question", "list")
	}

	questions := make([]*models.Question, 0, filter.Limit)
	err := base.Session(&gorm.Session{}).
		Preload("Author").
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&questions).Error
	if err != nil {
		return nil, 0, mapError(err, "Question", "list")
	}
	return questions, total, nil
}

func (r *questionRepository) Tags(ctx context.Context) ([]models.TagCount, error) {
	defer observability.TrackQuery("tags", "questions")()
	var lists []models.Tags
	if err := r.db.WithContext(ctx).Model(&models.Question{}).Pluck("tags", &lists).Error; err != nil {
		return nil, mapError(err, "Question", "tags")
	}
	return countTags(lists), nil
}

// countTags tallies tag usage, most used first then alphabetical.
func countTags(lists []models.Tags) []models.TagCount {
	counts := make(map[string]int)
	for _, tags := range lists {
		for _, t := range tags {
			counts[t]++
		}
	}
	out := make([]models.TagCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.TagCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
