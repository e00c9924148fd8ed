// Package repository provides the data access layer: a durable GORM store and
// an ephemeral in-memory store behind the same interfaces.
package repository

import (
	"context"
	"errors"

	"stackit/internal/database"
	"stackit/internal/models"

	"gorm.io/gorm"
)

// Store kinds reported by Store.Kind.
const (
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
	KindMemory   = "memory"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// GetByUsernames returns the users that exist among names; unknown names are skipped.
	GetByUsernames(ctx context.Context, names []string) ([]*models.User, error)
	// GetByIDs returns the users that exist among ids, ordered by id.
	GetByIDs(ctx context.Context, ids []uint) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) error
	// Exists reports whether email or username is already taken.
	Exists(ctx context.Context, email, username string) (bool, error)
}

// QuestionFilter selects one page of the question listing.
type QuestionFilter struct {
	Search string
	Limit  int
	Offset int
}

// QuestionRepository defines persistence operations for questions.
type QuestionRepository interface {
	Create(ctx context.Context, q *models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	// List returns the filtered page, newest first, and the filtered total.
	List(ctx context.Context, filter QuestionFilter) ([]*models.Question, int64, error)
	Tags(ctx context.Context) ([]models.TagCount, error)
}

// AnswerRepository defines persistence operations for answers.
type AnswerRepository interface {
	// Create stores the answer and increments the question's answersCount.
	Create(ctx context.Context, a *models.Answer) error
	GetByID(ctx context.Context, id uint) (*models.Answer, error)
	// ListByQuestion orders accepted first, then votes desc, then oldest first.
	ListByQuestion(ctx context.Context, questionID uint) ([]*models.Answer, error)
	// Accept marks answerID as the single accepted answer of its question
	// on behalf of requesterID, who must be the question author.
	Accept(ctx context.Context, answerID, requesterID uint) (*models.Answer, error)
}

// VoteResult is the outcome of applying a vote to the ledger.
type VoteResult struct {
	Votes    int `json:"votes"`
	Delta    int `json:"-"`
	Standing int `json:"userVote"`
}

// VoteRepository is the vote ledger and tally updater.
type VoteRepository interface {
	Apply(ctx context.Context, userID, targetID uint, targetType models.TargetType, value int) (*VoteResult, error)
	// Standing returns the caller's current vote on a target, 0 for none.
	Standing(ctx context.Context, userID, targetID uint, targetType models.TargetType) (int, error)
	// Standings returns the caller's non-zero votes among targetIDs.
	Standings(ctx context.Context, userID uint, targetType models.TargetType, targetIDs []uint) (map[uint]int, error)
}

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uint, limit int) ([]*models.Notification, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
}

// Store bundles the repositories selected at startup.
type Store struct {
	Users         UserRepository
	Questions     QuestionRepository
	Answers       AnswerRepository
	Votes         VoteRepository
	Notifications NotificationRepository

	kind string
	ping func(context.Context) error
}

// Kind names the backing implementation.
func (s *Store) Kind() string {
	return s.kind
}

// Durable reports whether writes survive a restart.
func (s *Store) Durable() bool {
	return s.kind != KindMemory
}

// Ping checks that the backing store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// NewGormStore returns a durable store backed by db.
func NewGormStore(db *gorm.DB) *Store {
	kind := KindSQLite
	if database.IsPostgres(db) {
		kind = KindPostgres
	}
	return &Store{
		Users:         NewUserRepository(db),
		Questions:     NewQuestionRepository(db),
		Answers:       NewAnswerRepository(db),
		Votes:         NewVoteRepository(db),
		Notifications: NewNotificationRepository(db),
		kind:          kind,
		ping:          func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
}

// mapError translates driver and GORM errors into AppErrors.
func mapError(err error, resource string, id any) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError(resource, id)
	case database.IsUniqueViolation(err):
		return models.NewConflictError(resource + " already exists")
	case database.IsConnectionError(err):
		return models.NewServiceUnavailableError(err)
	default:
		return models.NewInternalError(err)
	}
}
