package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"stackit/internal/models"
	"stackit/internal/notifications"
	"stackit/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStub = errors.New("stub failure")

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	getByUsernameFn  func(context.Context, string) (*models.User, error)
	getByUsernamesFn func(context.Context, []string) ([]*models.User, error)
	getByIDsFn       func(context.Context, []uint) ([]*models.User, error)
	createFn         func(context.Context, *models.User) error
	existsFn         func(context.Context, string, string) (bool, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) GetByUsernames(ctx context.Context, names []string) ([]*models.User, error) {
	return s.getByUsernamesFn(ctx, names)
}
func (s *userRepoStub) GetByIDs(ctx context.Context, ids []uint) ([]*models.User, error) {
	return s.getByIDsFn(ctx, ids)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Exists(ctx context.Context, email, username string) (bool, error) {
	return s.existsFn(ctx, email, username)
}

func noopUserRepo() *userRepoStub {
	notFound := func(_ context.Context, key string) (*models.User, error) {
		return nil, models.NewNotFoundError("User", key)
	}
	return &userRepoStub{
		getByIDFn:        func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByEmailFn:     notFound,
		getByUsernameFn:  notFound,
		getByUsernamesFn: func(_ context.Context, _ []string) ([]*models.User, error) { return nil, nil },
		getByIDsFn:       func(_ context.Context, _ []uint) ([]*models.User, error) { return nil, nil },
		createFn: func(_ context.Context, u *models.User) error {
			u.ID = 1
			return nil
		},
		existsFn: func(_ context.Context, _, _ string) (bool, error) { return false, nil },
	}
}

// questionRepoStub is a stub for repository.QuestionRepository.
type questionRepoStub struct {
	createFn  func(context.Context, *models.Question) error
	getByIDFn func(context.Context, uint) (*models.Question, error)
	listFn    func(context.Context, repository.QuestionFilter) ([]*models.Question, int64, error)
	tagsFn    func(context.Context) ([]models.TagCount, error)
}

func (s *questionRepoStub) Create(ctx context.Context, q *models.Question) error {
	return s.createFn(ctx, q)
}
func (s *questionRepoStub) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	return s.getByIDFn(ctx, id)
}
func (s *questionRepoStub) List(ctx context.Context, f repository.QuestionFilter) ([]*models.Question, int64, error) {
	return s.listFn(ctx, f)
}
func (s *questionRepoStub) Tags(ctx context.Context) ([]models.TagCount, error) {
	return s.tagsFn(ctx)
}

func noopQuestionRepo() *questionRepoStub {
	return &questionRepoStub{
		createFn:  func(_ context.Context, _ *models.Question) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Question, error) { return &models.Question{ID: id}, nil },
		listFn: func(_ context.Context, _ repository.QuestionFilter) ([]*models.Question, int64, error) {
			return []*models.Question{}, 0, nil
		},
		tagsFn: func(_ context.Context) ([]models.TagCount, error) { return []models.TagCount{}, nil },
	}
}

// answerRepoStub is a stub for repository.AnswerRepository.
type answerRepoStub struct {
	createFn         func(context.Context, *models.Answer) error
	getByIDFn        func(context.Context, uint) (*models.Answer, error)
	listByQuestionFn func(context.Context, uint) ([]*models.Answer, error)
	acceptFn         func(context.Context, uint, uint) (*models.Answer, error)
}

func (s *answerRepoStub) Create(ctx context.Context, a *models.Answer) error {
	return s.createFn(ctx, a)
}
func (s *answerRepoStub) GetByID(ctx context.Context, id uint) (*models.Answer, error) {
	return s.getByIDFn(ctx, id)
}
func (s *answerRepoStub) ListByQuestion(ctx context.Context, questionID uint) ([]*models.Answer, error) {
	return s.listByQuestionFn(ctx, questionID)
}
func (s *answerRepoStub) Accept(ctx context.Context, answerID, requesterID uint) (*models.Answer, error) {
	return s.acceptFn(ctx, answerID, requesterID)
}

func noopAnswerRepo() *answerRepoStub {
	return &answerRepoStub{
		createFn:         func(_ context.Context, _ *models.Answer) error { return nil },
		getByIDFn:        func(_ context.Context, id uint) (*models.Answer, error) { return &models.Answer{ID: id}, nil },
		listByQuestionFn: func(_ context.Context, _ uint) ([]*models.Answer, error) { return []*models.Answer{}, nil },
		acceptFn: func(_ context.Context, answerID, _ uint) (*models.Answer, error) {
			return &models.Answer{ID: answerID, IsAccepted: true}, nil
		},
	}
}

// voteRepoStub is a stub for repository.VoteRepository.
type voteRepoStub struct {
	applyFn     func(context.Context, uint, uint, models.TargetType, int) (*repository.VoteResult, error)
	standingFn  func(context.Context, uint, uint, models.TargetType) (int, error)
	standingsFn func(context.Context, uint, models.TargetType, []uint) (map[uint]int, error)
}

func (s *voteRepoStub) Apply(ctx context.Context, userID, targetID uint, tt models.TargetType, value int) (*repository.VoteResult, error) {
	return s.applyFn(ctx, userID, targetID, tt, value)
}
func (s *voteRepoStub) Standing(ctx context.Context, userID, targetID uint, tt models.TargetType) (int, error) {
	return s.standingFn(ctx, userID, targetID, tt)
}
func (s *voteRepoStub) Standings(ctx context.Context, userID uint, tt models.TargetType, ids []uint) (map[uint]int, error) {
	return s.standingsFn(ctx, userID, tt, ids)
}

// notificationRepoStub records created notifications.
type notificationRepoStub struct {
	mu        sync.Mutex
	created   []*models.Notification
	createErr error
	listFn    func(context.Context, uint, int) ([]*models.Notification, error)
	markFn    func(context.Context, uint) (int64, error)
}

func (s *notificationRepoStub) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	n.ID = uint(len(s.created) + 1)
	s.created = append(s.created, n)
	return nil
}
func (s *notificationRepoStub) ListByUser(ctx context.Context, userID uint, limit int) ([]*models.Notification, error) {
	return s.listFn(ctx, userID, limit)
}
func (s *notificationRepoStub) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.markFn(ctx, userID)
}

// publisherStub records published events per user.
type publisherStub struct {
	mu     sync.Mutex
	events map[uint][]notifications.Event
	err    error
}

func (p *publisherStub) PublishEvent(_ context.Context, userID uint, ev notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[uint][]notifications.Event{}
	}
	p.events[userID] = append(p.events[userID], ev)
	return p.err
}

func assertValidationError(t *testing.T, err error, message string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T", err)
	assert.Equal(t, models.CodeValidation, appErr.Code)
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
}
