package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"stackit/internal/models"
)

// memoryDB is the ephemeral store. One mutex guards every table so each
// operation is atomic with respect to all others. Values handed out are
// copies; callers never alias stored rows.
type memoryDB struct {
	mu sync.Mutex

	users         map[uint]*models.User
	questions     map[uint]*models.Question
	answers       map[uint]*models.Answer
	votes         map[voteKey]int
	notifications []*models.Notification

	nextUser, nextQuestion, nextAnswer, nextNotification uint
}

type voteKey struct {
	userID     uint
	targetID   uint
	targetType models.TargetType
}

// NewMemoryStore returns a mutex-guarded in-memory store. Its contents are
// lost when the process exits.
func NewMemoryStore() *Store {
	m := &memoryDB{
		users:     make(map[uint]*models.User),
		questions: make(map[uint]*models.Question),
		answers:   make(map[uint]*models.Answer),
		votes:     make(map[voteKey]int),
	}
	return &Store{
		Users:         memUsers{m},
		Questions:     memQuestions{m},
		Answers:       memAnswers{m},
		Votes:         memVotes{m},
		Notifications: memNotifications{m},
		kind:          KindMemory,
	}
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func (m *memoryDB) author(id uint) *models.User {
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (m *memoryDB) questionCopy(q *models.Question) *models.Question {
	cp := *q
	cp.Tags = append(models.Tags{}, q.Tags...)
	cp.Author = m.author(q.AuthorID)
	return &cp
}

func (m *memoryDB) answerCopy(a *models.Answer) *models.Answer {
	cp := *a
	cp.Author = m.author(a.AuthorID)
	return &cp
}

func (m *memoryDB) adjustReputation(userID uint, delta int) {
	if u, ok := m.users[userID]; ok {
		u.Reputation += delta
	}
}

type memUsers struct{ m *memoryDB }

func (r memUsers) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if u := r.m.author(id); u != nil {
		return u, nil
	}
	return nil, models.NewNotFoundError("User", id)
}

func (r memUsers) find(match func(*models.User) bool) *models.User {
	for _, u := range r.m.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if u := r.find(func(u *models.User) bool { return u.Email == email }); u != nil {
		return u, nil
	}
	return nil, models.NewNotFoundError("User", email)
}

func (r memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if u := r.find(func(u *models.User) bool { return u.Username == username }); u != nil {
		return u, nil
	}
	return nil, models.NewNotFoundError("User", username)
}

func (r memUsers) GetByUsernames(_ context.Context, names []string) ([]*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := make([]*models.User, 0, len(names))
	for _, u := range r.m.users {
		if _, ok := want[u.Username]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memUsers) GetByIDs(_ context.Context, ids []uint) ([]*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]*models.User, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if u, ok := r.m.users[id]; ok && !seen[id] {
			seen[id] = true
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memUsers) Create(_ context.Context, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.find(func(u *models.User) bool { return u.Email == user.Email || u.Username == user.Username }) != nil {
		return models.NewConflictError("User already exists")
	}
	r.m.nextUser++
	user.ID = r.m.nextUser
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	stamp(&user.CreatedAt, &user.UpdatedAt)
	cp := *user
	r.m.users[cp.ID] = &cp
	return nil
}

func (r memUsers) Exists(_ context.Context, email, username string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.find(func(u *models.User) bool { return u.Email == email || u.Username == username }) != nil, nil
}

type memQuestions struct{ m *memoryDB }

func (r memQuestions) Create(_ context.Context, q *models.Question) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.nextQuestion++
	q.ID = r.m.nextQuestion
	if q.Tags == nil {
		q.Tags = models.Tags{}
	}
	q.BuildSearchText()
	stamp(&q.CreatedAt, &q.UpdatedAt)
	stored := *q
	stored.Author = nil
	stored.Tags = append(models.Tags{}, q.Tags...)
	r.m.questions[q.ID] = &stored
	q.Author = r.m.author(q.AuthorID)
	return nil
}

func (r memQuestions) GetByID(_ context.Context, id uint) (*models.Question, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	q, ok := r.m.questions[id]
	if !ok {
		return nil, models.NewNotFoundError("Question", id)
	}
	return r.m.questionCopy(q), nil
}

func (r memQuestions) List(_ context.Context, filter QuestionFilter) ([]*models.Question, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	term := models.NormalizeSearch(filter.Search)
	matched := make([]*models.Question, 0, len(r.m.questions))
	for _, q := range r.m.questions {
		if q.MatchesSearch(term) {
			matched = append(matched, q)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := min(filter.Offset, len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}

	page := make([]*models.Question, 0, end-start)
	for _, q := range matched[start:end] {
		page = append(page, r.m.questionCopy(q))
	}
	return page, total, nil
}

func (r memQuestions) Tags(_ context.Context) ([]models.TagCount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	lists := make([]models.Tags, 0, len(r.m.questions))
	for _, q := range r.m.questions {
		lists = append(lists, q.Tags)
	}
	return countTags(lists), nil
}

type memAnswers struct{ m *memoryDB }

func (r memAnswers) Create(_ context.Context, a *models.Answer) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	q, ok := r.m.questions[a.QuestionID]
	if !ok {
		return models.NewNotFoundError("Question", a.QuestionID)
	}
	r.m.nextAnswer++
	a.ID = r.m.nextAnswer
	a.IsAccepted = false
	stamp(&a.CreatedAt, &a.UpdatedAt)
	stored := *a
	stored.Author = nil
	r.m.answers[a.ID] = &stored
	q.AnswersCount++
	a.Author = r.m.author(a.AuthorID)
	return nil
}

func (r memAnswers) GetByID(_ context.Context, id uint) (*models.Answer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.answers[id]
	if !ok {
		return nil, models.NewNotFoundError("Answer", id)
	}
	return r.m.answerCopy(a), nil
}

func (r memAnswers) ListByQuestion(_ context.Context, questionID uint) ([]*models.Answer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]*models.Answer, 0)
	for _, a := range r.m.answers {
		if a.QuestionID == questionID {
			out = append(out, r.m.answerCopy(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsAccepted != b.IsAccepted {
			return a.IsAccepted
		}
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r memAnswers) Accept(_ context.Context, answerID, requesterID uint) (*models.Answer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	answer, ok := r.m.answers[answerID]
	if !ok {
		return nil, models.NewNotFoundError("Answer", answerID)
	}
	question, ok := r.m.questions[answer.QuestionID]
	if !ok {
		return nil, models.NewNotFoundError("Question", answer.QuestionID)
	}
	if question.AuthorID != requesterID {
		return nil, models.NewForbiddenError("Only question author can accept answers")
	}
	if answer.IsAccepted {
		return r.m.answerCopy(answer), nil
	}

	for _, other := range r.m.answers {
		if other.QuestionID == question.ID && other.IsAccepted {
			other.IsAccepted = false
			r.m.adjustReputation(other.AuthorID, -AcceptReputation)
		}
	}
	answer.IsAccepted = true
	answer.UpdatedAt = time.Now()
	r.m.adjustReputation(answer.AuthorID, AcceptReputation)
	return r.m.answerCopy(answer), nil
}

type memVotes struct{ m *memoryDB }

func (r memVotes) Apply(_ context.Context, userID, targetID uint, targetType models.TargetType, value int) (*VoteResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var (
		votes    *int
		authorID uint
		weight   int
	)
	switch targetType {
	case models.TargetQuestion:
		q, ok := r.m.questions[targetID]
		if !ok {
			return nil, models.NewNotFoundError("Question", targetID)
		}
		votes, authorID, weight = &q.Votes, q.AuthorID, QuestionVoteWeight
	case models.TargetAnswer:
		a, ok := r.m.answers[targetID]
		if !ok {
			return nil, models.NewNotFoundError("Answer", targetID)
		}
		votes, authorID, weight = &a.Votes, a.AuthorID, AnswerVoteWeight
	default:
		return nil, models.NewValidationError("Invalid vote data")
	}

	key := voteKey{userID: userID, targetID: targetID, targetType: targetType}
	delta, standing := models.VoteDelta(r.m.votes[key], value)
	if standing == 0 {
		delete(r.m.votes, key)
	} else {
		r.m.votes[key] = standing
	}
	*votes += delta
	r.m.adjustReputation(authorID, delta*weight)

	return &VoteResult{Votes: *votes, Delta: delta, Standing: standing}, nil
}

func (r memVotes) Standing(_ context.Context, userID, targetID uint, targetType models.TargetType) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.votes[voteKey{userID: userID, targetID: targetID, targetType: targetType}], nil
}

func (r memVotes) Standings(_ context.Context, userID uint, targetType models.TargetType, targetIDs []uint) (map[uint]int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make(map[uint]int)
	for _, id := range targetIDs {
		if v := r.m.votes[voteKey{userID: userID, targetID: id, targetType: targetType}]; v != 0 {
			out[id] = v
		}
	}
	return out, nil
}

type memNotifications struct{ m *memoryDB }

func (r memNotifications) Create(_ context.Context, n *models.Notification) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.nextNotification++
	n.ID = r.m.nextNotification
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	r.m.notifications = append(r.m.notifications, &cp)
	return nil
}

func (r memNotifications) ListByUser(_ context.Context, userID uint, limit int) ([]*models.Notification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]*models.Notification, 0)
	// Appended in creation order, so walk backwards for newest first.
	for i := len(r.m.notifications) - 1; i >= 0; i-- {
		n := r.m.notifications[i]
		if n.UserID != userID {
			continue
		}
		cp := *n
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memNotifications) MarkAllRead(_ context.Context, userID uint) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var updated int64
	for _, n := range r.m.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}
