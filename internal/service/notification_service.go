package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"stackit/internal/featureflags"
	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/notifications"
	"stackit/internal/observability"
	"stackit/internal/repository"
)

const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 100
)

var mentionRegex = regexp.MustCompile(`@([\w]+)`)

// Publisher pushes an event to a user's live connections.
type Publisher interface {
	PublishEvent(ctx context.Context, userID uint, ev notifications.Event) error
}

type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	questions     repository.QuestionRepository
	publisher     Publisher
	flags         *featureflags.Manager
}

func NewNotificationService(
	notifs repository.NotificationRepository,
	users repository.UserRepository,
	questions repository.QuestionRepository,
	publisher Publisher,
	flags *featureflags.Manager,
) *NotificationService {
	return &NotificationService{
		notifications: notifs,
		users:         users,
		questions:     questions,
		publisher:     publisher,
		flags:         flags,
	}
}

// Mentions returns the distinct @usernames in content, in order of appearance.
func Mentions(content string) []string {
	matches := mentionRegex.FindAllStringSubmatch(content, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

// AnswerCreated notifies the question author and any mentioned users.
// Each failure is collected; delivery to the remaining recipients continues.
func (s *NotificationService) AnswerCreated(ctx context.Context, answer *models.Answer) error {
	answerer := answer.Author
	if answerer == nil {
		u, err := s.users.GetByID(ctx, answer.AuthorID)
		if err != nil {
			return err
		}
		answerer = u
	}

	q, err := s.questions.GetByID(ctx, answer.QuestionID)
	if err != nil {
		return err
	}

	var errs []error
	if q.AuthorID != answer.AuthorID {
		errs = append(errs, s.send(ctx, &models.Notification{
			UserID:     q.AuthorID,
			Kind:       models.NotificationAnswer,
			Message:    fmt.Sprintf("Your question was answered by %s", answerer.Username),
			QuestionID: q.ID,
			AnswerID:   answer.ID,
		}))
	}

	if !s.flags.Enabled(featureflags.FlagMentionNotifications, answer.AuthorID) {
		return errors.Join(errs...)
	}
	names := Mentions(answer.Content)
	if len(names) == 0 {
		return errors.Join(errs...)
	}
	mentioned, err := s.users.GetByUsernames(ctx, names)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	for _, u := range mentioned {
		if u.ID == answer.AuthorID {
			continue
		}
		errs = append(errs, s.send(ctx, &models.Notification{
			UserID:     u.ID,
			Kind:       models.NotificationMention,
			Message:    fmt.Sprintf("You were mentioned by %s", answerer.Username),
			QuestionID: q.ID,
			AnswerID:   answer.ID,
		}))
	}
	return errors.Join(errs...)
}

func (s *NotificationService) send(ctx context.Context, n *models.Notification) error {
	if err := s.notifications.Create(ctx, n); err != nil {
		return err
	}
	observability.NotificationsTotal.WithLabelValues(string(n.Kind)).Inc()

	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishEvent(ctx, n.UserID, notifications.Event{Type: "notification", Payload: n}); err != nil {
		// Stored already; the client picks it up on its next fetch.
		middleware.Logger.WarnContext(ctx, "notification publish failed",
			slog.Uint64("user_id", uint64(n.UserID)), slog.String("error", err.Error()))
	}
	return nil
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit int) ([]*models.Notification, error) {
	if limit < 1 {
		limit = DefaultNotificationLimit
	}
	if limit > MaxNotificationLimit {
		limit = MaxNotificationLimit
	}
	return s.notifications.ListByUser(ctx, userID, limit)
}

// MarkAllRead marks every unread notification of userID and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}
