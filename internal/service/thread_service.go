package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/locks"
	"github.com/spec-kit/issue-service/internal/repository"
	apperrors "github.com/spec-kit/issue-service/pkg/util"
)

const unreadCacheTTL = time.Minute

// ThreadService manages the ordered conversation attached to one issue.
type ThreadService struct {
	issues     repository.IssueRepository
	messages   repository.MessageRepository
	locks      *locks.KeyedMutex
	dispatcher events.Dispatcher
	cache      *redis.Client
}

// ThreadDependencies bundles collaborators for the thread service. Cache is
// optional; without it unread counts always hit the database.
type ThreadDependencies struct {
	IssueRepo   repository.IssueRepository
	MessageRepo repository.MessageRepository
	Locks       *locks.KeyedMutex
	Dispatcher  events.Dispatcher
	Cache       *redis.Client
}

// NewThreadService constructs the service.
func NewThreadService(deps ThreadDependencies) *ThreadService {
	return &ThreadService{
		issues:     deps.IssueRepo,
		messages:   deps.MessageRepo,
		locks:      deps.Locks,
		dispatcher: deps.Dispatcher,
		cache:      deps.Cache,
	}
}

// Append adds a message to the issue's thread. Reporters cannot message a
// CLOSED issue; staff always can.
func (s *ThreadService) Append(ctx context.Context, caller *domain.Identity, issueID, content string) (*domain.Message, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("message content must not be empty", nil)
	}

	var msg *domain.Message
	err := s.locks.WithLock(issueID, func() error {
		issue, err := s.threadIssue(ctx, issueID)
		if err != nil {
			return err
		}
		if err := s.checkThreadAccess(issue, caller); err != nil {
			return err
		}
		sender := domain.SenderForRole(caller.Role)
		if sender == domain.SenderUser && issue.Status == domain.IssueStatusClosed {
			return apperrors.NewForbidden("cannot message a closed issue")
		}

		msg = &domain.Message{
			IssueID: issue.ID,
			Sender:  sender,
			Content: content,
		}
		if err := s.messages.Create(ctx, msg); err != nil {
			return apperrors.MapError(err)
		}
		s.invalidateUnread(ctx, issueID, sender)
		s.publishEvent(ctx, events.Event{
			Type:    events.EventMessageAppended,
			IssueID: issue.ID,
			Actor:   actorFor(caller),
			Payload: events.MessageAppendedPayload{
				MessageID:      msg.ID,
				Sender:         msg.Sender,
				ContentPreview: contentPreview(msg.Content, 120),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkRead marks the given messages as read by the caller. Only messages
// authored by the opposite party are affected; unknown ids are ignored, so
// the call is idempotent.
func (s *ThreadService) MarkRead(ctx context.Context, caller *domain.Identity, issueID string, messageIDs []string) error {
	if caller == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if len(messageIDs) == 0 {
		return nil
	}
	return s.locks.WithLock(issueID, func() error {
		issue, err := s.threadIssue(ctx, issueID)
		if err != nil {
			return err
		}
		if err := s.checkThreadAccess(issue, caller); err != nil {
			return err
		}
		target := domain.SenderForRole(caller.Role).Opposite()
		if err := s.messages.MarkRead(ctx, issueID, messageIDs, target); err != nil {
			return apperrors.MapError(err)
		}
		s.invalidateUnread(ctx, issueID, target)
		return nil
	})
}

// UnreadCount returns how many messages from the opposite party the caller
// has not read yet.
func (s *ThreadService) UnreadCount(ctx context.Context, caller *domain.Identity, issueID string) (int, error) {
	if caller == nil {
		return 0, apperrors.NewUnauthorized("authentication required")
	}
	issue, err := s.threadIssue(ctx, issueID)
	if err != nil {
		return 0, err
	}
	if err := s.checkThreadAccess(issue, caller); err != nil {
		return 0, err
	}
	sender := domain.SenderForRole(caller.Role).Opposite()

	if cached, ok := s.cachedUnread(ctx, issueID, sender); ok {
		return cached, nil
	}
	count, err := s.messages.CountUnread(ctx, issueID, sender)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	s.storeUnread(ctx, issueID, sender, count)
	return count, nil
}

// ListThread returns the thread in append order.
func (s *ThreadService) ListThread(ctx context.Context, caller *domain.Identity, issueID string) ([]domain.Message, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	issue, err := s.threadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if err := s.checkThreadAccess(issue, caller); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByIssue(ctx, issueID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

func (s *ThreadService) threadIssue(ctx context.Context, issueID string) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.MapError(err)
	}
	return issue, nil
}

func (s *ThreadService) checkThreadAccess(issue *domain.Issue, caller *domain.Identity) error {
	if caller.IsStaff() || issue.ReportedBy(caller) {
		return nil
	}
	return apperrors.NewForbidden("access denied")
}

func unreadCacheKey(issueID string, sender domain.MessageSender) string {
	return "issue:" + issueID + ":unread:" + string(sender)
}

func (s *ThreadService) cachedUnread(ctx context.Context, issueID string, sender domain.MessageSender) (int, bool) {
	if s.cache == nil {
		return 0, false
	}
	val, err := s.cache.Get(ctx, unreadCacheKey(issueID, sender)).Result()
	if err != nil {
		return 0, false
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return count, true
}

func (s *ThreadService) storeUnread(ctx context.Context, issueID string, sender domain.MessageSender, count int) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, unreadCacheKey(issueID, sender), strconv.Itoa(count), unreadCacheTTL).Err()
}

func (s *ThreadService) invalidateUnread(ctx context.Context, issueID string, sender domain.MessageSender) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, unreadCacheKey(issueID, sender)).Err()
}

func (s *ThreadService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func contentPreview(content string, max int) string {
	content = strings.TrimSpace(content)
	if len(content) <= max {
		return content
	}
	if max <= 3 {
		return content[:max]
	}
	return content[:max-3] + "..."
}
