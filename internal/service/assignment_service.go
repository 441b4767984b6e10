package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/locks"
	"github.com/spec-kit/issue-service/internal/repository"
	apperrors "github.com/spec-kit/issue-service/pkg/util"
)

// AssignmentService manages the single active technician slot per issue.
type AssignmentService struct {
	issues      repository.IssueRepository
	images      repository.ImageRepository
	technicians repository.TechnicianRepository
	messages    repository.MessageRepository
	locks       *locks.KeyedMutex
	dispatcher  events.Dispatcher
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	IssueRepo      repository.IssueRepository
	ImageRepo      repository.ImageRepository
	TechnicianRepo repository.TechnicianRepository
	MessageRepo    repository.MessageRepository
	Locks          *locks.KeyedMutex
	Dispatcher     events.Dispatcher
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		issues:      deps.IssueRepo,
		images:      deps.ImageRepo,
		technicians: deps.TechnicianRepo,
		messages:    deps.MessageRepo,
		locks:       deps.Locks,
		dispatcher:  deps.Dispatcher,
	}
}

// Assign puts a technician on the issue. An already-active assignment is
// removed first and retained as the single history entry. The optional
// message is appended to the thread as ADMIN so the reporter sees it in-band.
func (s *AssignmentService) Assign(ctx context.Context, caller *domain.Identity, issueID, name, phone string, message *string) (*domain.Issue, error) {
	if !caller.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" || phone == "" {
		return nil, apperrors.NewValidationError("technician name and phone required", nil)
	}

	var updated *domain.Issue
	err := s.locks.WithLock(issueID, func() error {
		issue, err := s.assignmentIssue(ctx, issueID)
		if err != nil {
			return err
		}

		active, err := s.technicians.GetActiveByIssue(ctx, issueID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return apperrors.MapError(err)
		}
		if active != nil {
			if err := s.technicians.MarkRemoved(ctx, active.ID, time.Now(), nil); err != nil {
				return apperrors.MapError(err)
			}
			if err := s.technicians.PruneRemoved(ctx, issueID, active.ID); err != nil {
				return apperrors.MapError(err)
			}
		}

		assignment := &domain.TechnicianAssignment{
			IssueID: issueID,
			Name:    name,
			Phone:   phone,
		}
		if err := s.technicians.Create(ctx, assignment); err != nil {
			return apperrors.MapError(err)
		}
		if err := s.appendInfoMessage(ctx, issueID, message); err != nil {
			return err
		}
		if err := s.issues.Update(ctx, issue); err != nil {
			return apperrors.MapError(err)
		}
		issue.Technician = assignment

		s.publishEvent(ctx, events.Event{
			Type:    events.EventTechnicianAssigned,
			IssueID: issueID,
			Actor:   actorFor(caller),
			Payload: events.TechnicianAssignedPayload{Name: name, Phone: phone},
		})
		updated = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, updated)
}

// Remove vacates the active technician slot, retaining the record with its
// removal timestamp and optional message.
func (s *AssignmentService) Remove(ctx context.Context, caller *domain.Identity, issueID string, message *string) (*domain.Issue, error) {
	if !caller.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}

	var updated *domain.Issue
	err := s.locks.WithLock(issueID, func() error {
		issue, err := s.assignmentIssue(ctx, issueID)
		if err != nil {
			return err
		}

		active, err := s.technicians.GetActiveByIssue(ctx, issueID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("active technician assignment", map[string]any{"issue_id": issueID})
			}
			return apperrors.MapError(err)
		}

		removedAt := time.Now()
		var removalMessage *string
		if message != nil {
			trimmed := strings.TrimSpace(*message)
			if trimmed != "" {
				removalMessage = &trimmed
			}
		}
		if err := s.technicians.MarkRemoved(ctx, active.ID, removedAt, removalMessage); err != nil {
			return apperrors.MapError(err)
		}
		if err := s.technicians.PruneRemoved(ctx, issueID, active.ID); err != nil {
			return apperrors.MapError(err)
		}
		if err := s.appendInfoMessage(ctx, issueID, message); err != nil {
			return err
		}
		if err := s.issues.Update(ctx, issue); err != nil {
			return apperrors.MapError(err)
		}
		active.RemovedAt = &removedAt
		active.RemovalMessage = removalMessage
		issue.Technician = active

		s.publishEvent(ctx, events.Event{
			Type:    events.EventTechnicianRemoved,
			IssueID: issueID,
			Actor:   actorFor(caller),
			Payload: events.TechnicianRemovedPayload{Name: active.Name, RemovalMessage: removalMessage},
		})
		updated = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, updated)
}

func (s *AssignmentService) assignmentIssue(ctx context.Context, issueID string) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.MapError(err)
	}
	return issue, nil
}

func (s *AssignmentService) appendInfoMessage(ctx context.Context, issueID string, message *string) error {
	if message == nil {
		return nil
	}
	content := strings.TrimSpace(*message)
	if content == "" {
		return nil
	}
	msg := &domain.Message{
		IssueID: issueID,
		Sender:  domain.SenderAdmin,
		Content: content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *AssignmentService) snapshot(ctx context.Context, issue *domain.Issue) (*domain.Issue, error) {
	refs, err := s.images.ListByIssue(ctx, issue.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	issue.Images = refs
	return issue, nil
}

func (s *AssignmentService) publishEvent(ctx context.Context, event events.Event) {
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
