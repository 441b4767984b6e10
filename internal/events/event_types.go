package events

import (
	"time"

	"github.com/spec-kit/issue-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated       EventType = "issue_created"
	EventIssueStatusChanged EventType = "issue_status_changed"
	EventIssueDeleted       EventType = "issue_deleted"
	EventMessageAppended    EventType = "message_appended"
	EventTechnicianAssigned EventType = "technician_assigned"
	EventTechnicianRemoved  EventType = "technician_removed"
)

// Actor encapsulates actor metadata for an event. A nil CallerID marks an
// anonymous reporter.
type Actor struct {
	Role     domain.Role `json:"role"`
	CallerID *string     `json:"caller_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	IssueID   string      `json:"issue_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// IssueCreatedPayload payload.
type IssueCreatedPayload struct {
	Title    string `json:"title"`
	District string `json:"district"`
	Province string `json:"province"`
}

// IssueStatusChangedPayload payload.
type IssueStatusChangedPayload struct {
	OldStatus domain.IssueStatus `json:"old_status"`
	NewStatus domain.IssueStatus `json:"new_status"`
}

// MessageAppendedPayload payload.
type MessageAppendedPayload struct {
	MessageID      string               `json:"message_id"`
	Sender         domain.MessageSender `json:"sender"`
	ContentPreview string               `json:"content_preview"`
}

// TechnicianAssignedPayload payload.
type TechnicianAssignedPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// TechnicianRemovedPayload payload.
type TechnicianRemovedPayload struct {
	Name           string  `json:"name"`
	RemovalMessage *string `json:"removal_message,omitempty"`
}
