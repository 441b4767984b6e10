package dto

import (
	"time"

	"github.com/spec-kit/issue-service/internal/domain"
)

// CreateIssueRequest payload.
type CreateIssueRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Address     string `json:"address"`
	District    string `json:"district"`
	Province    string `json:"province"`
	MobileNo    string `json:"mobile_no"`
	WhatsappNo  string `json:"whatsapp_no"`
}

// EditIssueRequest carries optional field updates.
type EditIssueRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Address     *string `json:"address"`
	District    *string `json:"district"`
	Province    *string `json:"province"`
	MobileNo    *string `json:"mobile_no"`
	WhatsappNo  *string `json:"whatsapp_no"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status domain.IssueStatus `json:"status"`
}

// AdminNotesRequest payload.
type AdminNotesRequest struct {
	Notes string `json:"notes"`
}

// AppendMessageRequest payload.
type AppendMessageRequest struct {
	Content string `json:"content"`
}

// MarkReadRequest payload.
type MarkReadRequest struct {
	MessageIDs []string `json:"message_ids"`
}

// AssignTechnicianRequest payload.
type AssignTechnicianRequest struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Message *string `json:"message,omitempty"`
}

// RemoveTechnicianRequest payload.
type RemoveTechnicianRequest struct {
	Message *string `json:"message,omitempty"`
}

// TechnicianResponse represents the assignment slot.
type TechnicianResponse struct {
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	AssignedAt     time.Time  `json:"assigned_at"`
	RemovedAt      *time.Time `json:"removed_at,omitempty"`
	RemovalMessage *string    `json:"removal_message,omitempty"`
}

// IssueResponse provides the issue snapshot.
type IssueResponse struct {
	ID          string              `json:"id"`
	ReporterID  *string             `json:"reporter_id,omitempty"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Location    string              `json:"location"`
	Address     string              `json:"address"`
	District    string              `json:"district"`
	Province    string              `json:"province"`
	MobileNo    string              `json:"mobile_no"`
	WhatsappNo  string              `json:"whatsapp_no"`
	Images      []string            `json:"images"`
	Status      domain.IssueStatus  `json:"status"`
	AdminNotes  *string             `json:"admin_notes,omitempty"`
	Technician  *TechnicianResponse `json:"technician,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// IssueListResponse is one page of a listing.
type IssueListResponse struct {
	Issues     []IssueResponse `json:"issues"`
	TotalCount int             `json:"total_count"`
	PageCount  int             `json:"page_count"`
}

// MessageResponse represents a thread message.
type MessageResponse struct {
	ID         string               `json:"id"`
	IssueID    string               `json:"issue_id"`
	Sender     domain.MessageSender `json:"sender"`
	Content    string               `json:"content"`
	ReadStatus bool                 `json:"read_status"`
	CreatedAt  time.Time            `json:"created_at"`
}

// UnreadCountResponse payload.
type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}
