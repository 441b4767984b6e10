package domain

import "time"

// IssueStatus enumerates lifecycle states for issues.
type IssueStatus string

const (
	IssueStatusPending    IssueStatus = "PENDING"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusResolved   IssueStatus = "RESOLVED"
	IssueStatusClosed     IssueStatus = "CLOSED"
)

// Valid reports whether the status is a known member of the enum.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusPending, IssueStatusInProgress, IssueStatusResolved, IssueStatusClosed:
		return true
	}
	return false
}

// MaxIssueImages caps the total object-store references an issue may carry.
const MaxIssueImages = 5

// Issue is the aggregate for reported problems.
type Issue struct {
	ID          string
	ReporterID  *string
	Title       string
	Description string
	Location    string
	Address     string
	District    string
	Province    string
	MobileNo    string
	WhatsappNo  string
	Images      []string
	Status      IssueStatus
	AdminNotes  *string
	Technician  *TechnicianAssignment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReportedBy reports whether the issue was filed by the given identity.
// Anonymous issues belong to nobody.
func (i *Issue) ReportedBy(caller *Identity) bool {
	return caller != nil && i.ReporterID != nil && *i.ReporterID == caller.ID
}

// VisibleAdminNotes returns admin notes as seen by the caller. Reporters only
// see notes once the issue has left PENDING; staff always see them.
func (i *Issue) VisibleAdminNotes(caller *Identity) *string {
	if caller.IsStaff() {
		return i.AdminNotes
	}
	if i.Status == IssueStatusPending {
		return nil
	}
	return i.AdminNotes
}
