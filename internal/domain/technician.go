package domain

import "time"

// TechnicianAssignment records the field technician working an issue. An issue
// has at most one assignment with RemovedAt == nil at any time.
type TechnicianAssignment struct {
	ID             string
	IssueID        string
	Name           string
	Phone          string
	AssignedAt     time.Time
	RemovedAt      *time.Time
	RemovalMessage *string
}

// Active reports whether the assignment still occupies the slot.
func (a *TechnicianAssignment) Active() bool {
	return a != nil && a.RemovedAt == nil
}
