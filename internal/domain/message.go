package domain

import "time"

// MessageSender indicates which party authored a thread message.
type MessageSender string

const (
	SenderUser  MessageSender = "USER"
	SenderAdmin MessageSender = "ADMIN"
)

// Opposite returns the other party of a conversation.
func (s MessageSender) Opposite() MessageSender {
	if s == SenderUser {
		return SenderAdmin
	}
	return SenderUser
}

// SenderForRole maps a caller role onto the two-valued message sender.
func SenderForRole(role Role) MessageSender {
	if role.Staff() {
		return SenderAdmin
	}
	return SenderUser
}

// Message is one entry in an issue's append-only thread.
type Message struct {
	ID         string
	IssueID    string
	Sender     MessageSender
	Content    string
	ReadStatus bool
	CreatedAt  time.Time
}
