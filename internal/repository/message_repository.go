package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-service/internal/domain"
)

// MessageRepository manages issue thread messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListByIssue(ctx context.Context, issueID string) ([]domain.Message, error)
	// MarkRead flips read_status for the given ids on the issue, restricted to
	// messages authored by sender. Unknown ids are ignored.
	MarkRead(ctx context.Context, issueID string, messageIDs []string, sender domain.MessageSender) error
	CountUnread(ctx context.Context, issueID string, sender domain.MessageSender) (int, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO issue_messages (issue_id, sender, content, read_status)
        VALUES ($1,$2,$3,FALSE)
        RETURNING id, read_status, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.IssueID,
		msg.Sender,
		msg.Content,
	).Scan(&msg.ID, &msg.ReadStatus, &msg.CreatedAt)
}

func (r *messageRepository) ListByIssue(ctx context.Context, issueID string) ([]domain.Message, error) {
	const query = `
        SELECT id, issue_id, sender, content, read_status, created_at
        FROM issue_messages WHERE issue_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.IssueID,
			&msg.Sender,
			&msg.Content,
			&msg.ReadStatus,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *messageRepository) MarkRead(ctx context.Context, issueID string, messageIDs []string, sender domain.MessageSender) error {
	if len(messageIDs) == 0 {
		return nil
	}
	const query = `
        UPDATE issue_messages SET read_status=TRUE
        WHERE issue_id=$1 AND sender=$2 AND id = ANY($3)`
	_, err := r.pool.Exec(ctx, query, issueID, sender, messageIDs)
	return err
}

func (r *messageRepository) CountUnread(ctx context.Context, issueID string, sender domain.MessageSender) (int, error) {
	const query = `
        SELECT COUNT(*) FROM issue_messages
        WHERE issue_id=$1 AND sender=$2 AND read_status=FALSE`
	var count int
	if err := r.pool.QueryRow(ctx, query, issueID, sender).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
