package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-service/internal/domain"
)

// TechnicianRepository manages the single-slot technician assignment. At most
// one active row per issue exists; one removed row is retained as history.
type TechnicianRepository interface {
	Create(ctx context.Context, assignment *domain.TechnicianAssignment) error
	GetActiveByIssue(ctx context.Context, issueID string) (*domain.TechnicianAssignment, error)
	GetLatestByIssue(ctx context.Context, issueID string) (*domain.TechnicianAssignment, error)
	MarkRemoved(ctx context.Context, id string, removedAt time.Time, removalMessage *string) error
	PruneRemoved(ctx context.Context, issueID string, keepID string) error
}

type technicianRepository struct {
	pool *pgxpool.Pool
}

// NewTechnicianRepository builds repository.
func NewTechnicianRepository(pool *pgxpool.Pool) TechnicianRepository {
	return &technicianRepository{pool: pool}
}

func (r *technicianRepository) Create(ctx context.Context, assignment *domain.TechnicianAssignment) error {
	const query = `
        INSERT INTO technician_assignments (issue_id, name, phone)
        VALUES ($1,$2,$3)
        RETURNING id, assigned_at`
	return r.pool.QueryRow(ctx, query,
		assignment.IssueID,
		assignment.Name,
		assignment.Phone,
	).Scan(&assignment.ID, &assignment.AssignedAt)
}

func (r *technicianRepository) GetActiveByIssue(ctx context.Context, issueID string) (*domain.TechnicianAssignment, error) {
	const query = `
        SELECT id, issue_id, name, phone, assigned_at, removed_at, removal_message
        FROM technician_assignments WHERE issue_id=$1 AND removed_at IS NULL`
	return r.fetchSingle(ctx, query, issueID)
}

func (r *technicianRepository) GetLatestByIssue(ctx context.Context, issueID string) (*domain.TechnicianAssignment, error) {
	const query = `
        SELECT id, issue_id, name, phone, assigned_at, removed_at, removal_message
        FROM technician_assignments WHERE issue_id=$1
        ORDER BY removed_at IS NOT NULL, assigned_at DESC LIMIT 1`
	return r.fetchSingle(ctx, query, issueID)
}

func (r *technicianRepository) fetchSingle(ctx context.Context, query, issueID string) (*domain.TechnicianAssignment, error) {
	var assignment domain.TechnicianAssignment
	if err := r.pool.QueryRow(ctx, query, issueID).Scan(
		&assignment.ID,
		&assignment.IssueID,
		&assignment.Name,
		&assignment.Phone,
		&assignment.AssignedAt,
		&assignment.RemovedAt,
		&assignment.RemovalMessage,
	); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *technicianRepository) MarkRemoved(ctx context.Context, id string, removedAt time.Time, removalMessage *string) error {
	const query = `
        UPDATE technician_assignments SET removed_at=$1, removal_message=$2
        WHERE id=$3 AND removed_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, removedAt, removalMessage, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *technicianRepository) PruneRemoved(ctx context.Context, issueID string, keepID string) error {
	const query = `
        DELETE FROM technician_assignments
        WHERE issue_id=$1 AND removed_at IS NOT NULL AND id <> $2`
	_, err := r.pool.Exec(ctx, query, issueID, keepID)
	return err
}
