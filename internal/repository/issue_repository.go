package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-service/internal/domain"
)

// IssueFilter captures listing parameters. A nil ReporterID lists everything.
type IssueFilter struct {
	ReporterID *string
	Statuses   []domain.IssueStatus
	Limit      int
	Offset     int
}

// IssueRepository encapsulates issue persistence.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	Update(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	Delete(ctx context.Context, id string) error
	ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	CountWithFilter(ctx context.Context, filter IssueFilter) (int, error)
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	const query = `
        INSERT INTO issues (reporter_id, title, description, location, address, district, province, mobile_no, whatsapp_no, status, admin_notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		issue.ReporterID,
		issue.Title,
		issue.Description,
		issue.Location,
		issue.Address,
		issue.District,
		issue.Province,
		issue.MobileNo,
		issue.WhatsappNo,
		issue.Status,
		issue.AdminNotes,
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
}

func (r *issueRepository) Update(ctx context.Context, issue *domain.Issue) error {
	const query = `
        UPDATE issues SET title=$1, description=$2, location=$3, address=$4, district=$5, province=$6,
            mobile_no=$7, whatsapp_no=$8, status=$9, admin_notes=$10, updated_at=NOW()
        WHERE id=$11
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		issue.Title,
		issue.Description,
		issue.Location,
		issue.Address,
		issue.District,
		issue.Province,
		issue.MobileNo,
		issue.WhatsappNo,
		issue.Status,
		issue.AdminNotes,
		issue.ID,
	).Scan(&issue.UpdatedAt)
	if err != nil {
		return err
	}
	return nil
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	const query = `
        SELECT id, reporter_id, title, description, location, address, district, province,
               mobile_no, whatsapp_no, status, admin_notes, created_at, updated_at
        FROM issues WHERE id=$1`
	var issue domain.Issue
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&issue.ID,
		&issue.ReporterID,
		&issue.Title,
		&issue.Description,
		&issue.Location,
		&issue.Address,
		&issue.District,
		&issue.Province,
		&issue.MobileNo,
		&issue.WhatsappNo,
		&issue.Status,
		&issue.AdminNotes,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *issueRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM issues WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *issueRepository) ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	clauses, args := filterClauses(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
        SELECT id, reporter_id, title, description, location, address, district, province,
               mobile_no, whatsapp_no, status, admin_notes, created_at, updated_at
        FROM issues WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func (r *issueRepository) CountWithFilter(ctx context.Context, filter IssueFilter) (int, error) {
	clauses, args := filterClauses(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM issues WHERE %s`, strings.Join(clauses, " AND "))

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func filterClauses(filter IssueFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	return clauses, args
}

func scanIssues(rows pgx.Rows) ([]domain.Issue, error) {
	var result []domain.Issue
	for rows.Next() {
		var issue domain.Issue
		if err := rows.Scan(
			&issue.ID,
			&issue.ReporterID,
			&issue.Title,
			&issue.Description,
			&issue.Location,
			&issue.Address,
			&issue.District,
			&issue.Province,
			&issue.MobileNo,
			&issue.WhatsappNo,
			&issue.Status,
			&issue.AdminNotes,
			&issue.CreatedAt,
			&issue.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, issue)
	}
	return result, rows.Err()
}
