package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ImageRepository persists the ordered object-store references owned by an issue.
type ImageRepository interface {
	// AppendRefs adds references after the current highest position, in the
	// order given. All refs from a single call land together.
	AppendRefs(ctx context.Context, issueID string, refs []string) error
	ListByIssue(ctx context.Context, issueID string) ([]string, error)
	CountByIssue(ctx context.Context, issueID string) (int, error)
}

type imageRepository struct {
	pool *pgxpool.Pool
}

// NewImageRepository constructs repository.
func NewImageRepository(pool *pgxpool.Pool) ImageRepository {
	return &imageRepository{pool: pool}
}

func (r *imageRepository) AppendRefs(ctx context.Context, issueID string, refs []string) error {
	if len(refs) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var next int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM issue_images WHERE issue_id=$1`,
		issueID,
	).Scan(&next); err != nil {
		return err
	}

	const insert = `INSERT INTO issue_images (issue_id, storage_ref, position) VALUES ($1,$2,$3)`
	for i, ref := range refs {
		if _, err := tx.Exec(ctx, insert, issueID, ref, next+i); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *imageRepository) ListByIssue(ctx context.Context, issueID string) ([]string, error) {
	const query = `
        SELECT storage_ref FROM issue_images WHERE issue_id=$1 ORDER BY position ASC`
	rows, err := r.pool.Query(ctx, query, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *imageRepository) CountByIssue(ctx context.Context, issueID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM issue_images WHERE issue_id=$1`, issueID,
	).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
