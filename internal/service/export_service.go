package service

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/repository"
	apperrors "github.com/spec-kit/issue-service/pkg/util"
)

// ExportScope selects which issues an export covers.
type ExportScope string

const (
	ExportScopeMine ExportScope = "mine"
	ExportScopeAll  ExportScope = "all"
)

const exportBatchSize = 500

// csvHeader is the fixed column set. Downstream consumers depend on column
// identity and order, so this never changes shape between calls.
var csvHeader = []string{
	"id", "title", "status", "location", "district", "province",
	"mobile_no", "whatsapp_no", "created_at", "updated_at", "technician_name",
}

// ExportService projects repository contents into flat tabular form.
type ExportService struct {
	issues      repository.IssueRepository
	technicians repository.TechnicianRepository
}

// NewExportService constructs the service.
func NewExportService(issues repository.IssueRepository, technicians repository.TechnicianRepository) *ExportService {
	return &ExportService{issues: issues, technicians: technicians}
}

// Rows produces one row per issue for the given scope, newest first, with
// the header as the first row.
func (s *ExportService) Rows(ctx context.Context, caller *domain.Identity, scope ExportScope) ([][]string, error) {
	filter, err := s.scopeFilter(caller, scope)
	if err != nil {
		return nil, err
	}

	rows := [][]string{append([]string(nil), csvHeader...)}
	offset := 0
	for {
		filter.Limit = exportBatchSize
		filter.Offset = offset
		batch, err := s.issues.ListWithFilter(ctx, filter)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		for i := range batch {
			rows = append(rows, s.issueRow(ctx, &batch[i]))
		}
		if len(batch) < exportBatchSize {
			break
		}
		offset += exportBatchSize
	}
	return rows, nil
}

// WriteCSV streams the export to w.
func (s *ExportService) WriteCSV(ctx context.Context, w io.Writer, caller *domain.Identity, scope ExportScope) error {
	rows, err := s.Rows(ctx, caller, scope)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(rows); err != nil {
		return apperrors.MapError(err)
	}
	writer.Flush()
	return apperrors.MapError(writer.Error())
}

func (s *ExportService) scopeFilter(caller *domain.Identity, scope ExportScope) (repository.IssueFilter, error) {
	switch scope {
	case ExportScopeMine:
		if caller == nil {
			return repository.IssueFilter{}, apperrors.NewUnauthorized("authentication required")
		}
		reporterID := caller.ID
		return repository.IssueFilter{ReporterID: &reporterID}, nil
	case ExportScopeAll:
		if !caller.IsStaff() {
			return repository.IssueFilter{}, apperrors.NewForbidden("staff role required")
		}
		return repository.IssueFilter{}, nil
	default:
		return repository.IssueFilter{}, apperrors.NewValidationError("unknown export scope", map[string]any{"scope": scope})
	}
}

func (s *ExportService) issueRow(ctx context.Context, issue *domain.Issue) []string {
	technicianName := ""
	if assignment, err := s.technicians.GetActiveByIssue(ctx, issue.ID); err == nil {
		technicianName = assignment.Name
	} else if !errors.Is(err, pgx.ErrNoRows) {
		// transient lookup failure leaves the column empty rather than
		// failing the whole export
		technicianName = ""
	}

	return []string{
		issue.ID,
		issue.Title,
		string(issue.Status),
		issue.Location,
		issue.District,
		issue.Province,
		issue.MobileNo,
		issue.WhatsappNo,
		issue.CreatedAt.UTC().Format(time.RFC3339),
		issue.UpdatedAt.UTC().Format(time.RFC3339),
		technicianName,
	}
}
