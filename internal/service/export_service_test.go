package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/issue-service/pkg/util"
)

func TestExport_HeaderAndColumnOrder(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	createIssue(t, env, reporter)

	rows, err := env.exportSvc.Rows(ctx, admin, ExportScopeAll)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)
	require.Equal(t, []string{
		"id", "title", "status", "location", "district", "province",
		"mobile_no", "whatsapp_no", "created_at", "updated_at", "technician_name",
	}, rows[0])
	for _, row := range rows[1:] {
		require.Len(t, row, len(rows[0]), "every data row matches the header width")
	}
}

func TestExport_ScopeMineFiltersByReporter(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	mine := createIssue(t, env, reporter)
	createIssue(t, env, stranger)

	rows, err := env.exportSvc.Rows(ctx, reporter, ExportScopeMine)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, mine.ID, rows[1][0])
	require.Equal(t, "PENDING", rows[1][2])
}

func TestExport_TechnicianColumnReflectsActiveAssignment(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)

	_, err := env.assignSvc.Assign(ctx, admin, issue.ID, "Nimal Perera", "0712345678", nil)
	require.NoError(t, err)

	rows, err := env.exportSvc.Rows(ctx, admin, ExportScopeAll)
	require.NoError(t, err)
	require.Equal(t, "Nimal Perera", rows[1][10])

	_, err = env.assignSvc.Remove(ctx, admin, issue.ID, nil)
	require.NoError(t, err)

	rows, err = env.exportSvc.Rows(ctx, admin, ExportScopeAll)
	require.NoError(t, err)
	require.Equal(t, "", rows[1][10], "removed technician no longer appears")
}

func TestExport_ScopeChecks(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.exportSvc.Rows(ctx, reporter, ExportScopeAll)
	require.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = env.exportSvc.Rows(ctx, nil, ExportScopeMine)
	require.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))

	_, err = env.exportSvc.Rows(ctx, admin, ExportScope("everything"))
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestWriteCSV_ParsesBackCleanly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	createIssue(t, env, reporter)
	createIssue(t, env, reporter)

	var buf bytes.Buffer
	require.NoError(t, env.exportSvc.WriteCSV(ctx, &buf, reporter, ExportScopeMine))

	parsed, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	require.Equal(t, "id", parsed[0][0])
}
