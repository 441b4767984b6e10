package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-service/internal/domain"
	apperrors "github.com/spec-kit/issue-service/pkg/util"
)

func TestAssign_ThenRemove(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)

	updated, err := env.assignSvc.Assign(ctx, admin, issue.ID, "Nimal Perera", "0712345678", nil)
	require.NoError(t, err)
	require.NotNil(t, updated.Technician)
	require.Equal(t, "Nimal Perera", updated.Technician.Name)
	require.True(t, updated.Technician.Active())

	note := "wrong skill set"
	updated, err = env.assignSvc.Remove(ctx, admin, issue.ID, &note)
	require.NoError(t, err)
	require.NotNil(t, updated.Technician)
	require.NotNil(t, updated.Technician.RemovedAt)
	require.NotNil(t, updated.Technician.RemovalMessage)
	require.Equal(t, "wrong skill set", *updated.Technician.RemovalMessage)

	// the slot is empty now: removing again reports nothing to remove
	_, err = env.assignSvc.Remove(ctx, admin, issue.ID, nil)
	require.True(t, apperrors.IsCode(err, "NOT_FOUND"), "expected NOT_FOUND, got %v", err)
}

func TestAssign_NonStaffForbidden(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)

	_, err := env.assignSvc.Assign(ctx, reporter, issue.ID, "Nimal", "0712345678", nil)
	require.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	_, err = env.assignSvc.Remove(ctx, reporter, issue.ID, nil)
	require.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestAssign_Validation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)

	_, err := env.assignSvc.Assign(ctx, admin, issue.ID, "  ", "0712345678", nil)
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	_, err = env.assignSvc.Assign(ctx, admin, issue.ID, "Nimal", "", nil)
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestAssign_ReplacesActiveKeepingOneHistoryEntry(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)

	_, err := env.assignSvc.Assign(ctx, admin, issue.ID, "First Tech", "0711111111", nil)
	require.NoError(t, err)
	_, err = env.assignSvc.Assign(ctx, employee, issue.ID, "Second Tech", "0722222222", nil)
	require.NoError(t, err)
	updated, err := env.assignSvc.Assign(ctx, admin, issue.ID, "Third Tech", "0733333333", nil)
	require.NoError(t, err)

	require.NotNil(t, updated.Technician)
	require.Equal(t, "Third Tech", updated.Technician.Name)
	require.True(t, updated.Technician.Active())

	// one active plus at most one retained removal record
	records := env.technicians.assignments[issue.ID]
	active, removed := 0, 0
	for _, rec := range records {
		if rec.RemovedAt == nil {
			active++
		} else {
			removed++
		}
	}
	require.Equal(t, 1, active)
	require.Equal(t, 1, removed)
	require.Equal(t, "Second Tech", latestRemoved(records).Name)
}

func latestRemoved(records []domain.TechnicianAssignment) *domain.TechnicianAssignment {
	for i := range records {
		if records[i].RemovedAt != nil {
			return &records[i]
		}
	}
	return nil
}

func TestAssign_MessageAppendedAsAdmin(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)

	msg := "Nimal will visit tomorrow morning"
	_, err := env.assignSvc.Assign(ctx, admin, issue.ID, "Nimal", "0712345678", &msg)
	require.NoError(t, err)

	thread, err := env.threadSvc.ListThread(ctx, reporter, issue.ID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	require.Equal(t, domain.SenderAdmin, thread[0].Sender)
	require.Equal(t, msg, thread[0].Content)
}

func TestRemove_MessageOptional(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)

	_, err := env.assignSvc.Assign(ctx, admin, issue.ID, "Nimal", "0712345678", nil)
	require.NoError(t, err)
	updated, err := env.assignSvc.Remove(ctx, admin, issue.ID, nil)
	require.NoError(t, err)
	require.Nil(t, updated.Technician.RemovalMessage)

	thread, err := env.threadSvc.ListThread(ctx, reporter, issue.ID)
	require.NoError(t, err)
	require.Empty(t, thread)
}
