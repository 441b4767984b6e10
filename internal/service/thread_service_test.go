package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-service/internal/domain"
	apperrors "github.com/spec-kit/issue-service/pkg/util"
)

func createIssue(t *testing.T, env *testEnv, who *domain.Identity) *domain.Issue {
	t.Helper()
	issue, err := env.issueSvc.Create(context.Background(), who, potholeInput())
	require.NoError(t, err)
	return issue
}

func TestAppend_ConversationAcrossStatusChange(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)

	first, err := env.threadSvc.Append(ctx, reporter, issue.ID, "any update on this?")
	require.NoError(t, err)
	require.Equal(t, domain.SenderUser, first.Sender)
	require.False(t, first.ReadStatus)

	_, err = env.issueSvc.ChangeStatus(ctx, admin, issue.ID, domain.IssueStatusInProgress)
	require.NoError(t, err)

	second, err := env.threadSvc.Append(ctx, admin, issue.ID, "crew dispatched")
	require.NoError(t, err)
	require.Equal(t, domain.SenderAdmin, second.Sender)

	thread, err := env.threadSvc.ListThread(ctx, reporter, issue.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	require.Equal(t, first.ID, thread[0].ID)
	require.Equal(t, second.ID, thread[1].ID)
	require.False(t, thread[1].CreatedAt.Before(thread[0].CreatedAt))
}

func TestAppend_ClosedIssueGating(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)
	_, err := env.issueSvc.ChangeStatus(ctx, admin, issue.ID, domain.IssueStatusClosed)
	require.NoError(t, err)

	_, err = env.threadSvc.Append(ctx, reporter, issue.ID, "still broken")
	require.True(t, apperrors.IsCode(err, "FORBIDDEN"), "reporter must not message a closed issue, got %v", err)

	msg, err := env.threadSvc.Append(ctx, admin, issue.ID, "reopening shortly")
	require.NoError(t, err)
	require.Equal(t, domain.SenderAdmin, msg.Sender)
}

func TestAppend_EmptyContentRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)

	_, err := env.threadSvc.Append(ctx, reporter, issue.ID, "   ")
	require.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestAppend_AccessControl(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)

	_, err := env.threadSvc.Append(ctx, nil, issue.ID, "hello")
	require.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))

	_, err = env.threadSvc.Append(ctx, stranger, issue.ID, "hello")
	require.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = env.threadSvc.Append(ctx, employee, issue.ID, "hello")
	require.NoError(t, err)
}

func TestMarkRead_CountsAndIdempotence(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)

	m1, err := env.threadSvc.Append(ctx, reporter, issue.ID, "first")
	require.NoError(t, err)
	m2, err := env.threadSvc.Append(ctx, reporter, issue.ID, "second")
	require.NoError(t, err)
	_, err = env.threadSvc.Append(ctx, admin, issue.ID, "ack")
	require.NoError(t, err)

	// admin sees two unread USER messages; reporter sees one unread ADMIN message
	count, err := env.threadSvc.UnreadCount(ctx, admin, issue.ID)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	count, err = env.threadSvc.UnreadCount(ctx, reporter, issue.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, env.threadSvc.MarkRead(ctx, admin, issue.ID, []string{m1.ID}))
	count, err = env.threadSvc.UnreadCount(ctx, admin, issue.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// re-marking the same message and unknown ids are both harmless
	require.NoError(t, env.threadSvc.MarkRead(ctx, admin, issue.ID, []string{m1.ID, m2.ID, "no-such-id"}))
	count, err = env.threadSvc.UnreadCount(ctx, admin, issue.ID)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	// marking from the admin side never touches the reporter's unread view
	count, err = env.threadSvc.UnreadCount(ctx, reporter, issue.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMarkRead_OwnMessagesUnaffected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)

	mine, err := env.threadSvc.Append(ctx, reporter, issue.ID, "mine")
	require.NoError(t, err)

	// the reporter marks ADMIN messages; an own-message id is ignored
	require.NoError(t, env.threadSvc.MarkRead(ctx, reporter, issue.ID, []string{mine.ID}))
	count, err := env.threadSvc.UnreadCount(ctx, admin, issue.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestAppend_ConcurrentWritersAllLand(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	issue := createIssue(t, env, reporter)

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			caller := reporter
			if n%2 == 0 {
				caller = admin
			}
			_, err := env.threadSvc.Append(ctx, caller, issue.ID, fmt.Sprintf("update %d", n))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	thread, err := env.threadSvc.ListThread(ctx, admin, issue.ID)
	require.NoError(t, err)
	require.Len(t, thread, writers)
	for i := 1; i < len(thread); i++ {
		require.False(t, thread[i].CreatedAt.Before(thread[i-1].CreatedAt),
			"timestamps must be non-decreasing in thread order")
	}
}
