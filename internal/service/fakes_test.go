package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/repository"
	"github.com/spec-kit/issue-service/internal/storage"
)

type fakeIssueRepo struct {
	mu     sync.Mutex
	issues map[string]domain.Issue
}

func newFakeIssueRepo() *fakeIssueRepo {
	return &fakeIssueRepo{issues: make(map[string]domain.Issue)}
}

func (r *fakeIssueRepo) Create(_ context.Context, issue *domain.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue.ID = uuid.NewString()
	now := time.Now()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	r.issues[issue.ID] = *issue
	return nil
}

func (r *fakeIssueRepo) Update(_ context.Context, issue *domain.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.issues[issue.ID]; !ok {
		return pgx.ErrNoRows
	}
	issue.UpdatedAt = time.Now()
	r.issues[issue.ID] = *issue
	return nil
}

func (r *fakeIssueRepo) GetByID(_ context.Context, id string) (*domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := issue
	return &copied, nil
}

func (r *fakeIssueRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.issues[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.issues, id)
	return nil
}

func (r *fakeIssueRepo) matching(filter repository.IssueFilter) []domain.Issue {
	var result []domain.Issue
	for _, issue := range r.issues {
		if filter.ReporterID != nil {
			if issue.ReporterID == nil || *issue.ReporterID != *filter.ReporterID {
				continue
			}
		}
		if len(filter.Statuses) > 0 {
			found := false
			for _, status := range filter.Statuses {
				if issue.Status == status {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		result = append(result, issue)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (r *fakeIssueRepo) ListWithFilter(_ context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := r.matching(filter)
	offset := filter.Offset
	if offset > len(matched) {
		return nil, nil
	}
	end := offset + filter.Limit
	if filter.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *fakeIssueRepo) CountWithFilter(_ context.Context, filter repository.IssueFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matching(filter)), nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string][]domain.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string][]domain.Message)}
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = uuid.NewString()
	msg.ReadStatus = false
	ts := time.Now()
	thread := r.messages[msg.IssueID]
	if len(thread) > 0 {
		last := thread[len(thread)-1].CreatedAt
		if !ts.After(last) {
			ts = last.Add(time.Microsecond)
		}
	}
	msg.CreatedAt = ts
	r.messages[msg.IssueID] = append(thread, *msg)
	return nil
}

func (r *fakeMessageRepo) ListByIssue(_ context.Context, issueID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message(nil), r.messages[issueID]...), nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, issueID string, messageIDs []string, sender domain.MessageSender) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		ids[id] = struct{}{}
	}
	thread := r.messages[issueID]
	for i := range thread {
		if _, ok := ids[thread[i].ID]; ok && thread[i].Sender == sender {
			thread[i].ReadStatus = true
		}
	}
	return nil
}

func (r *fakeMessageRepo) CountUnread(_ context.Context, issueID string, sender domain.MessageSender) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, msg := range r.messages[issueID] {
		if msg.Sender == sender && !msg.ReadStatus {
			count++
		}
	}
	return count, nil
}

type fakeTechnicianRepo struct {
	mu          sync.Mutex
	assignments map[string][]domain.TechnicianAssignment
}

func newFakeTechnicianRepo() *fakeTechnicianRepo {
	return &fakeTechnicianRepo{assignments: make(map[string][]domain.TechnicianAssignment)}
}

func (r *fakeTechnicianRepo) Create(_ context.Context, assignment *domain.TechnicianAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.assignments[assignment.IssueID] {
		if existing.RemovedAt == nil {
			return errors.New("active assignment already exists")
		}
	}
	assignment.ID = uuid.NewString()
	assignment.AssignedAt = time.Now()
	r.assignments[assignment.IssueID] = append(r.assignments[assignment.IssueID], *assignment)
	return nil
}

func (r *fakeTechnicianRepo) GetActiveByIssue(_ context.Context, issueID string) (*domain.TechnicianAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, assignment := range r.assignments[issueID] {
		if assignment.RemovedAt == nil {
			copied := assignment
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTechnicianRepo) GetLatestByIssue(_ context.Context, issueID string) (*domain.TechnicianAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.assignments[issueID]
	if len(all) == 0 {
		return nil, pgx.ErrNoRows
	}
	for _, assignment := range all {
		if assignment.RemovedAt == nil {
			copied := assignment
			return &copied, nil
		}
	}
	latest := all[0]
	for _, assignment := range all[1:] {
		if assignment.AssignedAt.After(latest.AssignedAt) {
			latest = assignment
		}
	}
	return &latest, nil
}

func (r *fakeTechnicianRepo) MarkRemoved(_ context.Context, id string, removedAt time.Time, removalMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for issueID := range r.assignments {
		for i := range r.assignments[issueID] {
			if r.assignments[issueID][i].ID == id && r.assignments[issueID][i].RemovedAt == nil {
				r.assignments[issueID][i].RemovedAt = &removedAt
				r.assignments[issueID][i].RemovalMessage = removalMessage
				return nil
			}
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeTechnicianRepo) PruneRemoved(_ context.Context, issueID string, keepID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []domain.TechnicianAssignment
	for _, assignment := range r.assignments[issueID] {
		if assignment.RemovedAt != nil && assignment.ID != keepID {
			continue
		}
		kept = append(kept, assignment)
	}
	r.assignments[issueID] = kept
	return nil
}

type fakeImageRepo struct {
	mu   sync.Mutex
	refs map[string][]string
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{refs: make(map[string][]string)}
}

func (r *fakeImageRepo) AppendRefs(_ context.Context, issueID string, refs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[issueID] = append(r.refs[issueID], refs...)
	return nil
}

func (r *fakeImageRepo) ListByIssue(_ context.Context, issueID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.refs[issueID]...), nil
}

func (r *fakeImageRepo) CountByIssue(_ context.Context, issueID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs[issueID]), nil
}

var errStoreDown = errors.New("object store unavailable")

func uploads(names ...string) []storage.ImageUpload {
	result := make([]storage.ImageUpload, 0, len(names))
	for _, name := range names {
		result = append(result, storage.ImageUpload{
			Name:        name,
			ContentType: "image/jpeg",
			Size:        4,
			Reader:      strings.NewReader("data"),
		})
	}
	return result
}

type fakeObjectStore struct {
	mu      sync.Mutex
	failAt  int
	puts    int
	stored  []string
	failErr error
}

func (s *fakeObjectStore) Put(_ context.Context, upload storage.ImageUpload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.failErr != nil && s.puts > s.failAt {
		return "", s.failErr
	}
	ref := "issue-images/" + upload.Name
	s.stored = append(s.stored, ref)
	return ref, nil
}
