package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/locks"
	"github.com/spec-kit/issue-service/internal/repository"
	"github.com/spec-kit/issue-service/internal/storage"
	apperrors "github.com/spec-kit/issue-service/pkg/util"
)

var validate = validator.New()

// IssueService is the single source of truth for an issue's legal mutations.
type IssueService struct {
	issues      repository.IssueRepository
	images      repository.ImageRepository
	technicians repository.TechnicianRepository
	store       storage.ObjectStore
	locks       *locks.KeyedMutex
	dispatcher  events.Dispatcher
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo      repository.IssueRepository
	ImageRepo      repository.ImageRepository
	TechnicianRepo repository.TechnicianRepository
	Store          storage.ObjectStore
	Locks          *locks.KeyedMutex
	Dispatcher     events.Dispatcher
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	return &IssueService{
		issues:      deps.IssueRepo,
		images:      deps.ImageRepo,
		technicians: deps.TechnicianRepo,
		store:       deps.Store,
		locks:       deps.Locks,
		dispatcher:  deps.Dispatcher,
	}
}

// IssueCreateInput describes issue creation payload.
type IssueCreateInput struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
	Location    string `validate:"required"`
	Address     string `validate:"required"`
	District    string `validate:"required"`
	Province    string `validate:"required"`
	MobileNo    string `validate:"required,len=10,numeric"`
	WhatsappNo  string `validate:"required,len=10,numeric"`
}

// IssuePatch carries optional field updates for a PENDING issue.
type IssuePatch struct {
	Title       *string
	Description *string
	Location    *string
	Address     *string
	District    *string
	Province    *string
	MobileNo    *string
	WhatsappNo  *string
}

// IssuePage is one page of a listing.
type IssuePage struct {
	Issues     []domain.Issue
	TotalCount int
	PageCount  int
}

// Create files a new issue. Reporter may be nil for anonymous reports.
func (s *IssueService) Create(ctx context.Context, reporter *domain.Identity, input IssueCreateInput) (*domain.Issue, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if err := validate.Struct(input); err != nil {
		return nil, apperrors.NewValidationError("invalid issue fields", validationDetails(err))
	}

	issue := &domain.Issue{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		Address:     input.Address,
		District:    input.District,
		Province:    input.Province,
		MobileNo:    input.MobileNo,
		WhatsappNo:  input.WhatsappNo,
		Status:      domain.IssueStatusPending,
	}
	if reporter != nil {
		reporterID := reporter.ID
		issue.ReporterID = &reporterID
	}

	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueCreated,
		IssueID: issue.ID,
		Actor:   actorFor(reporter),
		Payload: events.IssueCreatedPayload{
			Title:    issue.Title,
			District: issue.District,
			Province: issue.Province,
		},
	})
	return issue, nil
}

// Edit updates reporter-editable fields. Only the original reporter or staff
// may edit, and only while the issue is still PENDING.
func (s *IssueService) Edit(ctx context.Context, caller *domain.Identity, issueID string, patch IssuePatch) (*domain.Issue, error) {
	var updated *domain.Issue
	err := s.locks.WithLock(issueID, func() error {
		issue, err := s.getIssue(ctx, issueID)
		if err != nil {
			return err
		}
		if !issue.ReportedBy(caller) && !caller.IsStaff() {
			return apperrors.NewForbidden("only the reporter or staff may edit an issue")
		}
		if issue.Status != domain.IssueStatusPending {
			return apperrors.NewForbidden("issue can only be edited while PENDING")
		}
		if err := applyPatch(issue, patch); err != nil {
			return err
		}
		if err := s.issues.Update(ctx, issue); err != nil {
			return apperrors.MapError(err)
		}
		updated = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadAggregate(ctx, updated)
}

// ChangeStatus moves the issue to a new status. Staff only; any status is
// reachable from any other, but a same-value change is rejected.
func (s *IssueService) ChangeStatus(ctx context.Context, caller *domain.Identity, issueID string, newStatus domain.IssueStatus) (*domain.Issue, error) {
	if !caller.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}

	var updated *domain.Issue
	err := s.locks.WithLock(issueID, func() error {
		issue, err := s.getIssue(ctx, issueID)
		if err != nil {
			return err
		}
		if issue.Status == newStatus {
			return apperrors.NewNoOp("status unchanged", map[string]any{"status": newStatus})
		}
		oldStatus := issue.Status
		issue.Status = newStatus
		if err := s.issues.Update(ctx, issue); err != nil {
			return apperrors.MapError(err)
		}
		s.publishEvent(ctx, events.Event{
			Type:    events.EventIssueStatusChanged,
			IssueID: issue.ID,
			Actor:   actorFor(caller),
			Payload: events.IssueStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: newStatus,
			},
		})
		updated = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadAggregate(ctx, updated)
}

// SetAdminNotes updates the staff-facing notes. Staff only, any status.
func (s *IssueService) SetAdminNotes(ctx context.Context, caller *domain.Identity, issueID string, notes string) (*domain.Issue, error) {
	if !caller.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}

	var updated *domain.Issue
	err := s.locks.WithLock(issueID, func() error {
		issue, err := s.getIssue(ctx, issueID)
		if err != nil {
			return err
		}
		trimmed := strings.TrimSpace(notes)
		if trimmed == "" {
			issue.AdminNotes = nil
		} else {
			issue.AdminNotes = &trimmed
		}
		if err := s.issues.Update(ctx, issue); err != nil {
			return apperrors.MapError(err)
		}
		updated = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadAggregate(ctx, updated)
}

// Delete removes the issue and its owned thread, images and assignment.
// Staff may delete at any status; the reporter only while PENDING.
func (s *IssueService) Delete(ctx context.Context, caller *domain.Identity, issueID string) error {
	return s.locks.WithLock(issueID, func() error {
		issue, err := s.getIssue(ctx, issueID)
		if err != nil {
			return err
		}
		if !caller.IsStaff() {
			if !issue.ReportedBy(caller) {
				return apperrors.NewForbidden("only staff or the reporter may delete an issue")
			}
			if issue.Status != domain.IssueStatusPending {
				return apperrors.NewForbidden("reporter may only delete a PENDING issue")
			}
		}
		if err := s.issues.Delete(ctx, issueID); err != nil {
			return apperrors.MapError(err)
		}
		s.publishEvent(ctx, events.Event{
			Type:    events.EventIssueDeleted,
			IssueID: issueID,
			Actor:   actorFor(caller),
		})
		return nil
	})
}

// AttachImages uploads blobs to the object store and appends the returned
// references to the issue. All-or-nothing: a failed upload leaves the image
// list unchanged.
func (s *IssueService) AttachImages(ctx context.Context, caller *domain.Identity, issueID string, uploads []storage.ImageUpload) (*domain.Issue, error) {
	if len(uploads) == 0 {
		return nil, apperrors.NewValidationError("no images supplied", nil)
	}

	var updated *domain.Issue
	err := s.locks.WithLock(issueID, func() error {
		issue, err := s.getIssue(ctx, issueID)
		if err != nil {
			return err
		}
		if !issue.ReportedBy(caller) && !caller.IsStaff() {
			return apperrors.NewForbidden("only the reporter or staff may attach images")
		}
		if issue.Status != domain.IssueStatusPending {
			return apperrors.NewForbidden("images can only be attached while PENDING")
		}

		existing, err := s.images.CountByIssue(ctx, issueID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if existing+len(uploads) > domain.MaxIssueImages {
			return apperrors.NewValidationError("too many images", map[string]any{
				"existing": existing,
				"adding":   len(uploads),
				"max":      domain.MaxIssueImages,
			})
		}

		if s.store == nil {
			return apperrors.NewDependencyFailure("object store", errors.New("not configured"))
		}
		refs := make([]string, 0, len(uploads))
		for _, upload := range uploads {
			ref, err := s.store.Put(ctx, upload)
			if err != nil {
				return apperrors.NewDependencyFailure("object store", err)
			}
			refs = append(refs, ref)
		}

		if err := s.images.AppendRefs(ctx, issueID, refs); err != nil {
			return apperrors.MapError(err)
		}
		// bump updated_at on the aggregate
		if err := s.issues.Update(ctx, issue); err != nil {
			return apperrors.MapError(err)
		}
		updated = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadAggregate(ctx, updated)
}

// Get returns the issue snapshot as visible to the caller.
func (s *IssueService) Get(ctx context.Context, caller *domain.Identity, issueID string) (*domain.Issue, error) {
	issue, err := s.getIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !issue.ReportedBy(caller) && !caller.IsStaff() {
		return nil, apperrors.NewForbidden("access denied")
	}
	snapshot, err := s.loadAggregate(ctx, issue)
	if err != nil {
		return nil, err
	}
	snapshot.AdminNotes = snapshot.VisibleAdminNotes(caller)
	return snapshot, nil
}

// ListForReporter returns the reporter's own issues, newest first.
func (s *IssueService) ListForReporter(ctx context.Context, reporterID string, page, pageSize int, statusFilter *domain.IssueStatus) (*IssuePage, error) {
	filter := repository.IssueFilter{ReporterID: &reporterID}
	return s.list(ctx, filter, page, pageSize, statusFilter)
}

// ListAll returns all issues for staff, newest first.
func (s *IssueService) ListAll(ctx context.Context, caller *domain.Identity, page, pageSize int, statusFilter *domain.IssueStatus) (*IssuePage, error) {
	if !caller.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	return s.list(ctx, repository.IssueFilter{}, page, pageSize, statusFilter)
}

func (s *IssueService) list(ctx context.Context, filter repository.IssueFilter, page, pageSize int, statusFilter *domain.IssueStatus) (*IssuePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if statusFilter != nil {
		if !statusFilter.Valid() {
			return nil, apperrors.NewValidationError("unknown status filter", map[string]any{"status": *statusFilter})
		}
		filter.Statuses = []domain.IssueStatus{*statusFilter}
	}

	total, err := s.issues.CountWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	pageCount := (total + pageSize - 1) / pageSize

	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	issues, err := s.issues.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range issues {
		s.attachTechnician(ctx, &issues[i])
	}
	if issues == nil {
		issues = []domain.Issue{}
	}
	return &IssuePage{Issues: issues, TotalCount: total, PageCount: pageCount}, nil
}

func (s *IssueService) getIssue(ctx context.Context, issueID string) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.MapError(err)
	}
	return issue, nil
}

// loadAggregate fills the issue's images and technician slot.
func (s *IssueService) loadAggregate(ctx context.Context, issue *domain.Issue) (*domain.Issue, error) {
	refs, err := s.images.ListByIssue(ctx, issue.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	issue.Images = refs
	s.attachTechnician(ctx, issue)
	return issue, nil
}

func (s *IssueService) attachTechnician(ctx context.Context, issue *domain.Issue) {
	assignment, err := s.technicians.GetLatestByIssue(ctx, issue.ID)
	if err != nil {
		issue.Technician = nil
		return
	}
	issue.Technician = assignment
}

func applyPatch(issue *domain.Issue, patch IssuePatch) error {
	set := func(dst *string, src *string, field string) error {
		if src == nil {
			return nil
		}
		trimmed := strings.TrimSpace(*src)
		if trimmed == "" {
			return apperrors.NewValidationError(field+" must not be empty", map[string]any{"field": field})
		}
		*dst = trimmed
		return nil
	}
	if err := set(&issue.Title, patch.Title, "title"); err != nil {
		return err
	}
	if err := set(&issue.Description, patch.Description, "description"); err != nil {
		return err
	}
	if err := set(&issue.Location, patch.Location, "location"); err != nil {
		return err
	}
	if err := set(&issue.Address, patch.Address, "address"); err != nil {
		return err
	}
	if err := set(&issue.District, patch.District, "district"); err != nil {
		return err
	}
	if err := set(&issue.Province, patch.Province, "province"); err != nil {
		return err
	}
	for field, val := range map[string]*string{"mobile_no": patch.MobileNo, "whatsapp_no": patch.WhatsappNo} {
		if val == nil {
			continue
		}
		if err := validate.Var(*val, "required,len=10,numeric"); err != nil {
			return apperrors.NewValidationError(field+" must be exactly 10 digits", map[string]any{"field": field})
		}
		if field == "mobile_no" {
			issue.MobileNo = *val
		} else {
			issue.WhatsappNo = *val
		}
	}
	return nil
}

func validationDetails(err error) map[string]any {
	details := map[string]any{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
	}
	return details
}

func (s *IssueService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func actorFor(caller *domain.Identity) events.Actor {
	if caller == nil {
		return events.Actor{Role: domain.RoleGeneral}
	}
	callerID := caller.ID
	return events.Actor{Role: caller.Role, CallerID: &callerID}
}
