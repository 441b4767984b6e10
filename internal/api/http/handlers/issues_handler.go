package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/api/dto"
	"github.com/spec-kit/issue-service/internal/auth"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/service"
	"github.com/spec-kit/issue-service/internal/storage"
	apperrors "github.com/spec-kit/issue-service/pkg/util"
)

// IssuesHandler manages reporter-facing issue endpoints.
type IssuesHandler struct {
	issues  *service.IssueService
	threads *service.ThreadService
	exports *service.ExportService
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issues *service.IssueService, threads *service.ThreadService, exports *service.ExportService) *IssuesHandler {
	return &IssuesHandler{issues: issues, threads: threads, exports: exports}
}

// CreateIssue POST /issues. Anonymous callers are allowed.
func (h *IssuesHandler) CreateIssue(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	var req dto.CreateIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	issue, err := h.issues.Create(c.UserContext(), caller, service.IssueCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Address:     req.Address,
		District:    req.District,
		Province:    req.Province,
		MobileNo:    req.MobileNo,
		WhatsappNo:  req.WhatsappNo,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": issueResponse(issue)})
}

// ListIssues GET /issues. Returns the caller's own issues.
func (h *IssuesHandler) ListIssues(c *fiber.Ctx) error {
	caller, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	page, pageSize, statusFilter, err := parseListQuery(c)
	if err != nil {
		return err
	}
	result, err := h.issues.ListForReporter(c.UserContext(), caller.ID, page, pageSize, statusFilter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueListResponse(result)})
}

// GetIssue GET /issues/:id.
func (h *IssuesHandler) GetIssue(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	issue, err := h.issues.Get(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

// EditIssue PATCH /issues/:id.
func (h *IssuesHandler) EditIssue(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	var req dto.EditIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	issue, err := h.issues.Edit(c.UserContext(), caller, c.Params("id"), service.IssuePatch{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Address:     req.Address,
		District:    req.District,
		Province:    req.Province,
		MobileNo:    req.MobileNo,
		WhatsappNo:  req.WhatsappNo,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

// DeleteIssue DELETE /issues/:id.
func (h *IssuesHandler) DeleteIssue(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	if err := h.issues.Delete(c.UserContext(), caller, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AttachImages POST /issues/:id/images. Multipart upload.
func (h *IssuesHandler) AttachImages(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.NewValidationError("multipart form required", nil)
	}
	files := form.File["images"]
	if len(files) == 0 {
		return apperrors.NewValidationError("no images supplied", nil)
	}

	uploads := make([]storage.ImageUpload, 0, len(files))
	opened := make([]multipart.File, 0, len(files))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return apperrors.NewValidationError("unreadable upload", map[string]any{"file": fh.Filename})
		}
		opened = append(opened, f)
		uploads = append(uploads, storage.ImageUpload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Reader:      f,
		})
	}

	issue, err := h.issues.AttachImages(c.UserContext(), caller, c.Params("id"), uploads)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

// ListMessages GET /issues/:id/messages.
func (h *IssuesHandler) ListMessages(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	msgs, err := h.threads.ListThread(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": messageResponses(msgs)})
}

// AppendMessage POST /issues/:id/messages.
func (h *IssuesHandler) AppendMessage(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	var req dto.AppendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.threads.Append(c.UserContext(), caller, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

// MarkMessagesRead POST /issues/:id/messages/read.
func (h *IssuesHandler) MarkMessagesRead(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	var req dto.MarkReadRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.threads.MarkRead(c.UserContext(), caller, c.Params("id"), req.MessageIDs); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// UnreadCount GET /issues/:id/messages/unread.
func (h *IssuesHandler) UnreadCount(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	count, err := h.threads.UnreadCount(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UnreadCountResponse{UnreadCount: count}})
}

// ExportCSV GET /issues/export. Exports the caller's own issues.
func (h *IssuesHandler) ExportCSV(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="issues.csv"`)
	return h.exports.WriteCSV(c.UserContext(), c.Response().BodyWriter(), caller, service.ExportScopeMine)
}

func parseListQuery(c *fiber.Ctx) (page, pageSize int, statusFilter *domain.IssueStatus, err error) {
	page = parseInt(c.Query("page"), 1)
	pageSize = parseInt(c.Query("page_size"), 20)
	if statusStr := strings.TrimSpace(c.Query("status")); statusStr != "" {
		status := domain.IssueStatus(statusStr)
		statusFilter = &status
	}
	return page, pageSize, statusFilter, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func issueResponse(issue *domain.Issue) dto.IssueResponse {
	resp := dto.IssueResponse{
		ID:          issue.ID,
		ReporterID:  issue.ReporterID,
		Title:       issue.Title,
		Description: issue.Description,
		Location:    issue.Location,
		Address:     issue.Address,
		District:    issue.District,
		Province:    issue.Province,
		MobileNo:    issue.MobileNo,
		WhatsappNo:  issue.WhatsappNo,
		Images:      issue.Images,
		Status:      issue.Status,
		AdminNotes:  issue.AdminNotes,
		CreatedAt:   issue.CreatedAt,
		UpdatedAt:   issue.UpdatedAt,
	}
	if resp.Images == nil {
		resp.Images = []string{}
	}
	if issue.Technician != nil {
		resp.Technician = &dto.TechnicianResponse{
			Name:           issue.Technician.Name,
			Phone:          issue.Technician.Phone,
			AssignedAt:     issue.Technician.AssignedAt,
			RemovedAt:      issue.Technician.RemovedAt,
			RemovalMessage: issue.Technician.RemovalMessage,
		}
	}
	return resp
}

func issueListResponse(page *service.IssuePage) dto.IssueListResponse {
	items := make([]dto.IssueResponse, 0, len(page.Issues))
	for i := range page.Issues {
		items = append(items, issueResponse(&page.Issues[i]))
	}
	return dto.IssueListResponse{
		Issues:     items,
		TotalCount: page.TotalCount,
		PageCount:  page.PageCount,
	}
}

func messageResponse(msg *domain.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:         msg.ID,
		IssueID:    msg.IssueID,
		Sender:     msg.Sender,
		Content:    msg.Content,
		ReadStatus: msg.ReadStatus,
		CreatedAt:  msg.CreatedAt,
	}
}

func messageResponses(msgs []domain.Message) []dto.MessageResponse {
	items := make([]dto.MessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, messageResponse(&msgs[i]))
	}
	return items
}
