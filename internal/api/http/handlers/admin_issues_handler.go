package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/api/dto"
	"github.com/spec-kit/issue-service/internal/auth"
	"github.com/spec-kit/issue-service/internal/service"
	apperrors "github.com/spec-kit/issue-service/pkg/util"
)

// AdminIssuesHandler manages staff-side issue endpoints.
type AdminIssuesHandler struct {
	issues      *service.IssueService
	assignments *service.AssignmentService
	exports     *service.ExportService
}

// NewAdminIssuesHandler constructs handler.
func NewAdminIssuesHandler(issues *service.IssueService, assignments *service.AssignmentService, exports *service.ExportService) *AdminIssuesHandler {
	return &AdminIssuesHandler{issues: issues, assignments: assignments, exports: exports}
}

// ListIssues GET /admin/issues.
func (h *AdminIssuesHandler) ListIssues(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	page, pageSize, statusFilter, err := parseListQuery(c)
	if err != nil {
		return err
	}
	result, err := h.issues.ListAll(c.UserContext(), caller, page, pageSize, statusFilter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueListResponse(result)})
}

// ChangeStatus PUT /admin/issues/:id/status.
func (h *AdminIssuesHandler) ChangeStatus(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	issue, err := h.issues.ChangeStatus(c.UserContext(), caller, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

// SetAdminNotes PUT /admin/issues/:id/notes.
func (h *AdminIssuesHandler) SetAdminNotes(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	var req dto.AdminNotesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	issue, err := h.issues.SetAdminNotes(c.UserContext(), caller, c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

// AssignTechnician POST /admin/issues/:id/technician.
func (h *AdminIssuesHandler) AssignTechnician(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	var req dto.AssignTechnicianRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	issue, err := h.assignments.Assign(c.UserContext(), caller, c.Params("id"), req.Name, req.Phone, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

// RemoveTechnician DELETE /admin/issues/:id/technician.
func (h *AdminIssuesHandler) RemoveTechnician(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	var req dto.RemoveTechnicianRequest
	// body optional on removal
	_ = c.BodyParser(&req)
	issue, err := h.assignments.Remove(c.UserContext(), caller, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

// ExportCSV GET /admin/issues/export.
func (h *AdminIssuesHandler) ExportCSV(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromContext(c)
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="issues.csv"`)
	return h.exports.WriteCSV(c.UserContext(), c.Response().BodyWriter(), caller, service.ExportScopeAll)
}
