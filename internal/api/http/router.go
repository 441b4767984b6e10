package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/api/http/handlers"
	"github.com/spec-kit/issue-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Issues         *handlers.IssuesHandler
	AdminIssues    *handlers.AdminIssuesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	issues := app.Group("/issues")
	// creation accepts anonymous reports
	issues.Post("/", cfg.AuthMiddleware.HandleOptional, cfg.Issues.CreateIssue)

	authed := issues.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	authed.Get("/", cfg.Issues.ListIssues)
	authed.Get("/export", cfg.Issues.ExportCSV)
	authed.Get("/:id", cfg.Issues.GetIssue)
	authed.Patch("/:id", cfg.Issues.EditIssue)
	authed.Delete("/:id", cfg.Issues.DeleteIssue)
	authed.Post("/:id/images", cfg.Issues.AttachImages)
	authed.Get("/:id/messages", cfg.Issues.ListMessages)
	authed.Post("/:id/messages", cfg.Issues.AppendMessage)
	authed.Post("/:id/messages/read", cfg.Issues.MarkMessagesRead)
	authed.Get("/:id/messages/unread", cfg.Issues.UnreadCount)

	admin := app.Group("/admin/issues", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	admin.Get("/", cfg.AdminIssues.ListIssues)
	admin.Get("/export", cfg.AdminIssues.ExportCSV)
	admin.Put("/:id/status", cfg.AdminIssues.ChangeStatus)
	admin.Put("/:id/notes", cfg.AdminIssues.SetAdminNotes)
	admin.Post("/:id/technician", cfg.AdminIssues.AssignTechnician)
	admin.Delete("/:id/technician", cfg.AdminIssues.RemoveTechnician)
}
