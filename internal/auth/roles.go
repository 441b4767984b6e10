package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/issue-service/pkg/util"
)

// RequireAuthenticated ensures a caller identity is present.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireStaff ensures the caller holds an operator role.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok || !identity.Role.Staff() {
			return apperrors.NewForbidden("staff role required")
		}
		return c.Next()
	}
}
