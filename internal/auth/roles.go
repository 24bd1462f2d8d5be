package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-tracker/internal/domain"
	apperrors "github.com/spec-kit/repair-tracker/pkg/util/errorutil"
)

// RequireOperator ensures an operator is authenticated.
func RequireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.SubjectType != domain.SubjectTypeOperator {
			return apperrors.NewForbidden("operator required")
		}
		return c.Next()
	}
}
