package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-tracker/internal/api/dto"
	"github.com/spec-kit/repair-tracker/internal/service"
	apperrors "github.com/spec-kit/repair-tracker/pkg/util/errorutil"
)

// AuthHandler issues operator tokens.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.OperatorLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return apperrors.NewValidationError("username, password required", nil)
	}
	meta, token, err := h.service.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{Token: token, TokenID: meta.ID, ExpiresAt: meta.ExpiresAt}})
}
