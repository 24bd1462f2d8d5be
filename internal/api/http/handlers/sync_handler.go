package handlers

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/api/dto"
	"github.com/spec-kit/repair-tracker/internal/auth"
	"github.com/spec-kit/repair-tracker/internal/events"
	"github.com/spec-kit/repair-tracker/internal/service"
	apperrors "github.com/spec-kit/repair-tracker/pkg/util/errorutil"
)

// SyncHandler triggers refreshes from the tracker.
type SyncHandler struct {
	service *service.SyncService
	logger  *zap.Logger
}

// NewSyncHandler constructs handler.
func NewSyncHandler(syncService *service.SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{service: syncService, logger: logger}
}

// UpdateIssues POST /api/update_issues; the progress feed is streamed as NDJSON.
func (h *SyncHandler) UpdateIssues(c *fiber.Ctx) error {
	key, err := epicKeyFromBody(c)
	if err != nil {
		return err
	}
	actor := actorFrom(c)
	return streamNDJSON(c, h.logger, "update_issues", func(ctx context.Context, w io.Writer) error {
		return h.service.StreamEpic(ctx, key, actor, w)
	})
}

// SyncAll POST /api/sync_all.
func (h *SyncHandler) SyncAll(c *fiber.Ctx) error {
	var req dto.SyncAllRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	outcomes, err := h.service.SyncAll(c.UserContext(), req.Epics, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(outcomes)
}

func actorFrom(c *fiber.Ctx) events.Actor {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return events.SystemActor
	}
	return events.Actor{Type: principal.SubjectType, Name: principal.Name}
}
