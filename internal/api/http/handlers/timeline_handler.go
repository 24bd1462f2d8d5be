package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-tracker/internal/api/dto"
	"github.com/spec-kit/repair-tracker/internal/service"
	"github.com/spec-kit/repair-tracker/internal/timeline"
	apperrors "github.com/spec-kit/repair-tracker/pkg/util/errorutil"
)

// TimelineHandler serves chart data and diffs.
type TimelineHandler struct {
	service *service.TimelineService
}

// NewTimelineHandler constructs handler.
func NewTimelineHandler(timelineService *service.TimelineService) *TimelineHandler {
	return &TimelineHandler{service: timelineService}
}

// GetTimeline GET /api/get_timeline?rt=&trim=.
func (h *TimelineHandler) GetTimeline(c *fiber.Ctx) error {
	rt := strings.TrimSpace(c.Query("rt"))
	if rt == "" {
		return apperrors.NewValidationError("rt required", nil)
	}
	view, err := h.service.View(c.UserContext(), rt, c.QueryBool("trim", false))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTimelineResponse(view))
}

// Diff GET /api/timeline_diff?rt=&day=&label=&adjacency=&direction=&trim=.
func (h *TimelineHandler) Diff(c *fiber.Ctx) error {
	req := service.DiffRequest{
		EpicKey:   strings.TrimSpace(c.Query("rt")),
		Day:       strings.TrimSpace(c.Query("day")),
		Label:     c.Query("label"),
		Adjacency: timeline.Adjacency(c.Query("adjacency")),
		Direction: timeline.Direction(c.Query("direction")),
		Trimmed:   c.QueryBool("trim", false),
	}
	if req.EpicKey == "" || req.Day == "" || req.Label == "" {
		return apperrors.NewValidationError("rt, day, label required", nil)
	}
	result, err := h.service.Diff(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
