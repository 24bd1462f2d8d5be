package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-tracker/internal/service"
	apperrors "github.com/spec-kit/repair-tracker/pkg/util/errorutil"
)

// OrdersHandler lists epics and their refresh history.
type OrdersHandler struct {
	epics *service.EpicService
	sync  *service.SyncService
}

// NewOrdersHandler constructs handler.
func NewOrdersHandler(epics *service.EpicService, sync *service.SyncService) *OrdersHandler {
	return &OrdersHandler{epics: epics, sync: sync}
}

// GetOrders GET /api/get_orders.
func (h *OrdersHandler) GetOrders(c *fiber.Ctx) error {
	return c.JSON(h.epics.Orders())
}

// SyncRuns GET /api/sync_runs?rt=&limit=.
func (h *OrdersHandler) SyncRuns(c *fiber.Ctx) error {
	rt := strings.TrimSpace(c.Query("rt"))
	if rt == "" {
		return apperrors.NewValidationError("rt required", nil)
	}
	runs, err := h.sync.Runs(c.UserContext(), rt, c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(runs)
}
