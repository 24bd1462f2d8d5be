package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-tracker/internal/api/dto"
	"github.com/spec-kit/repair-tracker/internal/service"
	apperrors "github.com/spec-kit/repair-tracker/pkg/util/errorutil"
)

// BoardHandler accepts tester readings.
type BoardHandler struct {
	service *service.BoardService
}

// NewBoardHandler constructs handler.
func NewBoardHandler(boardService *service.BoardService) *BoardHandler {
	return &BoardHandler{service: boardService}
}

// UpdateBoard POST /api/update_board.
func (h *BoardHandler) UpdateBoard(c *fiber.Ctx) error {
	var req dto.BoardUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.UpdateBoard(c.UserContext(), service.BoardUpdate{
		Serial:     req.Serial,
		BoardModel: req.BoardModel,
		Frequency:  req.Frequency,
		HashRate:   req.HashRate,
	}, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(result)
}
