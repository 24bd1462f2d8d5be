package handlers

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/api/dto"
	"github.com/spec-kit/repair-tracker/internal/repository"
	"github.com/spec-kit/repair-tracker/internal/service"
	"github.com/spec-kit/repair-tracker/internal/stream"
	"github.com/spec-kit/repair-tracker/internal/summary"
	apperrors "github.com/spec-kit/repair-tracker/pkg/util/errorutil"
)

// SummaryHandler serves issue activity summaries.
type SummaryHandler struct {
	service *service.SummaryService
	logger  *zap.Logger
}

// NewSummaryHandler constructs handler.
func NewSummaryHandler(summaryService *service.SummaryService, logger *zap.Logger) *SummaryHandler {
	return &SummaryHandler{service: summaryService, logger: logger}
}

// IssueSummary POST /api/issue_summary.
func (h *SummaryHandler) IssueSummary(c *fiber.Ctx) error {
	var req dto.IssueSummaryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Serial) == "" || strings.TrimSpace(req.EpicKey) == "" {
		return apperrors.NewValidationError("serial, epic_key required", nil)
	}
	result, err := h.service.IssueSummary(c.UserContext(), req.EpicKey, strings.TrimSpace(req.Serial))
	switch {
	case errors.Is(err, summary.ErrSerialNotFound), errors.Is(err, repository.ErrEpicNotFound):
		// same flat shape as the error records of the NDJSON streams
		return c.Status(fiber.StatusNotFound).JSON(stream.ErrorRecord{Error: err.Error()})
	case err != nil:
		return err
	}
	return c.JSON(result)
}

// AllSummaries POST /api/get_all_issue_summaries, streamed as NDJSON.
func (h *SummaryHandler) AllSummaries(c *fiber.Ctx) error {
	key, err := epicKeyFromBody(c)
	if err != nil {
		return err
	}
	return streamNDJSON(c, h.logger, "summaries", func(ctx context.Context, w io.Writer) error {
		return h.service.StreamSummaries(ctx, key, w)
	})
}

// RepairTimes POST /api/get_repair_times, streamed as NDJSON.
func (h *SummaryHandler) RepairTimes(c *fiber.Ctx) error {
	key, err := epicKeyFromBody(c)
	if err != nil {
		return err
	}
	return streamNDJSON(c, h.logger, "repair_times", func(ctx context.Context, w io.Writer) error {
		return h.service.StreamRepairTimes(ctx, key, w)
	})
}

func epicKeyFromBody(c *fiber.Ctx) (string, error) {
	var req dto.EpicRequest
	if err := c.BodyParser(&req); err != nil {
		return "", apperrors.NewValidationError("invalid payload", nil)
	}
	key := req.Key()
	if key == "" {
		return "", apperrors.NewValidationError("rt_number required", nil)
	}
	return key, nil
}
