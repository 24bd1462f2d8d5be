package handlers

import (
	"bufio"
	"context"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const contentTypeNDJSON = "application/x-ndjson"

// streamNDJSON hands the response body to run once the handler returns. The
// request context is detached from the handler deadline because the body is
// written after the middleware chain has unwound.
func streamNDJSON(c *fiber.Ctx, logger *zap.Logger, name string, run func(ctx context.Context, w io.Writer) error) error {
	ctx := context.WithoutCancel(c.UserContext())
	c.Set(fiber.HeaderContentType, contentTypeNDJSON)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := run(ctx, w); err != nil {
			logger.Warn("stream aborted", zap.String("stream", name), zap.Error(err))
		}
		_ = w.Flush()
	})
	return nil
}
