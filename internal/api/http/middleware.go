package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/observability"
	apperrors "github.com/spec-kit/repair-tracker/pkg/util/errorutil"
)

// MiddlewareConfig carries what the global middleware chain needs.
type MiddlewareConfig struct {
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Timeout      time.Duration
	AllowOrigins string
}

// RegisterMiddlewares installs the global chain. The request logger sits
// outside the error renderer so it records the final status.
func RegisterMiddlewares(app *fiber.App, cfg MiddlewareConfig) {
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: orDefault(cfg.AllowOrigins, "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	if cfg.Timeout > 0 {
		app.Use(deadline(cfg.Timeout))
	}
	app.Use(observability.RequestLogger(cfg.Logger, cfg.Metrics))
	app.Use(renderErrors(cfg.Logger, cfg.Metrics))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			cfg.Logger.Error("panic recovered",
				zap.String("path", c.Path()),
				zap.String("request_id", requestID(c)),
				zap.Any("panic", e),
				zap.Stack("stack"),
			)
		},
	}))
}

// deadline bounds the handler's context. Streamed bodies detach from it.
func deadline(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// renderErrors turns any returned error into the {"error": {...}} envelope.
func renderErrors(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}
		de := toDomainError(err)
		if metrics != nil {
			metrics.RecordError(routeOf(c), c.Method(), de.Code)
		}
		if de.HTTPStatus >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("path", c.Path()),
				zap.String("request_id", requestID(c)),
				zap.Error(de),
			)
		}

		body := fiber.Map{"code": de.Code, "message": de.Message}
		if len(de.Details) > 0 {
			body["details"] = de.Details
		}
		return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": body})
	}
}

// toDomainError also maps fiber's own errors. Recovered panics arrive as plain
// errors and become INTERNAL_ERROR.
func toDomainError(err error) *apperrors.DomainError {
	if fe, ok := err.(*fiber.Error); ok {
		switch fe.Code {
		case fiber.StatusNotFound:
			return apperrors.ToDomainError(apperrors.NewNotFound("route", nil))
		case fiber.StatusMethodNotAllowed:
			return apperrors.NewDomainError("METHOD_NOT_ALLOWED", fe.Message, fe.Code, nil)
		}
		if fe.Code < fiber.StatusInternalServerError {
			return apperrors.NewDomainError("BAD_REQUEST", fe.Message, fe.Code, nil)
		}
	}
	return apperrors.ToDomainError(err)
}

func routeOf(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return ""
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
