package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-tracker/internal/api/http/handlers"
	"github.com/spec-kit/repair-tracker/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Orders         *handlers.OrdersHandler
	Timeline       *handlers.TimelineHandler
	Summary        *handlers.SummaryHandler
	Sync           *handlers.SyncHandler
	Board          *handlers.BoardHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("/api")
	api.Get("/get_orders", cfg.Orders.GetOrders)
	api.Get("/sync_runs", cfg.Orders.SyncRuns)
	api.Get("/get_timeline", cfg.Timeline.GetTimeline)
	api.Get("/timeline_diff", cfg.Timeline.Diff)
	api.Post("/issue_summary", cfg.Summary.IssueSummary)
	api.Post("/get_all_issue_summaries", cfg.Summary.AllSummaries)
	api.Post("/get_repair_times", cfg.Summary.RepairTimes)

	operator := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireOperator())
	operator.Post("/update_issues", cfg.Sync.UpdateIssues)
	operator.Post("/sync_all", cfg.Sync.SyncAll)
	operator.Post("/update_board", cfg.Board.UpdateBoard)
}
