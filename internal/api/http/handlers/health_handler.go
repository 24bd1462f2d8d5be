package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/repair-tracker/internal/observability"
)

const probeTimeout = 2 * time.Second

// Pinger is an optional backing service.
type Pinger interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

// Probe names a dependency checked by the readiness endpoint.
type Probe struct {
	Name   string
	Target Pinger
}

// HealthHandler serves liveness, readiness and the counters snapshot.
type HealthHandler struct {
	name    string
	version string
	started time.Time
	probes  []Probe
	metrics *observability.Metrics
}

func NewHealthHandler(name, version string, metrics *observability.Metrics, probes ...Probe) *HealthHandler {
	return &HealthHandler{name: name, version: version, started: time.Now(), probes: probes, metrics: metrics}
}

func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.name,
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// Ready pings every enabled probe concurrently. Switched-off dependencies
// report "disabled" and never fail readiness.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		states = make(map[string]string, len(h.probes))
		ready  = true
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range h.probes {
		p := p
		if p.Target == nil || !p.Target.Enabled() {
			mu.Lock()
			states[p.Name] = "disabled"
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			state := "ok"
			if err := p.Target.Ping(gctx); err != nil {
				state = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			states[p.Name] = state
			if state != "ok" {
				ready = false
			}
			return nil
		})
	}
	_ = g.Wait()

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": states,
			},
		})
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": states})
}

// Metrics returns the in-process counters.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}
