package handlers

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-tracker/internal/observability"
)

type stubPinger struct {
	enabled bool
	err     error
}

func (s stubPinger) Enabled() bool {
	return s.enabled
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

func TestReady(t *testing.T) {
	cases := []struct {
		name       string
		probes     []Probe
		wantStatus int
		wantBody   string
	}{
		{name: "no probes", wantStatus: fiber.StatusOK, wantBody: `"status":"ready"`},
		{
			name:       "disabled dependency",
			probes:     []Probe{{Name: "postgres", Target: stubPinger{}}, {Name: "redis"}},
			wantStatus: fiber.StatusOK,
			wantBody:   `"postgres":"disabled"`,
		},
		{
			name:       "healthy",
			probes:     []Probe{{Name: "redis", Target: stubPinger{enabled: true}}},
			wantStatus: fiber.StatusOK,
			wantBody:   `"redis":"ok"`,
		},
		{
			name:       "failing",
			probes:     []Probe{{Name: "redis", Target: stubPinger{enabled: true, err: errors.New("connection refused")}}},
			wantStatus: fiber.StatusServiceUnavailable,
			wantBody:   `"redis":"connection refused"`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/ready", NewHealthHandler("repair-tracker", "test", observability.NewMetrics(), tc.probes...).Ready)

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ready", nil), -1)
			if err != nil {
				t.Fatalf("Test() error = %v", err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tc.wantStatus || !strings.Contains(string(body), tc.wantBody) {
				t.Fatalf("got %d %s, want %d containing %s", resp.StatusCode, body, tc.wantStatus, tc.wantBody)
			}
		})
	}
}
