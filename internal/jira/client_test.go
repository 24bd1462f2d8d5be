package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(config.JiraConfig{
		BaseURL:           srv.URL,
		Email:             "ops@example.com",
		APIToken:          "secret",
		Project:           "RT",
		PageSize:          2,
		MaxRetries:        2,
		RequestsPerSecond: 1000,
	}, zap.NewNop())
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestSearchPaginatesAndReportsProgress(t *testing.T) {
	var gotJQL, gotExpand string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "ops@example.com" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		gotJQL = r.URL.Query().Get("jql")
		gotExpand = r.URL.Query().Get("expand")
		start, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		var issues []string
		for i := start; i < start+2 && i < 3; i++ {
			issues = append(issues, fmt.Sprintf(`{"key":"RT-%d"}`, i))
		}
		fmt.Fprintf(w, `{"startAt":%d,"maxResults":2,"total":3,"issues":[%s]}`, start, join(issues))
	})

	var progress [][2]int
	issues, err := client.EpicIssues(context.Background(), "RT-1", func(current, total int) {
		progress = append(progress, [2]int{current, total})
	})
	if err != nil {
		t.Fatalf("EpicIssues() error = %v", err)
	}
	if len(issues) != 3 {
		t.Fatalf("len(issues) = %d, want 3", len(issues))
	}
	if gotJQL != `"Epic Link" = RT-1` {
		t.Errorf("jql = %q", gotJQL)
	}
	if gotExpand != "changelog,comment" {
		t.Errorf("expand = %q", gotExpand)
	}
	want := [][2]int{{2, 3}, {3, 3}}
	if len(progress) != len(want) || progress[0] != want[0] || progress[1] != want[1] {
		t.Errorf("progress = %v, want %v", progress, want)
	}
}

func TestSearchFollowsServerPageCap(t *testing.T) {
	var starts []int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		starts = append(starts, start)
		// asked for 2, the server hands out 1 per page
		body := fmt.Sprintf(`{"key":"RT-%d"}`, start)
		if start >= 5 {
			body = ""
		}
		fmt.Fprintf(w, `{"startAt":%d,"maxResults":1,"total":5,"issues":[%s]}`, start, body)
	})

	var last [2]int
	issues, err := client.EpicIssues(context.Background(), "RT-1", func(current, total int) {
		last = [2]int{current, total}
	})
	if err != nil {
		t.Fatalf("EpicIssues() error = %v", err)
	}
	if len(issues) != 5 {
		t.Fatalf("len(issues) = %d, want 5", len(issues))
	}
	if want := []int{0, 1, 2, 3, 4}; fmt.Sprint(starts) != fmt.Sprint(want) {
		t.Errorf("startAt sequence = %v, want %v", starts, want)
	}
	if last != [2]int{5, 5} {
		t.Errorf("last progress = %v, want [5 5]", last)
	}
}

func TestSearchRetriesOnRateLimit(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"startAt":0,"maxResults":2,"total":1,"issues":[{"key":"RT-1"}]}`)
	})
	var waited []time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}

	issues, err := client.Epics(context.Background())
	if err != nil {
		t.Fatalf("Epics() error = %v", err)
	}
	if len(issues) != 1 {
		t.Errorf("len(issues) = %d, want 1", len(issues))
	}
	if len(waited) != 1 || waited[0] != 3*time.Second {
		t.Errorf("waited = %v, want [3s]", waited)
	}
}

func TestSearchGivesUpAfterMaxRetries(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := client.Epics(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("Epics() error = %v, want 429 APIError", err)
	}
}

func TestSearchSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad jql", http.StatusBadRequest)
	})
	_, err := client.Epics(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Body != "bad jql" {
		t.Fatalf("Epics() error = %v", err)
	}
}

func TestFindTaskBySerial(t *testing.T) {
	var gotJQL, gotMax string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotJQL = r.URL.Query().Get("jql")
		gotMax = r.URL.Query().Get("maxResults")
		fmt.Fprint(w, `{"startAt":0,"maxResults":1,"total":5,"issues":[{"key":"RT-8"}]}`)
	})
	issue, found, err := client.FindTaskBySerial(context.Background(), "SN-1")
	if err != nil || !found {
		t.Fatalf("FindTaskBySerial() = (%v, %v)", found, err)
	}
	if gotJQL != `summary ~ "SN-1" AND issuetype = Task` || gotMax != "1" {
		t.Errorf("jql = %q maxResults = %q", gotJQL, gotMax)
	}
	var decoded struct{ Key string }
	_ = json.Unmarshal(issue, &decoded)
	if decoded.Key != "RT-8" {
		t.Errorf("key = %q, want RT-8", decoded.Key)
	}
}

func TestUpdateIssueFields(t *testing.T) {
	var method, path string
	var body map[string]map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusNoContent)
	})
	err := client.UpdateIssueFields(context.Background(), "RT-8", map[string]any{"customfield_10229": "525"})
	if err != nil {
		t.Fatalf("UpdateIssueFields() error = %v", err)
	}
	if method != http.MethodPut || path != "/rest/api/2/issue/RT-8" {
		t.Errorf("request = %s %s", method, path)
	}
	if body["fields"]["customfield_10229"] != "525" {
		t.Errorf("body = %v", body)
	}
}

func TestClientNotConfigured(t *testing.T) {
	client := NewClient(config.JiraConfig{}, nil)
	if client.Configured() {
		t.Error("Configured() = true, want false")
	}
	if _, err := client.Epics(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Epics() error = %v, want ErrNotConfigured", err)
	}
}

func join(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += item
	}
	return out
}
