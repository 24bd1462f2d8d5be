package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/repair-tracker/internal/config"
)

const defaultRetryAfter = 10 * time.Second

// ErrNotConfigured is returned when no tracker base URL is set.
var ErrNotConfigured = errors.New("jira: base url not configured")

// APIError carries a non-success tracker response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira api status=%d body=%s", e.Status, e.Body)
}

// ProgressFunc receives the number of issues fetched so far and the total reported by the tracker.
type ProgressFunc func(current, total int)

// SearchOptions tunes a paginated search.
type SearchOptions struct {
	Expand   []string
	PageSize int
	// Single stops after the first page.
	Single     bool
	OnProgress ProgressFunc
}

type searchPage struct {
	StartAt    int               `json:"startAt"`
	MaxResults int               `json:"maxResults"`
	Total      int               `json:"total"`
	Issues     []json.RawMessage `json:"issues"`
}

// Client talks to the tracker REST API.
type Client struct {
	baseURL    string
	email      string
	token      string
	project    string
	pageSize   int
	maxRetries int
	http       *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a client from configuration.
func NewClient(cfg config.JiraConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		email:      cfg.Email,
		token:      cfg.APIToken,
		project:    cfg.Project,
		pageSize:   pageSize,
		maxRetries: cfg.MaxRetries,
		http:       &http.Client{Timeout: cfg.RequestTimeout()},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Configured reports whether a tracker endpoint is set.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Search runs a JQL query and collects every page of raw issue payloads.
func (c *Client) Search(ctx context.Context, jql string, opts SearchOptions) ([]json.RawMessage, error) {
	if strings.TrimSpace(jql) == "" {
		return nil, errors.New("jira: empty jql")
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = c.pageSize
	}

	var out []json.RawMessage
	startAt := 0
	for {
		q := url.Values{}
		q.Set("jql", jql)
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(pageSize))
		if len(opts.Expand) > 0 {
			q.Set("expand", strings.Join(opts.Expand, ","))
		}

		var page searchPage
		if err := c.doJSON(ctx, http.MethodGet, c.apiURL("/rest/api/2/search", q), nil, &page); err != nil {
			return nil, err
		}
		if len(page.Issues) == 0 {
			break
		}
		out = append(out, page.Issues...)

		if opts.OnProgress != nil {
			opts.OnProgress(startAt+len(page.Issues), page.Total)
		}
		if opts.Single {
			break
		}
		// the server may cap maxResults below what was asked for
		startAt += len(page.Issues)
		if startAt >= page.Total {
			break
		}
	}
	return out, nil
}

// Epics lists every epic of the configured project.
func (c *Client) Epics(ctx context.Context) ([]json.RawMessage, error) {
	jql := fmt.Sprintf("issuetype = Epic AND project = %s", c.project)
	return c.Search(ctx, jql, SearchOptions{})
}

// EpicIssues fetches every issue linked to an epic with changelog and comments.
func (c *Client) EpicIssues(ctx context.Context, epicKey string, onProgress ProgressFunc) ([]json.RawMessage, error) {
	jql := fmt.Sprintf("%q = %s", "Epic Link", epicKey)
	return c.Search(ctx, jql, SearchOptions{
		Expand:     []string{"changelog", "comment"},
		OnProgress: onProgress,
	})
}

// FindTaskBySerial returns the first task whose summary matches serial.
func (c *Client) FindTaskBySerial(ctx context.Context, serial string) (json.RawMessage, bool, error) {
	escaped := strings.ReplaceAll(serial, `"`, `\"`)
	jql := fmt.Sprintf(`summary ~ "%s" AND issuetype = Task`, escaped)
	issues, err := c.Search(ctx, jql, SearchOptions{PageSize: 1, Single: true})
	if err != nil {
		return nil, false, err
	}
	if len(issues) == 0 {
		return nil, false, nil
	}
	return issues[0], true, nil
}

// UpdateIssueFields sets the given fields on an issue.
func (c *Client) UpdateIssueFields(ctx context.Context, key string, fields map[string]any) error {
	if key == "" {
		return errors.New("jira: empty issue key")
	}
	body := map[string]any{"fields": fields}
	return c.doJSON(ctx, http.MethodPut, c.apiURL("/rest/api/2/issue/"+url.PathEscape(key), nil), body, nil)
}

func (c *Client) apiURL(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) doJSON(ctx context.Context, method, u string, body, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	for retries := 0; ; retries++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.email != "" || c.token != "" {
			req.SetBasicAuth(c.email, c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("jira request: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if retries >= c.maxRetries {
				return &APIError{Status: resp.StatusCode, Body: "max retries reached"}
			}
			c.logger.Warn("jira rate limited; backing off",
				zap.Int("retry", retries+1),
				zap.Int("max_retries", c.maxRetries),
				zap.Duration("wait", wait))
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		err = decodeResponse(resp, out)
		resp.Body.Close()
		return err
	}
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode jira response: %w", err)
	}
	return nil
}

func retryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
