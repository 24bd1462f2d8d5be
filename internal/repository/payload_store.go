package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrEpicNotFound is returned when an epic has never been stored.
var ErrEpicNotFound = errors.New("epic not found")

// EpicRecord is a raw epic payload keyed by its tracker key.
type EpicRecord struct {
	Key       string
	Payload   json.RawMessage
	UpdatedAt time.Time
}

// SyncRun records one refresh of an epic's issues.
type SyncRun struct {
	ID         string    `json:"id"`
	EpicKey    string    `json:"rt_num"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	IssueCount int       `json:"issue_count"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
}

// PayloadStore persists raw tracker payloads. Issue payloads of an epic are
// always replaced wholesale.
type PayloadStore interface {
	ListEpics(ctx context.Context) ([]EpicRecord, error)
	GetEpic(ctx context.Context, key string) (*EpicRecord, error)
	UpsertEpics(ctx context.Context, records []EpicRecord) error
	ReplaceIssues(ctx context.Context, epicKey string, payloads []json.RawMessage) error
	ListIssues(ctx context.Context, epicKey string) ([]json.RawMessage, error)
	RecordSync(ctx context.Context, run SyncRun) error
	ListSyncRuns(ctx context.Context, epicKey string, limit int) ([]SyncRun, error)
}

// KeyOf extracts the "key" attribute of a raw tracker payload.
func KeyOf(payload json.RawMessage) (string, error) {
	var probe struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return "", err
	}
	if probe.Key == "" {
		return "", errors.New("payload has no key")
	}
	return probe.Key, nil
}

const defaultSyncRunLimit = 20

func syncRunLimit(limit int) int {
	if limit <= 0 {
		return defaultSyncRunLimit
	}
	return limit
}
