package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/repair-tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventEpicReloaded EventType = "epic_reloaded"
	EventEpicsListed  EventType = "epics_listed"
	EventSyncFailed   EventType = "sync_failed"
	EventBoardUpdated EventType = "board_updated"
	EventBoardSkipped EventType = "board_skipped"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.SubjectType `json:"type"`
	Name string             `json:"name,omitempty"`
}

// SystemActor is used for work not triggered by an operator.
var SystemActor = Actor{Type: domain.SubjectTypeSystem}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	EpicKey   string      `json:"rt_num,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, epicKey string, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		EpicKey:   epicKey,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// EpicReloadedPayload payload.
type EpicReloadedPayload struct {
	RunID      string `json:"run_id"`
	Generation string `json:"generation"`
	IssueCount int    `json:"issue_count"`
	Skipped    int    `json:"skipped"`
}

// EpicsListedPayload payload.
type EpicsListedPayload struct {
	Count int `json:"count"`
}

// SyncFailedPayload payload.
type SyncFailedPayload struct {
	RunID string `json:"run_id"`
	Error string `json:"error"`
}

// BoardUpdatedPayload payload.
type BoardUpdatedPayload struct {
	IssueKey string            `json:"issue_key"`
	Serial   string            `json:"serial"`
	Changed  map[string]string `json:"changed"`
}

// BoardSkippedPayload payload.
type BoardSkippedPayload struct {
	Serial string `json:"serial"`
	Reason string `json:"reason"`
}
