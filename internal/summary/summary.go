package summary

import (
	"errors"
	"sort"
	"time"

	"github.com/spec-kit/repair-tracker/internal/domain"
)

const (
	EventStatusChange = "status_change"
	EventComment      = "comment"
)

// ErrSerialNotFound is returned when no issue of an epic carries the serial.
var ErrSerialNotFound = errors.New("serial not found")

// Event is one entry of an issue's merged activity log.
// LengthSeconds is set on status changes only: the time until the next
// status change, or -1 for the last one.
type Event struct {
	Type          string    `json:"type"`
	Time          time.Time `json:"time"`
	Author        string    `json:"author"`
	From          string    `json:"from,omitempty"`
	To            string    `json:"to,omitempty"`
	LengthSeconds *int64    `json:"length_seconds,omitempty"`
	Body          string    `json:"body,omitempty"`
}

// Length returns the status duration, or -1 when the status is still current.
func (e Event) Length() time.Duration {
	if e.LengthSeconds == nil || *e.LengthSeconds < 0 {
		return -1
	}
	return time.Duration(*e.LengthSeconds) * time.Second
}

// IssueSummary is the per-issue view returned by summary queries.
type IssueSummary struct {
	Serial        string   `json:"serial"`
	Key           string   `json:"rt_num"`
	EpicKey       string   `json:"epic_key"`
	Kind          string   `json:"type"`
	Assignee      string   `json:"assignee,omitempty"`
	BoardModel    string   `json:"board_model,omitempty"`
	RepairSummary string   `json:"repair_summary"`
	LinkedIssues  []string `json:"linked_issues,omitempty"`
	Events        []Event  `json:"events"`
}

// Summarize builds the summary of one issue.
func Summarize(epicKey string, issue domain.Issue) IssueSummary {
	return IssueSummary{
		Serial:        issue.Serial,
		Key:           issue.Key,
		EpicKey:       epicKey,
		Kind:          string(issue.Kind),
		Assignee:      issue.Assignee,
		BoardModel:    issue.BoardModel(),
		RepairSummary: issue.RepairSummary,
		LinkedIssues:  issue.LinkedIssues(),
		Events:        Events(issue),
	}
}

// Events merges status changes and comments ordered by time. On equal
// timestamps status changes come first.
func Events(issue domain.Issue) []Event {
	history := append([]domain.StatusChange{}, issue.StatusHistory...)
	domain.SortStatusChanges(history)

	events := make([]Event, 0, len(history)+len(issue.Comments))
	for i, change := range history {
		length := int64(-1)
		if i+1 < len(history) {
			length = int64(history[i+1].Timestamp.Sub(change.Timestamp) / time.Second)
		}
		events = append(events, Event{
			Type:          EventStatusChange,
			Time:          change.Timestamp,
			Author:        change.Author,
			From:          change.FromStatus,
			To:            change.ToStatus,
			LengthSeconds: &length,
		})
	}
	for _, comment := range issue.Comments {
		events = append(events, Event{
			Type:   EventComment,
			Time:   comment.Timestamp,
			Author: comment.Author,
			Body:   comment.Body,
		})
	}
	sort.SliceStable(events, func(a, b int) bool {
		return events[a].Time.Before(events[b].Time)
	})
	return events
}

// Find returns the summary of the first issue in epic carrying serial.
func Find(epic *domain.Epic, serial string) (IssueSummary, error) {
	if epic == nil {
		return IssueSummary{}, ErrSerialNotFound
	}
	issue, ok := epic.FindBySerial(serial)
	if !ok {
		return IssueSummary{}, ErrSerialNotFound
	}
	return Summarize(epic.Key, *issue), nil
}

// All summarizes every issue of the given kinds, tasks first.
func All(epic *domain.Epic, kinds ...domain.IssueKind) []IssueSummary {
	if epic == nil {
		return nil
	}
	issues := epic.IssuesOfKind(kinds...)
	out := make([]IssueSummary, 0, len(issues))
	for _, issue := range issues {
		out = append(out, Summarize(epic.Key, issue))
	}
	return out
}
