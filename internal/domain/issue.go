package domain

import (
	"sort"
	"time"
)

// IssueKind tags the issue variant.
type IssueKind string

const (
	IssueKindTask  IssueKind = "Task"
	IssueKindStory IssueKind = "Story"
)

// StatusChange is one status transition recorded in the tracker changelog.
type StatusChange struct {
	Author     string    `json:"author"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Timestamp  time.Time `json:"timestamp"`
}

// Comment is a tracker comment on an issue.
type Comment struct {
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Body      string    `json:"body"`
}

// TaskDetails carries the Task-only fields.
type TaskDetails struct {
	BoardModel string `json:"board_model,omitempty"`
}

// StoryDetails carries the Story-only fields.
type StoryDetails struct {
	LinkedIssues []string `json:"linked_issues"`
}

// Issue is a tracked repair unit (hashboard or chassis).
// Exactly one of Task or Story is set, matching Kind.
type Issue struct {
	Kind          IssueKind      `json:"type"`
	Key           string         `json:"key"`
	Serial        string         `json:"serial"`
	Created       time.Time      `json:"created"`
	Assignee      string         `json:"assignee,omitempty"`
	RepairSummary string         `json:"repair_summary,omitempty"`
	Comments      []Comment      `json:"comments"`
	StatusHistory []StatusChange `json:"status_history"`
	Task          *TaskDetails   `json:"task,omitempty"`
	Story         *StoryDetails  `json:"story,omitempty"`
}

// BoardModel returns the board model of a task, or "" for other kinds.
func (i *Issue) BoardModel() string {
	if i.Task == nil {
		return ""
	}
	return i.Task.BoardModel
}

// LinkedIssues returns the linked issue keys of a story, or nil for other kinds.
func (i *Issue) LinkedIssues() []string {
	if i.Story == nil {
		return nil
	}
	return i.Story.LinkedIssues
}

// StatusAt returns the status as of instant t: the ToStatus of the last change
// with Timestamp <= t. ok is false before the first change.
func (i *Issue) StatusAt(t time.Time) (status string, ok bool) {
	for _, change := range i.StatusHistory {
		if change.Timestamp.After(t) {
			break
		}
		status, ok = change.ToStatus, true
	}
	return status, ok
}

// FirstActivity returns the earliest of Created and the first status change.
func (i *Issue) FirstActivity() time.Time {
	first := i.Created
	if len(i.StatusHistory) > 0 && (first.IsZero() || i.StatusHistory[0].Timestamp.Before(first)) {
		first = i.StatusHistory[0].Timestamp
	}
	return first
}

// SortStatusChanges orders changes by timestamp, keeping input order on ties.
func SortStatusChanges(changes []StatusChange) {
	sort.SliceStable(changes, func(a, b int) bool {
		return changes[a].Timestamp.Before(changes[b].Timestamp)
	})
}

// SortComments orders comments by timestamp, keeping input order on ties.
func SortComments(comments []Comment) {
	sort.SliceStable(comments, func(a, b int) bool {
		return comments[a].Timestamp.Before(comments[b].Timestamp)
	})
}
