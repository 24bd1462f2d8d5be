package domain

import (
	"sort"
	"time"
)

// Epic groups the issues of one repair order.
// Epics are rebuilt wholesale on load and never mutated afterwards.
type Epic struct {
	Key       string
	Title     string
	StartDate time.Time
	Tasks     []Issue
	Stories   []Issue
}

// NewEpic builds an epic from already parsed issues, splitting them by kind.
// Issues of any other kind are dropped.
func NewEpic(key, title string, start time.Time, issues []Issue) *Epic {
	epic := &Epic{Key: key, Title: title, StartDate: start, Tasks: []Issue{}, Stories: []Issue{}}
	for _, issue := range issues {
		switch issue.Kind {
		case IssueKindTask:
			epic.Tasks = append(epic.Tasks, issue)
		case IssueKindStory:
			epic.Stories = append(epic.Stories, issue)
		}
	}
	return epic
}

// WithIssues returns a copy of the epic metadata holding only the given issues.
func (e *Epic) WithIssues(issues []Issue) *Epic {
	return NewEpic(e.Key, e.Title, e.StartDate, issues)
}

// IssueCount counts tasks and stories.
func (e *Epic) IssueCount() int {
	return len(e.Tasks) + len(e.Stories)
}

// Issues returns tasks followed by stories.
func (e *Epic) Issues() []Issue {
	out := make([]Issue, 0, e.IssueCount())
	out = append(out, e.Tasks...)
	return append(out, e.Stories...)
}

// IssuesOfKind filters issues by kind. An empty kinds list returns every issue.
func (e *Epic) IssuesOfKind(kinds ...IssueKind) []Issue {
	if len(kinds) == 0 {
		return e.Issues()
	}
	var out []Issue
	for _, kind := range kinds {
		switch kind {
		case IssueKindTask:
			out = append(out, e.Tasks...)
		case IssueKindStory:
			out = append(out, e.Stories...)
		}
	}
	return out
}

// FindBySerial returns the first issue whose serial matches.
func (e *Epic) FindBySerial(serial string) (*Issue, bool) {
	for _, list := range [][]Issue{e.Tasks, e.Stories} {
		for i := range list {
			if list[i].Serial == serial {
				return &list[i], true
			}
		}
	}
	return nil, false
}

// EpicSummary is the listing view of an epic.
// IsClosed is nil for an epic without tasks.
type EpicSummary struct {
	Key        string    `json:"rt_num"`
	Title      string    `json:"summary"`
	Created    time.Time `json:"created"`
	IssueCount int       `json:"issue_count"`
	IsClosed   *bool     `json:"is_closed"`
}

// Summary returns the listing view. A task counts as finished once its
// latest status is one of terminal.
func (e *Epic) Summary(terminal []string) EpicSummary {
	return EpicSummary{
		Key:        e.Key,
		Title:      e.Title,
		Created:    e.StartDate,
		IssueCount: e.IssueCount(),
		IsClosed:   e.closed(terminal),
	}
}

func (e *Epic) closed(terminal []string) *bool {
	if len(e.Tasks) == 0 {
		return nil
	}
	done := make(map[string]struct{}, len(terminal))
	for _, status := range terminal {
		done[status] = struct{}{}
	}
	closed := true
	for i := range e.Tasks {
		history := e.Tasks[i].StatusHistory
		if len(history) == 0 {
			closed = false
			break
		}
		if _, ok := done[history[len(history)-1].ToStatus]; !ok {
			closed = false
			break
		}
	}
	return &closed
}

// SortSummaries orders summaries newest first, then by key.
func SortSummaries(summaries []EpicSummary) {
	sort.SliceStable(summaries, func(a, b int) bool {
		if !summaries[a].Created.Equal(summaries[b].Created) {
			return summaries[a].Created.After(summaries[b].Created)
		}
		return summaries[a].Key < summaries[b].Key
	})
}
