package timeline

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/spec-kit/repair-tracker/internal/domain"
)

// Timeline is the day by label membership index of one epic.
// Every label appears on every day, possibly with an empty member list.
// A built Timeline is never mutated and is safe for concurrent readers.
type Timeline struct {
	Days       []string                       `json:"days"`
	Labels     []string                       `json:"labels"`
	Aggregates []string                       `json:"aggregates"`
	Members    map[string]map[string][]string `json:"members"`
	Serials    map[string]string              `json:"serials"`

	// day -> member id -> concrete label
	status   map[string]map[string]string
	dayIndex map[string]int
	isAgg    map[string]bool
}

// Build folds the status history of issues into a Timeline spanning the
// earliest activity through now. It returns nil when no issue qualifies.
func Build(issues []domain.Issue, rules Rules, now time.Time) *Timeline {
	selected := selectIssues(issues, rules.Kinds())
	if len(selected) == 0 {
		return nil
	}
	sort.SliceStable(selected, func(a, b int) bool { return selected[a].Key < selected[b].Key })

	var start time.Time
	for _, issue := range selected {
		first := issue.FirstActivity()
		if !first.IsZero() && (start.IsZero() || first.Before(start)) {
			start = first
		}
	}
	if start.IsZero() {
		start = now
	}
	end := now
	if end.Before(start) {
		end = start
	}
	days := DayRange(start, end)

	byDay := make([]map[string][]string, len(days))
	for i := range byDay {
		byDay[i] = map[string][]string{}
	}
	concrete := map[string]struct{}{}
	serials := make(map[string]string, len(selected))

	for _, issue := range selected {
		serials[issue.Key] = issue.Serial
		history := sortedHistory(issue.StatusHistory)

		cursor := 0
		current, known := "", false
		dayEnd := startOfDay(start)
		for i := range days {
			dayEnd = dayEnd.AddDate(0, 0, 1)
			for cursor < len(history) && history[cursor].Timestamp.Before(dayEnd) {
				current, known = history[cursor].ToStatus, true
				cursor++
			}
			if !known {
				continue
			}
			label := rules.alias(current)
			concrete[label] = struct{}{}
			byDay[i][label] = append(byDay[i][label], issue.Key)
		}
	}

	return assemble(days, byDay, concrete, serials, rules.Aggregates)
}

func assemble(days []string, byDay []map[string][]string, concrete map[string]struct{}, serials map[string]string, aggregates []AggregateRule) *Timeline {
	aggLabels := make([]string, 0, len(aggregates))
	for _, agg := range aggregates {
		aggLabels = append(aggLabels, agg.Label)
	}
	concreteLabels := make([]string, 0, len(concrete))
	for label := range concrete {
		if !contains(aggLabels, label) {
			concreteLabels = append(concreteLabels, label)
		}
	}
	sort.Strings(concreteLabels)

	t := &Timeline{
		Days:       days,
		Labels:     append(append([]string{}, aggLabels...), concreteLabels...),
		Aggregates: aggLabels,
		Members:    make(map[string]map[string][]string, len(days)),
		Serials:    serials,
	}

	for i, day := range days {
		members := make(map[string][]string, len(t.Labels))
		for _, label := range concreteLabels {
			ids := byDay[i][label]
			if ids == nil {
				ids = []string{}
			}
			members[label] = ids
		}
		for _, agg := range aggregates {
			var union []string
			if agg.All {
				for _, label := range concreteLabels {
					union = append(union, members[label]...)
				}
			} else {
				for _, label := range agg.Members {
					union = append(union, members[label]...)
				}
			}
			members[agg.Label] = sortedUnique(union)
		}
		t.Members[day] = members
	}
	t.reindex()
	return t
}

func (t *Timeline) reindex() {
	t.dayIndex = make(map[string]int, len(t.Days))
	for i, day := range t.Days {
		t.dayIndex[day] = i
	}
	t.isAgg = make(map[string]bool, len(t.Aggregates))
	for _, label := range t.Aggregates {
		t.isAgg[label] = true
	}
	t.status = make(map[string]map[string]string, len(t.Days))
	for _, day := range t.Days {
		index := map[string]string{}
		for label, ids := range t.Members[day] {
			if t.isAgg[label] {
				continue
			}
			for _, id := range ids {
				index[id] = label
			}
		}
		t.status[day] = index
	}
}

// UnmarshalJSON restores a cached Timeline including its lookup indexes.
func (t *Timeline) UnmarshalJSON(data []byte) error {
	type plain Timeline
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*t = Timeline(decoded)
	t.reindex()
	return nil
}

// Len returns the number of days.
func (t *Timeline) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Days)
}

// HasDay reports whether day is part of the timeline.
func (t *Timeline) HasDay(day string) bool {
	if t == nil {
		return false
	}
	_, ok := t.dayIndex[day]
	return ok
}

// MembersOf returns the ids in label on day. Unknown days or labels yield an empty list.
func (t *Timeline) MembersOf(day, label string) []string {
	if t == nil {
		return []string{}
	}
	if ids, ok := t.Members[day][label]; ok {
		return ids
	}
	return []string{}
}

// StatusOf returns the concrete label holding id on day.
func (t *Timeline) StatusOf(day, id string) (string, bool) {
	if t == nil {
		return "", false
	}
	label, ok := t.status[day][id]
	return label, ok
}

// IsAggregate reports whether label is a derived bucket.
func (t *Timeline) IsAggregate(label string) bool {
	return t != nil && t.isAgg[label]
}

// Serial returns the display serial for id, falling back to the id.
func (t *Timeline) Serial(id string) string {
	if t != nil {
		if serial := t.Serials[id]; serial != "" {
			return serial
		}
	}
	return id
}

// Previous returns the day before day by position in Days.
func (t *Timeline) Previous(day string) (string, bool) {
	return t.offset(day, -1)
}

// Next returns the day after day by position in Days.
func (t *Timeline) Next(day string) (string, bool) {
	return t.offset(day, 1)
}

func (t *Timeline) offset(day string, delta int) (string, bool) {
	if t == nil {
		return "", false
	}
	i, ok := t.dayIndex[day]
	if !ok {
		return "", false
	}
	j := i + delta
	if j < 0 || j >= len(t.Days) {
		return "", false
	}
	return t.Days[j], true
}

// Slice returns a timeline restricted to Days[from:to]. Labels are kept.
func (t *Timeline) Slice(from, to int) *Timeline {
	if t == nil {
		return nil
	}
	if from < 0 {
		from = 0
	}
	if to > len(t.Days) {
		to = len(t.Days)
	}
	if to < from {
		to = from
	}
	out := &Timeline{
		Days:       append([]string{}, t.Days[from:to]...),
		Labels:     t.Labels,
		Aggregates: t.Aggregates,
		Members:    make(map[string]map[string][]string, to-from),
		Serials:    t.Serials,
	}
	for _, day := range out.Days {
		out.Members[day] = t.Members[day]
	}
	out.reindex()
	return out
}

func selectIssues(issues []domain.Issue, kinds []domain.IssueKind) []domain.Issue {
	if len(kinds) == 0 {
		return append([]domain.Issue{}, issues...)
	}
	out := make([]domain.Issue, 0, len(issues))
	for _, issue := range issues {
		for _, kind := range kinds {
			if issue.Kind == kind {
				out = append(out, issue)
				break
			}
		}
	}
	return out
}

func sortedHistory(history []domain.StatusChange) []domain.StatusChange {
	sorted := sort.SliceIsSorted(history, func(a, b int) bool {
		return history[a].Timestamp.Before(history[b].Timestamp)
	})
	if sorted {
		return history
	}
	out := append([]domain.StatusChange{}, history...)
	domain.SortStatusChanges(out)
	return out
}

func sortedUnique(ids []string) []string {
	if len(ids) == 0 {
		return []string{}
	}
	out := append([]string{}, ids...)
	sort.Strings(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
