package timeline

import (
	"fmt"
	"sort"
)

// Adjacency selects how the neighbouring day of a diff is found.
type Adjacency string

const (
	// AdjacencyIndex uses the position in the sorted list of days present.
	AdjacencyIndex Adjacency = "index"
	// AdjacencyWorkday uses the closest working day on the calendar.
	AdjacencyWorkday Adjacency = "workday"
)

// Direction selects the neighbour a diff compares against.
type Direction string

const (
	DirectionPrev Direction = "prev"
	DirectionNext Direction = "next"
)

// DiffItem is one member of a diff bucket.
type DiffItem struct {
	ID         string `json:"id"`
	Serial     string `json:"serial"`
	Annotation string `json:"annotation,omitempty"`
	Display    string `json:"display"`
}

// DiffResult splits the members of one label between two days.
// Removed items are annotated with the label they moved to on To,
// added items with the label they came from on From.
type DiffResult struct {
	Label     string     `json:"label"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Removed   []DiffItem `json:"removed"`
	Unchanged []DiffItem `json:"unchanged"`
	Added     []DiffItem `json:"added"`
}

// Diff compares label on day against the previous day present in the timeline.
// When day is the first day every member is added.
func Diff(t *Timeline, day, label string, rules Rules) DiffResult {
	if !t.HasDay(day) {
		return emptyDiff(label, "", day)
	}
	prev, _ := t.Previous(day)
	return Compare(t, prev, day, label, rules)
}

// DiffNext compares label on day against the next day present in the timeline.
// When day is the last day every member is removed.
func DiffNext(t *Timeline, day, label string, rules Rules) DiffResult {
	if !t.HasDay(day) {
		return emptyDiff(label, day, "")
	}
	next, _ := t.Next(day)
	return Compare(t, day, next, label, rules)
}

// DiffOptions selects adjacency and direction for DiffWith.
type DiffOptions struct {
	Adjacency Adjacency
	Direction Direction
	Calendar  *Calendar
}

// DiffWith dispatches on adjacency and direction.
func DiffWith(t *Timeline, day, label string, rules Rules, opts DiffOptions) (DiffResult, error) {
	if opts.Direction == "" {
		opts.Direction = DirectionPrev
	}
	switch opts.Adjacency {
	case "", AdjacencyIndex:
		switch opts.Direction {
		case DirectionPrev:
			return Diff(t, day, label, rules), nil
		case DirectionNext:
			return DiffNext(t, day, label, rules), nil
		}
	case AdjacencyWorkday:
		if !t.HasDay(day) {
			return emptyDiff(label, "", day), nil
		}
		switch opts.Direction {
		case DirectionPrev:
			prev, err := opts.Calendar.PreviousWorkday(day)
			if err != nil {
				return DiffResult{}, err
			}
			return Compare(t, prev, day, label, rules), nil
		case DirectionNext:
			next, err := opts.Calendar.NextWorkday(day)
			if err != nil {
				return DiffResult{}, err
			}
			return Compare(t, day, next, label, rules), nil
		}
	default:
		return DiffResult{}, fmt.Errorf("unknown adjacency %q", opts.Adjacency)
	}
	return DiffResult{}, fmt.Errorf("unknown direction %q", opts.Direction)
}

// Compare diffs label between from and to. A day absent from the timeline
// contributes an empty set for every label.
func Compare(t *Timeline, from, to, label string, rules Rules) DiffResult {
	result := emptyDiff(label, from, to)
	before := t.MembersOf(from, label)
	after := t.MembersOf(to, label)

	inBefore := toSet(before)
	inAfter := toSet(after)

	for _, id := range before {
		if _, ok := inAfter[id]; ok {
			result.Unchanged = append(result.Unchanged, t.item(id, ""))
			continue
		}
		target, ok := t.StatusOf(to, id)
		if !ok {
			target = rules.goneLabel()
		}
		result.Removed = append(result.Removed, t.item(id, "to "+target))
	}
	for _, id := range after {
		if _, ok := inBefore[id]; ok {
			continue
		}
		source, ok := t.StatusOf(from, id)
		if !ok {
			source = rules.newLabel()
		}
		result.Added = append(result.Added, t.item(id, "from "+source))
	}

	sortItems(result.Removed)
	sortItems(result.Unchanged)
	sortItems(result.Added)
	return result
}

func (t *Timeline) item(id, annotation string) DiffItem {
	serial := t.Serial(id)
	display := serial
	if annotation != "" {
		display = serial + " - " + annotation
	}
	return DiffItem{ID: id, Serial: serial, Annotation: annotation, Display: display}
}

func emptyDiff(label, from, to string) DiffResult {
	return DiffResult{
		Label:     label,
		From:      from,
		To:        to,
		Removed:   []DiffItem{},
		Unchanged: []DiffItem{},
		Added:     []DiffItem{},
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortItems(items []DiffItem) {
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].Display != items[b].Display {
			return items[a].Display < items[b].Display
		}
		return items[a].ID < items[b].ID
	})
}
