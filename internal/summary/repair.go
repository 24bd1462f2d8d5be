package summary

import (
	"strings"

	"github.com/spec-kit/repair-tracker/internal/domain"
)

const notAvailable = "N/A"

// RepairFilter selects the boards that went through a repair.
type RepairFilter struct {
	RepairStatus    string
	CompletedStatus string
	ExcludedStatus  string
	// comments mentioning any of these are dropped
	ImageExtensions []string
}

// DefaultRepairFilter matches the repair bench workflow.
func DefaultRepairFilter() RepairFilter {
	return RepairFilter{
		RepairStatus:    "Advanced Repair",
		CompletedStatus: "Awaiting Functional Test",
		ExcludedStatus:  "Scrap",
		ImageExtensions: []string{".png", ".jpeg", ".jpg"},
	}
}

// Apply keeps a summary only if it reached both the repair and the completed
// status and never the excluded one. Kept events are the two status
// transitions and comments without image references.
func (f RepairFilter) Apply(s IssueSummary) (IssueSummary, bool) {
	var repaired, completed, excluded bool
	kept := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		switch ev.Type {
		case EventStatusChange:
			switch ev.To {
			case f.RepairStatus:
				repaired = true
				kept = append(kept, ev)
			case f.CompletedStatus:
				completed = true
				kept = append(kept, ev)
			case f.ExcludedStatus:
				excluded = true
			}
		case EventComment:
			if f.mentionsImage(ev.Body) {
				continue
			}
			ev.Body = flatten(ev.Body)
			kept = append(kept, ev)
		}
	}
	if !repaired || !completed || excluded {
		return IssueSummary{}, false
	}

	out := s
	out.Events = kept
	out.BoardModel = orNA(s.BoardModel)
	out.RepairSummary = orNA(flatten(s.RepairSummary))
	return out, true
}

func (f RepairFilter) mentionsImage(body string) bool {
	for _, ext := range f.ImageExtensions {
		if strings.Contains(body, ext) {
			return true
		}
	}
	return false
}

// RepairReport lists the repaired tasks of an epic in task order.
func RepairReport(epic *domain.Epic, f RepairFilter) []IssueSummary {
	if epic == nil {
		return nil
	}
	var out []IssueSummary
	for _, issue := range epic.Tasks {
		if s, ok := f.Apply(Summarize(epic.Key, issue)); ok {
			out = append(out, s)
		}
	}
	return out
}

func flatten(text string) string {
	return strings.ReplaceAll(text, "\n", "-")
}

func orNA(value string) string {
	if value == "" {
		return notAvailable
	}
	return value
}
