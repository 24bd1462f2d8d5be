package timeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spec-kit/repair-tracker/internal/domain"
)

const (
	DefaultGoneLabel = "Left Timeline"
	DefaultNewLabel  = "New Hashboard"
)

// AggregateRule defines a derived bucket as the union of member labels.
// All selects every concrete label instead of an explicit member list.
type AggregateRule struct {
	Label   string   `toml:"label"`
	All     bool     `toml:"all"`
	Members []string `toml:"members"`
}

// TrimRule drops the idle lead-in and the finished tail of a timeline.
type TrimRule struct {
	Enabled    bool   `toml:"enabled"`
	MinActive  int    `toml:"min_active"`
	TotalLabel string `toml:"total_label"`
	DoneLabel  string `toml:"done_label"`
}

// Sentinels are the lineage annotations used when an issue is found in no label.
type Sentinels struct {
	Gone string `toml:"gone"`
	New  string `toml:"new"`
}

// Rules is the declarative configuration of timeline reconstruction.
type Rules struct {
	Aggregates []AggregateRule `toml:"aggregates"`
	// Aliases rename statuses while bucketing.
	Aliases    map[string]string `toml:"aliases"`
	IssueKinds []string          `toml:"issue_kinds"`
	Trim       TrimRule          `toml:"trim"`
	Sentinels  Sentinels         `toml:"sentinels"`
	PeakLabel  string            `toml:"peak_label"`
	Holidays   []string          `toml:"holidays"`
	// Terminal statuses close a task for order listings.
	Terminal []string `toml:"terminal"`
}

// DefaultRules mirrors the repair workflow.
func DefaultRules() Rules {
	return Rules{
		Aggregates: []AggregateRule{
			{Label: "Total Boards", All: true},
			{Label: "Total Processed", Members: []string{"Done", "Scrap"}},
		},
		Aliases: map[string]string{
			"Advanced Repair": "Awaiting Advanced Repair",
			"Backlog":         "Awaiting Advanced Repair",
		},
		IssueKinds: []string{string(domain.IssueKindTask)},
		Trim: TrimRule{
			Enabled:    true,
			MinActive:  5,
			TotalLabel: "Total Boards",
			DoneLabel:  "Done",
		},
		Sentinels: Sentinels{Gone: DefaultGoneLabel, New: DefaultNewLabel},
		PeakLabel: "Total Boards",
		Terminal:  []string{"Done", "Scrap"},
	}
}

// LoadRules reads a TOML rules file over the defaults. An empty path yields the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rules, nil
		}
		return Rules{}, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRules(data)
}

type rulesFile struct {
	Aggregates []AggregateRule   `toml:"aggregates"`
	Aliases    map[string]string `toml:"aliases"`
	IssueKinds []string          `toml:"issue_kinds"`
	Trim       *TrimRule         `toml:"trim"`
	Sentinels  *Sentinels        `toml:"sentinels"`
	PeakLabel  *string           `toml:"peak_label"`
	Holidays   []string          `toml:"holidays"`
	Terminal   []string          `toml:"terminal"`
}

// ParseRules decodes TOML rules and validates them. Sections present in the
// document replace the matching defaults wholesale.
func ParseRules(data []byte) (Rules, error) {
	var file rulesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}

	rules := DefaultRules()
	if file.Aggregates != nil {
		rules.Aggregates = file.Aggregates
	}
	if file.Aliases != nil {
		rules.Aliases = file.Aliases
	}
	if file.IssueKinds != nil {
		rules.IssueKinds = file.IssueKinds
	}
	if file.Trim != nil {
		rules.Trim = *file.Trim
	}
	if file.Sentinels != nil {
		rules.Sentinels = *file.Sentinels
	}
	if file.PeakLabel != nil {
		rules.PeakLabel = *file.PeakLabel
	}
	rules.Holidays = file.Holidays
	if file.Terminal != nil {
		rules.Terminal = file.Terminal
	}

	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate checks aggregate definitions for consistency.
func (r Rules) Validate() error {
	seen := make(map[string]struct{}, len(r.Aggregates))
	for i, agg := range r.Aggregates {
		if agg.Label == "" {
			return fmt.Errorf("aggregate %d: label required", i)
		}
		if _, dup := seen[agg.Label]; dup {
			return fmt.Errorf("aggregate %q defined twice", agg.Label)
		}
		seen[agg.Label] = struct{}{}
		if agg.All == (len(agg.Members) > 0) {
			return fmt.Errorf("aggregate %q: set either all or members", agg.Label)
		}
	}
	for _, agg := range r.Aggregates {
		for _, member := range agg.Members {
			if _, isAgg := seen[member]; isAgg {
				return fmt.Errorf("aggregate %q: member %q is an aggregate", agg.Label, member)
			}
		}
	}
	if r.Trim.Enabled && (r.Trim.TotalLabel == "" || r.Trim.DoneLabel == "") {
		return errors.New("trim: total_label and done_label required")
	}
	return nil
}

// Kinds returns the configured issue kinds.
func (r Rules) Kinds() []domain.IssueKind {
	kinds := make([]domain.IssueKind, 0, len(r.IssueKinds))
	for _, k := range r.IssueKinds {
		kinds = append(kinds, domain.IssueKind(k))
	}
	return kinds
}

func (r Rules) alias(status string) string {
	if to, ok := r.Aliases[status]; ok && to != "" {
		return to
	}
	return status
}

func (r Rules) goneLabel() string {
	if r.Sentinels.Gone == "" {
		return DefaultGoneLabel
	}
	return r.Sentinels.Gone
}

func (r Rules) newLabel() string {
	if r.Sentinels.New == "" {
		return DefaultNewLabel
	}
	return r.Sentinels.New
}
