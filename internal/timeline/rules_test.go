package timeline

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultRulesValid(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Fatalf("DefaultRules().Validate() error = %v", err)
	}
}

func TestParseRulesOverridesSections(t *testing.T) {
	doc := []byte(`
issue_kinds = ["Task", "Story"]
holidays = ["2025-12-25"]

[aliases]
"On Hold" = "Hold"

[trim]
enabled = false

[[aggregates]]
label = "Everything"
all = true

[[aggregates]]
label = "Finished"
members = ["Done"]
`)
	rules, err := ParseRules(doc)
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	if len(rules.Aggregates) != 2 || rules.Aggregates[0].Label != "Everything" || !rules.Aggregates[0].All {
		t.Errorf("Aggregates = %+v", rules.Aggregates)
	}
	if !reflect.DeepEqual(rules.Aliases, map[string]string{"On Hold": "Hold"}) {
		t.Errorf("Aliases = %v", rules.Aliases)
	}
	if rules.Trim.Enabled {
		t.Error("Trim.Enabled = true, want false")
	}
	if rules.Sentinels.New != DefaultNewLabel || rules.PeakLabel != "Total Boards" {
		t.Errorf("defaults not kept: %+v %q", rules.Sentinels, rules.PeakLabel)
	}
	if !reflect.DeepEqual(rules.Holidays, []string{"2025-12-25"}) {
		t.Errorf("Holidays = %v", rules.Holidays)
	}
}

func TestParseRulesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"syntax", `aggregates = [`},
		{"missing label", "[[aggregates]]\nall = true\n"},
		{"duplicate", "[[aggregates]]\nlabel = \"T\"\nall = true\n[[aggregates]]\nlabel = \"T\"\nall = true\n"},
		{"all and members", "[[aggregates]]\nlabel = \"T\"\nall = true\nmembers = [\"Done\"]\n"},
		{"neither", "[[aggregates]]\nlabel = \"T\"\n"},
		{"nested aggregate", "[[aggregates]]\nlabel = \"T\"\nall = true\n[[aggregates]]\nlabel = \"U\"\nmembers = [\"T\"]\n"},
		{"trim without labels", "[trim]\nenabled = true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRules([]byte(tt.doc)); err == nil {
				t.Error("ParseRules() error = nil, want error")
			}
		})
	}
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil || !reflect.DeepEqual(rules, DefaultRules()) {
		t.Fatalf("LoadRules(\"\") = %+v, %v", rules, err)
	}

	dir := t.TempDir()
	rules, err = LoadRules(filepath.Join(dir, "missing.toml"))
	if err != nil || !reflect.DeepEqual(rules, DefaultRules()) {
		t.Fatalf("LoadRules(missing) = %+v, %v", rules, err)
	}

	path := filepath.Join(dir, "rules.toml")
	if err := os.WriteFile(path, []byte("peak_label = \"Done\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rules, err = LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if rules.PeakLabel != "Done" {
		t.Errorf("PeakLabel = %q, want Done", rules.PeakLabel)
	}
}
