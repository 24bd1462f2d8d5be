package timeline

import (
	"reflect"
	"testing"
)

func TestCountSeries(t *testing.T) {
	tl := Build(scenarioIssues(t), plainRules(), ts(t, "2025-01-04T08:00:00Z"))
	series := CountSeries(tl)
	byLabel := map[string]Series{}
	for _, s := range series {
		byLabel[s.Label] = s
	}
	tests := []struct {
		label  string
		counts []int
		deltas []int
	}{
		{"Total", []int{0, 1, 1, 1, 1}, []int{0, 1, 0, 0, 0}},
		{"InProgress", []int{0, 1, 1, 0, 0}, []int{0, 1, 0, -1, 0}},
		{"Done", []int{0, 0, 0, 1, 1}, []int{0, 0, 0, 1, 0}},
	}
	for _, tt := range tests {
		s := byLabel[tt.label]
		if !reflect.DeepEqual(s.Counts, tt.counts) || !reflect.DeepEqual(s.Deltas, tt.deltas) {
			t.Errorf("%s = %v / %v, want %v / %v", tt.label, s.Counts, s.Deltas, tt.counts, tt.deltas)
		}
	}
	if CountSeries(nil) != nil {
		t.Error("CountSeries(nil) should be nil")
	}
}

func TestPeakOf(t *testing.T) {
	tl := trimFixture(t)
	peak, ok := PeakOf(tl, "Total Boards")
	if !ok || peak.Count != 5 || peak.Day != "2025-01-03" {
		t.Errorf("PeakOf() = %+v, %v", peak, ok)
	}
	if _, ok := PeakOf(nil, "Total Boards"); ok {
		t.Error("PeakOf(nil) ok = true")
	}
}
