package timeline

// Series is the daily member count of one label.
// Deltas[i] is Counts[i]-Counts[i-1]; Deltas[0] is 0.
type Series struct {
	Label  string `json:"label"`
	Counts []int  `json:"counts"`
	Deltas []int  `json:"deltas"`
}

// Peak is the largest daily count of a label.
type Peak struct {
	Label string `json:"label"`
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// CountSeries returns one series per label in label order.
func CountSeries(t *Timeline) []Series {
	if t == nil {
		return nil
	}
	out := make([]Series, 0, len(t.Labels))
	for _, label := range t.Labels {
		s := Series{Label: label, Counts: make([]int, len(t.Days)), Deltas: make([]int, len(t.Days))}
		for i, day := range t.Days {
			s.Counts[i] = len(t.MembersOf(day, label))
			if i > 0 {
				s.Deltas[i] = s.Counts[i] - s.Counts[i-1]
			}
		}
		out = append(out, s)
	}
	return out
}

// PeakOf finds the first day with the highest count of label.
func PeakOf(t *Timeline, label string) (Peak, bool) {
	if t.Len() == 0 {
		return Peak{}, false
	}
	peak := Peak{Label: label, Day: t.Days[0], Count: len(t.MembersOf(t.Days[0], label))}
	for _, day := range t.Days[1:] {
		if n := len(t.MembersOf(day, label)); n > peak.Count {
			peak.Day, peak.Count = day, n
		}
	}
	return peak, true
}
