package timeline

// Trim drops leading days whose total count is below rule.MinActive and stops
// before the first day on which every counted issue is done. The result may
// hold zero days; it is nil only when t is nil.
func Trim(t *Timeline, rule TrimRule) *Timeline {
	if t == nil {
		return nil
	}
	if !rule.Enabled {
		return t
	}
	from, to := -1, len(t.Days)
	for i, day := range t.Days {
		total := len(t.MembersOf(day, rule.TotalLabel))
		done := len(t.MembersOf(day, rule.DoneLabel))
		if from < 0 && total >= rule.MinActive {
			from = i
		}
		if from < 0 {
			continue
		}
		if done > 0 && done == total {
			to = i
			break
		}
	}
	if from < 0 {
		return t.Slice(0, 0)
	}
	return t.Slice(from, to)
}
