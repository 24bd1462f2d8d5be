package dto

import "strings"

// EpicRequest names one epic. Older clients send rt_number.
type EpicRequest struct {
	RTNumber string `json:"rt_number"`
	EpicKey  string `json:"epic_key"`
}

// Key returns the requested epic key.
func (r EpicRequest) Key() string {
	if key := strings.TrimSpace(r.EpicKey); key != "" {
		return key
	}
	return strings.TrimSpace(r.RTNumber)
}

// IssueSummaryRequest selects one issue of an epic.
type IssueSummaryRequest struct {
	Serial  string `json:"serial"`
	EpicKey string `json:"epic_key"`
}

// SyncAllRequest lists the epics to refresh; empty means every tracked epic.
type SyncAllRequest struct {
	Epics []string `json:"epics"`
}

// BoardUpdateRequest carries tester readings for one board.
type BoardUpdateRequest struct {
	Serial     string  `json:"serial"`
	BoardModel string  `json:"boardModel"`
	Frequency  *string `json:"frequency"`
	HashRate   *string `json:"hashRate"`
}
