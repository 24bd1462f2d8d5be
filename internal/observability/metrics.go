package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	requestTime   map[string]time.Duration
	errorCount    map[string]int64
	syncCount     map[string]int64
	issuesSynced  int64
	issuesSkipped int64
	started       time.Time
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		requestTime:  make(map[string]time.Duration),
		errorCount:   make(map[string]int64),
		syncCount:    make(map[string]int64),
		started:      time.Now(),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestTime[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSync counts one epic refresh by outcome ("ok" or "failed").
func (m *Metrics) RecordSync(outcome string, issues, skipped int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCount[outcome]++
	m.issuesSynced += int64(issues)
	m.issuesSkipped += int64(skipped)
}

// RequestStat is the aggregate of one path|method|status key.
type RequestStat struct {
	Key          string  `json:"key"`
	Count        int64   `json:"count"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Requests      []RequestStat    `json:"requests"`
	Errors        map[string]int64 `json:"errors"`
	Syncs         map[string]int64 `json:"syncs"`
	IssuesSynced  int64            `json:"issues_synced"`
	IssuesSkipped int64            `json:"issues_skipped"`
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeSeconds: int64(time.Since(m.started).Seconds()),
		Requests:      make([]RequestStat, 0, len(m.requestCount)),
		Errors:        make(map[string]int64, len(m.errorCount)),
		Syncs:         make(map[string]int64, len(m.syncCount)),
		IssuesSynced:  m.issuesSynced,
		IssuesSkipped: m.issuesSkipped,
	}
	for key, count := range m.requestCount {
		stat := RequestStat{Key: key, Count: count}
		if count > 0 {
			stat.AvgLatencyMS = float64(m.requestTime[key].Microseconds()) / 1000 / float64(count)
		}
		snap.Requests = append(snap.Requests, stat)
	}
	sort.Slice(snap.Requests, func(a, b int) bool { return snap.Requests[a].Key < snap.Requests[b].Key })
	for key, count := range m.errorCount {
		snap.Errors[key] = count
	}
	for key, count := range m.syncCount {
		snap.Syncs[key] = count
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
