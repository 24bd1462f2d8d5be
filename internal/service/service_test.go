package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/cache"
	"github.com/spec-kit/repair-tracker/internal/catalog"
	"github.com/spec-kit/repair-tracker/internal/config"
	"github.com/spec-kit/repair-tracker/internal/events"
	"github.com/spec-kit/repair-tracker/internal/jira"
	"github.com/spec-kit/repair-tracker/internal/observability"
	"github.com/spec-kit/repair-tracker/internal/repository"
	"github.com/spec-kit/repair-tracker/internal/timeline"
)

var testFields = config.JiraFields{
	RepairSummary: "customfield_10245",
	BoardModel:    "customfield_10230",
	Frequency:     "customfield_10229",
	HashRate:      "customfield_10153",
}

func epicJSON(key, title, created string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"key":%q,"fields":{"summary":%q,"created":%q}}`, key, title, created))
}

type transition struct {
	from, to, at string
}

func taskJSON(key, serial, created string, transitions []transition, comments ...string) json.RawMessage {
	var histories []string
	for _, tr := range transitions {
		histories = append(histories, fmt.Sprintf(
			`{"author":{"displayName":"Tech"},"created":%q,"items":[{"field":"status","fromString":%q,"toString":%q}]}`,
			tr.at, tr.from, tr.to))
	}
	var notes []string
	for i, body := range comments {
		notes = append(notes, fmt.Sprintf(
			`{"author":{"displayName":"Tech"},"created":"2025-01-0%dT12:00:00.000+0000","body":%q}`, i+2, body))
	}
	return json.RawMessage(fmt.Sprintf(
		`{"key":%q,"fields":{"summary":%q,"created":%q,"issuetype":{"name":"Task"},`+
			`"customfield_10245":"swapped\nasic","customfield_10230":{"value":"BHB42831"},`+
			`"comment":{"comments":[%s]}},"changelog":{"histories":[%s]}}`,
		key, serial, created, strings.Join(notes, ","), strings.Join(histories, ",")))
}

// repairedTask went through the repair bench.
func repairedTask(key, serial string) json.RawMessage {
	return taskJSON(key, serial, "2025-01-01T08:00:00.000+0000", []transition{
		{from: "Backlog", to: "Advanced Repair", at: "2025-01-01T09:00:00.000+0000"},
		{from: "Advanced Repair", to: "Awaiting Functional Test", at: "2025-01-03T09:00:00.000+0000"},
	}, "reflowed\nchip 12", "see photo.png")
}

func idleTask(key, serial string) json.RawMessage {
	return taskJSON(key, serial, "2025-01-01T08:00:00.000+0000", nil)
}

type fakeSource struct {
	mu     sync.Mutex
	epics  []json.RawMessage
	issues map[string][]json.RawMessage
	err    error
	calls  int
}

func (f *fakeSource) Epics(context.Context) ([]json.RawMessage, error) {
	return f.epics, nil
}

func (f *fakeSource) EpicIssues(_ context.Context, key string, onProgress jira.ProgressFunc) ([]json.RawMessage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	issues := f.issues[key]
	if onProgress != nil {
		half := len(issues) / 2
		onProgress(half, len(issues))
		onProgress(len(issues), len(issues))
	}
	return issues, nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	store      *repository.FileStore
	source     *fakeSource
	catalog    *catalog.Catalog
	epics      *EpicService
	timelines  *TimelineService
	sync       *SyncService
	summaries  *SummaryService
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	recorded   *recorder
}

func newHarness(dir string, source *fakeSource) *harness {
	logger := zap.NewNop()
	store := repository.NewFileStore(dir)
	cat := catalog.New(nil)
	rules := timeline.DefaultRules()
	epics := NewEpicService(EpicDependencies{
		Store:      store,
		Parser:     jira.NewParser(testFields),
		Catalog:    cat,
		Rules:      rules,
		EpicPrefix: "RT-",
		Logger:     logger,
	})
	calendar, _ := timeline.NewCalendar()
	timelines := NewTimelineService(TimelineDependencies{
		Epics:    epics,
		Catalog:  cat,
		Cache:    cache.NewTimelineCache(nil, 0, logger),
		Rules:    rules,
		Calendar: calendar,
		Logger:   logger,
	})
	dispatcher := events.NewInMemoryDispatcher()
	rec := &recorder{}
	for _, et := range []events.EventType{
		events.EventEpicReloaded, events.EventEpicsListed, events.EventSyncFailed,
		events.EventBoardUpdated, events.EventBoardSkipped,
	} {
		dispatcher.Subscribe(et, rec.handle)
	}
	metrics := observability.NewMetrics()
	return &harness{
		store:     store,
		source:    source,
		catalog:   cat,
		epics:     epics,
		timelines: timelines,
		sync: NewSyncService(SyncDependencies{
			Source:      source,
			Store:       store,
			Epics:       epics,
			Dispatcher:  dispatcher,
			Metrics:     metrics,
			Concurrency: 2,
			Logger:      logger,
		}),
		summaries:  NewSummaryService(SummaryDependencies{Epics: epics, Logger: logger}),
		dispatcher: dispatcher,
		metrics:    metrics,
		recorded:   rec,
	}
}

func defaultSource() *fakeSource {
	return &fakeSource{
		epics: []json.RawMessage{
			epicJSON("RT-1", "january order", "2025-01-01T08:00:00.000+0000"),
			epicJSON("RT-2", "february order", "2025-02-01T08:00:00.000+0000"),
			epicJSON("OPS-9", "not tracked", "2025-02-01T08:00:00.000+0000"),
		},
		issues: map[string][]json.RawMessage{
			"RT-1": {
				repairedTask("RT-10", "SN-0010"),
				idleTask("RT-11", "SN-0011"),
				json.RawMessage(`{"key":"RT-12","fields":{"summary":"SN-0012"}}`),
			},
			"RT-2": {idleTask("RT-20", "SN-0020")},
		},
	}
}
