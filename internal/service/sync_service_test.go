package service

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/spec-kit/repair-tracker/internal/events"
	"github.com/spec-kit/repair-tracker/internal/repository"
	"github.com/spec-kit/repair-tracker/internal/stream"
)

func TestSyncEpic(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t.TempDir(), defaultSource())

	var progress [][2]int
	result, err := h.sync.SyncEpic(ctx, "1", events.SystemActor, func(current, total int) {
		progress = append(progress, [2]int{current, total})
	})
	if err != nil {
		t.Fatalf("SyncEpic() error = %v", err)
	}
	if result.EpicKey != "RT-1" || result.IssueCount != 2 || result.Skipped != 1 || result.RunID == "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(progress) != 2 || progress[1] != [2]int{3, 3} {
		t.Errorf("progress = %v", progress)
	}

	stored, err := h.store.ListIssues(ctx, "RT-1")
	if err != nil || len(stored) != 3 {
		t.Fatalf("stored issues = %d, %v", len(stored), err)
	}
	snap, ok := h.catalog.Get("RT-1")
	if !ok || snap.Generation != result.Generation || snap.Skipped != 1 {
		t.Fatalf("catalog snapshot = %+v, %v", snap, ok)
	}

	runs, err := h.store.ListSyncRuns(ctx, "RT-1", 0)
	if err != nil || len(runs) != 1 || runs[0].ID != result.RunID || runs[0].Error != "" {
		t.Fatalf("sync runs = %+v, %v", runs, err)
	}
	if got := h.recorded.types(); !slices.Contains(got, events.EventEpicReloaded) || !slices.Contains(got, events.EventEpicsListed) {
		t.Errorf("published events = %v", got)
	}
	if snap := h.metrics.Snapshot(); snap.Syncs["ok"] != 1 || snap.IssuesSynced != 2 || snap.IssuesSkipped != 1 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestSyncEpicSameContentKeepsGeneration(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t.TempDir(), defaultSource())

	first, err := h.sync.SyncEpic(ctx, "RT-2", events.SystemActor, nil)
	if err != nil {
		t.Fatalf("first SyncEpic() error = %v", err)
	}
	second, err := h.sync.SyncEpic(ctx, "RT-2", events.SystemActor, nil)
	if err != nil {
		t.Fatalf("second SyncEpic() error = %v", err)
	}
	if first.Generation != second.Generation || first.RunID == second.RunID {
		t.Errorf("generations %q/%q, runs %q/%q", first.Generation, second.Generation, first.RunID, second.RunID)
	}
}

func TestSyncEpicFailure(t *testing.T) {
	ctx := context.Background()
	source := defaultSource()
	source.err = errors.New("tracker down")
	h := newHarness(t.TempDir(), source)

	if _, err := h.sync.SyncEpic(ctx, "RT-1", events.SystemActor, nil); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := h.catalog.Get("RT-1"); ok {
		t.Error("failed sync must not install the epic")
	}
	runs, err := h.store.ListSyncRuns(ctx, "RT-1", 0)
	if err != nil || len(runs) != 1 || runs[0].Error != "tracker down" {
		t.Fatalf("sync runs = %+v, %v", runs, err)
	}
	if !slices.Contains(h.recorded.types(), events.EventSyncFailed) {
		t.Errorf("published events = %v", h.recorded.types())
	}
	if h.metrics.Snapshot().Syncs["failed"] != 1 {
		t.Errorf("failed syncs not counted")
	}
}

func TestSyncEpicUnknownEpic(t *testing.T) {
	h := newHarness(t.TempDir(), defaultSource())
	_, err := h.sync.SyncEpic(context.Background(), "RT-404", events.SystemActor, nil)
	if !errors.Is(err, repository.ErrEpicNotFound) {
		t.Fatalf("expected ErrEpicNotFound, got %v", err)
	}
	if h.source.calls != 0 {
		t.Errorf("issues fetched for unknown epic")
	}
}

func TestStreamEpic(t *testing.T) {
	h := newHarness(t.TempDir(), defaultSource())
	var buf bytes.Buffer
	if err := h.sync.StreamEpic(context.Background(), "RT-1", events.SystemActor, &buf); err != nil {
		t.Fatalf("StreamEpic() error = %v", err)
	}

	var kinds []stream.EventKind
	var last []byte
	err := stream.Consume(context.Background(), &buf, func(ev stream.Event) error {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == stream.EventRecord {
			last = ev.Record
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	want := []stream.EventKind{stream.EventProgress, stream.EventProgress, stream.EventRecord}
	if !slices.Equal(kinds, want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	if !bytes.Contains(last, []byte(`"rt_num":"RT-1"`)) || !bytes.Contains(last, []byte(`"issue_count":2`)) {
		t.Errorf("final record = %s", last)
	}
}

func TestStreamEpicErrorRecord(t *testing.T) {
	source := defaultSource()
	source.err = errors.New("tracker down")
	h := newHarness(t.TempDir(), source)

	var buf bytes.Buffer
	if err := h.sync.StreamEpic(context.Background(), "RT-1", events.SystemActor, &buf); err != nil {
		t.Fatalf("StreamEpic() error = %v", err)
	}
	if got := buf.String(); got != "{\"error\":\"tracker down\"}\n" {
		t.Errorf("stream = %q", got)
	}
}

func TestSyncAll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t.TempDir(), defaultSource())

	outcomes, err := h.sync.SyncAll(ctx, nil, events.SystemActor)
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	for _, o := range outcomes {
		if o.Error != "" {
			t.Errorf("%s failed: %s", o.Result.EpicKey, o.Error)
		}
	}
	if keys := h.catalog.Keys(); len(keys) != 2 {
		t.Errorf("catalog keys = %v", keys)
	}

	outcomes, err = h.sync.SyncAll(ctx, []string{"2", "RT-404"}, events.SystemActor)
	if err != nil {
		t.Fatalf("SyncAll(keys) error = %v", err)
	}
	if outcomes[0].Error != "" || outcomes[1].Error == "" || outcomes[1].Result.EpicKey != "RT-404" {
		t.Errorf("outcomes = %+v", outcomes)
	}
}
