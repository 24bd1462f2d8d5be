package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/repair-tracker/internal/events"
	"github.com/spec-kit/repair-tracker/internal/jira"
	"github.com/spec-kit/repair-tracker/internal/observability"
	"github.com/spec-kit/repair-tracker/internal/repository"
	"github.com/spec-kit/repair-tracker/internal/stream"
)

// IssueSource fetches raw payloads from the tracker.
type IssueSource interface {
	Epics(ctx context.Context) ([]json.RawMessage, error)
	EpicIssues(ctx context.Context, epicKey string, onProgress jira.ProgressFunc) ([]json.RawMessage, error)
}

// SyncResult is the final record of one epic refresh.
type SyncResult struct {
	EpicKey    string `json:"rt_num"`
	IssueCount int    `json:"issue_count"`
	Skipped    int    `json:"skipped"`
	RunID      string `json:"run_id"`
	Generation string `json:"generation"`
}

// SyncService refreshes epics from the tracker into the store and catalog.
type SyncService struct {
	source      IssueSource
	store       repository.PayloadStore
	epics       *EpicService
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	concurrency int
	logger      *zap.Logger
}

// SyncDependencies bundles collaborators of the sync service.
type SyncDependencies struct {
	Source      IssueSource
	Store       repository.PayloadStore
	Epics       *EpicService
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Concurrency int
	Logger      *zap.Logger
}

// NewSyncService constructs the service.
func NewSyncService(deps SyncDependencies) *SyncService {
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SyncService{
		source:      deps.Source,
		store:       deps.Store,
		epics:       deps.Epics,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		concurrency: concurrency,
		logger:      deps.Logger,
	}
}

// RefreshEpics stores the tracked epic payloads currently in the tracker.
func (s *SyncService) RefreshEpics(ctx context.Context, actor events.Actor) (int, error) {
	payloads, err := s.source.Epics(ctx)
	if err != nil {
		return 0, err
	}
	records := make([]repository.EpicRecord, 0, len(payloads))
	for _, payload := range payloads {
		key, err := repository.KeyOf(payload)
		if err != nil {
			s.logger.Warn("epic payload without key skipped", zap.Error(err))
			continue
		}
		if !s.epics.Tracked(key) {
			continue
		}
		records = append(records, repository.EpicRecord{Key: key, Payload: payload})
	}
	if err := s.store.UpsertEpics(ctx, records); err != nil {
		return 0, err
	}
	s.publish(ctx, events.New(events.EventEpicsListed, "", actor, events.EpicsListedPayload{Count: len(records)}))
	return len(records), nil
}

// SyncEpic fetches every issue of an epic, replaces the stored payloads
// wholesale and reloads the epic. onProgress receives (current, total) after
// each fetched page and may be nil.
func (s *SyncService) SyncEpic(ctx context.Context, epicKey string, actor events.Actor, onProgress jira.ProgressFunc) (SyncResult, error) {
	key := s.epics.NormalizeKey(epicKey)
	result := SyncResult{EpicKey: key, RunID: uuid.NewString()}
	run := repository.SyncRun{ID: result.RunID, EpicKey: key, StartedAt: time.Now().UTC()}

	snapErr := func() error {
		rec, err := s.epicRecord(ctx, key, actor)
		if err != nil {
			return err
		}
		payloads, err := s.source.EpicIssues(ctx, key, onProgress)
		if err != nil {
			return err
		}
		if err := s.store.ReplaceIssues(ctx, key, payloads); err != nil {
			return err
		}
		snap, err := s.epics.Install(*rec, payloads)
		if err != nil {
			return err
		}
		result.IssueCount = snap.Epic.IssueCount()
		result.Skipped = snap.Skipped
		result.Generation = snap.Generation
		return nil
	}()

	run.FinishedAt = time.Now().UTC()
	run.IssueCount = result.IssueCount
	run.Skipped = result.Skipped
	if snapErr != nil {
		run.Error = snapErr.Error()
	}
	if err := s.store.RecordSync(ctx, run); err != nil {
		s.logger.Warn("sync run not recorded", zap.String("epic", key), zap.Error(err))
	}

	if snapErr != nil {
		s.metrics.RecordSync("failed", 0, 0)
		s.logger.Error("epic sync failed", zap.String("epic", key), zap.String("run_id", run.ID), zap.Error(snapErr))
		s.publish(ctx, events.New(events.EventSyncFailed, key, actor, events.SyncFailedPayload{RunID: run.ID, Error: snapErr.Error()}))
		return SyncResult{}, snapErr
	}

	s.metrics.RecordSync("ok", result.IssueCount, result.Skipped)
	s.logger.Info("epic synced",
		zap.String("epic", key),
		zap.String("run_id", run.ID),
		zap.Int("issues", result.IssueCount),
		zap.Int("skipped", result.Skipped),
		zap.Duration("took", run.FinishedAt.Sub(run.StartedAt)))
	s.publish(ctx, events.New(events.EventEpicReloaded, key, actor, events.EpicReloadedPayload{
		RunID:      result.RunID,
		Generation: result.Generation,
		IssueCount: result.IssueCount,
		Skipped:    result.Skipped,
	}))
	return result, nil
}

// StreamEpic runs SyncEpic and writes the progress feed to w as NDJSON: one
// progress marker per fetched page followed by the SyncResult, or an error record.
func (s *SyncService) StreamEpic(ctx context.Context, epicKey string, actor events.Actor, w io.Writer) error {
	enc := stream.NewEncoder(w)
	var writeErr error
	result, err := s.SyncEpic(ctx, epicKey, actor, func(current, total int) {
		if writeErr == nil {
			writeErr = enc.Progress(current, total)
		}
	})
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		return enc.Error(err)
	}
	return enc.Encode(result)
}

// SyncOutcome is one entry of a bulk sync.
type SyncOutcome struct {
	Result SyncResult `json:"result"`
	Error  string     `json:"error,omitempty"`
}

// SyncAll syncs several epics with bounded concurrency. An empty key list
// refreshes the epic list first and syncs every stored epic. A failing epic
// does not stop the others.
func (s *SyncService) SyncAll(ctx context.Context, keys []string, actor events.Actor) ([]SyncOutcome, error) {
	if len(keys) == 0 {
		if _, err := s.RefreshEpics(ctx, actor); err != nil {
			return nil, err
		}
		records, err := s.store.ListEpics(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if s.epics.Tracked(rec.Key) {
				keys = append(keys, rec.Key)
			}
		}
	}

	outcomes := make([]SyncOutcome, len(keys))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			result, err := s.SyncEpic(gctx, key, actor, nil)
			outcome := SyncOutcome{Result: result}
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				outcome.Result.EpicKey = s.epics.NormalizeKey(key)
				outcome.Error = err.Error()
			}
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, fmt.Errorf("sync all: %w", err)
	}
	return outcomes, nil
}

func (s *SyncService) epicRecord(ctx context.Context, key string, actor events.Actor) (*repository.EpicRecord, error) {
	rec, err := s.store.GetEpic(ctx, key)
	if !errors.Is(err, repository.ErrEpicNotFound) {
		return rec, err
	}
	if _, err := s.RefreshEpics(ctx, actor); err != nil {
		return nil, err
	}
	return s.store.GetEpic(ctx, key)
}

func (s *SyncService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

// Runs lists the latest recorded refreshes of an epic, newest first.
func (s *SyncService) Runs(ctx context.Context, epicKey string, limit int) ([]repository.SyncRun, error) {
	runs, err := s.store.ListSyncRuns(ctx, s.epics.NormalizeKey(epicKey), limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []repository.SyncRun{}
	}
	return runs, nil
}
