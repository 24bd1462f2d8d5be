package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/cache"
	"github.com/spec-kit/repair-tracker/internal/catalog"
	"github.com/spec-kit/repair-tracker/internal/timeline"
	apperrors "github.com/spec-kit/repair-tracker/pkg/util/errorutil"
)

// TimelineView is everything a chart needs for one epic. Timeline is nil when
// the epic has no qualifying issues.
type TimelineView struct {
	EpicKey    string             `json:"rt"`
	Title      string             `json:"title"`
	Trimmed    bool               `json:"trimmed"`
	Timeline   *timeline.Timeline `json:"timeline"`
	Series     []timeline.Series  `json:"series"`
	Peak       *timeline.Peak     `json:"peak,omitempty"`
	NonWorking []timeline.Span    `json:"non_working"`
}

// DiffRequest selects one diff of a timeline.
type DiffRequest struct {
	EpicKey   string
	Day       string
	Label     string
	Adjacency timeline.Adjacency
	Direction timeline.Direction
	Trimmed   bool
}

// TimelineService builds, caches and diffs epic timelines.
type TimelineService struct {
	epics    *EpicService
	catalog  *catalog.Catalog
	cache    *cache.TimelineCache
	rules    timeline.Rules
	calendar *timeline.Calendar
	now      func() time.Time
	logger   *zap.Logger
}

// TimelineDependencies bundles collaborators of the timeline service.
type TimelineDependencies struct {
	Epics    *EpicService
	Catalog  *catalog.Catalog
	Cache    *cache.TimelineCache
	Rules    timeline.Rules
	Calendar *timeline.Calendar
	Logger   *zap.Logger
}

// NewTimelineService constructs the service.
func NewTimelineService(deps TimelineDependencies) *TimelineService {
	return &TimelineService{
		epics:    deps.Epics,
		catalog:  deps.Catalog,
		cache:    deps.Cache,
		rules:    deps.Rules,
		calendar: deps.Calendar,
		now:      time.Now,
		logger:   deps.Logger,
	}
}

// Rules returns the active timeline rules.
func (s *TimelineService) Rules() timeline.Rules {
	return s.rules
}

// Calendar returns the working-day calendar.
func (s *TimelineService) Calendar() *timeline.Calendar {
	return s.calendar
}

// Timeline returns the timeline of an epic as of today. trimmed applies the
// configured trim rule.
func (s *TimelineService) Timeline(ctx context.Context, epicKey string, trimmed bool) (*timeline.Timeline, catalog.Snapshot, error) {
	snap, err := s.epics.Snapshot(ctx, epicKey)
	if err != nil {
		return nil, catalog.Snapshot{}, err
	}
	now := s.now().UTC()
	day := timeline.DayKey(now)
	key := snap.Epic.Key

	tl, current, ok := s.catalog.Timeline(key, day, trimmed, func(snap catalog.Snapshot) *timeline.Timeline {
		cacheKey := cache.Key{Epic: key, Generation: snap.Generation, Day: day, Trimmed: trimmed}
		if cached, hit := s.cache.Get(ctx, cacheKey); hit {
			return cached
		}
		built := timeline.Build(snap.Epic.Issues(), s.rules, now)
		if trimmed {
			built = timeline.Trim(built, s.rules.Trim)
		}
		if err := s.cache.Set(ctx, cacheKey, built); err != nil {
			s.logger.Warn("timeline cache write failed", zap.String("epic", key), zap.Error(err))
		}
		return built
	})
	if !ok {
		return nil, catalog.Snapshot{}, apperrors.NewNotFound("epic", map[string]any{"rt": key})
	}
	return tl, current, nil
}

// View builds the chart view of an epic.
func (s *TimelineService) View(ctx context.Context, epicKey string, trimmed bool) (TimelineView, error) {
	tl, snap, err := s.Timeline(ctx, epicKey, trimmed)
	if err != nil {
		return TimelineView{}, err
	}
	view := TimelineView{
		EpicKey:    snap.Epic.Key,
		Title:      snap.Epic.Title,
		Trimmed:    trimmed,
		Timeline:   tl,
		Series:     []timeline.Series{},
		NonWorking: []timeline.Span{},
	}
	if tl == nil {
		return view, nil
	}
	view.Series = timeline.CountSeries(tl)
	if s.calendar != nil {
		if spans := s.calendar.NonWorkingSpans(tl.Days); spans != nil {
			view.NonWorking = spans
		}
	}
	peakLabel := s.rules.PeakLabel
	if peakLabel == "" && len(tl.Labels) > 0 {
		peakLabel = tl.Labels[0]
	}
	if peak, ok := timeline.PeakOf(tl, peakLabel); ok {
		view.Peak = &peak
	}
	return view, nil
}

// Diff computes one diff. A day or label missing from the timeline yields empty buckets.
func (s *TimelineService) Diff(ctx context.Context, req DiffRequest) (timeline.DiffResult, error) {
	switch req.Adjacency {
	case "", timeline.AdjacencyIndex, timeline.AdjacencyWorkday:
	default:
		return timeline.DiffResult{}, apperrors.NewValidationError("adjacency must be index or workday", nil)
	}
	switch req.Direction {
	case "", timeline.DirectionPrev, timeline.DirectionNext:
	default:
		return timeline.DiffResult{}, apperrors.NewValidationError("direction must be prev or next", nil)
	}
	if _, err := timeline.ParseDay(req.Day); err != nil {
		return timeline.DiffResult{}, apperrors.NewValidationError("day must be YYYY-MM-DD", map[string]any{"day": req.Day})
	}

	tl, _, err := s.Timeline(ctx, req.EpicKey, req.Trimmed)
	if err != nil {
		return timeline.DiffResult{}, err
	}
	return timeline.DiffWith(tl, req.Day, req.Label, s.rules, timeline.DiffOptions{
		Adjacency: req.Adjacency,
		Direction: req.Direction,
		Calendar:  s.calendar,
	})
}

// Invalidate drops cached timelines of an epic.
func (s *TimelineService) Invalidate(ctx context.Context, epicKey string) error {
	return s.cache.Invalidate(ctx, epicKey)
}
