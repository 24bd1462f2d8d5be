// Package catalog owns the epics loaded into the running process.
package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/repair-tracker/internal/domain"
	"github.com/spec-kit/repair-tracker/internal/timeline"
)

// Snapshot is an immutable view of one loaded epic.
type Snapshot struct {
	Epic       *domain.Epic
	Generation string
	LoadedAt   time.Time
	Skipped    int
}

type memoKey struct {
	day     string
	trimmed bool
}

type entry struct {
	snapshot  Snapshot
	timelines map[memoKey]*timeline.Timeline
}

// BuildFunc computes the timeline of a snapshot.
type BuildFunc func(Snapshot) *timeline.Timeline

// Catalog is the single owner of loaded epics. Replace swaps an epic
// wholesale; timelines memoized for the previous load are dropped with it.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*entry
	prune   map[string]struct{}
	version uint64
	flight  singleflight.Group
	now     func() time.Time
}

// New creates an empty catalog. Epics listed in prune are never listed.
func New(prune []string) *Catalog {
	c := &Catalog{
		entries: map[string]*entry{},
		prune:   make(map[string]struct{}, len(prune)),
		now:     time.Now,
	}
	for _, key := range prune {
		c.prune[key] = struct{}{}
	}
	return c
}

// Replace installs epic, superseding any earlier load of the same key.
// generation identifies the loaded content; an empty one gets a random id.
func (c *Catalog) Replace(epic *domain.Epic, skipped int, generation string) Snapshot {
	if generation == "" {
		generation = uuid.NewString()
	}
	snap := Snapshot{
		Epic:       epic,
		Generation: generation,
		LoadedAt:   c.now().UTC(),
		Skipped:    skipped,
	}
	c.mu.Lock()
	c.entries[epic.Key] = &entry{snapshot: snap, timelines: map[memoKey]*timeline.Timeline{}}
	c.version++
	c.mu.Unlock()
	return snap
}

// Remove forgets an epic.
func (c *Catalog) Remove(key string) {
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.version++
	}
	c.mu.Unlock()
}

// Get returns the current snapshot of key.
func (c *Catalog) Get(key string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot, true
}

// Version increases on every Replace or Remove.
func (c *Catalog) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Pruned reports whether key is hidden from listings.
func (c *Catalog) Pruned(key string) bool {
	_, ok := c.prune[key]
	return ok
}

// Keys returns the loaded, unpruned epic keys.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		if !c.Pruned(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// List summarizes every unpruned epic, newest first.
func (c *Catalog) List(terminal []string) []domain.EpicSummary {
	c.mu.RLock()
	out := make([]domain.EpicSummary, 0, len(c.entries))
	for key, e := range c.entries {
		if c.Pruned(key) {
			continue
		}
		out = append(out, e.snapshot.Epic.Summary(terminal))
	}
	c.mu.RUnlock()
	domain.SortSummaries(out)
	return out
}

// Timeline returns the timeline of key as seen on day, building it at most
// once per load generation. Concurrent callers share a single build.
func (c *Catalog) Timeline(key, day string, trimmed bool, build BuildFunc) (*timeline.Timeline, Snapshot, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.RUnlock()
		return nil, Snapshot{}, false
	}
	snap := e.snapshot
	mk := memoKey{day: day, trimmed: trimmed}
	if tl, hit := e.timelines[mk]; hit {
		c.mu.RUnlock()
		return tl, snap, true
	}
	c.mu.RUnlock()

	flightKey := fmt.Sprintf("%s/%s/%t", snap.Generation, day, trimmed)
	v, _, _ := c.flight.Do(flightKey, func() (any, error) {
		return build(snap), nil
	})
	tl, _ := v.(*timeline.Timeline)

	c.mu.Lock()
	if current, ok := c.entries[key]; ok && current.snapshot.Generation == snap.Generation {
		for k := range current.timelines {
			if k.day != day {
				delete(current.timelines, k)
			}
		}
		current.timelines[mk] = tl
	}
	c.mu.Unlock()
	return tl, snap, true
}
