package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	epicListFile = "epic-list.json"
	syncRunsFile = "sync-runs.json"
)

// FileStore keeps raw payloads as JSON files in a dump directory:
// epic-list.json holds the epic payloads and <EPIC>.json the issues of one epic.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a store rooted at dir. The directory is created on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the dump directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) ListEpics(ctx context.Context) ([]EpicRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readEpics()
}

func (s *FileStore) GetEpic(ctx context.Context, key string) (*EpicRecord, error) {
	records, err := s.ListEpics(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Key == key {
			return &records[i], nil
		}
	}
	return nil, ErrEpicNotFound
}

func (s *FileStore) UpsertEpics(ctx context.Context, records []EpicRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readEpics()
	if err != nil {
		return err
	}
	index := make(map[string]int, len(existing))
	for i, rec := range existing {
		index[rec.Key] = i
	}
	for _, rec := range records {
		if i, ok := index[rec.Key]; ok {
			existing[i].Payload = rec.Payload
			continue
		}
		index[rec.Key] = len(existing)
		existing = append(existing, rec)
	}

	payloads := make([]json.RawMessage, len(existing))
	for i, rec := range existing {
		payloads[i] = rec.Payload
	}
	return s.writeJSON(epicListFile, payloads)
}

func (s *FileStore) ReplaceIssues(ctx context.Context, epicKey string, payloads []json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := issueFile(epicKey)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	epics, err := s.readEpics()
	if err != nil {
		return err
	}
	if !hasEpic(epics, epicKey) {
		return ErrEpicNotFound
	}
	for i, payload := range payloads {
		if _, err := KeyOf(payload); err != nil {
			return fmt.Errorf("issue payload %d: %w", i, err)
		}
	}
	if payloads == nil {
		payloads = []json.RawMessage{}
	}
	return s.writeJSON(name, payloads)
}

func (s *FileStore) ListIssues(ctx context.Context, epicKey string) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := issueFile(epicKey)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var payloads []json.RawMessage
	found, err := s.readJSON(name, &payloads)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrEpicNotFound
	}
	if payloads == nil {
		payloads = []json.RawMessage{}
	}
	return payloads, nil
}

func (s *FileStore) RecordSync(ctx context.Context, run SyncRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var runs []SyncRun
	if _, err := s.readJSON(syncRunsFile, &runs); err != nil {
		return err
	}
	runs = append(runs, run)
	return s.writeJSON(syncRunsFile, runs)
}

func (s *FileStore) ListSyncRuns(ctx context.Context, epicKey string, limit int) ([]SyncRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var runs []SyncRun
	if _, err := s.readJSON(syncRunsFile, &runs); err != nil {
		return nil, err
	}
	var out []SyncRun
	for _, run := range runs {
		if run.EpicKey == epicKey {
			out = append(out, run)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].StartedAt.After(out[b].StartedAt)
	})
	if limit = syncRunLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FileStore) readEpics() ([]EpicRecord, error) {
	var payloads []json.RawMessage
	found, err := s.readJSON(epicListFile, &payloads)
	if err != nil || !found {
		return nil, err
	}
	modified := s.modTime(epicListFile)
	records := make([]EpicRecord, 0, len(payloads))
	for i, payload := range payloads {
		key, err := KeyOf(payload)
		if err != nil {
			return nil, fmt.Errorf("%s entry %d: %w", epicListFile, i, err)
		}
		records = append(records, EpicRecord{Key: key, Payload: payload, UpdatedAt: modified})
	}
	return records, nil
}

func (s *FileStore) readJSON(name string, dst any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

// writeJSON replaces name atomically through a temp file in the same directory.
func (s *FileStore) writeJSON(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}

func (s *FileStore) modTime(name string) time.Time {
	info, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime().UTC()
}

func issueFile(epicKey string) (string, error) {
	if epicKey == "" || strings.ContainsAny(epicKey, `/\`) || strings.Contains(epicKey, "..") {
		return "", fmt.Errorf("invalid epic key %q", epicKey)
	}
	return epicKey + ".json", nil
}

func hasEpic(records []EpicRecord, key string) bool {
	for _, rec := range records {
		if rec.Key == key {
			return true
		}
	}
	return false
}
