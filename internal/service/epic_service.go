package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/catalog"
	"github.com/spec-kit/repair-tracker/internal/domain"
	"github.com/spec-kit/repair-tracker/internal/jira"
	"github.com/spec-kit/repair-tracker/internal/repository"
	"github.com/spec-kit/repair-tracker/internal/timeline"
)

// EpicService loads stored payloads into the catalog.
type EpicService struct {
	store   repository.PayloadStore
	parser  *jira.Parser
	catalog *catalog.Catalog
	rules   timeline.Rules
	prefix  string
	logger  *zap.Logger
}

// EpicDependencies bundles collaborators of the epic service.
type EpicDependencies struct {
	Store      repository.PayloadStore
	Parser     *jira.Parser
	Catalog    *catalog.Catalog
	Rules      timeline.Rules
	EpicPrefix string
	Logger     *zap.Logger
}

// NewEpicService constructs the service.
func NewEpicService(deps EpicDependencies) *EpicService {
	return &EpicService{
		store:   deps.Store,
		parser:  deps.Parser,
		catalog: deps.Catalog,
		rules:   deps.Rules,
		prefix:  deps.EpicPrefix,
		logger:  deps.Logger,
	}
}

// NormalizeKey applies the configured epic prefix.
func (s *EpicService) NormalizeKey(key string) string {
	return jira.NormalizeEpicKey(s.prefix, key)
}

// Tracked reports whether key belongs to the tracked project.
func (s *EpicService) Tracked(key string) bool {
	return s.prefix == "" || strings.HasPrefix(key, s.prefix)
}

// LoadAll installs every stored epic into the catalog. Epics whose issues
// have not been synced yet are loaded empty.
func (s *EpicService) LoadAll(ctx context.Context) (int, error) {
	records, err := s.store.ListEpics(ctx)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, rec := range records {
		if !s.Tracked(rec.Key) {
			continue
		}
		if _, err := s.load(ctx, rec); err != nil {
			s.logger.Warn("epic not loaded", zap.String("epic", rec.Key), zap.Error(err))
			continue
		}
		loaded++
	}
	s.logger.Info("catalog loaded", zap.Int("epics", loaded), zap.Int("stored", len(records)))
	return loaded, nil
}

// Snapshot returns the loaded epic, loading it from the store on first use.
func (s *EpicService) Snapshot(ctx context.Context, key string) (catalog.Snapshot, error) {
	key = s.NormalizeKey(key)
	if snap, ok := s.catalog.Get(key); ok {
		return snap, nil
	}
	return s.Reload(ctx, key)
}

// Reload rebuilds key from the store and replaces it in the catalog.
func (s *EpicService) Reload(ctx context.Context, key string) (catalog.Snapshot, error) {
	rec, err := s.store.GetEpic(ctx, s.NormalizeKey(key))
	if err != nil {
		return catalog.Snapshot{}, err
	}
	return s.load(ctx, *rec)
}

// Install parses freshly fetched payloads of an already stored epic.
func (s *EpicService) Install(rec repository.EpicRecord, payloads []json.RawMessage) (catalog.Snapshot, error) {
	meta, err := jira.ParseEpicMeta(rec.Payload)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	epic, skipped := s.parser.BuildEpic(meta, payloads)
	for _, skipErr := range skipped {
		s.logger.Warn("issue skipped", zap.String("epic", meta.Key), zap.Error(skipErr))
	}
	return s.catalog.Replace(epic, len(skipped), fingerprint(rec.Payload, payloads)), nil
}

// Orders lists the loaded epics, newest first.
func (s *EpicService) Orders() []domain.EpicSummary {
	return s.catalog.List(s.rules.Terminal)
}

func (s *EpicService) load(ctx context.Context, rec repository.EpicRecord) (catalog.Snapshot, error) {
	payloads, err := s.store.ListIssues(ctx, rec.Key)
	if errors.Is(err, repository.ErrEpicNotFound) {
		payloads, err = nil, nil
	}
	if err != nil {
		return catalog.Snapshot{}, err
	}
	return s.Install(rec, payloads)
}

// fingerprint identifies loaded content so cached timelines survive restarts.
func fingerprint(epic json.RawMessage, payloads []json.RawMessage) string {
	h := sha256.New()
	h.Write(epic)
	for _, p := range payloads {
		h.Write([]byte{'\n'})
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
