package service

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/domain"
	"github.com/spec-kit/repair-tracker/internal/stream"
	"github.com/spec-kit/repair-tracker/internal/summary"
)

// SummaryService answers per-issue activity queries over loaded epics.
type SummaryService struct {
	epics  *EpicService
	filter summary.RepairFilter
	logger *zap.Logger
}

// SummaryDependencies bundles collaborators of the summary service.
type SummaryDependencies struct {
	Epics  *EpicService
	Filter summary.RepairFilter
	Logger *zap.Logger
}

// NewSummaryService constructs the service.
func NewSummaryService(deps SummaryDependencies) *SummaryService {
	filter := deps.Filter
	if filter.RepairStatus == "" {
		filter = summary.DefaultRepairFilter()
	}
	return &SummaryService{epics: deps.Epics, filter: filter, logger: deps.Logger}
}

// IssueSummary returns the summary of the issue carrying serial in epicKey.
func (s *SummaryService) IssueSummary(ctx context.Context, epicKey, serial string) (summary.IssueSummary, error) {
	snap, err := s.epics.Snapshot(ctx, epicKey)
	if err != nil {
		return summary.IssueSummary{}, err
	}
	return summary.Find(snap.Epic, serial)
}

// StreamSummaries writes one NDJSON record per task of epicKey.
func (s *SummaryService) StreamSummaries(ctx context.Context, epicKey string, w io.Writer) error {
	enc := stream.NewEncoder(w)
	snap, err := s.epics.Snapshot(ctx, epicKey)
	if err != nil {
		return enc.Error(err)
	}
	return s.encodeAll(ctx, enc, summary.All(snap.Epic, domain.IssueKindTask))
}

// StreamRepairTimes writes the repair report of epicKey as NDJSON.
func (s *SummaryService) StreamRepairTimes(ctx context.Context, epicKey string, w io.Writer) error {
	enc := stream.NewEncoder(w)
	snap, err := s.epics.Snapshot(ctx, epicKey)
	if err != nil {
		return enc.Error(err)
	}
	report := summary.RepairReport(snap.Epic, s.filter)
	s.logger.Debug("repair report built", zap.String("epic", snap.Epic.Key), zap.Int("boards", len(report)))
	return s.encodeAll(ctx, enc, report)
}

func (s *SummaryService) encodeAll(ctx context.Context, enc *stream.Encoder, items []summary.IssueSummary) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}
