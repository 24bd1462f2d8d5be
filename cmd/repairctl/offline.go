package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/cache"
	"github.com/spec-kit/repair-tracker/internal/catalog"
	"github.com/spec-kit/repair-tracker/internal/config"
	"github.com/spec-kit/repair-tracker/internal/jira"
	"github.com/spec-kit/repair-tracker/internal/repository"
	"github.com/spec-kit/repair-tracker/internal/service"
	"github.com/spec-kit/repair-tracker/internal/summary"
	"github.com/spec-kit/repair-tracker/internal/timeline"
)

// workspace wires the read side over a dump directory, without Postgres or Redis.
type workspace struct {
	epics     *service.EpicService
	timelines *service.TimelineService
	summaries *service.SummaryService
	calendar  *timeline.Calendar
	logger    *zap.Logger
}

func openWorkspace(ctx context.Context) (*workspace, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger()

	rules, err := timeline.LoadRules(rulesFile)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	calendar, err := timeline.NewCalendar(rules.Holidays, holidays)
	if err != nil {
		return nil, err
	}

	epicCatalog := catalog.New(cfg.Storage.EpicPruneList)
	epics := service.NewEpicService(service.EpicDependencies{
		Store:      repository.NewFileStore(dumpDir),
		Parser:     jira.NewParser(cfg.Jira.Fields),
		Catalog:    epicCatalog,
		Rules:      rules,
		EpicPrefix: epicPrefix,
		Logger:     logger,
	})

	bar := newSpinner("Loading " + dumpDir)
	n, err := epics.LoadAll(ctx)
	finishBar(bar)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dumpDir, err)
	}
	logger.Debug("loaded epics", zap.Int("count", n))

	return &workspace{
		epics: epics,
		timelines: service.NewTimelineService(service.TimelineDependencies{
			Epics:    epics,
			Catalog:  epicCatalog,
			Cache:    cache.NewTimelineCache(nil, 0, logger),
			Rules:    rules,
			Calendar: calendar,
			Logger:   logger,
		}),
		summaries: service.NewSummaryService(service.SummaryDependencies{
			Epics:  epics,
			Filter: summary.DefaultRepairFilter(),
			Logger: logger,
		}),
		calendar: calendar,
		logger:   logger,
	}, nil
}
