package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/repair-tracker/internal/api/http"
	"github.com/spec-kit/repair-tracker/internal/api/http/handlers"
	"github.com/spec-kit/repair-tracker/internal/auth"
	"github.com/spec-kit/repair-tracker/internal/cache"
	"github.com/spec-kit/repair-tracker/internal/catalog"
	"github.com/spec-kit/repair-tracker/internal/config"
	"github.com/spec-kit/repair-tracker/internal/events"
	"github.com/spec-kit/repair-tracker/internal/jira"
	"github.com/spec-kit/repair-tracker/internal/observability"
	"github.com/spec-kit/repair-tracker/internal/persistence"
	"github.com/spec-kit/repair-tracker/internal/repository"
	"github.com/spec-kit/repair-tracker/internal/service"
	"github.com/spec-kit/repair-tracker/internal/summary"
	"github.com/spec-kit/repair-tracker/internal/timeline"
	"github.com/spec-kit/repair-tracker/internal/worker"
	"github.com/spec-kit/repair-tracker/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrations.Files, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var store repository.PayloadStore
	if pg.Enabled() {
		store = repository.NewPayloadRepository(pg.PoolHandle())
	} else {
		store = repository.NewFileStore(cfg.Storage.DumpDir)
		logger.Info("using file payload store", zap.String("dir", cfg.Storage.DumpDir))
	}

	rules, err := timeline.LoadRules(cfg.Timeline.RulesFile)
	if err != nil {
		logger.Fatal("failed to load timeline rules", zap.Error(err))
	}
	calendar, err := timeline.NewCalendar(rules.Holidays, cfg.Timeline.Holidays)
	if err != nil {
		logger.Fatal("invalid holiday calendar", zap.Error(err))
	}

	tracker := jira.NewClient(cfg.Jira, logger.Named("jira"))
	if !tracker.Configured() {
		logger.Warn("JIRA_SERVER not provided; refresh and board updates are unavailable")
	}
	parser := jira.NewParser(cfg.Jira.Fields)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	epicCatalog := catalog.New(cfg.Storage.EpicPruneList)

	epicService := service.NewEpicService(service.EpicDependencies{
		Store:      store,
		Parser:     parser,
		Catalog:    epicCatalog,
		Rules:      rules,
		EpicPrefix: cfg.Jira.EpicPrefix,
		Logger:     logger,
	})
	timelineService := service.NewTimelineService(service.TimelineDependencies{
		Epics:    epicService,
		Catalog:  epicCatalog,
		Cache:    cache.NewTimelineCache(redis.Handle(), cfg.Timeline.CacheTTL(), logger),
		Rules:    rules,
		Calendar: calendar,
		Logger:   logger,
	})
	syncService := service.NewSyncService(service.SyncDependencies{
		Source:      tracker,
		Store:       store,
		Epics:       epicService,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Concurrency: cfg.Sync.Concurrency,
		Logger:      logger,
	})
	summaryService := service.NewSummaryService(service.SummaryDependencies{
		Epics:  epicService,
		Filter: summary.DefaultRepairFilter(),
		Logger: logger,
	})
	boardService := service.NewBoardService(service.BoardDependencies{
		Tracker:     tracker,
		Parser:      parser,
		Fields:      cfg.Jira.Fields,
		BoardModels: cfg.Jira.BoardModels,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	authService := service.NewAuthService(cfg.Auth, logger)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager())

	worker.StartListenerWorker(service.NewListenerService(dispatcher, timelineService, logger))

	if _, err := epicService.LoadAll(ctx); err != nil {
		logger.Error("failed to load stored epics", zap.Error(err))
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:       logger,
		Metrics:      metrics,
		Timeout:      cfg.App.RequestTimeout(),
		AllowOrigins: cfg.App.CORSOrigins,
	})

	health := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics,
		handlers.Probe{Name: "postgres", Target: pg},
		handlers.Probe{Name: "redis", Target: redis},
	)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         health,
		Auth:           handlers.NewAuthHandler(authService),
		Orders:         handlers.NewOrdersHandler(epicService, syncService),
		Timeline:       handlers.NewTimelineHandler(timelineService),
		Summary:        handlers.NewSummaryHandler(summaryService, logger),
		Sync:           handlers.NewSyncHandler(syncService, logger),
		Board:          handlers.NewBoardHandler(boardService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
