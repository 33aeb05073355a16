package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-engine/internal/api/http"
	"github.com/spec-kit/helpdesk-engine/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-engine/internal/auth"
	"github.com/spec-kit/helpdesk-engine/internal/config"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/observability"
	"github.com/spec-kit/helpdesk-engine/internal/persistence"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
	"github.com/spec-kit/helpdesk-engine/internal/service"
	"github.com/spec-kit/helpdesk-engine/internal/worker"
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	quotationRepo := repository.NewQuotationRepository(pool)
	ruleRepo := repository.NewRuleRepository(pool)
	timelineRepo := repository.NewTimelineRepository(pool)
	masterDataRepo := repository.NewMasterDataRepository(pool)

	notifier := service.NewNotificationService(redis.Client, cfg.Notification.OutboxKey,
		cfg.Engine.DispatchTimeout(), logger)

	dispatcher := events.NewInMemoryDispatcher()
	notifier.RegisterHandlers(dispatcher)

	stageService := service.NewStageService(service.StageDependencies{
		TicketRepo:     ticketRepo,
		MasterDataRepo: masterDataRepo,
		TimelineRepo:   timelineRepo,
		Logger:         logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		AssignmentRepo: assignmentRepo,
		TicketRepo:     ticketRepo,
		MasterDataRepo: masterDataRepo,
		TimelineRepo:   timelineRepo,
		Stages:         stageService,
		Notifier:       notifier,
		Logger:         logger,
	})
	quotationService := service.NewQuotationService(service.QuotationDependencies{
		QuotationRepo: quotationRepo,
		TicketRepo:    ticketRepo,
		TimelineRepo:  timelineRepo,
		Notifier:      notifier,
		Logger:        logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		MasterDataRepo: masterDataRepo,
		TimelineRepo:   timelineRepo,
		Logger:         logger,
	})
	ruleService := service.NewRuleService(ruleRepo, masterDataRepo)

	executor := service.NewActionExecutor(masterDataRepo, logger, cfg.Engine.LookupTimeout())
	coordinator := service.NewCoordinator(service.CoordinatorDependencies{
		TicketRepo:     ticketRepo,
		AssignmentRepo: assignmentRepo,
		RuleRepo:       ruleRepo,
		MasterDataRepo: masterDataRepo,
		TimelineRepo:   timelineRepo,
		Stages:         stageService,
		Assignments:    assignmentService,
		Executor:       executor,
		Notifier:       notifier,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Metrics:        metrics,
		TransitionCap:  cfg.Engine.TransitionCap,
	})

	notificationWorker := worker.NewNotificationWorker(redis.Client, cfg.Notification.OutboxKey,
		&worker.LogSender{Logger: logger}, logger)
	go notificationWorker.Run(ctx)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService, stageService, coordinator),
		Assignments:    handlers.NewAssignmentsHandler(assignmentService, coordinator),
		Quotations:     handlers.NewQuotationsHandler(quotationService, coordinator),
		Rules:          handlers.NewRulesHandler(ruleService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
