package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/issue-service/internal/api/http"
	"github.com/spec-kit/issue-service/internal/api/http/handlers"
	"github.com/spec-kit/issue-service/internal/auth"
	"github.com/spec-kit/issue-service/internal/config"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/locks"
	"github.com/spec-kit/issue-service/internal/observability"
	"github.com/spec-kit/issue-service/internal/persistence"
	"github.com/spec-kit/issue-service/internal/repository"
	"github.com/spec-kit/issue-service/internal/service"
	"github.com/spec-kit/issue-service/internal/storage"
	"github.com/spec-kit/issue-service/internal/worker"
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

	broker, err := persistence.NewRabbitMQ(cfg.Queue, logger)
	if err != nil {
		logger.Fatal("failed to connect rabbitmq", zap.Error(err))
	}
	defer broker.Close()

	store, err := storage.NewMinioStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to connect object store", zap.Error(err))
	}

	pool := pg.PoolHandle()
	issueRepo := repository.NewIssueRepository(pool)
	imageRepo := repository.NewImageRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	technicianRepo := repository.NewTechnicianRepository(pool)

	issueLocks := locks.NewKeyedMutex()
	dispatcher := events.NewInMemoryDispatcher()

	var objectStore storage.ObjectStore
	if store != nil {
		objectStore = store
	}

	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:      issueRepo,
		ImageRepo:      imageRepo,
		TechnicianRepo: technicianRepo,
		Store:          objectStore,
		Locks:          issueLocks,
		Dispatcher:     dispatcher,
	})
	threadService := service.NewThreadService(service.ThreadDependencies{
		IssueRepo:   issueRepo,
		MessageRepo: messageRepo,
		Locks:       issueLocks,
		Dispatcher:  dispatcher,
		Cache:       redis.Client,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		IssueRepo:      issueRepo,
		ImageRepo:      imageRepo,
		TechnicianRepo: technicianRepo,
		MessageRepo:    messageRepo,
		Locks:          issueLocks,
		Dispatcher:     dispatcher,
	})
	exportService := service.NewExportService(issueRepo, technicianRepo)
	notificationService := service.NewNotificationService(dispatcher, broker.ChannelHandle(), logger, cfg.Queue)
	worker.StartNotificationWorker(notificationService)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Issues:         handlers.NewIssuesHandler(issueService, threadService, exportService),
		AdminIssues:    handlers.NewAdminIssuesHandler(issueService, assignmentService, exportService),
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
