package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/exam-seating-api/api/swagger"
	"github.com/noah-isme/exam-seating-api/internal/handler"
	"github.com/noah-isme/exam-seating-api/internal/repository"
	"github.com/noah-isme/exam-seating-api/internal/router"
	"github.com/noah-isme/exam-seating-api/internal/seating"
	"github.com/noah-isme/exam-seating-api/internal/service"
	"github.com/noah-isme/exam-seating-api/pkg/cache"
	"github.com/noah-isme/exam-seating-api/pkg/config"
	"github.com/noah-isme/exam-seating-api/pkg/database"
	"github.com/noah-isme/exam-seating-api/pkg/events"
	"github.com/noah-isme/exam-seating-api/pkg/jobs"
	"github.com/noah-isme/exam-seating-api/pkg/logger"
	"github.com/noah-isme/exam-seating-api/pkg/storage"
)

// @title Exam Seating API
// @version 1.0.0
// @description Generates, stores and exports exam seating plans.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	checks := map[string]handler.ReadinessCheck{"postgres": database.Check(db)}

	var (
		redisClient redis.UniversalClient
		scripter    redis.Scripter
	)
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, proposals fall back to memory and rate limiting is off", zap.Error(err))
		} else {
			defer client.Close()
			redisClient = client
			scripter = client
			checks["redis"] = cache.Check(client)
		}
	}

	publisher := newPublisher(cfg.RabbitMQ, logr)
	defer publisher.Close()

	metrics := service.NewMetricsService()
	validate := validator.New()

	users := repository.NewUserRepository(db)
	rooms := repository.NewRoomRepository(db)
	students := repository.NewStudentRepository(db)
	plans := repository.NewSeatingPlanRepository(db)
	seats := repository.NewSeatAssignmentRepository(db)
	exportJobs := repository.NewExportJobRepository(db)

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Seating.ProposalTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            logger.ServiceName,
	})
	if cfg.Auth.BootstrapEmail != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPassword, cfg.Auth.BootstrapName); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	roomSvc := service.NewRoomService(rooms, validate, logr)
	studentSvc := service.NewStudentService(students, validate, logr)
	importSvc := service.NewImportService(students, db, logr, service.ImportConfig{MaxRows: cfg.Seating.MaxStudents})
	seatingEngine := seating.NewEngine()
	logr.Info("seating engine ready", zap.Any("algorithms", seatingEngine.Algorithms()), zap.String("default", cfg.Seating.DefaultAlgorithm))
	seatingSvc := service.NewSeatingService(rooms, students, plans, seats, seatingEngine, cacheSvc, publisher, metrics, db, validate, logr, service.SeatingConfig{
		ProposalTTL:      cfg.Seating.ProposalTTL,
		DefaultAlgorithm: cfg.Seating.DefaultAlgorithm,
		MaxStudents:      cfg.Seating.MaxStudents,
	})

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return fmt.Errorf("prepare export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(plans, seats, store, signer, nil, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)

	worker := service.NewExportWorker(exportJobs, exportSvc, logr)
	queue := jobs.NewQueue(service.ExportJobType, worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Exports.WorkerConcurrency,
		MaxRetries:  cfg.Exports.WorkerRetries,
		OnExhausted: worker.MarkFailed,
		Logger:      logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	if err := metrics.TrackQueueDepth(service.ExportJobType, queue.Pending); err != nil {
		logr.Warn("export queue gauge not registered", zap.Error(err))
	}

	exportJobSvc := service.NewExportJobService(exportJobs, plans, queue, exportSvc, validate, logr, service.ExportJobConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	exportJobSvc.RecoverPendingJobs(ctx)
	exportJobSvc.StartCleanup(ctx)

	engine := router.New(router.Deps{
		Config:  cfg,
		Logger:  logr,
		Tokens:  authSvc,
		Metrics: metrics,
		Redis:   scripter,
	}, router.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		Rooms:    handler.NewRoomHandler(roomSvc),
		Students: handler.NewStudentHandler(studentSvc, importSvc),
		Seating:  handler.NewSeatingHandler(seatingSvc),
		Exports:  handler.NewExportHandler(exportJobSvc),
		Metrics:  handler.NewMetricsHandler(metrics, checks),
	})

	srv := router.Server(fmt.Sprintf(":%d", cfg.Port), engine)
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newPublisher connects to RabbitMQ when enabled. A broker that is down at startup degrades to
// the no-op publisher so seating still works.
func newPublisher(cfg config.RabbitMQConfig, logr *zap.Logger) events.Publisher {
	if !cfg.Enabled {
		return events.NopPublisher{}
	}
	rabbit, err := events.NewRabbitMQPublisher(cfg.URL, cfg.Queue, logr)
	if err != nil {
		logr.Warn("rabbitmq unavailable, events disabled", zap.Error(err))
		return events.NopPublisher{}
	}
	return events.NewAsync(rabbit, 5*time.Second, logr)
}
