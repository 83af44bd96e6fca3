package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/watchtower-api/api/swagger"
	"github.com/noah-isme/watchtower-api/internal/handler"
	internalmiddleware "github.com/noah-isme/watchtower-api/internal/middleware"
	"github.com/noah-isme/watchtower-api/internal/repository"
	"github.com/noah-isme/watchtower-api/internal/service"
	"github.com/noah-isme/watchtower-api/pkg/cache"
	"github.com/noah-isme/watchtower-api/pkg/config"
	"github.com/noah-isme/watchtower-api/pkg/database"
	"github.com/noah-isme/watchtower-api/pkg/jobs"
	"github.com/noah-isme/watchtower-api/pkg/logger"
	"github.com/noah-isme/watchtower-api/pkg/storage"
)

// @title Watchtower API
// @version 1.0.0
// @description Exam invigilation duty scheduling: rosters, timetables, duty plans and exports.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, schedule detail cache disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Scheduler.CacheTTL, logr, redisClient != nil)

	periodRepo := repository.NewExamPeriodRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	scheduleRepo := repository.NewDutyScheduleRepository(db)
	slotRepo := repository.NewDutySlotRepository(db)
	exportRepo := repository.NewExportJobRepository(db)

	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	periodSvc := service.NewExamPeriodService(periodRepo, validate, logr)
	rosterSvc := service.NewRosterService(periodRepo, rosterRepo, db, validate, logr)
	timetableSvc := service.NewTimetableService(periodRepo, timetableRepo, db, validate, logr)
	dutySvc := service.NewDutyScheduleService(service.DutyScheduleDeps{
		Periods:   periodRepo,
		Roster:    rosterSvc,
		Timetable: timetableSvc,
		Schedules: scheduleRepo,
		Slots:     slotRepo,
		Tx:        db,
		Cache:     cacheSvc,
		Metrics:   metrics,
	}, validate, logr, service.DutyScheduleConfig{
		ProposalTTL:  cfg.Scheduler.ProposalTTL,
		CacheTTL:     cfg.Scheduler.CacheTTL,
		GapFillScope: service.GapFillScope(cfg.Scheduler.GapFillScope),
	})

	exportHandler, stopExports, err := setupExports(ctx, cfg, logr, exportRepo, dutySvc, validate, metrics)
	if err != nil {
		logr.Fatal("failed to initialise exports", zap.Error(err))
	}
	defer stopExports()

	router := newRouter(cfg, logr, routerDeps{
		Auth:          internalmiddleware.JWT(authSvc),
		Metrics:       metrics,
		ExamPeriods:   handler.NewExamPeriodHandler(periodSvc, rosterSvc, timetableSvc),
		DutySchedules: handler.NewDutyScheduleHandler(dutySvc),
		Exports:       exportHandler,
		Health: handler.NewHealthHandler(metrics.Handler(), map[string]handler.Pinger{
			"postgres": handler.PingFunc(db.PingContext),
			"redis":    cacheRepo,
		}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// setupExports wires the export queue. With exports disabled the handler
// answers every export route with an error.
func setupExports(ctx context.Context, cfg *config.Config, logr *zap.Logger, repo *repository.ExportJobRepository, schedules *service.DutyScheduleService, validate *validator.Validate, metrics *service.MetricsService) (*handler.ExportHandler, func(), error) {
	if !cfg.Exports.Enabled {
		logr.Info("exports disabled")
		return handler.NewExportHandler(nil), func() {}, nil
	}

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(schedules, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, nil, nil)

	worker := service.NewExportWorker(repo, exporter, metrics, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		OnGiveUp:   worker.GiveUp,
		Logger:     logr,
	})
	queue.Start(ctx)

	jobSvc := service.NewExportJobService(repo, schedules, queue, exporter, validate, metrics, logr, service.ExportJobConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	jobSvc.RecoverPendingJobs(ctx)
	jobSvc.StartCleanup(ctx)

	return handler.NewExportHandler(jobSvc), queue.Stop, nil
}
