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
	"go.uber.org/zap"

	_ "github.com/noah-isme/student-portal-api/api/swagger"
	"github.com/noah-isme/student-portal-api/internal/handler"
	"github.com/noah-isme/student-portal-api/internal/models"
	"github.com/noah-isme/student-portal-api/internal/repository"
	"github.com/noah-isme/student-portal-api/internal/router"
	"github.com/noah-isme/student-portal-api/internal/service"
	"github.com/noah-isme/student-portal-api/pkg/cache"
	"github.com/noah-isme/student-portal-api/pkg/config"
	"github.com/noah-isme/student-portal-api/pkg/database"
	"github.com/noah-isme/student-portal-api/pkg/jobs"
	"github.com/noah-isme/student-portal-api/pkg/logger"
	"github.com/noah-isme/student-portal-api/pkg/storage"
)

// @title Student Portal API
// @version 1.0.0
// @description Role-based student portal: attendance, study materials, assignments and dashboards.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type sessionBackend interface {
	Create(ctx context.Context, session models.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var sessions sessionBackend
	if redisClient != nil {
		redisSessions := repository.NewSessionRepository(redisClient, logr)
		defer redisSessions.Close() //nolint:errcheck
		sessions = redisSessions
	} else {
		logr.Warn("redis disabled, sessions are kept in process memory")
		sessions = repository.NewMemorySessionRepository()
	}

	files, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		return fmt.Errorf("init upload storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SigningSecret, cfg.Uploads.DownloadURLTTL)

	metrics := service.NewMetricsService()
	validate := service.NewValidator()

	cleanup := jobs.NewQueue(service.JobTypeFileCleanup, service.NewFileCleanupHandler(files, logr), jobs.QueueConfig{
		Workers:    cfg.Cleanup.Workers,
		MaxRetries: cfg.Cleanup.Retries,
		RetryDelay: cfg.Cleanup.RetryDelay,
		Logger:     logr,
		OnOutcome: func(_ jobs.Job, err error) {
			metrics.RecordCleanup(err)
		},
	})
	cleanup.Start(ctx)
	defer cleanup.Stop()

	users := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)

	authSvc := service.NewAuthService(users, sessions, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		DashboardBase:     cfg.APIPrefix + "/dashboard",
	})
	attendanceSvc := service.NewAttendanceService(repository.NewAttendanceRepository(db), validate, logr, metrics, cfg.Attendance.Location())
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	counselorSvc := service.NewCounselorService(repository.NewCounselorRepository(db), validate, logr)

	docCfg := service.DocumentConfig{
		MaxFileSizeBytes:  cfg.Uploads.MaxFileSizeBytes,
		AllowedExtensions: cfg.Uploads.AllowedExtensions,
		URLPrefix:         cfg.APIPrefix,
	}
	materialSvc := service.NewDocumentService(models.DocumentKindMaterial, repository.NewDocumentRepository(db, models.DocumentKindMaterial),
		subjectRepo, files, signer, cleanup, validate, logr, metrics, docCfg)
	assignmentSvc := service.NewDocumentService(models.DocumentKindAssignment, repository.NewDocumentRepository(db, models.DocumentKindAssignment),
		subjectRepo, files, signer, cleanup, validate, logr, metrics, docCfg)
	dashboardSvc := service.NewDashboardService(users, attendanceSvc, materialSvc, assignmentSvc, logr, service.DashboardServiceConfig{})

	engine := router.New(cfg, router.Dependencies{
		Logger:      logr,
		Metrics:     metrics,
		Auth:        authSvc,
		Audit:       users,
		AuthH:       handler.NewAuthHandler(authSvc),
		Dashboard:   handler.NewDashboardHandler(dashboardSvc, cfg.APIPrefix+"/dashboard"),
		Subjects:    handler.NewSubjectHandler(subjectSvc),
		Materials:   handler.NewDocumentHandler(materialSvc),
		Assignments: handler.NewDocumentHandler(assignmentSvc),
		Attendance:  handler.NewAttendanceHandler(attendanceSvc),
		Counselor:   handler.NewCounselorHandler(counselorSvc),
		Ops:         handler.NewMetricsHandler(metrics, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logr.Info("server stopped")
	return nil
}
