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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable/api/swagger"
	"github.com/noah-isme/sma-timetable/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/pkg/allocator"
	"github.com/noah-isme/sma-timetable/pkg/cache"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/database"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
	"github.com/noah-isme/sma-timetable/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/requestid"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Class timetable generation for schools: curriculum management, automatic allocation, manual edits and exports.
// @BasePath /api/v1
// @schemes http
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

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.TimetableCache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	schools := repository.NewSchoolRepository(db)
	teachers := repository.NewTeacherRepository(db)
	classes := repository.NewClassRepository(db)
	subjects := repository.NewSubjectRepository(db)
	timeslots := repository.NewTimeslotRepository(db)
	timetables := repository.NewTimetableRepository(db)
	generationJobs := repository.NewGenerationJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.TimetableCache.TTL, logr, cfg.TimetableCache.Enabled && redisClient != nil)
	authSvc := service.NewAuthService(schools, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "sma-timetable",
	})
	curriculumSvc := service.NewCurriculumService(teachers, classes, subjects, validate, logr)

	alloc := allocator.New(allocator.Config{
		PopulationSize: cfg.Scheduler.PopulationSize,
		Attempts:       cfg.Scheduler.Attempts,
		PriorityTiers:  cfg.Scheduler.PriorityTiers,
		Workers:        cfg.Scheduler.Workers,
		Seed:           cfg.Scheduler.Seed,
		Logger:         logr.Named("allocator"),
	})
	generatorSvc := service.NewTimetableGeneratorService(
		schools, classes, subjects, timeslots, timetables, db, alloc, cacheSvc, metrics, validate, logr,
		service.TimetableGeneratorConfig{ProposalTTL: cfg.Scheduler.ProposalTTL},
	)
	timetableSvc := service.NewTimetableService(
		schools, classes, subjects, timetables, timeslots, timetables, db, cacheSvc, validate, logr,
		service.TimetableServiceConfig{CacheTTL: cfg.TimetableCache.TTL},
	)
	exportSvc := service.NewExportService(timetableSvc, validate, logr, nil, nil)
	jobSvc := service.NewGenerationJobService(generationJobs, generatorSvc, validate, logr)

	if cfg.Scheduler.Enabled {
		queue := jobs.NewQueue("timetable-generation", jobSvc.Handle, jobs.QueueConfig{
			Workers:    cfg.Scheduler.JobWorkers,
			MaxRetries: cfg.Scheduler.JobRetries,
			Logger:     logr,
			OnComplete: jobSvc.OnComplete,
		})
		queue.Start(ctx)
		defer queue.Stop()
		jobSvc.AttachQueue(queue)
	}

	checks := map[string]handler.ReadinessCheck{
		"database": func(ctx context.Context) error {
			start := time.Now()
			err := db.PingContext(ctx)
			metrics.ObserveDBQuery("ping", time.Since(start))
			return err
		},
	}
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}

	authHandler := handler.NewAuthHandler(authSvc)
	curriculumHandler := handler.NewCurriculumHandler(curriculumSvc)
	timetableHandler := handler.NewTimetableHandler(generatorSvc, timetableSvc, exportSvc, jobSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics"))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	secured.GET("/teachers", curriculumHandler.ListTeachers)
	secured.POST("/teachers", curriculumHandler.CreateTeacher)
	secured.GET("/classes", curriculumHandler.ListClasses)
	secured.POST("/classes", curriculumHandler.CreateClass)
	secured.GET("/subjects", curriculumHandler.ListSubjects)
	secured.POST("/subjects", curriculumHandler.CreateSubject)
	secured.GET("/timeslots", timetableHandler.Timeslots)
	secured.GET("/metrics/summary", metricsHandler.Summary)

	timetablesGroup := secured.Group("/timetables")
	timetablesGroup.GET("", timetableHandler.Get)
	timetablesGroup.PUT("", timetableHandler.Replace)
	timetablesGroup.DELETE("", timetableHandler.Delete)
	timetablesGroup.GET("/export", timetableHandler.Export)
	timetablesGroup.POST("/generate", timetableHandler.Generate)
	timetablesGroup.POST("/proposals/:id/commit", timetableHandler.Commit)
	timetablesGroup.POST("/batch", timetableHandler.Batch)
	timetablesGroup.GET("/jobs/:id", timetableHandler.Job)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "scheduler", cfg.Scheduler.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
