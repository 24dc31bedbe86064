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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edu-center-api/api/swagger"
	"github.com/noah-isme/edu-center-api/internal/handler"
	"github.com/noah-isme/edu-center-api/internal/middleware"
	"github.com/noah-isme/edu-center-api/internal/repository"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/pkg/cache"
	"github.com/noah-isme/edu-center-api/pkg/config"
	"github.com/noah-isme/edu-center-api/pkg/database"
	"github.com/noah-isme/edu-center-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/edu-center-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edu-center-api/pkg/middleware/requestid"
)

// @title Education Center API
// @version 1.0.0
// @description Bookings, registrations, payments, attendance and the daily settlement ledger.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownGrace = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient := cache.Connect(ctx, cfg, logr)
	if redisClient != nil {
		defer redisClient.Close()
	}

	loc := cfg.Location()
	metrics := service.NewMetricsService()

	bookingRepo := repository.NewBookingRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	hallRepo := repository.NewHallRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	txManager := repository.NewTxManager(db)

	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Cache.BookingsTTL, logr, redisClient != nil)

	auditRepo := repository.NewAuditRepository(db)
	auditSvc := service.NewAuditService(auditRepo, service.AuditConfig{
		Workers:    cfg.Audit.Workers,
		Retries:    cfg.Audit.Retries,
		BufferSize: cfg.Audit.BufferSize,
	}, logr)
	auditSvc.Start(context.Background())
	defer auditSvc.Stop()

	bookingSvc := service.NewBookingService(bookingRepo, hallRepo, teacherRepo, txManager, service.BookingServiceConfig{
		DefaultDuration: cfg.Bookings.DefaultDuration,
		CacheTTL:        cfg.Cache.BookingsTTL,
	}, logr,
		service.WithBookingCache(cacheSvc),
		service.WithBookingMetrics(metrics),
		service.WithBookingAudit(auditSvc),
	)

	registrationSvc := service.NewRegistrationService(registrationRepo, paymentRepo, attendanceRepo, bookingRepo, teacherRepo, studentRepo, txManager, logr,
		service.WithRegistrationMetrics(metrics),
		service.WithRegistrationAudit(auditSvc),
		service.WithRegistrationClock(time.Now, loc),
	)

	cascadeSvc := service.NewFeeCascadeService(repository.NewFeeCascadeRepository(db), bookingRepo, teacherRepo, logr,
		service.WithFeeCascadeCache(cacheSvc),
		service.WithFeeCascadeMetrics(metrics),
		service.WithFeeCascadeAudit(auditSvc),
		service.WithFeeCascadeClock(time.Now, loc),
	)

	handlers := handler.Handlers{
		Bookings:      handler.NewBookingHandler(bookingSvc),
		Registrations: handler.NewRegistrationHandler(registrationSvc),
		FeeCascade:    handler.NewFeeCascadeHandler(cascadeSvc),
		Directory: handler.NewDirectoryHandler(
			service.NewDirectoryService(teacherRepo, hallRepo, studentRepo, auditRepo, logr),
		),
	}
	if cfg.Settlements.Enabled {
		settlementSvc := service.NewSettlementService(repository.NewSettlementRepository(db), repository.NewSettlementRequestRepository(db), txManager,
			service.SettlementServiceConfig{SummaryTTL: cfg.Cache.SummaryTTL}, logr,
			service.WithSettlementCache(cacheSvc),
			service.WithSettlementMetrics(metrics),
			service.WithSettlementAudit(auditSvc),
			service.WithSettlementClock(time.Now, loc),
		)
		handlers.Settlements = handler.NewSettlementHandler(settlementSvc)
	}

	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	health := handler.NewHealthHandler(metrics, map[string]handler.Pinger{
		"postgres": func(ctx context.Context) error { return database.Ping(ctx, db) },
		"redis":    func(ctx context.Context) error { return cache.Ping(ctx, redisClient) },
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr,
		logger.WithClaims(middleware.Claims),
		logger.WithQuietPaths("/health", "/ready", "/metrics"),
	))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, middleware.Timeout(cfg.RequestTimeout))
	handler.RegisterRoutes(api, middleware.JWT(tokens), handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.Bool("cache", redisClient != nil),
			zap.Bool("settlements", cfg.Settlements.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
