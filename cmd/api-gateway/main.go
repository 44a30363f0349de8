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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/docspace-session-api/api/swagger"
	"github.com/noah-isme/docspace-session-api/internal/cookie"
	"github.com/noah-isme/docspace-session-api/internal/handler"
	internalmiddleware "github.com/noah-isme/docspace-session-api/internal/middleware"
	"github.com/noah-isme/docspace-session-api/internal/migrations"
	"github.com/noah-isme/docspace-session-api/internal/models"
	"github.com/noah-isme/docspace-session-api/internal/repository"
	"github.com/noah-isme/docspace-session-api/internal/scheduler"
	"github.com/noah-isme/docspace-session-api/internal/service"
	"github.com/noah-isme/docspace-session-api/pkg/cache"
	"github.com/noah-isme/docspace-session-api/pkg/config"
	"github.com/noah-isme/docspace-session-api/pkg/database"
	"github.com/noah-isme/docspace-session-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/docspace-session-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/docspace-session-api/pkg/middleware/requestid"
)

// @title Docspace Session API
// @version 0.1.0
// @description Cookie based dual-token sessions
// @BasePath /
// @schemes http https

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
		if cfg.Session.TokenSecret == "dev_session_secret" {
			logr.Fatal("SESSION_TOKEN_SECRET must be set in production")
		}
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, db, migrations.Migrations); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, cleanup will run without a distributed lock", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db, metricsSvc)
	accessRepo := repository.NewTokenRepository(db, models.TokenKindAccess, metricsSvc)
	refreshRepo := repository.NewTokenRepository(db, models.TokenKindRefresh, metricsSvc)
	auditRepo := repository.NewAuditRepository(db)

	issuer := service.NewTokenIssuer(accessRepo, refreshRepo, service.TokenConfig{
		Secret:     cfg.Session.TokenSecret,
		Issuer:     cfg.Session.Issuer,
		AccessTTL:  cfg.Session.AccessTTL,
		RefreshTTL: cfg.Session.RefreshTTL,
	}, logr)
	sessionSvc := service.NewSessionService(
		userRepo,
		accessRepo,
		refreshRepo,
		issuer,
		service.NewPasswordVerifier(userRepo),
		auditRepo,
		validator.New(),
		metricsSvc,
		logr,
		service.SessionConfig{RotationWindow: cfg.Session.RotationWindow, StoreTimeout: cfg.Session.StoreTimeout},
	)
	revocationSvc := service.NewRevocationService(accessRepo, refreshRepo, logr, cfg.Session.StoreTimeout)
	accountSvc := service.NewAccountService(userRepo, revocationSvc, logr, cfg.Session.StoreTimeout)
	cleanupSvc := service.NewCleanupService(userRepo, accessRepo, refreshRepo, cfg.Cleanup.Retention, metricsSvc, logr)

	transport := cookie.NewTransport(cfg.Cookie)

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(internalmiddleware.Metrics(metricsSvc, cfg.LoginPath(), cfg.RefreshPath()))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.AuthenticationFilter(cfg.LoginPath(), sessionSvc, transport, logr))
	r.Use(internalmiddleware.ReissueFilter(cfg.RefreshPath(), sessionSvc, transport, logr))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(sessionSvc, revocationSvc, transport)
	accountHandler := handler.NewAccountHandler(accountSvc, transport)

	api := r.Group(cfg.APIPrefix)
	secured := api.Group("")
	secured.Use(internalmiddleware.RequireSession(sessionSvc, transport))
	{
		secured.POST("/auth/logout", internalmiddleware.Audit(auditRepo, models.AuditActionLogout, "session", logr), authHandler.Logout)
		secured.POST("/auth/logout-all", internalmiddleware.Audit(auditRepo, models.AuditActionLogoutAll, "session", logr), authHandler.LogoutAll)
		secured.GET("/auth/me", authHandler.Me)
		secured.GET("/auth/sessions", authHandler.Sessions)
		secured.POST("/account/deactivate", internalmiddleware.Audit(auditRepo, models.AuditActionAccountDisable, "account", logr), accountHandler.Deactivate)
		secured.DELETE("/account", internalmiddleware.Audit(auditRepo, models.AuditActionAccountDelete, "account", logr), accountHandler.Delete)
	}

	var cleanupScheduler *scheduler.CleanupScheduler
	if cfg.Cleanup.Enabled {
		cleanupScheduler, err = scheduler.NewCleanupScheduler(cfg.Cleanup, cleanupSvc, cache.NewLocker(redisClient), logr)
		if err != nil {
			logr.Fatal("failed to configure cleanup scheduler", zap.Error(err))
		}
		cleanupScheduler.Start(ctx)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if cleanupScheduler != nil {
		cleanupScheduler.Stop(shutdownCtx)
	}
}
