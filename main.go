package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"event-platform/clock"
	"event-platform/config"
	"event-platform/handlers"
	"event-platform/middleware"
	"event-platform/models"
	"event-platform/services"
	"event-platform/utils"
	"event-platform/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/logger"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	defer logger.Init("event-platform", cfg.LogVerbose, false, io.Discard).Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Event{},
		&models.Round{},
		&models.Registration{},
		&models.RoundOutcome{},
		&models.Certificate{},
		&models.Participant{},
		&models.DomainEvent{},
	); err != nil {
		logger.Fatalf("failed to migrate database: %v", err)
	}

	clk := clock.NewSystem()
	roundService := services.NewRoundService(db, clk)
	certificateService := services.NewCertificateService(db, clk, cfg.PublicBaseURL)
	ledgerService := services.NewLedgerService(db, clk, roundService, certificateService)
	eventService := services.NewEventService(db, clk)
	participantService := services.NewParticipantService(db)

	sweep, err := roundService.StartAdvanceSweep(cfg.AdvanceSweepInterval)
	if err != nil {
		logger.Fatalf("failed to start scheduler: %v", err)
	}
	defer func() { _ = sweep.Shutdown() }()

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		var manifests workers.ManifestStore
		if cfg.R2.Enabled() {
			store, err := utils.NewR2Store(ctx, cfg.R2)
			if err != nil {
				logger.Fatalf("failed to initialize R2 client: %v", err)
			}
			manifests = store
		} else {
			logger.Warning("R2 not configured, certificate manifests will not be uploaded")
		}
		go workers.NewOutboxRelay(db, rdb, manifests, cfg.OutboxPollInterval).Run(ctx)
	} else {
		logger.Warning("REDIS_ADDR not set, domain events stay in the outbox")
	}

	if cfg.ProfileSyncURL != "" {
		syncWorker := workers.NewParticipantSyncWorker(db, utils.HTTPClient, cfg.ProfileSyncURL, cfg.GatewayToken, cfg.ProfileSyncInterval)
		go syncWorker.Run(ctx)
	} else {
		logger.Warning("PROFILE_SYNC_URL not set, participant snapshots will not be refreshed")
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	// 🔐 Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	verifyLimiter := middleware.NewRateLimiter(ctx, middleware.LimiterConfig{
		RPS:   cfg.VerifyRPS,
		Burst: cfg.VerifyBurst,
	})

	handlers.SetupHealthRoutes(app, db)
	handlers.SetupEventRoutes(app, &handlers.EventHandler{
		Events:       eventService,
		Ledger:       ledgerService,
		Rounds:       roundService,
		Certificates: certificateService,
	})
	handlers.SetupCertificateRoutes(app, &handlers.CertificateHandler{
		Certificates: certificateService,
		VerifyLimit:  verifyLimiter.Middleware(),
	})
	handlers.SetupParticipantRoutes(app, participantService)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Errorf("Server error: %v", err)
		}
	}()
	logger.Infof("Server running on :%s", cfg.Port)
	logger.Infof("CORS configured for origins: %v", cfg.AllowedOrigins)

	<-ctx.Done()
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
