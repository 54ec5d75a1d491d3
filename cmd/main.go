package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/enquiry-service/internal/config"
	"github.com/tesseract-hub/enquiry-service/internal/database"
	"github.com/tesseract-hub/enquiry-service/internal/handlers"
	"github.com/tesseract-hub/enquiry-service/internal/middleware"
	enquiryNats "github.com/tesseract-hub/enquiry-service/internal/nats"
	"github.com/tesseract-hub/enquiry-service/internal/policy"
	"github.com/tesseract-hub/enquiry-service/internal/repository"
	"github.com/tesseract-hub/enquiry-service/internal/scheduler"
	"github.com/tesseract-hub/enquiry-service/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	db, err := database.Connect(context.Background(), cfg, logger, 10*time.Second)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	logger.Info("Database connected and migrated")
	store := database.NewStore(db, logger)

	redisClient := initRedis(cfg, logger)
	defer func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}()

	// NATS is optional; events are dropped when it is unavailable
	var natsClient *enquiryNats.Client
	var publisher services.EventPublisher
	if cfg.NATS.Enabled {
		natsClient, err = enquiryNats.NewClient(enquiryNats.Config{
			URL:           cfg.NATS.URL,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: time.Duration(cfg.NATS.ReconnectWait) * time.Second,
		}, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize NATS, domain events disabled")
			natsClient = nil
		} else {
			publisher = enquiryNats.NewPublisher(natsClient, logger)
			logger.Info("NATS client initialized for domain events")
		}
	} else {
		logger.Info("NATS disabled, domain events will not be published")
	}
	defer func() {
		if natsClient != nil {
			natsClient.Close()
		}
	}()

	auditFallback, fallbackCloser, err := services.NewAuditFallbackLogger(cfg.Audit.FallbackLogPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open audit fallback log")
	}
	defer fallbackCloser.Close()

	emailProvider, smsProvider := initProviders(cfg, logger)
	dispatcher := services.NewNotificationDispatcher(emailProvider, smsProvider, cfg.Notification, logger)
	ledger := services.NewNotificationLedger(repository.NewNotificationRepository(db), logger)
	notifier := services.NewNotifier(dispatcher, ledger)

	auditService := services.NewAuditService(store, policy.NewSanitizer(cfg.Audit.SecuritySalt), publisher, auditFallback, logger)
	identityService := services.NewIdentityService(store, auditService, notifier, logger)
	assigner := services.NewAgentAssigner(cfg.Enquiry.AutoAssignDefault, logger)
	enquiryService := services.NewEnquiryService(
		store,
		identityService,
		assigner,
		auditService,
		notifier,
		services.NewPasswordService(services.DefaultBcryptCost),
		publisher,
		cfg.TicketLocation(),
		logger,
	)
	tokenService := services.NewTokenService(cfg.JWT)

	retention := scheduler.NewRetentionScheduler(auditService, cfg.Audit, logger)
	if err := retention.Start(); err != nil {
		logger.WithError(err).Warn("Failed to start retention scheduler (continuing without scheduled sweeps)")
	}
	defer retention.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterDeps{
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Tokens:         tokenService,
		RateLimiter:    middleware.NewRateLimiter(redisClient, logger),
		SubmitRule: middleware.RateLimitRule{
			Scope:  "enquiry_submit",
			Limit:  cfg.Enquiry.SubmitRateLimit,
			Window: cfg.Enquiry.SubmitRateWindow,
		},
		Enquiries: handlers.NewEnquiryHandler(enquiryService, auditService, logger),
		Audit:     handlers.NewAuditHandler(auditService, logger),
		Accounts:  handlers.NewAccountHandler(identityService, logger),
		Health:    handlers.NewHealthHandler(db, redisClient, natsClient),
	})

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.WithField("address", srv.Addr).Info("Starting enquiry service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down enquiry service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("Enquiry service stopped")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	})
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if cfg.IsDevelopment() && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

// initRedis initializes the Redis client used by the rate limiter
func initRedis(cfg *config.Config, logger *logrus.Logger) *redis.Client {
	if cfg.Redis.URL == "" {
		logger.Warn("Redis URL not configured, rate limiting will use local memory only")
		return nil
	}

	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.WithError(err).Warn("Failed to parse Redis URL, rate limiting will use local memory only")
		return nil
	}
	opt.MaxRetries = cfg.Redis.MaxRetries
	opt.PoolSize = cfg.Redis.PoolSize
	opt.MinIdleConns = cfg.Redis.MinIdleConns

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Failed to connect to Redis, rate limiting will use local memory only")
		client.Close()
		return nil
	}

	logger.Info("Redis connection established")
	return client
}

// initProviders builds the email chain (SMTP then SendGrid) and the SMS transport,
// each behind a circuit breaker. Unconfigured channels are returned as nil.
func initProviders(cfg *config.Config, logger *logrus.Logger) (services.Provider, services.Provider) {
	var emailChain []services.Provider
	if cfg.SMTP.Host != "" {
		emailChain = append(emailChain, services.NewBreakerProvider(services.NewSMTPProvider(cfg.SMTP), logger))
	}
	if cfg.SendGrid.APIKey != "" {
		emailChain = append(emailChain, services.NewBreakerProvider(services.NewSendGridProvider(cfg.SendGrid), logger))
	}

	var email services.Provider
	switch len(emailChain) {
	case 0:
		logger.Warn("No email transport configured, email notifications disabled")
	case 1:
		email = emailChain[0]
	default:
		email = services.NewChannelFailover(services.ChannelEmail, emailChain, logger)
	}

	var sms services.Provider
	if cfg.MSG91.AuthKey != "" {
		sms = services.NewBreakerProvider(services.NewMSG91Provider(cfg.MSG91), logger)
	} else {
		logger.Warn("MSG91 not configured, SMS notifications disabled")
	}

	logger.WithFields(logrus.Fields{
		"email_providers": len(emailChain),
		"sms_enabled":     sms != nil,
	}).Info("Notification providers initialized")
	return email, sms
}
