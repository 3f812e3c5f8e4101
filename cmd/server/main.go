package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"edugame/internal/cache"
	"edugame/internal/config"
	"edugame/internal/database"
	"edugame/internal/events"
	"edugame/internal/gamestate"
	"edugame/internal/handlers"
	"edugame/internal/jobs"
	"edugame/internal/kvstore"
	"edugame/internal/logger"
	"edugame/internal/metrics"
	"edugame/internal/models"
	"edugame/internal/realtime"
	"edugame/internal/repository"
	"edugame/internal/security"
	"edugame/internal/service"
	"edugame/migrations"
)

func main() {
	cfg := config.Load()
	log := logger.New("edugame-api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()
	log.WithField("type", cfg.DatabaseType).Info("database connection established")

	applied, err := db.RunMigrations(ctx, migrations.FS)
	if err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}
	log.WithField("applied", applied).Info("migrations completed")

	// Redis backs game sessions, the key-value store and the job queue when configured
	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		redisClient, err = cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		defer redisClient.Close()
		log.WithField("addr", cfg.RedisAddr).Info("redis connection established")
	}

	cipher, err := kvstore.NewCipher(cfg.StorageSecret)
	if err != nil {
		log.WithError(err).Fatal("failed to create storage cipher")
	}

	var sessions gamestate.Store
	var kv kvstore.Store
	if redisClient != nil {
		sessions = gamestate.NewRedisStore(redisClient, cfg.GameSessionTTL)
	} else {
		ms := gamestate.NewMemoryStore(cfg.GameSessionTTL)
		go ms.RunJanitor(ctx, time.Minute)
		sessions = ms
	}
	switch {
	case cfg.KVBackend == "redis" && redisClient != nil:
		kv = kvstore.NewRedisStore(redisClient, cipher)
	case cfg.KVBackend == "redis":
		log.Warn("KV_BACKEND=redis but REDIS_ADDR is empty, using the database")
		kv = kvstore.NewSQLStore(db, cipher)
	default:
		kv = kvstore.NewSQLStore(db, cipher)
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	levelRepo := repository.NewLevelRepository(db)
	resultRepo := repository.NewResultRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	if cfg.SeedDemoData {
		seeder := service.NewSeeder(userRepo, questionRepo, levelRepo, resultRepo, feedbackRepo, log)
		seeded, err := seeder.SeedDemoData(ctx)
		if err != nil {
			log.WithError(err).Fatal("failed to seed demo data")
		}
		log.WithField("seeded", seeded).Info("demo data check complete")
	}

	// Email goes through the job queue when Redis is available
	fromEmail := cfg.SESFromEmail
	if cfg.EmailDebug {
		log.Warn("EMAIL_DEBUG is set: emails are logged and not sent")
		fromEmail = ""
	}
	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, fromEmail, cfg.SESFromName, cfg.AppBaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize email service")
	}

	var mailer jobs.Mailer = emailService
	if redisClient != nil {
		jobManager := jobs.NewManager(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		jobManager.RegisterHandlers(emailService)
		go func() {
			if err := jobManager.Start(); err != nil {
				log.WithError(err).Error("job queue worker stopped")
			}
		}()
		defer jobManager.Stop()
		mailer = jobManager
	}

	// Services
	m := metrics.New()
	analyticsService := service.NewAnalyticsService(resultRepo)
	hub := realtime.NewHub(func(ctx context.Context, subject models.Subject, grade int) ([]models.LeaderboardEntry, error) {
		return analyticsService.GetLeaderboard(ctx, subject, grade, 0)
	}, log)
	go hub.Run(ctx)

	publisher := events.Multi{hub}
	if cfg.RabbitMQURL != "" {
		rabbit, err := events.NewRabbitMQPublisher(cfg.RabbitMQURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to rabbitmq")
		}
		defer rabbit.Close()
		publisher = append(publisher, rabbit)
		log.Info("publishing domain events to rabbitmq")
	}

	tokens := security.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(userRepo, tokens, mailer, log)
	authService.SetOAuthTeacherDomains(cfg.OAuthTeacherDomains)
	questionService := service.NewQuestionService(questionRepo)
	levelService := service.NewLevelService(levelRepo, questionRepo)
	gameService := service.NewGameService(levelRepo, questionRepo, resultRepo, sessions, publisher, m, log)
	feedbackService := service.NewFeedbackService(feedbackRepo, publisher, m, log)
	settingsService := service.NewSettingsService(kv, log)
	backupService := service.NewBackupService(db, log)

	limiter := security.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
	defer limiter.Stop()

	router := &handlers.Router{
		Middleware: handlers.NewMiddleware(authService, limiter),
		Metrics:    m,
		DB:         db,
		Log:        log,
		Auth:       handlers.NewAuthHandler(authService),
		OAuth: handlers.NewOAuthFlow(authService, kv, cfg.OAuthRedirectBaseURL,
			handlers.GoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret),
			handlers.FacebookProvider(cfg.FacebookClientID, cfg.FacebookClientSecret),
		),
		Questions: handlers.NewQuestionHandler(questionService),
		Levels:    handlers.NewLevelHandler(levelService),
		Games:     handlers.NewGameHandler(gameService),
		Analytics: handlers.NewAnalyticsHandler(analyticsService, hub),
		Feedback:  handlers.NewFeedbackHandler(feedbackService),
		Settings:  handlers.NewSettingsHandler(settingsService),
		Admin:     handlers.NewAdminHandler(backupService, userRepo),
	}

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go cleanupExpiredTokens(ctx, authService, log)

	go func() {
		log.WithField("addr", addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// cleanupExpiredTokens periodically removes expired refresh and reset tokens
func cleanupExpiredTokens(ctx context.Context, authService *service.AuthService, log logrus.FieldLogger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := authService.CleanupExpired(ctx)
			if err != nil {
				log.WithError(err).Error("failed to clean up expired tokens")
				continue
			}
			if removed > 0 {
				log.WithField("removed", removed).Info("cleaned up expired tokens")
			}
		}
	}
}
