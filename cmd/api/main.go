package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-chat-api/internal/api"
	"ai-chat-api/internal/config"
	"ai-chat-api/internal/database"
	"ai-chat-api/internal/logger"
	"ai-chat-api/internal/metrics"
	"ai-chat-api/internal/providers"
	"ai-chat-api/internal/ratelimit"
	"ai-chat-api/internal/repository"
	"ai-chat-api/internal/services"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.LogEvent(logrus.WarnLevel, "No .env file loaded", logrus.Fields{"error": err.Error()})
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatalf("Invalid configuration: %v", err)
	}

	logFile, err := logger.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		logger.Logger.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	// Initialize database connection
	db, err := database.InitDB(cfg.DatabaseURL)
	if err != nil {
		logger.Logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Shared rate limiter: Redis when configured, process memory otherwise
	var (
		redisClient *redis.Client
		limiter     ratelimit.Limiter
	)
	if cfg.Redis.Enabled() {
		redisClient, err = database.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimit)
	} else {
		logger.LogEvent(logrus.WarnLevel, "REDIS_HOST not set, using in-memory rate limiter", nil)
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit)
	}

	m := metrics.New()

	// Initialize AI providers
	clients, err := providers.NewClients(cfg.Providers)
	if err != nil {
		logger.Logger.Fatalf("Failed to initialize AI providers: %v", err)
	}
	gateway := providers.NewGateway(cfg.Providers, clients, m)
	for p, available := range gateway.Availability() {
		_, resolveErr := gateway.Resolve(p)
		logger.LogEvent(logrus.InfoLevel, "AI provider registered", logrus.Fields{
			"provider":   p,
			"available":  available,
			"configured": resolveErr == nil,
		})
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)

	// Initialize services
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	chatService := services.NewChatService(userRepo, chatRepo, gateway, services.NewQuotaPolicy(cfg), m)
	recaptcha := services.NewRecaptchaVerifier(cfg.RecaptchaSecret, cfg.RecaptchaEnabled)

	handler := api.SetupRoutes(api.Dependencies{
		Config:      cfg,
		DB:          db,
		Redis:       redisClient,
		AuthService: authService,
		ChatService: chatService,
		Recaptcha:   recaptcha,
		Catalog:     gateway,
		Limiter:     limiter,
		Metrics:     m,
	})

	// Create server with timeouts. No WriteTimeout: it would cut long-lived
	// WebSocket sessions.
	srv := &http.Server{
		Handler:           handler,
		Addr:              ":" + cfg.Port,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.LogEvent(logrus.InfoLevel, "Server starting", logrus.Fields{"port": cfg.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.LogEvent(logrus.InfoLevel, "Shutting down server", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.LogEvent(logrus.ErrorLevel, "Graceful shutdown failed", logrus.Fields{"error": err.Error()})
	}
}
