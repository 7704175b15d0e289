package api

import (
	"net/http"

	"ai-chat-api/internal/api/controllers"
	"ai-chat-api/internal/api/handlers"
	"ai-chat-api/internal/config"
	"ai-chat-api/internal/metrics"
	"ai-chat-api/internal/middleware"
	"ai-chat-api/internal/ratelimit"
	"ai-chat-api/internal/services"
	"ai-chat-api/internal/session"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"gorm.io/gorm"
)

// Dependencies is everything the HTTP surface needs, built once in main.
type Dependencies struct {
	Config      *config.Config
	DB          *gorm.DB
	Redis       *redis.Client
	AuthService services.AuthService
	ChatService services.ChatService
	Recaptcha   services.RecaptchaVerifier
	Catalog     handlers.ProviderCatalog
	Limiter     ratelimit.Limiter
	Metrics     *metrics.Metrics
}

func SetupRoutes(deps Dependencies) http.Handler {
	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.Recaptcha)
	chatHandler := handlers.NewChatHandler(deps.ChatService, deps.Catalog)
	wsHandler := handlers.NewWSHandler(session.Deps{
		Auth:    deps.AuthService,
		Chat:    deps.ChatService,
		Limiter: deps.Limiter,
		Metrics: deps.Metrics,
	}, deps.Config.CORSOrigins)
	rateLimiter := middleware.NewRateLimiter(deps.Limiter, deps.Metrics)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(deps.Metrics))

	// Public routes
	router.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	router.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	router.HandleFunc("/health", controllers.HealthCheckHandler(deps.DB, deps.Redis)).Methods("GET")
	router.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	router.HandleFunc("/ai/platforms", chatHandler.Platforms).Methods("GET")
	router.HandleFunc("/ai/provider-availability", chatHandler.ProviderAvailability).Methods("GET")

	// The session authenticates from its own handshake token.
	router.Handle("/ai/ws/chat", wsHandler).Methods("GET")

	// Authenticated routes
	requireAuth := middleware.AuthMiddleware(deps.AuthService)
	router.Handle("/auth/me", requireAuth(http.HandlerFunc(authHandler.Me))).Methods("GET")
	router.Handle("/ai/chat-history", requireAuth(http.HandlerFunc(chatHandler.History))).Methods("GET")
	router.Handle("/ai/chat", requireAuth(rateLimiter.RateLimit(http.HandlerFunc(chatHandler.Chat)))).Methods("POST")

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: deps.Config.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
		},
		ExposedHeaders: []string{
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	var handler http.Handler = corsMiddleware.Handler(router)
	handler = chimw.Recoverer(handler)
	handler = chimw.RealIP(handler)
	handler = chimw.RequestID(handler)
	return handler
}
