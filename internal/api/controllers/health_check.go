package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthCheckResponse struct {
	Status           string            `json:"status"`
	Database         string            `json:"database"`
	ExternalServices map[string]string `json:"external_services"`
}

// HealthCheckHandler checks API health, the database and the rate-limit store.
// A nil redisClient means the in-memory limiter is in use.
func HealthCheckHandler(db *gorm.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthCheckResponse{
			Status:           "API is running",
			ExternalServices: make(map[string]string),
		}

		// Check database connection
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			response.Database = "Database connection failed"
			respondWithJSON(w, http.StatusInternalServerError, response)
			return
		}
		response.Database = "Database connection is healthy"

		code := http.StatusOK
		switch {
		case redisClient == nil:
			response.ExternalServices["Redis"] = "Disabled"
		case redisClient.Ping(ctx).Err() != nil:
			response.ExternalServices["Redis"] = "Unreachable"
			code = http.StatusServiceUnavailable
		default:
			response.ExternalServices["Redis"] = "Available"
		}

		respondWithJSON(w, code, response)
	}
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
