package middleware

import (
	"net/http"
	"strings"

	"ai-chat-api/internal/logger"
	"ai-chat-api/internal/services"

	"github.com/sirupsen/logrus"
)

func AuthMiddleware(authService services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ExtractBearerToken(r)
			if tokenString == "" {
				writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			user, err := authService.VerifyToken(r.Context(), tokenString)
			if err != nil {
				logger.LogEvent(logrus.DebugLevel, "Token rejected", logrus.Fields{"error": err.Error()})
				writeJSONError(w, http.StatusUnauthorized, services.ErrInvalidToken.Error())
				return
			}

			ctx := services.WithUserContext(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractBearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "".
func ExtractBearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}
