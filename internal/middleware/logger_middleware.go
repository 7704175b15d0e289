package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"ai-chat-api/internal/logger"
	"ai-chat-api/internal/metrics"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// LoggingMiddleware logs the details of each request and response
func LoggingMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Create a response writer to capture the status code
			rw := &responseWriter{w, http.StatusOK}

			// Call the next handler
			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.ObserveHTTP(r.Method, route, rw.statusCode, time.Since(start))

			// Log request details
			logger.LogEvent(logrus.InfoLevel, "Request handled", logrus.Fields{
				"method":        r.Method,
				"url":           r.URL.Path,
				"status_code":   rw.statusCode,
				"response_time": time.Since(start).Milliseconds(),
				"ip":            r.RemoteAddr,
				"request_id":    chimw.GetReqID(r.Context()),
			})
		})
	}
}

// responseWriter is a wrapper around http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}
