package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/blackmichael/esaver-notifier/internal/metrics"
)

const requestIDHeader = "X-Request-Id"

// knownEndpoints bounds the endpoint label cardinality of request metrics.
var knownEndpoints = map[string]bool{
	"/":           true,
	"/api":        true,
	"/health":     true,
	"/metrics":    true,
	pathCombined:  true,
	pathMonitor:   true,
	pathScheduled: true,
	pathSend:      true,
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func withLogging(logger *slog.Logger, collector *metrics.Collector, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		elapsed := time.Since(start)

		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", elapsed,
			"request_id", r.Header.Get(requestIDHeader),
		)

		if collector != nil {
			endpoint := r.URL.Path
			if !knownEndpoints[endpoint] {
				endpoint = "other"
			}
			collector.ObserveHTTP(r.Method, endpoint, wrapped.status, elapsed)
		}
	})
}

// withRecovery turns a panic in a handler into the standard 500 body.
func withRecovery(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.Error("panic while handling request", "path", r.URL.Path, "panic", rec)
			writeJSON(w, http.StatusInternalServerError, failureResponse{
				Error:   "Internal server error",
				Details: fmt.Sprint(rec),
			})
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
