package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/blackmichael/esaver-notifier/internal/config"
	"github.com/blackmichael/esaver-notifier/internal/domain"
	"github.com/blackmichael/esaver-notifier/internal/metrics"
)

const (
	pathCombined  = "/api/combined-notifications"
	pathMonitor   = "/api/facebook-rate-monitor"
	pathScheduled = "/api/scheduled-notifications"
	pathSend      = "/api/send-notification"
)

// Server is the HTTP server exposing the notification endpoints.
type Server struct {
	cfg        *config.Config
	svc        *domain.NotificationService
	metrics    *metrics.Collector
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server
}

// NewServer creates a new HTTP server backed by the notification service.
// collector may be nil, in which case /metrics is not served.
func NewServer(cfg *config.Config, svc *domain.NotificationService, collector *metrics.Collector, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		metrics: collector,
		logger:  logger,
	}

	mux := http.NewServeMux()
	// Method checks happen inside the handlers so a wrong method gets the
	// JSON 405 body rather than the mux's plain-text one.
	mux.HandleFunc(pathCombined, s.handleCombined)
	mux.HandleFunc(pathMonitor, s.handleFeedMonitor)
	mux.HandleFunc(pathScheduled, s.handleScheduled)
	mux.HandleFunc(pathSend, s.handleSendNotification)
	mux.HandleFunc("GET /api", s.handleIndex)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	if collector != nil {
		mux.Handle("GET /metrics", collector.Handler())
	}

	s.handler = withRequestID(withLogging(logger, collector, withRecovery(logger, mux)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped router, for embedding in other hosts.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "E-Saver API is running",
		"endpoints": map[string]string{
			"POST " + pathCombined:  "Send combined scheduled notifications and rate monitoring",
			"GET " + pathMonitor:    "Monitor the feed for electricity rate updates",
			"POST " + pathSend:      "Send a custom notification",
			"POST " + pathScheduled: "Send a scheduled notification",
		},
	})
}

type typeRequest struct {
	Type string `json:"type"`
}

func (s *Server) handleCombined(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost, "Method not allowed") {
		return
	}

	var req typeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.svc.RunCombined(r.Context(), req.Type)
	if err != nil {
		s.writeServiceError(w, "combined notifications", err)
		return
	}

	status := http.StatusOK
	if !result.Success() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, combinedResponse{
		Success: result.Success(),
		Message: fmt.Sprintf("Combined %s notifications processed", req.Type),
		Results: toCombinedResults(result),
	})
}

func (s *Server) handleFeedMonitor(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, "Method not allowed. Use GET to trigger monitoring.") {
		return
	}

	if !s.svc.FeedEnabled() {
		writeJSON(w, http.StatusOK, monitorResponse{
			Success:        true,
			Enabled:        false,
			Message:        "Feed monitoring is disabled: feed credentials are not configured.",
			monitorSummary: &monitorSummary{Updates: []rateUpdateJSON{}},
		})
		return
	}

	report, err := s.svc.MonitorFeed(r.Context())
	if err != nil {
		s.writeServiceError(w, "feed rate monitoring", err)
		return
	}

	resp := monitorResponse{
		Success:        !report.Failed(),
		Enabled:        true,
		Message:        fmt.Sprintf("Monitoring complete. Found %d rate updates.", report.RateUpdatesFound),
		monitorSummary: toMonitorSummary(report),
	}
	status := http.StatusOK
	if report.Failed() {
		status = http.StatusInternalServerError
		resp.Error = fmt.Sprintf("Failed to send %d of %d rate update notifications", report.NotificationsFailed, report.RateUpdatesFound)
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleScheduled(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost, "Method not allowed") {
		return
	}

	var req typeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.svc.SendScheduled(r.Context(), req.Type)
	if err != nil {
		s.writeServiceError(w, "scheduled notification", err)
		return
	}

	if !result.Outcome.Success {
		writeJSON(w, http.StatusInternalServerError, failureResponse{
			Error:   fmt.Sprintf("Failed to send %s notification", req.Type),
			Details: result.Outcome.Error,
		})
		return
	}

	writeJSON(w, http.StatusOK, dispatchResponse{
		Success:    true,
		Message:    fmt.Sprintf("Scheduled %s notification sent successfully", req.Type),
		ResponseID: result.Outcome.ID,
		Type:       req.Type,
	})
}

func (s *Server) handleSendNotification(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost, "Method not allowed") {
		return
	}

	var req domain.CustomNotification
	if !decodeBody(w, r, &req) {
		return
	}

	outcome, err := s.svc.SendCustom(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, "send notification", err)
		return
	}

	if !outcome.Success {
		writeJSON(w, http.StatusInternalServerError, failureResponse{
			Error:   "Failed to send notification",
			Details: outcome.Error,
		})
		return
	}

	writeJSON(w, http.StatusOK, dispatchResponse{
		Success:    true,
		Message:    "Notification sent successfully",
		ResponseID: outcome.ID,
	})
}

// writeServiceError maps service errors onto 400 for unknown type selectors
// and 500 for everything else.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	var typeErr *domain.UnknownTypeError
	if errors.As(err, &typeErr) {
		s.logger.Warn("unknown notification type", "op", op, "type", typeErr.Type)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":          typeErr.Error(),
			"availableTypes": typeErr.Available,
		})
		return
	}

	s.logger.Error("request failed", "op", op, "error", err)
	writeJSON(w, http.StatusInternalServerError, failureResponse{
		Error:   "Internal server error",
		Details: err.Error(),
	})
}

func allowMethod(w http.ResponseWriter, r *http.Request, method, message string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": message})
	return false
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":   "Invalid JSON body",
		"details": err.Error(),
	})
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
