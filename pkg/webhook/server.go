package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/harun/lineapi/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// HealthPath is the readiness route every Server mounts
const HealthPath = "/health"

// Processor turns one delivery into a response. *Dispatcher implements it.
type Processor interface {
	Process(ctx context.Context, body []byte, signature string) (WebhookResponse, error)
}

// StatsProvider is implemented by processors that keep counters.
// /health reports them when the processor has them.
type StatsProvider interface {
	Deliveries() DeliveryStats
	Stats() []KindStats
	StatsFor(kind string) *KindStats
}

// ValidateRoute checks that p can be registered as a plain ServeMux path:
// absolute, clean, and free of whitespace, wildcards, queries and fragments
func ValidateRoute(p string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("path must start with /, got %q", p)
	}
	if strings.ContainsAny(p, " \t\r\n{}?#") {
		return fmt.Errorf("path %q must not contain whitespace, braces, ? or #", p)
	}
	cleaned := path.Clean(p)
	if p != "/" && strings.HasSuffix(p, "/") {
		cleaned += "/"
	}
	if cleaned != p {
		return fmt.Errorf("path %q is not clean, use %q", p, cleaned)
	}
	return nil
}

// checkRoutes rejects routes that would collide on one ServeMux
func checkRoutes(options ServerOptions) error {
	if err := ValidateRoute(options.Path); err != nil {
		return fmt.Errorf("webhook %w", err)
	}
	if options.Path == HealthPath {
		return fmt.Errorf("webhook path %s is reserved for the health check", HealthPath)
	}
	if options.MetricsHandler == nil {
		return nil
	}
	if err := ValidateRoute(options.MetricsPath); err != nil {
		return fmt.Errorf("metrics %w", err)
	}
	if options.MetricsPath == HealthPath {
		return fmt.Errorf("metrics path %s is reserved for the health check", HealthPath)
	}
	if options.MetricsPath == options.Path {
		return fmt.Errorf("metrics path and webhook path are both %s", options.Path)
	}
	return nil
}

// Server is the webhook HTTP server
type Server struct {
	options        ServerOptions
	server         *http.Server
	processor      Processor
	rateLimiter    *RateLimiter
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new webhook server
func NewServer(options ServerOptions, processor Processor, logger zerolog.Logger) (*Server, error) {
	// Set defaults
	if options.Port == 0 {
		options.Port = 8000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.Path == "" {
		options.Path = "/webhook"
	}
	if options.RateLimitPerMinute == 0 {
		options.RateLimitPerMinute = 600
	}
	if options.MaxBodyBytes == 0 {
		options.MaxBodyBytes = 1 << 20
	}
	if options.ShutdownTimeout == 0 {
		options.ShutdownTimeout = 30 * time.Second
	}
	if options.MetricsPath == "" {
		options.MetricsPath = "/metrics"
	}

	if err := checkRoutes(options); err != nil {
		return nil, err
	}
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}

	s := &Server{
		options:     options,
		processor:   processor,
		rateLimiter: NewRateLimiter(options.RateLimitPerMinute),
		logger:      logger.With().Str("component", "webhook-server").Logger(),
		startTime:   time.Now(),
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", options.Host, options.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the server's routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc(HealthPath, s.handleHealth)

	if s.options.MetricsHandler != nil {
		mux.Handle(s.options.MetricsPath, s.options.MetricsHandler)
	}

	mux.HandleFunc(s.options.Path, s.handleWebhook)

	return mux
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Str("path", s.options.Path).
		Msg("Starting webhook server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start webhook server: %w", err)
	}

	return nil
}

// Stop gracefully stops the webhook server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down webhook server")

	// Wait for in-flight requests with timeout
	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(s.options.ShutdownTimeout):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown webhook server: %w", err)
	}

	s.logger.Info().Msg("Webhook server stopped")
	return nil
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.shutdownMu.RLock()
	shuttingDown := s.isShuttingDown
	s.shutdownMu.RUnlock()

	status := http.StatusOK
	response := map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"timestamp": time.Now().UnixMilli(),
	}
	if shuttingDown {
		status = http.StatusServiceUnavailable
		response["status"] = "shutting_down"
	}

	if stats, ok := s.processor.(StatsProvider); ok {
		response["deliveries"] = stats.Deliveries()
		if kind := r.URL.Query().Get("kind"); kind != "" {
			if ks := stats.StatsFor(kind); ks != nil {
				response["events"] = []KindStats{*ks}
			} else {
				response["events"] = []KindStats{}
			}
		} else {
			response["events"] = stats.Stats()
		}
	}

	writeJSON(w, status, response)
}

// handleWebhook handles webhook deliveries
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	// Add under the read lock so Stop cannot start waiting in between
	s.inFlightReqs.Add(1)
	s.shutdownMu.RUnlock()
	defer s.inFlightReqs.Done()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ip := s.getClientIP(r)

	if !s.rateLimiter.CheckLimit(ip) {
		retryAfter := s.rateLimiter.GetRetryAfter(ip)
		s.logger.Warn().
			Str("ip", ip).
			Int("retryAfter", retryAfter).
			Msg("Rate limit exceeded")

		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	// The signature covers the exact bytes received, so the body is never re-encoded
	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.options.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.Error().Err(err).Str("ip", ip).Msg("Failed to read request body")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	requestID, _ := gonanoid.New()
	ctx := tracing.WithRequestID(r.Context(), requestID)

	response, err := s.processor.Process(ctx, rawBody, r.Header.Get(SignatureHeader))
	status := HTTPStatus(err)

	logEvent := s.logger.Info()
	if err != nil {
		logEvent = s.logger.Warn().Err(err)
	}
	logEvent.
		Str("request_id", requestID).
		Str("ip", ip).
		Int("status", status).
		Int("processed", response.ProcessedEvents).
		Int64("duration", time.Since(startTime).Milliseconds()).
		Msg("Webhook delivery handled")

	w.Header().Set("X-Request-ID", requestID)
	writeJSON(w, status, response)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// getClientIP extracts the client IP from the request
func (s *Server) getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
