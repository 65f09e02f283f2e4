// Package api exposes the analysis engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/khanhnv2901/certscope/internal/analysis"
	"github.com/khanhnv2901/certscope/internal/api/middleware"
	"github.com/khanhnv2901/certscope/internal/domain/report"
	apperrors "github.com/khanhnv2901/certscope/internal/shared/errors"
)

// Analyzer runs one analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*report.AnalysisResult, error)
}

type JobService interface {
	StartJob(ctx context.Context, req JobRequest) (*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]Job, error)
	Subscribe() (chan Job, func())
}

type Config struct {
	Analyzer    Analyzer
	Jobs        JobService
	Metrics     http.Handler // Prometheus exposition (nil = not mounted)
	Logger      *zap.Logger
	Version     string
	CORSOrigins []string // Allowed CORS origins (empty = allow all)
	RateLimit   int      // Requests per second per IP (0 = disabled)
	RateBurst   int      // Burst size for rate limiter
}

type Server struct {
	cfg       Config
	router    chi.Router
	limiters  *rateLimiterMap
	startedAt time.Time
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	srv := &Server{
		cfg:       cfg,
		router:    chi.NewRouter(),
		limiters:  newRateLimiterMap(),
		startedAt: time.Now(),
	}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases background resources.
func (s *Server) Close() {
	s.limiters.close()
}

func (s *Server) routes() {
	r := s.router
	// RequestID -> request logger -> access log -> rate limit -> CORS -> handler
	r.Use(middleware.RequestID, middleware.WithLogger(s.cfg.Logger), s.withLogging, s.withRateLimit, s.withCORS)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/analyze/{domain}", s.handleAnalyze)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/analyze/{domain}", s.handleAnalyze)
		r.Get("/jobs", s.handleListJobs)
		r.Post("/jobs", s.handleStartJob)
		r.Get("/jobs/{id}", s.handleJobByID)
		r.Get("/jobs-stream", s.handleJobStream)
	})

	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics)
	}

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.methodNotAllowed)
}

var endpoints = map[string]string{
	"GET /":                       "API information",
	"GET /health":                 "API health status",
	"GET /analyze/:domain":        "Comprehensive SSL and certificate transparency analysis",
	"GET /api/v1/analyze/:domain": "Versioned alias of /analyze/:domain",
	"POST /api/v1/jobs":           "Start a background analysis",
	"GET /api/v1/jobs":            "List background analyses",
	"GET /api/v1/jobs/:id":        "Get one background analysis",
	"GET /api/v1/jobs-stream":     "Server-sent events of background analysis updates",
	"GET /metrics":                "Prometheus metrics",
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "certscope",
		"version":     s.cfg.Version,
		"description": "TLS configuration grading and certificate transparency analysis",
		"endpoints":   endpoints,
		"features": []string{
			"SSL Labs grading with vulnerability detection",
			"Certificate transparency log search",
			"Subdomain discovery from logged certificates",
			"Consolidated security summary and recommendations",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	uptime := time.Since(s.startedAt)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime": map[string]any{
			"seconds":   int64(uptime.Seconds()),
			"formatted": formatUptime(uptime),
		},
		"memory": map[string]string{
			"used":  fmt.Sprintf("%dMB", mem.HeapAlloc/1024/1024),
			"total": fmt.Sprintf("%dMB", mem.HeapSys/1024/1024),
		},
		"goVersion":  runtime.Version(),
		"platform":   runtime.GOOS,
		"goroutines": runtime.NumGoroutine(),
	})
}

func formatUptime(d time.Duration) string {
	secs := int64(d.Seconds())
	return fmt.Sprintf("%dh %dm %ds", secs/3600, (secs%3600)/60, secs%60)
}

// analysisFailure is the body of a request-level analysis failure.
type analysisFailure struct {
	Success      bool      `json:"success"`
	Error        string    `json:"error"`
	Message      string    `json:"message,omitempty"`
	Domain       string    `json:"domain"`
	Timestamp    time.Time `json:"timestamp"`
	AnalysisTime string    `json:"analysisTime,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	logger := middleware.Logger(r.Context())
	start := time.Now()

	res, err := s.cfg.Analyzer.Analyze(r.Context(), analysis.Request{
		Domain:    domain,
		RequestID: middleware.GetRequestID(r.Context()),
		Logger:    logger,
	})
	if err == nil {
		writeJSON(w, http.StatusOK, res)
		return
	}

	failure := analysisFailure{Domain: domain, Timestamp: time.Now().UTC()}
	switch {
	case errors.Is(err, apperrors.ErrMissingDomain):
		failure.Error = "Domain parameter is required"
		writeJSON(w, http.StatusBadRequest, failure)
	case errors.Is(err, apperrors.ErrValidation):
		failure.Error = "Invalid domain format"
		failure.Message = "Please provide a valid domain name (e.g., example.com)"
		writeJSON(w, http.StatusBadRequest, failure)
	case errors.Is(err, apperrors.ErrOrchestratorTimeout), errors.Is(err, context.DeadlineExceeded):
		failure.Error = "Analysis timeout - request took too long"
		writeJSON(w, http.StatusRequestTimeout, failure)
	default:
		logger.Error("analysis failed", zap.Error(err))
		failure.Error = "Analysis failed"
		failure.AnalysisTime = fmt.Sprintf("%.2fs", time.Since(start).Seconds())
		writeJSON(w, http.StatusInternalServerError, failure)
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	limit := 25
	if q := r.URL.Query().Get("limit"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	jobs, err := s.cfg.Jobs.ListJobs(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1048576) // 1MB limit
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	job, err := s.cfg.Jobs.StartJob(r.Context(), req)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			s.writeError(w, r, http.StatusBadRequest, errors.New("Invalid domain format"))
			return
		}
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	job, err := s.cfg.Jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil || job == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, unsubscribe := s.cfg.Jobs.Subscribe()
	defer unsubscribe()
	ctx := r.Context()
	for {
		select {
		case job, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(job)
			if err != nil {
				middleware.Logger(ctx).Error("failed to marshal job", zap.Error(err))
				continue
			}
			if !s.writeStreamChunk(w, []byte("event: job\n")) {
				return
			}
			if !s.writeStreamChunk(w, []byte("data: ")) {
				return
			}
			if !s.writeStreamChunk(w, payload) {
				return
			}
			if !s.writeStreamChunk(w, []byte("\n\n")) {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"success":            false,
		"error":              "Endpoint not found",
		"message":            fmt.Sprintf("%s %s is not a valid endpoint", r.Method, r.URL.Path),
		"availableEndpoints": []string{"GET /analyze/:domain", "GET /health", "GET /api/v1/jobs"},
		"timestamp":          time.Now().UTC(),
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := clientIP(r)
		limiter := s.limiters.getLimiter(clientIP, s.cfg.RateLimit, s.cfg.RateBurst)
		if !limiter.Allow() {
			middleware.Logger(r.Context()).Warn("rate_limit_exceeded", zap.String("client_ip", clientIP))
			s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop and strips the port.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := "*"
		if len(s.cfg.CORSOrigins) > 0 {
			allowOrigin = ""
			for _, allowed := range s.cfg.CORSOrigins {
				if allowed == origin {
					allowOrigin = origin
					break
				}
			}
		}

		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")
			if allowOrigin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		middleware.Logger(r.Context()).Info("http_request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int64("bytes", lrw.bytesWritten),
		)
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code and bytes written
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

// Flush keeps the event stream working behind the access log wrapper.
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	// Sanitize error messages to prevent information disclosure
	msg := err.Error()

	// For 5xx errors, return generic message and log details server-side
	if status >= 500 {
		middleware.Logger(r.Context()).Error("internal_server_error",
			zap.Error(err),
			zap.Int("status", status),
		)
		msg = "Internal server error"
	}

	writeJSON(w, status, errorResponse{Error: msg, Timestamp: time.Now().UTC()})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (s *Server) writeStreamChunk(w http.ResponseWriter, data []byte) bool {
	if _, err := w.Write(data); err != nil {
		s.cfg.Logger.Error("failed to write stream chunk", zap.Error(err))
		return false
	}
	return true
}

// rateLimiterMap manages per-IP rate limiters with automatic cleanup
type rateLimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	stop     chan struct{}
	once     sync.Once
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiterMap() *rateLimiterMap {
	m := &rateLimiterMap{
		limiters: make(map[string]*ipLimiter),
		stop:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func (m *rateLimiterMap) getLimiter(ip string, rps, burst int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	limiter, exists := m.limiters[ip]
	if !exists {
		if burst <= 0 {
			burst = rps
		}
		limiter = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		m.limiters[ip] = limiter
	}
	limiter.lastSeen = time.Now()
	return limiter.limiter
}

// cleanupLoop removes limiters that haven't been used in 5 minutes
func (m *rateLimiterMap) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			for ip, limiter := range m.limiters {
				if time.Since(limiter.lastSeen) > 5*time.Minute {
					delete(m.limiters, ip)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *rateLimiterMap) close() {
	m.once.Do(func() { close(m.stop) })
}
