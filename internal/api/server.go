package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/group03/phychat-backend/internal/config"
	"github.com/group03/phychat-backend/internal/health"
	"github.com/group03/phychat-backend/internal/metrics"
	"github.com/group03/phychat-backend/internal/models"
	"github.com/group03/phychat-backend/internal/storage"
)

// Recommender picks challenges and records attempt outcomes
type Recommender interface {
	Recommend(ctx context.Context, studentID string) *models.Recommendation
	RecordOutcome(ctx context.Context, outcome models.Outcome) *models.ProgressAck
	Progress(ctx context.Context, studentID string) models.ProgressSnapshot
	Challenges(ctx context.Context) []models.Challenge
}

// Tutor answers chat messages and explains predictions
type Tutor interface {
	Reply(message, code string, history []models.ChatMessage) (*models.TutorResponse, error)
	Explain(code, prediction string) *models.Explanation
}

// ReadinessReporter reports the latest dependency health
type ReadinessReporter interface {
	Ready() (bool, []health.Status)
}

// Dependencies are the collaborators the server routes requests to.
// History, Readiness and Metrics may be nil.
type Dependencies struct {
	Recommender Recommender
	Tutor       Tutor
	History     storage.HistoryStore
	Readiness   ReadinessReporter
	Metrics     *metrics.Metrics
}

// Server represents the HTTP API server
type Server struct {
	config         *config.Config
	router         *chi.Mux
	recommender    Recommender
	tutor          Tutor
	history        storage.HistoryStore
	readiness      ReadinessReporter
	metrics        *metrics.Metrics
	authMiddleware *AuthMiddleware
	chatLimiter    ratelimit.RateLimiter
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	s := &Server{
		config:         cfg,
		recommender:    deps.Recommender,
		tutor:          deps.Tutor,
		history:        deps.History,
		readiness:      deps.Readiness,
		metrics:        deps.Metrics,
		authMiddleware: NewAuthMiddleware(cfg.Auth.APIKeys),
		chatLimiter:    newChatLimiter(cfg.Limits.ChatPerSecond),
	}
	s.setupRouter()
	return s
}

// Close releases resources held by the server
func (s *Server) Close() error {
	if s.chatLimiter != nil {
		return s.chatLimiter.Close()
	}
	return nil
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	if s.config.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration for the web frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public endpoints
	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		// The websocket is long-lived and must not sit behind the request timeout
		r.Get("/chat/ws", s.handleChatWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/health", s.handleHealth)

			r.With(s.rateLimitChat).Post("/chat", s.handleChat)
			r.Post("/xai/explain", s.handleExplain)

			r.Post("/recommend", s.handleRecommend)
			r.Get("/recommend/{studentID}", s.handleRecommendFor)

			r.Post("/progress/update", s.handleProgressUpdate)
			r.Get("/students/{studentID}/progress", s.handleStudentProgress)

			r.Get("/challenges", s.handleListChallenges)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog and records request metrics
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			duration := time.Since(start)

			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", duration.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)

			s.metrics.ObserveHTTP(r.Method, routePattern(r), ww.Status(), duration.Seconds())
		}()

		next.ServeHTTP(ww, r)
	})
}

// routePattern returns the matched chi pattern so metric labels stay bounded
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
