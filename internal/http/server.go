package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"subtracker/internal/cache"
	"subtracker/internal/core"
	applog "subtracker/internal/log"
	"subtracker/internal/middleware/ratelimit"
	"subtracker/internal/middleware/security"
	"subtracker/internal/middleware/trace"
	"subtracker/internal/services"
)

// Server is the JSON API consumed by the web frontend. Every /api/v1 route
// is scoped to the user named by the X-User-ID header; authentication itself
// happens upstream.
type Server struct {
	http.Server
	svc      *services.SubscriptionService
	detector *security.Detector
	limiter  *ratelimit.Limiter

	// Analytics and stats responses are cached per user and dropped on any
	// write for that user.
	analyticsCache *cache.LRUCache[core.AggregationResult]
	statsCache     *cache.LRUCache[core.StatsResult]
	cacheManager   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *services.SubscriptionService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		svc:            svc,
		detector:       security.NewDetector(),
		limiter:        ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		analyticsCache: cache.NewLRUCache[core.AggregationResult](256, 5*time.Minute),
		statsCache:     cache.NewLRUCache[core.StatsResult](256, 5*time.Minute),
		cacheManager:   cache.NewManager(),
	}
	s.cacheManager.Register(s.analyticsCache)
	s.cacheManager.Register(s.statsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/v1/subscriptions", s.handleListSubscriptions)
	mux.HandleFunc("POST /api/v1/subscriptions", s.handleCreateSubscription)
	mux.HandleFunc("GET /api/v1/subscriptions/analytics", s.handleAnalytics)
	mux.HandleFunc("GET /api/v1/subscriptions/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/subscriptions/{id}", s.handleGetSubscription)
	mux.HandleFunc("PUT /api/v1/subscriptions/{id}", s.handleUpdateSubscription)
	mux.HandleFunc("DELETE /api/v1/subscriptions/{id}", s.handleDeleteSubscription)

	mux.HandleFunc("GET /api/v1/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/v1/categories", s.handleCreateCategory)
	mux.HandleFunc("DELETE /api/v1/categories/{name}", s.handleDeleteCategory)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP)

	logCfg := applog.DefaultConfig()
	logCfg.Component = applog.ComponentHTTP
	httpLogger := applog.New(logCfg)

	var handler http.Handler = mux
	handler = applog.Middleware(httpLogger)(handler)
	handler = s.writeRateLimit(handler)
	handler = headers.Middleware(handler)
	handler = tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s
}

// writeRateLimit applies the per-client limiter to mutating methods only;
// read traffic from the frontend is chatty and stays unthrottled.
func (s *Server) writeRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			if !s.limiter.Allow(s.detector.ExtractClientIP(r)) {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the server and its background cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateUser drops every cached view of the user after a write.
func (s *Server) invalidateUser(userID string) {
	s.analyticsCache.DeletePrefix(userID + "|")
	s.statsCache.Delete(userID)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
