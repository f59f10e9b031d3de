package routing

import (
	"net/http"
	"time"

	"groupguard/internal/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Per-client request budget. Platform deliveries arrive from a small set of addresses,
// so the limit is generous.
const (
	rateLimit  = 600
	rateWindow = time.Minute
)

// Config holds the configuration needed for setting up routes
type Config struct {
	Webhook http.Handler
	Logger  zerolog.Logger

	// Ready reports whether the service can accept deliveries. Nil means always ready.
	Ready func() bool

	// TrustProxy honours X-Forwarded-For / X-Real-IP when resolving client addresses
	TrustProxy bool
}

// SetupRouter creates and configures the HTTP router with all routes and middleware
func SetupRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Platform webhook deliveries, authenticated by signature inside the handler
	mux.Handle("POST /callback", otelhttp.NewHandler(cfg.Webhook, "webhook"))

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil && !cfg.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	// Apply middleware in order (outermost first, innermost last)
	var handler http.Handler = mux

	// 1. Limit request body size (innermost - runs first on request)
	handler = middleware.LimitBodyMiddleware(handler)

	// 2. Apply rate limiting
	handler = middleware.RateLimitMiddleware(middleware.NewRateLimiter(rateLimit, rateWindow))(handler)

	// 3. Apply security headers
	handler = middleware.SecurityHeadersMiddleware(handler)

	// 4. Apply logging middleware
	handler = middleware.LoggingMiddleware(cfg.Logger)(handler)

	// 5. Resolve the client address (outermost - logging and rate limiting read it)
	handler = middleware.ClientIPMiddleware(cfg.TrustProxy)(handler)

	return handler
}
