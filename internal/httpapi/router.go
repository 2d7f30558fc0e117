package httpapi

import (
	"net/http"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/middleware"
	"github.com/SARVESHVARADKAR123/marketchat/internal/observability"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	ServiceName       string
	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter mounts the chat socket at /ws and the history API under /api.
func NewRouter(ws http.Handler, history *HistoryHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(observability.MetricsMiddleware(cfg.ServiceName))
	r.Use(middleware.Recovery())

	r.Handle("/ws", ws)

	r.Group(func(p chi.Router) {
		if cfg.RateLimitRequests > 0 {
			p.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}
		p.Use(middleware.Authenticate(cfg.JWTSecret))

		p.Get("/api/messages", history.ListMessages)
	})

	return otelhttp.NewHandler(r, cfg.ServiceName)
}

// NewObservabilityRouter serves health probes and Prometheus metrics.
func NewObservabilityRouter(metrics http.Handler, ready ...observability.Pinger) http.Handler {
	r := chi.NewRouter()
	r.Get("/health/live", observability.HealthLiveHandler)
	r.Get("/health/ready", observability.HealthReadyHandler(ready...))
	r.Handle("/metrics", metrics)
	return r
}
