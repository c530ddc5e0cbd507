package apihttp

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"solar-dashboard/internal/auth"
)

// NewRouter mounts the API and /metrics behind logging, CORS and auth.
func NewRouter(h *Handler, authMiddleware *auth.Middleware, origins []string, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = ActorMiddleware(mux)
	handler = authMiddleware.Wrap(handler)
	handler = CORSMiddleware(handler, origins)
	return LoggingMiddleware(handler, logger)
}
