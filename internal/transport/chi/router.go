package chi

import (
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

// Routes builds the router. apiKeys guard the admin routes; empty disables auth.
func (s *Server) Routes(apiKeys []string) http.Handler {
	r := gochi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(corsAllowAll)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Post("/chat", s.Chat)
	r.Get("/search", s.SearchGet)
	r.Post("/search", s.SearchPost)

	r.Group(func(r gochi.Router) {
		r.Use(BearerAuthMiddleware(apiKeys))
		r.Post("/admin/reload", s.Reload)
	})

	return r
}
