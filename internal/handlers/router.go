package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Mounts are optional handlers served next to the API
type Mounts struct {
	Metrics http.Handler
	Push    http.Handler
}

// NewRouter mounts the read API, the health check, the metrics endpoint and
// the push socket
func NewRouter(h *Handler, mounts Mounts, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(h.log))
	r.Use(chimiddleware.Recoverer)

	// Long-lived socket; no request timeout
	if mounts.Push != nil {
		r.Method(http.MethodGet, "/ws", mounts.Push)
	}

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))

		// CORS configuration
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		r.Get("/health", h.HealthCheck)
		if mounts.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", mounts.Metrics)
		}

		r.Route("/api/v1", apiRoutes(h))
	})

	return r
}

func apiRoutes(h *Handler) func(r chi.Router) {
	return func(r chi.Router) {
		r.Get("/quotes", h.GetQuotes)
		r.Get("/board", h.GetBoard)

		r.Get("/filters", h.GetFilters)
		r.Put("/filters", h.UpdateFilters)
		r.Post("/sport", h.SwitchSport)

		r.Get("/books", h.GetBooks)
		r.Post("/catalog/refresh", h.RefreshCatalog)

		r.Get("/connection", h.GetConnection)
		r.Post("/connection/reconnect", h.Reconnect)
	}
}

// RequestLogger logs one line per request with zap
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())))
		})
	}
}
