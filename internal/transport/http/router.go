package http

import (
	"net/http"
	"time"

	"dental-quest-service/internal/app"
	"dental-quest-service/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions carries the pieces the router needs besides the service.
type RouterOptions struct {
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	CORSOrigins []string
}

// NewRouter wires health, metrics, REST and WebSocket routes.
func NewRouter(service *app.AssessmentService, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	ws := NewWSHandler(service, logger)
	r.Get("/ws", ws.ServeWS)

	rest := NewRESTHandler(service, logger)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		rest.Routes(r)
	})
	return r
}
