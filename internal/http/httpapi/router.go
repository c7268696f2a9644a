package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"promptqueue/internal/http/handlers"
	"promptqueue/internal/middleware"
)

// Options tunes the cross-cutting middleware applied to every route.
type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer, middleware.Logger(app.Logger))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/session", app.SessionStatus)

	r.Route("/v1/queue", func(r chi.Router) {
		r.Post("/", app.Enqueue)
		r.Get("/", app.ListQueue)
		r.Post("/pause", app.PauseQueue)
		r.Post("/stop", app.StopQueue)
		r.Post("/retry-all", app.RetryAll)
		r.Post("/jobs/{id}/retry", app.RetryJob)
		r.Patch("/jobs/{id}", app.EditJob)
	})

	r.Route("/v1/artifacts", func(r chi.Router) {
		r.Get("/", app.ListArtifacts)
		r.Get("/archive", app.DownloadArchive)
		r.Delete("/", app.ClearArtifacts)
	})

	return r
}
