package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"actionfigure/internal/http/handlers"
	"actionfigure/internal/middleware"
)

type RouterOptions struct {
	Logger          zerolog.Logger
	CORSOrigins     []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
	)

	// Provider-backed routes share one per-IP budget.
	limited := func(h http.HandlerFunc) http.Handler { return http.HandlerFunc(h) }
	if opts.RateLimitPerMin > 0 {
		rl := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)
		limited = func(h http.HandlerFunc) http.Handler { return rl(h) }
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Method(http.MethodPost, "/analyze", limited(app.Analyze))
		r.Method(http.MethodPost, "/generate", limited(app.Generate))
		r.Get("/jobs/{jobID}", app.JobStatus)
		r.Get("/memes/catalog", app.MemeCatalog)
		r.Method(http.MethodPost, "/memes", limited(app.GenerateMeme))

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", app.CreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", app.GetSession)
				r.Delete("/", app.DeleteSession)
				r.Method(http.MethodPost, "/attachment", limited(app.SubmitAttachment))
				r.Post("/cancel", app.CancelSession)
				r.Get("/events", app.SessionEvents)
			})
		})
	})

	return r
}
