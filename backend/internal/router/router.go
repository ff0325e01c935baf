package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itchan-dev/legorachat/backend/internal/setup"
	mw "github.com/itchan-dev/legorachat/shared/middleware"
	"github.com/itchan-dev/legorachat/shared/middleware/metrics"
)

// New creates the API router. Event streams stay outside the identity
// middleware, the user id comes from the path there.
func New(deps *setup.Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)

	// setup CORS for browser clients
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Public.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", mw.UserIdHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(mw.APIHeaders())

	h := deps.Handler

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/auth/login", h.Login)

		v1.Get("/events/{userId}", h.Events)
		v1.Get("/ws/{userId}", h.EventsWS)

		v1.Group(func(identified chi.Router) {
			identified.Use(mw.NeedIdentity())

			identified.Get("/threads", h.GetThreads)
			identified.Post("/threads", h.CreateThread)
			identified.Get("/threads/{thread}/messages", h.GetMessages)
			identified.Post("/threads/{thread}/messages", h.SendMessage)
		})
	})

	return r
}
