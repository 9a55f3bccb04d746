package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seangolding876/partsfinda-backend/api/controllers"
	"github.com/seangolding876/partsfinda-backend/api/middleware"
	"github.com/seangolding876/partsfinda-backend/internal/messages"
	"github.com/seangolding876/partsfinda-backend/internal/monitor"
	"github.com/seangolding876/partsfinda-backend/internal/queue"
	"github.com/seangolding876/partsfinda-backend/internal/quotes"
	"github.com/seangolding876/partsfinda-backend/internal/requests"
	"github.com/seangolding876/partsfinda-backend/internal/sellers"
	"github.com/seangolding876/partsfinda-backend/internal/supervisor"
	"github.com/seangolding876/partsfinda-backend/pkg/config"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
	"github.com/seangolding876/partsfinda-backend/pkg/redis"
)

// Deps collects everything the HTTP surface needs. The websocket handler is
// passed as a plain http.Handler so the router stays transport-agnostic.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Redis    *redis.Client
	Checks   map[string]controllers.Pinger
	Requests requests.Service
	Queue    queue.Service
	Quotes   quotes.Service
	Messages messages.Service
	Monitor  monitor.Service
	Sellers  sellers.Repository
	Worker   *supervisor.Supervisor
	WS       http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	quotePolicy := middleware.NewRateLimitPolicy(
		"quote",
		cfg.Requests.QuoteRateWindow,
		cfg.Requests.QuoteIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Checks))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if deps.WS != nil {
		r.Handle("/ws", deps.WS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", controllers.SubmitRequest(deps.Requests, logg))
			r.Get("/{requestId}", controllers.GetRequest(deps.Requests, logg))
		})

		r.Get("/queue/stats", controllers.QueueStats(deps.Monitor, logg))

		r.Route("/worker", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))
			r.Get("/status", controllers.WorkerStatus(deps.Worker, logg))
			r.Post("/control", controllers.WorkerControl(deps.Worker, logg))
		})

		r.Route("/seller", func(r chi.Router) {
			r.Get("/requests", controllers.SellerRequests(deps.Sellers, deps.Queue, logg))
			r.With(middleware.RateLimit(quotePolicy, deps.Redis, logg)).
				Post("/quotes", controllers.CreateQuote(deps.Quotes, logg))
		})

		r.Post("/quotes/{quoteId}/accept", controllers.AcceptQuote(deps.Quotes, logg))

		r.Route("/messages/{conversationId}", func(r chi.Router) {
			r.Get("/", controllers.ListMessages(deps.Messages, logg))
			r.Post("/", controllers.SendMessage(deps.Messages, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Get("/successful-requests", controllers.SuccessfulRequests(deps.Monitor, logg))
		r.Get("/requests/{requestId}/trace", controllers.RequestTrace(deps.Monitor, logg))
	})

	return r
}
