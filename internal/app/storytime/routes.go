package storytime

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/storytime-billing/internal/entitlement"
	"github.com/magabrotheeeer/storytime-billing/internal/http/handlers/billing/checkout"
	"github.com/magabrotheeeer/storytime-billing/internal/http/handlers/billing/portal"
	"github.com/magabrotheeeer/storytime-billing/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/storytime-billing/internal/http/handlers/health"
	"github.com/magabrotheeeer/storytime-billing/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/storytime-billing/internal/http/handlers/subscription/change"
	"github.com/magabrotheeeer/storytime-billing/internal/http/handlers/subscription/reactivate"
	"github.com/magabrotheeeer/storytime-billing/internal/http/handlers/subscription/read"
	tierlist "github.com/magabrotheeeer/storytime-billing/internal/http/handlers/tiers/list"
	"github.com/magabrotheeeer/storytime-billing/internal/http/handlers/usage/check"
	"github.com/magabrotheeeer/storytime-billing/internal/http/handlers/usage/summary"
	"github.com/magabrotheeeer/storytime-billing/internal/http/handlers/usage/track"
	usersync "github.com/magabrotheeeer/storytime-billing/internal/http/handlers/users/sync"
	"github.com/magabrotheeeer/storytime-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storytime-billing/internal/services/subscription"
	"github.com/magabrotheeeer/storytime-billing/internal/services/usage"
)

// Deps are the services behind the API routes.
type Deps struct {
	Subscriptions *subscription.Manager
	Ledger        *usage.Ledger
	Evaluator     *entitlement.Evaluator
	Tokens        middlewarectx.TokenParser
	Webhooks      webhook.Verifier
	Limiter       *middlewarectx.RateLimiter
	DB            health.Pinger
}

// RegisterRoutes mounts every API route on r.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/health", health.New(logger, d.DB).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tiers", tierlist.New().ServeHTTP)
		r.Post("/billing/webhook", webhook.New(logger, d.Webhooks, d.Subscriptions).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, logger))
			r.Use(d.Limiter.Middleware(logger))

			r.Post("/users/sync", usersync.New(logger, d.Subscriptions).ServeHTTP)

			r.Get("/usage", summary.New(logger, d.Subscriptions, d.Ledger).ServeHTTP)
			r.Post("/usage/check", check.New(logger, d.Subscriptions, d.Evaluator).ServeHTTP)
			r.Post("/usage/track", track.New(logger, d.Subscriptions, d.Ledger).ServeHTTP)

			r.Get("/subscription", read.New(logger, d.Subscriptions).ServeHTTP)
			r.Post("/subscription/change", change.New(logger, d.Subscriptions).ServeHTTP)
			r.Post("/subscription/cancel", cancel.New(logger, d.Subscriptions).ServeHTTP)
			r.Post("/subscription/reactivate", reactivate.New(logger, d.Subscriptions).ServeHTTP)

			r.Post("/billing/checkout", checkout.New(logger, d.Subscriptions).ServeHTTP)
			r.Post("/billing/portal", portal.New(logger, d.Subscriptions).ServeHTTP)
		})
	})
}
