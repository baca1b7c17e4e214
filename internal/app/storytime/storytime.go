// Package storytime assembles the billing HTTP API.
package storytime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/storytime-billing/internal/cache"
	"github.com/magabrotheeeer/storytime-billing/internal/config"
	"github.com/magabrotheeeer/storytime-billing/internal/entitlement"
	"github.com/magabrotheeeer/storytime-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/migrations"
	"github.com/magabrotheeeer/storytime-billing/internal/paymentprovider"
	"github.com/magabrotheeeer/storytime-billing/internal/services/subscription"
	"github.com/magabrotheeeer/storytime-billing/internal/services/usage"
	"github.com/magabrotheeeer/storytime-billing/internal/storage/repository"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

const shutdownTimeout = 15 * time.Second

// App is the API process.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New connects every dependency, applies migrations and mirrors the tier
// catalog. Missing credentials or price ids fail here, not on first use.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "storytime.New"

	if err := cfg.ValidateAPI(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	prices, err := cfg.Stripe.PriceBook()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{logger: logger}

	a.db, err = repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(a.db.DB, cfg.MigrationsPath); err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = a.db.SyncTierLimits(ctx, tiers.All()); err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.cache, err = cache.InitServer(ctx, cfg.Redis)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.conn, err = rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.Delay)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.ch, err = rabbitmq.SetupChannel(a.conn, cfg.RabbitMQ.Exchange, rabbitmq.BillingQueues())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	manager := subscription.New(
		a.db,
		paymentprovider.New(cfg.Stripe.SecretKey),
		a.cache,
		rabbitmq.NewPublisher(a.ch, cfg.RabbitMQ.Exchange),
		prices,
		logger,
		subscription.WithCacheTTL(cfg.Cache.SubscriptionTTL),
		subscription.WithRedirects(subscription.Redirects{
			Success:      cfg.Stripe.SuccessURL,
			Cancel:       cfg.Stripe.CancelURL,
			PortalReturn: cfg.Stripe.PortalReturnURL,
		}),
	)
	ledger := usage.NewLedger(a.db, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Subscriptions: manager,
		Ledger:        ledger,
		Evaluator:     entitlement.New(ledger),
		Tokens:        jwt.NewJWTMaker(cfg.JWT.Secret, cfg.JWT.TokenTTL),
		Webhooks:      paymentprovider.NewWebhookVerifier(cfg.Stripe.WebhookSecret),
		Limiter:       middlewarectx.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		DB:            a.db,
	})

	a.server = &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	return a, nil
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close broker connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", sl.Err(err))
		}
	}
}
