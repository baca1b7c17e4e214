// Package scheduler runs the subscription-ending reminder job.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/storytime-billing/internal/config"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/services/scheduler"
	"github.com/magabrotheeeer/storytime-billing/internal/storage/repository"
)

type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *repository.Storage
	conn    *amqp.Connection
	ch      *amqp.Channel
	service *scheduler.Service
}

// New opens the database and the broker channel the job publishes to.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "scheduler.New"
	if err := cfg.ValidateScheduler(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.Delay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange, rabbitmq.BillingQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	publisher := rabbitmq.NewPublisher(ch, cfg.RabbitMQ.Exchange)
	return &App{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		conn:    conn,
		ch:      ch,
		service: scheduler.New(db, publisher, cfg.Scheduler.Window, logger),
	}, nil
}

// Run blocks until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	defer a.closeResources()
	a.logger.Info("scheduler starting",
		slog.String("spec", a.cfg.Scheduler.Spec),
		slog.Duration("window", a.cfg.Scheduler.Window),
	)
	return a.service.Run(ctx, a.cfg.Scheduler.Spec)
}

func (a *App) closeResources() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close broker connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
