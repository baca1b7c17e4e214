// Package notifier runs the billing email worker.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/storytime-billing/internal/config"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/smtp"
	"github.com/magabrotheeeer/storytime-billing/internal/services/sender"
)

// App consumes every billing queue and mails the user.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	conn   *amqp.Connection
	ch     *amqp.Channel
	sender *sender.Service
}

// New connects to the broker and declares the billing queues.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "notifier.New"
	if err := cfg.ValidateNotifier(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.Delay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange, rabbitmq.BillingQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{
		cfg:    cfg,
		logger: logger,
		conn:   conn,
		ch:     ch,
		sender: sender.New(smtp.NewTransport(cfg.SMTP, logger), logger),
	}, nil
}

// Run consumes until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	const op = "notifier.Run"
	defer a.closeResources()

	for _, q := range rabbitmq.BillingQueues() {
		if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, q.QueueName, a.sender.Handle); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		a.logger.Info("consuming", slog.String("queue", q.QueueName))
	}

	<-ctx.Done()
	a.logger.Info("notifier stopping")
	return nil
}

func (a *App) closeResources() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close broker connection", sl.Err(err))
	}
}
