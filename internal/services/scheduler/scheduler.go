// Package scheduler publishes reminders for subscriptions that end soon.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
)

// Repository finds subscriptions scheduled to end.
type Repository interface {
	FindSubscriptionsEnding(ctx context.Context, from, to time.Time) ([]*models.BillingNotification, error)
}

// Publisher sends a message to the notification exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// Service looks Window ahead on every run. Consecutive daily runs with a
// window longer than a day remind the same user more than once, which is
// intended: one reminder per day until the period ends.
type Service struct {
	repo      Repository
	publisher Publisher
	window    time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// New creates a Service.
func New(repo Repository, publisher Publisher, window time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		window:    window,
		log:       log,
		now:       time.Now,
	}
}

// RemindEnding publishes one subscription_ending notification per match and
// returns how many were published.
func (s *Service) RemindEnding(ctx context.Context) (int, error) {
	const op = "scheduler.RemindEnding"
	from := s.now().UTC()
	ending, err := s.repo.FindSubscriptionsEnding(ctx, from, from.Add(s.window))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(ending) == 0 {
		s.log.Info("no subscriptions ending")
		return 0, nil
	}

	published := 0
	for _, n := range ending {
		n.Kind = models.NotificationSubscriptionEnding
		if err := s.publisher.Publish(ctx, models.NotificationSubscriptionEnding, n); err != nil {
			s.log.Error("failed to publish reminder", slog.String("user_id", n.UserID), sl.Err(err))
			continue
		}
		published++
	}
	s.log.Info("reminders published", slog.Int("found", len(ending)), slog.Int("published", published))
	return published, nil
}

// Run executes RemindEnding on spec until ctx is done. The first run happens
// immediately.
func (s *Service) Run(ctx context.Context, spec string) error {
	const op = "scheduler.Run"
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("%s: invalid schedule %q: %w", op, spec, err)
	}

	s.runOnce(ctx)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *Service) runOnce(ctx context.Context) {
	if _, err := s.RemindEnding(ctx); err != nil {
		s.log.Error("reminder run failed", sl.Err(err))
	}
}
