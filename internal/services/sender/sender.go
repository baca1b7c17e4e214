// Package sender turns billing notifications from the broker into emails.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/smtp"
	"github.com/magabrotheeeer/storytime-billing/internal/metrics"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

var (
	// ErrUnknownKind is returned by Compose for a notification kind without a template.
	ErrUnknownKind = errors.New("unknown notification kind")
	// ErrNoRecipient is returned by Compose when the notification has no email.
	ErrNoRecipient = errors.New("notification has no recipient")
)

// Email is a composed plain text message.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Service sends billing emails through an SMTP transport.
type Service struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// New creates a Service.
func New(transport smtp.TransportInterface, log *slog.Logger) *Service {
	return &Service{transport: transport, log: log}
}

// Handle is the broker consumer callback. Messages that can never be sent are
// logged and acknowledged; only delivery failures are returned for a retry.
func (s *Service) Handle(_ context.Context, body []byte) error {
	var n models.BillingNotification
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("dropping malformed notification", sl.Err(err))
		metrics.NotificationsSent.WithLabelValues("unknown", "dropped").Inc()
		return nil
	}

	email, err := Compose(n)
	if err != nil {
		s.log.Warn("dropping notification", slog.String("kind", n.Kind), slog.String("user_id", n.UserID), sl.Err(err))
		metrics.NotificationsSent.WithLabelValues(n.Kind, "dropped").Inc()
		return nil
	}

	if err := s.Send(email); err != nil {
		metrics.NotificationsSent.WithLabelValues(n.Kind, "failed").Inc()
		return err
	}
	metrics.NotificationsSent.WithLabelValues(n.Kind, "sent").Inc()
	s.log.Info("notification sent", slog.String("kind", n.Kind), slog.String("user_id", n.UserID))
	return nil
}

// Compose renders the email for n.
func Compose(n models.BillingNotification) (Email, error) {
	if n.Email == "" {
		return Email{}, ErrNoRecipient
	}
	plan := planName(n.Tier)
	email := Email{To: n.Email}

	switch n.Kind {
	case models.NotificationCheckoutCompleted:
		email.Subject = "Welcome to " + plan
		email.Body = fmt.Sprintf("Hello!\n\nYour %s subscription is active. Your new story limits apply right away.\n\nSweet dreams,\nStorytime", plan)
	case models.NotificationPaymentFailed:
		email.Subject = "We couldn't process your payment"
		email.Body = fmt.Sprintf("Hello!\n\nThe latest payment of %s for your %s subscription failed. "+
			"We will retry it automatically and your plan stays active in the meantime.\n\n"+
			"Please check your payment method in the billing portal.\n\nStorytime",
			formatAmount(n.AmountDue, n.Currency), plan)
	case models.NotificationSubscriptionEnding:
		email.Subject = "Your " + plan + " subscription ends soon"
		when := "soon"
		if n.PeriodEnd != nil {
			when = "on " + n.PeriodEnd.UTC().Format("January 2, 2006")
		}
		email.Body = fmt.Sprintf("Hello!\n\nYour %s subscription ends %s and your account will move to the Free plan. "+
			"You can reactivate it from your account page before then to keep every story feature.\n\nStorytime", plan, when)
	default:
		return Email{}, fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}
	return email, nil
}

// Send delivers one email.
func (s *Service) Send(e Email) error {
	const op = "sender.Send"
	from := s.transport.Sender()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + e.To,
		"Subject: " + e.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		e.Body,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			s.log.Debug("smtp close", sl.Err(err))
		}
	}()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("%s: mail from: %w", op, err)
	}
	if err := client.Rcpt(e.To); err != nil {
		return fmt.Errorf("%s: rcpt to: %w", op, err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: data: %w", op, err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("%s: write: %w", op, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("%s: close data: %w", op, err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("%s: quit: %w", op, err)
	}
	return nil
}

func planName(tier string) string {
	t, err := tiers.Parse(tier)
	if err != nil {
		return "Storytime"
	}
	return tiers.InfoOf(t).Name
}

func formatAmount(cents int64, currency string) string {
	if currency == "" {
		currency = "usd"
	}
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}
