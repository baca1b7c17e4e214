package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/storytime-billing/internal/metrics"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

const checkoutModeSubscription = "subscription"

// Metadata keys attached to checkout sessions. legacyUserKey is read only.
const (
	metaUserID        = "user_id"
	metaTier          = "tier"
	metaBillingPeriod = "billing_period"
	legacyUserKey     = "clerk_user_id"
)

// providerStatus maps the provider's subscription status onto Status.
func providerStatus(s string) models.Status {
	switch models.Status(s) {
	case models.StatusActive, models.StatusTrialing, models.StatusPastDue, models.StatusIncomplete:
		return models.Status(s)
	default:
		return models.StatusCanceled
	}
}

// HandleEvent dispatches a verified provider event. Unhandled types are ignored.
func (m *Manager) HandleEvent(ctx context.Context, ev models.BillingEvent) error {
	started := time.Now()
	err := m.dispatch(ctx, ev)

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.WebhookEvents.WithLabelValues(string(ev.Type), result).Inc()
	metrics.WebhookDuration.WithLabelValues(string(ev.Type)).Observe(time.Since(started).Seconds())
	return err
}

func (m *Manager) dispatch(ctx context.Context, ev models.BillingEvent) error {
	const op = "subscription.HandleEvent"
	switch ev.Type {
	case models.EventCheckoutCompleted:
		if ev.Checkout == nil {
			return fmt.Errorf("%s: %w: %s without session", op, ErrMalformedEvent, ev.Type)
		}
		return m.OnCheckoutCompleted(ctx, *ev.Checkout)
	case models.EventSubscriptionUpdated, models.EventSubscriptionDeleted:
		if ev.Subscription == nil {
			return fmt.Errorf("%s: %w: %s without subscription", op, ErrMalformedEvent, ev.Type)
		}
		if ev.Type == models.EventSubscriptionDeleted {
			return m.OnSubscriptionDeleted(ctx, *ev.Subscription)
		}
		return m.OnSubscriptionUpdated(ctx, *ev.Subscription)
	case models.EventPaymentFailed, models.EventPaymentSucceeded:
		if ev.Invoice == nil {
			return fmt.Errorf("%s: %w: %s without invoice", op, ErrMalformedEvent, ev.Type)
		}
		if ev.Type == models.EventPaymentFailed {
			return m.OnPaymentFailed(ctx, *ev.Invoice)
		}
		return m.OnPaymentSucceeded(ctx, *ev.Invoice)
	default:
		m.log.Debug("ignoring unhandled billing event", slog.String("event_id", ev.ID), slog.String("type", string(ev.Type)))
		return nil
	}
}

// OnCheckoutCompleted links a freshly purchased provider subscription to the
// user named in the session metadata.
func (m *Manager) OnCheckoutCompleted(ctx context.Context, ev models.CheckoutEvent) error {
	const op = "subscription.OnCheckoutCompleted"
	log := m.log.With(slog.String("op", op), slog.String("session_id", ev.SessionID))

	if ev.Mode != checkoutModeSubscription {
		log.Info("ignoring checkout outside subscription mode", slog.String("mode", ev.Mode))
		return nil
	}
	userID := ev.Metadata[metaUserID]
	if userID == "" {
		userID = ev.Metadata[legacyUserKey]
	}
	if userID == "" {
		return fmt.Errorf("%s: %w", op, ErrMissingUserReference)
	}
	if ev.SubscriptionID == "" {
		return fmt.Errorf("%s: %w", op, ErrMissingSubscriptionReference)
	}

	ps, err := m.provider.GetSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		return providerFailure(op, err)
	}
	tier, err := m.prices.TierForPrice(ps.PriceID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sub, err := m.load(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return fmt.Errorf("%s: %w: %s", op, ErrUserNotFound, userID)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	status := models.StatusActive
	if ps.Status == string(models.StatusTrialing) {
		status = models.StatusTrialing
	}
	customerID := ev.CustomerID
	if customerID == "" {
		customerID = ps.CustomerID
	}

	sub.Tier = tier
	sub.Status = status
	sub.PeriodStart = timePtr(ps.PeriodStart)
	sub.PeriodEnd = timePtr(ps.PeriodEnd)
	sub.ProviderSubscriptionID = ps.ID
	sub.ProviderCustomerID = customerID
	sub.CancelAtPeriodEnd = ps.CancelAtPeriodEnd
	sub.PendingTier = nil

	if err := m.save(ctx, sub); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("subscription activated", slog.String("user_id", userID), slog.String("tier", string(tier)), slog.String("status", string(status)))

	m.notify(ctx, models.NotificationCheckoutCompleted, sub, nil)
	return nil
}

// OnSubscriptionUpdated refreshes tier, status and period from the provider's
// view. A deferred downgrade takes effect once the provider period rolls over.
func (m *Manager) OnSubscriptionUpdated(ctx context.Context, ps models.ProviderSubscription) error {
	const op = "subscription.OnSubscriptionUpdated"

	sub, err := m.loadByCustomer(ctx, ps.CustomerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if superseded(sub, ps.ID) {
		m.log.Info("ignoring update of a superseded subscription",
			slog.String("user_id", sub.UserID), slog.String("updated", ps.ID), slog.String("current", sub.ProviderSubscriptionID))
		return nil
	}
	tier, err := m.prices.TierForPrice(ps.PriceID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case sub.PendingTier == nil:
		sub.Tier = tier
	case tier != *sub.PendingTier:
		sub.Tier = tier
		sub.PendingTier = nil
	case rolledOver(sub.PeriodStart, ps.PeriodStart):
		sub.Tier = tier
		sub.PendingTier = nil
	}

	sub.Status = providerStatus(ps.Status)
	sub.PeriodStart = timePtr(ps.PeriodStart)
	sub.PeriodEnd = timePtr(ps.PeriodEnd)
	sub.ProviderSubscriptionID = ps.ID
	sub.CancelAtPeriodEnd = ps.CancelAtPeriodEnd

	if err := m.save(ctx, sub); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m.log.Info("subscription updated",
		slog.String("user_id", sub.UserID),
		slog.String("tier", string(sub.Tier)),
		slog.String("status", string(sub.Status)),
	)
	return nil
}

// rolledOver reports whether the provider period started after the stored one.
func rolledOver(stored *time.Time, provider time.Time) bool {
	if provider.IsZero() {
		return false
	}
	return stored == nil || provider.After(*stored)
}

// superseded reports whether providerSubID names a subscription other than the
// one sub currently tracks.
func superseded(sub *models.Subscription, providerSubID string) bool {
	return sub.ProviderSubscriptionID != "" && providerSubID != "" && sub.ProviderSubscriptionID != providerSubID
}

// OnSubscriptionDeleted returns the user to the free tier.
func (m *Manager) OnSubscriptionDeleted(ctx context.Context, ps models.ProviderSubscription) error {
	const op = "subscription.OnSubscriptionDeleted"

	sub, err := m.loadByCustomer(ctx, ps.CustomerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if superseded(sub, ps.ID) {
		m.log.Info("ignoring deletion of a superseded subscription",
			slog.String("user_id", sub.UserID), slog.String("deleted", ps.ID), slog.String("current", sub.ProviderSubscriptionID))
		return nil
	}

	resetToFree(sub)
	if err := m.save(ctx, sub); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m.log.Info("subscription deleted", slog.String("user_id", sub.UserID))
	return nil
}

// OnPaymentFailed marks the subscription past due. Access and tier are kept
// while the provider retries the invoice.
func (m *Manager) OnPaymentFailed(ctx context.Context, inv models.InvoiceEvent) error {
	const op = "subscription.OnPaymentFailed"

	sub, err := m.loadByCustomer(ctx, inv.CustomerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if sub.Status.GrantsAccess() && sub.Status != models.StatusPastDue {
		sub.Status = models.StatusPastDue
		if err := m.save(ctx, sub); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	m.log.Warn("invoice payment failed",
		slog.String("user_id", sub.UserID), slog.String("invoice_id", inv.InvoiceID), slog.Int64("amount_due", inv.AmountDue))

	m.notify(ctx, models.NotificationPaymentFailed, sub, func(n *models.BillingNotification) {
		n.AmountDue = inv.AmountDue
		n.Currency = inv.Currency
	})
	return nil
}

// OnPaymentSucceeded re-reads the subscription from the provider, which lifts
// a past_due status once the invoice is paid.
func (m *Manager) OnPaymentSucceeded(ctx context.Context, inv models.InvoiceEvent) error {
	const op = "subscription.OnPaymentSucceeded"
	if inv.SubscriptionID == "" {
		m.log.Debug("ignoring invoice without subscription", slog.String("invoice_id", inv.InvoiceID))
		return nil
	}
	ps, err := m.provider.GetSubscription(ctx, inv.SubscriptionID)
	if err != nil {
		return providerFailure(op, err)
	}
	if ps.CustomerID == "" {
		ps.CustomerID = inv.CustomerID
	}
	if err := m.OnSubscriptionUpdated(ctx, ps); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func resetToFree(sub *models.Subscription) {
	sub.Tier = tiers.Free
	sub.Status = models.StatusCanceled
	sub.PeriodEnd = nil
	sub.ProviderSubscriptionID = ""
	sub.CancelAtPeriodEnd = false
	sub.PendingTier = nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
