package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/storytime-billing/internal/metrics"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

const (
	msgNoSubscription   = "No subscription found"
	msgNothingToCancel  = "No active subscription to cancel"
	msgNeedsCheckout    = "Cannot change tier without active subscription. Please create a new subscription."
	msgUpgraded         = "Subscription upgraded successfully"
	msgDowngradePending = "Subscription will be downgraded at the end of the billing period"
	msgIntervalChanged  = "Subscription billing period updated successfully"
	msgSamePlan         = "Subscription is already on this plan"
	msgCancelAtEnd      = "Subscription will be canceled at the end of the billing period"
	msgCanceledNow      = "Subscription canceled immediately"
	msgNothingToResume  = "No subscription to reactivate"
	msgReactivated      = "Subscription reactivated successfully"
)

func failed(msg string) Result { return Result{Message: msg} }

func succeeded(msg string) Result { return Result{Success: true, Message: msg} }

// Change moves the user to newTier billed at interval.
//
// Moving to free schedules cancellation at period end. Upgrades are prorated
// and apply to the stored tier immediately; downgrades are not prorated and
// are recorded as pending until the provider period rolls over.
func (m *Manager) Change(ctx context.Context, userID string, newTier tiers.Tier, interval tiers.Interval) (Result, error) {
	const op = "subscription.Change"
	log := m.log.With(slog.String("op", op), slog.String("user_id", userID), slog.String("tier", string(newTier)))

	sub, err := m.load(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return failed(msgNoSubscription), fmt.Errorf("%s: %w", op, err)
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	if newTier == tiers.Free {
		if !sub.HasLiveSubscription() {
			return failed(msgNothingToCancel), fmt.Errorf("%s: %w", op, ErrNoLiveSubscription)
		}
		if err := m.scheduleCancel(ctx, sub, true); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		metrics.SubscriptionChanges.WithLabelValues("cancel").Inc()
		log.Info("downgrade to free scheduled at period end")
		return succeeded(msgCancelAtEnd), nil
	}

	if !sub.HasLiveSubscription() {
		return failed(msgNeedsCheckout), fmt.Errorf("%s: %w", op, ErrNoLiveSubscription)
	}
	priceID, err := m.prices.Price(newTier, interval)
	if err != nil {
		return failed(fmt.Sprintf("No price ID configured for %s", newTier)), fmt.Errorf("%s: %w", op, err)
	}

	live, err := m.provider.GetSubscription(ctx, sub.ProviderSubscriptionID)
	if err != nil {
		return Result{}, providerFailure(op, err)
	}
	if live.PriceID == priceID {
		return failed(msgSamePlan), fmt.Errorf("%s: %w", op, ErrSameTier)
	}

	upgrade := tiers.IsUpgrade(sub.Tier, newTier)
	downgrade := tiers.IsDowngrade(sub.Tier, newTier)
	updated, err := m.provider.UpdateSubscriptionPrice(ctx, live.ID, live.ItemID, priceID, upgrade)
	if err != nil {
		return Result{}, providerFailure(op, err)
	}

	var res Result
	switch {
	case upgrade:
		sub.Tier = newTier
		sub.PendingTier = nil
		res = succeeded(msgUpgraded)
	case downgrade:
		pending := newTier
		sub.PendingTier = &pending
		res = succeeded(msgDowngradePending)
	default:
		sub.PendingTier = nil
		res = succeeded(msgIntervalChanged)
	}
	sub.CancelAtPeriodEnd = updated.CancelAtPeriodEnd

	if err := m.save(ctx, sub); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	action := "interval"
	if upgrade {
		action = "upgrade"
	} else if downgrade {
		action = "downgrade"
	}
	metrics.SubscriptionChanges.WithLabelValues(action).Inc()
	log.Info("subscription changed", slog.String("action", action), slog.String("interval", string(interval)))
	return res, nil
}

// Cancel ends the live subscription, now or at the end of the billing period.
func (m *Manager) Cancel(ctx context.Context, userID string, immediate bool) (Result, error) {
	const op = "subscription.Cancel"

	sub, err := m.load(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return failed(msgNothingToCancel), fmt.Errorf("%s: %w", op, err)
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if !sub.HasLiveSubscription() {
		return failed(msgNothingToCancel), fmt.Errorf("%s: %w", op, ErrNoLiveSubscription)
	}

	if !immediate {
		if err := m.scheduleCancel(ctx, sub, true); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		metrics.SubscriptionChanges.WithLabelValues("cancel").Inc()
		return succeeded(msgCancelAtEnd), nil
	}

	if err := m.provider.CancelSubscription(ctx, sub.ProviderSubscriptionID); err != nil {
		return Result{}, providerFailure(op, err)
	}
	resetToFree(sub)
	if err := m.save(ctx, sub); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	metrics.SubscriptionChanges.WithLabelValues("cancel_immediate").Inc()
	m.log.Info("subscription canceled immediately", slog.String("user_id", userID))
	return succeeded(msgCanceledNow), nil
}

// Reactivate withdraws a scheduled cancellation. Tier and status are unchanged.
func (m *Manager) Reactivate(ctx context.Context, userID string) (Result, error) {
	const op = "subscription.Reactivate"

	sub, err := m.load(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return failed(msgNothingToResume), fmt.Errorf("%s: %w", op, err)
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if !sub.HasLiveSubscription() {
		return failed(msgNothingToResume), fmt.Errorf("%s: %w", op, ErrNoLiveSubscription)
	}

	if err := m.scheduleCancel(ctx, sub, false); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	metrics.SubscriptionChanges.WithLabelValues("reactivate").Inc()
	return succeeded(msgReactivated), nil
}

func (m *Manager) scheduleCancel(ctx context.Context, sub *models.Subscription, cancel bool) error {
	const op = "subscription.scheduleCancel"
	if _, err := m.provider.SetCancelAtPeriodEnd(ctx, sub.ProviderSubscriptionID, cancel); err != nil {
		return providerFailure(op, err)
	}
	sub.CancelAtPeriodEnd = cancel
	return m.save(ctx, sub)
}
