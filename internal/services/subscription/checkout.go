package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/storage"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

// SyncUser makes sure userID exists with a free subscription. It reports
// whether the user was created.
func (m *Manager) SyncUser(ctx context.Context, userID, email string) (bool, error) {
	const op = "subscription.SyncUser"
	created, err := m.repo.EnsureUser(ctx, models.User{ID: userID, Email: email, Role: "user"}, models.NewFreeSubscription(userID))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if created {
		m.log.Info("user created", slog.String("user_id", userID))
	}
	return created, nil
}

// CreateCheckout opens a hosted checkout for tier billed at interval. Empty
// URLs fall back to the configured redirects. Users who already pay get
// ErrAlreadySubscribed.
func (m *Manager) CreateCheckout(ctx context.Context, userID string, tier tiers.Tier, interval tiers.Interval, successURL, cancelURL string) (models.CheckoutSession, error) {
	const op = "subscription.CreateCheckout"

	if !tier.Paid() {
		return models.CheckoutSession{}, fmt.Errorf("%s: %w", op, ErrFreeTierCheckout)
	}
	priceID, err := m.prices.Price(tier, interval)
	if err != nil {
		return models.CheckoutSession{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := m.repo.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.CheckoutSession{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return models.CheckoutSession{}, fmt.Errorf("%s: %w", op, err)
	}
	sub, err := m.load(ctx, userID)
	if err != nil {
		return models.CheckoutSession{}, fmt.Errorf("%s: %w", op, err)
	}
	// Plan changes on a live subscription go through Change.
	if sub.HasLiveSubscription() && sub.Status != models.StatusCanceled {
		return models.CheckoutSession{}, fmt.Errorf("%s: %w", op, ErrAlreadySubscribed)
	}

	if sub.ProviderCustomerID == "" {
		customerID, err := m.provider.CreateCustomer(ctx, userID, user.Email)
		if err != nil {
			return models.CheckoutSession{}, providerFailure(op, err)
		}
		sub.ProviderCustomerID = customerID
		if err := m.save(ctx, sub); err != nil {
			return models.CheckoutSession{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	if successURL == "" {
		successURL = m.redirects.Success
	}
	if cancelURL == "" {
		cancelURL = m.redirects.Cancel
	}
	session, err := m.provider.CreateCheckoutSession(ctx, models.CheckoutParams{
		CustomerID: sub.ProviderCustomerID,
		PriceID:    priceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Metadata: map[string]string{
			metaUserID:        userID,
			metaTier:          string(tier),
			metaBillingPeriod: string(interval),
		},
	})
	if err != nil {
		return models.CheckoutSession{}, providerFailure(op, err)
	}
	m.log.Info("checkout session created", slog.String("user_id", userID), slog.String("session_id", session.ID))
	return session, nil
}

// PortalURL opens the provider's self-service billing portal.
func (m *Manager) PortalURL(ctx context.Context, userID, returnURL string) (string, error) {
	const op = "subscription.PortalURL"

	sub, err := m.load(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if sub.ProviderCustomerID == "" {
		return "", fmt.Errorf("%s: %w", op, ErrNoCustomer)
	}
	if returnURL == "" {
		returnURL = m.redirects.PortalReturn
	}
	url, err := m.provider.CreatePortalSession(ctx, sub.ProviderCustomerID, returnURL)
	if err != nil {
		return "", providerFailure(op, err)
	}
	return url, nil
}
