// Package paymentprovider talks to Stripe: subscription management calls and
// webhook verification.
package paymentprovider

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/magabrotheeeer/storytime-billing/internal/models"
)

// Client implements the billing provider on top of the Stripe API.
type Client struct {
	api *client.API
}

// Option configures the Stripe backend of a Client.
type Option func(*stripe.BackendConfig)

// WithBackendURL points the client at url. Tests use it with httptest.
func WithBackendURL(url string) Option {
	return func(cfg *stripe.BackendConfig) {
		cfg.URL = stripe.String(url)
		cfg.MaxNetworkRetries = stripe.Int64(0)
	}
}

// New creates a Client authenticated with secretKey.
func New(secretKey string, opts ...Option) *Client {
	var backends *stripe.Backends
	if len(opts) > 0 {
		cfg := &stripe.BackendConfig{}
		for _, opt := range opts {
			opt(cfg)
		}
		backends = stripe.NewBackendsWithConfig(cfg)
	}
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Client{api: api}
}

// GetSubscription fetches a subscription.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (models.ProviderSubscription, error) {
	const op = "stripe.subscriptions.get"
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return models.ProviderSubscription{}, wrap(op, err)
	}
	return toProviderSubscription(sub), nil
}

// UpdateSubscriptionPrice swaps the price of itemID. Proration is applied only when prorate is set.
func (c *Client) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, itemID, priceID string, prorate bool) (models.ProviderSubscription, error) {
	const op = "stripe.subscriptions.update"
	behavior := "none"
	if prorate {
		behavior = "create_prorations"
	}
	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{{
			ID:    stripe.String(itemID),
			Price: stripe.String(priceID),
		}},
		ProrationBehavior: stripe.String(behavior),
	}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return models.ProviderSubscription{}, wrap(op, err)
	}
	return toProviderSubscription(sub), nil
}

// SetCancelAtPeriodEnd schedules or withdraws cancellation at period end.
func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (models.ProviderSubscription, error) {
	const op = "stripe.subscriptions.update"
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(cancel)}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return models.ProviderSubscription{}, wrap(op, err)
	}
	return toProviderSubscription(sub), nil
}

// CancelSubscription cancels a subscription now.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	const op = "stripe.subscriptions.cancel"
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := c.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return wrap(op, err)
	}
	return nil
}

// CreateCustomer creates a customer tagged with the internal user id.
func (c *Client) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	const op = "stripe.customers.create"
	params := &stripe.CustomerParams{}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata("user_id", userID)
	params.Context = ctx
	cus, err := c.api.Customers.New(params)
	if err != nil {
		return "", wrap(op, err)
	}
	return cus.ID, nil
}

// CreateCheckoutSession creates a subscription mode checkout for one price.
// Metadata is attached to both the session and the resulting subscription.
func (c *Client) CreateCheckoutSession(ctx context.Context, p models.CheckoutParams) (models.CheckoutSession, error) {
	const op = "stripe.checkout.sessions.create"
	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(p.CustomerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(p.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: p.Metadata,
		},
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return models.CheckoutSession{}, wrap(op, err)
	}
	return models.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// CreatePortalSession returns the URL of a billing portal session.
func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	const op = "stripe.billing_portal.sessions.create"
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	s, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", wrap(op, err)
	}
	return s.URL, nil
}

func toProviderSubscription(s *stripe.Subscription) models.ProviderSubscription {
	out := models.ProviderSubscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		out.ItemID = item.ID
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
		out.PeriodStart = unixTime(item.CurrentPeriodStart)
		out.PeriodEnd = unixTime(item.CurrentPeriodEnd)
	}
	return out
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// wrap classifies err as a ProviderError, keeping Stripe's error type and code.
func wrap(op string, err error) error {
	pe := &models.ProviderError{Op: op, Err: err}
	var se *stripe.Error
	if errors.As(err, &se) {
		pe.Type = string(se.Type)
		pe.Code = string(se.Code)
		if se.Msg != "" {
			pe.Err = errors.New(se.Msg)
		}
	}
	return pe
}
