// Package subscription keeps each user's stored subscription in step with the
// billing provider. Provider webhooks and user management actions are the
// only writers.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/storytime-billing/internal/lib/sl"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/storage"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

var (
	ErrSubscriptionNotFound         = errors.New("subscription not found")
	ErrUserNotFound                 = errors.New("user not found")
	ErrNoLiveSubscription           = errors.New("no live provider subscription")
	ErrNoCustomer                   = errors.New("no billing customer")
	ErrFreeTierCheckout             = errors.New("cannot create checkout session for free tier")
	ErrSameTier                     = errors.New("subscription is already on this plan")
	ErrAlreadySubscribed            = errors.New("user already has a live paid subscription")
	ErrMissingUserReference         = errors.New("checkout event has no user reference")
	ErrMissingCustomerReference     = errors.New("event has no customer reference")
	ErrMissingSubscriptionReference = errors.New("event has no subscription reference")
	ErrMalformedEvent               = errors.New("malformed billing event")
)

// Repository persists users and their subscriptions.
type Repository interface {
	EnsureUser(ctx context.Context, user models.User, sub models.Subscription) (bool, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error)
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
}

// BillingProvider is the external billing system.
type BillingProvider interface {
	GetSubscription(ctx context.Context, subscriptionID string) (models.ProviderSubscription, error)
	UpdateSubscriptionPrice(ctx context.Context, subscriptionID, itemID, priceID string, prorate bool) (models.ProviderSubscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (models.ProviderSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	CreateCustomer(ctx context.Context, userID, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, params models.CheckoutParams) (models.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// Cache is a read-through cache for subscriptions.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Publisher emits billing notifications.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Result is the user facing outcome of a management action.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Redirects are the default URLs handed to hosted provider pages.
type Redirects struct {
	Success      string
	Cancel       string
	PortalReturn string
}

// Manager applies provider events and management actions to stored subscriptions.
type Manager struct {
	repo      Repository
	provider  BillingProvider
	cache     Cache
	publisher Publisher
	prices    *tiers.PriceBook
	log       *slog.Logger
	cacheTTL  time.Duration
	redirects Redirects
}

// Option configures a Manager.
type Option func(*Manager)

// WithCacheTTL sets how long subscriptions stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.cacheTTL = ttl }
}

// WithRedirects sets the default checkout and portal URLs.
func WithRedirects(r Redirects) Option {
	return func(m *Manager) { m.redirects = r }
}

// New creates a Manager.
func New(repo Repository, provider BillingProvider, cache Cache, publisher Publisher, prices *tiers.PriceBook, log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		repo:      repo,
		provider:  provider,
		cache:     cache,
		publisher: publisher,
		prices:    prices,
		log:       log,
		cacheTTL:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func cacheKey(userID string) string {
	return "subscription:" + userID
}

// GetUserSubscription returns the stored subscription of userID, consulting the cache first.
func (m *Manager) GetUserSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "subscription.GetUserSubscription"
	log := m.log.With(slog.String("op", op), slog.String("user_id", userID))

	var cached models.Subscription
	found, err := m.cache.Get(ctx, cacheKey(userID), &cached)
	if err != nil {
		log.Warn("failed to read subscription from cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	sub, err := m.load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := m.cache.Set(ctx, cacheKey(userID), sub, m.cacheTTL); err != nil {
		log.Warn("failed to cache subscription", sl.Err(err))
	}
	return sub, nil
}

func (m *Manager) load(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := m.repo.GetSubscription(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	return sub, err
}

func (m *Manager) loadByCustomer(ctx context.Context, customerID string) (*models.Subscription, error) {
	if customerID == "" {
		return nil, ErrMissingCustomerReference
	}
	sub, err := m.repo.GetSubscriptionByCustomer(ctx, customerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: customer %s", ErrSubscriptionNotFound, customerID)
	}
	return sub, err
}

// save persists sub and drops its cache entry.
func (m *Manager) save(ctx context.Context, sub *models.Subscription) error {
	if err := m.repo.SaveSubscription(ctx, sub); err != nil {
		return err
	}
	if err := m.cache.Invalidate(ctx, cacheKey(sub.UserID)); err != nil {
		m.log.Warn("failed to invalidate cached subscription", slog.String("user_id", sub.UserID), sl.Err(err))
	}
	return nil
}

// notify publishes a notification for sub's owner. Failures are logged only:
// the state change already happened.
func (m *Manager) notify(ctx context.Context, kind string, sub *models.Subscription, fill func(*models.BillingNotification)) {
	n := models.BillingNotification{
		Kind:      kind,
		UserID:    sub.UserID,
		Tier:      string(sub.Tier),
		PeriodEnd: sub.PeriodEnd,
	}
	if user, err := m.repo.GetUser(ctx, sub.UserID); err == nil {
		n.Email = user.Email
	} else {
		m.log.Warn("notification without email", slog.String("user_id", sub.UserID), sl.Err(err))
	}
	if fill != nil {
		fill(&n)
	}
	if err := m.publisher.Publish(ctx, kind, n); err != nil {
		m.log.Error("failed to publish notification", slog.String("kind", kind), slog.String("user_id", sub.UserID), sl.Err(err))
	}
}

// providerFailure wraps err from the billing provider so callers can detect it with errors.As.
func providerFailure(op string, err error) error {
	var pe *models.ProviderError
	if errors.As(err, &pe) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, &models.ProviderError{Op: op, Err: err})
}
