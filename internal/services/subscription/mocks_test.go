package subscription

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/storytime-billing/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) EnsureUser(ctx context.Context, user models.User, sub models.Subscription) (bool, error) {
	args := m.Called(ctx, user, sub)
	return args.Bool(0), args.Error(1)
}

func (m *RepoMock) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *RepoMock) GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *RepoMock) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

type ProviderMock struct{ mock.Mock }

func (m *ProviderMock) GetSubscription(ctx context.Context, subscriptionID string) (models.ProviderSubscription, error) {
	args := m.Called(ctx, subscriptionID)
	return args.Get(0).(models.ProviderSubscription), args.Error(1)
}

func (m *ProviderMock) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, itemID, priceID string, prorate bool) (models.ProviderSubscription, error) {
	args := m.Called(ctx, subscriptionID, itemID, priceID, prorate)
	return args.Get(0).(models.ProviderSubscription), args.Error(1)
}

func (m *ProviderMock) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (models.ProviderSubscription, error) {
	args := m.Called(ctx, subscriptionID, cancel)
	return args.Get(0).(models.ProviderSubscription), args.Error(1)
}

func (m *ProviderMock) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *ProviderMock) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	args := m.Called(ctx, userID, email)
	return args.String(0), args.Error(1)
}

func (m *ProviderMock) CreateCheckoutSession(ctx context.Context, params models.CheckoutParams) (models.CheckoutSession, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(models.CheckoutSession), args.Error(1)
}

func (m *ProviderMock) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *CacheMock) Invalidate(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
