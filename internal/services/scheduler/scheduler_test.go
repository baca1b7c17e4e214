package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storytime-billing/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindSubscriptionsEnding(ctx context.Context, from, to time.Time) ([]*models.BillingNotification, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BillingNotification), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, msg any) error {
	return m.Called(ctx, routingKey, msg).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var fixedNow = time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)

func newService(repo *MockRepository, pub *MockPublisher) *Service {
	s := New(repo, pub, 72*time.Hour, newNoopLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestService_RemindEnding(t *testing.T) {
	end := fixedNow.Add(48 * time.Hour)
	tests := []struct {
		name       string
		setupMocks func(*MockRepository, *MockPublisher)
		want       int
		wantErr    bool
	}{
		{
			name: "publishes each ending subscription",
			setupMocks: func(r *MockRepository, p *MockPublisher) {
				r.On("FindSubscriptionsEnding", mock.Anything, fixedNow, fixedNow.Add(72*time.Hour)).Return([]*models.BillingNotification{
					{UserID: "u1", Email: "a@example.com", Tier: "magic_circle", PeriodEnd: &end},
					{UserID: "u2", Email: "b@example.com", Tier: "dream_weaver", PeriodEnd: &end},
				}, nil)
				p.On("Publish", mock.Anything, models.NotificationSubscriptionEnding, mock.MatchedBy(func(n *models.BillingNotification) bool {
					return n.Kind == models.NotificationSubscriptionEnding
				})).Return(nil).Twice()
			},
			want: 2,
		},
		{
			name: "publish failure skips one",
			setupMocks: func(r *MockRepository, p *MockPublisher) {
				r.On("FindSubscriptionsEnding", mock.Anything, mock.Anything, mock.Anything).Return([]*models.BillingNotification{
					{UserID: "u1", Email: "a@example.com"},
					{UserID: "u2", Email: "b@example.com"},
				}, nil)
				p.On("Publish", mock.Anything, mock.Anything, mock.MatchedBy(func(n *models.BillingNotification) bool {
					return n.UserID == "u1"
				})).Return(errors.New("channel closed")).Once()
				p.On("Publish", mock.Anything, mock.Anything, mock.MatchedBy(func(n *models.BillingNotification) bool {
					return n.UserID == "u2"
				})).Return(nil).Once()
			},
			want: 1,
		},
		{
			name: "nothing ending",
			setupMocks: func(r *MockRepository, _ *MockPublisher) {
				r.On("FindSubscriptionsEnding", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
			},
			want: 0,
		},
		{
			name: "repository error",
			setupMocks: func(r *MockRepository, _ *MockPublisher) {
				r.On("FindSubscriptionsEnding", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			pub := new(MockPublisher)
			tt.setupMocks(repo, pub)

			got, err := newService(repo, pub).RemindEnding(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
			repo.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestService_Run(t *testing.T) {
	t.Run("invalid spec", func(t *testing.T) {
		s := newService(new(MockRepository), new(MockPublisher))
		err := s.Run(context.Background(), "every now and then")
		assert.ErrorContains(t, err, "invalid schedule")
	})

	t.Run("runs immediately and stops with context", func(t *testing.T) {
		called := make(chan struct{}, 1)
		repo := new(MockRepository)
		repo.On("FindSubscriptionsEnding", mock.Anything, mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				select {
				case called <- struct{}{}:
				default:
				}
			}).
			Return(nil, nil)
		s := newService(repo, new(MockPublisher))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx, "0 9 * * *") }()

		select {
		case <-called:
		case <-time.After(time.Second):
			t.Fatal("first run did not happen")
		}
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})
}
