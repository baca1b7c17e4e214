package check

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/storytime-billing/internal/entitlement"
	"github.com/magabrotheeeer/storytime-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/services/subscription"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

type MockSubscriptions struct {
	mock.Mock
}

func (m *MockSubscriptions) GetUserSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if res := args.Get(0); res != nil {
		return res.(*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) CanGenerateStory(ctx context.Context, userID string, tier tiers.Tier, anchor *time.Time, wantsPremiumVoice bool) (entitlement.Decision, error) {
	args := m.Called(ctx, userID, tier, anchor, wantsPremiumVoice)
	return args.Get(0).(entitlement.Decision), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestCheckHandler(t *testing.T) {
	start := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	active := &models.Subscription{UserID: "u1", Tier: tiers.DreamWeaver, Status: models.StatusActive, PeriodStart: &start}
	lapsed := &models.Subscription{UserID: "u1", Tier: tiers.MagicCircle, Status: models.StatusCanceled}

	tests := []struct {
		name           string
		userID         string
		body           string
		setupMocks     func(*MockSubscriptions, *MockEvaluator)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "allowed with premium voice",
			userID: "u1",
			body:   `{"use_premium_voice":true}`,
			setupMocks: func(s *MockSubscriptions, e *MockEvaluator) {
				s.On("GetUserSubscription", mock.Anything, "u1").Return(active, nil)
				e.On("CanGenerateStory", mock.Anything, "u1", tiers.DreamWeaver, &start, true).
					Return(entitlement.Decision{Allowed: true}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"allowed":true`,
		},
		{
			name:   "empty body and lapsed subscription evaluates free tier",
			userID: "u1",
			setupMocks: func(s *MockSubscriptions, e *MockEvaluator) {
				s.On("GetUserSubscription", mock.Anything, "u1").Return(lapsed, nil)
				e.On("CanGenerateStory", mock.Anything, "u1", tiers.Free, (*time.Time)(nil), false).
					Return(entitlement.Decision{Reason: "Monthly story limit reached (3/3)"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"reason":"Monthly story limit reached (3/3)"`,
		},
		{
			name:           "malformed body",
			userID:         "u1",
			body:           `{"use_premium_voice":`,
			setupMocks:     func(*MockSubscriptions, *MockEvaluator) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:   "unknown user",
			userID: "ghost",
			setupMocks: func(s *MockSubscriptions, _ *MockEvaluator) {
				s.On("GetUserSubscription", mock.Anything, "ghost").Return(nil, subscription.ErrSubscriptionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"status":"Error","error":"No subscription found"}`,
		},
		{
			name:   "ledger failure",
			userID: "u1",
			setupMocks: func(s *MockSubscriptions, e *MockEvaluator) {
				s.On("GetUserSubscription", mock.Anything, "u1").Return(active, nil)
				e.On("CanGenerateStory", mock.Anything, "u1", tiers.DreamWeaver, &start, false).
					Return(entitlement.Decision{}, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "no identity",
			setupMocks:     func(*MockSubscriptions, *MockEvaluator) {},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := new(MockSubscriptions)
			eval := new(MockEvaluator)
			tt.setupMocks(subs, eval)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/usage/check", strings.NewReader(tt.body))
			if tt.userID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, tt.userID))
			}
			rec := httptest.NewRecorder()

			New(newNoopLogger(), subs, eval).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectedBody)
			}
			subs.AssertExpectations(t)
			eval.AssertExpectations(t)
		})
	}
}
