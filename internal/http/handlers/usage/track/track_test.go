package track

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

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/storytime-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storytime-billing/internal/metrics"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
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

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordUsage(ctx context.Context, userID string, delta models.UsageDelta, anchor *time.Time) (models.UsageRecord, error) {
	args := m.Called(ctx, userID, delta, anchor)
	return args.Get(0).(models.UsageRecord), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestTrackHandler(t *testing.T) {
	start := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	sub := &models.Subscription{UserID: "u1", Tier: tiers.EnchantedLibrary, Status: models.StatusTrialing, PeriodStart: &start}

	tests := []struct {
		name           string
		body           string
		setupMocks     func(*MockSubscriptions, *MockRecorder)
		expectedStatus int
		expectedBody   string
		premiumDelta   float64
	}{
		{
			name: "premium story",
			body: `{"used_premium_voice":true}`,
			setupMocks: func(s *MockSubscriptions, r *MockRecorder) {
				s.On("GetUserSubscription", mock.Anything, "u1").Return(sub, nil)
				r.On("RecordUsage", mock.Anything, "u1", models.UsageDelta{PremiumVoice: true}, &start).
					Return(models.UsageRecord{UserID: "u1", StoriesGenerated: 4, PremiumVoicesUsed: 2}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"stories_generated":4`,
			premiumDelta:   1,
		},
		{
			name: "standard story with empty body",
			setupMocks: func(s *MockSubscriptions, r *MockRecorder) {
				s.On("GetUserSubscription", mock.Anything, "u1").Return(sub, nil)
				r.On("RecordUsage", mock.Anything, "u1", models.UsageDelta{}, &start).
					Return(models.UsageRecord{UserID: "u1", StoriesGenerated: 1}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"premium_voices_used":0`,
		},
		{
			name: "ledger failure",
			setupMocks: func(s *MockSubscriptions, r *MockRecorder) {
				s.On("GetUserSubscription", mock.Anything, "u1").Return(sub, nil)
				r.On("RecordUsage", mock.Anything, "u1", models.UsageDelta{}, &start).
					Return(models.UsageRecord{}, errors.New("write conflict"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"Internal server error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := new(MockSubscriptions)
			ledger := new(MockRecorder)
			tt.setupMocks(subs, ledger)
			counter := metrics.UsageRecorded.WithLabelValues(string(tiers.EnchantedLibrary), "premium")
			before := testutil.ToFloat64(counter)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/usage/track", strings.NewReader(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, "u1"))
			rec := httptest.NewRecorder()

			New(newNoopLogger(), subs, ledger).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			assert.Equal(t, tt.premiumDelta, testutil.ToFloat64(counter)-before)
			subs.AssertExpectations(t)
			ledger.AssertExpectations(t)
		})
	}
}
