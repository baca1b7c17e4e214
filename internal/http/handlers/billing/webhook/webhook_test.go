package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/magabrotheeeer/storytime-billing/internal/models"
	"github.com/magabrotheeeer/storytime-billing/internal/paymentprovider"
	"github.com/magabrotheeeer/storytime-billing/internal/services/subscription"
)

const secret = "whsec_test_123"

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) HandleEvent(ctx context.Context, ev models.BillingEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func signedRequest(t *testing.T, payload []byte, key string) *http.Request {
	t.Helper()
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    key,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func TestWebhookHandler(t *testing.T) {
	payload := []byte(`{"id":"evt_42","object":"event","type":"invoice.payment_failed",` +
		`"data":{"object":{"id":"in_1","customer":"cus_1","subscription":"sub_1","amount_due":1299,"currency":"usd"}}}`)
	isPaymentFailed := mock.MatchedBy(func(ev models.BillingEvent) bool {
		return ev.ID == "evt_42" && ev.Type == models.EventPaymentFailed && ev.Invoice != nil && ev.Invoice.SubscriptionID == "sub_1"
	})

	tests := []struct {
		name           string
		req            func(t *testing.T) *http.Request
		setupMock      func(*MockEvents)
		expectedStatus int
	}{
		{
			name:           "processed",
			req:            func(t *testing.T) *http.Request { return signedRequest(t, payload, secret) },
			setupMock:      func(m *MockEvents) { m.On("HandleEvent", mock.Anything, isPaymentFailed).Return(nil).Once() },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wrong secret",
			req:            func(t *testing.T) *http.Request { return signedRequest(t, payload, "whsec_wrong") },
			setupMock:      func(*MockEvents) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "missing signature",
			req: func(*testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", bytes.NewReader(payload))
			},
			setupMock:      func(*MockEvents) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unusable event is not retried",
			req:  func(t *testing.T) *http.Request { return signedRequest(t, payload, secret) },
			setupMock: func(m *MockEvents) {
				m.On("HandleEvent", mock.Anything, isPaymentFailed).
					Return(fmt.Errorf("subscription.OnPaymentFailed: %w", subscription.ErrMissingCustomerReference)).Once()
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "transient failure asks for redelivery",
			req:  func(t *testing.T) *http.Request { return signedRequest(t, payload, secret) },
			setupMock: func(m *MockEvents) {
				m.On("HandleEvent", mock.Anything, isPaymentFailed).Return(errors.New("db down")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := new(MockEvents)
			tt.setupMock(events)
			h := New(newNoopLogger(), paymentprovider.NewWebhookVerifier(secret), events)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req(t))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			events.AssertExpectations(t)
		})
	}
}

func TestWebhookHandler_BodyTooLarge(t *testing.T) {
	events := new(MockEvents)
	h := New(newNoopLogger(), paymentprovider.NewWebhookVerifier(secret), events)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", bytes.NewReader(make([]byte, maxBodyBytes+1)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	events.AssertNotCalled(t, "HandleEvent", mock.Anything, mock.Anything)
}
