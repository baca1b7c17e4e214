package paymentprovider

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/magabrotheeeer/storytime-billing/internal/models"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// checkoutSession is the part of a checkout.session object the billing flow reads.
type checkoutSession struct {
	ID           string            `json:"id"`
	Mode         string            `json:"mode"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type period struct {
	Start int64 `json:"current_period_start"`
	End   int64 `json:"current_period_end"`
}

// subscription accepts the period both on the object (older API versions)
// and on its first item.
type subscription struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	period
	Items struct {
		Data []struct {
			ID    string `json:"id"`
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			period
		} `json:"data"`
	} `json:"items"`
}

type invoice struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	AmountDue  int64  `json:"amount_due"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
}

// ParseWebhook verifies payload against the Stripe-Signature header and
// decodes the billing events the service handles. Other event types come back
// with only ID and Type set.
func ParseWebhook(payload []byte, signature, secret string) (models.BillingEvent, error) {
	const op = "paymentprovider.ParseWebhook"

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return models.BillingEvent{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidSignature, err)
	}

	out := models.BillingEvent{ID: event.ID, Type: models.EventType(event.Type)}
	if event.Data == nil {
		return out, nil
	}
	raw := event.Data.Raw

	switch out.Type {
	case models.EventCheckoutCompleted:
		var s checkoutSession
		if err := json.Unmarshal(raw, &s); err != nil {
			return out, fmt.Errorf("%s: decode checkout session: %w", op, err)
		}
		out.Checkout = &models.CheckoutEvent{
			SessionID:      s.ID,
			Mode:           s.Mode,
			CustomerID:     s.Customer,
			SubscriptionID: s.Subscription,
			Metadata:       s.Metadata,
		}
	case models.EventSubscriptionUpdated, models.EventSubscriptionDeleted:
		var s subscription
		if err := json.Unmarshal(raw, &s); err != nil {
			return out, fmt.Errorf("%s: decode subscription: %w", op, err)
		}
		ps := models.ProviderSubscription{
			ID:                s.ID,
			CustomerID:        s.Customer,
			Status:            s.Status,
			CancelAtPeriodEnd: s.CancelAtPeriodEnd,
			PeriodStart:       unixTime(s.Start),
			PeriodEnd:         unixTime(s.End),
		}
		if len(s.Items.Data) > 0 {
			item := s.Items.Data[0]
			ps.ItemID = item.ID
			ps.PriceID = item.Price.ID
			if item.Start != 0 {
				ps.PeriodStart = unixTime(item.Start)
				ps.PeriodEnd = unixTime(item.End)
			}
		}
		out.Subscription = &ps
	case models.EventPaymentFailed, models.EventPaymentSucceeded:
		var inv invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return out, fmt.Errorf("%s: decode invoice: %w", op, err)
		}
		subID := inv.Subscription
		if subID == "" {
			subID = inv.Parent.SubscriptionDetails.Subscription
		}
		out.Invoice = &models.InvoiceEvent{
			InvoiceID:      inv.ID,
			CustomerID:     inv.Customer,
			SubscriptionID: subID,
			AmountDue:      inv.AmountDue,
			AmountPaid:     inv.AmountPaid,
			Currency:       inv.Currency,
		}
	}
	return out, nil
}

// WebhookVerifier binds ParseWebhook to an endpoint secret.
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier creates a WebhookVerifier for secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Verify parses payload signed with the verifier's secret.
func (v *WebhookVerifier) Verify(payload []byte, signature string) (models.BillingEvent, error) {
	return ParseWebhook(payload, signature, v.secret)
}
