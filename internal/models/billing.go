package models

import "time"

// EventType is a normalized billing provider event type.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.session.completed"
	EventSubscriptionUpdated EventType = "customer.subscription.updated"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
	EventPaymentFailed       EventType = "invoice.payment_failed"
	EventPaymentSucceeded    EventType = "invoice.payment_succeeded"
)

// ProviderSubscription is the provider's view of a subscription.
type ProviderSubscription struct {
	ID                string
	CustomerID        string
	Status            string
	ItemID            string
	PriceID           string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
}

// CheckoutEvent is a completed checkout session.
type CheckoutEvent struct {
	SessionID      string
	Mode           string
	CustomerID     string
	SubscriptionID string
	Metadata       map[string]string
}

// InvoiceEvent is an invoice payment outcome.
type InvoiceEvent struct {
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
	AmountDue      int64
	AmountPaid     int64
	Currency       string
}

// BillingEvent is a verified webhook delivery. Exactly one payload is set for
// the handled types.
type BillingEvent struct {
	ID           string
	Type         EventType
	Checkout     *CheckoutEvent
	Subscription *ProviderSubscription
	Invoice      *InvoiceEvent
}

// CheckoutSession is a hosted checkout page created for a user.
type CheckoutSession struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// CheckoutParams describe a subscription checkout.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// ProviderError is a failed billing provider call. Type and Code carry the
// provider's classification when it returned one.
type ProviderError struct {
	Op   string
	Type string
	Code string
	Err  error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Code != "":
		return e.Op + ": " + e.Type + "/" + e.Code + ": " + e.Err.Error()
	case e.Type != "":
		return e.Op + ": " + e.Type + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Err.Error()
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }
