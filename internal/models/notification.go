package models

import "time"

// Notification kinds double as RabbitMQ routing keys.
const (
	NotificationCheckoutCompleted  = "checkout_completed"
	NotificationPaymentFailed      = "payment_failed"
	NotificationSubscriptionEnding = "subscription_ending"
)

// BillingNotification is the message body published for the notifier.
type BillingNotification struct {
	Kind      string     `json:"kind"`
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	Tier      string     `json:"tier"`
	PeriodEnd *time.Time `json:"period_end,omitempty"`
	AmountDue int64      `json:"amount_due,omitempty"`
	Currency  string     `json:"currency,omitempty"`
}
