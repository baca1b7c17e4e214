package rabbitmq

import "github.com/magabrotheeeer/storytime-billing/internal/models"

// QueueConfig binds a queue to a routing key.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// BillingQueues are the queues the notifier consumes, one per notification kind.
func BillingQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "billing.checkout_completed", RoutingKey: models.NotificationCheckoutCompleted},
		{QueueName: "billing.payment_failed", RoutingKey: models.NotificationPaymentFailed},
		{QueueName: "billing.subscription_ending", RoutingKey: models.NotificationSubscriptionEnding},
	}
}
