// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storytime"

var (
	// EntitlementDecisions counts entitlement checks by quota and outcome.
	EntitlementDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entitlement",
		Name:      "decisions_total",
		Help:      "Entitlement decisions by quota and outcome (allowed/denied).",
	}, []string{"quota", "outcome"})

	// UsageRecorded counts metered actions written to the ledger.
	UsageRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "usage",
		Name:      "recorded_total",
		Help:      "Stories recorded in the usage ledger by tier and voice kind.",
	}, []string{"tier", "voice"})

	// WebhookEvents counts billing provider events by type and result.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Billing provider webhook events by type and result.",
	}, []string{"event_type", "result"})

	// WebhookDuration tracks webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Billing webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// SubscriptionChanges counts management actions by kind.
	SubscriptionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "subscription_changes_total",
		Help:      "Subscription management actions (upgrade, downgrade, cancel, reactivate).",
	}, []string{"action"})

	// NotificationsSent counts billing emails by kind and result.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifier",
		Name:      "emails_total",
		Help:      "Billing notification emails by kind and result.",
	}, []string{"kind", "result"})
)

// Outcome renders a boolean decision as a label value.
func Outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
