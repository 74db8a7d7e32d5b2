package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Payment processor webhooks by event and outcome",
	}, []string{"event", "outcome"})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_reconciliations_total",
		Help: "Booking payment status recomputations by resulting status",
	}, []string{"payment_status"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"route"})

	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Transactional emails by template and outcome",
	}, []string{"template", "outcome"})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_requests_total",
		Help: "Calls to the payment processor API by operation and outcome",
	}, []string{"op", "outcome"})
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
	OutcomeIgnored  = "ignored"
)
