package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout outcomes and promo redemptions.
type CheckoutMetrics struct {
	duration      *prometheus.HistogramVec
	ordersCreated *prometheus.CounterVec
	failures      *prometheus.CounterVec
	redemptions   prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"payment_method"})
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created, by payment method.",
	}, []string{"payment_method"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures_total",
		Help: "Failed checkout attempts, by reason.",
	}, []string{"reason"})
	redemptions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "promo_redemptions_total",
		Help: "Promo codes consumed by successful checkouts.",
	})
	reg.MustRegister(duration, ordersCreated, failures, redemptions)
	return &CheckoutMetrics{
		duration:      duration,
		ordersCreated: ordersCreated,
		failures:      failures,
		redemptions:   redemptions,
	}
}

// ObserveDuration records the duration of a checkout attempt.
func (c *CheckoutMetrics) ObserveDuration(paymentMethod string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(paymentMethod)).Observe(duration.Seconds())
}

// IncOrderCreated increments the created-orders counter.
func (c *CheckoutMetrics) IncOrderCreated(paymentMethod string) {
	if c == nil || c.ordersCreated == nil {
		return
	}
	c.ordersCreated.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

// IncFailure increments the failure counter for the given reason.
func (c *CheckoutMetrics) IncFailure(reason string) {
	if c == nil || c.failures == nil {
		return
	}
	c.failures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncPromoRedemption increments the promo redemption counter.
func (c *CheckoutMetrics) IncPromoRedemption() {
	if c == nil || c.redemptions == nil {
		return
	}
	c.redemptions.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
