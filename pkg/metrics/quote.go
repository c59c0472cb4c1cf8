package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the counters below.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

// QuoteMetrics records pricing and persistence activity.
type QuoteMetrics struct {
	pricingDuration *prometheus.HistogramVec
	pricedTiers     *prometheus.CounterVec
	documentWrites  *prometheus.CounterVec
	numberRetries   *prometheus.CounterVec
	stockAdjust     *prometheus.CounterVec
	historyFailures prometheus.Counter
	outboxPublished *prometheus.CounterVec
	outboxPending   prometheus.Gauge
	outboxOldest    prometheus.Gauge
}

// NewQuoteMetrics registers the metrics on the provided registerer. A nil
// registerer yields a recorder that drops everything.
func NewQuoteMetrics(reg prometheus.Registerer) *QuoteMetrics {
	if reg == nil {
		return &QuoteMetrics{}
	}
	m := &QuoteMetrics{
		pricingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricing_duration_seconds",
			Help:    "Duration of tier pricing calls in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"product_class", "outcome"}),
		pricedTiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_tiers_total",
			Help: "Quantity tiers priced.",
		}, []string{"product_class"}),
		documentWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "document_writes_total",
			Help: "Quotation and sample request write attempts by outcome.",
		}, []string{"document", "outcome"}),
		numberRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "document_number_retries_total",
			Help: "Document numbers regenerated after a uniqueness collision.",
		}, []string{"document"}),
		stockAdjust: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_adjustments_total",
			Help: "Stock adjustments by outcome.",
		}, []string{"outcome"}),
		historyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_history_failures_total",
			Help: "Stock adjustments whose history row could not be written.",
		}),
		outboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Outbox events handed to the broker by outcome.",
		}, []string{"event_type", "outcome"}),
		outboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_backlog_events",
			Help: "Outbox events waiting to be published.",
		}),
		outboxOldest: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_oldest_pending_seconds",
			Help: "Age of the oldest unpublished outbox event.",
		}),
	}
	reg.MustRegister(
		m.pricingDuration,
		m.pricedTiers,
		m.documentWrites,
		m.numberRetries,
		m.stockAdjust,
		m.historyFailures,
		m.outboxPublished,
		m.outboxPending,
		m.outboxOldest,
	)
	return m
}

// ObservePricing records one pricing call.
func (m *QuoteMetrics) ObservePricing(class string, tiers int, duration time.Duration, err error) {
	if m == nil || m.pricingDuration == nil {
		return
	}
	class = normalizeLabel(class)
	m.pricingDuration.WithLabelValues(class, outcomeOf(err)).Observe(duration.Seconds())
	if err == nil && tiers > 0 {
		m.pricedTiers.WithLabelValues(class).Add(float64(tiers))
	}
}

// RecordDocumentWrite counts a quotation or sample request write.
func (m *QuoteMetrics) RecordDocumentWrite(document, outcome string) {
	if m == nil || m.documentWrites == nil {
		return
	}
	m.documentWrites.WithLabelValues(normalizeLabel(document), normalizeLabel(outcome)).Inc()
}

// IncNumberRetry counts a regenerated document number.
func (m *QuoteMetrics) IncNumberRetry(document string) {
	if m == nil || m.numberRetries == nil {
		return
	}
	m.numberRetries.WithLabelValues(normalizeLabel(document)).Inc()
}

// RecordStockAdjustment counts a stock adjustment.
func (m *QuoteMetrics) RecordStockAdjustment(outcome string) {
	if m == nil || m.stockAdjust == nil {
		return
	}
	m.stockAdjust.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncHistoryFailure counts a lost inventory history row.
func (m *QuoteMetrics) IncHistoryFailure() {
	if m == nil || m.historyFailures == nil {
		return
	}
	m.historyFailures.Inc()
}

// RecordOutboxPublish counts one outbox publish attempt.
func (m *QuoteMetrics) RecordOutboxPublish(eventType string, err error) {
	if m == nil || m.outboxPublished == nil {
		return
	}
	m.outboxPublished.WithLabelValues(normalizeLabel(eventType), outcomeOf(err)).Inc()
}

// RecordOutboxBacklog sets the backlog gauges.
func (m *QuoteMetrics) RecordOutboxBacklog(pending int64, oldestAge time.Duration) {
	if m == nil || m.outboxPending == nil {
		return
	}
	m.outboxPending.Set(float64(pending))
	m.outboxOldest.Set(oldestAge.Seconds())
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
