package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
)

// Metrics holds all Prometheus metrics for the ledger daemon.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	invoicesGenerated *prometheus.CounterVec
	generationErrors  *prometheus.CounterVec
	paymentsProcessed *prometheus.CounterVec
	amountCollected   *prometheus.CounterVec
	creditsCreated    prometheus.Counter
	creditsExpired    prometheus.Counter
	finesEscalated    *prometheus.CounterVec
	remindersSent     *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		invoicesGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_invoices_generated_total",
				Help: "Invoices generated per company.",
			},
			[]string{"company"},
		),
		generationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_generation_errors_total",
				Help: "Per-account failures during bulk invoice generation.",
			},
			[]string{"company"},
		),
		paymentsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_payments_processed_total",
				Help: "Payments processed by final status.",
			},
			[]string{"status"},
		),
		amountCollected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_amount_collected_total",
				Help: "Gross amount collected per company.",
			},
			[]string{"company"},
		),
		creditsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_credit_balances_created_total",
				Help: "Credit balances created from payment surplus.",
			},
		),
		creditsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_credit_balances_expired_total",
				Help: "Credit balances expired by the daily sweep.",
			},
		),
		finesEscalated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_fines_escalated_total",
				Help: "Fine escalations by target level.",
			},
			[]string{"level"},
		),
		remindersSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_reminders_sent_total",
				Help: "Payment reminders by delivery outcome.",
			},
			[]string{"outcome"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordOperationDuration records the duration of a ledger operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrInvoicesGenerated increments the generated-invoice counter.
func (m *Metrics) IncrInvoicesGenerated(company string) {
	m.invoicesGenerated.WithLabelValues(company).Inc()
}

// IncrGenerationError increments the per-account generation failure counter.
func (m *Metrics) IncrGenerationError(company string) {
	m.generationErrors.WithLabelValues(company).Inc()
}

// IncrPaymentProcessed counts a payment reaching a final status.
func (m *Metrics) IncrPaymentProcessed(status string) {
	m.paymentsProcessed.WithLabelValues(status).Inc()
}

// AddAmountCollected accumulates gross collected amounts.
func (m *Metrics) AddAmountCollected(company string, amount decimal.Decimal) {
	f, _ := amount.Float64()
	m.amountCollected.WithLabelValues(company).Add(f)
}

// IncrCreditCreated counts a credit balance created from surplus.
func (m *Metrics) IncrCreditCreated() { m.creditsCreated.Inc() }

// IncrCreditExpired counts a credit balance expired by the sweep.
func (m *Metrics) IncrCreditExpired() { m.creditsExpired.Inc() }

// IncrFineEscalated counts an escalation to the given level.
func (m *Metrics) IncrFineEscalated(level string) {
	m.finesEscalated.WithLabelValues(level).Inc()
}

// IncrReminderSent counts a reminder delivery attempt by outcome.
func (m *Metrics) IncrReminderSent(outcome string) {
	m.remindersSent.WithLabelValues(outcome).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// LedgerSnapshot is a point-in-time view of the ledger counters, served by
// GET /v1/metrics/ledger.
type LedgerSnapshot struct {
	PaymentsProcessed float64 `json:"payments_processed"`
	PaymentsReversed  float64 `json:"payments_reversed"`
	CreditsCreated    float64 `json:"credits_created"`
	CreditsExpired    float64 `json:"credits_expired"`
	RemindersSent     float64 `json:"reminders_sent"`
	RemindersFailed   float64 `json:"reminders_failed"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
}

// GetLedgerSnapshot gathers current counter values.
// Prometheus counters expose cumulative values.
func (m *Metrics) GetLedgerSnapshot() *LedgerSnapshot {
	hits := getCounterValue(m.cacheHits, "fee_structure")
	misses := getCounterValue(m.cacheMisses, "fee_structure")

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &LedgerSnapshot{
		PaymentsProcessed: getCounterValue(m.paymentsProcessed, "processed"),
		PaymentsReversed:  getCounterValue(m.paymentsProcessed, "reversed"),
		CreditsCreated:    getPlainCounterValue(m.creditsCreated),
		CreditsExpired:    getPlainCounterValue(m.creditsExpired),
		RemindersSent:     getCounterValue(m.remindersSent, "delivered"),
		RemindersFailed:   getCounterValue(m.remindersSent, "failed"),
		CacheHitRate:      hitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getPlainCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
