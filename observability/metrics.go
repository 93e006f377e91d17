package observability

import (
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

type ledgerMetrics struct {
	payments      *prometheus.CounterVec
	paymentVolume *prometheus.CounterVec
	settlements   *prometheus.CounterVec
	contributions *prometheus.CounterVec
	snapshots     prometheus.Counter
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// RPCMetrics returns the lazily-initialised registry used to record JSON-RPC
// handler activity.
func RPCMetrics() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "revledger",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "revledger",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "revledger",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
		)
	})
	return rpcRegistry
}

// Observe records the outcome of one RPC request.
func (m *rpcMetrics) Observe(method string, errCode int, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if errCode != 0 {
		outcome = "error"
		m.errors.WithLabelValues(method, intLabel(errCode)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// LedgerMetrics returns the registry tracking ledger business activity.
func LedgerMetrics() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			payments: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "revledger",
				Subsystem: "ledger",
				Name:      "payments_total",
				Help:      "Total payments recorded segmented by currency.",
			}, []string{"currency"}),
			paymentVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "revledger",
				Subsystem: "ledger",
				Name:      "payment_volume",
				Help:      "Cumulative gross payment volume segmented by currency.",
			}, []string{"currency"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "revledger",
				Subsystem: "ledger",
				Name:      "settlements_total",
				Help:      "Total claim settlements segmented by path and currency.",
			}, []string{"path", "currency"}),
			contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "revledger",
				Subsystem: "ledger",
				Name:      "contributions_total",
				Help:      "Contribution lifecycle transitions segmented by outcome.",
			}, []string{"outcome"}),
			snapshots: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "revledger",
				Subsystem: "ledger",
				Name:      "snapshots_closed_total",
				Help:      "Total registry snapshots closed by payment receipts.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.payments,
			ledgerRegistry.paymentVolume,
			ledgerRegistry.settlements,
			ledgerRegistry.contributions,
			ledgerRegistry.snapshots,
		)
	})
	return ledgerRegistry
}

// RecordPayment accounts one received payment.
func (m *ledgerMetrics) RecordPayment(currency string, gross *big.Int) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(currency).Inc()
	m.paymentVolume.WithLabelValues(currency).Add(amountValue(gross))
	m.snapshots.Inc()
}

// RecordSettlement accounts one claim settlement on the named path.
func (m *ledgerMetrics) RecordSettlement(path, currency string, amount *big.Int) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(path, currency).Add(amountValue(amount))
}

// RecordContribution accounts one lifecycle transition.
func (m *ledgerMetrics) RecordContribution(outcome string) {
	if m == nil {
		return
	}
	m.contributions.WithLabelValues(outcome).Inc()
}

func amountValue(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	if math.IsInf(value, 0) || math.IsNaN(value) || value < 0 {
		return 0
	}
	return value
}

func intLabel(code int) string {
	// JSON-RPC codes are negative; a stable label keeps cardinality bounded.
	switch code {
	case -32700:
		return "parse_error"
	case -32600:
		return "invalid_request"
	case -32601:
		return "method_not_found"
	case -32602:
		return "invalid_params"
	case -32001:
		return "unauthorized"
	case -32020:
		return "rate_limited"
	default:
		return "server_error"
	}
}
