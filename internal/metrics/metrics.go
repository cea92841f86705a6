// Package metrics exposes the engine's Prometheus counters, per spec.md
// §7: reads, writes, removes, transactions, rollbacks, vacuums,
// evictions, broadcasts, plus a timed-region histogram and the
// confidentiality-degraded gauge spec.md §4.2 requires.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_reads_total",
			Help: "Total number of get operations by outcome.",
		},
		[]string{"namespace", "outcome"},
	)

	WritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_writes_total",
			Help: "Total number of set operations by outcome.",
		},
		[]string{"namespace", "outcome"},
	)

	RemovesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_removes_total",
			Help: "Total number of remove operations by outcome.",
		},
		[]string{"namespace", "outcome"},
	)

	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_transactions_total",
			Help: "Total number of transaction() calls by outcome.",
		},
		[]string{"namespace", "outcome"},
	)

	RollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_rollbacks_total",
			Help: "Total number of journaled rollbacks by journal record kind (SET_ROLLBACK, REMOVE_ROLLBACK).",
		},
		[]string{"namespace", "kind"},
	)

	VacuumsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_vacuums_total",
			Help: "Total number of vacuum passes run.",
		},
	)

	VacuumedItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_vacuumed_items_total",
			Help: "Total number of expired items removed by vacuum.",
		},
		[]string{"namespace"},
	)

	EvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_evictions_total",
			Help: "Total number of items removed by the eviction engine.",
		},
		[]string{"namespace", "policy"},
	)

	BroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_broadcasts_total",
			Help: "Total number of change events published by type.",
		},
		[]string{"namespace", "type"},
	)

	LockAcquireFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_lock_acquire_failures_total",
			Help: "Total number of lock acquire attempts that found the lease held by another, unexpired owner.",
		},
		[]string{"namespace"},
	)

	CorruptReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_corrupt_reads_total",
			Help: "Total number of reads that found a marker but missing/malformed metadata or chunks.",
		},
		[]string{"namespace"},
	)

	OpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lsmkv_op_duration_seconds",
			Help:    "Duration of timed engine regions by operation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// CryptoDegraded is set to 1 whenever a namespace is constructed with
	// the degenerate (non-confidential) cipher instead of real AEAD, per
	// spec.md §4.2's requirement to flag this via metrics.
	CryptoDegraded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lsmkv_crypto_degraded",
			Help: "1 if any namespace is using the non-confidential degenerate cipher, 0 otherwise.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ReadsTotal,
		WritesTotal,
		RemovesTotal,
		TransactionsTotal,
		RollbacksTotal,
		VacuumsTotal,
		VacuumedItemsTotal,
		EvictionsTotal,
		BroadcastsTotal,
		LockAcquireFailuresTotal,
		CorruptReadsTotal,
		OpDuration,
		CryptoDegraded,
	)
}

// Handler returns the Prometheus scrape handler. Mounting it on an HTTP
// server is the host's job; lsmkv only registers the collectors.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times a region and records it to OpDuration on Stop.
type Timer struct {
	start time.Time
	op    string
}

// NewTimer starts timing op.
func NewTimer(op string) *Timer {
	return &Timer{start: time.Now(), op: op}
}

// Stop records the elapsed duration and returns it.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	OpDuration.WithLabelValues(t.op).Observe(d.Seconds())
	return d
}
