package metrics

import (
	"expvar"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// expvar 计数器：轻量进程内观测，/debug/vars 可见
var (
	TradesIngested  = expvar.NewInt("trades_ingested")
	OrderEvents     = expvar.NewInt("order_events")
	MalformedEvents = expvar.NewInt("malformed_events")
	SnapshotSaves   = expvar.NewInt("snapshot_saves")
	SnapshotLoads   = expvar.NewInt("snapshot_loads")
)

// prometheus 指标：/metrics 抓取
var (
	SignalsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowsense_signals_emitted_total",
		Help: "Detection signals emitted, by type.",
	}, []string{"type"})

	Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowsense_evaluations_total",
		Help: "Confluence evaluations, decided vs passed.",
	}, []string{"outcome"})

	AdvisoryCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowsense_advisory_calls_total",
		Help: "Advisory provider calls, by provider and result.",
	}, []string{"provider", "result"})

	AdvisoryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flowsense_advisory_latency_seconds",
		Help:    "Advisory provider call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	ActiveBigFish = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowsense_bigfish_active",
		Help: "Currently tracked big-fish levels.",
	})

	TrackedLevels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowsense_delta_levels",
		Help: "Price levels tracked by the delta ledger.",
	})
)
