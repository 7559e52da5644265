package enrich

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	adapterCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "risk",
		Subsystem: "enrich",
		Name:      "adapter_calls_total",
		Help:      "Adapter invocations by field and outcome (data, empty, failed, panic).",
	}, []string{"field", "outcome"})

	fieldSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "risk",
		Subsystem: "enrich",
		Name:      "field_skips_total",
		Help:      "Fields not dispatched in a pass, by reason.",
	}, []string{"field", "reason"})

	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "risk",
		Subsystem: "enrich",
		Name:      "cache_hits_total",
		Help:      "Fields satisfied from the result cache.",
	}, []string{"field"})

	passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "risk",
		Subsystem: "enrich",
		Name:      "pass_duration_seconds",
		Help:      "Wall time of one enrichment pass by terminal state.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"state"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "risk",
		Subsystem: "enrich",
		Name:      "queue_depth",
		Help:      "Enrichment jobs waiting for a worker.",
	})
)
