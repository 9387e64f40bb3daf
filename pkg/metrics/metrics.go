// Package metrics exposes Prometheus telemetry for the instance pool and
// per-frame processing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tilerunner"

// Metrics bundles the collectors written by the session and read from the
// /metrics endpoint.
type Metrics struct {
	FramesTotal   prometheus.Counter
	FrameFailures prometheus.Counter
	TilesTotal    prometheus.Counter
	PoolWait      prometheus.Histogram
	InferLatency  prometheus.Histogram
	InstancesBusy prometheus.Gauge
}

// New registers the collectors with reg. Pass a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "processed_total",
			Help:      "Frames processed to completion.",
		}),
		FrameFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "failures_total",
			Help:      "Frames whose inference call failed.",
		}),
		TilesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "tiles_total",
			Help:      "Tiles executed across all frames.",
		}),
		PoolWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "wait_seconds",
			Help:      "Time spent blocked on pool admission.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		InferLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "inference_seconds",
			Help:      "Wall time of one inference call, copies included.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		InstancesBusy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "instances_busy",
			Help:      "Instances currently checked out.",
		}),
	}
}
