// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fibdev

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the device's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	opens            prometheus.Counter
	busyRejections   prometheus.Counter
	reads            prometheus.Counter
	sessionOpen      prometheus.Gauge
	computeDuration  prometheus.Histogram
	lastComputeNanos prometheus.Gauge
}

// NewMetrics creates the device collectors and registers them with
// registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	metrics := &Metrics{
		opens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fibdrv_opens_total",
			Help: "Sessions successfully opened.",
		}),
		busyRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fibdrv_busy_rejections_total",
			Help: "Open attempts rejected because a session was live.",
		}),
		reads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fibdrv_reads_total",
			Help: "Completed reads.",
		}),
		sessionOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fibdrv_session_open",
			Help: "1 while a session holds the device, 0 otherwise.",
		}),
		computeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fibdrv_compute_duration_seconds",
			Help:    "Engine computation time per read.",
			Buckets: prometheus.ExponentialBuckets(1e-7, 4, 10), // 100ns to ~26ms
		}),
		lastComputeNanos: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fibdrv_last_compute_nanoseconds",
			Help: "Engine computation time of the most recent read.",
		}),
	}

	for _, collector := range []prometheus.Collector{
		metrics.opens,
		metrics.busyRejections,
		metrics.reads,
		metrics.sessionOpen,
		metrics.computeDuration,
		metrics.lastComputeNanos,
	} {
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("registering device metrics: %w", err)
		}
	}
	return metrics, nil
}

func (m *Metrics) opened() {
	if m == nil {
		return
	}
	m.opens.Inc()
	m.sessionOpen.Set(1)
}

func (m *Metrics) closed() {
	if m == nil {
		return
	}
	m.sessionOpen.Set(0)
}

func (m *Metrics) busyRejected() {
	if m == nil {
		return
	}
	m.busyRejections.Inc()
}

func (m *Metrics) observeRead(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reads.Inc()
	m.computeDuration.Observe(elapsed.Seconds())
	m.lastComputeNanos.Set(float64(elapsed.Nanoseconds()))
}
