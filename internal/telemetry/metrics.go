/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes process metrics and optional OTLP tracing.
package telemetry

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus instruments for the pre-render pipeline.
type Metrics struct {
	registry *prometheus.Registry

	SegmentsCommitted prometheus.Counter
	RenderFailures    *prometheus.CounterVec
	Evictions         *prometheus.CounterVec
	EvictedBytes      prometheus.Counter
	CatalogRefreshes  prometheus.Counter

	GasTankSeconds  prometheus.Gauge
	QueueSegments   prometheus.Gauge
	StorageBytes    prometheus.Gauge
	DiskUtilization prometheus.Gauge
	CatalogTracks   prometheus.Gauge

	RenderSpeed prometheus.Histogram
}

// NewMetrics creates and registers the instrument set on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		SegmentsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marinara_segments_committed_total",
			Help: "Segments rendered, probed and committed to the queue",
		}),
		RenderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marinara_cycle_failures_total",
			Help: "Per-track failures by pipeline stage (select, fetch, render)",
		}, []string{"stage"}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marinara_evictions_total",
			Help: "Files deleted by eviction policy (age, disk, sweep)",
		}, []string{"policy"}),
		EvictedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marinara_evicted_bytes_total",
			Help: "Bytes reclaimed by segment eviction",
		}),
		CatalogRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marinara_catalog_refreshes_total",
			Help: "Times the remote track list was re-resolved after changing",
		}),
		GasTankSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marinara_gas_tank_seconds",
			Help: "Buffered playback seconds currently committed",
		}),
		QueueSegments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marinara_queue_segments",
			Help: "Live segments in the queue",
		}),
		StorageBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marinara_storage_bytes",
			Help: "Bytes occupied by live segments",
		}),
		DiskUtilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marinara_disk_utilization_ratio",
			Help: "Utilization of the media path filesystem (0-1)",
		}),
		CatalogTracks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marinara_catalog_tracks",
			Help: "Playable track references in the resolved catalog",
		}),
		RenderSpeed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marinara_render_speed_ratio",
			Help:    "Achieved render speed as a multiple of real time",
			Buckets: []float64{0.25, 0.5, 1, 1.5, 2, 3, 5, 10},
		}),
	}

	registry.MustRegister(
		m.SegmentsCommitted,
		m.RenderFailures,
		m.Evictions,
		m.EvictedBytes,
		m.CatalogRefreshes,
		m.GasTankSeconds,
		m.QueueSegments,
		m.StorageBytes,
		m.DiskUtilization,
		m.CatalogTracks,
		m.RenderSpeed,
	)

	return m
}

// Handler returns the router serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return r
}
