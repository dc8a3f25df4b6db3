/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics for the station core.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PlaysTotal counts delivered items by schedule category.
	PlaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "grimnir_station_plays_total", Help: "Items delivered, by category"},
		[]string{"category"},
	)

	// SelectorEmptyTotal counts slots skipped because a category pool was empty.
	SelectorEmptyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "grimnir_station_selector_empty_total", Help: "Slots skipped on empty pools, by category"},
		[]string{"category"},
	)

	// TransitionsTotal counts planned transitions by outcome (canned, generated,
	// fallback, silent).
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "grimnir_station_transitions_total", Help: "Planned transitions, by outcome"},
		[]string{"outcome"},
	)

	// DeliveryFailuresTotal counts clips that failed to play out.
	DeliveryFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "grimnir_station_delivery_failures_total", Help: "Clips that failed to play out"},
	)

	// LivePipelineUp reports whether the live encode pipeline is running.
	LivePipelineUp = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "grimnir_station_live_pipeline_up", Help: "1 while the live encode pipeline is running"},
	)

	// APIRequestsTotal counts control API requests.
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "grimnir_station_api_requests_total", Help: "Control API requests"},
		[]string{"method", "endpoint", "status"},
	)

	// APIRequestDuration observes control API latency.
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grimnir_station_api_request_duration_seconds",
			Help:    "Control API request latency",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIActiveConnections tracks in-flight control API requests.
	APIActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "grimnir_station_api_active_connections", Help: "In-flight control API requests"},
	)
)

func init() {
	prometheus.MustRegister(
		PlaysTotal,
		SelectorEmptyTotal,
		TransitionsTotal,
		DeliveryFailuresTotal,
		LivePipelineUp,
		APIRequestsTotal,
		APIRequestDuration,
		APIActiveConnections,
	)
}

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
