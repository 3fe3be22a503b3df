// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all metrics for dutchx
type Metrics struct {
	registry *prometheus.Registry

	// Marketplace metrics
	ListingsCreated prometheus.Counter
	AuctionsSettled prometheus.Counter
	Delistings      prometheus.Counter
	Withdrawals     prometheus.Counter
	VolumeSettled   prometheus.Counter
	FeesCollected   prometheus.Counter
	OpenAuctions    prometheus.Gauge

	// Error metrics by operation
	OpErrors *prometheus.CounterVec

	// Performance metrics
	SettleDuration prometheus.Histogram
}

// NewMetrics creates a new metrics instance on its own registry
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{registry: registry}

	m.ListingsCreated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "dutchx",
		Name:      "listings_created_total",
		Help:      "Total number of auctions listed",
	})
	m.AuctionsSettled = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "dutchx",
		Name:      "auctions_settled_total",
		Help:      "Total number of auctions settled by a buyer",
	})
	m.Delistings = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "dutchx",
		Name:      "delistings_total",
		Help:      "Total number of auctions delisted by their seller",
	})
	m.Withdrawals = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "dutchx",
		Name:      "withdrawals_total",
		Help:      "Total number of proceeds withdrawals",
	})
	m.VolumeSettled = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "dutchx",
		Name:      "volume_settled_total",
		Help:      "Total payment volume settled",
	})
	m.FeesCollected = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "dutchx",
		Name:      "fees_collected_total",
		Help:      "Total platform fees collected",
	})
	m.OpenAuctions = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "dutchx",
		Name:      "open_auctions",
		Help:      "Number of live auctions in the book",
	})

	m.OpErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dutchx",
		Name:      "operation_errors_total",
		Help:      "Total number of rejected operations by kind",
	}, []string{"op", "reason"})

	m.SettleDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dutchx",
		Name:      "settle_duration_seconds",
		Help:      "Time to settle a purchase",
		Buckets:   prometheus.DefBuckets,
	})

	return m, nil
}

// Gatherer returns the prometheus gatherer for metrics export
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Registerer returns the prometheus registerer
func (m *Metrics) Registerer() prometheus.Registerer {
	return m.registry
}
