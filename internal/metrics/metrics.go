// Package metrics exposes Prometheus counters for the two pipeline loops.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestCycles counts ingestion cycles by result ("ok" or "error").
	IngestCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quakebot",
		Name:      "ingest_cycles_total",
		Help:      "Ingestion cycles by result",
	}, []string{"result"})

	// EventsFetched counts events returned by the feed, before dedup.
	EventsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quakebot",
		Name:      "events_fetched_total",
		Help:      "Events returned by the upstream feed",
	})

	// NotifyCycles counts notification cycles by result ("ok" or "error").
	NotifyCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quakebot",
		Name:      "notify_cycles_total",
		Help:      "Notification cycles by result",
	}, []string{"result"})

	// Sends counts delivery attempts by result ("ok" or "error").
	Sends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quakebot",
		Name:      "sends_total",
		Help:      "Notification delivery attempts by result",
	}, []string{"result"})
)
