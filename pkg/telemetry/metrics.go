// Package telemetry exposes prometheus metrics for the gossip engine.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	GossipReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gossipnode",
			Name:      "gossip_received_total",
			Help:      "Total gossip messages received from peers.",
		},
	)

	GossipDuplicatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gossipnode",
			Name:      "gossip_duplicates_total",
			Help:      "Gossip messages suppressed by the dedup cache.",
		},
	)

	GossipForwardsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gossipnode",
			Name:      "gossip_forwards_total",
			Help:      "Gossip messages enqueued to other active peers.",
		},
	)

	AckTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gossipnode",
			Name:      "ack_timeouts_total",
			Help:      "Acknowledgement waiters resolved by retry exhaustion.",
		},
	)

	PeersEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gossipnode",
			Name:      "peers_evicted_total",
			Help:      "Peers evicted by the liveness monitor.",
		},
	)

	PeersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gossipnode",
			Name:      "peers_active",
			Help:      "Currently registered active peers.",
		},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "gossipnode",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		GossipReceivedTotal,
		GossipDuplicatesTotal,
		GossipForwardsTotal,
		AckTimeoutsTotal,
		PeersEvictedTotal,
		PeersActive,
		uptime,
	)
}

// MetricsHandler exposes /metrics. Mount it on the admin API router.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
