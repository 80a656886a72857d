// This file instruments remote peer calls with Prometheus. Labels are kept
// bounded: "peer" is the registry clave (one per estado) and "outcome" is one
// of ok, connection_error or invalid_answer.
package outbound

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// peerReqs counts remote requests by peer and outcome.
	peerReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peer_requests_total",
			Help: "Total number of HTTP requests sent to remote judiciaries.",
		},
		[]string{"peer", "outcome"},
	)

	// peerLat records remote request duration in seconds by peer.
	peerLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peer_request_duration_seconds",
			Help:    "Duration of HTTP requests to remote judiciaries in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"peer"},
	)
)

func init() {
	prometheus.MustRegister(peerReqs, peerLat)
}

const (
	outcomeOK            = "ok"
	outcomeConnection    = "connection_error"
	outcomeInvalidAnswer = "invalid_answer"
)

func observePeerRequest(peer string, outcome string, elapsed time.Duration) {
	peerReqs.WithLabelValues(peer, outcome).Inc()
	peerLat.WithLabelValues(peer).Observe(elapsed.Seconds())
}
