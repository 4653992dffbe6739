// Package metrics exposes PICORadar's Prometheus counters/gauges and a
// human-readable status line for the CLI, grounded on the teacher's own
// periodic stats-logging idiom generalized to a real metrics registry.
package metrics

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors this service exports.
type Metrics struct {
	Registry *prometheus.Registry

	PlayersGauge      prometheus.Gauge
	BroadcastTicks    prometheus.Counter
	BroadcastSentTicks prometheus.Counter
	BytesSent         prometheus.Counter
	SlowConsumers     prometheus.Counter
}

// New constructs a Metrics bundle registered against a fresh registry
// (never the global default, so tests can construct as many as they
// like without collector-already-registered panics).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		PlayersGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "picoradar_players",
			Help: "Current number of authenticated players in the registry.",
		}),
		BroadcastTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picoradar_broadcast_ticks_total",
			Help: "Total broadcaster ticks, including idle no-op ticks.",
		}),
		BroadcastSentTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picoradar_broadcast_sent_ticks_total",
			Help: "Total broadcaster ticks that produced a roster send.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picoradar_bytes_sent_total",
			Help: "Total roster bytes fanned out to sessions.",
		}),
		SlowConsumers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picoradar_slow_consumer_total",
			Help: "Total sessions drained due to the slow-consumer policy.",
		}),
	}
	reg.MustRegister(m.PlayersGauge, m.BroadcastTicks, m.BroadcastSentTicks, m.BytesSent, m.SlowConsumers)
	return m
}

// StatusLine renders a one-line human-readable summary for the CLI
// `status` command, using go-humanize for the byte count exactly as the
// teacher's file-size formatting does.
func StatusLine(players int, ticks, sentTicks, bytesSent, discoveryRequests uint64) string {
	return fmt.Sprintf(
		"players=%d ticks=%d sent_ticks=%d bytes_sent=%s discovery_requests=%d",
		players, ticks, sentTicks, humanize.Bytes(bytesSent), discoveryRequests,
	)
}
