// Package telemetry wires Prometheus counters and gauges for both the
// station and server binaries, following the metric-naming and registration
// style of adred-codev-ws_poc/src/metrics.go.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StationMetrics are the counters a single station exposes. They mirror
// the "Observable counters" called out in spec §4.2 and §4.4.
type StationMetrics struct {
	FramesAccepted prometheus.Counter
	EventsEnqueued prometheus.Counter
	EventsDropped  prometheus.Counter
	PublishSkipped prometheus.Counter
}

// NewStationMetrics registers and returns a fresh set of station counters
// against reg. Tests should pass a private prometheus.NewRegistry() so
// repeated construction across test cases doesn't collide with the
// package-level default registry.
func NewStationMetrics(reg prometheus.Registerer) *StationMetrics {
	m := &StationMetrics{
		FramesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniffer_frames_accepted_total",
			Help: "802.11 frames that passed the sniffer's filters.",
		}),
		EventsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniffer_events_enqueued_total",
			Help: "Device events handed to the event channel.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniffer_events_dropped_total",
			Help: "Device events dropped because the event channel was full.",
		}),
		PublishSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_publish_skipped_total",
			Help: "Publish attempts skipped because the MQTT outbound queue was full.",
		}),
	}
	reg.MustRegister(m.FramesAccepted, m.EventsEnqueued, m.EventsDropped, m.PublishSkipped)
	return m
}

// ServerMetrics are the counters the aggregator exposes.
type ServerMetrics struct {
	DecodeFailures     prometheus.Counter
	EventsIngested     prometheus.Counter
	DevicesTracked     prometheus.Gauge
	PositionsComputed  prometheus.Counter
	PositionsCleared   prometheus.Counter
	BroadcastConnected prometheus.Gauge
	HeartbeatsReceived prometheus.Counter
}

// NewServerMetrics registers and returns a fresh set of server counters.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestor_decode_failures_total",
			Help: "MQTT payloads rejected as malformed, invalid, or naming a station other than their topic's.",
		}),
		EventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestor_events_total",
			Help: "Valid device events accepted by the ingestor.",
		}),
		DevicesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "device_store_devices",
			Help: "Distinct devices currently held in the device store.",
		}),
		PositionsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_positions_computed_total",
			Help: "Multilateration solves that produced a position.",
		}),
		PositionsCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_positions_cleared_total",
			Help: "Device updates that cleared a position (stale/insufficient/ill-conditioned).",
		}),
		BroadcastConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "broadcast_clients_connected",
			Help: "WebSocket clients currently receiving snapshots.",
		}),
		HeartbeatsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestor_heartbeats_total",
			Help: "Station heartbeat messages received.",
		}),
	}
	reg.MustRegister(m.DecodeFailures, m.EventsIngested, m.DevicesTracked,
		m.PositionsComputed, m.PositionsCleared, m.BroadcastConnected, m.HeartbeatsReceived)
	return m
}

// Handler returns the Prometheus scrape endpoint for reg, matching the
// teacher's promhttp.Handler wiring in metrics.go.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
