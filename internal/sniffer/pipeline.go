// Package sniffer implements the driver-context callback pipeline: filter,
// rate-limit, hash, and hand off to the event channel without blocking
// radio reception (spec §4.2).
//
// HandleFrame is the hot path. It must complete in a few microseconds:
// no heap allocation beyond the unavoidable cost of building the
// forwarded event's hash and JSON-ready struct (which only happens on
// the rate-limited 1-in-N frames that survive every filter), no mutex
// that could block, and no logging except on a modulus of the packet
// counter — exactly the detail floor spec §4.2 sets.
package sniffer

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"wifipresence/internal/decoder"
	"wifipresence/internal/eventchan"
	"wifipresence/internal/privacy"
	"wifipresence/internal/telemetry"
	"wifipresence/internal/wire"
)

// SendRate is N from spec §4.2: only every N-th accepted frame is
// forwarded. It is a build-time constant, not a runtime config knob —
// the rate limiting is deliberately O(1) counter-modulus arithmetic
// rather than a token bucket (spec §9).
const SendRate = 50

// LogEvery controls how often an accepted frame is logged at debug
// level, to avoid flooding the log on every packet.
const LogEvery = 100

// Pipeline owns the per-station state needed to turn a raw frame buffer
// into a forwarded (or dropped) device event.
type Pipeline struct {
	station string
	hasher  privacy.Hasher
	channel *eventchan.Channel
	metrics *telemetry.StationMetrics
	logger  zerolog.Logger

	counter uint64 // atomic; accepted-frame counter driving the rate limit
}

// New builds a Pipeline for the given station id.
func New(station string, hasher privacy.Hasher, channel *eventchan.Channel, metrics *telemetry.StationMetrics, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		station: station,
		hasher:  hasher,
		channel: channel,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleFrame runs the full filter → rate-limit → hash → enqueue chain
// for one captured frame. buf is the raw 802.11 frame buffer; rssi,
// channel and tsMicros come from the driver's receive-control metadata
// and a station-local microsecond clock.
//
// Anomalies (null/short buffer, broadcast/multicast source) are
// discarded silently: spec §7 classifies these as driver-context
// anomalies that are never logged on the hot path.
func (p *Pipeline) HandleFrame(buf []byte, rssi int8, channel uint8, tsMicros uint64) {
	f, err := decoder.Decode(buf, rssi, channel)
	if err != nil {
		return
	}
	if f.Transmitter.IsBroadcast() || f.Transmitter.IsMulticast() {
		return
	}

	p.metrics.FramesAccepted.Inc()
	count := atomic.AddUint64(&p.counter, 1)

	if count%LogEvery == 0 {
		p.logger.Debug().
			Uint64("count", count).
			Int8("rssi", rssi).
			Uint8("channel", channel).
			Msg("sniffer: accepted frame")
	}

	if count%SendRate != 0 {
		return
	}

	ev := wire.DeviceEvent{
		MACHash:   p.hasher.Hash(f.Transmitter),
		RSSI:      rssi,
		Channel:   channel,
		Timestamp: tsMicros,
		Station:   p.station,
	}

	if p.channel.TrySend(ev) {
		p.metrics.EventsEnqueued.Inc()
	} else {
		p.metrics.EventsDropped.Inc()
	}
}
