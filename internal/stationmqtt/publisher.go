// Package stationmqtt is the station-side MQTT publisher (spec §4.4): it
// drains internal/eventchan and publishes each device event to the
// broker over TLS, driving paho.mqtt.golang the way
// pablo-chacon-mqtt-client-templates/uos_iot_client.go does. The TLS
// dial config itself (chain-verified, hostname check skipped for
// IP-addressed brokers) is this package's own construction — see
// tls.go's doc comment and DESIGN.md for why no example in the pack
// builds that exact split.
package stationmqtt

import (
	"context"
	_ "embed"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"wifipresence/internal/eventchan"
	"wifipresence/internal/mqtttopic"
	"wifipresence/internal/telemetry"
	"wifipresence/internal/wire"
)

// DefaultCA is the fleet root certificate baked into the station binary
// at build time, the Go equivalent of the Rust sniffer's build.rs
// embedding of certs/ca.pem. A real fleet replaces this file before
// building; it ships only as a placeholder so the package compiles and
// tests standalone.
//
//go:embed certs/ca.pem
var DefaultCA []byte

// recvTimeout bounds how long Run blocks waiting on the event channel
// before re-checking ctx, so shutdown is prompt even with no traffic.
const recvTimeout = 2 * time.Second

// outboundQueueDepth is how many publishes may be in flight at once
// before publish attempts are skipped rather than queued. It plays the
// same role as eventchan.Capacity, one layer further downstream.
const outboundQueueDepth = 32

// skipLogEvery matches internal/sniffer's LogEvery cadence: don't log
// every skip individually under sustained broker backpressure.
const skipLogEvery = 100

// heartbeatInterval is how often the publisher reports its cumulative
// published-event count on mqtttopic.Heartbeat, the Go equivalent of
// original_source/src/mqtt.rs's publish_heartbeat.
const heartbeatInterval = 30 * time.Second

// Config is the connection and identity material the publisher needs.
type Config struct {
	StationID string
	Broker    string // e.g. "mqtts://broker.example.com:8883"
	Username  string
	Password  string
}

// Publisher drains a station's event channel and publishes to the
// broker. Exactly one Run call is expected per instance.
type Publisher struct {
	client   mqtt.Client
	channel  *eventchan.Channel
	metrics  *telemetry.StationMetrics
	logger   zerolog.Logger
	station  string
	inFlight chan struct{}
	skipped  uint64
	packets  uint64
}

// New dials the broker (TLS handshake included) and returns a Publisher
// ready to Run. caPEM is normally DefaultCA; tests pass a different pool.
func New(cfg Config, caPEM []byte, ch *eventchan.Channel, metrics *telemetry.StationMetrics, logger zerolog.Logger) (*Publisher, error) {
	tlsConfig, err := NewTLSConfig(caPEM)
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.StationID).
		SetTLSConfig(tlsConfig).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetOrderMatters(false)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return &Publisher{
		client:   client,
		channel:  ch,
		metrics:  metrics,
		logger:   logger,
		station:  cfg.StationID,
		inFlight: make(chan struct{}, outboundQueueDepth),
	}, nil
}

// Run drains the channel until it closes or ctx is cancelled. Each
// publish is fire-and-forget at QoS 0 / retained=false (spec §4.4): the
// publisher never blocks the caller waiting on broker acknowledgment,
// and never retries an individual payload. Backpressure from the broker
// shows up as outbound queue exhaustion, which is dropped and counted
// exactly like a full event channel, not retried.
func (p *Publisher) Run(ctx context.Context) {
	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-heartbeatTicker.C:
			p.publishHeartbeat()
		default:
		}

		ev, res := p.channel.RecvTimeout(recvTimeout)
		switch res {
		case eventchan.RecvOK:
			p.publish(ev.Marshal)
		case eventchan.RecvTimeout:
			continue
		case eventchan.RecvClosed:
			return
		}
	}
}

func (p *Publisher) publish(marshal func() ([]byte, error)) {
	payload, err := marshal()
	if err != nil {
		return
	}

	select {
	case p.inFlight <- struct{}{}:
	default:
		p.recordSkip()
		return
	}

	topic := mqtttopic.Device(p.station)
	token := p.client.Publish(topic, 0, false, payload)
	atomic.AddUint64(&p.packets, 1)
	go func() {
		token.Wait()
		<-p.inFlight
		if token.Error() != nil {
			p.recordSkip()
		}
	}()
}

// publishHeartbeat reports this station's cumulative published-event
// count. Fire-and-forget at QoS 0, same as a device event: a dropped
// heartbeat costs nothing but one missed liveness sample.
func (p *Publisher) publishHeartbeat() {
	hb := wire.Heartbeat{Station: p.station, Packets: atomic.LoadUint64(&p.packets)}
	payload, err := hb.Marshal()
	if err != nil {
		return
	}
	token := p.client.Publish(mqtttopic.Heartbeat(p.station), 0, false, payload)
	go token.Wait()
}

func (p *Publisher) recordSkip() {
	p.metrics.PublishSkipped.Inc()
	n := atomic.AddUint64(&p.skipped, 1)
	if n%skipLogEvery == 0 {
		p.logger.Warn().Uint64("skipped_total", n).Msg("mqtt publish skipped, outbound queue full")
	}
}

// Close disconnects from the broker, waiting up to 250ms for in-flight
// work to drain as paho recommends.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
