// Package servermqtt is the server-side MQTT ingestor (spec §4.5): it
// subscribes to every station's device topic over TLS (mutual when a
// client certificate is configured), decodes and validates each
// payload, and feeds the device store
// and tracker. Grounded on the same paho.mqtt.golang wiring as
// internal/stationmqtt, mirrored from the subscribe side of
// pablo-chacon-mqtt-client-templates/uos_iot_client.go.
package servermqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"wifipresence/internal/mqtttopic"
	"wifipresence/internal/store"
	"wifipresence/internal/telemetry"
	"wifipresence/internal/tracker"
	"wifipresence/internal/wire"
)

// Config is the broker connection and TLS material the ingestor needs.
type Config struct {
	Broker         string // e.g. "mqtts://broker.example.com:8883"
	ClientID       string
	Username       string
	Password       string
	CACertPath     string
	ClientCertPath string // optional: enables mutual TLS
	ClientKeyPath  string
}

// Ingestor owns the MQTT subscription and feeds every decoded event
// into the store and tracker, in that order (spec §4.9): the store
// records the raw reading first, then the tracker runs on the private
// copy Store.Observe handed back, matching the "only step 1 is under
// the write lock" design.
type Ingestor struct {
	client  mqtt.Client
	store   *store.Store
	tracker *tracker.Tracker
	metrics *telemetry.ServerMetrics
	logger  zerolog.Logger
}

// New dials and subscribes to the device wildcard topic. The handler
// runs on paho's own callback goroutine(s); spec §4.9 requires the
// per-event work to stay O(1), so no additional queueing is introduced
// here beyond what the store/tracker already do internally.
func New(cfg Config, st *store.Store, tr *tracker.Tracker, metrics *telemetry.ServerMetrics, logger zerolog.Logger) (*Ingestor, error) {
	tlsConfig, err := newTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	ing := &Ingestor{store: st, tracker: tr, metrics: metrics, logger: logger}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetTLSConfig(tlsConfig).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetOnConnectHandler(func(c mqtt.Client) {
			if token := c.Subscribe(mqtttopic.DeviceWildcard, 0, ing.handle); token.Wait() && token.Error() != nil {
				ing.logger.Error().Err(token.Error()).Msg("mqtt resubscribe failed")
			}
			if token := c.Subscribe(mqtttopic.HeartbeatWildcard, 0, ing.handleHeartbeat); token.Wait() && token.Error() != nil {
				ing.logger.Error().Err(token.Error()).Msg("mqtt heartbeat resubscribe failed")
			}
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	ing.client = mqtt.NewClient(opts)
	if token := ing.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return ing, nil
}

// handle is the paho MessageHandler: decode, validate, store, track.
// Any failure is logged at debug and counted, never fatal to the
// subscription (spec §4.5: a malformed payload from one station must
// never affect any other station's events).
func (ing *Ingestor) handle(_ mqtt.Client, msg mqtt.Message) {
	ev, err := wire.Decode(msg.Payload())
	if err != nil {
		ing.metrics.DecodeFailures.Inc()
		ing.logger.Debug().Err(err).Str("topic", msg.Topic()).Msg("dropping malformed device event")
		return
	}

	if stationID, ok := mqtttopic.ParseDevice(msg.Topic()); ok && stationID != ev.Station {
		ing.metrics.DecodeFailures.Inc()
		ing.logger.Debug().Str("topic_station", stationID).Str("payload_station", ev.Station).
			Msg("dropping device event with mismatched station id")
		return
	}

	result := ing.store.Observe(ev)
	ing.metrics.EventsIngested.Inc()
	ing.metrics.DevicesTracked.Set(float64(ing.store.Len()))

	pos := ing.tracker.Update(ev.MACHash, result.Readings, result.LastSeen)
	ing.store.SetPosition(ev.MACHash, pos)
	if pos != nil {
		ing.metrics.PositionsComputed.Inc()
	} else {
		ing.metrics.PositionsCleared.Inc()
	}
}

// handleHeartbeat records a station's liveness/packet-count report. A
// malformed heartbeat is dropped the same way a malformed device event
// is: logged at debug and counted, never fatal to the subscription.
func (ing *Ingestor) handleHeartbeat(_ mqtt.Client, msg mqtt.Message) {
	hb, err := wire.DecodeHeartbeat(msg.Payload())
	if err != nil {
		ing.logger.Debug().Err(err).Str("topic", msg.Topic()).Msg("dropping malformed heartbeat")
		return
	}
	ing.metrics.HeartbeatsReceived.Inc()
	ing.logger.Debug().Str("station", hb.Station).Uint64("packets", hb.Packets).Msg("station heartbeat")
}

// Close disconnects from the broker.
func (ing *Ingestor) Close() {
	ing.client.Disconnect(250)
}

func newTLSConfig(cfg Config) (*tls.Config, error) {
	pool := x509.NewCertPool()
	if cfg.CACertPath != "" {
		caPEM, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("servermqtt: read CA cert: %w", err)
		}
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("servermqtt: no certificates found in %s", cfg.CACertPath)
		}
	}

	tlsConfig := &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}

	if cfg.ClientCertPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("servermqtt: load client cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
