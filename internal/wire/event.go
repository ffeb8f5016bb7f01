// Package wire defines the on-wire device event exchanged between a
// station and the server over MQTT (spec §6). Field order and key
// spelling are contractual: existing stations in the fleet depend on it.
package wire

import (
	"encoding/json"
	"fmt"
)

// DeviceEvent is one observation of a single MAC address by one station.
type DeviceEvent struct {
	MACHash   string `json:"mac_hash"`
	RSSI      int8   `json:"rssi"`
	Channel   uint8  `json:"channel"`
	Timestamp uint64 `json:"timestamp"`
	Station   string `json:"station"`
}

// Validate rejects an event with an empty mac_hash or station, or an
// out-of-range value. An absent rssi or timestamp reads as 0 here and is
// caught by Decode's key check instead. Unknown fields are never an
// error — the ingestor
// just never sees them, since json.Unmarshal ignores them by default.
func (e DeviceEvent) Validate() error {
	if len(e.MACHash) != 64 {
		return fmt.Errorf("mac_hash must be 64 hex chars, got %d", len(e.MACHash))
	}
	for _, c := range e.MACHash {
		if !isHex(c) {
			return fmt.Errorf("mac_hash must be hex-encoded, found %q", c)
		}
	}
	if e.RSSI > 0 {
		return fmt.Errorf("rssi must be in [-128, 0], got %d", e.RSSI)
	}
	if e.Channel < 1 || e.Channel > 14 {
		return fmt.Errorf("channel must be in [1, 14], got %d", e.Channel)
	}
	if e.Station == "" {
		return fmt.Errorf("station id is required")
	}
	return nil
}

func isHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Marshal encodes the event in the contractual field order.
func (e DeviceEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a wire payload and validates it in one step. A payload
// that omits any of the five mandatory keys is rejected before Validate
// runs, since an absent rssi or timestamp would otherwise decode as 0.
func Decode(payload []byte) (DeviceEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return DeviceEvent{}, fmt.Errorf("decode device event: %w", err)
	}
	for _, key := range []string{"mac_hash", "rssi", "channel", "timestamp", "station"} {
		if _, ok := fields[key]; !ok {
			return DeviceEvent{}, fmt.Errorf("invalid device event: missing field %q", key)
		}
	}

	var e DeviceEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return DeviceEvent{}, fmt.Errorf("decode device event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return DeviceEvent{}, fmt.Errorf("invalid device event: %w", err)
	}
	return e, nil
}

// Heartbeat is a station's periodic liveness/counter report, published
// alongside its device events (mqtttopic.Heartbeat). It carries the
// station's cumulative count of published device events, matching
// original_source/src/mqtt.rs's publish_heartbeat payload shape.
type Heartbeat struct {
	Station string `json:"station"`
	Packets uint64 `json:"packets"`
}

// Marshal encodes the heartbeat in its contractual field order.
func (h Heartbeat) Marshal() ([]byte, error) {
	return json.Marshal(h)
}

// DecodeHeartbeat parses a heartbeat payload.
func DecodeHeartbeat(payload []byte) (Heartbeat, error) {
	var h Heartbeat
	if err := json.Unmarshal(payload, &h); err != nil {
		return Heartbeat{}, fmt.Errorf("decode heartbeat: %w", err)
	}
	if h.Station == "" {
		return Heartbeat{}, fmt.Errorf("heartbeat station id is required")
	}
	return h, nil
}
