// Package mqtttopic builds and parses the station/device MQTT topic
// layout from spec §6, the way adred-codev-ws_poc/src/channels.go maps
// NATS subjects to WebSocket channel names: a builder and a
// regex-validated parser for the device topic. The heartbeat topic has
// a builder only.
package mqtttopic

import (
	"fmt"
	"regexp"
)

// DeviceWildcard is the subscribe pattern the server's MQTT ingestor
// uses to receive every station's device events in one subscription
// (spec §4.5, §6).
const DeviceWildcard = "sniffer/+/device"

var deviceTopicPattern = regexp.MustCompile(`^sniffer/([a-zA-Z0-9_-]+)/device$`)

// Device builds the publish topic for one station's device events:
// `sniffer/<station-id>/device` (spec §4.4, §6).
func Device(stationID string) string {
	return fmt.Sprintf("sniffer/%s/device", stationID)
}

// ParseDevice extracts the station id from a concrete device topic (as
// opposed to the wildcard subscribe pattern). Returns false if topic
// doesn't match the expected shape.
func ParseDevice(topic string) (stationID string, ok bool) {
	m := deviceTopicPattern.FindStringSubmatch(topic)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Heartbeat builds the publish topic for a station's periodic
// heartbeat messages (cumulative published-event counter), a
// supplemental feature carried over from original_source/src/mqtt.rs's
// publish_heartbeat. Not part of the wire contract in spec §6 — the
// ingestor subscribes to it (HeartbeatWildcard) as a separate,
// optional subscription alongside the device feed.
func Heartbeat(stationID string) string {
	return fmt.Sprintf("sniffer/%s/heartbeat", stationID)
}

// HeartbeatWildcard is the subscribe pattern the server's ingestor uses
// to receive every station's heartbeats in one subscription, the
// heartbeat counterpart to DeviceWildcard.
const HeartbeatWildcard = "sniffer/+/heartbeat"
