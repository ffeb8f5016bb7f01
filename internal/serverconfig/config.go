// Package serverconfig loads the server's text configuration file (spec
// §6): bind address, MQTT broker details, TLS material paths, room
// dimensions, and the station list. YAML was chosen to match
// other_examples/nikoskalogridis-streamerbrainz's config-loading style,
// carried over from the pack since the teacher repo's own config is
// env-var based (station-side) rather than file-based.
package serverconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"wifipresence/internal/pathloss"
	"wifipresence/internal/tracker"
)

// StationConfig is one station's fixed position and calibration (spec §3).
type StationConfig struct {
	ID               string   `yaml:"id"`
	X                float64  `yaml:"x"`
	Y                float64  `yaml:"y"`
	Label            string   `yaml:"label"`
	RSSIAt1m         *float64 `yaml:"rssi_at_1m,omitempty"`
	PathLossExponent *float64 `yaml:"path_loss_exponent,omitempty"`
}

// MQTT is the broker connection the ingestor subscribes through.
type MQTT struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Topic          string `yaml:"topic"` // parsed but not used: the ingestor always subscribes to mqtttopic.DeviceWildcard
	CACertPath     string `yaml:"ca_cert_path"`
	ClientCertPath string `yaml:"client_cert_path"`
	ClientKeyPath  string `yaml:"client_key_path"`
	Username       string `yaml:"username,omitempty"`
	Password       string `yaml:"password,omitempty"`
}

// Room is the physical space the stations cover, in meters.
type Room struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Config is the full server configuration file.
type Config struct {
	BindAddr  string          `yaml:"bind_addr"`
	MQTT      MQTT            `yaml:"mqtt"`
	Room      Room            `yaml:"room"`
	Stations  []StationConfig `yaml:"stations"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`

	// HashSecret is parsed but has no effect on the server, which never
	// hashes MAC addresses; stations take their HMAC key from HASH_SECRET.
	HashSecret string `yaml:"hash_secret"`

	// DeviceTimeoutSeconds is the bounded-retention knob design notes ask
	// for (spec §9); 0 disables eviction, which is the reference default.
	DeviceTimeoutSeconds int `yaml:"device_timeout_seconds"`
}

// Load reads and validates the config file at path. Any failure here is
// fatal to server startup (spec §7).
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("bind_addr is required")
	}
	if c.MQTT.Host == "" {
		return fmt.Errorf("mqtt.host is required")
	}
	if len(c.Stations) == 0 {
		return fmt.Errorf("at least one station is required")
	}
	seen := make(map[string]bool, len(c.Stations))
	for _, s := range c.Stations {
		if s.ID == "" {
			return fmt.Errorf("station id is required")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate station id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// TrackerStations converts the config's station list into the lookup
// table internal/tracker needs, applying the default calibration (spec
// §3: R0 = -45 dBm, n = 3.0) when a station omits it.
func (c *Config) TrackerStations() map[string]tracker.StationInfo {
	out := make(map[string]tracker.StationInfo, len(c.Stations))
	for _, s := range c.Stations {
		cal := pathloss.Calibration{
			RSSIAt1m: pathloss.DefaultRSSIAt1m,
			Exponent: pathloss.DefaultExponent,
		}
		if s.RSSIAt1m != nil {
			cal.RSSIAt1m = *s.RSSIAt1m
		}
		if s.PathLossExponent != nil {
			cal.Exponent = *s.PathLossExponent
		}
		out[s.ID] = tracker.StationInfo{X: s.X, Y: s.Y, Calibration: cal}
	}
	return out
}

// TrackerRoom converts the room dimensions into internal/tracker's type.
func (c *Config) TrackerRoom() tracker.Room {
	return tracker.Room{Width: c.Room.Width, Height: c.Room.Height}
}
