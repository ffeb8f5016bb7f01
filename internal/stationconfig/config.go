// Package stationconfig loads the station's build-time configuration
// from environment variables (spec §6), following the
// caarlos0/env + godotenv pattern used throughout the example pack
// (adred-codev-ws_poc/ws/config.go, other_examples' LumenPrima-tr-engine
// and nugget-thane-ai-agent config loaders).
package stationconfig

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"wifipresence/internal/logging"
)

// Config holds every build-time input a station's firmware needs.
// WIFI_SSID/WIFI_PASS are consumed by the (out-of-scope, per spec §1)
// WiFi join step; they are loaded here because they come from the same
// env-var surface, not because this package uses them.
type Config struct {
	StationID    string `env:"STATION_ID,required"`
	WifiSSID     string `env:"WIFI_SSID"`
	WifiPass     string `env:"WIFI_PASS"`
	MQTTBroker   string `env:"MQTT_BROKER,required"`
	MQTTUsername string `env:"MQTT_USERNAME"`
	MQTTPassword string `env:"MQTT_PASSWORD"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"pretty"`

	// HashSecret, if set, switches the privacy hash from unkeyed SHA-256
	// to a fleet-shared HMAC-SHA256 key (spec §9).
	HashSecret string `env:"HASH_SECRET"`
}

// Load reads a .env file if present (ignored if missing — production
// deployments set real environment variables) then parses the process
// environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Any .env error, a missing or a malformed file alike, is
		// ignored; env.Parse below reads the real environment either way.
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse station config: %w", err)
	}
	return cfg, nil
}

// LogFields returns the startup diagnostic fields logged before the
// sniffer starts, mirroring original_source/src/main.rs's startup banner.
func (c *Config) LogFields() map[string]any {
	return map[string]any{
		"station_id":  c.StationID,
		"mqtt_broker": c.MQTTBroker,
		"log_level":   c.LogLevel,
	}
}

// ParseLogLevel maps the config string onto the logging package's type.
func (c *Config) ParseLogLevel() logging.Level {
	switch c.LogLevel {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// ParseLogFormat maps the config string onto the logging package's type.
func (c *Config) ParseLogFormat() logging.Format {
	if c.LogFormat == "json" {
		return logging.FormatJSON
	}
	return logging.FormatPretty
}
