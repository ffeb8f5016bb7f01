package stationconfig

import (
	"testing"

	"github.com/stretchr/testify/require"

	"wifipresence/internal/logging"
)

func TestLoadRequiresStationID(t *testing.T) {
	t.Setenv("STATION_ID", "")
	t.Setenv("MQTT_BROKER", "mqtts://broker:8883")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("STATION_ID", "lobby-1")
	t.Setenv("MQTT_BROKER", "mqtts://broker:8883")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "lobby-1", cfg.StationID)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, logging.LevelInfo, cfg.ParseLogLevel())
	require.Equal(t, logging.FormatPretty, cfg.ParseLogFormat())
}

func TestParseLogLevelDebug(t *testing.T) {
	t.Setenv("STATION_ID", "lobby-1")
	t.Setenv("MQTT_BROKER", "mqtts://broker:8883")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, logging.LevelDebug, cfg.ParseLogLevel())
}
