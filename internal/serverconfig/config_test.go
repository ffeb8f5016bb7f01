package serverconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
bind_addr: ":8080"
mqtt:
  host: "broker.local"
  port: 8883
  topic: "sniffer/+/device"
  ca_cert_path: "/etc/wifipresence/ca.pem"
room:
  width: 20
  height: 15
stations:
  - id: s1
    x: 0
    y: 0
    label: "Lobby"
  - id: s2
    x: 10
    y: 0
    label: "Hallway"
    rssi_at_1m: -40
    path_loss_exponent: 2.5
  - id: s3
    x: 0
    y: 10
    label: "Office"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.BindAddr)
	require.Len(t, cfg.Stations, 3)
}

func TestTrackerStationsAppliesDefaults(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	stations := cfg.TrackerStations()
	require.Equal(t, -45.0, stations["s1"].Calibration.RSSIAt1m)
	require.Equal(t, 3.0, stations["s1"].Calibration.Exponent)
	require.Equal(t, -40.0, stations["s2"].Calibration.RSSIAt1m)
	require.Equal(t, 2.5, stations["s2"].Calibration.Exponent)
}

func TestLoadRejectsMissingBindAddr(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  host: "broker.local"
stations:
  - id: s1
    x: 0
    y: 0
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsDuplicateStationID(t *testing.T) {
	path := writeConfig(t, `
bind_addr: ":8080"
mqtt:
  host: "broker.local"
stations:
  - id: s1
    x: 0
    y: 0
  - id: s1
    x: 1
    y: 1
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
