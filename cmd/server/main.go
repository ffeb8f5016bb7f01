// Command server runs the central aggregator: it ingests device events
// from every station over MQTT, solves multilateration positions, and
// serves both a live WebSocket snapshot feed and a Prometheus metrics
// endpoint (spec §4.5–§4.8).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"wifipresence/internal/broadcast"
	"wifipresence/internal/capacity"
	"wifipresence/internal/logging"
	"wifipresence/internal/serverconfig"
	"wifipresence/internal/servermqtt"
	"wifipresence/internal/store"
	"wifipresence/internal/telemetry"
	"wifipresence/internal/tracker"
)

// broadcastInterval is how often the WebSocket hub serializes and
// fans out a new device snapshot (spec §4.7: ~10Hz).
const broadcastInterval = 100 * time.Millisecond

func main() {
	configPath := flag.String("config", "config.yaml", "path to the server configuration file")
	metricsAddr := flag.String("metrics-addr", ":9102", "address to serve Prometheus metrics on")
	wsAddr := flag.String("ws-addr", ":8080", "address to serve the WebSocket snapshot feed on")
	flag.Parse()

	// bootstrap logger for the pre-config phase; replaced by zerolog once
	// the real configuration (and its log level/format) is known.
	bootLogger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	cfg, err := serverconfig.Load(*configPath)
	if err != nil {
		bootLogger.Fatalf("failed to load server config: %v", err)
	}

	logLevel := logging.LevelInfo
	if cfg.LogLevel != "" {
		logLevel = logging.Level(cfg.LogLevel)
	}
	logFormat := logging.FormatJSON
	if cfg.LogFormat != "" {
		logFormat = logging.Format(cfg.LogFormat)
	}
	logger := logging.New(logging.Config{Level: logLevel, Format: logFormat, Service: "server"})

	logger.Info().
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Int("stations", len(cfg.Stations)).
		Str("bind_addr", cfg.BindAddr).
		Msg("server starting")

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewServerMetrics(reg)

	deviceStore := store.New()
	dtracker := tracker.New(cfg.TrackerStations(), cfg.TrackerRoom())

	ingestor, err := servermqtt.New(servermqtt.Config{
		Broker:         fmt.Sprintf("mqtts://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port),
		ClientID:       "wifipresence-server",
		CACertPath:     cfg.MQTT.CACertPath,
		ClientCertPath: cfg.MQTT.ClientCertPath,
		ClientKeyPath:  cfg.MQTT.ClientKeyPath,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
	}, deviceStore, dtracker, metrics, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MQTT broker")
	}

	guard := capacity.New(capacity.Config{
		MaxConnections:    256,
		BroadcastHz:       1000.0 / float64(broadcastInterval.Milliseconds()),
		CPUPauseThreshold: 90,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	guard.StartMonitoring(ctx, 15*time.Second)

	hub := broadcast.NewHub(guard, metrics, logger)
	go hub.Run(ctx, deviceStore, broadcastInterval)

	mux := http.NewServeMux()
	mux.Handle("/devices", hub)
	wsServer := &http.Server{Addr: *wsAddr, Handler: mux}
	go func() {
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("websocket server failed")
		}
	}()

	metricsServer := &http.Server{Addr: *metricsAddr, Handler: telemetry.Handler(reg)}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	if cfg.DeviceTimeoutSeconds > 0 {
		go runEviction(ctx, deviceStore, dtracker, cfg.DeviceTimeoutSeconds, logger)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("server shutting down")

	cancel()
	ingestor.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	wsServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)
}

// runEviction periodically clears devices whose last_seen has fallen
// behind the fleet's most recently active device by more than
// timeoutSeconds, and forgets the matching tracker smoothing state so
// it doesn't keep growing for devices the store has already dropped.
// Disabled unless the operator sets device_timeout_seconds (spec §9's
// opt-in bounded retention); see store.Store.NewestLastSeen for why the
// cutoff is relative rather than wall-clock based.
func runEviction(ctx context.Context, st *store.Store, trk *tracker.Tracker, timeoutSeconds int, logger zerolog.Logger) {
	horizonMicros := uint64(timeoutSeconds) * 1_000_000
	ticker := time.NewTicker(time.Duration(timeoutSeconds) * time.Second / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			newest := st.NewestLastSeen()
			if newest < horizonMicros {
				continue
			}
			removed := st.EvictOlderThan(newest - horizonMicros)
			trk.Forget(removed)
			if len(removed) > 0 {
				logger.Debug().Int("removed", len(removed)).Msg("evicted stale devices")
			}
		}
	}
}
