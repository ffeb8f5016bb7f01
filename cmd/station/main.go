// Command station runs one sniffer station: it drives the capture
// pipeline (real or simulated), publishes device events over MQTT, and
// serves a Prometheus metrics endpoint (spec §4.1–§4.4).
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	_ "go.uber.org/automaxprocs"

	"wifipresence/internal/eventchan"
	"wifipresence/internal/logging"
	"wifipresence/internal/privacy"
	"wifipresence/internal/simulator"
	"wifipresence/internal/sniffer"
	"wifipresence/internal/stationconfig"
	"wifipresence/internal/stationmqtt"
	"wifipresence/internal/telemetry"
)

func main() {
	metricsAddr := flag.String("metrics-addr", ":9101", "address to serve Prometheus metrics on")
	flag.Parse()

	// bootstrap logger for the pre-config phase; replaced by zerolog once
	// the real configuration (and its log level/format) is known.
	bootLogger := log.New(os.Stdout, "[station] ", log.LstdFlags)

	cfg, err := stationconfig.Load()
	if err != nil {
		bootLogger.Fatalf("failed to load station config: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:   cfg.ParseLogLevel(),
		Format:  cfg.ParseLogFormat(),
		Service: "station",
	})

	logger.Info().
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Fields(cfg.LogFields()).
		Msg("station starting")

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewStationMetrics(reg)

	hasher := privacy.NewHasher([]byte(cfg.HashSecret))
	ch := eventchan.New()
	pipeline := sniffer.New(cfg.StationID, hasher, ch, metrics, logger)
	sniffer.Install(pipeline)

	publisher, err := stationmqtt.New(
		stationmqtt.Config{
			StationID: cfg.StationID,
			Broker:    cfg.MQTTBroker,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
		},
		stationmqtt.DefaultCA,
		ch, metrics, logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MQTT broker")
	}

	ctx, cancel := context.WithCancel(context.Background())

	go publisher.Run(ctx)
	go simulator.Run(ctx, simulator.DefaultConfig(), time.Now().UnixNano(), sniffer.DriverCallback)

	metricsServer := &http.Server{Addr: *metricsAddr, Handler: telemetry.Handler(reg)}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("station shutting down")

	cancel()
	ch.Close()
	publisher.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)
}
