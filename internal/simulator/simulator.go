// Package simulator drives internal/sniffer's driver callback with
// synthetic 802.11 frames, standing in for the real promiscuous-mode
// radio driver this environment has no hardware for. It is a
// supplement to spec.md's distillation: original_source/src/sniffer.rs
// is itself driven by ESP-IDF's wifi_promiscuous_cb_t registration, so
// this package plays that role in a binary with no radio to attach to.
package simulator

import (
	"context"
	"encoding/binary"
	"math/rand"
	"time"

	"wifipresence/internal/decoder"
)

// Config controls the synthetic traffic shape.
type Config struct {
	Devices  int           // number of distinct simulated MAC addresses
	Interval time.Duration // time between synthetic frame deliveries
	Channel  uint8         // fixed 802.11 channel to report
	RSSIMean int8          // center of the synthetic RSSI distribution
	RSSISpread int8        // +/- range added/subtracted from RSSIMean
}

// DefaultConfig is a reasonable single-station demo workload.
func DefaultConfig() Config {
	return Config{Devices: 20, Interval: 2 * time.Millisecond, Channel: 6, RSSIMean: -60, RSSISpread: 20}
}

// Run feeds synthetic frames to callback until ctx is cancelled, at the
// pace and shape cfg describes. seed makes the per-run device addresses
// deterministic without reaching for time.Now()/math/rand's global
// source at call sites that need reproducible tests.
func Run(ctx context.Context, cfg Config, seed int64, callback func(buf []byte, rssi int8, channel uint8, tsMicros uint64)) {
	rng := rand.New(rand.NewSource(seed))
	macs := make([][6]byte, cfg.Devices)
	for i := range macs {
		var mac [6]byte
		rng.Read(mac[:])
		mac[0] &^= 0x01 // clear multicast bit: simulated devices are real stations, not groups
		macs[i] = mac
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var tsMicros uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tsMicros += uint64(cfg.Interval.Microseconds())
			mac := macs[rng.Intn(len(macs))]
			rssi := cfg.RSSIMean + int8(rng.Intn(int(cfg.RSSISpread)*2+1)-int(cfg.RSSISpread))
			callback(frame(mac), rssi, cfg.Channel, tsMicros)
		}
	}
}

// frame builds a minimal 802.11 data-frame header with the given
// transmitter address, long enough for internal/decoder to parse.
func frame(transmitter [6]byte) []byte {
	buf := make([]byte, decoder.MACHeaderLen)
	binary.LittleEndian.PutUint16(buf[0:2], 0x0008) // frame control: data frame
	copy(buf[4:10], transmitter[:])                 // addr1 (receiver): reuse as placeholder
	copy(buf[10:16], transmitter[:])                // addr2 (transmitter)
	copy(buf[16:22], transmitter[:])                // addr3 (BSSID)
	return buf
}
