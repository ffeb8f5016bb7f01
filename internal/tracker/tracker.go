// Package tracker implements per-device position smoothing: freshness
// filtering, path-loss conversion, multilateration, exponential
// smoothing, and room-bounds clamping (spec §4.9).
package tracker

import (
	"math"
	"sync"
	"time"

	"wifipresence/internal/multilateration"
	"wifipresence/internal/pathloss"
	"wifipresence/internal/store"
)

// FreshnessHorizonMicros is the default freshness horizon: readings
// older than this relative to the newest reading are dropped before
// multilateration (spec §4.9 step 2).
const FreshnessHorizonMicros = 30_000_000 // 30 s, station clocks are microseconds

// Alpha is the exponential smoothing factor (spec §4.9 step 6).
const Alpha = 0.3

// defaultRoomDiagonal is the side length of the square room substituted
// when room dimensions are not configured (see Room.effective), so an
// unconfigured deployment still gets a sane clamp instead of an
// unbounded one. Path-loss distance is then bounded by that square's
// diagonal, about 1414 m.
const defaultRoomDiagonal = 1000.0

// StationInfo is the fixed, server-start-time information about one
// station needed to turn its RSSI readings into distances.
type StationInfo struct {
	X, Y        float64
	Calibration pathloss.Calibration
}

// Room is the rectangle positions are clamped to (spec §4.9 step 7).
type Room struct {
	Width, Height float64
}

// effective substitutes a generous square default whenever either
// dimension is non-positive, rather than only when both are zero — a
// single misconfigured dimension (e.g. room.height left unset in
// config.yaml) must not leave that axis completely unclamped while the
// other is bounded normally.
func (r Room) effective() Room {
	if r.Width <= 0 || r.Height <= 0 {
		return Room{Width: defaultRoomDiagonal, Height: defaultRoomDiagonal}
	}
	return r
}

func (r Room) diagonal() float64 {
	eff := r.effective()
	return math.Hypot(eff.Width, eff.Height)
}

type smoothed struct {
	x, y float64
}

// Tracker holds per-device smoothing state. It is safe for concurrent
// use, though spec §5 expects a single caller (the ingestor).
type Tracker struct {
	stations map[string]StationInfo
	room     Room

	mu   sync.Mutex
	last map[string]smoothed
}

// New builds a Tracker for a fixed, immutable set of station configs.
func New(stations map[string]StationInfo, room Room) *Tracker {
	return &Tracker{
		stations: stations,
		room:     room,
		last:     make(map[string]smoothed),
	}
}

// Update runs the full per-event position pipeline for one device and
// returns the new position, or nil if the device's readings don't
// currently support one (fewer than 3 fresh, known-station anchors, or
// an ill-conditioned/insufficient multilateration). A returned nil is
// not an error — the caller simply clears the device's stored position
// (spec §7).
func (t *Tracker) Update(macHash string, readings map[string]store.RSSIReading, lastSeen uint64) *store.Position {
	var cutoff uint64
	if lastSeen > FreshnessHorizonMicros {
		cutoff = lastSeen - FreshnessHorizonMicros
	}

	roomDiag := t.room.diagonal()

	anchors := make([]multilateration.Anchor, 0, len(readings))
	for stationID, reading := range readings {
		if reading.Timestamp < cutoff {
			continue
		}
		info, ok := t.stations[stationID]
		if !ok {
			continue
		}
		d := pathloss.Distance(float64(reading.RSSI), info.Calibration, roomDiag)
		anchors = append(anchors, multilateration.Anchor{X: info.X, Y: info.Y, Distance: d})
	}

	if len(anchors) < 3 {
		t.clearSmoothing(macHash)
		return nil
	}

	raw, err := multilateration.Solve(anchors)
	if err != nil {
		t.clearSmoothing(macHash)
		return nil
	}

	t.mu.Lock()
	prior, hadPrior := t.last[macHash]
	var x, y float64
	if hadPrior {
		x = Alpha*raw.X + (1-Alpha)*prior.x
		y = Alpha*raw.Y + (1-Alpha)*prior.y
	} else {
		x, y = raw.X, raw.Y
	}
	room := t.room.effective()
	x = clamp(x, 0, room.Width)
	y = clamp(y, 0, room.Height)
	t.last[macHash] = smoothed{x: x, y: y}
	t.mu.Unlock()

	return &store.Position{
		X:                   x,
		Y:                   y,
		Residual:            raw.Residual,
		Stations:            raw.Count,
		ComputedAtUnixMilli: time.Now().UnixMilli(),
	}
}

// clearSmoothing drops the device's prior smoothed state so a later
// recomputation (once enough anchors return) starts from the raw
// solution again — matching the invariant that a position exists only
// when the last update had ≥3 contributing stations (spec §3).
func (t *Tracker) clearSmoothing(macHash string) {
	t.mu.Lock()
	delete(t.last, macHash)
	t.mu.Unlock()
}

// Forget drops the smoothing state for every given MAC hash. Callers
// running bounded device retention (spec §9) must call this for each
// hash store.Store.EvictOlderThan reports removed, or the smoothing
// map grows without bound even though the store itself stays bounded.
func (t *Tracker) Forget(macHashes []string) {
	if len(macHashes) == 0 {
		return
	}
	t.mu.Lock()
	for _, mac := range macHashes {
		delete(t.last, mac)
	}
	t.mu.Unlock()
}

func clamp(v, lo, hi float64) float64 {
	if hi <= lo {
		return v
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
