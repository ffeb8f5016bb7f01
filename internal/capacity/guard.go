// Package capacity provides the broadcaster's backpressure controls:
// a bounded count of concurrent WebSocket connections, a fixed-rate
// limiter on snapshot fan-out, and CPU-aware pausing. Adapted from
// adred-codev-ws_poc/src/resource_guard.go's ResourceGuard, trimmed to
// the static-configuration half of that file (spec §4.7 calls for a
// bounded broadcast rate, not the teacher's self-tuning
// DynamicCapacityManager — so that sibling is not carried forward; see
// the design notes for why).
package capacity

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/time/rate"
)

// Config is static, operator-set resource policy — no runtime
// self-tuning, matching the teacher's ResourceGuard philosophy.
type Config struct {
	MaxConnections    int     // hard cap on concurrent WebSocket clients
	BroadcastHz       float64 // snapshot fan-out rate (spec §4.7: ~10Hz)
	CPUPauseThreshold float64 // pause broadcasting above this CPU%; 0 disables
}

// GoroutineLimiter bounds concurrent work with a semaphore, identical
// in shape to the teacher's GoroutineLimiter.
type GoroutineLimiter struct {
	sem chan struct{}
}

// NewGoroutineLimiter builds a limiter admitting at most max concurrent holders.
func NewGoroutineLimiter(max int) *GoroutineLimiter {
	return &GoroutineLimiter{sem: make(chan struct{}, max)}
}

// Acquire claims a slot without blocking. Returns false at the limit.
func (gl *GoroutineLimiter) Acquire() bool {
	select {
	case gl.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a previously acquired slot.
func (gl *GoroutineLimiter) Release() {
	<-gl.sem
}

// Current reports how many slots are held.
func (gl *GoroutineLimiter) Current() int {
	return len(gl.sem)
}

// Guard is the broadcaster's single backpressure gate: connection admission,
// broadcast-rate limiting, and CPU-aware pausing.
type Guard struct {
	config           Config
	logger           zerolog.Logger
	broadcastLimiter *rate.Limiter
	conns            *GoroutineLimiter
	currentCPU       atomic.Value // float64
}

// New builds a Guard from static config.
func New(cfg Config, logger zerolog.Logger) *Guard {
	g := &Guard{
		config:           cfg,
		logger:           logger,
		broadcastLimiter: rate.NewLimiter(rate.Limit(cfg.BroadcastHz), 1),
		conns:            NewGoroutineLimiter(cfg.MaxConnections),
	}
	g.currentCPU.Store(0.0)
	return g
}

// AcquireConnection admits one more WebSocket client, or refuses if
// MaxConnections are already connected.
func (g *Guard) AcquireConnection() bool {
	ok := g.conns.Acquire()
	if !ok {
		g.logger.Warn().Int("max_connections", g.config.MaxConnections).Msg("broadcast connection rejected: at capacity")
	}
	return ok
}

// ReleaseConnection frees a slot claimed by AcquireConnection.
func (g *Guard) ReleaseConnection() {
	g.conns.Release()
}

// ConnectionCount reports currently admitted WebSocket clients.
func (g *Guard) ConnectionCount() int {
	return g.conns.Current()
}

// AllowBroadcast reports whether the next snapshot tick may go out,
// under both the fixed rate limit and the CPU pause threshold.
func (g *Guard) AllowBroadcast() bool {
	if g.ShouldPauseBroadcast() {
		return false
	}
	return g.broadcastLimiter.Allow()
}

// ShouldPauseBroadcast reports whether CPU is high enough that
// broadcasting should be skipped this tick.
func (g *Guard) ShouldPauseBroadcast() bool {
	if g.config.CPUPauseThreshold <= 0 {
		return false
	}
	return g.currentCPU.Load().(float64) > g.config.CPUPauseThreshold
}

// updateCPU samples system CPU usage over a short window; the call
// blocks for that window. 100ms is long enough for gopsutil to produce
// a real delta sample and short enough not to stall a periodic monitor
// loop.
func (g *Guard) updateCPU(ctx context.Context) {
	percents, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false)
	if err != nil || len(percents) == 0 {
		return
	}
	g.currentCPU.Store(percents[0])
}

// StartMonitoring periodically refreshes the CPU sample used by
// ShouldPauseBroadcast, until ctx is cancelled.
func (g *Guard) StartMonitoring(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.updateCPU(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stats returns a debug snapshot, mirroring the teacher's GetStats maps.
func (g *Guard) Stats() map[string]any {
	return map[string]any{
		"max_connections":     g.config.MaxConnections,
		"current_connections": g.conns.Current(),
		"broadcast_hz":        g.config.BroadcastHz,
		"cpu_percent":         g.currentCPU.Load().(float64),
		"cpu_pause_threshold": g.config.CPUPauseThreshold,
		"goroutines":          runtime.NumGoroutine(),
	}
}
