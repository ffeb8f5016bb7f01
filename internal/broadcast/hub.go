package broadcast

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gobwas/ws"
	"github.com/rs/zerolog"

	"wifipresence/internal/capacity"
	"wifipresence/internal/telemetry"
)

// Hub owns the set of connected WebSocket clients and fans snapshot
// payloads out to all of them.
type Hub struct {
	guard   *capacity.Guard
	metrics *telemetry.ServerMetrics
	logger  zerolog.Logger

	mu      sync.RWMutex
	clients map[int64]*client
	nextID  int64
}

// NewHub builds an empty Hub gated by guard.
func NewHub(guard *capacity.Guard, metrics *telemetry.ServerMetrics, logger zerolog.Logger) *Hub {
	return &Hub{
		guard:   guard,
		metrics: metrics,
		logger:  logger,
		clients: make(map[int64]*client),
	}
}

// ServeHTTP upgrades the request to a WebSocket and registers the
// resulting client, subject to the hub's capacity.Guard admission
// control (spec §4.7's bounded broadcaster).
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.guard.AcquireConnection() {
		http.Error(w, "server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.guard.ReleaseConnection()
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := atomic.AddInt64(&h.nextID, 1)
	c := newClient(id, conn, h.logger)

	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	h.metrics.BroadcastConnected.Set(float64(h.ConnectedCount()))

	go c.writePump()
	go c.readPump(func() { h.remove(id) })
}

func (h *Hub) remove(id int64) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	c.close()
	h.guard.ReleaseConnection()
	h.metrics.BroadcastConnected.Set(float64(h.ConnectedCount()))
}

// ConnectedCount reports the number of currently registered clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast pushes payload to every connected client, disconnecting
// any that have missed maxFailures consecutive deliveries (spec §4.7).
// A single serialized payload is shared across all clients, matching
// the teacher's broadcast.go "serialize once" optimization.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if c.offer(payload) {
			h.logger.Warn().Int64("client_id", c.id).Msg("disconnecting slow broadcast client")
			h.remove(c.id)
		}
	}
}
