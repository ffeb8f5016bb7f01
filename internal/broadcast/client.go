// Package broadcast fans the device store's periodic snapshot out to
// WebSocket subscribers (spec §4.7, supplemental per SPEC_FULL.md since
// spec.md's distillation dropped the original's web dashboard). Adapted
// from adred-codev-ws_poc/ws/internal/shared's client/pump/broadcast
// trio, trimmed to this domain: one shared snapshot payload per tick,
// no per-channel subscription filtering, no replay buffer (a missed
// snapshot tick is superseded by the next one within ~100ms, unlike a
// trade feed where every message matters).
package broadcast

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"
)

const (
	writeWait   = 5 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	sendBuffer  = 16 // shallow: snapshots supersede each other, no need to queue many
	maxFailures = 3  // disconnect after this many consecutive full-buffer sends, matching the teacher's slow-client policy
)

// client is one connected WebSocket subscriber.
type client struct {
	id           int64
	conn         net.Conn
	mu           sync.Mutex // guards send/closed together so offer never races a close
	send         chan []byte
	closed       bool
	sendAttempts int32
	logger       zerolog.Logger
}

func newClient(id int64, conn net.Conn, logger zerolog.Logger) *client {
	return &client{id: id, conn: conn, send: make(chan []byte, sendBuffer), logger: logger}
}

// offer enqueues the latest snapshot without blocking. A full buffer
// means the client isn't keeping up; after maxFailures consecutive
// misses the caller disconnects it rather than let it stall the hub.
// A client already closed by a concurrent readPump exit is a no-op.
func (c *client) offer(payload []byte) (disconnect bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- payload:
		atomic.StoreInt32(&c.sendAttempts, 0)
		return false
	default:
		attempts := atomic.AddInt32(&c.sendAttempts, 1)
		return attempts >= maxFailures
	}
}

// close shuts down the send channel exactly once, safe to call
// concurrently with offer (e.g. a slow-client disconnect racing the
// connection's own close).
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *client) writePump() {
	writer := bufio.NewWriter(c.conn)
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				wsutil.WriteServerMessage(c.conn, ws.OpClose, nil)
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(writer, ws.OpText, payload); err != nil {
				c.logger.Debug().Err(err).Int64("client_id", c.id).Msg("broadcast write failed")
				return
			}
			if err := writer.Flush(); err != nil {
				c.logger.Debug().Err(err).Int64("client_id", c.id).Msg("broadcast flush failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards anything the client sends (this feed is one-way)
// and only exists to notice the connection closing.
func (c *client) readPump(onClose func()) {
	defer onClose()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, op, err := wsutil.ReadClientData(c.conn)
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if op == ws.OpClose {
			return
		}
	}
}
