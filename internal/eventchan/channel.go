// Package eventchan implements the bounded single-producer/single-consumer
// queue that hands observations from the driver callback (internal/sniffer)
// to the publisher task (internal/stationmqtt), per spec §4.3.
//
// The design mirrors the teacher's WorkerPool.Submit (adred-codev-ws_poc's
// worker_pool.go): a buffered channel plus an atomic drop counter, so a full
// queue never blocks the producer.
package eventchan

import (
	"sync"
	"sync/atomic"
	"time"

	"wifipresence/internal/wire"
)

// Capacity is the fixed queue size (spec §4.3). It is a constant, not a
// config knob: the spec ties it to the rate-limited sniffer's expected
// burst size, not to deployment-specific tuning.
const Capacity = 32

// RecvResult is the outcome of a bounded receive.
type RecvResult int

const (
	// RecvOK means Event is populated with the next queued item.
	RecvOK RecvResult = iota
	// RecvTimeout means the deadline elapsed with nothing queued.
	RecvTimeout
	// RecvClosed means the channel is permanently done; no more events
	// will ever arrive on it.
	RecvClosed
)

// Channel is a bounded FIFO queue with non-blocking send and
// timeout-bounded receive. Exactly one goroutine is expected to call
// TrySend and exactly one to call RecvTimeout; both are additionally
// safe to call from any number of goroutines, since the underlying
// primitive is a native Go channel.
type Channel struct {
	closeMu sync.RWMutex // held for reading across the closed-check + send, so Close can't race a TrySend
	events  chan wire.DeviceEvent
	dropped int64
	closed  int64
}

// New constructs a Channel with the fixed capacity required by spec §4.3.
func New() *Channel {
	return &Channel{events: make(chan wire.DeviceEvent, Capacity)}
}

// TrySend enqueues ev without blocking. It returns false if the queue is
// full (the event is dropped and the Dropped counter incremented) or if
// Close has already been called. This is the only entry point the
// driver-context callback may use: it must never be able to block.
func (c *Channel) TrySend(ev wire.DeviceEvent) bool {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()

	if atomic.LoadInt64(&c.closed) != 0 {
		return false
	}
	select {
	case c.events <- ev:
		return true
	default:
		atomic.AddInt64(&c.dropped, 1)
		return false
	}
}

// RecvTimeout blocks the consumer for up to d waiting for the next event,
// strictly in FIFO order.
func (c *Channel) RecvTimeout(d time.Duration) (wire.DeviceEvent, RecvResult) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case ev, ok := <-c.events:
		if !ok {
			return wire.DeviceEvent{}, RecvClosed
		}
		return ev, RecvOK
	case <-timer.C:
		return wire.DeviceEvent{}, RecvTimeout
	}
}

// Close permanently terminates the channel. Any event still buffered is
// drained by subsequent RecvTimeout calls before RecvClosed is returned;
// after that, TrySend always fails. Close is idempotent.
func (c *Channel) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if atomic.CompareAndSwapInt64(&c.closed, 0, 1) {
		close(c.events)
	}
}

// Dropped returns the number of events discarded because the queue was
// full at the time of TrySend.
func (c *Channel) Dropped() int64 {
	return atomic.LoadInt64(&c.dropped)
}
