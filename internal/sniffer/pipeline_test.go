package sniffer

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"wifipresence/internal/eventchan"
	"wifipresence/internal/privacy"
	"wifipresence/internal/telemetry"
)

func newTestPipeline(t *testing.T) (*Pipeline, *eventchan.Channel) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := telemetry.NewStationMetrics(reg)
	ch := eventchan.New()
	p := New("s1", privacy.NewHasher(nil), ch, m, zerolog.Nop())
	return p, ch
}

func frameFor(addr [6]byte) []byte {
	buf := make([]byte, 24)
	copy(buf[10:16], addr[:]) // addr2 / transmitter
	return buf
}

func TestHandleFrameDropsShortBuffer(t *testing.T) {
	p, ch := newTestPipeline(t)
	p.HandleFrame(make([]byte, 10), -50, 6, 1)
	_, res := ch.RecvTimeout(0)
	require.Equal(t, eventchan.RecvTimeout, res)
}

func TestHandleFrameDropsBroadcastSource(t *testing.T) {
	p, ch := newTestPipeline(t)
	for i := 0; i < SendRate*2; i++ {
		p.HandleFrame(frameFor([6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}), -50, 6, uint64(i))
	}
	_, res := ch.RecvTimeout(0)
	require.Equal(t, eventchan.RecvTimeout, res)
}

func TestHandleFrameForwardsEveryNth(t *testing.T) {
	p, ch := newTestPipeline(t)
	addr := [6]byte{0x02, 1, 2, 3, 4, 5} // not broadcast/multicast (LSB of first byte clear)

	forwarded := 0
	for i := 1; i <= SendRate*3; i++ {
		p.HandleFrame(frameFor(addr), -55, 6, uint64(i))
	}
	for {
		_, res := ch.RecvTimeout(0)
		if res != eventchan.RecvOK {
			break
		}
		forwarded++
	}
	require.Equal(t, 3, forwarded)
}

func TestHandleFrameEventContract(t *testing.T) {
	p, ch := newTestPipeline(t)
	addr := [6]byte{0x02, 1, 2, 3, 4, 5}
	for i := 1; i <= SendRate; i++ {
		p.HandleFrame(frameFor(addr), -42, 9, uint64(1000+i))
	}
	got, res := ch.RecvTimeout(0)
	require.Equal(t, eventchan.RecvOK, res)
	require.Len(t, got.MACHash, 64)
	require.Equal(t, int8(-42), got.RSSI)
	require.Equal(t, uint8(9), got.Channel)
	require.Equal(t, "s1", got.Station)
}
