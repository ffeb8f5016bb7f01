package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wifipresence/internal/decoder"
)

func TestRunDeliversDecodableFrames(t *testing.T) {
	cfg := Config{Devices: 3, Interval: time.Millisecond, Channel: 11, RSSIMean: -60, RSSISpread: 5}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type delivery struct {
		buf      []byte
		rssi     int8
		channel  uint8
		tsMicros uint64
	}
	deliveries := make(chan delivery, 16)

	go Run(ctx, cfg, 42, func(buf []byte, rssi int8, channel uint8, tsMicros uint64) {
		cp := make([]byte, len(buf))
		copy(cp, buf)
		select {
		case deliveries <- delivery{cp, rssi, channel, tsMicros}:
		default:
		}
	})

	var got delivery
	select {
	case got = <-deliveries:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a simulated frame")
	}

	frame, err := decoder.Decode(got.buf, got.rssi, got.channel)
	require.NoError(t, err)
	require.Equal(t, uint8(11), got.channel)
	require.InDelta(t, -60, int(got.rssi), 5)
	require.False(t, frame.Transmitter.IsBroadcast())
}

func TestRunIsDeterministicForAGivenSeed(t *testing.T) {
	capture := func(n int) [][6]byte {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		addrs := make([][6]byte, 0, n)
		done := make(chan struct{})
		go Run(ctx, Config{Devices: 5, Interval: time.Millisecond, Channel: 6, RSSIMean: -50, RSSISpread: 10}, 7,
			func(buf []byte, rssi int8, channel uint8, tsMicros uint64) {
				frame, err := decoder.Decode(buf, rssi, channel)
				if err != nil {
					return
				}
				addrs = append(addrs, frame.Transmitter)
				if len(addrs) == n {
					close(done)
				}
			})

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out collecting simulated frames")
		}
		return addrs
	}

	first := capture(5)
	second := capture(5)
	require.Equal(t, first, second)
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 1)

	go Run(ctx, Config{Devices: 1, Interval: time.Millisecond, Channel: 1, RSSIMean: -50, RSSISpread: 1}, 1,
		func(buf []byte, rssi int8, channel uint8, tsMicros uint64) {
			select {
			case calls <- struct{}{}:
			default:
			}
		})

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("simulator never produced a frame before cancellation")
	}

	cancel()
	time.Sleep(20 * time.Millisecond)

	for {
		select {
		case <-calls:
		default:
			return
		}
	}
}
