package capacity

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestAcquireConnectionRespectsLimit(t *testing.T) {
	g := New(Config{MaxConnections: 2, BroadcastHz: 10}, zerolog.Nop())

	require.True(t, g.AcquireConnection())
	require.True(t, g.AcquireConnection())
	require.False(t, g.AcquireConnection())
	require.Equal(t, 2, g.ConnectionCount())

	g.ReleaseConnection()
	require.Equal(t, 1, g.ConnectionCount())
	require.True(t, g.AcquireConnection())
}

func TestShouldPauseBroadcastDisabledByDefault(t *testing.T) {
	g := New(Config{MaxConnections: 1, BroadcastHz: 10}, zerolog.Nop())
	require.False(t, g.ShouldPauseBroadcast())
}

func TestShouldPauseBroadcastAboveThreshold(t *testing.T) {
	g := New(Config{MaxConnections: 1, BroadcastHz: 10, CPUPauseThreshold: 50}, zerolog.Nop())
	g.currentCPU.Store(75.0)
	require.True(t, g.ShouldPauseBroadcast())

	g.currentCPU.Store(10.0)
	require.False(t, g.ShouldPauseBroadcast())
}

func TestAllowBroadcastHonorsRateLimit(t *testing.T) {
	g := New(Config{MaxConnections: 1, BroadcastHz: 1}, zerolog.Nop())
	require.True(t, g.AllowBroadcast())
	require.False(t, g.AllowBroadcast())
}

func TestGoroutineLimiterAcquireRelease(t *testing.T) {
	gl := NewGoroutineLimiter(1)
	require.True(t, gl.Acquire())
	require.False(t, gl.Acquire())
	gl.Release()
	require.Equal(t, 0, gl.Current())
	require.True(t, gl.Acquire())
}
