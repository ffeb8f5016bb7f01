package tracker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"wifipresence/internal/pathloss"
	"wifipresence/internal/store"
)

func testStations() map[string]StationInfo {
	cal := pathloss.Calibration{RSSIAt1m: -45, Exponent: 2}
	return map[string]StationInfo{
		"s1": {X: 0, Y: 0, Calibration: cal},
		"s2": {X: 10, Y: 0, Calibration: cal},
		"s3": {X: 0, Y: 10, Calibration: cal},
	}
}

func readingFor(stations map[string]StationInfo, id string, emitterX, emitterY float64, ts uint64) store.RSSIReading {
	info := stations[id]
	d := math.Hypot(emitterX-info.X, emitterY-info.Y)
	rssi := pathloss.RSSIForDistance(d, info.Calibration)
	return store.RSSIReading{RSSI: int8(rssi), Timestamp: ts}
}

func TestUpdateS1ThreeStations(t *testing.T) {
	stations := testStations()
	tr := New(stations, Room{Width: 20, Height: 20})

	readings := map[string]store.RSSIReading{
		"s1": readingFor(stations, "s1", 3, 4, 1000),
		"s2": readingFor(stations, "s2", 3, 4, 1000),
		"s3": readingFor(stations, "s3", 3, 4, 1000),
	}

	pos := tr.Update("dev1", readings, 1000)
	require.NotNil(t, pos)
	require.InDelta(t, 3.0, pos.X, 0.2)
	require.InDelta(t, 4.0, pos.Y, 0.2)
	require.Equal(t, 3, pos.Stations)
}

func TestUpdateS2OnlyTwoStations(t *testing.T) {
	stations := testStations()
	tr := New(stations, Room{Width: 20, Height: 20})

	readings := map[string]store.RSSIReading{
		"s1": readingFor(stations, "s1", 3, 4, 1000),
		"s2": readingFor(stations, "s2", 3, 4, 1000),
	}

	pos := tr.Update("dev1", readings, 1000)
	require.Nil(t, pos)
}

func TestUpdateS3StaleReadingExcluded(t *testing.T) {
	stations := testStations()
	tr := New(stations, Room{Width: 20, Height: 20})

	newest := uint64(40_000_000)
	readings := map[string]store.RSSIReading{
		"s1": readingFor(stations, "s1", 3, 4, newest),
		"s2": readingFor(stations, "s2", 3, 4, newest),
		"s3": readingFor(stations, "s3", 3, 4, 0), // 40s older than newest
	}

	pos := tr.Update("dev1", readings, newest)
	require.Nil(t, pos)
}

func TestUpdateSmoothsTowardNewSolution(t *testing.T) {
	stations := testStations()
	tr := New(stations, Room{Width: 20, Height: 20})

	first := map[string]store.RSSIReading{
		"s1": readingFor(stations, "s1", 3, 4, 1000),
		"s2": readingFor(stations, "s2", 3, 4, 1000),
		"s3": readingFor(stations, "s3", 3, 4, 1000),
	}
	pos1 := tr.Update("dev1", first, 1000)
	require.NotNil(t, pos1)

	second := map[string]store.RSSIReading{
		"s1": readingFor(stations, "s1", 8, 8, 2000),
		"s2": readingFor(stations, "s2", 8, 8, 2000),
		"s3": readingFor(stations, "s3", 8, 8, 2000),
	}
	pos2 := tr.Update("dev1", second, 2000)
	require.NotNil(t, pos2)

	// Smoothed result should land strictly between the two raw solves,
	// not jump straight to the new one.
	require.Less(t, pos2.X, 8.0)
	require.Greater(t, pos2.X, pos1.X)
}

func TestUpdateClampsToRoom(t *testing.T) {
	stations := map[string]StationInfo{
		"s1": {X: 0, Y: 0, Calibration: pathloss.Calibration{RSSIAt1m: -45, Exponent: 2}},
		"s2": {X: 10, Y: 0, Calibration: pathloss.Calibration{RSSIAt1m: -45, Exponent: 2}},
		"s3": {X: 0, Y: 10, Calibration: pathloss.Calibration{RSSIAt1m: -45, Exponent: 2}},
	}
	tr := New(stations, Room{Width: 5, Height: 5})

	readings := map[string]store.RSSIReading{
		"s1": readingFor(stations, "s1", 9, 9, 1000),
		"s2": readingFor(stations, "s2", 9, 9, 1000),
		"s3": readingFor(stations, "s3", 9, 9, 1000),
	}
	pos := tr.Update("dev1", readings, 1000)
	require.NotNil(t, pos)
	require.LessOrEqual(t, pos.X, 5.0)
	require.LessOrEqual(t, pos.Y, 5.0)
}

func TestUpdateClampsBothAxesWhenOneRoomDimensionIsUnset(t *testing.T) {
	stations := map[string]StationInfo{
		"s1": {X: 0, Y: 0, Calibration: pathloss.Calibration{RSSIAt1m: -45, Exponent: 2}},
		"s2": {X: 10, Y: 0, Calibration: pathloss.Calibration{RSSIAt1m: -45, Exponent: 2}},
		"s3": {X: 0, Y: 10, Calibration: pathloss.Calibration{RSSIAt1m: -45, Exponent: 2}},
	}
	// Height left at zero, as a misconfigured config.yaml might leave it.
	tr := New(stations, Room{Width: 10, Height: 0})

	readings := map[string]store.RSSIReading{
		"s1": readingFor(stations, "s1", 9, 9, 1000),
		"s2": readingFor(stations, "s2", 9, 9, 1000),
		"s3": readingFor(stations, "s3", 9, 9, 1000),
	}
	pos := tr.Update("dev1", readings, 1000)
	require.NotNil(t, pos)
	require.GreaterOrEqual(t, pos.Y, 0.0)
	require.LessOrEqual(t, pos.Y, defaultRoomDiagonal)
}

func TestForgetDropsSmoothingStateForGivenHashes(t *testing.T) {
	stations := testStations()
	tr := New(stations, Room{Width: 20, Height: 20})

	readings := map[string]store.RSSIReading{
		"s1": readingFor(stations, "s1", 3, 4, 1000),
		"s2": readingFor(stations, "s2", 3, 4, 1000),
		"s3": readingFor(stations, "s3", 3, 4, 1000),
	}
	require.NotNil(t, tr.Update("dev1", readings, 1000))
	_, tracked := tr.last["dev1"]
	require.True(t, tracked)

	tr.Forget([]string{"dev1", "never-seen"})
	_, tracked = tr.last["dev1"]
	require.False(t, tracked)
}
