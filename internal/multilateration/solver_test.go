package multilateration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func anchorsFor(stations [][2]float64, emitter [2]float64) []Anchor {
	anchors := make([]Anchor, len(stations))
	for i, s := range stations {
		d := math.Hypot(emitter[0]-s[0], emitter[1]-s[1])
		anchors[i] = Anchor{X: s[0], Y: s[1], Distance: d}
	}
	return anchors
}

func TestSolveInsufficientAnchors(t *testing.T) {
	_, err := Solve([]Anchor{{X: 0, Y: 0, Distance: 1}, {X: 1, Y: 0, Distance: 1}})
	require.ErrorIs(t, err, ErrInsufficientAnchors)
}

func TestSolveIllConditionedCollinear(t *testing.T) {
	anchors := anchorsFor([][2]float64{{0, 0}, {5, 0}, {10, 0}}, [2]float64{3, 4})
	_, err := Solve(anchors)
	require.ErrorIs(t, err, ErrIllConditioned)
}

func TestSolveExactNoiseFreeTriple(t *testing.T) {
	stations := [][2]float64{{0, 0}, {10, 0}, {0, 10}}
	emitter := [2]float64{3, 4}
	anchors := anchorsFor(stations, emitter)

	res, err := Solve(anchors)
	require.NoError(t, err)
	require.InDelta(t, emitter[0], res.X, 0.01)
	require.InDelta(t, emitter[1], res.Y, 0.01)
	require.InDelta(t, 0, res.Residual, 0.01)
	require.Equal(t, 3, res.Count)
}

func TestSolveS1Scenario(t *testing.T) {
	stations := [][2]float64{{0, 0}, {10, 0}, {0, 10}}
	emitter := [2]float64{3, 4}
	anchors := anchorsFor(stations, emitter)

	require.InDelta(t, 5.0, anchors[0].Distance, 1e-9)
	require.InDelta(t, math.Sqrt(65), anchors[1].Distance, 1e-9)
	require.InDelta(t, math.Sqrt(45), anchors[2].Distance, 1e-9)

	res, err := Solve(anchors)
	require.NoError(t, err)
	require.InDelta(t, 3.0, res.X, 0.01)
	require.InDelta(t, 4.0, res.Y, 0.01)
}

func TestSolveTranslationEquivariance(t *testing.T) {
	stations := [][2]float64{{0, 0}, {10, 0}, {4, 12}, {-3, 6}}
	emitter := [2]float64{3, 4}
	shift := [2]float64{100, -50}

	base := anchorsFor(stations, emitter)
	resBase, err := Solve(base)
	require.NoError(t, err)

	shiftedStations := make([][2]float64, len(stations))
	for i, s := range stations {
		shiftedStations[i] = [2]float64{s[0] + shift[0], s[1] + shift[1]}
	}
	shiftedEmitter := [2]float64{emitter[0] + shift[0], emitter[1] + shift[1]}
	shiftedAnchors := anchorsFor(shiftedStations, shiftedEmitter)

	resShifted, err := Solve(shiftedAnchors)
	require.NoError(t, err)

	require.InDelta(t, resBase.X+shift[0], resShifted.X, 1e-6)
	require.InDelta(t, resBase.Y+shift[1], resShifted.Y, 1e-6)
}

func TestSolveResidualNonzeroUnderNoise(t *testing.T) {
	stations := [][2]float64{{0, 0}, {10, 0}, {0, 10}, {10, 10}}
	emitter := [2]float64{4, 4}
	anchors := anchorsFor(stations, emitter)
	anchors[2].Distance += 0.5 // perturb one reading

	res, err := Solve(anchors)
	require.NoError(t, err)
	require.Greater(t, res.Residual, 0.0)
}
