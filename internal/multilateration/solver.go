// Package multilateration implements the weighted least-squares solver
// described in spec §4.8: given ≥3 (station position, estimated
// distance) pairs, estimate the emitter's (x, y).
package multilateration

import (
	"errors"
	"math"
)

// ErrInsufficientAnchors is returned when fewer than 3 anchors are given.
var ErrInsufficientAnchors = errors.New("multilateration: fewer than 3 anchors")

// ErrIllConditioned is returned when the anchor geometry is (near)
// collinear and the 2x2 normal-equations solve would divide by ~0.
var ErrIllConditioned = errors.New("multilateration: ill-conditioned geometry")

// detEpsilon is the determinant threshold below which the 2x2 solve is
// rejected as singular (spec §4.8).
const detEpsilon = 1e-6

// Anchor is one station's contribution: its fixed position and the
// path-loss distance estimate derived from its RSSI reading.
type Anchor struct {
	X, Y     float64
	Distance float64
}

// Result is a solved position plus its fit quality.
type Result struct {
	X, Y     float64
	Residual float64
	Count    int
}

// Solve estimates (x, y) from anchors by linearizing each circle
// equation against a reference anchor (the first one) and solving the
// resulting (k-1)-equation system by weighted least squares, weight
// 1/distance^2 per row — closer stations dominate, the conventional
// choice under log-distance noise (spec §4.8).
func Solve(anchors []Anchor) (Result, error) {
	k := len(anchors)
	if k < 3 {
		return Result{}, ErrInsufficientAnchors
	}

	ref := anchors[0]
	refSq := ref.X*ref.X + ref.Y*ref.Y

	// Normal equations AᵀWA * p = AᵀWb, accumulated row by row since A
	// is (k-1) x 2 and the 2x2 solve is explicit.
	var ata [2][2]float64
	var atb [2]float64

	for _, a := range anchors[1:] {
		rowX := 2 * (a.X - ref.X)
		rowY := 2 * (a.Y - ref.Y)
		rowB := (a.X*a.X + a.Y*a.Y - refSq) - (a.Distance*a.Distance - ref.Distance*ref.Distance)
		w := 1.0 / (a.Distance * a.Distance)

		ata[0][0] += w * rowX * rowX
		ata[0][1] += w * rowX * rowY
		ata[1][0] += w * rowY * rowX
		ata[1][1] += w * rowY * rowY

		atb[0] += w * rowX * rowB
		atb[1] += w * rowY * rowB
	}

	det := ata[0][0]*ata[1][1] - ata[0][1]*ata[1][0]
	if math.Abs(det) < detEpsilon {
		return Result{}, ErrIllConditioned
	}

	x := (atb[0]*ata[1][1] - ata[0][1]*atb[1]) / det
	y := (ata[0][0]*atb[1] - atb[0]*ata[1][0]) / det

	var sumSq float64
	for _, a := range anchors {
		dx, dy := x-a.X, y-a.Y
		diff := math.Hypot(dx, dy) - a.Distance
		sumSq += diff * diff
	}
	residual := math.Sqrt(sumSq / float64(k))

	return Result{X: x, Y: y, Residual: residual, Count: k}, nil
}
