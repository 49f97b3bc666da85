package types

import "math"

const (
	// NumVariables counts the conserved quantities per volume: h1, q1x, q1y, h2, q2x, q2y
	NumVariables = 6
	// EPSILON is the single precision machine epsilon, magnitudes below it have no sign
	EPSILON = 1.1920928955078125e-07
)

// Float4 is the packed per-volume record, laid out x, y, z, w
type Float4 [4]float64

// Float2 holds the running eta1 maximum and the time it was reached
type Float2 [2]float64

// Volume is one cell as seen by an edge kernel
//   - W1 = (h1, q1x, q1y, H), H is the still water depth, positive downward
//   - W2 = (h2, q2x, q2y, area)
type Volume struct {
	W1, W2 Float4
}

func (v Volume) H() float64    { return v.W1[3] }
func (v Volume) Area() float64 { return v.W2[3] }

// Eta1 is the free surface elevation h1 + h2 - H
func (v Volume) Eta1() float64 {
	return Eta1(v.W1, v.W2)
}

func Eta1(w1, w2 Float4) float64 {
	return w1[0] + w2[0] - w1[3]
}

// Sign returns -1, 0 or 1, treating anything closer to zero than EPSILON as zero
func Sign(x float64) int {
	switch {
	case math.Abs(x) < EPSILON:
		return 0
	case x > 0:
		return 1
	default:
		return -1
	}
}
