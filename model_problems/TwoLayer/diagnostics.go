package TwoLayer

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gotwolayer/types"
)

// Diagnostics summarizes the owned volumes of all clusters. They are only
// valid between steps.
type Diagnostics struct {
	Mass1, Mass2         float64 // integral of each layer depth
	MinDepth1, MinDepth2 float64
	MaxSpeed             float64
	MaxEta1              float64
	HasNaN               bool
}

func (s *Solver) Diagnostics() (d Diagnostics, err error) {
	var (
		h1, h2, area, speed, eta []float64
	)
	for _, cl := range s.Clusters {
		var (
			vol1, vol2 []types.Float4
		)
		if vol1, vol2, err = cl.Grid.Download(); err != nil {
			return
		}
		for i := range vol1 {
			h1 = append(h1, vol1[i][0])
			h2 = append(h2, vol2[i][0])
			area = append(area, vol2[i][3])
			eta = append(eta, types.Eta1(vol1[i], vol2[i]))
			speed = append(speed, math.Max(
				velocity(vol1[i], s.Params.DryThreshold), velocity(vol2[i], s.Params.DryThreshold)))
		}
	}
	d = Diagnostics{
		Mass1:     floats.Dot(h1, area),
		Mass2:     floats.Dot(h2, area),
		MinDepth1: floats.Min(h1),
		MinDepth2: floats.Min(h2),
		MaxSpeed:  floats.Max(speed),
		MaxEta1:   floats.Max(eta),
		HasNaN:    floats.HasNaN(h1) || floats.HasNaN(h2) || floats.HasNaN(speed),
	}
	return
}

// LayerMass is the volume of each layer over the whole domain
func (s *Solver) LayerMass() (m1, m2 float64, err error) {
	var d Diagnostics
	if d, err = s.Diagnostics(); err != nil {
		return
	}
	m1, m2 = d.Mass1, d.Mass2
	return
}

func velocity(w types.Float4, dry float64) float64 {
	if w[0] <= dry {
		return 0
	}
	return math.Hypot(w[1], w[2]) / w[0]
}
