package TwoLayer

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/gotwolayer/types"
)

type FrictionType uint

const (
	FRICTION_Coulomb FrictionType = iota
	FRICTION_Pouliquen
)

var (
	FrictionNames = map[string]FrictionType{
		"coulomb":   FRICTION_Coulomb,
		"pouliquen": FRICTION_Pouliquen,
	}
	FrictionPrintNames = []string{"Coulomb", "Pouliquen"}
)

func (ft FrictionType) Print() (txt string) {
	txt = FrictionPrintNames[ft]
	return
}

func NewFrictionType(label string) (ft FrictionType, err error) {
	var (
		ok bool
	)
	if len(label) == 0 {
		return FRICTION_Coulomb, nil
	}
	label = strings.ToLower(label)
	if ft, ok = FrictionNames[label]; !ok {
		err = fmt.Errorf("unable to use friction law named %s: %w", label, types.ErrConfiguration)
	}
	return
}

// FrictionLaw is applied volume by volume after the flux update
type FrictionLaw struct {
	Type         FrictionType
	Gravity      float64
	DensityRatio float64
	DryThreshold float64
	// Coulomb basal friction of the lower layer, tangent of the friction angle
	TanDelta float64
	// Pouliquen: mu varies from TanDelta1 to TanDelta2 with the Froude number
	TanDelta1, TanDelta2 float64
	Beta, L              float64
	// Drag between the layers
	InterfaceDrag float64
	// Manning roughness felt by the upper layer where the lower one is dry
	Manning float64
}

// Mu is the basal friction coefficient of the lower layer
func (fl *FrictionLaw) Mu(h2, speed float64) (mu float64) {
	switch fl.Type {
	case FRICTION_Pouliquen:
		Fr := speed / math.Sqrt(fl.Gravity*h2)
		if types.Sign(Fr) == 0 {
			mu = fl.TanDelta1
			return
		}
		mu = fl.TanDelta1 + (fl.TanDelta2-fl.TanDelta1)/(fl.Beta*h2/(fl.L*Fr)+1)
	default:
		mu = fl.TanDelta
	}
	return
}

func (fl *FrictionLaw) Apply(w1, w2 *types.Float4, dt float64) {
	var (
		g, r = fl.Gravity, fl.DensityRatio
		h1   = w1[0]
		h2   = w2[0]
		dry1 = h1 <= fl.DryThreshold
		dry2 = h2 <= fl.DryThreshold
	)
	if !dry1 && !dry2 && fl.InterfaceDrag > 0 {
		// Implicit in the relative velocity, momentum conserving
		var (
			k      = fl.InterfaceDrag * h1 * h2 / (h2 + r*h1)
			factor = 1 / (1 + dt*k*(1/h1+r/h2))
		)
		for d := 1; d <= 2; d++ {
			rel := w1[d]/h1 - w2[d]/h2
			J := dt * k * rel * factor
			w1[d] -= J
			w2[d] += r * J
		}
	}
	if !dry2 {
		var (
			qMod  = math.Hypot(w2[1], w2[2])
			mu    = fl.Mu(h2, qMod/h2)
			decel = g * (1 - r) * h2 * mu * dt
		)
		if math.IsNaN(decel) || math.IsInf(decel, 0) {
			// Left for the next time step reduction to report
			w2[1], w2[2] = math.NaN(), math.NaN()
		} else if types.Sign(qMod-decel) <= 0 {
			w2[1], w2[2] = 0, 0
		} else {
			scale := 1 - decel/qMod
			w2[1] *= scale
			w2[2] *= scale
		}
	}
	if !dry1 && dry2 && fl.Manning > 0 {
		var (
			speed = math.Hypot(w1[1], w1[2]) / h1
			c     = g * fl.Manning * fl.Manning * speed / math.Pow(h1, 4./3.)
			scale = 1 / (1 + dt*c)
		)
		w1[1] *= scale
		w1[2] *= scale
	}
}
