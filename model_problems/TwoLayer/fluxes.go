package TwoLayer

import (
	"math"

	"github.com/notargets/gotwolayer/types"
)

// EdgeContribution is what one edge deposits on its two volumes. Left and
// Right are numerical fluxes per unit edge length, in the global frame, in
// the direction of the edge normal (left to right). Mass components of Left
// and Right are always identical.
type EdgeContribution struct {
	Left, Right [types.NumVariables]float64
	DeltaT      float64 // CFL bound of the edge, +Inf when nothing moves
}

type FluxFunction interface {
	EdgeFlux(left, right types.Volume, normal [2]float64, dxLeft, dxRight float64) (ec EdgeContribution)
}

// HydrostaticRusanov applies hydrostatic reconstruction layer by layer, each
// layer sitting on a pseudo bottom made of the bathymetry and the other layer:
//   - layer 1 over z1 = h2 - H
//   - layer 2 over z2 = r*h1 - H, r = rho1/rho2
//
// The interface flux is Rusanov with the fastest two-layer signal speed.
type HydrostaticRusanov struct {
	Gravity      float64
	DensityRatio float64
	DryThreshold float64
	CFL          float64
}

type layerState struct {
	h, un, ut float64 // depth, normal and tangential velocity
	z         float64 // pseudo bottom
}

func (hr *HydrostaticRusanov) EdgeFlux(left, right types.Volume, normal [2]float64,
	dxLeft, dxRight float64) (ec EdgeContribution) {
	var (
		g, r   = hr.Gravity, hr.DensityRatio
		HL, HR = left.H(), right.H()
		l1     = hr.layer(left.W1, normal, left.W2[0]-HL)
		r1     = hr.layer(right.W1, normal, right.W2[0]-HR)
		l2     = hr.layer(left.W2, normal, r*left.W1[0]-HL)
		r2     = hr.layer(right.W2, normal, r*right.W1[0]-HR)
		cL     = math.Sqrt(g * (l1.h + l2.h))
		cR     = math.Sqrt(g * (r1.h + r2.h))
		a      = max(math.Abs(l1.un), math.Abs(l2.un), math.Abs(r1.un), math.Abs(r2.un)) +
			max(cL, cR)
	)
	fL1, fR1 := hr.layerFlux(l1, r1, a)
	fL2, fR2 := hr.layerFlux(l2, r2, a)
	hr.deposit(ec.Left[0:3], fL1, l1.h, normal)
	hr.deposit(ec.Right[0:3], fR1, r1.h, normal)
	hr.deposit(ec.Left[3:6], fL2, l2.h, normal)
	hr.deposit(ec.Right[3:6], fR2, r2.h, normal)
	if types.Sign(a) == 0 {
		ec.DeltaT = math.Inf(1)
		return
	}
	ec.DeltaT = hr.CFL * math.Min(dxLeft, dxRight) / a
	return
}

func (hr *HydrostaticRusanov) layer(w types.Float4, n [2]float64, z float64) (ls layerState) {
	ls.h, ls.z = w[0], z
	if ls.h <= hr.DryThreshold {
		return
	}
	qn := w[1]*n[0] + w[2]*n[1]
	qt := -w[1]*n[1] + w[2]*n[0]
	ls.un, ls.ut = qn/ls.h, qt/ls.h
	return
}

// layerFlux returns the normal frame fluxes (mass, normal momentum,
// tangential momentum) seen by the left and right volumes
func (hr *HydrostaticRusanov) layerFlux(L, R layerState, a float64) (fL, fR [3]float64) {
	var (
		g   = hr.Gravity
		zs  = math.Max(L.z, R.z)
		hsL = math.Max(0, L.h+L.z-zs)
		hsR = math.Max(0, R.h+R.z-zs)
		F   [3]float64
	)
	UL := [3]float64{hsL, hsL * L.un, hsL * L.ut}
	UR := [3]float64{hsR, hsR * R.un, hsR * R.ut}
	FL := [3]float64{UL[1], UL[1]*L.un + 0.5*g*hsL*hsL, UL[1] * L.ut}
	FR := [3]float64{UR[1], UR[1]*R.un + 0.5*g*hsR*hsR, UR[1] * R.ut}
	for n := 0; n < 3; n++ {
		F[n] = 0.5*(FL[n]+FR[n]) - 0.5*a*(UR[n]-UL[n])
	}
	fL, fR = F, F
	fL[1] += 0.5 * g * (L.h*L.h - hsL*hsL)
	fR[1] += 0.5 * g * (R.h*R.h - hsR*hsR)
	return
}

// deposit rotates a normal frame flux back to x, y. A dry volume takes no momentum.
func (hr *HydrostaticRusanov) deposit(dst []float64, f [3]float64, h float64, n [2]float64) {
	dst[0] = f[0]
	if h <= hr.DryThreshold {
		return
	}
	dst[1] = f[1]*n[0] - f[2]*n[1]
	dst[2] = f[1]*n[1] + f[2]*n[0]
}
