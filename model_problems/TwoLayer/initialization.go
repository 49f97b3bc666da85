package TwoLayer

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/gotwolayer/types"
)

type InitType uint

const (
	LAKEATREST InitType = iota
	DAMBREAK
	LANDSLIDE
)

var (
	InitNames = map[string]InitType{
		"lakeatrest": LAKEATREST,
		"dambreak":   DAMBREAK,
		"landslide":  LANDSLIDE,
	}
	InitPrintNames = []string{"Lake At Rest", "Two Layer Dam Break", "Submarine Landslide"}
)

func (it InitType) Print() (txt string) {
	txt = InitPrintNames[it]
	return
}

func NewInitType(label string) (it InitType, err error) {
	var (
		ok bool
	)
	if len(label) == 0 {
		err = fmt.Errorf("empty init type, must be one of %v: %w", InitNames, types.ErrConfiguration)
		return
	}
	label = strings.ToLower(label)
	if it, ok = InitNames[label]; !ok {
		err = fmt.Errorf("unable to use init type named %s: %w", label, types.ErrConfiguration)
	}
	return
}

// GridGeometry describes the global grid the initial state is laid on
type GridGeometry struct {
	NumVolX, NumVolY int
	Dx, Dy           float64
}

func (gg GridGeometry) Center(i, j int) (x, y float64) {
	x = (float64(i) + 0.5) * gg.Dx
	y = (float64(j) + 0.5) * gg.Dy
	return
}

func (gg GridGeometry) Extent() (Lx, Ly float64) {
	return float64(gg.NumVolX) * gg.Dx, float64(gg.NumVolY) * gg.Dy
}

// InitialState returns the packed records of global volume (i, j)
func (it InitType) InitialState(gg GridGeometry, i, j int) (w1, w2 types.Float4) {
	var (
		x, y   = gg.Center(i, j)
		Lx, Ly = gg.Extent()
		area   = gg.Dx * gg.Dy
		H      float64
		h1, h2 float64
	)
	switch it {
	case LAKEATREST:
		// Flat surface and flat interface over a submerged bump
		var (
			interfaceDepth = 4.
			r2             = sqr((x-0.5*Lx)/(0.2*Lx)) + sqr((y-0.5*Ly)/(0.2*Ly))
		)
		H = 10 - 4*math.Exp(-r2)
		h1 = interfaceDepth
		h2 = H - interfaceDepth
	case DAMBREAK:
		H = 10
		h2 = 2
		h1 = H - h2
		if x < 0.5*Lx {
			h1 += 1
		}
	case LANDSLIDE:
		// Sediment mound resting on a slope rising toward x = 0
		var (
			r2 = sqr((x-0.3*Lx)/(0.1*Lx)) + sqr((y-0.5*Ly)/(0.1*Ly))
		)
		H = 20 + 80*x/Lx
		h2 = 10 * math.Exp(-r2)
		if h2 < 1.e-3 {
			h2 = 0
		}
		h1 = H - h2
	default:
		panic(fmt.Errorf("no initial state for init type %d", it))
	}
	w1 = types.Float4{h1, 0, 0, H}
	w2 = types.Float4{h2, 0, 0, area}
	return
}

func sqr(x float64) float64 { return x * x }
