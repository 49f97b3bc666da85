package TwoLayer

import (
	"github.com/notargets/gotwolayer/device"
	"github.com/notargets/gotwolayer/types"
)

// UpdateState applies the accumulated fluxes, friction and depth flooring to
// every owned volume and tracks the eta1 maxima. tNew is the time after the step.
func (c *TimeStepController) UpdateState(tNew, dt float64) {
	var (
		cg     = c.Grid
		kp     = cg.Plan
		nx, ny = cg.NumVolX, cg.NumVolY
		dry    = c.DryThreshold
		vol1   = cg.Volumes1.Data()
		vol2   = cg.Volumes2.Data()
		acc1   = cg.Acc1.Data()
		acc2   = cg.Acc2.Data()
		etaMax = cg.Eta1Max.Data()
	)
	cg.Dev.Launch(kp.BlockGridEst, kp.ThreadBlockEst, func(th device.Thread) {
		x, y := th.GlobalX(), th.GlobalY()
		if x >= nx || y >= ny {
			return
		}
		var (
			vi     = cg.VolumeIndex(x, y)
			ai     = cg.AccIndex(x, y)
			w1, w2 = vol1[vi], vol2[vi]
			f      = dt / w2[3]
		)
		for d := 0; d < 3; d++ {
			w1[d] += f * acc1[ai][d]
			w2[d] += f * acc2[ai][d]
		}
		floorNegative(&w1)
		floorNegative(&w2)
		if c.Friction != nil {
			c.Friction.Apply(&w1, &w2, dt)
		}
		stopDry(&w1, dry)
		stopDry(&w2, dry)
		vol1[vi], vol2[vi] = w1, w2
		if w1[0]+w2[0] > dry {
			if eta := types.Eta1(w1, w2); eta > etaMax[ai][0] {
				etaMax[ai] = types.Float2{eta, tNew}
			}
		}
	})
}

func floorNegative(w *types.Float4) {
	if w[0] < 0 {
		w[0], w[1], w[2] = 0, 0, 0
	}
}

func stopDry(w *types.Float4, dry float64) {
	if w[0] <= dry {
		w[1], w[2] = 0, 0
	}
}
