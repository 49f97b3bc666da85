package TwoLayer

import (
	"math"

	"github.com/notargets/gotwolayer/device"
	"github.com/notargets/gotwolayer/halo"
	"github.com/notargets/gotwolayer/types"
)

var (
	normalX = [2]float64{1, 0} // vertical edges, left volume is west
	normalY = [2]float64{0, 1} // horizontal edges, left volume is south
	westOut = [2]float64{-1, 0}
	eastOut = [2]float64{1, 0}
)

// DispatchEdges runs the five edge launches of a step in order. Each launch
// returns only when all of its blocks are done, and within a launch edges of
// one parity never share a volume, so accumulator writes never collide.
func (c *TimeStepController) DispatchEdges() {
	var (
		kp  = c.Grid.Plan
		dev = c.Grid.Dev
	)
	dev.Launch(kp.BlockGridVer1, kp.ThreadBlockAri, c.verticalEdgeKernel(0, true))
	dev.Launch(kp.BlockGridVer2, kp.ThreadBlockAri, c.verticalEdgeKernel(1, false))
	dev.Launch(kp.BlockGridHor1, kp.ThreadBlockAri, c.horizontalEdgeKernel(1))
	dev.Launch(kp.BlockGridHor2, kp.ThreadBlockAri, c.horizontalEdgeKernel(2))
	dev.Launch(kp.BlockGridHorCom, kp.ThreadBlockAriCom, c.comEdgeKernel())
}

func (c *TimeStepController) fetch(x, row int) types.Volume {
	return types.Volume{
		W1: c.Grid.Tex1.Fetch(x, row),
		W2: c.Grid.Tex2.Fetch(x, row),
	}
}

func (c *TimeStepController) ghost(v types.Volume, bc halo.BoundaryCondition, n [2]float64) (g types.Volume) {
	g.W1, g.W2 = bc.Ghost(v.W1, v.W2, n)
	return
}

// verticalEdgeKernel handles edge columns i = 2*gx + first, the edge between
// volumes i-1 and i. Columns 0 and NumVolX are the west and east domain edges.
// The first launch assigns, which clears what the previous step left behind.
func (c *TimeStepController) verticalEdgeKernel(first int, assign bool) device.Kernel {
	var (
		cg     = c.Grid
		nx, ny = cg.NumVolX, cg.NumVolY
		length = cg.Dy
	)
	return func(th device.Thread) {
		var (
			i    = 2*th.GlobalX() + first
			y    = th.GlobalY()
			L, R types.Volume
		)
		if i > nx || y >= ny {
			return
		}
		switch i {
		case 0:
			R = c.fetch(0, y+1)
			L = c.ghost(R, c.West, westOut)
		case nx:
			L = c.fetch(nx-1, y+1)
			R = c.ghost(L, c.East, eastOut)
		default:
			L = c.fetch(i-1, y+1)
			R = c.fetch(i, y+1)
		}
		ec := c.Flux.EdgeFlux(L, R, normalX, cg.Dx, cg.Dx)
		if i > 0 {
			c.deposit(cg.AccIndex(i-1, y), &ec.Left, -length, ec.DeltaT, assign)
		}
		if i < nx {
			c.deposit(cg.AccIndex(i, y), &ec.Right, length, ec.DeltaT, assign)
		}
	}
}

// horizontalEdgeKernel handles interior edge rows j = 2*gy + first, the edge
// between owned rows j-1 and j
func (c *TimeStepController) horizontalEdgeKernel(first int) device.Kernel {
	var (
		cg     = c.Grid
		nx, ny = cg.NumVolX, cg.NumVolY
		length = cg.Dx
	)
	return func(th device.Thread) {
		var (
			x = th.GlobalX()
			j = 2*th.GlobalY() + first
		)
		if x >= nx || j > ny-1 {
			return
		}
		L := c.fetch(x, j)
		R := c.fetch(x, j+1)
		ec := c.Flux.EdgeFlux(L, R, normalY, cg.Dy, cg.Dy)
		c.deposit(cg.AccIndex(x, j-1), &ec.Left, -length, ec.DeltaT, false)
		c.deposit(cg.AccIndex(x, j), &ec.Right, length, ec.DeltaT, false)
	}
}

// comEdgeKernel handles edge rows 0 and NumVolY, which read the ghost rows.
// Only the owned side is updated, the neighbor computes the same edge.
func (c *TimeStepController) comEdgeKernel() device.Kernel {
	var (
		cg     = c.Grid
		nx, ny = cg.NumVolX, cg.NumVolY
		length = cg.Dx
	)
	return func(th device.Thread) {
		var (
			x = th.GlobalX()
		)
		if x >= nx {
			return
		}
		if th.ThreadIdx.Y == 0 {
			L := c.fetch(x, 0)
			R := c.fetch(x, 1)
			ec := c.Flux.EdgeFlux(L, R, normalY, cg.Dy, cg.Dy)
			c.deposit(cg.AccIndex(x, 0), &ec.Right, length, ec.DeltaT, false)
			return
		}
		L := c.fetch(x, ny)
		R := c.fetch(x, ny+1)
		ec := c.Flux.EdgeFlux(L, R, normalY, cg.Dy, cg.Dy)
		c.deposit(cg.AccIndex(x, ny-1), &ec.Left, -length, ec.DeltaT, false)
	}
}

func (c *TimeStepController) deposit(idx int, f *[types.NumVariables]float64, scale, dt float64, assign bool) {
	var (
		acc1 = &c.Grid.Acc1.Data()[idx]
		acc2 = &c.Grid.Acc2.Data()[idx]
	)
	if assign {
		*acc1 = types.Float4{scale * f[0], scale * f[1], scale * f[2], dt}
		*acc2 = types.Float4{scale * f[3], scale * f[4], scale * f[5], 0}
		return
	}
	acc1[0] += scale * f[0]
	acc1[1] += scale * f[1]
	acc1[2] += scale * f[2]
	acc1[3] = math.Min(acc1[3], dt)
	acc2[0] += scale * f[3]
	acc2[1] += scale * f[4]
	acc2[2] += scale * f[5]
}
