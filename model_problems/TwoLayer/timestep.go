package TwoLayer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gotwolayer/device"
	"github.com/notargets/gotwolayer/halo"
	"github.com/notargets/gotwolayer/types"
)

type StepState uint8

const (
	EdgesPending StepState = iota
	TimeStepReduced
	StateUpdated
	HalosRefreshed
)

func (ss StepState) String() string {
	return [...]string{"EdgesPending", "TimeStepReduced", "StateUpdated", "HalosRefreshed"}[ss]
}

// TimeStepController advances one cluster. A step is edge launches, the time
// step reduction, the state update and the halo refresh, strictly in order.
type TimeStepController struct {
	Grid         *ClusterGrid
	Flux         FluxFunction
	Friction     *FrictionLaw // nil for frictionless runs
	West, East   halo.BoundaryCondition
	South, North halo.BoundaryCondition // used where the strip has no neighbor
	Transport    halo.Transport         // nil for a lone cluster
	DryThreshold float64
	MaxDeltaT    float64 // zero or less means no cap
	state        StepState
	localMin     float64
}

func (c *TimeStepController) State() StepState { return c.state }

// LocalMinDeltaT is this cluster's contribution to the last reduction
func (c *TimeStepController) LocalMinDeltaT() float64 { return c.localMin }

// RefreshHalos fills the ghost rows, it must run once after upload before the first step
func (c *TimeStepController) RefreshHalos() (err error) {
	c.Grid.Halo.Transport = c.Transport
	c.Grid.Halo.BCs = [2]halo.BoundaryCondition{c.South, c.North}
	if err = c.Grid.Halo.Refresh(); err != nil {
		return
	}
	c.state = HalosRefreshed
	return
}

// Step advances from t by the global time step, never past tLimit
func (c *TimeStepController) Step(t, tLimit float64) (dt float64, err error) {
	var (
		global float64
	)
	if !c.Grid.Tex1.Bound() || !c.Grid.Tex2.Bound() {
		err = fmt.Errorf("step on cluster %d: %w", c.Grid.ID, types.ErrAlreadyReleased)
		return
	}
	c.state = EdgesPending
	c.DispatchEdges()
	c.localMin = c.ReduceLocalDeltaT()
	if global, err = c.allReduceMin(c.localMin); err != nil {
		return
	}
	if dt, err = ClampDeltaT(global, c.MaxDeltaT, tLimit-t); err != nil {
		err = fmt.Errorf("cluster %d at t = %g: %w", c.Grid.ID, t, err)
		return
	}
	c.state = TimeStepReduced
	c.UpdateState(t+dt, dt)
	c.state = StateUpdated
	if err = c.Grid.Halo.Refresh(); err != nil {
		err = fmt.Errorf("cluster %d at t = %g: %w", c.Grid.ID, t, err)
		return
	}
	c.state = HalosRefreshed
	return
}

func (c *TimeStepController) allReduceMin(v float64) (float64, error) {
	if c.Transport == nil {
		return v, nil
	}
	return c.Transport.AllReduceMin(v)
}

// ClampDeltaT limits the reduced time step by the configured maximum and the
// time left to the next checkpoint or the end of the run
func ClampDeltaT(global, maxDeltaT, remaining float64) (dt float64, err error) {
	dt = math.Min(global, remaining)
	if maxDeltaT > 0 {
		dt = math.Min(dt, maxDeltaT)
	}
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 {
		err = fmt.Errorf("time step %g (reduced %g, max %g, remaining %g): %w",
			dt, global, maxDeltaT, remaining, types.ErrNumericInstability)
	}
	return
}

// ReduceLocalDeltaT copies each volume's edge bound out of the accumulators
// and reduces it to one partial minimum per block, then over the blocks
func (c *TimeStepController) ReduceLocalDeltaT() (localMin float64) {
	var (
		cg       = c.Grid
		kp       = cg.Plan
		n        = cg.NumVolX * cg.NumVolY
		acc1     = cg.Acc1.Data()
		dtv      = cg.DeltaTVolumes.Data()
		partials = dtv[n:]
	)
	cg.Dev.LaunchBlocks(kp.BlockGridDeltaT, kp.ThreadBlockDeltaT, func(b device.Block) {
		blockMin := math.Inf(1)
		for tn := 0; tn < b.BlockDim.X; tn++ {
			i := b.Thread(tn).GlobalX()
			if i >= n {
				break
			}
			dtv[i] = acc1[i][3]
			blockMin = math.Min(blockMin, dtv[i])
		}
		partials[b.BlockIdx.X] = blockMin
	})
	if floats.HasNaN(partials) {
		return math.NaN()
	}
	localMin = floats.Min(partials)
	return
}
