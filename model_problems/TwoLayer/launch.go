package TwoLayer

import (
	"fmt"

	"github.com/notargets/gotwolayer/device"
	"github.com/notargets/gotwolayer/types"
)

// Thread block shapes
const (
	EdgeBlockWidth    = 8  // edge processing
	EdgeBlockHeight   = 8
	ComEdgeBlockWidth = 32 // communication edges, two rows high
	VolumeBlockSize   = 256
	StateBlockWidth   = 8
	StateBlockHeight  = 8
)

// IDivUp rounds a/b up
func IDivUp(a, b int) int {
	if a%b != 0 {
		return a/b + 1
	}
	return a / b
}

// KernelLaunchPlan holds the grid and block shapes of every launch of a
// cluster, fixed once the cluster dimensions are known
type KernelLaunchPlan struct {
	NumVolX, NumVolY             int
	BlockGridVer1, BlockGridVer2 device.Dim3 // even and odd vertical edge columns
	BlockGridHor1, BlockGridHor2 device.Dim3 // odd and even interior horizontal edge rows
	ThreadBlockAri               device.Dim3
	BlockGridHorCom              device.Dim3 // edge rows 0 and NumVolY
	ThreadBlockAriCom            device.Dim3
	BlockGridDeltaT              device.Dim3
	ThreadBlockDeltaT            device.Dim3
	BlockGridEst                 device.Dim3
	ThreadBlockEst               device.Dim3
}

func NewKernelLaunchPlan(numVolX, numVolY int) (kp KernelLaunchPlan, err error) {
	if numVolX < 1 {
		err = fmt.Errorf("cluster needs at least one column, have %d: %w", numVolX, types.ErrConfiguration)
		return
	}
	if numVolY < 2 {
		err = fmt.Errorf("cluster needs at least two rows, have %d: %w", numVolY, types.ErrConfiguration)
		return
	}
	var (
		ver1Cols = numVolX/2 + 1     // i = 0, 2, ... <= numVolX
		ver2Cols = (numVolX + 1) / 2 // i = 1, 3, ... <= numVolX
		hor1Rows = numVolY / 2       // j = 1, 3, ... <= numVolY-1
		hor2Rows = (numVolY - 1) / 2 // j = 2, 4, ... <= numVolY-1
	)
	kp = KernelLaunchPlan{
		NumVolX:           numVolX,
		NumVolY:           numVolY,
		BlockGridVer1:     device.NewDim3(IDivUp(ver1Cols, EdgeBlockWidth), IDivUp(numVolY, EdgeBlockHeight)),
		BlockGridVer2:     device.NewDim3(IDivUp(ver2Cols, EdgeBlockWidth), IDivUp(numVolY, EdgeBlockHeight)),
		BlockGridHor1:     device.NewDim3(IDivUp(numVolX, EdgeBlockWidth), IDivUp(hor1Rows, EdgeBlockHeight)),
		BlockGridHor2:     device.NewDim3(IDivUp(numVolX, EdgeBlockWidth), IDivUp(hor2Rows, EdgeBlockHeight)),
		ThreadBlockAri:    device.NewDim3(EdgeBlockWidth, EdgeBlockHeight),
		BlockGridHorCom:   device.NewDim3(IDivUp(numVolX, ComEdgeBlockWidth), 1),
		ThreadBlockAriCom: device.NewDim3(ComEdgeBlockWidth, 2),
		BlockGridDeltaT:   device.NewDim3(IDivUp(numVolX*numVolY, VolumeBlockSize), 1),
		ThreadBlockDeltaT: device.NewDim3(VolumeBlockSize, 1),
		BlockGridEst:      device.NewDim3(IDivUp(numVolX, StateBlockWidth), IDivUp(numVolY, StateBlockHeight)),
		ThreadBlockEst:    device.NewDim3(StateBlockWidth, StateBlockHeight),
	}
	return
}

func (kp KernelLaunchPlan) NumDeltaTBlocks() int { return kp.BlockGridDeltaT.X }
