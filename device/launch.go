package device

import (
	"github.com/notargets/gotwolayer/utils"
)

type Dim3 struct {
	X, Y, Z int
}

func NewDim3(x, y int) Dim3 { return Dim3{X: x, Y: y, Z: 1} }

// Count is the number of elements spanned, zero if any extent is zero
func (d Dim3) Count() int {
	z := d.Z
	if z == 0 {
		z = 1
	}
	return d.X * d.Y * z
}

func (d Dim3) unflatten(n int) (idx Dim3) {
	idx.X = n % d.X
	n /= d.X
	idx.Y = n % d.Y
	idx.Z = n / d.Y
	return
}

// Thread identifies one kernel invocation within a launch
type Thread struct {
	BlockIdx, ThreadIdx Dim3
	BlockDim, GridDim   Dim3
}

func (t Thread) GlobalX() int { return t.BlockIdx.X*t.BlockDim.X + t.ThreadIdx.X }
func (t Thread) GlobalY() int { return t.BlockIdx.Y*t.BlockDim.Y + t.ThreadIdx.Y }

// Block is handed to block kernels, which loop over their own threads and may
// keep block-local scratch such as a reduction accumulator
type Block struct {
	BlockIdx, BlockDim, GridDim Dim3
}

func (b Block) Thread(n int) (t Thread) {
	t = Thread{
		BlockIdx:  b.BlockIdx,
		ThreadIdx: b.BlockDim.unflatten(n),
		BlockDim:  b.BlockDim,
		GridDim:   b.GridDim,
	}
	return
}

type Kernel func(t Thread)

type BlockKernel func(b Block)

// LaunchBlocks runs every block of the grid, spread over the device workers,
// and returns once all blocks have completed
func (d *Device) LaunchBlocks(grid, block Dim3, k BlockKernel) {
	var (
		nBlocks = grid.Count()
	)
	d.mu.Lock()
	d.launches++
	d.mu.Unlock()
	if nBlocks == 0 || block.Count() == 0 {
		return
	}
	np := d.ParallelDegree
	if np > nBlocks {
		np = nBlocks
	}
	pm := utils.NewPartitionMap(np, nBlocks)
	pm.ForEach(func(bn, kMin, kMax int) {
		for n := kMin; n < kMax; n++ {
			k(Block{
				BlockIdx: grid.unflatten(n),
				BlockDim: block,
				GridDim:  grid,
			})
		}
	})
}

// Launch runs k once per thread of the grid, threads of a block in order
func (d *Device) Launch(grid, block Dim3, k Kernel) {
	nThreads := block.Count()
	d.LaunchBlocks(grid, block, func(b Block) {
		for n := 0; n < nThreads; n++ {
			k(b.Thread(n))
		}
	})
}
