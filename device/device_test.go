package device

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gotwolayer/types"
)

func TestDeviceMemory(t *testing.T) {
	{ // Budget accounting
		d := NewDevice(0, 1024, 2)
		b4, err := Malloc[types.Float4](d, 16) // 512 bytes
		require.NoError(t, err)
		assert.Equal(t, int64(512), d.MemoryAllocated())
		b2, err := Malloc[types.Float2](d, 32) // 512 bytes
		require.NoError(t, err)
		assert.Equal(t, int64(1024), d.MemoryAllocated())
		_, err = Malloc[float64](d, 1)
		assert.True(t, errors.Is(err, types.ErrOutOfDeviceMemory))
		require.NoError(t, b2.Free())
		assert.Equal(t, int64(512), d.MemoryAllocated())
		assert.True(t, errors.Is(b2.Free(), types.ErrAlreadyReleased))
		require.NoError(t, b4.Free())
		assert.Equal(t, int64(0), d.MemoryAllocated())
	}
	{ // Unlimited budget and host copies
		d := NewDevice(1, 0, 0)
		assert.True(t, d.ParallelDegree > 0)
		b, err := Malloc[float64](d, 4)
		require.NoError(t, err)
		require.NoError(t, b.CopyFrom([]float64{1, 2}, 2))
		host := make([]float64, 4)
		require.NoError(t, b.CopyTo(host, 0))
		assert.Equal(t, []float64{0, 0, 1, 2}, host)
		assert.Error(t, b.CopyFrom([]float64{1, 2, 3}, 2))
		require.NoError(t, b.Free())
		assert.True(t, errors.Is(b.CopyTo(host, 0), types.ErrAlreadyReleased))
		assert.Panics(t, func() { b.Data() })
	}
}

func TestTexture(t *testing.T) {
	d := NewDevice(0, 0, 1)
	b, err := Malloc[types.Float4](d, 6)
	require.NoError(t, err)
	for i := range b.Data() {
		b.Data()[i] = types.Float4{float64(i)}
	}
	tex, err := BindTexture2D(b, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 4., tex.Fetch(1, 1)[0])
	assert.Equal(t, 0., tex.Fetch(-1, -1)[0])
	assert.Equal(t, 5., tex.Fetch(7, 7)[0])
	// Writes through the buffer are visible to later fetches
	b.Data()[2][0] = 42
	assert.Equal(t, 42., tex.Fetch(2, 0)[0])
	tex.Unbind()
	assert.False(t, tex.Bound())
	assert.Panics(t, func() { tex.Fetch(0, 0) })
	_, err = BindTexture2D(b, 4, 2)
	assert.Error(t, err)
}

func TestLaunch(t *testing.T) {
	var (
		d      = NewDevice(0, 0, 4)
		nx, ny = 19, 13
		block  = NewDim3(8, 8)
		grid   = NewDim3((nx+7)/8, (ny+7)/8)
		hits   = make([]int32, nx*ny)
	)
	d.Launch(grid, block, func(th Thread) {
		x, y := th.GlobalX(), th.GlobalY()
		if x >= nx || y >= ny {
			return
		}
		atomic.AddInt32(&hits[y*nx+x], 1)
	})
	for i := range hits {
		assert.Equal(t, int32(1), hits[i])
	}
	// Block kernels see each block once, with per block scratch
	var (
		n        = 1000
		partials = make([]int, (n+255)/256)
	)
	d.LaunchBlocks(NewDim3(len(partials), 1), NewDim3(256, 1), func(b Block) {
		var sum int
		for tn := 0; tn < b.BlockDim.X; tn++ {
			if i := b.Thread(tn).GlobalX(); i < n {
				sum++
			}
		}
		partials[b.BlockIdx.X] = sum
	})
	assert.Equal(t, []int{256, 256, 256, 232}, partials)
	// Empty grids launch nothing
	d.Launch(NewDim3(0, 1), block, func(th Thread) { panic("should not run") })
	assert.Equal(t, int64(3), d.Launches())
}
