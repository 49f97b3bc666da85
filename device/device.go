package device

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/notargets/gotwolayer/types"
)

// Device is an accelerator with a fixed memory budget. Buffers are carved out
// of the budget by Malloc and returned by Free; kernels run through Launch.
type Device struct {
	ID             int
	ParallelDegree int   // worker goroutines used per launch
	MemoryBudget   int64 // bytes, zero means unlimited
	mu             sync.Mutex
	allocated      int64
	launches       int64
}

func NewDevice(id int, memoryBudget int64, parallelDegree int) (d *Device) {
	if parallelDegree < 1 {
		parallelDegree = runtime.NumCPU()
	}
	d = &Device{
		ID:             id,
		ParallelDegree: parallelDegree,
		MemoryBudget:   memoryBudget,
	}
	return
}

func (d *Device) MemoryAllocated() (bytes int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	bytes = d.allocated
	return
}

// Launches counts kernel launches issued on this device
func (d *Device) Launches() (n int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n = d.launches
	return
}

func (d *Device) reserve(bytes int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.MemoryBudget > 0 && d.allocated+bytes > d.MemoryBudget {
		return fmt.Errorf("device %d: requested %d bytes with %d of %d in use: %w",
			d.ID, bytes, d.allocated, d.MemoryBudget, types.ErrOutOfDeviceMemory)
	}
	d.allocated += bytes
	return nil
}

func (d *Device) release(bytes int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allocated -= bytes
}

// Element is the set of record types a device buffer can hold
type Element interface {
	float64 | types.Float2 | types.Float4
}

// Buffer is a device allocation of N elements
type Buffer[T Element] struct {
	dev   *Device
	data  []T
	bytes int64
	freed bool
}

// Malloc reserves n elements on the device, failing with ErrOutOfDeviceMemory
// when the budget cannot hold them
func Malloc[T Element](d *Device, n int) (buf *Buffer[T], err error) {
	var (
		zero T
		sz   = int64(n) * int64(unsafe.Sizeof(zero))
	)
	if n < 0 {
		panic(fmt.Errorf("negative allocation size %d", n))
	}
	if err = d.reserve(sz); err != nil {
		return
	}
	buf = &Buffer[T]{
		dev:   d,
		data:  make([]T, n),
		bytes: sz,
	}
	return
}

func (b *Buffer[T]) Len() int { return len(b.data) }

func (b *Buffer[T]) Bytes() int64 { return b.bytes }

// Data is the device side view handed to kernels
func (b *Buffer[T]) Data() []T {
	if b.freed {
		panic("access to freed device buffer")
	}
	return b.data
}

// CopyFrom uploads host values starting at element offset
func (b *Buffer[T]) CopyFrom(host []T, offset int) (err error) {
	if b.freed {
		return fmt.Errorf("copy to freed buffer: %w", types.ErrAlreadyReleased)
	}
	if offset < 0 || offset+len(host) > len(b.data) {
		return fmt.Errorf("copy of %d elements at %d overruns buffer of %d", len(host), offset, len(b.data))
	}
	copy(b.data[offset:], host)
	return
}

// CopyTo downloads len(host) values starting at element offset
func (b *Buffer[T]) CopyTo(host []T, offset int) (err error) {
	if b.freed {
		return fmt.Errorf("copy from freed buffer: %w", types.ErrAlreadyReleased)
	}
	if offset < 0 || offset+len(host) > len(b.data) {
		return fmt.Errorf("copy of %d elements at %d overruns buffer of %d", len(host), offset, len(b.data))
	}
	copy(host, b.data[offset:])
	return
}

func (b *Buffer[T]) Free() (err error) {
	if b.freed {
		return fmt.Errorf("device buffer: %w", types.ErrAlreadyReleased)
	}
	b.dev.release(b.bytes)
	b.data = nil
	b.freed = true
	return
}
