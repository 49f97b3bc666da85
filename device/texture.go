package device

import "fmt"

// Texture2D is a read-only, clamped view of a row-major buffer. Edge kernels
// fetch volumes through it so their reads never race with accumulator writes.
type Texture2D[T Element] struct {
	Width, Height int
	data          []T
	bound         bool
}

func BindTexture2D[T Element](buf *Buffer[T], width, height int) (tex *Texture2D[T], err error) {
	if width*height > buf.Len() {
		err = fmt.Errorf("texture %dx%d exceeds buffer of %d elements", width, height, buf.Len())
		return
	}
	tex = &Texture2D[T]{
		Width:  width,
		Height: height,
		data:   buf.Data()[:width*height],
		bound:  true,
	}
	return
}

func (tex *Texture2D[T]) Bound() bool { return tex.bound }

func (tex *Texture2D[T]) Unbind() {
	tex.data = nil
	tex.bound = false
}

// Fetch reads texel (x, y), coordinates outside the texture clamp to its edge
func (tex *Texture2D[T]) Fetch(x, y int) T {
	if !tex.bound {
		panic("fetch from unbound texture")
	}
	x = clamp(x, tex.Width-1)
	y = clamp(y, tex.Height-1)
	return tex.data[y*tex.Width+x]
}

func clamp(i, max int) int {
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}
