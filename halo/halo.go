package halo

import (
	"errors"
	"fmt"

	"github.com/notargets/gotwolayer/types"
)

// Boundary names one of the two row boundaries of a cluster strip
type Boundary uint8

const (
	Inferior Boundary = iota // first owned row, faces the cluster below
	Superior                 // last owned row, faces the cluster above
)

func (b Boundary) String() string {
	return [...]string{"Inferior", "Superior"}[b]
}

func (b Boundary) Opposite() Boundary {
	return 1 - b
}

// Normal is the outward unit normal of the boundary
func (b Boundary) Normal() [2]float64 {
	if b == Inferior {
		return [2]float64{0, -1}
	}
	return [2]float64{0, 1}
}

// Row is one row of both layer records
type Row struct {
	W1, W2 []types.Float4
}

func NewRow(width int) Row {
	return Row{
		W1: make([]types.Float4, width),
		W2: make([]types.Float4, width),
	}
}

func (r Row) Width() int { return len(r.W1) }

func (r Row) Clone() (c Row) {
	c = NewRow(r.Width())
	c.CopyFrom(r)
	return
}

func (r Row) CopyFrom(src Row) {
	if src.Width() != r.Width() {
		panic(fmt.Errorf("row width mismatch: %d into %d", src.Width(), r.Width()))
	}
	copy(r.W1, src.W1)
	copy(r.W2, src.W2)
}

// Buffer holds the halo regions of one cluster. Own regions are separate
// storage holding the published copy of each boundary row, Other regions
// alias the ghost rows of the volume arrays and Boundary aliases the owned
// boundary rows themselves.
type Buffer struct {
	Own       [2]Row
	Other     [2]Row
	Boundary  [2]Row
	BCs       [2]BoundaryCondition // used on sides without a neighbor
	Transport Transport
}

// Refresh publishes both boundary rows and fills both ghost rows, either from
// the neighbor through the transport or from the side's boundary condition
func (hb *Buffer) Refresh() (err error) {
	for _, b := range []Boundary{Inferior, Superior} {
		hb.Own[b].CopyFrom(hb.Boundary[b])
		if hb.Transport != nil && hb.Transport.HasNeighbor(b) {
			var recv Row
			if recv, err = hb.Transport.Exchange(b, hb.Own[b]); err != nil {
				if !errors.Is(err, types.ErrTransferFailure) {
					err = fmt.Errorf("%s halo: %v: %w", b, err, types.ErrTransferFailure)
				}
				return
			}
			if recv.Width() != hb.Other[b].Width() {
				err = fmt.Errorf("%s halo: received row of width %d, want %d: %w",
					b, recv.Width(), hb.Other[b].Width(), types.ErrTransferFailure)
				return
			}
			hb.Other[b].CopyFrom(recv)
			continue
		}
		if hb.BCs[b] == nil {
			panic(fmt.Errorf("%s halo has neither a neighbor nor a boundary condition", b))
		}
		FillGhostRow(hb.BCs[b], hb.Own[b], hb.Other[b], b.Normal())
	}
	return
}
