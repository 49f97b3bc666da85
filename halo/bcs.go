package halo

import (
	"fmt"

	"github.com/notargets/gotwolayer/types"
	"github.com/notargets/gotwolayer/utils"
)

// BoundaryCondition builds the ghost state across a domain edge with outward
// unit normal n from the adjacent interior state
type BoundaryCondition interface {
	Ghost(w1, w2 types.Float4, n [2]float64) (g1, g2 types.Float4)
	Type() utils.BCType
}

// Wall reflects the normal momentum of both layers
type Wall struct{}

func (Wall) Type() utils.BCType { return utils.BCWall }

func (Wall) Ghost(w1, w2 types.Float4, n [2]float64) (g1, g2 types.Float4) {
	g1, g2 = w1, w2
	reflect(&g1, n)
	reflect(&g2, n)
	return
}

func reflect(w *types.Float4, n [2]float64) {
	qn := w[1]*n[0] + w[2]*n[1]
	w[1] -= 2 * qn * n[0]
	w[2] -= 2 * qn * n[1]
}

// Open copies the interior state so waves pass out of the domain
type Open struct{}

func (Open) Type() utils.BCType { return utils.BCOpen }

func (Open) Ghost(w1, w2 types.Float4, n [2]float64) (g1, g2 types.Float4) {
	return w1, w2
}

func NewBoundaryCondition(bc utils.BCType) (BoundaryCondition, error) {
	switch bc {
	case utils.BCWall:
		return Wall{}, nil
	case utils.BCOpen:
		return Open{}, nil
	}
	return nil, fmt.Errorf("no ghost state for boundary type %s: %w", bc, types.ErrConfiguration)
}

// FillGhostRow writes the ghost of every cell of own into ghost
func FillGhostRow(bc BoundaryCondition, own, ghost Row, n [2]float64) {
	for i := range own.W1 {
		ghost.W1[i], ghost.W2[i] = bc.Ghost(own.W1[i], own.W2[i], n)
	}
}
