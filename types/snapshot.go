package types

// Snapshot is a host copy of the owned rows of one cluster at a checkpoint.
// Field arrays are row-major with NumVolX columns and NumVolY rows.
type Snapshot struct {
	ClusterID        int
	Record           int // checkpoint ordinal, shared by every cluster
	RowOffset        int // global row index of the first owned row
	NumVolX, NumVolY int
	Time             float64
	H1, Q1x, Q1y     []float64
	H2, Q2x, Q2y     []float64
	Bathymetry       []float64
	Eta1Max          []float64
	Eta1MaxTime      []float64
}

func NewSnapshot(clusterID, rowOffset, numVolX, numVolY int) (s *Snapshot) {
	n := numVolX * numVolY
	s = &Snapshot{
		ClusterID:   clusterID,
		RowOffset:   rowOffset,
		NumVolX:     numVolX,
		NumVolY:     numVolY,
		H1:          make([]float64, n),
		Q1x:         make([]float64, n),
		Q1y:         make([]float64, n),
		H2:          make([]float64, n),
		Q2x:         make([]float64, n),
		Q2y:         make([]float64, n),
		Bathymetry:  make([]float64, n),
		Eta1Max:     make([]float64, n),
		Eta1MaxTime: make([]float64, n),
	}
	return
}

// Fields returns the time dependent arrays keyed by their output names
func (s *Snapshot) Fields() map[string][]float64 {
	return map[string][]float64{
		"h1":  s.H1,
		"q1x": s.Q1x,
		"q1y": s.Q1y,
		"h2":  s.H2,
		"q2x": s.Q2x,
		"q2y": s.Q2y,
	}
}
