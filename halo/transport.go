package halo

import (
	"fmt"
	"math"
	"sync"

	"github.com/notargets/gotwolayer/types"
)

// Transport moves boundary rows between neighboring clusters and reduces the
// time step over all clusters. Both calls block until their peers take part.
type Transport interface {
	HasNeighbor(b Boundary) bool
	// Exchange sends this cluster's row on side b and returns the row the
	// neighbor on side b sent toward it
	Exchange(b Boundary, send Row) (recv Row, err error)
	AllReduceMin(v float64) (min float64, err error)
}

// ChannelNetwork connects NP in-process clusters stacked as row strips,
// cluster 0 at the bottom. Each cluster talks through its own Endpoint.
type ChannelNetwork struct {
	NP        int
	inbox     [][2]chan Row // inbox[id][b] receives the row arriving across side b of id
	reducer   *minReducer
	abortOnce sync.Once
	aborted   chan struct{}
}

func NewChannelNetwork(NP int) (cn *ChannelNetwork) {
	cn = &ChannelNetwork{
		NP:      NP,
		inbox:   make([][2]chan Row, NP),
		reducer: newMinReducer(NP),
		aborted: make(chan struct{}),
	}
	for n := 0; n < NP; n++ {
		// One in flight per side, the collective reduction keeps senders in lock step
		cn.inbox[n] = [2]chan Row{make(chan Row, 1), make(chan Row, 1)}
	}
	return
}

func (cn *ChannelNetwork) Endpoint(id int) *Endpoint {
	if id < 0 || id >= cn.NP {
		panic(fmt.Errorf("endpoint %d out of range [0,%d)", id, cn.NP))
	}
	return &Endpoint{ID: id, net: cn}
}

// Abort releases every cluster blocked in the network, they observe ErrTransferFailure
func (cn *ChannelNetwork) Abort() {
	cn.abortOnce.Do(func() {
		close(cn.aborted)
		cn.reducer.abort()
	})
}

type Endpoint struct {
	ID  int
	net *ChannelNetwork
}

func (ep *Endpoint) neighbor(b Boundary) int {
	if b == Inferior {
		return ep.ID - 1
	}
	return ep.ID + 1
}

func (ep *Endpoint) HasNeighbor(b Boundary) bool {
	nbr := ep.neighbor(b)
	return nbr >= 0 && nbr < ep.net.NP
}

func (ep *Endpoint) Exchange(b Boundary, send Row) (recv Row, err error) {
	if !ep.HasNeighbor(b) {
		panic(fmt.Errorf("cluster %d has no %s neighbor", ep.ID, b))
	}
	var (
		nbr = ep.neighbor(b)
		out = ep.net.inbox[nbr][b.Opposite()]
		in  = ep.net.inbox[ep.ID][b]
	)
	select {
	case out <- send.Clone():
	case <-ep.net.aborted:
		err = fmt.Errorf("cluster %d send to %d: %w", ep.ID, nbr, types.ErrTransferFailure)
		return
	}
	select {
	case recv = <-in:
	case <-ep.net.aborted:
		err = fmt.Errorf("cluster %d receive from %d: %w", ep.ID, nbr, types.ErrTransferFailure)
	}
	return
}

func (ep *Endpoint) AllReduceMin(v float64) (min float64, err error) {
	if min, err = ep.net.reducer.reduce(v); err != nil {
		err = fmt.Errorf("cluster %d reduction: %w", ep.ID, err)
	}
	return
}

// minReducer is a reusable barrier that hands every participant the minimum
// of the values contributed in its generation. NaN wins over any number.
type minReducer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	np      int
	count   int
	gen     uint64
	current float64
	result  float64
	aborted bool
}

func newMinReducer(np int) (r *minReducer) {
	r = &minReducer{np: np}
	r.cond = sync.NewCond(&r.mu)
	return
}

func (r *minReducer) reduce(v float64) (min float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aborted {
		err = types.ErrTransferFailure
		return
	}
	if r.count == 0 {
		r.current = v
	} else {
		r.current = math.Min(r.current, v)
	}
	r.count++
	gen := r.gen
	if r.count == r.np {
		r.result = r.current
		r.count = 0
		r.gen++
		r.cond.Broadcast()
		min = r.result
		return
	}
	for gen == r.gen && !r.aborted {
		r.cond.Wait()
	}
	if gen == r.gen {
		err = types.ErrTransferFailure
		return
	}
	min = r.result
	return
}

func (r *minReducer) abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted = true
	r.cond.Broadcast()
}
