package TwoLayer

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/notargets/gotwolayer/InputParameters"
	"github.com/notargets/gotwolayer/device"
	"github.com/notargets/gotwolayer/halo"
	"github.com/notargets/gotwolayer/types"
	"github.com/notargets/gotwolayer/utils"
)

// Snapshotter persists the owned rows of a cluster at a checkpoint. It is
// called concurrently by every cluster.
type Snapshotter interface {
	WriteSnapshot(snap *types.Snapshot) error
}

type Cluster struct {
	Grid       *ClusterGrid
	Controller *TimeStepController
}

// Solver runs one goroutine per cluster, the clusters being row strips of
// the global grid joined by an in-process transport
type Solver struct {
	Params       *InputParameters.InputParametersTwoLayer
	Geometry     GridGeometry
	Case         InitType
	FrictionType FrictionType
	Rows         *utils.PartitionMap
	Devices      []*device.Device
	Clusters     []*Cluster
	Network      *halo.ChannelNetwork
	Output       Snapshotter
	Log          logrus.FieldLogger
	Time         float64
	Steps        int
	Records      int
	elapsed      time.Duration
}

func NewSolver(ip *InputParameters.InputParametersTwoLayer, log logrus.FieldLogger) (s *Solver, err error) {
	var (
		bcs [4]halo.BoundaryCondition
	)
	if err = ip.Validate(); err != nil {
		return
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s = &Solver{
		Params: ip,
		Geometry: GridGeometry{
			NumVolX: ip.NumVolX, NumVolY: ip.NumVolY,
			Dx: ip.Dx, Dy: ip.Dy,
		},
		Rows:    utils.NewPartitionMap(ip.Clusters, ip.NumVolY),
		Network: halo.NewChannelNetwork(ip.Clusters),
		Log:     log,
	}
	if s.Case, err = NewInitType(ip.InitType); err != nil {
		return nil, err
	}
	if s.FrictionType, err = NewFrictionType(ip.Friction); err != nil {
		return nil, err
	}
	if dim := s.Rows.MinBucketDimension(); dim < 2 {
		return nil, fmt.Errorf("%d rows over %d clusters leave a cluster with %d rows, need two: %w",
			ip.NumVolY, ip.Clusters, dim, types.ErrConfiguration)
	}
	for n, side := range InputParameters.Sides {
		var bcType utils.BCType
		if bcType, err = ip.BoundaryType(side); err != nil {
			return nil, err
		}
		if bcs[n], err = halo.NewBoundaryCondition(bcType); err != nil {
			return nil, err
		}
	}
	var (
		flux = &HydrostaticRusanov{
			Gravity:      ip.Gravity,
			DensityRatio: ip.DensityRatio,
			DryThreshold: ip.DryThreshold,
			CFL:          ip.CFL,
		}
		friction = s.NewFrictionLaw()
	)
	for id := 0; id < ip.Clusters; id++ {
		var (
			cg  *ClusterGrid
			dev = device.NewDevice(id, ip.DeviceMemory, ip.ParallelDegree)
		)
		cg, err = NewClusterGrid(dev, ClusterSpec{
			ID:        id,
			NumVolX:   ip.NumVolX,
			NumVolY:   s.Rows.GetBucketDimension(id),
			RowOffset: s.Rows.GetGlobalK(0, id),
			Dx:        ip.Dx,
			Dy:        ip.Dy,
		})
		if err != nil {
			_ = s.Release()
			return nil, err
		}
		s.Devices = append(s.Devices, dev)
		s.Clusters = append(s.Clusters, &Cluster{
			Grid: cg,
			Controller: &TimeStepController{
				Grid:         cg,
				Flux:         flux,
				Friction:     friction,
				South:        bcs[0],
				North:        bcs[1],
				West:         bcs[2],
				East:         bcs[3],
				Transport:    s.Network.Endpoint(id),
				DryThreshold: ip.DryThreshold,
				MaxDeltaT:    ip.MaxDeltaT,
			},
		})
	}
	return
}

func (s *Solver) NewFrictionLaw() (fl *FrictionLaw) {
	var (
		ip  = s.Params
		tan = func(deg float64) float64 { return math.Tan(deg * math.Pi / 180) }
	)
	fl = &FrictionLaw{
		Type:          s.FrictionType,
		Gravity:       ip.Gravity,
		DensityRatio:  ip.DensityRatio,
		DryThreshold:  ip.DryThreshold,
		TanDelta:      tan(ip.CoulombAngle),
		TanDelta1:     tan(ip.PouliquenAngle1),
		TanDelta2:     tan(ip.PouliquenAngle2),
		Beta:          ip.PouliquenBeta,
		L:             ip.PouliquenL,
		InterfaceDrag: ip.InterfaceDrag,
		Manning:       ip.Manning,
	}
	return
}

// Initialize lays the configured initial condition on every cluster
func (s *Solver) Initialize() error {
	return s.InitializeWith(func(i, j int) (w1, w2 types.Float4) {
		return s.Case.InitialState(s.Geometry, i, j)
	})
}

// InitializeWith uploads the state returned by f for each global volume (i, j)
// and fills the ghost rows
func (s *Solver) InitializeWith(f func(i, j int) (w1, w2 types.Float4)) (err error) {
	var (
		nx         = s.Geometry.NumVolX
		vol1, vol2 = make([][]types.Float4, len(s.Clusters)), make([][]types.Float4, len(s.Clusters))
	)
	for n, cl := range s.Clusters {
		vol1[n] = make([]types.Float4, nx*cl.Grid.NumVolY)
		vol2[n] = make([]types.Float4, nx*cl.Grid.NumVolY)
	}
	for j := 0; j < s.Geometry.NumVolY; j++ {
		y, _, bn := s.Rows.GetLocalK(j)
		for x := 0; x < nx; x++ {
			vol1[bn][y*nx+x], vol2[bn][y*nx+x] = f(x, j)
		}
	}
	for n, cl := range s.Clusters {
		if err = cl.Grid.Upload(vol1[n], vol2[n]); err != nil {
			return
		}
	}
	s.Time, s.Steps, s.Records = 0, 0, 0
	err = s.parallel(func(cl *Cluster) error {
		return cl.Controller.RefreshHalos()
	})
	return
}

// parallel runs f on every cluster at once, aborting the network on the first failure
func (s *Solver) parallel(f func(cl *Cluster) error) (err error) {
	var (
		errs = make([]error, len(s.Clusters))
		wg   sync.WaitGroup
	)
	for n, cl := range s.Clusters {
		wg.Add(1)
		go func(n int, cl *Cluster) {
			defer wg.Done()
			if errs[n] = f(cl); errs[n] != nil {
				s.Network.Abort()
			}
		}(n, cl)
	}
	wg.Wait()
	err = rootCause(errs)
	return
}

// rootCause prefers the error that started an abort over the transfer
// failures it caused in the other clusters
func rootCause(errs []error) (err error) {
	for _, e := range errs {
		if e == nil {
			continue
		}
		if !errors.Is(e, types.ErrTransferFailure) {
			return e
		}
		if err == nil {
			err = e
		}
	}
	return
}

func (s *Solver) Solve() (err error) {
	var (
		start = time.Now()
	)
	s.PrintInitialization()
	if s.Output != nil && s.Records == 0 {
		if err = s.parallel(func(cl *Cluster) error { return s.checkpoint(cl, s.Time, 0) }); err != nil {
			return
		}
	}
	err = s.parallel(s.run)
	s.elapsed += time.Since(start)
	if err != nil {
		s.Log.WithFields(logrus.Fields{"time": s.Time, "step": s.Steps}).WithError(err).Error("solve failed")
		return
	}
	s.PrintFinal()
	return
}

// run advances one cluster to the final time. Every cluster reduces to the
// same time step, so all of them take the same decisions here.
func (s *Solver) run(cl *Cluster) (err error) {
	var (
		ip             = s.Params
		c              = cl.Controller
		t              = s.Time
		steps          = s.Steps
		record         = s.Records
		nextCheckpoint = math.Inf(1)
		finished       bool
		dt             float64
		lastRecordTime = t
		log            = s.Log.WithField("cluster", cl.Grid.ID)
	)
	if ip.CheckpointInterval > 0 {
		nextCheckpoint = t + ip.CheckpointInterval
	}
	for !finished {
		var (
			tLimit    = math.Min(nextCheckpoint, ip.FinalTime)
			remaining = tLimit - t
		)
		if dt, err = c.Step(t, tLimit); err != nil {
			log.WithFields(logrus.Fields{"step": steps, "time": t}).WithError(err).Error("step failed")
			return
		}
		steps++
		if dt >= remaining {
			t = tLimit
		} else {
			t += dt
		}
		if t == nextCheckpoint {
			nextCheckpoint += ip.CheckpointInterval
			record++
			if err = s.checkpoint(cl, t, record); err != nil {
				return
			}
			lastRecordTime = t
		}
		finished = s.CheckIfFinished(t, ip.FinalTime, steps)
		if cl.Grid.ID == 0 && (finished || steps%ip.ReportSteps == 0 || steps == 1) {
			s.PrintUpdate(t, dt, steps, c.LocalMinDeltaT())
		}
	}
	if lastRecordTime != t {
		record++
		if err = s.checkpoint(cl, t, record); err != nil {
			return
		}
	}
	if cl.Grid.ID == 0 {
		s.Time, s.Steps, s.Records = t, steps, record
	}
	return
}

func (s *Solver) checkpoint(cl *Cluster, t float64, record int) (err error) {
	var (
		snap *types.Snapshot
	)
	if s.Output == nil {
		return
	}
	if snap, err = cl.Grid.Snapshot(t, record); err != nil {
		return
	}
	if err = s.Output.WriteSnapshot(snap); err != nil {
		err = fmt.Errorf("cluster %d writing record %d: %w", cl.Grid.ID, record, err)
		return
	}
	s.Log.WithFields(logrus.Fields{
		"cluster": cl.Grid.ID, "record": record, "time": t,
	}).Debug("checkpoint written")
	return
}

func (s *Solver) CheckIfFinished(Time, FinalTime float64, steps int) (finished bool) {
	if Time >= FinalTime || steps >= s.Params.MaxIterations {
		finished = true
	}
	return
}

// Release frees the device memory of every cluster
func (s *Solver) Release() (err error) {
	var errs []error
	for _, cl := range s.Clusters {
		errs = append(errs, cl.Grid.Release())
	}
	err = errors.Join(errs...)
	return
}

func (s *Solver) PrintInitialization() {
	fmt.Printf("Two Layer Shallow Water Equations\n")
	fmt.Printf("Solving %s on %d x %d volumes with %d clusters\n",
		s.Case.Print(), s.Geometry.NumVolX, s.Geometry.NumVolY, len(s.Clusters))
	fmt.Printf("Friction: %s, CFL = %8.4f\n", s.FrictionType.Print(), s.Params.CFL)
	fmt.Printf("Solving until finaltime = %8.5f\n", s.Params.FinalTime)
	fmt.Printf("    iter     time      dt  local_dt\n")
}

func (s *Solver) PrintUpdate(Time, dt float64, steps int, localDt float64) {
	fmt.Printf("%8d%9.4f%8.5f%10.5f\n", steps, Time, dt, localDt)
}

func (s *Solver) PrintFinal() {
	var (
		nVol = s.Geometry.NumVolX * s.Geometry.NumVolY
		rate float64
	)
	if s.Steps > 0 {
		rate = float64(s.elapsed.Microseconds()) / float64(nVol*s.Steps)
	}
	fmt.Printf("\nRate of execution = %8.5f us/(volume*iteration) over %d iterations\n", rate, s.Steps)
	m1, m2, err := s.LayerMass()
	if err != nil {
		return
	}
	var deviceMemory, launches int64
	for _, dev := range s.Devices {
		deviceMemory += dev.MemoryAllocated()
		launches += dev.Launches()
	}
	s.Log.WithFields(logrus.Fields{
		"time": s.Time, "steps": s.Steps, "mass1": m1, "mass2": m2,
		"deviceBytes": deviceMemory, "launches": launches, "host": utils.GetMemUsage().String(),
	}).Info("run complete")
}
