package TwoLayer

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gotwolayer/InputParameters"
	"github.com/notargets/gotwolayer/types"
)

func testParams(nx, ny, clusters int, initType string) (ip *InputParameters.InputParametersTwoLayer) {
	ip = &InputParameters.InputParametersTwoLayer{
		Title:          "test",
		NumVolX:        nx,
		NumVolY:        ny,
		Dx:             1,
		Dy:             1,
		Clusters:       clusters,
		ParallelDegree: 2,
		FinalTime:      1.e6,
		MaxIterations:  100,
		InitType:       initType,
	}
	ip.SetDefaults()
	return
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return log
}

func newTestSolver(t *testing.T, ip *InputParameters.InputParametersTwoLayer) (s *Solver) {
	var err error
	s, err = NewSolver(ip, quietLogger())
	require.NoError(t, err)
	require.NoError(t, s.Initialize())
	t.Cleanup(func() { _ = s.Release() })
	return
}

func allVolumes(t *testing.T, s *Solver) (vol1, vol2 []types.Float4) {
	for _, cl := range s.Clusters {
		v1, v2, err := cl.Grid.Download()
		require.NoError(t, err)
		vol1 = append(vol1, v1...)
		vol2 = append(vol2, v2...)
	}
	return
}

func TestLakeAtRest(t *testing.T) {
	for _, clusters := range []int{1, 2} {
		s := newTestSolver(t, testParams(10, 10, clusters, "LakeAtRest"))
		before1, before2 := allVolumes(t, s)
		require.NoError(t, s.Solve())
		assert.Equal(t, 100, s.Steps)
		after1, after2 := allVolumes(t, s)
		for i := range before1 {
			assert.True(t, near(types.Eta1(before1[i], before2[i]), types.Eta1(after1[i], after2[i]), 1.e-10))
			assert.True(t, near(before2[i][0], after2[i][0], 1.e-10))
			for d := 1; d <= 2; d++ {
				assert.True(t, math.Abs(after1[i][d]) < 1.e-9)
				assert.True(t, math.Abs(after2[i][d]) < 1.e-9)
			}
		}
	}
}

func TestMassConservation(t *testing.T) {
	ip := testParams(12, 8, 2, "DamBreak")
	ip.MaxIterations = 50
	ip.Friction = "Pouliquen"
	ip.PouliquenAngle1, ip.PouliquenAngle2 = 10, 20
	ip.PouliquenBeta, ip.PouliquenL = 0.136, 1
	ip.InterfaceDrag = 0.01
	s := newTestSolver(t, ip)
	m1, m2, err := s.LayerMass()
	require.NoError(t, err)
	require.NoError(t, s.Solve())
	a1, a2, err := s.LayerMass()
	require.NoError(t, err)
	assert.True(t, near(m1, a1, 1.e-12))
	assert.True(t, near(m2, a2, 1.e-12))
	d, err := s.Diagnostics()
	require.NoError(t, err)
	assert.False(t, d.HasNaN)
	assert.True(t, d.MaxSpeed > 0)
	assert.True(t, d.MinDepth1 >= 0 && d.MinDepth2 >= 0)
}

func TestClusterCountIndependence(t *testing.T) {
	var results [][]types.Float4
	for _, clusters := range []int{1, 3} {
		ip := testParams(9, 12, clusters, "Landslide")
		ip.MaxIterations = 30
		ip.CoulombAngle = 5
		s := newTestSolver(t, ip)
		require.NoError(t, s.Solve())
		v1, v2 := allVolumes(t, s)
		results = append(results, append(v1, v2...))
	}
	require.Equal(t, len(results[0]), len(results[1]))
	for i := range results[0] {
		for d := 0; d < 3; d++ {
			// Sub-epsilon momenta may stop in one run and not the other
			assert.True(t, near(results[0][i][d], results[1][i][d], 1.e-6))
		}
	}
}

func TestWetDry(t *testing.T) {
	ip := testParams(10, 4, 2, "DamBreak")
	ip.BCs = map[string]string{"East": "open"}
	s, err := NewSolver(ip, quietLogger())
	require.NoError(t, err)
	defer s.Release()
	// Water on the west half, dry land on the east half, no sediment
	require.NoError(t, s.InitializeWith(func(i, j int) (w1, w2 types.Float4) {
		h1 := 0.
		if i < 5 {
			h1 = 1
		}
		return types.Float4{h1, 0, 0, 1}, types.Float4{0, 0, 0, 1}
	}))
	ip.MaxIterations = 20
	require.NoError(t, s.Solve())
	v1, _ := allVolumes(t, s)
	// The front has advanced into the dry half
	assert.True(t, v1[6][0] > 0)

	ip.MaxIterations = 200
	require.NoError(t, s.Solve())
	assert.Equal(t, 200, s.Steps)
	v1, v2 := allVolumes(t, s)
	for i := range v1 {
		for d := 0; d < 4; d++ {
			assert.False(t, math.IsNaN(v1[i][d]))
			assert.False(t, math.IsNaN(v2[i][d]))
		}
		assert.True(t, v1[i][0] >= 0)
		assert.Equal(t, 0., v2[i][0])
		if v1[i][0] <= ip.DryThreshold {
			assert.Equal(t, 0., v1[i][1])
			assert.Equal(t, 0., v1[i][2])
		}
	}
}

func TestStillWaterColumn(t *testing.T) {
	ip := testParams(10, 10, 2, "LakeAtRest")
	s, err := NewSolver(ip, quietLogger())
	require.NoError(t, err)
	defer s.Release()
	require.NoError(t, s.InitializeWith(func(i, j int) (w1, w2 types.Float4) {
		return types.Float4{1, 0, 0, 2}, types.Float4{1, 0, 0, 1}
	}))
	require.NoError(t, s.Solve())
	assert.Equal(t, 100, s.Steps)
	v1, v2 := allVolumes(t, s)
	for i := range v1 {
		assert.True(t, near(1, v1[i][0], 1.e-12))
		assert.True(t, near(1, v2[i][0], 1.e-12))
		for d := 1; d <= 2; d++ {
			assert.True(t, math.Abs(v1[i][d]) < 1.e-12)
			assert.True(t, math.Abs(v2[i][d]) < 1.e-12)
		}
	}
}

func TestDryNeighbor(t *testing.T) {
	ip := testParams(4, 2, 1, "LakeAtRest")
	s, err := NewSolver(ip, quietLogger())
	require.NoError(t, err)
	defer s.Release()
	// Fast flow in volume (1, 0) pointed at the dry volume (2, 0)
	require.NoError(t, s.InitializeWith(func(i, j int) (w1, w2 types.Float4) {
		if i == 1 && j == 0 {
			return types.Float4{1, 50, 0, 2}, types.Float4{0.5, 20, 0, 1}
		}
		return types.Float4{0, 0, 0, 2}, types.Float4{0, 0, 0, 1}
	}))
	c := s.Clusters[0].Controller
	_, err = c.Step(0, 1.e6)
	require.NoError(t, err)
	v1, v2 := allVolumes(t, s)
	assert.True(t, v1[2][0] > 0)
	for i := range v1 {
		for _, w := range []types.Float4{v1[i], v2[i]} {
			assert.True(t, w[0] >= 0)
			assert.False(t, math.IsNaN(w[1]) || math.IsNaN(w[2]))
			if w[0] <= ip.DryThreshold {
				assert.Equal(t, 0., w[1])
				assert.Equal(t, 0., w[2])
			}
		}
	}
}

func TestStep(t *testing.T) {
	ip := testParams(8, 6, 1, "DamBreak")
	s := newTestSolver(t, ip)
	c := s.Clusters[0].Controller
	assert.Equal(t, HalosRefreshed, c.State())
	dt, err := c.Step(0, 100)
	require.NoError(t, err)
	assert.Equal(t, HalosRefreshed, c.State())
	assert.Equal(t, c.LocalMinDeltaT(), dt)
	{ // The step respects every volume's bound
		cg := s.Clusters[0].Grid
		for i := 0; i < cg.NumVolX*cg.NumVolY; i++ {
			assert.True(t, dt <= cg.DeltaTVolumes.Data()[i])
		}
	}
	{ // Capped by the configured maximum and the time left
		c.MaxDeltaT = 1.e-3
		dt, err = c.Step(0, 100)
		require.NoError(t, err)
		assert.Equal(t, 1.e-3, dt)
		dt, err = c.Step(1, 1+1.e-4)
		require.NoError(t, err)
		assert.True(t, near(1.e-4, dt, 1.e-9))
	}
	{ // A NaN anywhere aborts the step
		cg := s.Clusters[0].Grid
		cg.Volumes1.Data()[cg.VolumeIndex(3, 2)][0] = math.NaN()
		_, err = c.Step(0, 100)
		assert.True(t, errors.Is(err, types.ErrNumericInstability))
		assert.Equal(t, EdgesPending, c.State())
	}
}

func TestClampDeltaT(t *testing.T) {
	dt, err := ClampDeltaT(0.5, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.5, dt)
	dt, err = ClampDeltaT(0.5, 0.1, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.1, dt)
	dt, err = ClampDeltaT(0.5, 0.1, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 0.01, dt)
	for _, bad := range [][3]float64{
		{math.NaN(), 1, 1},
		{math.Inf(1), 0, math.Inf(1)},
		{0.5, 0, 0},
		{-1, 1, 1},
	} {
		_, err = ClampDeltaT(bad[0], bad[1], bad[2])
		assert.True(t, errors.Is(err, types.ErrNumericInstability))
	}
}

type recordingWriter struct {
	mu    sync.Mutex
	times map[int][]float64 // by cluster
}

func (rw *recordingWriter) WriteSnapshot(snap *types.Snapshot) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if len(rw.times[snap.ClusterID]) != snap.Record {
		return errors.New("records out of order")
	}
	rw.times[snap.ClusterID] = append(rw.times[snap.ClusterID], snap.Time)
	return nil
}

func TestCheckpoints(t *testing.T) {
	ip := testParams(8, 8, 2, "DamBreak")
	ip.FinalTime = 1
	ip.CheckpointInterval = 0.25
	ip.MaxIterations = 10000
	s := newTestSolver(t, ip)
	rw := &recordingWriter{times: make(map[int][]float64)}
	s.Output = rw
	require.NoError(t, s.Solve())
	assert.Equal(t, 1., s.Time)
	assert.Equal(t, 4, s.Records)
	for id := 0; id < 2; id++ {
		assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, rw.times[id])
	}
	for _, dev := range s.Devices {
		assert.True(t, dev.Launches() >= int64(5*s.Steps))
	}
	{ // A resumed run continues from the last record
		ip := testParams(8, 8, 2, "DamBreak")
		ip.FinalTime = 0.5
		ip.CheckpointInterval = 0.25
		ip.MaxIterations = 10000
		s := newTestSolver(t, ip)
		rw := &recordingWriter{times: make(map[int][]float64)}
		s.Output = rw
		require.NoError(t, s.Solve())
		assert.Equal(t, 2, s.Records)
		ip.FinalTime = 1
		require.NoError(t, s.Solve())
		assert.Equal(t, 4, s.Records)
		for id := 0; id < 2; id++ {
			assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, rw.times[id])
		}
	}
}

func TestInitializeWith(t *testing.T) {
	var (
		nx = 5
		ip = testParams(nx, 7, 3, "LakeAtRest")
		s  = newTestSolver(t, ip)
	)
	{ // Uneven rows go to the first clusters
		var offsets, rows []int
		for _, cl := range s.Clusters {
			offsets = append(offsets, cl.Grid.RowOffset)
			rows = append(rows, cl.Grid.NumVolY)
		}
		assert.Equal(t, []int{0, 3, 5}, offsets)
		assert.Equal(t, []int{3, 2, 2}, rows)
	}
	require.NoError(t, s.InitializeWith(func(i, j int) (w1, w2 types.Float4) {
		return types.Float4{1, 0, 0, float64(100*j + i)}, types.Float4{0, 0, 0, 1}
	}))
	{ // Each cluster holds its own global rows
		for _, cl := range s.Clusters {
			v1, _, err := cl.Grid.Download()
			require.NoError(t, err)
			for y := 0; y < cl.Grid.NumVolY; y++ {
				for x := 0; x < nx; x++ {
					assert.Equal(t, float64(100*(cl.Grid.RowOffset+y)+x), v1[y*nx+x][3])
				}
			}
		}
	}
	vol1, _ := allVolumes(t, s)
	for j := 0; j < ip.NumVolY; j++ {
		for i := 0; i < nx; i++ {
			assert.Equal(t, float64(100*j+i), vol1[j*nx+i][3])
		}
	}
}

func TestSolverFailures(t *testing.T) {
	{ // Device too small
		ip := testParams(10, 10, 2, "LakeAtRest")
		ip.DeviceMemory = 1024
		_, err := NewSolver(ip, quietLogger())
		assert.True(t, errors.Is(err, types.ErrOutOfDeviceMemory))
	}
	{ // Bad configuration
		ip := testParams(10, 10, 2, "Tsunami")
		_, err := NewSolver(ip, quietLogger())
		assert.True(t, errors.Is(err, types.ErrConfiguration))
		ip = testParams(10, 3, 2, "LakeAtRest")
		_, err = NewSolver(ip, quietLogger())
		assert.True(t, errors.Is(err, types.ErrConfiguration))
	}
	{ // Instability in one cluster stops them all without deadlock
		ip := testParams(6, 9, 3, "DamBreak")
		s := newTestSolver(t, ip)
		cg := s.Clusters[1].Grid
		cg.Volumes2.Data()[cg.VolumeIndex(2, 1)][1] = math.NaN()
		err := s.Solve()
		assert.True(t, errors.Is(err, types.ErrNumericInstability))
	}
	{ // A friction law yielding NaN is reported, not taken as a stop
		ip := testParams(12, 8, 2, "Landslide")
		ip.MaxIterations = 20
		s := newTestSolver(t, ip)
		broken := s.NewFrictionLaw()
		broken.Type = FRICTION_Pouliquen
		broken.TanDelta1, broken.TanDelta2 = 0.3, 0.6
		broken.Beta, broken.L = 0, 0
		for _, cl := range s.Clusters {
			cl.Controller.Friction = broken
		}
		err := s.Solve()
		assert.True(t, errors.Is(err, types.ErrNumericInstability))
	}
	{ // Stepping a released cluster
		s := newTestSolver(t, testParams(4, 4, 1, "LakeAtRest"))
		require.NoError(t, s.Release())
		_, err := s.Clusters[0].Controller.Step(0, 1)
		assert.True(t, errors.Is(err, types.ErrAlreadyReleased))
	}
	{ // Release is not repeatable
		s := newTestSolver(t, testParams(4, 4, 2, "LakeAtRest"))
		require.NoError(t, s.Release())
		assert.True(t, errors.Is(s.Release(), types.ErrAlreadyReleased))
	}
}
