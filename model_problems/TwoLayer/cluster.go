package TwoLayer

import (
	"errors"
	"fmt"

	"github.com/notargets/gotwolayer/device"
	"github.com/notargets/gotwolayer/halo"
	"github.com/notargets/gotwolayer/types"
)

// ClusterSpec places a row strip of the global grid on one cluster
type ClusterSpec struct {
	ID               int
	NumVolX, NumVolY int // owned volumes
	RowOffset        int // global row of the first owned row
	Dx, Dy           float64
}

// ClusterGrid is the device resident state of one cluster. Volume arrays hold
// NumVolY+2 rows of NumVolX volumes: row 0 is the inferior ghost row, rows
// 1..NumVolY are owned and row NumVolY+1 is the superior ghost row.
// Accumulators, eta1 maxima and local time steps cover owned volumes only.
type ClusterGrid struct {
	ClusterSpec
	Plan               KernelLaunchPlan
	Dev                *device.Device
	Volumes1, Volumes2 *device.Buffer[types.Float4]
	Eta1Max            *device.Buffer[types.Float2]
	Acc1, Acc2         *device.Buffer[types.Float4]
	// One local time step per owned volume followed by one partial minimum per reduction block
	DeltaTVolumes *device.Buffer[float64]
	// Own halo regions, [boundary][layer]
	ComCluster [2][2]*device.Buffer[types.Float4]
	Tex1, Tex2 *device.Texture2D[types.Float4]
	Halo       *halo.Buffer
	buffers    []freer
	released   bool
}

type freer interface {
	Free() error
}

func NewClusterGrid(dev *device.Device, spec ClusterSpec) (cg *ClusterGrid, err error) {
	var (
		plan KernelLaunchPlan
	)
	if plan, err = NewKernelLaunchPlan(spec.NumVolX, spec.NumVolY); err != nil {
		return
	}
	if spec.Dx <= 0 || spec.Dy <= 0 {
		err = fmt.Errorf("cell size %g x %g: %w", spec.Dx, spec.Dy, types.ErrConfiguration)
		return
	}
	cg = &ClusterGrid{
		ClusterSpec: spec,
		Plan:        plan,
		Dev:         dev,
	}
	if err = cg.allocate(); err != nil {
		cg.rollback()
		cg = nil
		err = fmt.Errorf("cluster %d allocating %dx%d volumes: %w", spec.ID, spec.NumVolX, spec.NumVolY, err)
		return
	}
	cg.bindHalo()
	return
}

func (cg *ClusterGrid) allocate() (err error) {
	var (
		nx, ny   = cg.NumVolX, cg.NumVolY
		nWithCom = nx * (ny + 2)
		nOwned   = nx * ny
	)
	float4 := func(n int) (buf *device.Buffer[types.Float4]) {
		if err != nil {
			return
		}
		if buf, err = device.Malloc[types.Float4](cg.Dev, n); err == nil {
			cg.buffers = append(cg.buffers, buf)
		}
		return
	}
	cg.Volumes1 = float4(nWithCom)
	cg.Volumes2 = float4(nWithCom)
	cg.Acc1 = float4(nOwned)
	cg.Acc2 = float4(nOwned)
	for _, b := range []halo.Boundary{halo.Inferior, halo.Superior} {
		cg.ComCluster[b][0] = float4(nx)
		cg.ComCluster[b][1] = float4(nx)
	}
	if err != nil {
		return
	}
	if cg.Eta1Max, err = device.Malloc[types.Float2](cg.Dev, nOwned); err != nil {
		return
	}
	cg.buffers = append(cg.buffers, cg.Eta1Max)
	if cg.DeltaTVolumes, err = device.Malloc[float64](cg.Dev, nOwned+cg.Plan.NumDeltaTBlocks()); err != nil {
		return
	}
	cg.buffers = append(cg.buffers, cg.DeltaTVolumes)
	if cg.Tex1, err = device.BindTexture2D(cg.Volumes1, nx, ny+2); err != nil {
		return
	}
	cg.Tex2, err = device.BindTexture2D(cg.Volumes2, nx, ny+2)
	return
}

func (cg *ClusterGrid) rollback() {
	for _, buf := range cg.buffers {
		_ = buf.Free()
	}
	cg.buffers = nil
	if cg.Tex1 != nil {
		cg.Tex1.Unbind()
	}
	if cg.Tex2 != nil {
		cg.Tex2.Unbind()
	}
}

func (cg *ClusterGrid) bindHalo() {
	var (
		ny = cg.NumVolY
	)
	cg.Halo = &halo.Buffer{
		Own: [2]halo.Row{
			{W1: cg.ComCluster[halo.Inferior][0].Data(), W2: cg.ComCluster[halo.Inferior][1].Data()},
			{W1: cg.ComCluster[halo.Superior][0].Data(), W2: cg.ComCluster[halo.Superior][1].Data()},
		},
		Other:    [2]halo.Row{cg.row(0), cg.row(ny + 1)},
		Boundary: [2]halo.Row{cg.row(1), cg.row(ny)},
	}
}

// row aliases row j of the volume arrays, ghost rows included
func (cg *ClusterGrid) row(j int) halo.Row {
	var (
		nx = cg.NumVolX
	)
	return halo.Row{
		W1: cg.Volumes1.Data()[j*nx : (j+1)*nx],
		W2: cg.Volumes2.Data()[j*nx : (j+1)*nx],
	}
}

// Release frees every device buffer and unbinds the textures
func (cg *ClusterGrid) Release() (err error) {
	if cg.released {
		return fmt.Errorf("cluster %d: %w", cg.ID, types.ErrAlreadyReleased)
	}
	cg.released = true
	var errs []error
	for _, buf := range cg.buffers {
		if e := buf.Free(); e != nil {
			errs = append(errs, e)
		}
	}
	cg.buffers = nil
	cg.Tex1.Unbind()
	cg.Tex2.Unbind()
	cg.Halo = nil
	err = errors.Join(errs...)
	return
}

func (cg *ClusterGrid) Released() bool { return cg.released }

// VolumeIndex maps an owned volume (x, y) to its slot in the volume arrays
func (cg *ClusterGrid) VolumeIndex(x, y int) int {
	return (y+1)*cg.NumVolX + x
}

// AccIndex maps an owned volume (x, y) to its accumulator slot
func (cg *ClusterGrid) AccIndex(x, y int) int {
	return y*cg.NumVolX + x
}

// Upload copies owned rows, row-major NumVolX by NumVolY, onto the device and
// starts the eta1 maxima from the initial surface
func (cg *ClusterGrid) Upload(vol1, vol2 []types.Float4) (err error) {
	var (
		nx, ny = cg.NumVolX, cg.NumVolY
	)
	if len(vol1) != nx*ny || len(vol2) != nx*ny {
		err = fmt.Errorf("upload of %d, %d volumes into %dx%d cluster: %w",
			len(vol1), len(vol2), nx, ny, types.ErrConfiguration)
		return
	}
	if err = cg.Volumes1.CopyFrom(vol1, nx); err != nil {
		return
	}
	if err = cg.Volumes2.CopyFrom(vol2, nx); err != nil {
		return
	}
	eta := make([]types.Float2, nx*ny)
	for i := range eta {
		eta[i] = types.Float2{types.Eta1(vol1[i], vol2[i]), 0}
	}
	err = cg.Eta1Max.CopyFrom(eta, 0)
	return
}

// Download copies the owned rows back to the host
func (cg *ClusterGrid) Download() (vol1, vol2 []types.Float4, err error) {
	var (
		nx, ny = cg.NumVolX, cg.NumVolY
	)
	vol1 = make([]types.Float4, nx*ny)
	vol2 = make([]types.Float4, nx*ny)
	if err = cg.Volumes1.CopyTo(vol1, nx); err != nil {
		return
	}
	err = cg.Volumes2.CopyTo(vol2, nx)
	return
}

func (cg *ClusterGrid) Snapshot(time float64, record int) (snap *types.Snapshot, err error) {
	var (
		vol1, vol2 []types.Float4
		eta        = make([]types.Float2, cg.NumVolX*cg.NumVolY)
	)
	if vol1, vol2, err = cg.Download(); err != nil {
		return
	}
	if err = cg.Eta1Max.CopyTo(eta, 0); err != nil {
		return
	}
	snap = types.NewSnapshot(cg.ID, cg.RowOffset, cg.NumVolX, cg.NumVolY)
	snap.Time, snap.Record = time, record
	for i := range vol1 {
		snap.H1[i], snap.Q1x[i], snap.Q1y[i] = vol1[i][0], vol1[i][1], vol1[i][2]
		snap.H2[i], snap.Q2x[i], snap.Q2y[i] = vol2[i][0], vol2[i][1], vol2[i][2]
		snap.Bathymetry[i] = vol1[i][3]
		snap.Eta1Max[i], snap.Eta1MaxTime[i] = eta[i][0], eta[i][1]
	}
	return
}
