package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ctessum/cdf"

	"github.com/notargets/gotwolayer/types"
)

var (
	// Layer fields stored once per record
	RecordVariables = []string{"h1", "q1x", "q1y", "h2", "q2x", "q2y"}
	// Fields that are overwritten in place at every record
	StaticVariables = []string{"H", "eta1max", "eta1maxtime"}
	descriptions    = map[string][2]string{
		"h1":          {"upper layer thickness", "m"},
		"q1x":         {"upper layer discharge, x component", "m2 s-1"},
		"q1y":         {"upper layer discharge, y component", "m2 s-1"},
		"h2":          {"lower layer thickness", "m"},
		"q2x":         {"lower layer discharge, x component", "m2 s-1"},
		"q2y":         {"lower layer discharge, y component", "m2 s-1"},
		"H":           {"depth of the bottom below the reference level", "m"},
		"eta1max":     {"maximum free surface elevation", "m"},
		"eta1maxtime": {"time at which eta1max was reached", "s"},
	}
)

// NetCDFWriter stores checkpoints of a run in one NetCDF file. Clusters
// write their own row range of each record, so concurrent calls are
// serialized on the file.
type NetCDFWriter struct {
	NumVolX, NumVolY int
	mu               sync.Mutex
	file             *os.File
	cdf              *cdf.File
	closed           bool
}

func NewNetCDFWriter(path string, nx, ny int, dx, dy float64, title string) (nw *NetCDFWriter, err error) {
	var (
		ff *os.File
		f  *cdf.File
	)
	if nx < 1 || ny < 1 {
		err = fmt.Errorf("output: invalid grid %d x %d: %w", nx, ny, types.ErrConfiguration)
		return
	}
	h := cdf.NewHeader([]string{"time", "y", "x"}, []int{0, ny, nx})
	h.AddAttribute("", "title", title)
	h.AddAttribute("", "dx", []float64{dx})
	h.AddAttribute("", "dy", []float64{dy})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "s")
	for _, v := range RecordVariables {
		h.AddVariable(v, []string{"time", "y", "x"}, []float32{0})
		h.AddAttribute(v, "description", descriptions[v][0])
		h.AddAttribute(v, "units", descriptions[v][1])
	}
	for _, v := range StaticVariables {
		h.AddVariable(v, []string{"y", "x"}, []float32{0})
		h.AddAttribute(v, "description", descriptions[v][0])
		h.AddAttribute(v, "units", descriptions[v][1])
	}
	h.Define()
	if errs := h.Check(); len(errs) != 0 {
		err = fmt.Errorf("output: invalid NetCDF header: %v", errs[0])
		return
	}
	if ff, err = os.Create(path); err != nil {
		err = fmt.Errorf("output: creating %s: %w", path, err)
		return
	}
	if f, err = cdf.Create(ff, h); err != nil {
		_ = ff.Close()
		err = fmt.Errorf("output: writing header of %s: %w", path, err)
		return
	}
	nw = &NetCDFWriter{
		NumVolX: nx,
		NumVolY: ny,
		file:    ff,
		cdf:     f,
	}
	return
}

// WriteSnapshot stores the rows owned by one cluster into record snap.Record
func (nw *NetCDFWriter) WriteSnapshot(snap *types.Snapshot) (err error) {
	var (
		nx, ny = snap.NumVolX, snap.NumVolY
		r0, r1 = snap.RowOffset, snap.RowOffset + snap.NumVolY - 1
	)
	if nx != nw.NumVolX || r0 < 0 || r1 >= nw.NumVolY || snap.Record < 0 {
		err = fmt.Errorf("output: snapshot rows [%d,%d] x %d outside of %d x %d grid",
			r0, r1, nx, nw.NumVolY, nw.NumVolX)
		return
	}
	nw.mu.Lock()
	defer nw.mu.Unlock()
	if nw.closed {
		return fmt.Errorf("output: write after close: %w", types.ErrAlreadyReleased)
	}
	fields := snap.Fields()
	for _, v := range RecordVariables {
		begin, end := []int{snap.Record, r0, 0}, []int{snap.Record, r1, nx - 1}
		if err = nw.write(v, begin, end, toFloat32(fields[v], nx*ny)); err != nil {
			return
		}
	}
	for v, data := range map[string][]float64{
		"H": snap.Bathymetry, "eta1max": snap.Eta1Max, "eta1maxtime": snap.Eta1MaxTime,
	} {
		if err = nw.write(v, []int{r0, 0}, []int{r1, nx - 1}, toFloat32(data, nx*ny)); err != nil {
			return
		}
	}
	if snap.ClusterID == 0 {
		err = nw.write("time", []int{snap.Record}, []int{snap.Record}, []float64{snap.Time})
	}
	return
}

func (nw *NetCDFWriter) write(v string, begin, end []int, data interface{}) (err error) {
	w := nw.cdf.Writer(v, begin, end)
	// A write that fills the hyperslab exactly reports io.EOF
	if _, err = w.Write(data); err != nil && err != io.EOF {
		return fmt.Errorf("output: writing %s at %v: %w", v, begin, err)
	}
	return nil
}

// Close finalizes the record count in the header and closes the file
func (nw *NetCDFWriter) Close() (err error) {
	nw.mu.Lock()
	defer nw.mu.Unlock()
	if nw.closed {
		return types.ErrAlreadyReleased
	}
	nw.closed = true
	if err = cdf.UpdateNumRecs(nw.file); err != nil {
		_ = nw.file.Close()
		return fmt.Errorf("output: finalizing NetCDF file: %w", err)
	}
	return nw.file.Close()
}

func toFloat32(data []float64, n int) (data32 []float32) {
	data32 = make([]float32, n)
	for i := 0; i < n && i < len(data); i++ {
		data32[i] = float32(data[i])
	}
	return
}
