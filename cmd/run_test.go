package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gotwolayer/InputParameters"
	"github.com/notargets/gotwolayer/types"
)

func writeInput(t *testing.T, text string) (path string) {
	path = filepath.Join(t.TempDir(), "input.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return
}

func TestProcessInput(t *testing.T) {
	{ // The example printed for users must be valid
		ip, err := processInput(&ModelRun{ICFile: writeInput(t, exampleFile)})
		require.NoError(t, err)
		assert.Equal(t, 4, ip.Clusters)
		assert.Equal(t, "landslide.nc", ip.OutputFile)
		ip.Print()
	}
	{ // Output flag overrides the file
		ip, err := processInput(&ModelRun{ICFile: writeInput(t, exampleFile), OutputFile: "other.nc"})
		require.NoError(t, err)
		assert.Equal(t, "other.nc", ip.OutputFile)
	}
	_, err := processInput(&ModelRun{})
	assert.ErrorIs(t, err, types.ErrConfiguration)
	_, err = processInput(&ModelRun{ICFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
	_, err = processInput(&ModelRun{ICFile: writeInput(t, "NumVolX: 10\nNumVolY: 1\n")})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestRunTwoLayer(t *testing.T) {
	var (
		outFile = filepath.Join(t.TempDir(), "run.nc")
		input   = `
Title: "Dam break"
NumVolX: 16
NumVolY: 8
Dx: 1.
Dy: 1.
Clusters: 2
ParallelDegree: 2
FinalTime: 0.5
CheckpointInterval: 0.25
Friction: Pouliquen
PouliquenAngle1: 20.
PouliquenAngle2: 30.
PouliquenBeta: 0.136
PouliquenL: 1.
InitType: DamBreak
BCs:
  East: open
`
	)
	ip, err := processInput(&ModelRun{ICFile: writeInput(t, input), OutputFile: outFile})
	require.NoError(t, err)
	require.NoError(t, RunTwoLayer(&ModelRun{}, ip))

	ff, err := os.Open(outFile)
	require.NoError(t, err)
	defer ff.Close()
	f, err := cdf.Open(ff)
	require.NoError(t, err)
	assert.Equal(t, []int{ip.NumVolY, ip.NumVolX}, f.Header.Lengths("H"))
	// Records at 0, 0.25 and 0.5
	for rec, tm := range []float64{0, 0.25, 0.5} {
		r := f.Reader("time", []int{rec}, []int{rec})
		buf := make([]float64, 1)
		_, err = r.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, tm, buf[0])
	}
	r := f.Reader("h1", []int{2, 0, 0}, []int{2, ip.NumVolY - 1, ip.NumVolX - 1})
	h1 := make([]float32, ip.NumVolX*ip.NumVolY)
	_, err = r.Read(h1)
	require.NoError(t, err)
	for _, h := range h1 {
		assert.True(t, h > 0)
	}
}

func TestRunTwoLayerErrors(t *testing.T) {
	newParams := func() (ip *InputParameters.InputParametersTwoLayer) {
		ip = &InputParameters.InputParametersTwoLayer{
			NumVolX: 8, NumVolY: 4, Dx: 1, Dy: 1, FinalTime: 0.1, InitType: "DamBreak",
		}
		ip.SetDefaults()
		return
	}
	err := RunTwoLayer(&ModelRun{Profile: "gpu"}, newParams())
	assert.ErrorIs(t, err, types.ErrConfiguration)

	ip := newParams()
	ip.DeviceMemory = 64
	err = RunTwoLayer(&ModelRun{}, ip)
	assert.ErrorIs(t, err, types.ErrOutOfDeviceMemory)

	ip = newParams()
	ip.OutputFile = filepath.Join(t.TempDir(), "missing", "run.nc")
	assert.Error(t, RunTwoLayer(&ModelRun{}, ip))
}
