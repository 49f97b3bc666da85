package InputParameters

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gotwolayer/types"
	"github.com/notargets/gotwolayer/utils"
)

func TestInputParameters(t *testing.T) {
	var (
		err error
	)
	fileInput := []byte(`
Title: Submarine slide
NumVolX: 40
NumVolY: 30
Dx: 10.
Dy: 10.
Clusters: 3
CFL: 0.4
FinalTime: 60.
CheckpointInterval: 10.
Friction: Pouliquen
PouliquenAngle1: 21
PouliquenAngle2: 31
PouliquenBeta: 0.136
PouliquenL: 1.
InitType: Landslide
BCs:
  South: Wall
  North: Open
  East: transmissive
`)
	var input InputParametersTwoLayer
	require.NoError(t, input.Parse(fileInput))
	assert.Equal(t, 40, input.NumVolX)
	assert.Equal(t, 3, input.Clusters)
	assert.Equal(t, 60., input.FinalTime)
	assert.Equal(t, "Pouliquen", input.Friction)
	assert.Equal(t, 9.81, input.Gravity)
	assert.Equal(t, 0.5, input.DensityRatio)
	bc, err := input.BoundaryType("North")
	require.NoError(t, err)
	assert.Equal(t, utils.BCOpen, bc)
	bc, err = input.BoundaryType("West")
	require.NoError(t, err)
	assert.Equal(t, utils.BCWall, bc)
	input.Print()

	{ // Inconsistent inputs are configuration errors
		bad := input
		bad.NumVolY = 0
		assert.True(t, errors.Is(bad.Validate(), types.ErrConfiguration))
		bad = input
		bad.BCs = map[string]string{"Up": "wall"}
		assert.True(t, errors.Is(bad.Validate(), types.ErrConfiguration))
		bad = input
		bad.BCs = map[string]string{"South": "partition"}
		assert.True(t, errors.Is(bad.Validate(), types.ErrConfiguration))
		bad = input
		bad.PouliquenBeta = 0
		assert.True(t, errors.Is(bad.Validate(), types.ErrConfiguration))
		bad = input
		bad.PouliquenL = 0
		assert.True(t, errors.Is(bad.Validate(), types.ErrConfiguration))
		bad.Friction = "Coulomb"
		assert.NoError(t, bad.Validate())
		bad = input
		bad.CFL = 2
		assert.True(t, errors.Is(bad.Validate(), types.ErrConfiguration))
		err = (&InputParametersTwoLayer{}).Parse([]byte("NumVolX: [1, 2]"))
		assert.True(t, errors.Is(err, types.ErrConfiguration))
	}
}
