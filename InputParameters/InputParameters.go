package InputParameters

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/notargets/gotwolayer/types"
	"github.com/notargets/gotwolayer/utils"
)

// Parameters obtained from the YAML input file
type InputParametersTwoLayer struct {
	Title              string            `yaml:"Title"`
	NumVolX            int               `yaml:"NumVolX"`
	NumVolY            int               `yaml:"NumVolY"`
	Dx                 float64           `yaml:"Dx"`
	Dy                 float64           `yaml:"Dy"`
	Clusters           int               `yaml:"Clusters"`       // Row strips, one device each
	ParallelDegree     int               `yaml:"ParallelDegree"` // Goroutines per device, 0 uses all CPUs
	DeviceMemory       int64             `yaml:"DeviceMemory"`   // Bytes per device, 0 is unlimited
	CFL                float64           `yaml:"CFL"`
	FinalTime          float64           `yaml:"FinalTime"`
	MaxDeltaT          float64           `yaml:"MaxDeltaT"`
	CheckpointInterval float64           `yaml:"CheckpointInterval"`
	MaxIterations      int               `yaml:"MaxIterations"`
	ReportSteps        int               `yaml:"ReportSteps"`
	Gravity            float64           `yaml:"Gravity"`
	DensityRatio       float64           `yaml:"DensityRatio"` // rho1/rho2
	DryThreshold       float64           `yaml:"DryThreshold"`
	Friction           string            `yaml:"Friction"`     // Coulomb or Pouliquen
	CoulombAngle       float64           `yaml:"CoulombAngle"` // Degrees
	PouliquenAngle1    float64           `yaml:"PouliquenAngle1"`
	PouliquenAngle2    float64           `yaml:"PouliquenAngle2"`
	PouliquenBeta      float64           `yaml:"PouliquenBeta"`
	PouliquenL         float64           `yaml:"PouliquenL"`
	InterfaceDrag      float64           `yaml:"InterfaceDrag"`
	Manning            float64           `yaml:"Manning"`
	InitType           string            `yaml:"InitType"`
	BCs                map[string]string `yaml:"BCs"` // Keys are South, North, West, East
	OutputFile         string            `yaml:"OutputFile"`
}

var Sides = []string{"South", "North", "West", "East"}

func (ip *InputParametersTwoLayer) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, ip); err != nil {
		return fmt.Errorf("parsing input parameters: %v: %w", err, types.ErrConfiguration)
	}
	ip.SetDefaults()
	return ip.Validate()
}

// SetDefaults fills parameters left at their zero value
func (ip *InputParametersTwoLayer) SetDefaults() {
	if ip.Clusters == 0 {
		ip.Clusters = 1
	}
	if ip.CFL == 0 {
		ip.CFL = 0.45
	}
	if ip.Gravity == 0 {
		ip.Gravity = 9.81
	}
	if ip.DensityRatio == 0 {
		ip.DensityRatio = 0.5
	}
	if ip.DryThreshold == 0 {
		ip.DryThreshold = 1.e-5
	}
	if ip.MaxIterations == 0 {
		ip.MaxIterations = math.MaxInt32
	}
	if ip.ReportSteps == 0 {
		ip.ReportSteps = 100
	}
	if len(ip.Friction) == 0 {
		ip.Friction = "Coulomb"
	}
	if len(ip.InitType) == 0 {
		ip.InitType = "LakeAtRest"
	}
	if ip.BCs == nil {
		ip.BCs = make(map[string]string)
	}
}

// Validate reports the first inconsistency, wrapped as ErrConfiguration
func (ip *InputParametersTwoLayer) Validate() (err error) {
	fail := func(format string, args ...interface{}) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), types.ErrConfiguration)
	}
	switch {
	case ip.NumVolX < 1 || ip.NumVolY < 1:
		return fail("grid must have positive dimensions, have %d x %d", ip.NumVolX, ip.NumVolY)
	case ip.Dx <= 0 || ip.Dy <= 0:
		return fail("cell size must be positive, have %g x %g", ip.Dx, ip.Dy)
	case ip.Clusters < 1:
		return fail("need at least one cluster, have %d", ip.Clusters)
	case ip.CFL <= 0 || ip.CFL > 1:
		return fail("CFL %g outside (0, 1]", ip.CFL)
	case ip.FinalTime <= 0:
		return fail("final time must be positive, have %g", ip.FinalTime)
	case ip.DensityRatio <= 0 || ip.DensityRatio > 1:
		return fail("density ratio %g outside (0, 1]", ip.DensityRatio)
	case ip.Gravity <= 0 || ip.DryThreshold <= 0:
		return fail("gravity and dry threshold must be positive")
	case strings.EqualFold(ip.Friction, "pouliquen") && (ip.PouliquenBeta <= 0 || ip.PouliquenL <= 0):
		return fail("Pouliquen friction needs positive PouliquenBeta and PouliquenL, have %g and %g",
			ip.PouliquenBeta, ip.PouliquenL)
	case ip.CheckpointInterval < 0 || ip.MaxDeltaT < 0:
		return fail("checkpoint interval and max time step cannot be negative")
	}
	for _, side := range Sides {
		if _, err = ip.BoundaryType(side); err != nil {
			return
		}
	}
	for side := range ip.BCs {
		if !knownSide(side) {
			return fail("unknown boundary side %s, must be one of %v", side, Sides)
		}
	}
	return
}

func knownSide(side string) bool {
	for _, s := range Sides {
		if strings.EqualFold(s, side) {
			return true
		}
	}
	return false
}

// BoundaryType is the condition configured for a side, walls by default
func (ip *InputParametersTwoLayer) BoundaryType(side string) (bc utils.BCType, err error) {
	var name string
	for key, val := range ip.BCs {
		if strings.EqualFold(key, side) {
			name = val
		}
	}
	if bc, err = utils.ParseBCName(name); err != nil {
		err = fmt.Errorf("%s boundary: %v: %w", side, err, types.ErrConfiguration)
		return
	}
	if bc == utils.BCPartitionBoundary {
		err = fmt.Errorf("%s boundary cannot be a partition boundary: %w", side, types.ErrConfiguration)
	}
	return
}

func (ip *InputParametersTwoLayer) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%d x %d]\t\t= Volumes\n", ip.NumVolX, ip.NumVolY)
	fmt.Printf("[%g x %g]\t\t= Cell Size\n", ip.Dx, ip.Dy)
	fmt.Printf("[%d]\t\t\t= Clusters\n", ip.Clusters)
	fmt.Printf("%8.5f\t\t= CFL\n", ip.CFL)
	fmt.Printf("%8.5f\t\t= FinalTime\n", ip.FinalTime)
	fmt.Printf("%8.5f\t\t= Density Ratio\n", ip.DensityRatio)
	fmt.Printf("[%s]\t\t= Friction\n", ip.Friction)
	fmt.Printf("[%s]\t= InitType\n", ip.InitType)
	keys := make([]string, len(ip.BCs))
	i := 0
	for k := range ip.BCs {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%s] = %v\n", key, ip.BCs[key])
	}
}
