/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gotwolayer/InputParameters"
	"github.com/notargets/gotwolayer/model_problems/TwoLayer"
	"github.com/notargets/gotwolayer/output"
	"github.com/notargets/gotwolayer/types"
)

type ModelRun struct {
	ICFile     string
	OutputFile string // Overrides OutputFile of the input parameters
	Profile    string // cpu, mem or empty
	Perf       bool
	Verbose    bool
}

const exampleFile = `
########################################
Title: "Landslide"
NumVolX: 200
NumVolY: 100
Dx: 10.
Dy: 10.
Clusters: 4
CFL: 0.45
FinalTime: 60.
CheckpointInterval: 5.
DensityRatio: 0.5
Friction: Coulomb # Can be "Pouliquen"
CoulombAngle: 20.
InitType: Landslide # Can be "LakeAtRest" or "DamBreak"
BCs:
  West: wall
  East: open
  South: wall
  North: wall
OutputFile: landslide.nc
########################################
`

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a two layer simulation described by a YAML input file",
	Long: `
Reads the input parameters, splits the grid into clusters and advances the
solution to the final time, writing checkpoints to a NetCDF file if requested.

gotwolayer run -I input.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			ip  *InputParameters.InputParametersTwoLayer
		)
		mr := &ModelRun{
			ICFile:     viper.GetString("inputConditionsFile"),
			OutputFile: viper.GetString("output"),
			Profile:    viper.GetString("profile"),
			Perf:       viper.GetBool("perf"),
			Verbose:    viper.GetBool("verbose"),
		}
		if ip, err = processInput(mr); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		if err = RunTwoLayer(mr, ip); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(RunCmd)
	RunCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- NumVolX, NumVolY\n\t- Clusters\n\t- InitType")
	RunCmd.Flags().StringP("output", "o", "", "NetCDF file for checkpoints, overrides OutputFile of the input file")
	RunCmd.Flags().StringP("profile", "p", "", "write a cpu or mem profile of the run to the current directory")
	RunCmd.Flags().Bool("perf", false, "count the CPU instructions of the solve")
	RunCmd.Flags().BoolP("verbose", "v", false, "log every checkpoint")
	for _, name := range []string{"inputConditionsFile", "output", "profile", "perf", "verbose"} {
		if err := viper.BindPFlag(name, RunCmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func processInput(mr *ModelRun) (ip *InputParameters.InputParametersTwoLayer, err error) {
	var (
		data []byte
	)
	if len(mr.ICFile) == 0 {
		fmt.Printf("Example File:%s\n", exampleFile)
		err = fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile): %w",
			types.ErrConfiguration)
		return
	}
	if data, err = os.ReadFile(mr.ICFile); err != nil {
		return
	}
	ip = &InputParameters.InputParametersTwoLayer{}
	if err = ip.Parse(data); err != nil {
		return nil, err
	}
	if len(mr.OutputFile) != 0 {
		ip.OutputFile = mr.OutputFile
	}
	return
}

func newLogger(verbose bool) (log *logrus.Logger) {
	log = logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return
}

func RunTwoLayer(mr *ModelRun, ip *InputParameters.InputParametersTwoLayer) (err error) {
	var (
		s   *TwoLayer.Solver
		nw  *output.NetCDFWriter
		log = newLogger(mr.Verbose)
	)
	ip.Print()
	if s, err = TwoLayer.NewSolver(ip, log); err != nil {
		return
	}
	defer func() { err = errors.Join(err, s.Release()) }()
	if len(ip.OutputFile) != 0 {
		if nw, err = output.NewNetCDFWriter(ip.OutputFile, ip.NumVolX, ip.NumVolY, ip.Dx, ip.Dy, ip.Title); err != nil {
			return
		}
		defer func() { err = errors.Join(err, nw.Close()) }()
		s.Output = nw
	}
	if err = s.Initialize(); err != nil {
		return
	}
	switch mr.Profile {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	default:
		return fmt.Errorf("unknown profile type %q, use cpu or mem: %w", mr.Profile, types.ErrConfiguration)
	}
	if mr.Perf {
		err = countInstructions(s.Solve, log)
	} else {
		err = s.Solve()
	}
	if err != nil {
		return
	}
	d, err := s.Diagnostics()
	if err != nil {
		return
	}
	log.WithFields(logrus.Fields{
		"mass1":    d.Mass1,
		"mass2":    d.Mass2,
		"maxSpeed": d.MaxSpeed,
		"maxEta1":  d.MaxEta1,
	}).Info("final state")
	if d.HasNaN {
		err = fmt.Errorf("final state contains NaN: %w", types.ErrNumericInstability)
	}
	return
}
