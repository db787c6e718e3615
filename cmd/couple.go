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
	"encoding/csv"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/neutrolab/gonics/InputParameters"
	"github.com/neutrolab/gonics/assembly"
	"github.com/neutrolab/gonics/coupling"
	"github.com/neutrolab/gonics/surrogate"
)

// CoupleCmd represents the couple command
var CoupleCmd = &cobra.Command{
	Use:   "couple",
	Short: "Run a coupled neutronics / heat fluids case from a YAML input file",
	Long:  `Run a coupled neutronics / heat fluids case from a YAML input file`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		fmt.Println("couple called")
		fileName, err := cmd.Flags().GetString("inputFile")
		if err != nil {
			panic(err)
		}
		if prof, _ := cmd.Flags().GetBool("profile"); prof {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		cp := processCouplingInput(fileName)
		cp.Print()
		ctl, err := BuildCase(cp)
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		var results []coupling.StepResult
		if results, err = ctl.Run(cp.MaxTimesteps); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		if histFile, _ := cmd.Flags().GetString("historyFile"); len(histFile) != 0 {
			if err = WriteHistoryCSV(histFile, results); err != nil {
				fmt.Printf("error: %s\n", err.Error())
				os.Exit(1)
			}
		}
	},
}

// WriteHistoryCSV dumps the per iteration convergence norms of a run, one row
// per Picard iteration, in the format the tools/picardConv reporter reads.
func WriteHistoryCSV(fileName string, results []coupling.StepResult) (err error) {
	var (
		f *os.File
	)
	if f, err = os.Create(fileName); err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	w := csv.NewWriter(f)
	if err = w.Write([]string{"step", "iteration", "norm"}); err != nil {
		return
	}
	for step, res := range results {
		for i, norm := range res.History {
			rec := []string{
				strconv.Itoa(step),
				strconv.Itoa(i + 1),
				strconv.FormatFloat(norm, 'e', -1, 64),
			}
			if err = w.Write(rec); err != nil {
				return
			}
		}
	}
	w.Flush()
	err = w.Error()
	return
}

func processCouplingInput(fileName string) (cp *InputParameters.CouplingParameters) {
	var (
		err error
	)
	if len(fileName) == 0 {
		err := fmt.Errorf("must supply an input parameters file (-I, --inputFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "2x2 demo assembly"
TotalPower: 6.6e4
MaxTimesteps: 1
MaxPicardIter: 10
Epsilon: 1.0e-4
Norm: Linf       # Can be "L1" or "L2"
Alpha: 0.7
HeatFluids:
  CladInnerRadius: 0.414
  CladOuterRadius: 0.475
  PelletRadius: 0.406
  FuelRings: 5
  CladRings: 2
  PinsX: 2
  PinsY: 2
  PinPitch: 1.26
  MassFlowrate: 0.3
  ZEdges: [0.0, 10.0, 20.0, 30.0]
Feedback:
  ReferenceTemperature: 565.0
  DopplerCoefficient: 2.0e-4
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	var data []byte
	if data, err = ioutil.ReadFile(fileName); err != nil {
		panic(err)
	}
	cp = InputParameters.Defaults()
	if err = cp.Parse(data); err != nil {
		panic(err)
	}
	return
}

// BuildCase assembles the two drivers and the controller from the parsed
// parameters. The heat fluids lattice geometry doubles as the neutronics cell
// geometry, so both drivers read from the same HeatFluids block.
func BuildCase(cp *InputParameters.CouplingParameters) (ctl *coupling.Controller, err error) {
	var (
		hf = cp.HeatFluids
	)
	mode, err := cp.OutputMode()
	if err != nil {
		return
	}
	norm, err := cp.NormType()
	if err != nil {
		return
	}
	tIC, rhoIC, err := cp.ICs()
	if err != nil {
		return
	}
	hd, err := surrogate.NewHeatDriver(surrogate.Config{
		CladInnerRadius:  hf.CladInnerRadius,
		CladOuterRadius:  hf.CladOuterRadius,
		PelletRadius:     hf.PelletRadius,
		FuelRings:        hf.FuelRings,
		CladRings:        hf.CladRings,
		PinsX:            hf.PinsX,
		PinsY:            hf.PinsY,
		PinPitch:         hf.PinPitch,
		MassFlowrate:     hf.MassFlowrate,
		InletTemperature: hf.InletTemperature,
		Pressure:         hf.Pressure,
		ZEdges:           hf.ZEdges,
		Tolerance:        hf.Tolerance,
		OutputBasename:   hf.OutputBasename,
		OutputIterations: mode,
	})
	if err != nil {
		return
	}
	lat, err := assembly.NewLattice(assembly.Config{
		PinsX:                hf.PinsX,
		PinsY:                hf.PinsY,
		PinPitch:             hf.PinPitch,
		PelletRadius:         hf.PelletRadius,
		CladOuterRadius:      hf.CladOuterRadius,
		ZEdges:               hf.ZEdges,
		ReferenceTemperature: cp.Feedback.ReferenceTemperature,
		DopplerCoefficient:   cp.Feedback.DopplerCoefficient,
		OutputBasename:       cp.Feedback.OutputBasename,
		OutputIterations:     mode,
	})
	if err != nil {
		return
	}
	ctl, err = coupling.NewController(lat,
		[]coupling.Unit{{Driver: hd, PowerFraction: 1}},
		coupling.Params{
			TotalPower:    cp.TotalPower,
			MaxPicardIter: cp.MaxPicardIter,
			Epsilon:       cp.Epsilon,
			Norm:          norm,
			Alpha:         cp.Alpha,
			AlphaT:        cp.AlphaT,
			AlphaRho:      cp.AlphaRho,
			TemperatureIC: tIC,
			DensityIC:     rhoIC,
		})
	return
}

func init() {
	rootCmd.AddCommand(CoupleCmd)
	CoupleCmd.Flags().StringP("inputFile", "I", "", "YAML file for case parameters like:\n\t- TotalPower\n\t- MaxPicardIter")
	CoupleCmd.Flags().Bool("profile", false, "write a CPU profile of the coupled run")
	CoupleCmd.Flags().String("historyFile", "", "write the per iteration norm history to a CSV file")
}
