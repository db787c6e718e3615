package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"

	"github.com/neutrolab/gonics/types"
)

// Parameters obtained from the YAML input file
type CouplingParameters struct {
	Title         string               `yaml:"Title"`
	TotalPower    float64              `yaml:"TotalPower"`    // [W] target of the conservative power transfer
	MaxTimesteps  int                  `yaml:"MaxTimesteps"`  // Number of coupled time steps to run
	MaxPicardIter int                  `yaml:"MaxPicardIter"` // Iteration cap per time step
	Epsilon       float64              `yaml:"Epsilon"`       // Convergence tolerance on cell temperature change
	Norm          string               `yaml:"Norm"`          // L1 | L2 | Linf
	Alpha         float64              `yaml:"Alpha"`         // Heat source under relaxation, 1 = none
	AlphaT        float64              `yaml:"AlphaT"`        // Temperature under relaxation
	AlphaRho      float64              `yaml:"AlphaRho"`      // Density under relaxation
	TemperatureIC string               `yaml:"TemperatureIC"` // neutronics | heatfluids
	DensityIC     string               `yaml:"DensityIC"`
	HeatFluids    HeatFluidsParameters `yaml:"HeatFluids"`
	Feedback      FeedbackParameters   `yaml:"Feedback"`
}

// Pin lattice geometry and flow conditions for the heat and fluids side.
// Lengths in cm, temperatures in K, pressure in MPa, flow in kg/s.
type HeatFluidsParameters struct {
	CladInnerRadius  float64   `yaml:"CladInnerRadius"`
	CladOuterRadius  float64   `yaml:"CladOuterRadius"`
	PelletRadius     float64   `yaml:"PelletRadius"`
	FuelRings        int       `yaml:"FuelRings"`
	CladRings        int       `yaml:"CladRings"`
	PinsX            int       `yaml:"PinsX"`
	PinsY            int       `yaml:"PinsY"`
	PinPitch         float64   `yaml:"PinPitch"`
	MassFlowrate     float64   `yaml:"MassFlowrate"`
	InletTemperature float64   `yaml:"InletTemperature"`
	Pressure         float64   `yaml:"Pressure"`
	ZEdges           []float64 `yaml:"ZEdges"`
	Tolerance        float64   `yaml:"Tolerance"`
	OutputBasename   string    `yaml:"OutputBasename"`
	OutputIterations string    `yaml:"OutputIterations"` // none | final | all
}

// Tally feedback model of the lattice neutronics driver. The lattice shares
// the OutputIterations mode of the heat fluids side but writes its own files.
type FeedbackParameters struct {
	ReferenceTemperature float64 `yaml:"ReferenceTemperature"`
	DopplerCoefficient   float64 `yaml:"DopplerCoefficient"`
	OutputBasename       string  `yaml:"OutputBasename"`
}

// Defaults returns the parameter set used when the input file leaves a field
// out. Parse overlays the file onto these values.
func Defaults() (cp *CouplingParameters) {
	cp = &CouplingParameters{
		Title:         "coupled case",
		MaxTimesteps:  1,
		MaxPicardIter: 10,
		Epsilon:       1.e-4,
		Norm:          "Linf",
		Alpha:         1,
		AlphaT:        1,
		AlphaRho:      1,
		TemperatureIC: "heatfluids",
		DensityIC:     "heatfluids",
		HeatFluids: HeatFluidsParameters{
			InletTemperature: 523.15,
			Pressure:         15.5,
			Tolerance:        1.e-6,
			OutputBasename:   "surrogate",
			OutputIterations: "final",
		},
		Feedback: FeedbackParameters{
			ReferenceTemperature: 565,
			DopplerCoefficient:   2.e-4,
			OutputBasename:       "lattice",
		},
	}
	return
}

func (cp *CouplingParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, cp)
}

// NormType, ICs and OutputMode convert the string labels into their typed
// forms, erroring on labels the name maps do not know.
func (cp *CouplingParameters) NormType() (types.NormType, error) {
	return types.NewNormType(cp.Norm)
}

func (cp *CouplingParameters) ICs() (tIC, rhoIC types.ICSource, err error) {
	if tIC, err = types.NewICSource(cp.TemperatureIC); err != nil {
		return
	}
	rhoIC, err = types.NewICSource(cp.DensityIC)
	return
}

func (cp *CouplingParameters) OutputMode() (types.OutputMode, error) {
	return types.NewOutputMode(cp.HeatFluids.OutputIterations)
}

func (cp *CouplingParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", cp.Title)
	fmt.Printf("%8.5g\t\t= TotalPower [W]\n", cp.TotalPower)
	fmt.Printf("[%d]\t\t\t= MaxTimesteps\n", cp.MaxTimesteps)
	fmt.Printf("[%d]\t\t\t= MaxPicardIter\n", cp.MaxPicardIter)
	fmt.Printf("%8.5g\t\t= Epsilon\n", cp.Epsilon)
	fmt.Printf("[%s]\t\t\t= Norm\n", cp.Norm)
	fmt.Printf("%8.5f\t\t= Alpha\n", cp.Alpha)
	fmt.Printf("%8.5f\t\t= AlphaT\n", cp.AlphaT)
	fmt.Printf("%8.5f\t\t= AlphaRho\n", cp.AlphaRho)
	fmt.Printf("[%s]\t\t= TemperatureIC\n", cp.TemperatureIC)
	fmt.Printf("[%s]\t\t= DensityIC\n", cp.DensityIC)
	fmt.Printf("[%dx%d] pins, pitch %.4f\t= Lattice\n",
		cp.HeatFluids.PinsX, cp.HeatFluids.PinsY, cp.HeatFluids.PinPitch)
	fmt.Printf("%v\t= ZEdges\n", cp.HeatFluids.ZEdges)
}
