/*
Package surrogate implements a pin lattice heat and fluids driver: radial
conduction through fuel, gap and clad for every pin at every axial level,
and a coolant centered subchannel enthalpy march between the pins. It
stands in for a full CFD code on the thermal side of a coupled run and
satisfies the drivers.HeatFluids contract.

Geometry follows the usual PWR assembly description. Pins sit on a centered
rectangular grid with row 0 at +y; coolant channels sit on the dual grid of
pin corners, so an assembly of NX x NY pins carries (NX+1) x (NY+1)
channels. Interior channels own a full unit cell of flow area, edge
channels half, corner channels a quarter. All lengths are in cm, power
densities in W/cm3, temperatures in K.
*/
package surrogate

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/neutrolab/gonics/types"
	"github.com/neutrolab/gonics/utils"
)

// Config carries the lattice description and solver controls.
type Config struct {
	CladInnerRadius  float64   // [cm]
	CladOuterRadius  float64   // [cm]
	PelletRadius     float64   // [cm]
	FuelRings        int       // Radial rings across the pellet
	CladRings        int       // Radial rings across the clad
	PinsX, PinsY     int       // Lattice extent
	PinPitch         float64   // [cm]
	MassFlowrate     float64   // [kg/s] total through the assembly
	InletTemperature float64   // [K]
	Pressure         float64   // [MPa], informs the water property fits
	ZEdges           []float64 // [cm] ascending axial mesh edges
	Tolerance        float64   // Conduction sweep tolerance [K]

	OutputBasename   string
	OutputIterations types.OutputMode
}

func (cfg *Config) validate() error {
	if cfg.CladInnerRadius <= 0 {
		return fmt.Errorf("clad inner radius %g must be positive", cfg.CladInnerRadius)
	}
	if cfg.CladOuterRadius <= cfg.CladInnerRadius {
		return fmt.Errorf("clad outer radius %g inside inner radius %g",
			cfg.CladOuterRadius, cfg.CladInnerRadius)
	}
	if cfg.PelletRadius >= cfg.CladInnerRadius {
		return fmt.Errorf("pellet radius %g reaches the clad at %g",
			cfg.PelletRadius, cfg.CladInnerRadius)
	}
	if cfg.PelletRadius <= 0 {
		return fmt.Errorf("pellet radius %g must be positive", cfg.PelletRadius)
	}
	if cfg.FuelRings < 1 || cfg.CladRings < 1 {
		return fmt.Errorf("need at least one fuel and one clad ring, have %d and %d",
			cfg.FuelRings, cfg.CladRings)
	}
	if cfg.PinsX < 1 || cfg.PinsY < 1 {
		return fmt.Errorf("lattice extent %dx%d must be positive", cfg.PinsX, cfg.PinsY)
	}
	if cfg.PinPitch <= 2*cfg.CladOuterRadius {
		return fmt.Errorf("pin pitch %g leaves no coolant around radius %g pins",
			cfg.PinPitch, cfg.CladOuterRadius)
	}
	if cfg.MassFlowrate <= 0 {
		return fmt.Errorf("mass flowrate %g must be positive", cfg.MassFlowrate)
	}
	if cfg.InletTemperature <= 0 {
		return fmt.Errorf("inlet temperature %g must be positive", cfg.InletTemperature)
	}
	if len(cfg.ZEdges) < 2 {
		return fmt.Errorf("need at least two z edges, have %d", len(cfg.ZEdges))
	}
	for j := 1; j < len(cfg.ZEdges); j++ {
		if cfg.ZEdges[j] <= cfg.ZEdges[j-1] {
			return fmt.Errorf("z edges must increase, edge %d is %g after %g",
				j, cfg.ZEdges[j], cfg.ZEdges[j-1])
		}
	}
	if cfg.Tolerance <= 0 {
		return fmt.Errorf("tolerance %g must be positive", cfg.Tolerance)
	}
	return nil
}

/*
HeatDriver holds the derived lattice geometry and the flattened element
arrays the coupling layer reads. Elements enumerate solid first, pin major,
then axial, then ring with fuel rings before clad rings; fluid elements
follow, channel major then axial. Conduction and Water are collaborator
seams; NewHeatDriver installs the default models and a caller may replace
them before the first SolveStep.
*/
type HeatDriver struct {
	Config
	NPins, NChannels int
	NAxial, NRings   int

	PinCenters       []types.Position // z 0, row major from +y
	ChannelCenters   []types.Position
	ChannelAreas     []float64 // [cm2]
	ChannelFlowrates []float64 // [kg/s]
	RGridFuel        []float64 // FuelRings+1 edges over [0, PelletRadius]
	RGridClad        []float64 // CladRings+1 edges over [inner, outer]

	Conduction ConductionModel
	Water      CoolantProps

	// ParallelDegree sets the goroutine count for the conduction sweep.
	ParallelDegree int

	ringArea []float64 // [cm2] annulus area per ring
	ringMid  []float64 // [cm] ring center radius

	centroids   []types.Position
	volumes     []float64
	fluidMask   []bool
	temperature []float64
	density     []float64
	source      []float64
}

func NewHeatDriver(cfg Config) (hd *HeatDriver, err error) {
	if err = cfg.validate(); err != nil {
		return
	}
	hd = &HeatDriver{
		Config:         cfg,
		NPins:          cfg.PinsX * cfg.PinsY,
		NChannels:      (cfg.PinsX + 1) * (cfg.PinsY + 1),
		NAxial:         len(cfg.ZEdges) - 1,
		NRings:         cfg.FuelRings + cfg.CladRings,
		Conduction:     NewConstantProps(),
		Water:          NewWater(cfg.Pressure),
		ParallelDegree: runtime.NumCPU(),
	}
	hd.layoutLattice()
	hd.generateArrays()
	return
}

/*
layoutLattice places pins and channels on the centered grid and splits the
mass flowrate over the channels in proportion to flow area. The assembly
center is at x = 0, y = 0 and the rod to boundary separation equals half
the pitch on every side.
*/
func (hd *HeatDriver) layoutLattice() {
	var (
		widthX = float64(hd.PinsX) * hd.PinPitch
		widthY = float64(hd.PinsY) * hd.PinPitch
	)
	hd.PinCenters = make([]types.Position, hd.NPins)
	for row := 0; row < hd.PinsY; row++ {
		for col := 0; col < hd.PinsX; col++ {
			hd.PinCenters[hd.PinIndex(row, col)] = types.Position{
				X: -widthX/2 + hd.PinPitch/2 + float64(col)*hd.PinPitch,
				Y: widthY/2 - (hd.PinPitch/2 + float64(row)*hd.PinPitch),
			}
		}
	}
	var (
		interior = hd.PinPitch*hd.PinPitch - math.Pi*hd.CladOuterRadius*hd.CladOuterRadius
		edge     = interior / 2
		corner   = interior / 4
	)
	hd.ChannelCenters = make([]types.Position, hd.NChannels)
	hd.ChannelAreas = make([]float64, hd.NChannels)
	for row := 0; row <= hd.PinsY; row++ {
		for col := 0; col <= hd.PinsX; col++ {
			ch := hd.ChannelIndex(row, col)
			hd.ChannelCenters[ch] = types.Position{
				X: -widthX/2 + float64(col)*hd.PinPitch,
				Y: widthY/2 - float64(row)*hd.PinPitch,
			}
			onX := col == 0 || col == hd.PinsX
			onY := row == 0 || row == hd.PinsY
			switch {
			case onX && onY:
				hd.ChannelAreas[ch] = corner
			case onX || onY:
				hd.ChannelAreas[ch] = edge
			default:
				hd.ChannelAreas[ch] = interior
			}
		}
	}
	total := floats.Sum(hd.ChannelAreas)
	hd.ChannelFlowrates = make([]float64, hd.NChannels)
	for ch, area := range hd.ChannelAreas {
		hd.ChannelFlowrates[ch] = area / total * hd.MassFlowrate
	}
}

// generateArrays builds the radial grids and the flattened element arrays.
// Every element starts at the inlet temperature; solid densities stay zero,
// the coupling layer never reads them.
func (hd *HeatDriver) generateArrays() {
	hd.RGridFuel = make([]float64, hd.FuelRings+1)
	floats.Span(hd.RGridFuel, 0, hd.PelletRadius)
	hd.RGridClad = make([]float64, hd.CladRings+1)
	floats.Span(hd.RGridClad, hd.CladInnerRadius, hd.CladOuterRadius)

	hd.ringArea = make([]float64, hd.NRings)
	hd.ringMid = make([]float64, hd.NRings)
	for r := 0; r < hd.NRings; r++ {
		lo, hi := hd.ringRadii(r)
		hd.ringArea[r] = math.Pi * (hi*hi - lo*lo)
		hd.ringMid[r] = (lo + hi) / 2
	}

	ne := hd.NPins*hd.NAxial*hd.NRings + hd.NChannels*hd.NAxial
	hd.centroids = make([]types.Position, ne)
	hd.volumes = make([]float64, ne)
	hd.fluidMask = make([]bool, ne)
	hd.temperature = make([]float64, ne)
	hd.density = make([]float64, ne)
	hd.source = make([]float64, ne)

	for pin := 0; pin < hd.NPins; pin++ {
		for j := 0; j < hd.NAxial; j++ {
			for r := 0; r < hd.NRings; r++ {
				e := hd.SolidIndex(pin, j, r)
				hd.centroids[e] = types.Position{
					X: hd.PinCenters[pin].X + hd.ringMid[r],
					Y: hd.PinCenters[pin].Y,
					Z: hd.zMid(j),
				}
				hd.volumes[e] = hd.ringArea[r] * hd.dz(j)
			}
		}
	}
	for ch := 0; ch < hd.NChannels; ch++ {
		for j := 0; j < hd.NAxial; j++ {
			e := hd.FluidIndex(ch, j)
			hd.centroids[e] = types.Position{
				X: hd.ChannelCenters[ch].X,
				Y: hd.ChannelCenters[ch].Y,
				Z: hd.zMid(j),
			}
			hd.volumes[e] = hd.ChannelAreas[ch] * hd.dz(j)
			hd.fluidMask[e] = true
		}
	}
	rhoIn := hd.Water.Density(hd.InletTemperature)
	for e := range hd.temperature {
		hd.temperature[e] = hd.InletTemperature
		if hd.fluidMask[e] {
			hd.density[e] = rhoIn
		}
	}
}

// PinIndex flattens a (row, col) pin address, row 0 at +y.
func (hd *HeatDriver) PinIndex(row, col int) int { return row*hd.PinsX + col }

// ChannelIndex flattens a (row, col) channel address on the dual grid.
func (hd *HeatDriver) ChannelIndex(row, col int) int { return row*(hd.PinsX+1) + col }

// SolidIndex addresses the element of one radial ring of one pin at one
// axial level.
func (hd *HeatDriver) SolidIndex(pin, axial, ring int) int {
	return (pin*hd.NAxial+axial)*hd.NRings + ring
}

// FluidIndex addresses the element of one channel at one axial level.
func (hd *HeatDriver) FluidIndex(channel, axial int) int {
	return hd.NPins*hd.NAxial*hd.NRings + channel*hd.NAxial + axial
}

func (hd *HeatDriver) ringRadii(r int) (lo, hi float64) {
	if r < hd.FuelRings {
		return hd.RGridFuel[r], hd.RGridFuel[r+1]
	}
	return hd.RGridClad[r-hd.FuelRings], hd.RGridClad[r-hd.FuelRings+1]
}

func (hd *HeatDriver) dz(j int) float64   { return hd.ZEdges[j+1] - hd.ZEdges[j] }
func (hd *HeatDriver) zMid(j int) float64 { return (hd.ZEdges[j] + hd.ZEdges[j+1]) / 2 }

// linearPower integrates the stored source over the rings of one pin at one
// axial level, in W/cm.
func (hd *HeatDriver) linearPower(pin, axial int) (lp float64) {
	for r := 0; r < hd.NRings; r++ {
		lp += hd.source[hd.SolidIndex(pin, axial, r)] * hd.ringArea[r]
	}
	return
}

func (hd *HeatDriver) NElems() int                 { return len(hd.centroids) }
func (hd *HeatDriver) Centroids() []types.Position { return hd.centroids }
func (hd *HeatDriver) Volumes() []float64          { return hd.volumes }
func (hd *HeatDriver) Temperature() []float64      { return hd.temperature }
func (hd *HeatDriver) Density() []float64          { return hd.density }
func (hd *HeatDriver) FluidMask() []bool           { return hd.fluidMask }

func (hd *HeatDriver) SetHeatSource(q []float64) error {
	if len(q) != len(hd.source) {
		return fmt.Errorf("heat source has %d entries for %d elements",
			len(q), len(hd.source))
	}
	copy(hd.source, q)
	return nil
}

func (hd *HeatDriver) InitStep() error     { return nil }
func (hd *HeatDriver) FinalizeStep() error { return nil }

/*
SolveStep advances the thermal state to steady conditions under the stored
heat source: first the subchannel enthalpy march sets the coolant field,
then every pin column solves radial conduction against its local coolant
temperature. The conduction solves are independent and run sharded over
goroutines.
*/
func (hd *HeatDriver) SolveStep() (err error) {
	coolT := hd.solveChannels()

	var (
		nSolves = hd.NPins * hd.NAxial
		NP      = hd.ParallelDegree
		wg      = sync.WaitGroup{}
	)
	if NP > nSolves {
		NP = nSolves
	}
	pm := utils.NewPartitionMap(NP, nSolves)
	errs := make([]error, NP)
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			var (
				q = make([]float64, hd.NRings)
				T = make([]float64, hd.NRings)
			)
			kMin, kMax := pm.GetBucketRange(np)
			for k := kMin; k < kMax; k++ {
				pin, j := k/hd.NAxial, k%hd.NAxial
				for r := 0; r < hd.NRings; r++ {
					q[r] = hd.source[hd.SolidIndex(pin, j, r)]
				}
				if err := hd.Conduction.Solve(q, coolT[k], hd.RGridFuel,
					hd.RGridClad, hd.Tolerance, T); err != nil {
					errs[np] = fmt.Errorf("pin %d level %d: %w", pin, j, err)
					break
				}
				for r := 0; r < hd.NRings; r++ {
					hd.temperature[hd.SolidIndex(pin, j, r)] = T[r]
				}
			}
			wg.Done()
		}(np)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return
}

/*
solveChannels marches enthalpy up every channel from the inlet. Each pin
deposits a quarter of its level power into each of its four corner
channels; any source stored on a fluid element adds as direct heating. The
returned slice carries the coolant temperature seen by each pin column,
averaged over its four corner channels, indexed pin*NAxial+axial.
*/
func (hd *HeatDriver) solveChannels() (coolT []float64) {
	var (
		hIn = hd.Water.Enthalpy(hd.InletTemperature)
	)
	chanT := make([]float64, hd.NChannels*hd.NAxial)
	for row := 0; row <= hd.PinsY; row++ {
		for col := 0; col <= hd.PinsX; col++ {
			var (
				ch   = hd.ChannelIndex(row, col)
				h    = hIn
				mdot = hd.ChannelFlowrates[ch]
			)
			for j := 0; j < hd.NAxial; j++ {
				dep := hd.source[hd.FluidIndex(ch, j)] * hd.ChannelAreas[ch] * hd.dz(j)
				for _, pin := range hd.cornerPins(row, col) {
					dep += 0.25 * hd.linearPower(pin, j) * hd.dz(j)
				}
				hOut := h + dep/mdot
				T := hd.Water.Temperature((h + hOut) / 2)
				chanT[ch*hd.NAxial+j] = T
				e := hd.FluidIndex(ch, j)
				hd.temperature[e] = T
				hd.density[e] = hd.Water.Density(T)
				h = hOut
			}
		}
	}
	coolT = make([]float64, hd.NPins*hd.NAxial)
	for pin := 0; pin < hd.NPins; pin++ {
		row, col := pin/hd.PinsX, pin%hd.PinsX
		corners := []int{
			hd.ChannelIndex(row, col), hd.ChannelIndex(row, col+1),
			hd.ChannelIndex(row+1, col), hd.ChannelIndex(row+1, col+1),
		}
		for j := 0; j < hd.NAxial; j++ {
			var T float64
			for _, ch := range corners {
				T += chanT[ch*hd.NAxial+j]
			}
			coolT[pin*hd.NAxial+j] = T / 4
		}
	}
	return
}

// cornerPins lists the pins adjacent to a channel, up to four.
func (hd *HeatDriver) cornerPins(row, col int) (pins []int) {
	for _, pr := range [2]int{row - 1, row} {
		if pr < 0 || pr >= hd.PinsY {
			continue
		}
		for _, pc := range [2]int{col - 1, col} {
			if pc < 0 || pc >= hd.PinsX {
				continue
			}
			pins = append(pins, hd.PinIndex(pr, pc))
		}
	}
	return
}
