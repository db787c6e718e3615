/*
Package assembly implements a lattice neutronics driver over the same pin
grid the surrogate thermal driver uses. It carries no transport; the power
shape is a chopped cosine along the axis with a linear Doppler style
feedback on the fuel temperature, which is exactly enough structure for a
Picard loop to have something to converge.

Cells are dense handles in a fixed order: for every pin and axial level a
fuel cell and a clad cell (the clad cell spans pellet surface to clad
outer, gap included), then one moderator cell per axial level covering all
coolant at that elevation, then a single axial reflector cell for points
above or below the fueled range. Positions outside the lattice box resolve
to no cell at all.
*/
package assembly

import (
	"fmt"
	"math"
	"sort"

	"github.com/neutrolab/gonics/types"
)

// Config fixes the lattice geometry and the feedback model.
type Config struct {
	PinsX, PinsY    int
	PinPitch        float64   // [cm]
	PelletRadius    float64   // [cm]
	CladOuterRadius float64   // [cm]
	ZEdges          []float64 // [cm] ascending fueled range

	ReferenceTemperature float64 // [K] feedback anchor
	DopplerCoefficient   float64 // fractional tally change per K of fuel heating

	OutputBasename   string
	OutputIterations types.OutputMode
}

func (cfg *Config) validate() error {
	if cfg.PinsX < 1 || cfg.PinsY < 1 {
		return fmt.Errorf("lattice extent %dx%d must be positive", cfg.PinsX, cfg.PinsY)
	}
	if cfg.PelletRadius <= 0 {
		return fmt.Errorf("pellet radius %g must be positive", cfg.PelletRadius)
	}
	if cfg.CladOuterRadius <= cfg.PelletRadius {
		return fmt.Errorf("clad outer radius %g inside pellet radius %g",
			cfg.CladOuterRadius, cfg.PelletRadius)
	}
	if cfg.PinPitch <= 2*cfg.CladOuterRadius {
		return fmt.Errorf("pin pitch %g leaves no moderator around radius %g pins",
			cfg.PinPitch, cfg.CladOuterRadius)
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
	if cfg.ReferenceTemperature <= 0 {
		return fmt.Errorf("reference temperature %g must be positive",
			cfg.ReferenceTemperature)
	}
	if cfg.DopplerCoefficient < 0 {
		return fmt.Errorf("Doppler coefficient %g must not be negative",
			cfg.DopplerCoefficient)
	}
	return nil
}

// Lattice satisfies drivers.Neutronics for the pin grid described by its
// Config. All state is per cell; handles come from FindCell or the cell
// address helpers.
type Lattice struct {
	Config
	NPins, NAxial int

	widthX, widthY float64
	zCenter        float64
	height         float64

	cellT, cellRho []float64
	tally          []float64
	vol            []float64
}

func NewLattice(cfg Config) (lat *Lattice, err error) {
	if err = cfg.validate(); err != nil {
		return
	}
	lat = &Lattice{
		Config: cfg,
		NPins:  cfg.PinsX * cfg.PinsY,
		NAxial: len(cfg.ZEdges) - 1,
		widthX: float64(cfg.PinsX) * cfg.PinPitch,
		widthY: float64(cfg.PinsY) * cfg.PinPitch,
	}
	z0, zN := cfg.ZEdges[0], cfg.ZEdges[lat.NAxial]
	lat.zCenter = (z0 + zN) / 2
	lat.height = zN - z0
	n := lat.NCells()
	lat.cellT = make([]float64, n)
	lat.cellRho = make([]float64, n)
	lat.vol = make([]float64, n)
	for c := 0; c < n; c++ {
		lat.cellT[c] = cfg.ReferenceTemperature
		lat.cellRho[c] = 0.74
	}
	lat.fillVolumes()
	return
}

func (lat *Lattice) NCells() int {
	return 2*lat.NPins*lat.NAxial + lat.NAxial + 1
}

// FuelCell addresses the pellet cell of one pin at one axial level.
func (lat *Lattice) FuelCell(pin, axial int) types.CellHandle {
	return types.CellHandle(2 * (pin*lat.NAxial + axial))
}

// CladCell addresses the gap and clad annulus of one pin at one axial level.
func (lat *Lattice) CladCell(pin, axial int) types.CellHandle {
	return lat.FuelCell(pin, axial) + 1
}

// ModeratorCell addresses the coolant cell spanning one axial level.
func (lat *Lattice) ModeratorCell(axial int) types.CellHandle {
	return types.CellHandle(2*lat.NPins*lat.NAxial + axial)
}

// ReflectorCell addresses the single cell above and below the fueled range.
func (lat *Lattice) ReflectorCell() types.CellHandle {
	return types.CellHandle(2*lat.NPins*lat.NAxial + lat.NAxial)
}

// The reflector is treated as a slab one pitch thick at either end; only
// its volume depends on that choice.
func (lat *Lattice) fillVolumes() {
	var (
		box      = lat.widthX * lat.widthY
		fuelArea = math.Pi * lat.PelletRadius * lat.PelletRadius
		cladArea = math.Pi*lat.CladOuterRadius*lat.CladOuterRadius - fuelArea
		modArea  = box - float64(lat.NPins)*(fuelArea+cladArea)
	)
	for pin := 0; pin < lat.NPins; pin++ {
		for j := 0; j < lat.NAxial; j++ {
			dz := lat.ZEdges[j+1] - lat.ZEdges[j]
			lat.vol[lat.FuelCell(pin, j)] = fuelArea * dz
			lat.vol[lat.CladCell(pin, j)] = cladArea * dz
		}
	}
	for j := 0; j < lat.NAxial; j++ {
		dz := lat.ZEdges[j+1] - lat.ZEdges[j]
		lat.vol[lat.ModeratorCell(j)] = modArea * dz
	}
	lat.vol[lat.ReflectorCell()] = box * 2 * lat.PinPitch
}

/*
FindCell classifies a point against the lattice. The box test is closed on
both sides so channel centers on the assembly boundary stay inside; axial
bins are half open [lo, hi), so a point exactly on an interior edge lands
in the level above it. Points inside the box but axially outside the
fueled range belong to the reflector.
*/
func (lat *Lattice) FindCell(p types.Position) (types.CellHandle, bool) {
	if math.Abs(p.X) > lat.widthX/2 || math.Abs(p.Y) > lat.widthY/2 {
		return types.CellNotFound, false
	}
	if p.Z < lat.ZEdges[0] || p.Z >= lat.ZEdges[lat.NAxial] {
		return lat.ReflectorCell(), true
	}
	j := lat.axialBin(p.Z)
	col := clampInt(int((p.X+lat.widthX/2)/lat.PinPitch), lat.PinsX-1)
	row := clampInt(int((lat.widthY/2-p.Y)/lat.PinPitch), lat.PinsY-1)
	pin := row*lat.PinsX + col
	var (
		cx = -lat.widthX/2 + lat.PinPitch/2 + float64(col)*lat.PinPitch
		cy = lat.widthY/2 - (lat.PinPitch/2 + float64(row)*lat.PinPitch)
		r  = math.Hypot(p.X-cx, p.Y-cy)
	)
	switch {
	case r <= lat.PelletRadius:
		return lat.FuelCell(pin, j), true
	case r <= lat.CladOuterRadius:
		return lat.CladCell(pin, j), true
	}
	return lat.ModeratorCell(j), true
}

func (lat *Lattice) axialBin(z float64) int {
	idx := sort.SearchFloat64s(lat.ZEdges, z)
	if idx < len(lat.ZEdges) && lat.ZEdges[idx] == z {
		return idx
	}
	return idx - 1
}

func clampInt(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}

// CreateTallies sizes the energy production tally and fills it from the
// starting cell temperatures.
func (lat *Lattice) CreateTallies() {
	lat.tally = make([]float64, lat.NCells())
	lat.updateTally()
}

/*
updateTally evaluates the power shape: a chopped cosine over the fueled
height scaled per fuel cell by 1 - kappa (T - Tref). The feedback factor is
floored at 0.05 so a hot excursion thins the local tally without ever
producing an unusable all zero distribution.
*/
func (lat *Lattice) updateTally() {
	for pin := 0; pin < lat.NPins; pin++ {
		for j := 0; j < lat.NAxial; j++ {
			var (
				c    = lat.FuelCell(pin, j)
				zMid = (lat.ZEdges[j] + lat.ZEdges[j+1]) / 2
				s    = math.Cos(math.Pi * (zMid - lat.zCenter) / lat.height)
				f    = 1 - lat.DopplerCoefficient*(lat.cellT[c]-lat.ReferenceTemperature)
			)
			if f < 0.05 {
				f = 0.05
			}
			lat.tally[c] = s * f
		}
	}
}

/*
HeatSource scales the current tally so the generated power densities
integrate to the requested power over all cells. Zero requested power
returns all zeros; a degenerate tally with nonzero requested power cannot
be normalized and errors.
*/
func (lat *Lattice) HeatSource(power float64) (q []float64, err error) {
	if lat.tally == nil {
		return nil, fmt.Errorf("tallies not created")
	}
	q = make([]float64, lat.NCells())
	if power == 0 {
		return
	}
	var wsum float64
	for c, s := range lat.tally {
		wsum += s * lat.vol[c]
	}
	if wsum <= 0 {
		return nil, fmt.Errorf("tally integral %g cannot carry %g W", wsum, power)
	}
	norm := power / wsum
	for c, s := range lat.tally {
		q[c] = s * norm
	}
	return
}

func (lat *Lattice) Volume(c types.CellHandle) float64      { return lat.vol[c] }
func (lat *Lattice) Temperature(c types.CellHandle) float64 { return lat.cellT[c] }
func (lat *Lattice) Density(c types.CellHandle) float64     { return lat.cellRho[c] }

func (lat *Lattice) SetTemperature(c types.CellHandle, T float64) {
	lat.cellT[c] = T
}

func (lat *Lattice) SetDensity(c types.CellHandle, rho float64) {
	lat.cellRho[c] = rho
}

// IsFissionable reports whether a cell is fuel.
func (lat *Lattice) IsFissionable(c types.CellHandle) bool {
	return c >= 0 && int(c) < 2*lat.NPins*lat.NAxial && c%2 == 0
}

func (lat *Lattice) InitStep() error { return nil }

// SolveStep refreshes the tally from the cell temperatures pushed since the
// last call. This is the feedback the Picard iteration converges on.
func (lat *Lattice) SolveStep() error {
	if lat.tally == nil {
		return fmt.Errorf("tallies not created")
	}
	lat.updateTally()
	return nil
}

func (lat *Lattice) FinalizeStep() error { return nil }
