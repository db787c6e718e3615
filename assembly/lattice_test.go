package assembly

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neutrolab/gonics/coupling"
	"github.com/neutrolab/gonics/drivers"
	"github.com/neutrolab/gonics/surrogate"
	"github.com/neutrolab/gonics/types"
)

func testConfig() Config {
	return Config{
		PinsX:                2,
		PinsY:                2,
		PinPitch:             1.26,
		PelletRadius:         0.4,
		CladOuterRadius:      0.475,
		ZEdges:               []float64{0, 10, 20},
		ReferenceTemperature: 565,
		DopplerCoefficient:   2.e-4,
	}
}

func TestLatticeCells(t *testing.T) {
	lat, err := NewLattice(testConfig())
	assert.NoError(t, err)
	assert.Equal(t, 19, lat.NCells())
	assert.Equal(t, types.CellHandle(0), lat.FuelCell(0, 0))
	assert.Equal(t, types.CellHandle(1), lat.CladCell(0, 0))
	assert.Equal(t, types.CellHandle(4), lat.FuelCell(1, 0))
	assert.Equal(t, types.CellHandle(16), lat.ModeratorCell(0))
	assert.Equal(t, types.CellHandle(18), lat.ReflectorCell())
	{ // Fuel cells alternate with clad cells, nothing else is fissionable
		for c := 0; c < 16; c++ {
			assert.Equal(t, c%2 == 0, lat.IsFissionable(types.CellHandle(c)))
		}
		for c := 16; c < 19; c++ {
			assert.False(t, lat.IsFissionable(types.CellHandle(c)))
		}
	}
	{ // Volumes
		assert.True(t, near(math.Pi*0.4*0.4*10, lat.Volume(lat.FuelCell(0, 0))))
		assert.True(t, near(math.Pi*(0.475*0.475-0.4*0.4)*10, lat.Volume(lat.CladCell(1, 1))))
		box := 2.52 * 2.52
		assert.True(t, near((box-4*math.Pi*0.475*0.475)*10, lat.Volume(lat.ModeratorCell(0))))
		assert.True(t, near(box*2*1.26, lat.Volume(lat.ReflectorCell())))
	}
	{ // Starting state
		assert.Equal(t, 565., lat.Temperature(0))
		assert.Equal(t, 0.74, lat.Density(lat.ModeratorCell(1)))
		lat.SetTemperature(3, 600)
		lat.SetDensity(3, 0.7)
		assert.Equal(t, 600., lat.Temperature(3))
		assert.Equal(t, 0.7, lat.Density(3))
	}
}

func TestLatticeFindCell(t *testing.T) {
	lat, err := NewLattice(testConfig())
	assert.NoError(t, err)
	locate := func(x, y, z float64) types.CellHandle {
		c, found := lat.FindCell(types.Position{X: x, Y: y, Z: z})
		assert.True(t, found, "(%g,%g,%g) should be inside", x, y, z)
		return c
	}
	// Pin 0 sits at (-0.63, +0.63); walk outward through its regions
	assert.Equal(t, lat.FuelCell(0, 0), locate(-0.63, 0.63, 5))
	assert.Equal(t, lat.CladCell(0, 0), locate(-0.63+0.45, 0.63, 5))
	assert.Equal(t, lat.ModeratorCell(0), locate(0, 0, 5))
	// Axial bins are half open, an interior edge belongs to the level above
	assert.Equal(t, lat.FuelCell(0, 1), locate(-0.63, 0.63, 10))
	// Axially outside the fueled range but inside the box is reflector,
	// including the top edge itself
	assert.Equal(t, lat.ReflectorCell(), locate(-0.63, 0.63, 25))
	assert.Equal(t, lat.ReflectorCell(), locate(-0.63, 0.63, -1))
	assert.Equal(t, lat.ReflectorCell(), locate(-0.63, 0.63, 20))
	// The box is closed, the assembly corner resolves to moderator
	assert.Equal(t, lat.ModeratorCell(0), locate(1.26, 1.26, 5))
	{ // Outside the box there is no cell
		c, found := lat.FindCell(types.Position{X: 1.27, Y: 0, Z: 5})
		assert.False(t, found)
		assert.Equal(t, types.CellNotFound, c)
	}
}

func TestLatticeHeatSource(t *testing.T) {
	cfg := testConfig()
	cfg.ZEdges = []float64{0, 10, 20, 30}
	lat, err := NewLattice(cfg)
	assert.NoError(t, err)
	{ // Tallies must exist first
		_, err := lat.HeatSource(1000)
		assert.Error(t, err)
	}
	lat.CreateTallies()
	q, err := lat.HeatSource(1000)
	assert.NoError(t, err)
	{ // The densities integrate to the requested power
		var total float64
		for c, qc := range q {
			total += qc * lat.Volume(types.CellHandle(c))
		}
		assert.True(t, near(1000, total, 1.e-9))
	}
	{ // Only fuel cells generate
		assert.Equal(t, 0., q[lat.CladCell(0, 0)])
		assert.Equal(t, 0., q[lat.ModeratorCell(1)])
		assert.Equal(t, 0., q[lat.ReflectorCell()])
	}
	{ // Chopped cosine: the middle level leads, the ends match
		lo := q[lat.FuelCell(0, 0)]
		mid := q[lat.FuelCell(0, 1)]
		hi := q[lat.FuelCell(0, 2)]
		assert.True(t, mid > lo)
		assert.True(t, near(lo, hi, 1.e-12))
	}
	{ // Zero power asks for nothing
		q0, err := lat.HeatSource(0)
		assert.NoError(t, err)
		for _, qc := range q0 {
			assert.Equal(t, 0., qc)
		}
	}
	{ // Doppler feedback thins the tally where the fuel runs hot
		lat.SetTemperature(lat.FuelCell(0, 1), 565+500)
		assert.NoError(t, lat.SolveStep())
		q2, err := lat.HeatSource(1000)
		assert.NoError(t, err)
		hot := q2[lat.FuelCell(0, 1)]
		cold := q2[lat.FuelCell(1, 1)]
		assert.True(t, hot < cold)
		assert.True(t, near(0.9, hot/cold, 1.e-9))
	}
	{ // The feedback factor floors instead of going negative
		lat.SetTemperature(lat.FuelCell(0, 1), 565+1.e5)
		assert.NoError(t, lat.SolveStep())
		q3, err := lat.HeatSource(1000)
		assert.NoError(t, err)
		ratio := q3[lat.FuelCell(0, 1)] / q3[lat.FuelCell(1, 1)]
		assert.True(t, near(0.05, ratio, 1.e-9))
	}
}

/*
The lattice is the geometric dual of the surrogate heat driver: every
surrogate element centroid must land in the matching lattice cell. This
pins down the pairing the coupled run depends on.
*/
func TestLatticeSurrogatePairing(t *testing.T) {
	lat, err := NewLattice(testConfig())
	assert.NoError(t, err)
	hd, err := surrogate.NewHeatDriver(surrogate.Config{
		CladInnerRadius:  0.414,
		CladOuterRadius:  0.475,
		PelletRadius:     0.4,
		FuelRings:        3,
		CladRings:        2,
		PinsX:            2,
		PinsY:            2,
		PinPitch:         1.26,
		MassFlowrate:     0.32,
		InletTemperature: 523.15,
		Pressure:         15.5,
		ZEdges:           []float64{0, 10, 20},
		Tolerance:        1.e-6,
	})
	assert.NoError(t, err)

	gi := coupling.NewGeometryIndex(lat)
	cem, err := coupling.BuildCellElementMap(gi, hd.Centroids(), hd.Volumes(), lat.NCells())
	assert.NoError(t, err)
	assert.Equal(t, 0, cem.NumUnmapped)
	assert.Equal(t, 0, cem.NumDegenerate)

	for pin := 0; pin < hd.NPins; pin++ {
		for j := 0; j < hd.NAxial; j++ {
			for r := 0; r < hd.NRings; r++ {
				e := hd.SolidIndex(pin, j, r)
				want := lat.FuelCell(pin, j)
				if r >= hd.FuelRings {
					want = lat.CladCell(pin, j)
				}
				assert.Equal(t, want, cem.OwnerCell[e],
					"pin %d level %d ring %d", pin, j, r)
			}
		}
	}
	for ch := 0; ch < hd.NChannels; ch++ {
		for j := 0; j < hd.NAxial; j++ {
			assert.Equal(t, lat.ModeratorCell(j), cem.OwnerCell[hd.FluidIndex(ch, j)])
		}
	}
	{ // Mapped volumes recover the cell volumes where elements tile the cell
		assert.True(t, near(lat.Volume(lat.FuelCell(1, 1)),
			cem.MappedVolume[lat.FuelCell(1, 1)], 1.e-9))
		assert.True(t, near(lat.Volume(lat.ModeratorCell(0)),
			cem.MappedVolume[lat.ModeratorCell(0)], 1.e-9))
		// The clad cell includes the gap the elements leave out
		assert.True(t, cem.MappedVolume[lat.CladCell(0, 0)] <
			lat.Volume(lat.CladCell(0, 0)))
		assert.Equal(t, 0., cem.MappedVolume[lat.ReflectorCell()])
	}
}

func TestLatticeWriteStep(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.OutputBasename = filepath.Join(dir, "cells")
	{ // OutputNone writes nothing
		lat, err := NewLattice(cfg)
		assert.NoError(t, err)
		assert.NoError(t, lat.WriteStep(0, 1))
		assert.NoError(t, lat.WriteStep(0, -1))
		entries, _ := os.ReadDir(dir)
		assert.Equal(t, 0, len(entries))
	}
	{ // OutputFinal answers only the end of step call
		cfg.OutputIterations = types.OutputFinal
		lat, err := NewLattice(cfg)
		assert.NoError(t, err)
		lat.CreateTallies()
		assert.NoError(t, lat.WriteStep(0, 2))
		_, err = os.Stat(filepath.Join(dir, "cells.dat"))
		assert.True(t, os.IsNotExist(err))
		assert.NoError(t, lat.WriteStep(0, -1))
		data, err := os.ReadFile(filepath.Join(dir, "cells.dat"))
		assert.NoError(t, err)
		assert.Contains(t, string(data), "# cell fissionable V[cm3] T[K] rho[g/cm3] tally")
		assert.NoError(t, os.Remove(filepath.Join(dir, "cells.dat")))
	}
	{ // OutputAll answers only the per iteration calls, tagging the file
		cfg.OutputIterations = types.OutputAll
		lat, err := NewLattice(cfg)
		assert.NoError(t, err)
		assert.NoError(t, lat.WriteStep(1, 2))
		_, err = os.Stat(filepath.Join(dir, "cells_t1_i2.dat"))
		assert.NoError(t, err)
		assert.NoError(t, lat.WriteStep(1, -1))
		_, err = os.Stat(filepath.Join(dir, "cells.dat"))
		assert.True(t, os.IsNotExist(err))
	}
}

func TestLatticeValidation(t *testing.T) {
	bad := func(mutate func(*Config)) {
		cfg := testConfig()
		mutate(&cfg)
		_, err := NewLattice(cfg)
		assert.Error(t, err)
	}
	bad(func(c *Config) { c.PinsX = 0 })
	bad(func(c *Config) { c.PelletRadius = 0 })
	bad(func(c *Config) { c.CladOuterRadius = c.PelletRadius })
	bad(func(c *Config) { c.PinPitch = 0.9 })
	bad(func(c *Config) { c.ZEdges = []float64{0} })
	bad(func(c *Config) { c.ZEdges = []float64{0, 5, 5} })
	bad(func(c *Config) { c.ReferenceTemperature = 0 })
	bad(func(c *Config) { c.DopplerCoefficient = -1 })
}

func near(a, b float64, tolI ...float64) (l bool) {
	var (
		tol = 1.e-08
	)
	if len(tolI) != 0 {
		tol = tolI[0]
	}
	bound := math.Max(tol, tol*math.Abs(a))
	val := math.Abs(a - b)
	if val <= bound {
		l = true
	} else {
		fmt.Printf("Near: a=%v, b=%v, diff=%v, bound=%v\n", a, b, val, bound)
	}
	return
}

var _ drivers.Neutronics = (*Lattice)(nil)
