package coupling

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/neutrolab/gonics/drivers"
	"github.com/neutrolab/gonics/types"
)

// StepState tracks one coupled time step through its lifecycle.
type StepState uint8

const (
	StepInit StepState = iota
	StepExchange
	StepConverged
	StepMaxIter
)

func (ss StepState) String() string {
	switch ss {
	case StepInit:
		return "Init"
	case StepExchange:
		return "Exchange"
	case StepConverged:
		return "Converged"
	default:
		return "MaxIterExceeded"
	}
}

/*
StepResult reports how a time step ended. StepMaxIter is a flagged outcome,
not an error; the caller owns the decision to continue, relax and retry, or
abort. Fatal solver failures never produce a StepResult, they return as
errors.
*/
type StepResult struct {
	State      StepState
	Iterations int
	Norm       float64   // Temperature change norm of the last iteration
	History    []float64 // Norm per iteration
	Unmapped   int       // Elements outside the mapped region, all units
}

// Params collects the iteration controls of the coupled step loop.
type Params struct {
	TotalPower    float64 // [W] conserved by every power transfer
	MaxPicardIter int
	Epsilon       float64 // Convergence tolerance on the temperature norm
	Norm          types.NormType
	Alpha         float64 // Heat source relaxation factor, 1 disables
	AlphaT        float64 // Temperature relaxation factor
	AlphaRho      float64 // Density relaxation factor
	TemperatureIC types.ICSource
	DensityIC     types.ICSource
}

// Unit pairs a heat fluids driver with its share of the total power.
type Unit struct {
	Driver        drivers.HeatFluids
	PowerFraction float64
}

type thUnit struct {
	driver   drivers.HeatFluids
	cem      *CellElementMap
	fraction float64
	q, qPrev PowerField
}

/*
Controller drives the Picard iteration between one neutronics driver and one
or more heat fluids units over non matching meshes. Each unit carries its own
cell element map against the shared cell geometry; units are assumed to
cover disjoint regions of it. The controller is strictly sequential, a step
must complete before the next begins, and Remap must not overlap a running
step.
*/
type Controller struct {
	Params
	neutronics drivers.Neutronics
	gi         *GeometryIndex
	units      []*thUnit

	cellT, cellRho []float64 // Shared cell state, persists across iterations
	prevT          []float64 // Previous iterate, convergence norm baseline
	nextT, nextRho []float64 // Scratch for the unrelaxed update

	stepCount int
}

/*
NewController validates the configuration, builds the cell element map of
every unit against the current geometry, registers tallies and seeds the
shared cell state from the neutronics side. A single unit may leave its
PowerFraction zero to receive the whole power; otherwise the fractions must
total 1.
*/
func NewController(neutronics drivers.Neutronics, units []Unit, p Params) (ctl *Controller, err error) {
	if neutronics == nil {
		err = fmt.Errorf("no neutronics driver")
		return
	}
	if len(units) == 0 {
		err = fmt.Errorf("no heat fluids units")
		return
	}
	if len(units) == 1 && units[0].PowerFraction == 0 {
		units[0].PowerFraction = 1
	}
	var fsum float64
	for i, u := range units {
		if u.Driver == nil {
			err = fmt.Errorf("unit %d has no driver", i)
			return
		}
		if u.PowerFraction <= 0 || u.PowerFraction > 1 {
			err = fmt.Errorf("unit %d power fraction %g outside (0,1]", i, u.PowerFraction)
			return
		}
		fsum += u.PowerFraction
	}
	if math.Abs(fsum-1) > 1.e-12 {
		err = fmt.Errorf("power fractions total %g, need 1", fsum)
		return
	}
	if p.TotalPower < 0 {
		err = fmt.Errorf("total power %g is negative", p.TotalPower)
		return
	}
	if p.MaxPicardIter < 1 {
		err = fmt.Errorf("max Picard iterations %d, need at least 1", p.MaxPicardIter)
		return
	}
	if p.Epsilon <= 0 {
		err = fmt.Errorf("tolerance %g must be positive", p.Epsilon)
		return
	}
	for _, alpha := range []float64{p.Alpha, p.AlphaT, p.AlphaRho} {
		if alpha <= 0 || alpha > 1 {
			err = fmt.Errorf("relaxation factor %g outside (0,1]", alpha)
			return
		}
	}
	nCells := neutronics.NCells()
	if nCells <= 0 {
		err = fmt.Errorf("neutronics reports %d cells", nCells)
		return
	}
	ctl = &Controller{
		Params:     p,
		neutronics: neutronics,
		gi:         NewGeometryIndex(neutronics),
		cellT:      make([]float64, nCells),
		cellRho:    make([]float64, nCells),
		prevT:      make([]float64, nCells),
		nextT:      make([]float64, nCells),
		nextRho:    make([]float64, nCells),
	}
	for _, u := range units {
		tu := &thUnit{driver: u.Driver, fraction: u.PowerFraction}
		if tu.cem, err = BuildCellElementMap(ctl.gi, u.Driver.Centroids(),
			u.Driver.Volumes(), nCells); err != nil {
			return nil, fmt.Errorf("unit mapping: %w", err)
		}
		ctl.units = append(ctl.units, tu)
	}
	neutronics.CreateTallies()
	for c := 0; c < nCells; c++ {
		h := types.CellHandle(c)
		ctl.cellT[c] = neutronics.Temperature(h)
		ctl.cellRho[c] = neutronics.Density(h)
	}
	return
}

// UnitMap exposes the cell element map of unit i, read only.
func (ctl *Controller) UnitMap(i int) *CellElementMap {
	return ctl.units[i].cem
}

// CellState exposes the shared per cell temperature and density, read only.
func (ctl *Controller) CellState() (T, Rho []float64) {
	return ctl.cellT, ctl.cellRho
}

/*
Remap rebuilds every unit's cell element map against the current geometry,
from scratch. Call it between steps only; maps are read only while a step
runs.
*/
func (ctl *Controller) Remap() (err error) {
	for _, u := range ctl.units {
		if u.cem, err = BuildCellElementMap(ctl.gi, u.driver.Centroids(),
			u.driver.Volumes(), ctl.neutronics.NCells()); err != nil {
			return fmt.Errorf("remap: %w", err)
		}
	}
	return
}

/*
RunStep executes one coupled time step: InitStep on all drivers, Picard
iterations exchanging power down and temperature and density up until the
temperature norm drops under Epsilon or the iteration cap is hit, then
WriteStep and exactly one FinalizeStep on every driver regardless of which
way the iteration ended. A driver error aborts the step immediately and
propagates wrapped with the phase that failed; FinalizeStep is not reached
in that case since the partial physics state cannot be validated here.
*/
func (ctl *Controller) RunStep(timestep int) (res StepResult, err error) {
	var (
		neu = ctl.neutronics
	)
	res.State = StepInit
	for _, u := range ctl.units {
		res.Unmapped += u.cem.NumUnmapped + u.cem.NumDegenerate
	}
	if err = neu.InitStep(); err != nil {
		err = fmt.Errorf("neutronics init step: %w", err)
		return
	}
	for _, u := range ctl.units {
		if err = u.driver.InitStep(); err != nil {
			err = fmt.Errorf("heat fluids init step: %w", err)
			return
		}
	}
	if ctl.stepCount == 0 {
		if err = ctl.applyICs(); err != nil {
			return
		}
	}
	copy(ctl.prevT, ctl.cellT)
	for n := 1; n <= ctl.MaxPicardIter; n++ {
		res.State = StepExchange
		res.Iterations = n
		if err = ctl.exchange(); err != nil {
			return
		}
		norm := ctl.temperatureNorm()
		res.Norm = norm
		res.History = append(res.History, norm)
		ctl.printUpdate(timestep, n, norm)
		copy(ctl.prevT, ctl.cellT)
		if err = ctl.writeAll(timestep, n); err != nil {
			return
		}
		if norm < ctl.Epsilon {
			res.State = StepConverged
			break
		}
	}
	if res.State != StepConverged {
		res.State = StepMaxIter
		fmt.Printf("Step %d hit the iteration cap of %d, last norm %11.4e\n",
			timestep, ctl.MaxPicardIter, res.Norm)
	}
	if err = ctl.writeAll(timestep, -1); err != nil {
		return
	}
	for _, u := range ctl.units {
		if err = u.driver.FinalizeStep(); err != nil {
			err = fmt.Errorf("heat fluids finalize step: %w", err)
			return
		}
	}
	if err = neu.FinalizeStep(); err != nil {
		err = fmt.Errorf("neutronics finalize step: %w", err)
		return
	}
	ctl.stepCount++
	return
}

// Run executes nSteps coupled time steps and reports the outcomes. Solver
// failure aborts the run with the results accumulated so far.
func (ctl *Controller) Run(nSteps int) (results []StepResult, err error) {
	start := time.Now()
	ctl.PrintInitialization(nSteps)
	var iters int
	for ts := 0; ts < nSteps; ts++ {
		var res StepResult
		if res, err = ctl.RunStep(ts); err != nil {
			return
		}
		iters += res.Iterations
		results = append(results, res)
	}
	ctl.PrintFinal(time.Since(start), iters)
	return
}

/*
exchange runs one Picard iteration in the fixed order the physics requires:
heat source down to every unit, unit solve, state up from every unit onto
the shared cells, push into the neutronics geometry, neutronics solve.
*/
func (ctl *Controller) exchange() (err error) {
	var (
		neu = ctl.neutronics
	)
	for _, u := range ctl.units {
		var tally []float64
		power := ctl.TotalPower * u.fraction
		if tally, err = neu.HeatSource(power); err != nil {
			return fmt.Errorf("neutronics heat source: %w", err)
		}
		if u.q, err = ToPowerField(tally, power, u.cem, u.q); err != nil {
			return fmt.Errorf("power transfer: %w", err)
		}
		if u.qPrev == nil {
			u.qPrev = make(PowerField, len(u.q))
		} else {
			for e := range u.q {
				u.q[e] = ctl.Alpha*u.q[e] + (1-ctl.Alpha)*u.qPrev[e]
			}
		}
		copy(u.qPrev, u.q)
		if err = u.driver.SetHeatSource(u.q); err != nil {
			return fmt.Errorf("set heat source: %w", err)
		}
		if err = u.driver.SolveStep(); err != nil {
			return fmt.Errorf("heat fluids solve step: %w", err)
		}
	}
	copy(ctl.nextT, ctl.cellT)
	copy(ctl.nextRho, ctl.cellRho)
	for _, u := range ctl.units {
		d := u.driver
		if _, _, err = ToCellState(d.Temperature(), d.Density(), d.FluidMask(),
			u.cem, ctl.nextT, ctl.nextRho); err != nil {
			return fmt.Errorf("state transfer: %w", err)
		}
	}
	for c := range ctl.cellT {
		ctl.cellT[c] = ctl.AlphaT*ctl.nextT[c] + (1-ctl.AlphaT)*ctl.cellT[c]
		ctl.cellRho[c] = ctl.AlphaRho*ctl.nextRho[c] + (1-ctl.AlphaRho)*ctl.cellRho[c]
	}
	ctl.pushCellState()
	if err = neu.SolveStep(); err != nil {
		return fmt.Errorf("neutronics solve step: %w", err)
	}
	return
}

/*
applyICs seeds the shared state before the very first iteration. The state
starts as the neutronics side's own values; when an initial condition source
selects the heat fluids side, the corresponding field is overlaid with the
up mapped element field. Either way the result is pushed down so the first
neutronics solve sees it.
*/
func (ctl *Controller) applyICs() (err error) {
	copy(ctl.nextT, ctl.cellT)
	copy(ctl.nextRho, ctl.cellRho)
	for _, u := range ctl.units {
		d := u.driver
		if _, _, err = ToCellState(d.Temperature(), d.Density(), d.FluidMask(),
			u.cem, ctl.nextT, ctl.nextRho); err != nil {
			return fmt.Errorf("initial condition transfer: %w", err)
		}
	}
	if ctl.TemperatureIC == types.ICHeatFluids {
		copy(ctl.cellT, ctl.nextT)
	}
	if ctl.DensityIC == types.ICHeatFluids {
		copy(ctl.cellRho, ctl.nextRho)
	}
	ctl.pushCellState()
	return
}

// pushCellState writes the shared cell state into the neutronics geometry.
// Cells outside the mapped region push their unchanged values back.
func (ctl *Controller) pushCellState() {
	var (
		neu = ctl.neutronics
	)
	for c := range ctl.cellT {
		h := types.CellHandle(c)
		neu.SetTemperature(h, ctl.cellT[c])
		neu.SetDensity(h, ctl.cellRho[c])
	}
}

func (ctl *Controller) temperatureNorm() (norm float64) {
	var (
		diff = make([]float64, len(ctl.cellT))
	)
	floats.SubTo(diff, ctl.cellT, ctl.prevT)
	switch ctl.Norm {
	case types.NormL1:
		norm = floats.Norm(diff, 1)
	case types.NormL2:
		norm = floats.Norm(diff, 2)
	default:
		norm = floats.Norm(diff, math.Inf(1))
	}
	return
}

func (ctl *Controller) writeAll(timestep, iteration int) (err error) {
	for _, u := range ctl.units {
		if err = u.driver.WriteStep(timestep, iteration); err != nil {
			return fmt.Errorf("heat fluids write step: %w", err)
		}
	}
	if err = ctl.neutronics.WriteStep(timestep, iteration); err != nil {
		return fmt.Errorf("neutronics write step: %w", err)
	}
	return
}

func (ctl *Controller) PrintInitialization(nSteps int) {
	fmt.Printf("Coupled neutronics and heat fluids iteration\n")
	fmt.Printf("Using %d go routines for point location\n", ctl.gi.ParallelDegree)
	fmt.Printf("%d cells, %d units, total power %g W\n",
		ctl.neutronics.NCells(), len(ctl.units), ctl.TotalPower)
	fmt.Printf("Solving %d steps, up to %d Picard iterations each, dT < %8.5g (%s)\n",
		nSteps, ctl.MaxPicardIter, ctl.Epsilon, ctl.Norm)
	fmt.Printf("    step    iter       dT norm\n")
}

func (ctl *Controller) printUpdate(timestep, iter int, norm float64) {
	fmt.Printf("%8d%8d   %11.4e\n", timestep, iter, norm)
}

func (ctl *Controller) PrintFinal(elapsed time.Duration, iters int) {
	if iters == 0 {
		return
	}
	rate := float64(elapsed.Microseconds()) / float64(ctl.neutronics.NCells()*iters)
	fmt.Printf("\nRate of execution = %8.5f us/(cell*iteration) over %d iterations\n",
		rate, iters)
}
