/*
Package drivers defines the solver contracts the coupling layer is written
against. A physics code participates by satisfying one of these interfaces;
the coupling layer holds no knowledge of any particular solver beyond them.
*/
package drivers

import "github.com/neutrolab/gonics/types"

/*
Driver is the stepping contract shared by every participating solver. The
controller calls InitStep once per time step, SolveStep once per Picard
iteration, WriteStep when output is due, and FinalizeStep exactly once per
time step regardless of how the iteration ended. Any returned error is fatal
to the step and is propagated unchanged.
*/
type Driver interface {
	InitStep() error
	SolveStep() error
	WriteStep(timestep, iteration int) error
	FinalizeStep() error
}

/*
CellLocator answers point membership queries against the neutronics cell
geometry. FindCell must be deterministic for a fixed geometry configuration
and free of side effects; the second return is false when the point lies in
no cell. Points exactly on a cell boundary resolve to whichever cell the
implementation consistently chooses.
*/
type CellLocator interface {
	FindCell(p types.Position) (types.CellHandle, bool)
}

/*
Neutronics is the contract of the reactor physics side. HeatSource returns
the per-cell power density normalized so that the volume integral over all
cells equals the requested power. Cell state setters take effect on the next
SolveStep. Handles passed to the accessors must come from FindCell or be in
[0, NCells).
*/
type Neutronics interface {
	Driver
	CellLocator
	CreateTallies()
	NCells() int
	HeatSource(power float64) ([]float64, error)
	Volume(c types.CellHandle) float64
	Temperature(c types.CellHandle) float64
	Density(c types.CellHandle) float64
	SetTemperature(c types.CellHandle, T float64)
	SetDensity(c types.CellHandle, rho float64)
	IsFissionable(c types.CellHandle) bool
}

/*
HeatFluids is the contract of the thermal hydraulics side. The element
arrays are index aligned: Centroids()[i], Volumes()[i], Temperature()[i],
Density()[i] and FluidMask()[i] all describe element i, and SetHeatSource
expects a power density per element in the same order. FluidMask marks
elements occupied by coolant rather than solid material.
*/
type HeatFluids interface {
	Driver
	NElems() int
	Centroids() []types.Position
	Volumes() []float64
	Temperature() []float64
	Density() []float64
	FluidMask() []bool
	SetHeatSource(q []float64) error
}
