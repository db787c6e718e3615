package types

/*
Position locates a point in the shared global frame used by both solver
geometries. Units are centimeters throughout. Both solvers must agree on this
frame; no transform is applied anywhere in the coupling path.
*/
type Position struct {
	X, Y, Z float64
}

/*
CellHandle identifies a cell in the neutronics geometry. Handles are opaque,
equality comparable, and stable for the lifetime of a geometry configuration.
CellNotFound marks a failed point location and is never a valid cell.
*/
type CellHandle int32

const CellNotFound CellHandle = -1

func (c CellHandle) Found() bool {
	return c != CellNotFound
}
