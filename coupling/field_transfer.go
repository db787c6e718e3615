package coupling

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"
)

// PowerField is a per element power density, W/cm3, aligned with the element
// arrays of the mesh the map was built against.
type PowerField []float64

/*
ToPowerField distributes a per cell tally onto the elements as a power
density whose volume integral over the mesh equals totalPower,
Σ_e q_e·V_e == totalPower. Every element receives its owner's tally value
scaled by one global factor

	norm = totalPower / Σ_c tally_c·MappedVolume_c

so a cell's power splits across its elements in proportion to claimed
element volume. Unmapped elements receive zero, and cells with no mapped
volume neither contribute to the normalization nor receive power; the
requested total is conserved on the mapped region alone.

dst is reused when it has the capacity. A non positive weighted tally total
against a nonzero totalPower cannot be conserved and errors.
*/
func ToPowerField(tally []float64, totalPower float64, cem *CellElementMap,
	dst PowerField) (q PowerField, err error) {
	if len(tally) != cem.NumCells {
		err = fmt.Errorf("tally has %d cells, map has %d", len(tally), cem.NumCells)
		return
	}
	if cap(dst) < cem.NumElems {
		dst = make(PowerField, cem.NumElems)
	}
	q = dst[:cem.NumElems]
	var (
		wtot = floats.Dot(tally, cem.MappedVolume)
		norm float64
	)
	switch {
	case totalPower == 0:
		norm = 0
	case wtot <= 0:
		err = fmt.Errorf("cannot conserve %g W, weighted tally total is %g", totalPower, wtot)
		return
	default:
		norm = totalPower / wtot
	}
	for e := range q {
		if c := cem.OwnerCell[e]; c.Found() {
			q[e] = tally[c] * norm * cem.Claim[e]
		} else {
			q[e] = 0
		}
	}
	return
}

/*
ToCellState volume weight averages element temperature and density up onto
the cells of the map, writing in place into cellT and cellRho. The
numerators are one sparse product each against the incidence matrix; the
denominator is the mapped volume the map already carries.

Temperature updates every cell with positive mapped volume. Density follows
the fluid mask rule, only cells whose mapped elements are all fluid take the
averaged density; a cell containing any solid keeps its prior density.
Cells with no mapped volume retain prior state in both fields, the average
never divides by zero and never writes a zero. Returns the number of cells
updated in each field.
*/
func ToCellState(elemT, elemRho []float64, fluid []bool, cem *CellElementMap,
	cellT, cellRho []float64) (nT, nRho int, err error) {
	if len(elemT) != cem.NumElems || len(elemRho) != cem.NumElems || len(fluid) != cem.NumElems {
		err = fmt.Errorf("element fields sized %d,%d,%d against %d elements",
			len(elemT), len(elemRho), len(fluid), cem.NumElems)
		return
	}
	if len(cellT) != cem.NumCells || len(cellRho) != cem.NumCells {
		err = fmt.Errorf("cell fields sized %d,%d against %d cells",
			len(cellT), len(cellRho), cem.NumCells)
		return
	}
	var (
		numT     = make([]float64, cem.NumCells)
		numRho   = make([]float64, cem.NumCells)
		allFluid = make([]bool, cem.NumCells)
	)
	// MulMatRawVec accumulates into its output, so both start zeroed
	sparse.MulMatRawVec(cem.incidence, elemT, numT)
	sparse.MulMatRawVec(cem.incidence, elemRho, numRho)
	for c := range allFluid {
		allFluid[c] = true
	}
	for e, c := range cem.OwnerCell {
		if c.Found() && !fluid[e] {
			allFluid[c] = false
		}
	}
	for c := 0; c < cem.NumCells; c++ {
		den := cem.MappedVolume[c]
		if den <= 0 {
			continue
		}
		cellT[c] = numT[c] / den
		nT++
		if allFluid[c] {
			cellRho[c] = numRho[c] / den
			nRho++
		}
	}
	return
}
