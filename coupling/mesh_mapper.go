package coupling

import (
	"fmt"

	"github.com/james-bowman/sparse"

	"github.com/neutrolab/gonics/types"
)

/*
CellElementMap records which neutronics cell claims each element of a heat
and fluids mesh, plus the volume bookkeeping both transfer directions rely
on. The map is immutable once built and valid only for the geometry
configuration it was built against; a geometry change means building a fresh
map, there is no incremental update.

Claim[e] is the fraction of element e's volume attributed to its owning
cell. Centroid location claims whole elements, so a mapped element carries
1.0 and an unmapped or degenerate one 0; the claims on one element total 1
or the element is unmapped. DistFrac[e] is the complementary sense, element
e's share of its owner's mapped volume, so the DistFracs within one cell
total 1.
*/
type CellElementMap struct {
	NumCells, NumElems int

	OwnerCell    []types.CellHandle // Per element, CellNotFound on a miss
	Claim        []float64          // Per element, volume fraction claimed by the owner
	DistFrac     []float64          // Per element, share of the owner's mapped volume
	ElemVolume   []float64          // Per element
	ElemsOfCell  [][]int32          // Per cell, ascending element indices
	MappedVolume []float64          // Per cell, total claimed element volume

	NumUnmapped   int // Centroid missed the geometry
	NumDegenerate int // Element volume was not positive

	incidence *sparse.CSR // cells x elements, entries Claim*ElemVolume
}

/*
BuildCellElementMap locates every element centroid in the cell geometry and
assembles the map. Misses and non positive volumes are absorbed, the element
is left unmapped and counted. Mismatched inputs and locator handles outside
[0, nCells) are configuration faults and error out.
*/
func BuildCellElementMap(gi *GeometryIndex, centroids []types.Position,
	volumes []float64, nCells int) (cem *CellElementMap, err error) {
	var (
		nElems = len(centroids)
	)
	if len(volumes) != nElems {
		err = fmt.Errorf("have %d centroids but %d volumes", nElems, len(volumes))
		return
	}
	if nCells <= 0 {
		err = fmt.Errorf("cell count must be positive, have %d", nCells)
		return
	}
	cem = &CellElementMap{
		NumCells:     nCells,
		NumElems:     nElems,
		OwnerCell:    gi.LocateAll(centroids),
		Claim:        make([]float64, nElems),
		DistFrac:     make([]float64, nElems),
		ElemVolume:   make([]float64, nElems),
		ElemsOfCell:  make([][]int32, nCells),
		MappedVolume: make([]float64, nCells),
	}
	copy(cem.ElemVolume, volumes)
	dok := sparse.NewDOK(nCells, nElems)
	for e, c := range cem.OwnerCell {
		if !c.Found() {
			cem.NumUnmapped++
			continue
		}
		if int(c) >= nCells {
			err = fmt.Errorf("locator returned cell %d outside [0,%d)", c, nCells)
			return
		}
		if volumes[e] <= 0 {
			cem.OwnerCell[e] = types.CellNotFound
			cem.NumDegenerate++
			continue
		}
		cem.Claim[e] = 1 // Centroid location claims the whole element
		cem.ElemsOfCell[c] = append(cem.ElemsOfCell[c], int32(e))
		cem.MappedVolume[c] += volumes[e]
		dok.Set(int(c), e, cem.Claim[e]*volumes[e])
	}
	for e, c := range cem.OwnerCell {
		if c.Found() && cem.MappedVolume[c] > 0 {
			cem.DistFrac[e] = cem.Claim[e] * volumes[e] / cem.MappedVolume[c]
		}
	}
	cem.incidence = dok.ToCSR()
	if n := cem.NumUnmapped + cem.NumDegenerate; n > 0 {
		fmt.Printf("Mapped %d of %d elements (%d centroid misses, %d degenerate volumes)\n",
			nElems-n, nElems, cem.NumUnmapped, cem.NumDegenerate)
	}
	return
}

// Mapped reports whether element e landed in a cell.
func (cem *CellElementMap) Mapped(e int) bool {
	return cem.OwnerCell[e].Found()
}

// NumMappedCells counts cells claiming at least one element.
func (cem *CellElementMap) NumMappedCells() (n int) {
	for c := 0; c < cem.NumCells; c++ {
		if cem.MappedVolume[c] > 0 {
			n++
		}
	}
	return
}

// Incidence exposes the cells x elements volume matrix the transfer path
// multiplies against. Callers must treat it as read only.
func (cem *CellElementMap) Incidence() *sparse.CSR {
	return cem.incidence
}
