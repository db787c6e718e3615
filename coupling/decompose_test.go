package coupling

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neutrolab/gonics/types"
)

func buildSlabMap(t *testing.T, nCells, elemsPerCell int, volumes []float64) *CellElementMap {
	var (
		dz        = 10.
		centroids []types.Position
	)
	for c := 0; c < nCells; c++ {
		for e := 0; e < elemsPerCell; e++ {
			z := float64(c)*dz + (float64(e)+0.5)*dz/float64(elemsPerCell)
			centroids = append(centroids, types.Position{Z: z})
		}
	}
	if volumes == nil {
		volumes = make([]float64, len(centroids))
		for e := range volumes {
			volumes[e] = 1
		}
	}
	gi := NewGeometryIndex(slabLocator{nCells: nCells, dz: dz})
	cem, err := BuildCellElementMap(gi, centroids, volumes, nCells)
	assert.NoError(t, err)
	return cem
}

func TestBuildElementGraph(t *testing.T) {
	// Three cells of two elements each chain into three disjoint pairs
	cem := buildSlabMap(t, 3, 2, []float64{1, 1, 2, 2, 1, 1})
	xadj, adjncy, vwgt := buildElementGraph(cem, true)
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5, 6}, xadj)
	assert.Equal(t, []int32{1, 0, 3, 2, 5, 4}, adjncy)
	// Weights scale against the largest volume
	assert.Equal(t, []int32{501, 501, 1001, 1001, 501, 501}, vwgt)

	_, _, vwgt = buildElementGraph(cem, false)
	assert.Nil(t, vwgt)
	{ // The CSR shape invariants hold on a larger map too
		cem = buildSlabMap(t, 4, 10, nil)
		xadj, adjncy, _ = buildElementGraph(cem, true)
		assert.Equal(t, cem.NumElems+1, len(xadj))
		assert.Equal(t, int32(0), xadj[0])
		for i := 1; i < len(xadj); i++ {
			assert.True(t, xadj[i] >= xadj[i-1])
		}
		assert.Equal(t, int(xadj[len(xadj)-1]), len(adjncy))
		// 9 chain edges per cell, both directions
		assert.Equal(t, 4*9*2, len(adjncy))
	}
}

func TestDecomposeElements(t *testing.T) {
	{ // Too few elements per rank falls back to a balanced block split
		cem := buildSlabMap(t, 3, 2, nil)
		e2r, err := DecomposeElements(cem, DefaultDecomposeConfig(4))
		assert.NoError(t, err)
		assert.Equal(t, []int{0, 0, 1, 1, 2, 3}, e2r)
	}
	{ // One rank owns everything
		cem := buildSlabMap(t, 3, 2, nil)
		e2r, err := DecomposeElements(cem, DefaultDecomposeConfig(1))
		assert.NoError(t, err)
		assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, e2r)
	}
	{ // Bad rank counts are configuration faults
		cem := buildSlabMap(t, 3, 2, nil)
		_, err := DecomposeElements(cem, DefaultDecomposeConfig(0))
		assert.Error(t, err)
		_, err = DecomposeElements(cem, DefaultDecomposeConfig(7))
		assert.Error(t, err)
	}
}

func TestDecomposeKway(t *testing.T) {
	// Four cells of ten elements each make four equal chains, so the graph
	// partitioner has a clean optimum. Assert structure, not the exact
	// assignment.
	for _, objective := range []string{"vol", "cut"} {
		cem := buildSlabMap(t, 4, 10, nil)
		cfg := DefaultDecomposeConfig(4)
		cfg.Objective = objective
		e2r, err := DecomposeElements(cem, cfg)
		assert.NoError(t, err)
		assert.Equal(t, 40, len(e2r))
		counts := make([]int, 4)
		for _, r := range e2r {
			assert.True(t, r >= 0 && r < 4)
			counts[r]++
		}
		for rank, n := range counts {
			assert.True(t, n > 0, "rank %d has no elements under objective %s",
				rank, objective)
		}
	}
}
