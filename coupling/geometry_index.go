package coupling

import (
	"runtime"
	"sync"

	"github.com/neutrolab/gonics/drivers"
	"github.com/neutrolab/gonics/types"
	"github.com/neutrolab/gonics/utils"
)

/*
GeometryIndex answers point location queries against the neutronics cell
geometry. It owns no geometry of its own; the locator collaborator does, and
the collaborator's answers must be deterministic for a fixed configuration.
The index contributes the batch form, sharded over goroutines.
*/
type GeometryIndex struct {
	locator        drivers.CellLocator
	ParallelDegree int
}

func NewGeometryIndex(locator drivers.CellLocator) (gi *GeometryIndex) {
	gi = &GeometryIndex{
		locator:        locator,
		ParallelDegree: runtime.NumCPU(),
	}
	return
}

// Locate resolves a single point. A miss returns CellNotFound and false,
// never a substitute cell.
func (gi *GeometryIndex) Locate(p types.Position) (c types.CellHandle, found bool) {
	if c, found = gi.locator.FindCell(p); !found {
		c = types.CellNotFound
	}
	return
}

// LocateAll resolves a batch of points preserving input order. The input is
// split into buckets, one goroutine per bucket. Misses appear as
// CellNotFound entries in the result.
func (gi *GeometryIndex) LocateAll(points []types.Position) (cells []types.CellHandle) {
	var (
		NP = gi.ParallelDegree
		wg = sync.WaitGroup{}
	)
	cells = make([]types.CellHandle, len(points))
	if len(points) == 0 {
		return
	}
	if NP > len(points) {
		NP = len(points)
	}
	pm := utils.NewPartitionMap(NP, len(points))
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			kMin, kMax := pm.GetBucketRange(np)
			for k := kMin; k < kMax; k++ {
				cells[k], _ = gi.Locate(points[k])
			}
			wg.Done()
		}(np)
	}
	wg.Wait()
	return
}
