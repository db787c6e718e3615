package assembly

import (
	"bufio"
	"fmt"
	"os"

	"github.com/neutrolab/gonics/types"
)

// WriteStep dumps the per cell state as a text table under the same
// iteration gating the heat fluids side uses: OutputFinal answers the end
// of step call, OutputAll the per iteration calls, OutputNone neither.
func (lat *Lattice) WriteStep(timestep, iteration int) error {
	if (iteration < 0 && lat.OutputIterations != types.OutputFinal) ||
		(iteration >= 0 && lat.OutputIterations != types.OutputAll) {
		return nil
	}
	filename := lat.OutputBasename
	if iteration >= 0 && timestep >= 0 {
		filename += fmt.Sprintf("_t%d_i%d", timestep, iteration)
	}
	filename += ".dat"
	fmt.Printf("Writing lattice cell table: %s\n", filename)
	return lat.dump(filename)
}

func (lat *Lattice) dump(filename string) (err error) {
	var f *os.File
	if f, err = os.Create(filename); err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# cell fissionable V[cm3] T[K] rho[g/cm3] tally\n")
	for c := 0; c < lat.NCells(); c++ {
		h := types.CellHandle(c)
		var s float64
		if lat.tally != nil {
			s = lat.tally[c]
		}
		fmt.Fprintf(w, "%5d %v %12.5f %10.3f %8.5f %10.6f\n",
			c, lat.IsFissionable(h), lat.vol[c], lat.cellT[c], lat.cellRho[c], s)
	}
	return w.Flush()
}
