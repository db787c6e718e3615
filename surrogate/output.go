package surrogate

import (
	"bufio"
	"fmt"
	"os"

	"github.com/neutrolab/gonics/types"
)

/*
WriteStep emits the thermal state as a plain text table. Whether anything
is written depends on the configured output mode: OutputFinal answers only
the end of step call (iteration -1), OutputAll answers only the per
iteration calls, OutputNone never writes. Per iteration files carry a
_t<timestep>_i<iteration> suffix so successive iterations never clobber
each other.
*/
func (hd *HeatDriver) WriteStep(timestep, iteration int) error {
	if (iteration < 0 && hd.OutputIterations != types.OutputFinal) ||
		(iteration >= 0 && hd.OutputIterations != types.OutputAll) {
		return nil
	}
	filename := hd.OutputBasename
	if iteration >= 0 && timestep >= 0 {
		filename += fmt.Sprintf("_t%d_i%d", timestep, iteration)
	}
	filename += ".dat"
	fmt.Printf("Writing heat fluids table: %s\n", filename)
	return hd.dump(filename)
}

func (hd *HeatDriver) dump(filename string) (err error) {
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
	fmt.Fprintf(w, "# pin axial ring r[cm] T[K]\n")
	for pin := 0; pin < hd.NPins; pin++ {
		for j := 0; j < hd.NAxial; j++ {
			for r := 0; r < hd.NRings; r++ {
				fmt.Fprintf(w, "%4d %4d %4d %9.4f %10.3f\n",
					pin, j, r, hd.ringMid[r], hd.temperature[hd.SolidIndex(pin, j, r)])
			}
		}
	}
	fmt.Fprintf(w, "# channel axial T[K] rho[g/cm3]\n")
	for ch := 0; ch < hd.NChannels; ch++ {
		for j := 0; j < hd.NAxial; j++ {
			e := hd.FluidIndex(ch, j)
			fmt.Fprintf(w, "%4d %4d %10.3f %8.5f\n",
				ch, j, hd.temperature[e], hd.density[e])
		}
	}
	return w.Flush()
}
