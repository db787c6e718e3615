package surrogate

import (
	"fmt"
	"math"
)

/*
ConductionModel solves radial conduction through one pin cross section. q
holds the power density per ring in W/cm3, fuel rings first then clad
rings, rFuel and rClad are the ring edge radii in cm, tCool the coolant
temperature at the clad surface in K. The solution lands in T, one value
per ring at the ring center radius, fuel rings first. T is caller
allocated with len(q) entries.
*/
type ConductionModel interface {
	Solve(q []float64, tCool float64, rFuel, rClad []float64, tol float64, T []float64) error
}

/*
ConstantProps is the default conduction model: an exact piecewise solution
of the steady heat equation with ring wise constant properties, swept until
the temperature dependent fuel conductivity settles under tol. Clad
conductivity, gap conductance and the film coefficient stay constant.
Defaults describe a UO2 and Zircaloy pin under forced convection; all in
cm, W, K units.
*/
type ConstantProps struct {
	KClad     float64                 // [W/(cm K)]
	HGap      float64                 // [W/(cm2 K)] pellet surface to clad inner
	HFilm     float64                 // [W/(cm2 K)] clad surface to coolant
	KFuel     func(T float64) float64 // [W/(cm K)]
	MaxSweeps int
}

func NewConstantProps() *ConstantProps {
	return &ConstantProps{
		KClad:     0.17,
		HGap:      0.57,
		HFilm:     3.0,
		KFuel:     FuelConductivity,
		MaxSweeps: 200,
	}
}

// FuelConductivity evaluates a UO2 conductivity fit in W/(cm K). The
// underlying correlation takes T in K and answers in W/(m K); the leading
// factor converts.
func FuelConductivity(T float64) float64 {
	t := T / 1000
	return 1 / (7.5408 + 17.692*t + 3.6142*t*t)
}

func (cp *ConstantProps) Solve(q []float64, tCool float64, rFuel, rClad []float64,
	tol float64, T []float64) (err error) {
	var (
		nFuel = len(rFuel) - 1
		nClad = len(rClad) - 1
	)
	if len(q) != nFuel+nClad || len(T) != nFuel+nClad {
		return fmt.Errorf("have %d sources and %d outputs for %d rings",
			len(q), len(T), nFuel+nClad)
	}
	kr := make([]float64, nFuel+nClad)
	for r := range T {
		T[r] = tCool
	}
	for sweep := 0; sweep < cp.MaxSweeps; sweep++ {
		for r := 0; r < nFuel; r++ {
			kr[r] = cp.KFuel(T[r])
		}
		for r := nFuel; r < nFuel+nClad; r++ {
			kr[r] = cp.KClad
		}
		if delta := cp.profile(q, kr, tCool, rFuel, rClad, T); delta < tol {
			return nil
		}
	}
	return fmt.Errorf("conduction not settled after %d sweeps", cp.MaxSweeps)
}

/*
profile evaluates the exact temperature profile for the given ring
conductivities, writes the ring center temperatures into T and reports the
largest change against the previous content. The chain runs from the
coolant inward: film, clad rings, gap, fuel rings.
*/
func (cp *ConstantProps) profile(q, kr []float64, tCool float64,
	rFuel, rClad []float64, T []float64) (delta float64) {
	var (
		nFuel = len(rFuel) - 1
		nClad = len(rClad) - 1
	)
	// Cumulative linear power inside each ring's inner radius, W/cm
	cum := make([]float64, nFuel+nClad)
	var lp float64
	for r := 0; r < nFuel; r++ {
		cum[r] = lp
		lp += q[r] * math.Pi * (rFuel[r+1]*rFuel[r+1] - rFuel[r]*rFuel[r])
	}
	fuelPower := lp
	for r := 0; r < nClad; r++ {
		cum[nFuel+r] = lp
		lp += q[nFuel+r] * math.Pi * (rClad[r+1]*rClad[r+1] - rClad[r]*rClad[r])
	}

	set := func(ring int, val float64) {
		if d := math.Abs(val - T[ring]); d > delta {
			delta = d
		}
		T[ring] = val
	}

	rCo := rClad[nClad]
	Tb := tCool + lp/(2*math.Pi*rCo*cp.HFilm)
	for r := nClad - 1; r >= 0; r-- {
		ring := nFuel + r
		a, b := rClad[r], rClad[r+1]
		mid := (a + b) / 2
		set(ring, Tb+segmentRise(cum[ring], q[ring], kr[ring], a, mid, b))
		Tb += segmentRise(cum[ring], q[ring], kr[ring], a, a, b)
	}
	Tb += fuelPower / (2 * math.Pi * rFuel[nFuel] * cp.HGap)
	for r := nFuel - 1; r >= 0; r-- {
		a, b := rFuel[r], rFuel[r+1]
		mid := (a + b) / 2
		set(r, Tb+segmentRise(cum[r], q[r], kr[r], a, mid, b))
		Tb += segmentRise(cum[r], q[r], kr[r], a, a, b)
	}
	return
}

/*
segmentRise integrates Q(s)/(2 pi k s) from x to b inside a ring of inner
radius a carrying power density q, where Q(s) = Qa + pi q (s^2 - a^2) is
the linear power inside radius s. The innermost ring has a = 0 and Qa = 0,
which zeroes the logarithmic coefficient, so the centerline singularity
never enters as long as x > 0.
*/
func segmentRise(Qa, q, k, a, x, b float64) float64 {
	var logTerm float64
	if c := Qa - math.Pi*q*a*a; c != 0 {
		logTerm = c * math.Log(b/x)
	}
	return (logTerm + math.Pi*q*(b*b-x*x)/2) / (2 * math.Pi * k)
}
