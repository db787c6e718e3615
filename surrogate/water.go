package surrogate

import "math"

/*
CoolantProps supplies the fluid properties the subchannel march needs.
Enthalpy and Temperature must be inverses of each other; enthalpies are
relative, only differences matter. Units: K, J/kg, g/cm3.
*/
type CoolantProps interface {
	Enthalpy(T float64) float64
	Temperature(h float64) float64
	Density(T float64) float64
}

/*
Water carries linear property fits for subcooled light water around PWR
operating conditions. A constant specific heat makes the enthalpy relation
trivially invertible; the density fit is anchored at the reference
temperature and clamped to the liquid range, so a channel driven past
saturation degrades gracefully instead of going negative.
*/
type Water struct {
	Pressure float64 // [MPa], recorded with the fit anchors
	Cp       float64 // [J/(kg K)]
	TRef     float64 // [K]
	RhoRef   float64 // [g/cm3] at TRef
	DRhoDT   float64 // [g/(cm3 K)]
}

// NewWater anchors the fits at typical 15.5 MPa core inlet conditions.
func NewWater(pressure float64) *Water {
	return &Water{
		Pressure: pressure,
		Cp:       5400,
		TRef:     523.15,
		RhoRef:   0.80,
		DRhoDT:   1.4e-3,
	}
}

func (w *Water) Enthalpy(T float64) float64 { return w.Cp * (T - w.TRef) }

func (w *Water) Temperature(h float64) float64 { return w.TRef + h/w.Cp }

func (w *Water) Density(T float64) float64 {
	rho := w.RhoRef - w.DRhoDT*(T-w.TRef)
	return math.Min(1.0, math.Max(0.30, rho))
}
