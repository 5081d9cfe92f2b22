// Package oscillation defines the standard three-flavour neutrino
// oscillation parameters and the derived quantities usually plotted from
// them.
package oscillation

import (
	"fmt"
	"math"

	"numcmc/domain/chain"
)

// Physical parameters every oscillation chain must carry
const (
	DeltaCP   = "DeltaCP"
	Theta13   = "Theta13"
	Theta23   = "Theta23"
	Theta12   = "Theta12"
	Deltam232 = "Deltam2_32"
	Deltam221 = "Deltam2_21"
)

// Compulsory lists the physical parameters in chain order
var Compulsory = []string{DeltaCP, Theta13, Theta23, Theta12, Deltam232, Deltam221}

// MassOrderingVariable is split on sign: positive is normal ordering
const MassOrderingVariable = Deltam232

// Registrar accepts derived variable definitions
type Registrar interface {
	AddVariable(name string, inputs []string, fn chain.Func) error
}

// Derived describes one derived quantity
type Derived struct {
	Name   string
	Inputs []string
	Fn     chain.Func
}

// Catalogue returns the derived quantities in registration order
func Catalogue() []Derived {
	return []Derived{
		{"SinSqTheta23", []string{Theta23}, unary(Theta23, func(t float64) float64 {
			s := math.Sin(t)
			return s * s
		})},
		{"SinSq2Theta13", []string{Theta13}, unary(Theta13, func(t float64) float64 {
			s := math.Sin(2 * t)
			return s * s
		})},
		{"SinSq2Theta12", []string{Theta12}, unary(Theta12, func(t float64) float64 {
			s := math.Sin(2 * t)
			return s * s
		})},
		// |sin(theta13) exp(-i deltaCP)| has no deltaCP dependence left
		{"AbsUe3", []string{Theta13, DeltaCP}, unary(Theta13, func(t float64) float64 {
			return math.Abs(math.Sin(t))
		})},
		{"AbsSinDeltaCP", []string{DeltaCP}, unary(DeltaCP, func(d float64) float64 {
			return math.Abs(math.Sin(d))
		})},
		{"JarlskogInvariant", []string{Theta12, Theta13, Theta23, DeltaCP}, jarlskog},
		{"AbsDm2_32", []string{Deltam232}, unary(Deltam232, math.Abs)},
		{"DeltaCP_02pi", []string{DeltaCP}, unary(DeltaCP, wrapTwoPi)},
	}
}

// Register adds every derived quantity to r
func Register(r Registrar) error {
	for _, d := range Catalogue() {
		if err := r.AddVariable(d.Name, d.Inputs, d.Fn); err != nil {
			return fmt.Errorf("register %s: %w", d.Name, err)
		}
	}
	return nil
}

func unary(input string, f func(float64) float64) chain.Func {
	return func(in chain.Inputs) ([]float64, error) {
		col, ok := in[input]
		if !ok {
			return nil, fmt.Errorf("missing input %s", input)
		}
		out := make([]float64, len(col))
		for i, v := range col {
			out[i] = f(v)
		}
		return out, nil
	}
}

func jarlskog(in chain.Inputs) ([]float64, error) {
	cols := make([][]float64, 4)
	for i, name := range []string{Theta12, Theta13, Theta23, DeltaCP} {
		col, ok := in[name]
		if !ok {
			return nil, fmt.Errorf("missing input %s", name)
		}
		cols[i] = col
	}
	t12, t13, t23, dcp := cols[0], cols[1], cols[2], cols[3]
	out := make([]float64, len(t12))
	for i := range out {
		s12, c12 := math.Sincos(t12[i])
		s13, c13 := math.Sincos(t13[i])
		s23, c23 := math.Sincos(t23[i])
		out[i] = s12 * c12 * s23 * c23 * s13 * c13 * c13 * math.Sin(dcp[i])
	}
	return out, nil
}

func wrapTwoPi(d float64) float64 {
	w := math.Mod(d, 2*math.Pi)
	if w < 0 {
		w += 2 * math.Pi
	}
	return w
}
