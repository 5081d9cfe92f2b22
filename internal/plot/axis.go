package plot

import (
	"fmt"
	"math"

	"numcmc/domain/core"

	"gonum.org/v1/gonum/floats"
)

// Axis is the binning of one plotted variable. Bins are half-open [lo, hi)
// except the last, which also includes its right edge.
type Axis struct {
	edges   []float64
	uniform bool
}

// UniformAxis splits [min, max] into bins of equal width
func UniformAxis(bins int, min, max float64) (Axis, error) {
	if bins < 1 {
		return Axis{}, fmt.Errorf("%w: need at least one bin, got %d", core.ErrInvalidAxis, bins)
	}
	if !finite(min) || !finite(max) || !(max > min) {
		return Axis{}, fmt.Errorf("%w: range [%g, %g] is empty or not finite", core.ErrInvalidAxis, min, max)
	}
	edges := floats.Span(make([]float64, bins+1), min, max)
	return Axis{edges: edges, uniform: true}, nil
}

// EdgeAxis uses explicit, strictly increasing bin edges
func EdgeAxis(edges []float64) (Axis, error) {
	if len(edges) < 2 {
		return Axis{}, fmt.Errorf("%w: need at least two edges, got %d", core.ErrInvalidAxis, len(edges))
	}
	for i, e := range edges {
		if !finite(e) {
			return Axis{}, fmt.Errorf("%w: edge %d is not finite", core.ErrInvalidAxis, i)
		}
		if i > 0 && !(e > edges[i-1]) {
			return Axis{}, fmt.Errorf("%w: edges not strictly increasing at index %d", core.ErrInvalidAxis, i)
		}
	}
	cp := make([]float64, len(edges))
	copy(cp, edges)
	return Axis{edges: cp}, nil
}

// Bins returns the number of bins
func (a Axis) Bins() int { return len(a.edges) - 1 }

// Min returns the left edge of the first bin
func (a Axis) Min() float64 { return a.edges[0] }

// Max returns the right edge of the last bin
func (a Axis) Max() float64 { return a.edges[len(a.edges)-1] }

// Edges returns a copy of the bin edges
func (a Axis) Edges() []float64 {
	cp := make([]float64, len(a.edges))
	copy(cp, a.edges)
	return cp
}

// Width returns the width of bin i
func (a Axis) Width(i int) float64 { return a.edges[i+1] - a.edges[i] }

// Centre returns the midpoint of bin i
func (a Axis) Centre(i int) float64 { return 0.5 * (a.edges[i] + a.edges[i+1]) }

// Index returns the bin holding v, or false when v is outside the axis or NaN
func (a Axis) Index(v float64) (int, bool) {
	lo, hi := a.Min(), a.Max()
	if math.IsNaN(v) || v < lo || v > hi {
		return 0, false
	}
	last := a.Bins() - 1
	if v == hi {
		return last, true
	}
	if !a.uniform {
		i := floats.Within(a.edges, v)
		return i, i >= 0
	}

	i := int((v - lo) / (hi - lo) * float64(a.Bins()))
	if i > last {
		i = last
	}
	// rounding in the division can land one bin off
	if v < a.edges[i] && i > 0 {
		i--
	} else if i < last && v >= a.edges[i+1] {
		i++
	}
	return i, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
