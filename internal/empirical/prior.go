// Package empirical turns tabulated density surfaces shipped with a chain
// into per-sample prior weights.
package empirical

import (
	"fmt"

	"numcmc/domain/chain"
	"numcmc/domain/core"
	"numcmc/domain/prior"
	"numcmc/domain/surface"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

// Prior is an interpolated empirical prior over one or two variables.
// Outside the tabulated grid it evaluates to 0.
type Prior struct {
	name prior.ConstraintName
	axes [][]float64

	line *interp.PiecewiseLinear
	grid *mat.Dense
}

// New builds the interpolator for a surface published under name
func New(name prior.ConstraintName, surf surface.Surface) (*Prior, error) {
	if err := surf.Validate(); err != nil {
		return nil, err
	}
	if surf.Dims() != len(name.Variables) {
		return nil, fmt.Errorf("%w: empirical prior %s names %d variables but its surface has %d dimensions",
			core.ErrDimensionality, name.Name, len(name.Variables), surf.Dims())
	}

	p := &Prior{name: name, axes: surf.Axes}
	switch surf.Dims() {
	case 1:
		var pl interp.PiecewiseLinear
		if err := pl.Fit(surf.Axes[0], surf.Values); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrInvalidSurface, name.Name, err)
		}
		p.line = &pl
	case 2:
		p.grid = mat.NewDense(len(surf.Axes[0]), len(surf.Axes[1]), append([]float64(nil), surf.Values...))
	}
	return p, nil
}

// Name returns the unique prior name
func (p *Prior) Name() string { return p.name.Name }

// Variables returns the variables the prior is evaluated on
func (p *Prior) Variables() []string { return append([]string(nil), p.name.Variables...) }

// Ordering returns the mass ordering the prior is restricted to
func (p *Prior) Ordering() prior.Ordering { return p.name.Ordering }

// Default reports whether the prior is applied unless switched off
func (p *Prior) Default() bool { return p.name.Default }

// At evaluates the prior at one point
func (p *Prior) At(coords ...float64) float64 {
	if p.line != nil {
		x := coords[0]
		xs := p.axes[0]
		if !(x >= xs[0] && x <= xs[len(xs)-1]) {
			return 0
		}
		return p.line.Predict(x)
	}
	return p.bilinear(coords[0], coords[1])
}

func (p *Prior) bilinear(x, y float64) float64 {
	i, tx, ok := locate(p.axes[0], x)
	if !ok {
		return 0
	}
	j, ty, ok := locate(p.axes[1], y)
	if !ok {
		return 0
	}
	v00, v01 := p.grid.At(i, j), p.grid.At(i, j+1)
	v10, v11 := p.grid.At(i+1, j), p.grid.At(i+1, j+1)
	return (1-tx)*(1-ty)*v00 + (1-tx)*ty*v01 + tx*(1-ty)*v10 + tx*ty*v11
}

// locate returns the grid cell [xs[i], xs[i+1]] holding v and the fractional
// position inside it
func locate(xs []float64, v float64) (int, float64, bool) {
	last := len(xs) - 1
	if !(v >= xs[0] && v <= xs[last]) {
		return 0, 0, false
	}
	i := last - 1
	if v < xs[last] {
		i = floats.Within(xs, v)
	}
	return i, (v - xs[i]) / (xs[i+1] - xs[i]), true
}

// Weights evaluates the prior for every sample of a batch. Samples on the
// other side of the prior's mass ordering get weight 1; orderingValues may be
// nil for priors that apply to both orderings.
func (p *Prior) Weights(batch chain.Batch, orderingValues []float64) ([]float64, error) {
	cols := make([][]float64, len(p.name.Variables))
	for i, v := range p.name.Variables {
		col, ok := batch[v]
		if !ok {
			return nil, fmt.Errorf("%w: empirical prior %s needs column %s", core.ErrUnknownVariable, p.name.Name, v)
		}
		cols[i] = col
	}
	n := len(cols[0])
	for i, col := range cols {
		if len(col) != n {
			return nil, fmt.Errorf("%w: column %s has %d entries, expected %d", core.ErrBatchShape, p.name.Variables[i], len(col), n)
		}
	}
	gated := p.name.Ordering != prior.BothOrderings
	if gated {
		if orderingValues == nil {
			return nil, fmt.Errorf("%w: empirical prior %s is restricted to %s but no ordering values were given",
				core.ErrUnknownVariable, p.name.Name, p.name.Ordering)
		}
		if len(orderingValues) != n {
			return nil, fmt.Errorf("%w: %d ordering values for %d samples", core.ErrBatchShape, len(orderingValues), n)
		}
	}

	out := make([]float64, n)
	coords := make([]float64, len(cols))
	for s := 0; s < n; s++ {
		if gated && !p.name.Ordering.Includes(orderingValues[s]) {
			out[s] = 1
			continue
		}
		for i, col := range cols {
			coords[i] = col[s]
		}
		out[s] = p.At(coords...)
	}
	return out, nil
}

func (p *Prior) String() string {
	return fmt.Sprintf("EmpiricalPrior(name=%s, vars=%v, dims=%d)", p.name.Name, p.name.Variables, len(p.axes))
}
