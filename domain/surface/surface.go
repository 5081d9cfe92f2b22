// Package surface describes tabulated density surfaces supplied alongside a
// chain, used as empirical (non-parametric) priors.
package surface

import (
	"fmt"

	"numcmc/domain/core"
)

// Surface is a density tabulated on a regular or irregular grid. Axes holds
// the grid coordinates of each dimension; Values is row-major with the last
// axis varying fastest.
type Surface struct {
	Name   string
	Axes   [][]float64
	Values []float64
}

// Dims returns the number of grid dimensions
func (s Surface) Dims() int {
	return len(s.Axes)
}

// Shape returns the number of grid points along each axis
func (s Surface) Shape() []int {
	shape := make([]int, len(s.Axes))
	for i, ax := range s.Axes {
		shape[i] = len(ax)
	}
	return shape
}

// Validate checks dimensionality, axis monotonicity and value count
func (s Surface) Validate() error {
	if d := s.Dims(); d < 1 || d > 2 {
		return fmt.Errorf("%w: %s has %d dimensions, only 1 or 2 are supported", core.ErrInvalidSurface, s.Name, d)
	}
	want := 1
	for i, ax := range s.Axes {
		if len(ax) < 2 {
			return fmt.Errorf("%w: %s axis %d needs at least 2 points", core.ErrInvalidSurface, s.Name, i)
		}
		for j := 1; j < len(ax); j++ {
			if !(ax[j] > ax[j-1]) {
				return fmt.Errorf("%w: %s axis %d is not strictly increasing at index %d", core.ErrInvalidSurface, s.Name, i, j)
			}
		}
		want *= len(ax)
	}
	if len(s.Values) != want {
		return fmt.Errorf("%w: %s has %d values, grid needs %d", core.ErrInvalidSurface, s.Name, len(s.Values), want)
	}
	return nil
}

// FromBinnedAxes builds a surface from histogram-style axes given as
// (nbins, min, max) per dimension, including one underflow and one overflow
// bin on each side. Grid points sit at bin centres, so each axis spans
// [min - step/2, max + step/2] with nbins+2 points.
func FromBinnedAxes(name string, nbins []int, mins, maxs []float64, data []float64) (Surface, error) {
	if len(nbins) != len(mins) || len(nbins) != len(maxs) {
		return Surface{}, fmt.Errorf("%w: %s axis descriptions have mismatched lengths", core.ErrInvalidSurface, name)
	}
	axes := make([][]float64, len(nbins))
	for i, n := range nbins {
		if n < 1 || !(maxs[i] > mins[i]) {
			return Surface{}, fmt.Errorf("%w: %s axis %d has bad binning", core.ErrInvalidSurface, name, i)
		}
		step := (maxs[i] - mins[i]) / float64(n)
		ax := make([]float64, n+2)
		for j := range ax {
			ax[j] = mins[i] - step/2 + float64(j)*step
		}
		axes[i] = ax
	}
	s := Surface{Name: name, Axes: axes, Values: data}
	return s, s.Validate()
}
