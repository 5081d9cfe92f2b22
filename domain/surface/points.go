package surface

import (
	"fmt"
	"sort"

	"numcmc/domain/core"
)

// Point is one tabulated grid value. Y is ignored for 1D surfaces.
type Point struct {
	X, Y  float64
	Value float64
}

// FromPoints assembles a surface from grid points in any order. The axes are
// the sorted distinct coordinates, and every point of their cartesian
// product must be given exactly once.
func FromPoints(name string, dims int, pts []Point) (Surface, error) {
	if dims != 1 && dims != 2 {
		return Surface{}, fmt.Errorf("%w: %s has %d dimensions, only 1 or 2 are supported", core.ErrInvalidSurface, name, dims)
	}
	xs := distinct(pts, func(p Point) float64 { return p.X })
	ys := []float64{0}
	if dims == 2 {
		ys = distinct(pts, func(p Point) float64 { return p.Y })
	}
	if len(pts) != len(xs)*len(ys) {
		return Surface{}, fmt.Errorf("%w: %s has %d points, a %dx%d grid needs %d",
			core.ErrInvalidSurface, name, len(pts), len(xs), len(ys), len(xs)*len(ys))
	}

	xi, yi := indexOf(xs), indexOf(ys)
	values := make([]float64, len(pts))
	filled := make([]bool, len(pts))
	for _, p := range pts {
		y := p.Y
		if dims == 1 {
			y = 0
		}
		k := xi[p.X]*len(ys) + yi[y]
		if filled[k] {
			return Surface{}, fmt.Errorf("%w: %s repeats point (%g, %g)", core.ErrInvalidSurface, name, p.X, p.Y)
		}
		filled[k] = true
		values[k] = p.Value
	}

	s := Surface{Name: name, Axes: [][]float64{xs}, Values: values}
	if dims == 2 {
		s.Axes = append(s.Axes, ys)
	}
	return s, s.Validate()
}

// Points flattens a surface back into grid points, row-major
func (s Surface) Points() []Point {
	ny := 1
	if s.Dims() == 2 {
		ny = len(s.Axes[1])
	}
	out := make([]Point, 0, len(s.Values))
	for i, x := range s.Axes[0] {
		for j := 0; j < ny; j++ {
			p := Point{X: x, Value: s.Values[i*ny+j]}
			if s.Dims() == 2 {
				p.Y = s.Axes[1][j]
			}
			out = append(out, p)
		}
	}
	return out
}

func distinct(pts []Point, coord func(Point) float64) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, p := range pts {
		c := coord(p)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Float64s(out)
	return out
}

func indexOf(xs []float64) map[float64]int {
	m := make(map[float64]int, len(xs))
	for i, x := range xs {
		m[x] = i
	}
	return m
}
