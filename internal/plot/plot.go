// Package plot accumulates weighted 1D and 2D histograms of chain variables,
// normalizes them into probability densities and derives HPD credible
// regions from the binned density.
package plot

import (
	"fmt"
	"strings"
	"sync"

	"numcmc/domain/chain"
	"numcmc/domain/core"
	"numcmc/domain/prior"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Partition indices when a plot is split by mass ordering
const (
	normalPart   = 0
	invertedPart = 1
)

// Plot is a density accumulator over one or two variables. Fill and
// Finalize are called by a single goroutine at a time; once finalized the
// plot may be read and its intervals recomputed concurrently.
type Plot struct {
	id        core.PlotID
	variables []string
	axes      []Axis
	ordering  string

	counts  [][]float64
	areas   []float64
	dropped int64

	finalized bool
	finalErr  error
	total     float64
	density   [][]float64

	mu        sync.RWMutex // guards intervals
	intervals *Intervals
}

// Option configures a Plot at construction
type Option func(*Plot)

// WithMassOrdering splits the histogram on the sign of the named variable.
// Both partitions are normalized jointly.
func WithMassOrdering(variable string) Option {
	return func(p *Plot) {
		p.ordering = variable
	}
}

// WithID sets the plot identifier instead of generating one
func WithID(id core.PlotID) Option {
	return func(p *Plot) {
		p.id = id
	}
}

// New creates an empty accumulator with one axis per variable
func New(variables []string, axes []Axis, opts ...Option) (*Plot, error) {
	if n := len(variables); n < 1 || n > 2 {
		return nil, fmt.Errorf("%w: got %d variables", core.ErrDimensionality, n)
	}
	if len(axes) != len(variables) {
		return nil, fmt.Errorf("%w: %d variables but %d axes", core.ErrDimensionality, len(variables), len(axes))
	}
	for i, a := range axes {
		if len(a.edges) < 2 {
			return nil, fmt.Errorf("%w: axis %d of %s is unset", core.ErrInvalidAxis, i, variables[i])
		}
	}

	p := &Plot{
		id:        core.NewPlotID(),
		variables: append([]string(nil), variables...),
		axes:      append([]Axis(nil), axes...),
	}
	for _, opt := range opts {
		opt(p)
	}

	nbins := 1
	for _, a := range p.axes {
		nbins *= a.Bins()
	}
	parts := 1
	if p.ordering != "" {
		parts = 2
	}
	p.counts = make([][]float64, parts)
	for i := range p.counts {
		p.counts[i] = make([]float64, nbins)
	}

	p.areas = make([]float64, nbins)
	if len(p.axes) == 1 {
		for i := range p.areas {
			p.areas[i] = p.axes[0].Width(i)
		}
	} else {
		ny := p.axes[1].Bins()
		for ix := 0; ix < p.axes[0].Bins(); ix++ {
			for iy := 0; iy < ny; iy++ {
				p.areas[ix*ny+iy] = p.axes[0].Width(ix) * p.axes[1].Width(iy)
			}
		}
	}
	return p, nil
}

// ID returns the plot identifier
func (p *Plot) ID() core.PlotID { return p.id }

// Variables returns the plotted variable names in axis order
func (p *Plot) Variables() []string { return append([]string(nil), p.variables...) }

// Name is a display label built from the variable names
func (p *Plot) Name() string { return strings.Join(p.variables, " vs ") }

// Dims returns 1 or 2
func (p *Plot) Dims() int { return len(p.axes) }

// Axes returns the plot binning
func (p *Plot) Axes() []Axis { return append([]Axis(nil), p.axes...) }

// MassOrdering returns the splitting variable, if the plot is split
func (p *Plot) MassOrdering() (string, bool) { return p.ordering, p.ordering != "" }

// Finalized reports whether the density has been normalized
func (p *Plot) Finalized() bool { return p.finalized }

// Dropped returns the number of samples that fell outside the axes
func (p *Plot) Dropped() int64 { return p.dropped }

// Fill adds one batch of samples. A nil weights slice weighs every sample 1.
// On error nothing is added.
func (p *Plot) Fill(batch chain.Batch, weights []float64) error {
	if p.finalized {
		return fmt.Errorf("%w: plot %s", core.ErrFinalized, p.Name())
	}

	cols := make([][]float64, len(p.variables))
	for i, v := range p.variables {
		col, ok := batch[v]
		if !ok {
			return fmt.Errorf("%w: batch has no column %s for plot %s", core.ErrUnknownVariable, v, p.Name())
		}
		cols[i] = col
	}
	n := len(cols[0])
	for i, col := range cols {
		if len(col) != n {
			return fmt.Errorf("%w: column %s has %d entries, expected %d", core.ErrBatchShape, p.variables[i], len(col), n)
		}
	}

	var ord []float64
	if p.ordering != "" {
		col, ok := batch[p.ordering]
		if !ok {
			return fmt.Errorf("%w: batch has no mass ordering column %s", core.ErrUnknownVariable, p.ordering)
		}
		if len(col) != n {
			return fmt.Errorf("%w: mass ordering column has %d entries, expected %d", core.ErrBatchShape, len(col), n)
		}
		ord = col
	}

	if weights != nil {
		if len(weights) != n {
			return fmt.Errorf("%w: %d weights for %d samples", core.ErrBatchShape, len(weights), n)
		}
		for i, w := range weights {
			if !finite(w) {
				return fmt.Errorf("%w: sample %d of plot %s has weight %g", core.ErrNonFiniteWeight, i, p.Name(), w)
			}
		}
	}

	for i := 0; i < n; i++ {
		bin, ok := p.bin(cols, i)
		if !ok {
			p.dropped++
			continue
		}
		part := normalPart
		if ord != nil && prior.OrderingOf(ord[i]) == prior.InvertedOrdering {
			part = invertedPart
		}
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		p.counts[part][bin] += w
	}
	return nil
}

func (p *Plot) bin(cols [][]float64, i int) (int, bool) {
	ix, ok := p.axes[0].Index(cols[0][i])
	if !ok {
		return 0, false
	}
	if len(cols) == 1 {
		return ix, true
	}
	iy, ok := p.axes[1].Index(cols[1][i])
	if !ok {
		return 0, false
	}
	return ix*p.axes[1].Bins() + iy, true
}

// Finalize normalizes the accumulated weights into a density so that the
// sum of density times area over every bin of every partition is 1. It is
// idempotent; a plot with no weight fails with ErrEmptyHistogram every time.
func (p *Plot) Finalize() error {
	if p.finalized {
		return p.finalErr
	}
	p.finalized = true

	for _, c := range p.counts {
		p.total += floats.Sum(c)
	}
	if p.total == 0 || !finite(p.total) {
		p.finalErr = fmt.Errorf("%w: plot %s (total weight %g)", core.ErrEmptyHistogram, p.Name(), p.total)
		return p.finalErr
	}

	p.density = make([][]float64, len(p.counts))
	for part, c := range p.counts {
		d := make([]float64, len(c))
		for b, v := range c {
			d[b] = v / (p.total * p.areas[b])
		}
		p.density[part] = d
	}
	return nil
}

// Total returns the summed weight of all retained samples
func (p *Plot) Total() float64 {
	if p.finalized {
		return p.total
	}
	t := 0.0
	for _, c := range p.counts {
		t += floats.Sum(c)
	}
	return t
}

// Density returns the normalized density summed over partitions, flat and
// row-major (second axis fastest). It is nil before a successful Finalize.
func (p *Plot) Density() []float64 {
	if p.density == nil {
		return nil
	}
	out := make([]float64, len(p.areas))
	for _, d := range p.density {
		floats.Add(out, d)
	}
	return out
}

// PartitionDensity returns the density of one mass-ordering partition.
// BothOrderings is the same as Density. Unsplit plots have no partitions.
func (p *Plot) PartitionDensity(o prior.Ordering) ([]float64, bool) {
	if p.density == nil {
		return nil, false
	}
	switch o {
	case prior.BothOrderings:
		return p.Density(), true
	case prior.NormalOrdering, prior.InvertedOrdering:
		if p.ordering == "" {
			return nil, false
		}
		return append([]float64(nil), p.density[partIndex(o)]...), true
	}
	return nil, false
}

// Mass returns the fraction of the total weight in a partition
func (p *Plot) Mass(o prior.Ordering) float64 {
	total := p.Total()
	if total == 0 {
		return 0
	}
	if o == prior.BothOrderings {
		return 1
	}
	if p.ordering == "" {
		return 0
	}
	return floats.Sum(p.counts[partIndex(o)]) / total
}

// Edges returns a copy of every axis' bin edges
func (p *Plot) Edges() [][]float64 {
	out := make([][]float64, len(p.axes))
	for i, a := range p.axes {
		out[i] = a.Edges()
	}
	return out
}

// Areas returns the per-bin hypervolume, flat and row-major
func (p *Plot) Areas() []float64 {
	return append([]float64(nil), p.areas...)
}

// Mode returns the bin centre of the highest combined density
func (p *Plot) Mode() ([]float64, error) {
	d := p.Density()
	if d == nil {
		return nil, p.notReady()
	}
	return p.centre(floats.MaxIdx(d)), nil
}

// Mean returns the density-weighted mean of bin centres along each axis
func (p *Plot) Mean() ([]float64, error) {
	d := p.Density()
	if d == nil {
		return nil, p.notReady()
	}
	mass := make([]float64, len(d))
	floats.MulTo(mass, d, p.areas)

	out := make([]float64, len(p.axes))
	coords := make([]float64, len(d))
	for axis := range p.axes {
		for b := range d {
			coords[b] = p.centre(b)[axis]
		}
		out[axis] = stat.Mean(coords, mass)
	}
	return out, nil
}

func (p *Plot) centre(bin int) []float64 {
	if len(p.axes) == 1 {
		return []float64{p.axes[0].Centre(bin)}
	}
	ny := p.axes[1].Bins()
	return []float64{p.axes[0].Centre(bin / ny), p.axes[1].Centre(bin % ny)}
}

func (p *Plot) notReady() error {
	if p.finalErr != nil {
		return p.finalErr
	}
	return fmt.Errorf("%w: plot %s is not finalized", core.ErrEmptyHistogram, p.Name())
}

func partIndex(o prior.Ordering) int {
	if o == prior.InvertedOrdering {
		return invertedPart
	}
	return normalPart
}

func (p *Plot) String() string {
	return fmt.Sprintf("Plot(id=%s, variables=%v, bins=%d, finalized=%t)", p.id, p.variables, len(p.areas), p.finalized)
}
