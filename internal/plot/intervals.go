package plot

import (
	"fmt"
	"sort"

	"numcmc/domain/core"
	"numcmc/domain/prior"
)

// Intervals holds the HPD thresholds of a finalized plot. Its slices are
// never modified after MakeIntervals returns.
//
// Levels are sorted from the highest credibility down, and Thresholds[i] is
// the density of the last bin admitted to the Levels[i] region. LevelMap
// holds, for every partition and bin, the smallest requested level whose
// region contains the bin, or 1 when no region does.
type Intervals struct {
	Levels     []float64
	Thresholds []float64
	LevelMap   [][]float64
}

// cell is one bin of one partition
type cell struct {
	part, bin int
	density   float64
	mass      float64
}

// MakeIntervals computes HPD thresholds for the requested credible levels,
// finalizing the plot first if needed. Bins of both mass-ordering partitions
// compete for the same regions. Calling it again recomputes from the
// finalized density and gives the same result for the same levels.
func (p *Plot) MakeIntervals(levels []float64) (Intervals, error) {
	if err := p.Finalize(); err != nil {
		return Intervals{}, err
	}
	if len(levels) == 0 {
		return Intervals{}, fmt.Errorf("%w: no levels requested", core.ErrInvalidLevel)
	}
	sorted := make([]float64, len(levels))
	for i, l := range levels {
		if !(l > 0 && l < 1) {
			return Intervals{}, fmt.Errorf("%w: got %g", core.ErrInvalidLevel, l)
		}
		sorted[i] = l
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	cells := make([]cell, 0, len(p.density)*len(p.areas))
	total := 0.0
	for part, d := range p.density {
		for b, v := range d {
			m := v * p.areas[b]
			cells = append(cells, cell{part: part, bin: b, density: v, mass: m})
			total += m
		}
	}
	sort.SliceStable(cells, func(i, j int) bool { return cells[i].mass > cells[j].mass })

	iv := newIntervals(sorted, len(p.density), len(p.areas))
	if reached, next := iv.assign(cells, total); next >= 0 {
		return Intervals{}, fmt.Errorf("%w: plot %s reaches %g of its mass, level %g requested",
			core.ErrLevelUnreachable, p.Name(), reached, sorted[next])
	}

	p.mu.Lock()
	p.intervals = &iv
	p.mu.Unlock()
	return iv, nil
}

func newIntervals(sorted []float64, parts, bins int) Intervals {
	iv := Intervals{
		Levels:     sorted,
		Thresholds: make([]float64, len(sorted)),
		LevelMap:   make([][]float64, parts),
	}
	for part := range iv.LevelMap {
		lm := make([]float64, bins)
		for b := range lm {
			lm[b] = 1
		}
		iv.LevelMap[part] = lm
	}
	return iv
}

// assign walks cells in descending mass from the lowest level up, each
// level's region extending the previous one. It returns the mass fraction
// reached and the index of the first unreached level, or -1. Summing the
// cells in mass order can land a rounding error short of total, so levels
// within an ulp of 1 may be unreachable.
func (iv *Intervals) assign(cells []cell, total float64) (float64, int) {
	next := len(iv.Levels) - 1
	cum := 0.0
	for _, c := range cells {
		if next < 0 {
			break
		}
		cum += c.mass
		iv.LevelMap[c.part][c.bin] = iv.Levels[next]
		for next >= 0 && cum/total >= iv.Levels[next] {
			iv.Thresholds[next] = c.density
			next--
		}
	}
	return cum / total, next
}

// Intervals returns the last computed thresholds
func (p *Plot) Intervals() (Intervals, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.intervals == nil {
		return Intervals{}, false
	}
	return *p.intervals, true
}

// HasLevels reports whether iv was computed for exactly the given levels,
// in any order
func (iv Intervals) HasLevels(levels []float64) bool {
	if len(iv.Levels) != len(levels) {
		return false
	}
	sorted := append([]float64(nil), levels...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	for i, l := range sorted {
		if iv.Levels[i] != l {
			return false
		}
	}
	return true
}

// InRegion reports, per bin, whether the bin belongs to the credible region
// of level in any partition
func (p *Plot) InRegion(level float64) ([]bool, error) {
	iv, ok := p.Intervals()
	if !ok {
		return nil, fmt.Errorf("%w: no intervals computed for plot %s", core.ErrInvalidLevel, p.Name())
	}
	found := false
	for _, l := range iv.Levels {
		if l == level {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: level %g was not computed for plot %s", core.ErrInvalidLevel, level, p.Name())
	}

	in := make([]bool, len(p.areas))
	for _, lm := range iv.LevelMap {
		for b, l := range lm {
			if l <= level {
				in[b] = true
			}
		}
	}
	return in, nil
}

// RegionArea returns the summed area of the bins inside the level region
func (p *Plot) RegionArea(level float64) (float64, error) {
	in, err := p.InRegion(level)
	if err != nil {
		return 0, err
	}
	area := 0.0
	for b, ok := range in {
		if ok {
			area += p.areas[b]
		}
	}
	return area, nil
}

// Range is a closed interval of a 1D credible region
type Range struct {
	Lo, Hi float64
}

// CredibleRanges returns the contiguous edge ranges making up the level
// region of a 1D plot
func (p *Plot) CredibleRanges(level float64) ([]Range, error) {
	if p.Dims() != 1 {
		return nil, fmt.Errorf("%w: credible ranges need a 1D plot, %s has %d dimensions",
			core.ErrDimensionality, p.Name(), p.Dims())
	}
	in, err := p.InRegion(level)
	if err != nil {
		return nil, err
	}
	ax := p.axes[0]
	var out []Range
	open := -1
	for b := 0; b <= len(in); b++ {
		inside := b < len(in) && in[b]
		switch {
		case inside && open < 0:
			open = b
		case !inside && open >= 0:
			out = append(out, Range{Lo: ax.edges[open], Hi: ax.edges[b]})
			open = -1
		}
	}
	return out, nil
}

// LevelOf returns the level-map value of a bin in a partition
func (p *Plot) LevelOf(o prior.Ordering, bin int) (float64, bool) {
	iv, ok := p.Intervals()
	if !ok || bin < 0 || bin >= len(p.areas) {
		return 0, false
	}
	if o == prior.BothOrderings {
		l := 1.0
		for _, lm := range iv.LevelMap {
			l = min(l, lm[bin])
		}
		return l, true
	}
	if p.ordering == "" {
		return 0, false
	}
	return iv.LevelMap[partIndex(o)][bin], true
}
