package plotstack

import (
	"context"
	"errors"
	"math"
	"testing"

	"numcmc/adapters/memory"
	"numcmc/domain/chain"
	"numcmc/domain/core"
	"numcmc/domain/prior"
	"numcmc/domain/surface"
	"numcmc/internal/jacobian"
	"numcmc/internal/oscillation"
	"numcmc/internal/plot"
	"numcmc/internal/samples"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridChain spreads n steps evenly over each parameter's physical range.
// The mass splitting alternates sign so half the chain is inverted ordering.
func gridChain(n int) chain.Batch {
	b := chain.Batch{}
	ranges := map[string][2]float64{
		oscillation.DeltaCP:   {-math.Pi, math.Pi},
		oscillation.Theta13:   {0, math.Pi / 2},
		oscillation.Theta23:   {0, math.Pi / 2},
		oscillation.Theta12:   {0, math.Pi / 2},
		oscillation.Deltam221: {7e-5, 8e-5},
	}
	for name, r := range ranges {
		col := make([]float64, n)
		for i := range col {
			col[i] = r[0] + (r[1]-r[0])*(float64(i)+0.5)/float64(n)
		}
		b[name] = col
	}
	dm := make([]float64, n)
	for i := range dm {
		dm[i] = 2.5e-3
		if i%2 == 1 {
			dm[i] = -2.5e-3
		}
	}
	b[oscillation.Deltam232] = dm
	return b
}

var nativePriors = map[string]string{
	oscillation.DeltaCP:   "Uniform:DeltaCP",
	oscillation.Theta13:   "Uniform:Theta13",
	oscillation.Theta23:   "Uniform:Theta23",
	oscillation.Theta12:   "Uniform:Theta12",
	oscillation.Deltam232: "Uniform:Deltam2_32",
	oscillation.Deltam221: "Uniform:Deltam2_21",
}

func newStack(t *testing.T, n int, opts ...memory.Option) *Stack {
	t.Helper()
	src, err := memory.NewSource(gridChain(n), opts...)
	require.NoError(t, err)
	smp, err := samples.New(src, jacobian.NewGraph())
	require.NoError(t, err)
	require.NoError(t, oscillation.Register(smp))
	return New(smp, jacobian.NewGraph(), WithWorkers(2), WithProgressEvery(1))
}

func axis(t *testing.T, bins int, min, max float64) plot.Axis {
	t.Helper()
	a, err := plot.UniformAxis(bins, min, max)
	require.NoError(t, err)
	return a
}

func binMass(p *plot.Plot) []float64 {
	d := p.Density()
	areas := p.Areas()
	out := make([]float64, len(d))
	for i := range d {
		out[i] = d[i] * areas[i]
	}
	return out
}

func TestAddPlotUnknownVariable(t *testing.T) {
	s := newStack(t, 10, memory.WithPriors(nativePriors))
	_, err := s.AddPlot([]string{"Theta99"}, nil, []plot.Axis{axis(t, 4, 0, 1)}, false)
	assert.True(t, errors.Is(err, core.ErrUnknownVariable))
	assert.Empty(t, s.Plots())
}

func TestAddPlotPriorErrors(t *testing.T) {
	s := newStack(t, 10, memory.WithPriors(nativePriors))
	ax := []plot.Axis{axis(t, 4, 0, 1)}

	_, err := s.AddPlot([]string{oscillation.Theta23}, []string{"Uniform:tan(Theta23)"}, ax, false)
	assert.True(t, errors.Is(err, core.ErrNoTransform))
	assert.True(t, core.IsConfigurationError(err))

	_, err = s.AddPlot([]string{oscillation.Theta23}, []string{"Uniform:sin^2(Theta23)", "Uniform:cos(Theta23)"}, ax, false)
	assert.True(t, errors.Is(err, core.ErrDuplicateName))

	_, err = s.AddPlot([]string{oscillation.Theta23}, []string{"Uniform:sin^2(Theta23+Theta13)"}, ax, false)
	assert.True(t, errors.Is(err, core.ErrAmbiguousVariable))

	_, err = s.AddPlot([]string{oscillation.Theta23}, []string{"Gaussian(0.5,NaN):sin^2(Theta23)"}, ax, false)
	assert.True(t, errors.Is(err, core.ErrMalformedPrior))
	assert.True(t, core.IsConfigurationError(err))
	assert.Empty(t, s.Plots())
}

func TestAddPlotWithoutNativePrior(t *testing.T) {
	priors := map[string]string{oscillation.DeltaCP: "Uniform:DeltaCP"}
	s := newStack(t, 10, memory.WithPriors(priors))
	ax := []plot.Axis{axis(t, 4, 0, 1)}

	_, err := s.AddPlot([]string{oscillation.Theta23}, []string{"Uniform:sin^2(Theta23)"}, ax, false)
	assert.True(t, errors.Is(err, core.ErrNoTransform))
	assert.True(t, core.IsConfigurationError(err))

	_, err = s.AddPlot([]string{oscillation.Theta23}, nil, ax, false)
	assert.NoError(t, err)
}

func TestJacobianReweighting(t *testing.T) {
	s := newStack(t, 8000, memory.WithPriors(nativePriors))
	p, err := s.AddPlot([]string{oscillation.Theta23}, []string{"Uniform:sin^2(Theta23)"},
		[]plot.Axis{axis(t, 4, 0, math.Pi/2)}, false)
	require.NoError(t, err)

	require.NoError(t, s.FillPlots(context.Background(), 0, 1000))

	// density proportional to sin(2x) on [0, pi/2]
	mass := binMass(p)
	want := []float64{
		(1 - math.Cos(math.Pi/4)) / 2,
		math.Cos(math.Pi/4) / 2,
		math.Cos(math.Pi/4) / 2,
		(1 - math.Cos(math.Pi/4)) / 2,
	}
	assert.InDeltaSlice(t, want, mass, 0.005)

	info, ok := s.Info(p.ID())
	require.True(t, ok)
	assert.Equal(t, []string{"Theta23=Uniform:sin^2(x)"}, info.Priors)
}

func TestUnweightedPlotMatchesChain(t *testing.T) {
	s := newStack(t, 4000, memory.WithPriors(nativePriors))
	p, err := s.AddPlot([]string{oscillation.Theta23}, nil, []plot.Axis{axis(t, 4, 0, math.Pi/2)}, false)
	require.NoError(t, err)
	require.NoError(t, s.FillPlots(context.Background(), 0, 512))
	assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25, 0.25}, binMass(p), 1e-9)
}

func TestEmpiricalPriorGatedByOrdering(t *testing.T) {
	beam := surface.Surface{Name: "beam", Axes: [][]float64{{0, math.Pi / 2}}, Values: []float64{0.5, 0.5}}
	s := newStack(t, 1000, memory.WithPriors(nativePriors), memory.WithSurface("beam:Theta23:IO:1", beam))
	ax := []plot.Axis{axis(t, 2, 0, math.Pi/2)}

	on, err := s.AddPlot([]string{oscillation.Theta23}, nil, ax, true)
	require.NoError(t, err)
	off, err := s.AddPlot([]string{oscillation.Theta23}, nil, ax, true, WithoutEmpiricalPriors("beam"))
	require.NoError(t, err)
	_, err = s.AddPlot([]string{oscillation.Theta23}, nil, ax, true, WithEmpiricalPriors("reactor"))
	assert.True(t, core.IsConfigurationError(err))

	require.NoError(t, s.FillPlots(context.Background(), 0, 100))

	assert.InDelta(t, 2.0/3, on.Mass(prior.NormalOrdering), 1e-9)
	assert.InDelta(t, 1.0/3, on.Mass(prior.InvertedOrdering), 1e-9)
	assert.InDelta(t, 0.5, off.Mass(prior.NormalOrdering), 1e-9)

	info, ok := s.Info(on.ID())
	require.True(t, ok)
	assert.Equal(t, []string{"beam"}, info.Empirical)
	info, _ = s.Info(off.ID())
	assert.Empty(t, info.Empirical)
}

func TestGatedEmpiricalPriorNeedsOrdering(t *testing.T) {
	beam := surface.Surface{Name: "beam", Axes: [][]float64{{0, math.Pi / 2}}, Values: []float64{0.5, 0.5}}
	s := newStack(t, 100, memory.WithSurface("beam:Theta23:NO:1", beam))
	p, err := s.AddPlot([]string{oscillation.Theta23}, nil, []plot.Axis{axis(t, 2, 0, math.Pi/2)}, false)
	require.NoError(t, err)

	_, split := p.MassOrdering()
	assert.False(t, split)
	assert.Contains(t, s.Required(), oscillation.Deltam232)
}

func TestFillManyPlotsConcurrently(t *testing.T) {
	s := newStack(t, 2000, memory.WithPriors(nativePriors))
	var plots []*plot.Plot
	for i := 0; i < 9; i++ {
		p, err := s.AddPlot([]string{"SinSqTheta23", oscillation.Theta13},
			nil, []plot.Axis{axis(t, 10, 0, 1), axis(t, 10, 0, math.Pi/2)}, i%2 == 0)
		require.NoError(t, err)
		plots = append(plots, p)
	}
	require.NoError(t, s.FillPlots(context.Background(), 0, 300))

	for _, p := range plots {
		assert.True(t, p.Finalized())
		assert.InDelta(t, 1.0, sum(binMass(p)), 1e-9)
		assert.Equal(t, int64(0), p.Dropped())
	}
	rows, cols := s.Layout()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
}

func TestFillPlotsMaxSteps(t *testing.T) {
	s := newStack(t, 1000, memory.WithPriors(nativePriors))
	p, err := s.AddPlot([]string{oscillation.Theta23}, nil, []plot.Axis{axis(t, 2, 0, math.Pi/2)}, false)
	require.NoError(t, err)
	require.NoError(t, s.FillPlots(context.Background(), 500, 128))
	// the first half of the grid lies below pi/4
	assert.InDeltaSlice(t, []float64{1, 0}, binMass(p), 1e-9)
}

func TestFillPlotsEmptyHistogram(t *testing.T) {
	s := newStack(t, 100, memory.WithPriors(nativePriors))
	good, err := s.AddPlot([]string{oscillation.Theta23}, nil, []plot.Axis{axis(t, 2, 0, math.Pi/2)}, false)
	require.NoError(t, err)
	empty, err := s.AddPlot([]string{oscillation.Theta23}, nil, []plot.Axis{axis(t, 2, 5, 6)}, false)
	require.NoError(t, err)

	err = s.FillPlots(context.Background(), 0, 50)
	assert.True(t, errors.Is(err, core.ErrEmptyHistogram))
	assert.True(t, good.Finalized())
	assert.True(t, empty.Finalized())
	assert.Equal(t, int64(100), empty.Dropped())
	assert.NotNil(t, good.Density())
}

func TestFillPlotsCancelled(t *testing.T) {
	s := newStack(t, 100)
	_, err := s.AddPlot([]string{oscillation.Theta23}, nil, []plot.Axis{axis(t, 2, 0, math.Pi/2)}, false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.FillPlots(ctx, 0, 10)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMakeIntervalsForEveryPlot(t *testing.T) {
	s := newStack(t, 1000, memory.WithPriors(nativePriors))
	a, err := s.AddPlot([]string{oscillation.Theta23}, nil, []plot.Axis{axis(t, 10, 0, math.Pi/2)}, false)
	require.NoError(t, err)
	b, err := s.AddPlot([]string{oscillation.DeltaCP, oscillation.Theta13}, nil,
		[]plot.Axis{axis(t, 8, -math.Pi, math.Pi), axis(t, 8, 0, math.Pi/2)}, true)
	require.NoError(t, err)
	require.NoError(t, s.FillPlots(context.Background(), 0, 250))

	require.NoError(t, s.MakeIntervals([]float64{0.68, 0.95}))
	for _, p := range []*plot.Plot{a, b} {
		iv, ok := p.Intervals()
		require.True(t, ok)
		assert.Equal(t, []float64{0.95, 0.68}, iv.Levels)
	}

	err = s.MakeIntervals([]float64{1.5})
	assert.True(t, errors.Is(err, core.ErrInvalidLevel))

	got, ok := s.Plot(b.ID())
	require.True(t, ok)
	assert.Same(t, b, got)
	_, ok = s.Plot(core.NewPlotID())
	assert.False(t, ok)
}

func TestGridShape(t *testing.T) {
	cases := []struct{ n, rows, cols int }{
		{1, 1, 1}, {2, 2, 1}, {3, 2, 2}, {4, 2, 2}, {5, 2, 3},
		{6, 2, 3}, {7, 3, 3}, {10, 4, 3}, {13, 5, 3},
	}
	for _, tc := range cases {
		r, c := GridShape(tc.n)
		assert.Equal(t, tc.rows, r, "n=%d", tc.n)
		assert.Equal(t, tc.cols, c, "n=%d", tc.n)
	}
}

func sum(xs []float64) float64 {
	t := 0.0
	for _, x := range xs {
		t += x
	}
	return t
}
