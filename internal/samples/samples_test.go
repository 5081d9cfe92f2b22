package samples

import (
	"context"
	"errors"
	"testing"

	"numcmc/adapters/memory"
	"numcmc/domain/chain"
	"numcmc/domain/core"
	"numcmc/domain/surface"
	"numcmc/internal/jacobian"
	"numcmc/internal/oscillation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oscillationChain(n int) chain.Batch {
	b := chain.Batch{}
	for i, name := range oscillation.Compulsory {
		col := make([]float64, n)
		for j := range col {
			col[j] = float64(i+1) * 0.1 * float64(j+1)
		}
		b[name] = col
	}
	return b
}

func newSession(t *testing.T, opts ...memory.Option) *Samples {
	t.Helper()
	src, err := memory.NewSource(oscillationChain(10), opts...)
	require.NoError(t, err)
	s, err := New(src, jacobian.NewGraph())
	require.NoError(t, err)
	return s
}

func TestMissingCompulsoryColumn(t *testing.T) {
	b := oscillationChain(3)
	delete(b, oscillation.Theta23)
	src, err := memory.NewSource(b)
	require.NoError(t, err)

	_, err = New(src, jacobian.NewGraph())
	assert.True(t, errors.Is(err, core.ErrMissingColumn))

	s, err := New(src, jacobian.NewGraph(), WithCompulsory(oscillation.Theta13))
	require.NoError(t, err)
	assert.Equal(t, []string{oscillation.Theta13}, s.Compulsory())
}

func TestNativeColumnsAndPriors(t *testing.T) {
	s := newSession(t, memory.WithPriors(map[string]string{
		oscillation.Theta13: "Uniform:sin^2(2Theta13)",
		oscillation.DeltaCP: "Uniform:x",
	}), memory.WithCitation("test chain"))

	for _, name := range oscillation.Compulsory {
		v, ok := s.Variable(name)
		require.True(t, ok, name)
		assert.True(t, v.IsNative())
	}
	spec, ok := s.NativePrior(oscillation.Theta13)
	require.True(t, ok)
	assert.Equal(t, "sin^2(2x)", spec.Expr)
	_, ok = s.NativePrior(oscillation.Theta12)
	assert.False(t, ok)
	assert.Equal(t, "test chain", s.Citation())
	assert.Equal(t, oscillation.MassOrderingVariable, s.OrderingVariable())
}

func TestMalformedNativePrior(t *testing.T) {
	src, err := memory.NewSource(oscillationChain(2), memory.WithPriors(map[string]string{
		oscillation.Theta23: "Gaussian(0.5:Theta23",
	}))
	require.NoError(t, err)
	_, err = New(src, jacobian.NewGraph())
	assert.True(t, errors.Is(err, core.ErrMalformedPrior))
}

func TestEmpiricalPriorsFromSurfaces(t *testing.T) {
	surf := surface.Surface{Name: "reactor", Axes: [][]float64{{0, 10}}, Values: []float64{1, 1}}
	s := newSession(t, memory.WithSurface("reactor:Theta13:NO:1", surf))

	ep, ok := s.EmpiricalPrior("reactor")
	require.True(t, ok)
	assert.True(t, ep.Default())
	assert.Len(t, s.EmpiricalPriors(), 1)

	src, err := memory.NewSource(oscillationChain(2), memory.WithSurface("bad:Nope:1", surf))
	require.NoError(t, err)
	_, err = New(src, jacobian.NewGraph())
	assert.True(t, errors.Is(err, core.ErrUnknownVariable))

	src, err = memory.NewSource(oscillationChain(2), memory.WithSurface("bad:Theta13", surf))
	require.NoError(t, err)
	_, err = New(src, jacobian.NewGraph())
	assert.True(t, errors.Is(err, core.ErrMalformedConstraint))
}

func TestAddVariableAndResolve(t *testing.T) {
	s := newSession(t)
	double := func(name string) chain.Func {
		return func(in chain.Inputs) ([]float64, error) {
			out := make([]float64, len(in[name]))
			for i, v := range in[name] {
				out[i] = 2 * v
			}
			return out, nil
		}
	}
	require.NoError(t, s.AddVariable("Twice", []string{oscillation.Theta12}, double(oscillation.Theta12)))
	require.NoError(t, s.AddVariable("FourTimes", []string{"Twice"}, double("Twice")))

	err := s.AddVariable("Twice", []string{oscillation.Theta12}, double(oscillation.Theta12))
	assert.True(t, errors.Is(err, core.ErrDuplicateName))
	err = s.AddVariable("Bad", []string{"Unknown"}, double("Unknown"))
	assert.True(t, errors.Is(err, core.ErrUnknownVariable))

	batch := chain.Batch{oscillation.Theta12: {1, 2}}
	require.NoError(t, s.Resolve(batch, []string{"FourTimes"}))
	assert.Equal(t, []float64{2, 4}, batch["Twice"])
	assert.Equal(t, []float64{4, 8}, batch["FourTimes"])

	// present columns are not recomputed
	batch = chain.Batch{oscillation.Theta12: {1}, "Twice": {100}}
	require.NoError(t, s.Resolve(batch, []string{"FourTimes"}))
	assert.Equal(t, []float64{200}, batch["FourTimes"])

	err = s.Resolve(chain.Batch{oscillation.Theta12: {1}}, []string{"Missing"})
	assert.True(t, errors.Is(err, core.ErrUnknownVariable))
}

func TestResolvePropagatesEvaluationErrors(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.AddVariable("Broken", []string{oscillation.Theta12}, func(chain.Inputs) ([]float64, error) {
		return nil, errors.New("boom")
	}))
	err := s.Resolve(chain.Batch{oscillation.Theta12: {1}}, []string{"Broken"})
	assert.True(t, core.IsEvaluationError(err))
	assert.Contains(t, err.Error(), "Broken")
}

func TestRegisterOscillationCatalogue(t *testing.T) {
	s := newSession(t)
	require.NoError(t, oscillation.Register(s))
	_, ok := s.Variable("JarlskogInvariant")
	assert.True(t, ok)
	assert.True(t, errors.Is(oscillation.Register(s), core.ErrDuplicateName))
}

func TestDescribe(t *testing.T) {
	s := newSession(t)
	sum, err := s.Describe(context.Background(), oscillation.DeltaCP, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Count)
	assert.InDelta(t, 0.55, sum.Mean, 1e-12)
	assert.InDelta(t, 0.1, sum.Min, 1e-12)
	assert.InDelta(t, 1.0, sum.Max, 1e-12)
	assert.InDelta(t, 0.55, sum.Median, 1e-12)

	sum, err = s.Describe(context.Background(), oscillation.DeltaCP, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Count)

	require.NoError(t, oscillation.Register(s))
	sum, err = s.Describe(context.Background(), "AbsDm2_32", 4, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Count)

	_, err = s.Describe(context.Background(), "Nope", 3, 0)
	assert.True(t, errors.Is(err, core.ErrUnknownVariable))
}
