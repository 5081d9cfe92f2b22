package empirical

import (
	"errors"
	"testing"

	"numcmc/domain/chain"
	"numcmc/domain/core"
	"numcmc/domain/prior"
	"numcmc/domain/surface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func name(t *testing.T, s string) prior.ConstraintName {
	t.Helper()
	c, err := prior.ParseConstraintName(s)
	require.NoError(t, err)
	return c
}

func TestOneDimensional(t *testing.T) {
	surf := surface.Surface{Name: "reactor", Axes: [][]float64{{0, 1, 2}}, Values: []float64{0, 2, 4}}
	p, err := New(name(t, "reactor:SinSq2Theta13:1"), surf)
	require.NoError(t, err)

	assert.Equal(t, "reactor", p.Name())
	assert.True(t, p.Default())
	assert.InDelta(t, 1.0, p.At(0.5), 1e-12)
	assert.InDelta(t, 3.0, p.At(1.5), 1e-12)
	assert.InDelta(t, 4.0, p.At(2), 1e-12)
	assert.Equal(t, 0.0, p.At(-0.1))
	assert.Equal(t, 0.0, p.At(2.1))

	w, err := p.Weights(chain.Batch{"SinSq2Theta13": {0.5, 1.5, 3}}, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 3, 0}, w, 1e-12)
}

func TestTwoDimensional(t *testing.T) {
	surf := surface.Surface{
		Name:   "solar",
		Axes:   [][]float64{{0, 1}, {0, 10}},
		Values: []float64{0, 1, 2, 3},
	}
	p, err := New(name(t, "solar:Theta12:Deltam2_21:0"), surf)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, p.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, p.At(0, 10), 1e-12)
	assert.InDelta(t, 2.0, p.At(1, 0), 1e-12)
	assert.InDelta(t, 3.0, p.At(1, 10), 1e-12)
	assert.InDelta(t, 1.5, p.At(0.5, 5), 1e-12)
	assert.Equal(t, 0.0, p.At(0.5, 11))
}

func TestOrderingGate(t *testing.T) {
	surf := surface.Surface{Name: "beam", Axes: [][]float64{{0, 1}}, Values: []float64{0.5, 0.5}}
	p, err := New(name(t, "beam:Theta23:IO:1"), surf)
	require.NoError(t, err)
	assert.Equal(t, prior.InvertedOrdering, p.Ordering())

	batch := chain.Batch{"Theta23": {0.5, 0.5, 0.5}}
	w, err := p.Weights(batch, []float64{2.5e-3, -2.5e-3, 0})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0.5, 1}, w)

	_, err = p.Weights(batch, nil)
	assert.True(t, errors.Is(err, core.ErrUnknownVariable))
	_, err = p.Weights(batch, []float64{1})
	assert.True(t, errors.Is(err, core.ErrBatchShape))
}

func TestErrors(t *testing.T) {
	_, err := New(name(t, "a:x:y:1"), surface.Surface{Name: "a", Axes: [][]float64{{0, 1}}, Values: []float64{1, 1}})
	assert.True(t, errors.Is(err, core.ErrDimensionality))

	_, err = New(name(t, "a:x:1"), surface.Surface{Name: "a", Axes: [][]float64{{1, 0}}, Values: []float64{1, 1}})
	assert.True(t, errors.Is(err, core.ErrInvalidSurface))

	p, err := New(name(t, "a:x:1"), surface.Surface{Name: "a", Axes: [][]float64{{0, 1}}, Values: []float64{1, 1}})
	require.NoError(t, err)
	_, err = p.Weights(chain.Batch{"y": {1}}, nil)
	assert.True(t, errors.Is(err, core.ErrUnknownVariable))
}
