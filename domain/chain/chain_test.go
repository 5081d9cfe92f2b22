package chain

import (
	"errors"
	"math"
	"testing"

	"numcmc/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchValidate(t *testing.T) {
	good := Batch{"a": {1, 2, 3}, "b": {4, 5, 6}}
	require.NoError(t, good.Validate())
	assert.Equal(t, 3, good.Len())
	assert.Equal(t, []string{"a", "b"}, good.Names())

	bad := Batch{"a": {1, 2, 3}, "b": {4, 5}}
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrBatchShape))
}

func TestBatchSlice(t *testing.T) {
	b := Batch{"a": {1, 2, 3, 4}}
	s := b.Slice(1, 3)
	assert.Equal(t, []float64{2, 3}, s["a"])
}

func TestVariableEvaluate(t *testing.T) {
	ssth23 := NewVariable("SinSqTheta23", []string{"Theta23"}, func(in Inputs) ([]float64, error) {
		th := in["Theta23"]
		out := make([]float64, len(th))
		for i, v := range th {
			s := math.Sin(v)
			out[i] = s * s
		}
		return out, nil
	})

	batch := Batch{"Theta23": {0, math.Pi / 2}, "DeltaCP": {1, 2}}
	out, err := ssth23.Evaluate(batch)
	require.NoError(t, err)
	assert.InDelta(t, 0, out[0], 1e-12)
	assert.InDelta(t, 1, out[1], 1e-12)
	assert.False(t, ssth23.IsNative())
}

func TestVariableEvaluateOmitsMissingInputs(t *testing.T) {
	var seen Inputs
	v := NewVariable("v", []string{"a", "missing"}, func(in Inputs) ([]float64, error) {
		seen = in
		return in["a"], nil
	})

	_, err := v.Evaluate(Batch{"a": {1, 2}})
	require.NoError(t, err)
	assert.Len(t, seen, 1)
	_, ok := seen["missing"]
	assert.False(t, ok)
}

func TestVariableEvaluateErrors(t *testing.T) {
	cause := errors.New("domain error")
	failing := NewVariable("Broken", nil, func(Inputs) ([]float64, error) { return nil, cause })
	_, err := failing.Evaluate(Batch{"a": {1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrEvaluation))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "Broken")

	panicking := NewVariable("Panics", []string{"a"}, func(in Inputs) ([]float64, error) {
		return []float64{in["a"][10]}, nil
	})
	_, err = panicking.Evaluate(Batch{"a": {1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrEvaluation))
	assert.Contains(t, err.Error(), "Panics")

	short := NewVariable("Short", []string{"a"}, func(Inputs) ([]float64, error) { return []float64{1}, nil })
	_, err = short.Evaluate(Batch{"a": {1, 2}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrBatchShape))
}

func TestNativeVariable(t *testing.T) {
	v := NewNativeVariable("DeltaCP")
	assert.True(t, v.IsNative())

	out, err := v.Evaluate(Batch{"DeltaCP": {0.5}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, out)

	_, err = v.Evaluate(Batch{"Theta13": {0.5}})
	assert.True(t, errors.Is(err, core.ErrEvaluation))
}
