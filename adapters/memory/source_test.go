package memory

import (
	"context"
	"errors"
	"io"
	"testing"

	"numcmc/domain/chain"
	"numcmc/domain/core"
	"numcmc/domain/surface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, s *Source, batchSize, maxSteps int) []int {
	t.Helper()
	it, err := s.Batches(context.Background(), batchSize, maxSteps)
	require.NoError(t, err)
	defer it.Close()

	var sizes []int
	for {
		b, err := it.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return sizes
		}
		require.NoError(t, err)
		sizes = append(sizes, b.Len())
	}
}

func TestBatching(t *testing.T) {
	s, err := NewSource(chain.Batch{"a": make([]float64, 10), "b": make([]float64, 10)})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, s.Columns())
	assert.Equal(t, []int{4, 4, 2}, drain(t, s, 4, 0))
	assert.Equal(t, []int{4, 3}, drain(t, s, 4, 7))
	assert.Equal(t, []int{10}, drain(t, s, 100, 0))

	_, err = s.Batches(context.Background(), 0, 0)
	assert.Error(t, err)
}

func TestBatchesKeepOrder(t *testing.T) {
	s, err := NewSource(chain.Batch{"a": {1, 2, 3, 4, 5}})
	require.NoError(t, err)
	it, err := s.Batches(context.Background(), 2, 0)
	require.NoError(t, err)

	var got []float64
	for {
		b, err := it.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, b["a"]...)
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, got)
}

func TestCancelledContext(t *testing.T) {
	s, err := NewSource(chain.Batch{"a": {1, 2}})
	require.NoError(t, err)
	it, err := s.Batches(context.Background(), 1, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = it.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMetadata(t *testing.T) {
	surf := surface.Surface{Name: "r", Axes: [][]float64{{0, 1}}, Values: []float64{1, 1}}
	s, err := NewSource(chain.Batch{"a": {1}},
		WithPriors(map[string]string{"a": "Uniform:a"}),
		WithSurface("r:a:1", surf),
		WithCitation("arXiv:0000.00000"))
	require.NoError(t, err)

	assert.Equal(t, "Uniform:a", s.Priors()["a"])
	assert.Contains(t, s.Surfaces(), "r:a:1")
	assert.Equal(t, "arXiv:0000.00000", s.Citation())

	_, err = NewSource(chain.Batch{"a": {1}, "b": {1, 2}})
	assert.True(t, errors.Is(err, core.ErrBatchShape))
}

func TestFromPublished(t *testing.T) {
	p := chain.Published{
		Samples:  chain.Batch{"a": {1, 2, 3}},
		Priors:   map[string]string{"a": "Uniform:a"},
		Surfaces: map[string]surface.Surface{"s:a:1": {Name: "s", Axes: [][]float64{{0, 1}}, Values: []float64{1, 1}}},
		Citation: "cite me",
	}
	src, err := FromPublished(p)
	require.NoError(t, err)
	assert.Equal(t, p, src.Published())
}
