package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"numcmc/domain/core"
	"numcmc/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "levels": [0.68, 0.95],
  "priors": ["Gaussian(0.55,0.01):sin^2(Theta23)"],
  "plots": [
    {"variables": ["SinSqTheta23"], "bins": [50], "range": [[0.35, 0.65]],
     "mass_ordering": true, "priors": [], "empirical": ["solar"]},
    {"variables": ["DeltaCP", "Theta13"], "edges": [[-3.14159, 0, 3.14159], [0, 0.1, 0.2]],
     "priors": ["Uniform:sin^2(2Theta13)"], "without": ["reactor"]}
  ]
}`

func TestParse(t *testing.T) {
	j, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, []float64{0.68, 0.95}, j.Levels)
	assert.Equal(t, []string{"Gaussian(0.55,0.01):sin^2(Theta23)"}, j.Priors)
	require.Len(t, j.Plots, 2)

	first := j.Plots[0]
	assert.Equal(t, []string{"SinSqTheta23"}, first.Variables)
	assert.Equal(t, []int{50}, first.Bins)
	assert.Equal(t, [][2]float64{{0.35, 0.65}}, first.Range)
	assert.True(t, first.MassOrdering)
	assert.Empty(t, first.Priors)
	assert.Equal(t, []string{"solar"}, first.Empirical)

	second := j.Plots[1]
	assert.Len(t, second.Edges, 2)
	assert.False(t, second.MassOrdering)
	assert.Equal(t, []string{"reactor"}, second.Without)

	axes, err := second.Axes()
	require.NoError(t, err)
	assert.Equal(t, 2, axes[0].Bins())
	assert.Equal(t, 2, axes[1].Bins())
}

func TestParseMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"plots": [`,
		"top level array":   `[1, 2]`,
		"no plots":          `{"levels": [0.68]}`,
		"empty plots":       `{"plots": []}`,
		"no variables":      `{"plots": [{"bins": [10], "range": [[0, 1]]}]}`,
		"no binning":        `{"plots": [{"variables": ["DeltaCP"]}]}`,
		"both binnings":     `{"plots": [{"variables": ["x"], "bins": [2], "range": [[0, 1]], "edges": [[0, 1]]}]}`,
		"bins need range":   `{"plots": [{"variables": ["x"], "bins": [2]}]}`,
		"bad range":         `{"plots": [{"variables": ["x"], "bins": [2], "range": [[0, 1, 2]]}]}`,
		"fractional bins":   `{"plots": [{"variables": ["x"], "bins": [2.5], "range": [[0, 1]]}]}`,
		"edge count":        `{"plots": [{"variables": ["x", "y"], "edges": [[0, 1]]}]}`,
		"string level":      `{"levels": ["0.68"], "plots": [{"variables": ["x"], "edges": [[0, 1]]}]}`,
		"numeric prior":     `{"priors": [1], "plots": [{"variables": ["x"], "edges": [[0, 1]]}]}`,
		"ordering not bool": `{"plots": [{"variables": ["x"], "edges": [[0, 1]], "mass_ordering": "yes"}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.True(t, errors.Is(err, core.ErrMalformedJob), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	j, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, j.Plots, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	cfg := testkit.DefaultChainConfig()
	cfg.Steps = 2000
	kit, err := testkit.NewKit(cfg)
	require.NoError(t, err)

	j, err := Parse([]byte(sample))
	require.NoError(t, err)
	plots, err := j.Apply(kit.Stack)
	require.NoError(t, err)
	require.Len(t, plots, 2)

	info, ok := kit.Stack.Info(plots[0].ID())
	require.True(t, ok)
	assert.Equal(t, []string{"Theta23=Gaussian(0.55,0.01):sin^2(x)"}, info.Priors)
	assert.ElementsMatch(t, []string{"reactor", "solar"}, info.Empirical)

	info, _ = kit.Stack.Info(plots[1].ID())
	assert.Equal(t, []string{"Theta13=Uniform:sin^2(2x)"}, info.Priors)
	assert.Empty(t, info.Empirical)

	require.NoError(t, kit.Stack.FillPlots(context.Background(), 0, 500))
	assert.True(t, plots[0].Finalized())
}

func TestApplyReportsPlotIndex(t *testing.T) {
	cfg := testkit.DefaultChainConfig()
	cfg.Steps = 100
	kit, err := testkit.NewKit(cfg)
	require.NoError(t, err)

	j, err := Parse([]byte(`{"plots": [{"variables": ["NotAVariable"], "bins": [4], "range": [[0, 1]]}]}`))
	require.NoError(t, err)
	_, err = j.Apply(kit.Stack)
	assert.True(t, errors.Is(err, core.ErrUnknownVariable))
	assert.Contains(t, err.Error(), "plot 0")
}
