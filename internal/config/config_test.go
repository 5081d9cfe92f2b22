package config

import (
	"testing"

	"numcmc/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"NUMCMC_BATCH_SIZE", "NUMCMC_MAX_STEPS", "NUMCMC_WORKERS", "NUMCMC_PROGRESS_EVERY",
		"NUMCMC_LEVELS", "NUMCMC_ORDERING_VARIABLE", "NUMCMC_CHAIN_FILE", "NUMCMC_CHAIN_TABLE",
		"DATABASE_URL", "PORT", "GIN_MODE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100000, cfg.Engine.BatchSize)
	assert.Equal(t, 0, cfg.Engine.MaxSteps)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, 10, cfg.Engine.ProgressEvery)
	assert.Equal(t, []float64{0.68, 0.95}, cfg.Engine.Levels)
	assert.Equal(t, "Deltam2_32", cfg.Engine.OrderingVariable)
	assert.Equal(t, "mcmc", cfg.Chain.Table)
	assert.Equal(t, "", cfg.Chain.File)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.GinMode)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NUMCMC_BATCH_SIZE", "5000")
	t.Setenv("NUMCMC_WORKERS", "8")
	t.Setenv("NUMCMC_LEVELS", "0.9, 0.5")
	t.Setenv("NUMCMC_CHAIN_FILE", "chain.xlsx")
	t.Setenv("DATABASE_URL", "postgres://localhost/chains")
	t.Setenv("GIN_MODE", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Engine.BatchSize)
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.Equal(t, []float64{0.5, 0.9}, cfg.Engine.Levels)
	assert.Equal(t, "chain.xlsx", cfg.Chain.File)
	assert.Equal(t, "postgres://localhost/chains", cfg.Database.URL)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"NUMCMC_BATCH_SIZE": "lots",
		"NUMCMC_WORKERS":    "0",
		"NUMCMC_MAX_STEPS":  "-1",
		"NUMCMC_LEVELS":     "0.68,1.2",
		"GIN_MODE":          "verbose",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestParseLevels(t *testing.T) {
	levels, err := ParseLevels("0.95,0.68,,0.9")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.68, 0.9, 0.95}, levels)

	_, err = ParseLevels(" , ")
	assert.Error(t, err)
	_, err = ParseLevels("0")
	assert.Error(t, err)
}
