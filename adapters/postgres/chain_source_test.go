package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"testing"

	"numcmc/domain/chain"
	"numcmc/domain/core"
	"numcmc/domain/surface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchQuery(t *testing.T) {
	q := batchQuery("mcmc", []string{"DeltaCP", "Deltam2_32"})
	assert.Equal(t,
		`SELECT "step", "DeltaCP", "Deltam2_32" FROM "mcmc" WHERE "step" > $1 ORDER BY "step" LIMIT $2`, q)

	q = batchQuery(`odd"name`, []string{"a"})
	assert.Contains(t, q, `FROM "odd""name"`)
}

func TestCreateTableQuery(t *testing.T) {
	q := createTableQuery("mcmc", []string{"Theta13"})
	assert.Equal(t, `CREATE TABLE "mcmc" ("step" BIGINT PRIMARY KEY, "Theta13" DOUBLE PRECISION NOT NULL)`, q)
}

func TestAssembleSurfaces(t *testing.T) {
	rows := []surfaceRow{
		{Constraint: "reactor:Theta13:1", X: 1, Value: 2},
		{Constraint: "reactor:Theta13:1", X: 0, Value: 1},
		{Constraint: "solar:Theta12:Deltam2_21:0", X: 0, Y: sql.NullFloat64{Float64: 1, Valid: true}, Value: 3},
		{Constraint: "solar:Theta12:Deltam2_21:0", X: 0, Y: sql.NullFloat64{Float64: 0, Valid: true}, Value: 4},
		{Constraint: "solar:Theta12:Deltam2_21:0", X: 1, Y: sql.NullFloat64{Float64: 1, Valid: true}, Value: 5},
		{Constraint: "solar:Theta12:Deltam2_21:0", X: 1, Y: sql.NullFloat64{Float64: 0, Valid: true}, Value: 6},
	}
	got, err := assembleSurfaces(rows)
	require.NoError(t, err)
	assert.Equal(t, surface.Surface{Name: "reactor", Axes: [][]float64{{0, 1}}, Values: []float64{1, 2}}, got["reactor:Theta13:1"])
	solar := got["solar:Theta12:Deltam2_21:0"]
	assert.Equal(t, [][]float64{{0, 1}, {0, 1}}, solar.Axes)
	assert.Equal(t, []float64{4, 3, 6, 5}, solar.Values)

	rows = append(rows, surfaceRow{Constraint: "reactor:Theta13:1", X: 2, Y: sql.NullFloat64{Valid: true}, Value: 1})
	_, err = assembleSurfaces(rows)
	assert.True(t, errors.Is(err, core.ErrInvalidSurface))
}

func TestChecksumStable(t *testing.T) {
	assert.Equal(t, checksum(migrations[0].sql), checksum(migrations[0].sql))
	assert.NotEqual(t, checksum(migrations[0].sql), checksum(migrations[1].sql))
}

// TestChainRoundTrip needs a scratch database; it is skipped unless
// DATABASE_URL is set.
func TestChainRoundTrip(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, url)
	require.NoError(t, err)
	defer db.Close()

	n := 23
	samples := chain.Batch{"DeltaCP": make([]float64, n), "Theta23": make([]float64, n)}
	for i := 0; i < n; i++ {
		samples["DeltaCP"][i] = float64(i) / 7
		samples["Theta23"][i] = 0.5 + float64(i)/1000
	}
	want := chain.Published{
		Samples:  samples,
		Priors:   map[string]string{"DeltaCP": "Uniform:DeltaCP"},
		Surfaces: map[string]surface.Surface{"r:Theta23:1": {Name: "r", Axes: [][]float64{{0, 1}}, Values: []float64{1, 3}}},
		Citation: "round trip",
	}
	table := "numcmc_roundtrip_test"
	require.NoError(t, SaveChain(ctx, db, table, want))
	defer db.ExecContext(ctx, `DROP TABLE IF EXISTS "`+table+`"`)

	src, err := NewChainSource(ctx, db, table)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"DeltaCP", "Theta23"}, src.Columns())
	assert.Equal(t, want.Priors, src.Priors())
	assert.Equal(t, want.Surfaces, src.Surfaces())
	assert.Equal(t, want.Citation, src.Citation())

	it, err := src.Batches(ctx, 5, 0)
	require.NoError(t, err)
	defer it.Close()
	got := chain.Batch{}
	for {
		b, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		for k, v := range b {
			got[k] = append(got[k], v...)
		}
	}
	assert.Equal(t, samples, got)
}
