package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"numcmc/domain/chain"
	"numcmc/internal/errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// SaveChain writes a chain into table, replacing any earlier chain of the
// same name, and records its metadata. Samples are bulk loaded with COPY.
func SaveChain(ctx context.Context, db *sqlx.DB, table string, p chain.Published) error {
	if err := p.Samples.Validate(); err != nil {
		return err
	}
	if err := NewMigrator(db).Up(ctx); err != nil {
		return errors.DatabaseError("failed to prepare chain schema", err)
	}

	start := time.Now()
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	names := p.Samples.Names()
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+pq.QuoteIdentifier(table)); err != nil {
		return errors.DatabaseError("failed to drop chain table", err)
	}
	if _, err := tx.ExecContext(ctx, createTableQuery(table, names)); err != nil {
		return errors.DatabaseError("failed to create chain table", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, append([]string{StepColumn}, names...)...))
	if err != nil {
		return errors.DatabaseError("failed to start copy", err)
	}
	row := make([]interface{}, len(names)+1)
	for s := 0; s < p.Samples.Len(); s++ {
		row[0] = int64(s)
		for i, n := range names {
			row[i+1] = p.Samples[n][s]
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			return errors.DatabaseError(fmt.Sprintf("failed to copy step %d", s), err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return errors.DatabaseError("failed to flush copy", err)
	}
	if err := stmt.Close(); err != nil {
		return errors.DatabaseError("failed to finish copy", err)
	}

	if err := saveMetadata(ctx, tx, table, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit chain", err)
	}
	log.Printf("[ChainWriter] Wrote %d steps to table %s in %.2fs", p.Samples.Len(), table, time.Since(start).Seconds())
	return nil
}

func createTableQuery(table string, columns []string) string {
	defs := []string{pq.QuoteIdentifier(StepColumn) + " BIGINT PRIMARY KEY"}
	for _, c := range columns {
		defs = append(defs, pq.QuoteIdentifier(c)+" DOUBLE PRECISION NOT NULL")
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", pq.QuoteIdentifier(table), strings.Join(defs, ", "))
}

func saveMetadata(ctx context.Context, tx *sqlx.Tx, table string, p chain.Published) error {
	for _, q := range []string{
		"DELETE FROM chain_priors WHERE chain_table = $1",
		"DELETE FROM chain_surfaces WHERE chain_table = $1",
		"DELETE FROM chain_citation WHERE chain_table = $1",
	} {
		if _, err := tx.ExecContext(ctx, q, table); err != nil {
			return errors.DatabaseError("failed to clear chain metadata", err)
		}
	}

	vars := make([]string, 0, len(p.Priors))
	for v := range p.Priors {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	for _, v := range vars {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chain_priors (chain_table, variable, prior) VALUES ($1, $2, $3)",
			table, v, p.Priors[v]); err != nil {
			return errors.DatabaseError("failed to save prior for "+v, err)
		}
	}

	for constraint, surf := range p.Surfaces {
		for _, pt := range surf.Points() {
			y := sql.NullFloat64{Float64: pt.Y, Valid: surf.Dims() == 2}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO chain_surfaces (chain_table, constraint_name, x, y, value) VALUES ($1, $2, $3, $4, $5)",
				table, constraint, pt.X, y, pt.Value); err != nil {
				return errors.DatabaseError("failed to save surface "+constraint, err)
			}
		}
	}

	if p.Citation != "" {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chain_citation (chain_table, citation) VALUES ($1, $2)", table, p.Citation); err != nil {
			return errors.DatabaseError("failed to save citation", err)
		}
	}
	return nil
}
