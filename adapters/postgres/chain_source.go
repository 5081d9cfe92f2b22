// Package postgres serves MCMC chains stored in PostgreSQL. Each chain is a
// table with a BIGINT step key and one DOUBLE PRECISION column per variable;
// priors, surfaces and citations sit in shared metadata tables.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"time"

	"numcmc/domain/chain"
	"numcmc/domain/core"
	"numcmc/domain/prior"
	"numcmc/domain/surface"
	"numcmc/internal/errors"
	"numcmc/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// StepColumn is the ordering key of every chain table
const StepColumn = "step"

// Open connects to the database at url
func Open(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	return db, nil
}

// ChainSource reads one chain table
type ChainSource struct {
	db       *sqlx.DB
	table    string
	columns  []string
	priors   map[string]string
	surfaces map[string]surface.Surface
	citation string
}

type priorRow struct {
	Variable string `db:"variable"`
	Prior    string `db:"prior"`
}

type surfaceRow struct {
	Constraint string          `db:"constraint_name"`
	X          float64         `db:"x"`
	Y          sql.NullFloat64 `db:"y"`
	Value      float64         `db:"value"`
}

// NewChainSource reads the column list and metadata of table
func NewChainSource(ctx context.Context, db *sqlx.DB, table string) (*ChainSource, error) {
	start := time.Now()
	s := &ChainSource{db: db, table: table}

	err := db.SelectContext(ctx, &s.columns, `
		SELECT column_name FROM information_schema.columns
		WHERE table_name = $1 AND column_name <> $2
		ORDER BY ordinal_position`, table, StepColumn)
	if err != nil {
		return nil, errors.DatabaseError("failed to list chain columns", err)
	}
	if len(s.columns) == 0 {
		return nil, errors.SourceError(table, fmt.Errorf("table has no sample columns"))
	}

	if err := s.loadMetadata(ctx); err != nil {
		return nil, err
	}
	log.Printf("[ChainReader] Table %s opened in %.2fms (%d columns, %d priors, %d surfaces)",
		table, float64(time.Since(start).Nanoseconds())/1e6, len(s.columns), len(s.priors), len(s.surfaces))
	return s, nil
}

func (s *ChainSource) loadMetadata(ctx context.Context) error {
	s.priors = make(map[string]string)
	s.surfaces = make(map[string]surface.Surface)

	if ok, err := s.tableExists(ctx, "chain_priors"); err != nil {
		return err
	} else if ok {
		var rows []priorRow
		if err := s.db.SelectContext(ctx, &rows,
			"SELECT variable, prior FROM chain_priors WHERE chain_table = $1", s.table); err != nil {
			return errors.DatabaseError("failed to read chain priors", err)
		}
		for _, r := range rows {
			s.priors[r.Variable] = r.Prior
		}
	}

	if ok, err := s.tableExists(ctx, "chain_surfaces"); err != nil {
		return err
	} else if ok {
		var rows []surfaceRow
		if err := s.db.SelectContext(ctx, &rows,
			"SELECT constraint_name, x, y, value FROM chain_surfaces WHERE chain_table = $1", s.table); err != nil {
			return errors.DatabaseError("failed to read chain surfaces", err)
		}
		if s.surfaces, err = assembleSurfaces(rows); err != nil {
			return err
		}
	}

	if ok, err := s.tableExists(ctx, "chain_citation"); err != nil {
		return err
	} else if ok {
		err := s.db.GetContext(ctx, &s.citation,
			"SELECT citation FROM chain_citation WHERE chain_table = $1", s.table)
		if err != nil && err != sql.ErrNoRows {
			return errors.DatabaseError("failed to read chain citation", err)
		}
	}
	return nil
}

func (s *ChainSource) tableExists(ctx context.Context, name string) (bool, error) {
	var ok bool
	if err := s.db.GetContext(ctx, &ok, "SELECT to_regclass($1) IS NOT NULL", name); err != nil {
		return false, errors.DatabaseError("failed to look up table "+name, err)
	}
	return ok, nil
}

func assembleSurfaces(rows []surfaceRow) (map[string]surface.Surface, error) {
	points := make(map[string][]surface.Point)
	dims := make(map[string]int)
	for _, r := range rows {
		d := 1
		if r.Y.Valid {
			d = 2
		}
		if prev, ok := dims[r.Constraint]; ok && prev != d {
			return nil, fmt.Errorf("%w: %s mixes 1D and 2D rows", core.ErrInvalidSurface, r.Constraint)
		}
		dims[r.Constraint] = d
		points[r.Constraint] = append(points[r.Constraint], surface.Point{X: r.X, Y: r.Y.Float64, Value: r.Value})
	}

	out := make(map[string]surface.Surface, len(points))
	for constraint, pts := range points {
		cn, err := prior.ParseConstraintName(constraint)
		if err != nil {
			return nil, err
		}
		surf, err := surface.FromPoints(cn.Name, dims[constraint], pts)
		if err != nil {
			return nil, err
		}
		out[constraint] = surf
	}
	return out, nil
}

// Columns implements ports.ChainSource
func (s *ChainSource) Columns() []string { return append([]string(nil), s.columns...) }

// Priors implements ports.ChainSource
func (s *ChainSource) Priors() map[string]string {
	out := make(map[string]string, len(s.priors))
	for k, v := range s.priors {
		out[k] = v
	}
	return out
}

// Surfaces implements ports.ChainSource
func (s *ChainSource) Surfaces() map[string]surface.Surface {
	out := make(map[string]surface.Surface, len(s.surfaces))
	for k, v := range s.surfaces {
		out[k] = v
	}
	return out
}

// Citation implements ports.ChainSource
func (s *ChainSource) Citation() string { return s.citation }

// Batches implements ports.ChainSource. Pages are read by keyset on the step
// column, so each batch is one indexed range query.
func (s *ChainSource) Batches(ctx context.Context, batchSize, maxSteps int) (ports.BatchIterator, error) {
	if batchSize < 1 {
		return nil, errors.InvalidInput(fmt.Sprintf("batch size must be positive, got %d", batchSize))
	}
	return &iterator{
		db:       s.db,
		table:    s.table,
		columns:  s.columns,
		query:    batchQuery(s.table, s.columns),
		size:     batchSize,
		maxSteps: maxSteps,
		last:     math.MinInt64,
	}, nil
}

var _ ports.ChainSource = (*ChainSource)(nil)

// batchQuery selects the next page of steps after $1, at most $2 rows
func batchQuery(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	step := pq.QuoteIdentifier(StepColumn)
	return fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s > $1 ORDER BY %s LIMIT $2",
		step, strings.Join(quoted, ", "), pq.QuoteIdentifier(table), step, step)
}

type iterator struct {
	db       *sqlx.DB
	table    string
	columns  []string
	query    string
	size     int
	maxSteps int
	read     int
	last     int64
	done     bool
}

func (it *iterator) Next(ctx context.Context) (chain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.done {
		return nil, io.EOF
	}
	limit := it.size
	if it.maxSteps > 0 {
		limit = min(limit, it.maxSteps-it.read)
	}

	rows, err := it.db.QueryxContext(ctx, it.query, it.last, limit)
	if err != nil {
		return nil, errors.DatabaseError("failed to query chain batch", err)
	}
	defer rows.Close()

	cols := make([][]float64, len(it.columns))
	values := make([]sql.NullFloat64, len(it.columns))
	dest := make([]interface{}, len(it.columns)+1)
	var step int64
	dest[0] = &step
	for i := range values {
		dest[i+1] = &values[i]
	}

	n := 0
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.DatabaseError("failed to scan chain row", err)
		}
		for i, v := range values {
			if !v.Valid {
				return nil, errors.SourceError(it.table,
					fmt.Errorf("%w: step %d has no value for %s", core.ErrBatchShape, step, it.columns[i]))
			}
			cols[i] = append(cols[i], v.Float64)
		}
		it.last = step
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("failed to read chain rows", err)
	}

	it.read += n
	if n < limit || (it.maxSteps > 0 && it.read >= it.maxSteps) {
		it.done = true
	}
	if n == 0 {
		return nil, io.EOF
	}
	b := make(chain.Batch, len(it.columns))
	for i, c := range it.columns {
		b[c] = cols[i]
	}
	return b, nil
}

func (it *iterator) Close() error {
	it.done = true
	return nil
}
