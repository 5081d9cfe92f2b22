// Package chain holds the in-memory representation of MCMC sample batches and
// the named variables evaluated over them.
package chain

import (
	"fmt"
	"sort"

	"numcmc/domain/core"
)

// Batch maps a column name to one value per MCMC step. All columns of a batch
// have the same length.
type Batch map[string][]float64

// Len returns the number of steps in the batch, or 0 for an empty batch.
// It does not check consistency; use Validate for that.
func (b Batch) Len() int {
	for _, col := range b {
		return len(col)
	}
	return 0
}

// Validate checks that every column has the same length
func (b Batch) Validate() error {
	want := -1
	wantName := ""
	for _, name := range b.Names() {
		n := len(b[name])
		if want < 0 {
			want, wantName = n, name
			continue
		}
		if n != want {
			return fmt.Errorf("%w: column %s has %d entries, column %s has %d",
				core.ErrBatchShape, name, n, wantName, want)
		}
	}
	return nil
}

// Has reports whether the batch carries a column
func (b Batch) Has(name string) bool {
	_, ok := b[name]
	return ok
}

// Names returns the column names in sorted order
func (b Batch) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Slice returns a batch restricted to steps [from, to). Columns share storage
// with the receiver.
func (b Batch) Slice(from, to int) Batch {
	out := make(Batch, len(b))
	for name, col := range b {
		out[name] = col[from:to]
	}
	return out
}
