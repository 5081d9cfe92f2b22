package ports

import (
	"context"

	"numcmc/domain/chain"
	"numcmc/domain/surface"
)

// ChainSource provides streaming access to a stored MCMC chain and the
// metadata published alongside it
type ChainSource interface {
	// Columns lists the parameter columns carried by every batch
	Columns() []string

	// Batches opens a sequential reader over the chain. maxSteps <= 0 reads
	// the whole chain.
	Batches(ctx context.Context, batchSize, maxSteps int) (BatchIterator, error)

	// Priors maps a variable name onto the prior string the chain was
	// generated under
	Priors() map[string]string

	// Surfaces maps an empirical prior name, written in the constraint naming
	// grammar, onto its tabulated density
	Surfaces() map[string]surface.Surface

	// Citation is the provenance text to quote when using the chain
	Citation() string
}

// BatchIterator yields consecutive batches of a chain. Next returns io.EOF
// once the chain (or the step limit) is exhausted.
type BatchIterator interface {
	Next(ctx context.Context) (chain.Batch, error)
	Close() error
}
