// Package memory serves a chain that already sits in memory, used for
// synthetic chains and tests.
package memory

import (
	"context"
	"fmt"
	"io"

	"numcmc/domain/chain"
	"numcmc/domain/surface"
	"numcmc/ports"
)

// Source is an in-memory chain
type Source struct {
	data     chain.Batch
	priors   map[string]string
	surfaces map[string]surface.Surface
	citation string
}

// Option configures a Source
type Option func(*Source)

// WithPriors sets the generation priors, keyed by variable name
func WithPriors(priors map[string]string) Option {
	return func(s *Source) {
		for k, v := range priors {
			s.priors[k] = v
		}
	}
}

// WithSurface attaches an empirical prior surface under its constraint name
func WithSurface(name string, surf surface.Surface) Option {
	return func(s *Source) {
		s.surfaces[name] = surf
	}
}

// WithCitation sets the provenance string
func WithCitation(citation string) Option {
	return func(s *Source) {
		s.citation = citation
	}
}

// NewSource wraps a full chain. Columns must have equal lengths.
func NewSource(data chain.Batch, opts ...Option) (*Source, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("in-memory chain: %w", err)
	}
	s := &Source{
		data:     data,
		priors:   make(map[string]string),
		surfaces: make(map[string]surface.Surface),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FromPublished wraps a chain together with its published metadata
func FromPublished(p chain.Published) (*Source, error) {
	opts := []Option{WithPriors(p.Priors), WithCitation(p.Citation)}
	for name, surf := range p.Surfaces {
		opts = append(opts, WithSurface(name, surf))
	}
	return NewSource(p.Samples, opts...)
}

// Published returns the chain and its metadata
func (s *Source) Published() chain.Published {
	return chain.Published{
		Samples:  s.data,
		Priors:   s.Priors(),
		Surfaces: s.Surfaces(),
		Citation: s.citation,
	}
}

// Columns implements ports.ChainSource
func (s *Source) Columns() []string { return s.data.Names() }

// Priors implements ports.ChainSource
func (s *Source) Priors() map[string]string {
	out := make(map[string]string, len(s.priors))
	for k, v := range s.priors {
		out[k] = v
	}
	return out
}

// Surfaces implements ports.ChainSource
func (s *Source) Surfaces() map[string]surface.Surface {
	out := make(map[string]surface.Surface, len(s.surfaces))
	for k, v := range s.surfaces {
		out[k] = v
	}
	return out
}

// Citation implements ports.ChainSource
func (s *Source) Citation() string { return s.citation }

// Len returns the number of steps in the chain
func (s *Source) Len() int { return s.data.Len() }

// Batches implements ports.ChainSource
func (s *Source) Batches(ctx context.Context, batchSize, maxSteps int) (ports.BatchIterator, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	end := s.data.Len()
	if maxSteps > 0 && maxSteps < end {
		end = maxSteps
	}
	return &iterator{data: s.data, size: batchSize, end: end}, nil
}

var _ ports.ChainSource = (*Source)(nil)

type iterator struct {
	data chain.Batch
	size int
	pos  int
	end  int
}

func (it *iterator) Next(ctx context.Context) (chain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= it.end {
		return nil, io.EOF
	}
	to := min(it.pos+it.size, it.end)
	b := it.data.Slice(it.pos, to)
	it.pos = to
	return b, nil
}

func (it *iterator) Close() error {
	it.pos = it.end
	return nil
}
