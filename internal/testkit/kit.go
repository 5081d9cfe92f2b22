// Package testkit provides synthetic oscillation chains and a ready-made
// session over them for tests and demos.
package testkit

import (
	"fmt"
	"log"

	"numcmc/adapters/memory"
	"numcmc/internal/jacobian"
	"numcmc/internal/oscillation"
	"numcmc/internal/plotstack"
	"numcmc/internal/samples"
)

// Kit bundles a generated chain, a session with the derived oscillation
// variables registered, and an empty plot stack
type Kit struct {
	Source  *memory.Source
	Samples *samples.Samples
	Stack   *plotstack.Stack
	Graph   *jacobian.Graph
}

// NewKit generates a chain from config and opens a session over it
func NewKit(config ChainGeneratorConfig, opts ...plotstack.Option) (*Kit, error) {
	src, err := NewChainGenerator(config).Source()
	if err != nil {
		return nil, fmt.Errorf("generate chain: %w", err)
	}
	graph := jacobian.NewGraph()
	smp, err := samples.New(src, graph)
	if err != nil {
		return nil, err
	}
	if err := oscillation.Register(smp); err != nil {
		return nil, err
	}
	log.Printf("[TestKit] Generated %d steps (seed %d)", src.Len(), config.Seed)
	return &Kit{
		Source:  src,
		Samples: smp,
		Stack:   plotstack.New(smp, graph, opts...),
		Graph:   graph,
	}, nil
}
