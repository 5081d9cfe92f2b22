// Package samples is the session over one MCMC chain: it checks the chain
// carries the physical parameters, registers native and derived variables,
// and parses the priors and empirical surfaces published with the chain.
package samples

import (
	"fmt"
	"log"
	"sort"

	"numcmc/domain/chain"
	"numcmc/domain/core"
	"numcmc/domain/prior"
	"numcmc/internal/empirical"
	"numcmc/internal/jacobian"
	"numcmc/internal/oscillation"
	"numcmc/ports"
)

// Samples holds the variables and priors of one chain. Registration is not
// safe for concurrent use; once plots are streaming the session is read-only.
type Samples struct {
	src        ports.ChainSource
	graph      *jacobian.Graph
	compulsory []string
	ordering   string

	variables map[string]*chain.Variable
	order     []string

	native    map[string]prior.Spec
	empirical []*empirical.Prior
}

// Option configures a session
type Option func(*Samples)

// WithCompulsory replaces the physical parameters the chain must provide
func WithCompulsory(vars ...string) Option {
	return func(s *Samples) {
		s.compulsory = append([]string(nil), vars...)
	}
}

// WithOrderingVariable names the column whose sign selects the mass ordering
func WithOrderingVariable(name string) Option {
	return func(s *Samples) {
		s.ordering = name
	}
}

// New opens a session over src
func New(src ports.ChainSource, graph *jacobian.Graph, opts ...Option) (*Samples, error) {
	s := &Samples{
		src:        src,
		graph:      graph,
		compulsory: append([]string(nil), oscillation.Compulsory...),
		ordering:   oscillation.MassOrderingVariable,
		variables:  make(map[string]*chain.Variable),
		native:     make(map[string]prior.Spec),
	}
	for _, opt := range opts {
		opt(s)
	}

	columns := src.Columns()
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, v := range s.compulsory {
		if !present[v] {
			return nil, fmt.Errorf("%w: %s", core.ErrMissingColumn, v)
		}
		log.Printf("[Samples] Variable %s exists in the chain", v)
	}

	for _, c := range columns {
		if err := s.register(chain.NewNativeVariable(c)); err != nil {
			return nil, err
		}
	}

	if err := s.loadNativePriors(); err != nil {
		return nil, err
	}
	if err := s.loadEmpiricalPriors(); err != nil {
		return nil, err
	}

	log.Printf("[Samples] Session ready: %d columns, %d native priors, %d empirical priors",
		len(columns), len(s.native), len(s.empirical))
	return s, nil
}

func (s *Samples) loadNativePriors() error {
	published := s.src.Priors()
	for _, v := range s.compulsory {
		raw, ok := published[v]
		if !ok {
			log.Printf("[Samples] Warning: chain publishes no generation prior for %s; it cannot be reweighted", v)
			continue
		}
		spec, err := s.graph.NativePrior(v, raw)
		if err != nil {
			return err
		}
		s.native[v] = spec
	}
	return nil
}

func (s *Samples) loadEmpiricalPriors() error {
	surfaces := s.src.Surfaces()
	names := make([]string, 0, len(surfaces))
	for n := range surfaces {
		names = append(names, n)
	}
	sort.Strings(names)

	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		cn, err := prior.ParseConstraintName(raw)
		if err != nil {
			return err
		}
		if seen[cn.Name] {
			return fmt.Errorf("%w: empirical prior %s", core.ErrDuplicateName, cn.Name)
		}
		seen[cn.Name] = true
		for _, v := range cn.Variables {
			if _, ok := s.variables[v]; !ok {
				return fmt.Errorf("%w: empirical prior %s uses %s", core.ErrUnknownVariable, cn.Name, v)
			}
		}
		ep, err := empirical.New(cn, surfaces[raw])
		if err != nil {
			return err
		}
		s.empirical = append(s.empirical, ep)
	}
	return nil
}

func (s *Samples) register(v *chain.Variable) error {
	if _, dup := s.variables[v.Name]; dup {
		return fmt.Errorf("%w: variable %s", core.ErrDuplicateName, v.Name)
	}
	s.variables[v.Name] = v
	s.order = append(s.order, v.Name)
	return nil
}

// AddVariable registers a derived variable. Every input must already be a
// known variable, so registration order is also a valid evaluation order.
func (s *Samples) AddVariable(name string, inputs []string, fn chain.Func) error {
	if name == "" {
		return fmt.Errorf("%w: empty variable name", core.ErrUnknownVariable)
	}
	if fn == nil {
		return fmt.Errorf("%w: variable %s has no function", core.ErrConfiguration, name)
	}
	for _, in := range inputs {
		if _, ok := s.variables[in]; !ok {
			return fmt.Errorf("%w: %s used by %s", core.ErrUnknownVariable, in, name)
		}
	}
	return s.register(chain.NewVariable(name, inputs, fn))
}

// Variable looks up a registered variable
func (s *Samples) Variable(name string) (*chain.Variable, bool) {
	v, ok := s.variables[name]
	return v, ok
}

// Variables returns every variable name in registration order
func (s *Samples) Variables() []string { return append([]string(nil), s.order...) }

// Compulsory returns the physical parameters
func (s *Samples) Compulsory() []string { return append([]string(nil), s.compulsory...) }

// OrderingVariable returns the column that decides the mass ordering
func (s *Samples) OrderingVariable() string { return s.ordering }

// NativePrior returns the prior the chain was generated under for v
func (s *Samples) NativePrior(v string) (prior.Spec, bool) {
	spec, ok := s.native[v]
	return spec, ok
}

// EmpiricalPriors returns every empirical prior published with the chain
func (s *Samples) EmpiricalPriors() []*empirical.Prior {
	return append([]*empirical.Prior(nil), s.empirical...)
}

// EmpiricalPrior looks up an empirical prior by its unique name
func (s *Samples) EmpiricalPrior(name string) (*empirical.Prior, bool) {
	for _, ep := range s.empirical {
		if ep.Name() == name {
			return ep, true
		}
	}
	return nil, false
}

// Source returns the underlying chain
func (s *Samples) Source() ports.ChainSource { return s.src }

// Citation returns the provenance string of the chain
func (s *Samples) Citation() string { return s.src.Citation() }

// Resolve adds the named variables and everything they depend on to batch.
// Columns already in the batch are not recomputed. Variables are evaluated
// in registration order.
func (s *Samples) Resolve(batch chain.Batch, names []string) error {
	need := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if need[name] || batch.Has(name) {
			return nil
		}
		v, ok := s.variables[name]
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrUnknownVariable, name)
		}
		need[name] = true
		if v.IsNative() {
			return nil
		}
		for _, in := range v.Inputs {
			if err := visit(in); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range names {
		if err := visit(n); err != nil {
			return err
		}
	}

	for _, name := range s.order {
		if !need[name] || batch.Has(name) {
			continue
		}
		v := s.variables[name]
		if v.IsNative() {
			return core.NewEvaluationError(name, fmt.Errorf("chain column missing from batch"))
		}
		out, err := v.Evaluate(batch)
		if err != nil {
			return err
		}
		batch[name] = out
	}
	return nil
}
