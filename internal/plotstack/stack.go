// Package plotstack streams a chain once and fills every registered plot
// from it, reweighting each sample onto the plot's priors.
package plotstack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"numcmc/domain/chain"
	"numcmc/domain/core"
	"numcmc/domain/prior"
	"numcmc/internal/empirical"
	"numcmc/internal/jacobian"
	"numcmc/internal/plot"
	"numcmc/internal/samples"

	"golang.org/x/sync/errgroup"
)

// Stack owns a set of plots over one chain
type Stack struct {
	samples *samples.Samples
	graph   *jacobian.Graph

	workers       int
	progressEvery int

	entries  []*entry
	byID     map[core.PlotID]*entry
	required []string
	seen     map[string]bool
}

type entry struct {
	plot      *plot.Plot
	priors    map[string]prior.Spec
	jacobians []varWeight
	empirical []*empirical.Prior
	ordering  string
}

type varWeight struct {
	variable string
	weight   jacobian.Weight
}

// Option configures a Stack
type Option func(*Stack)

// WithWorkers bounds the number of plots filled in parallel
func WithWorkers(n int) Option {
	return func(s *Stack) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithProgressEvery logs progress every n batches; 0 disables it
func WithProgressEvery(n int) Option {
	return func(s *Stack) {
		s.progressEvery = n
	}
}

// New creates an empty stack over a chain session
func New(smp *samples.Samples, graph *jacobian.Graph, opts ...Option) *Stack {
	s := &Stack{
		samples:       smp,
		graph:         graph,
		workers:       4,
		progressEvery: 10,
		byID:          make(map[core.PlotID]*entry),
		seen:          make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type plotConfig struct {
	with    []string
	without []string
	plotOpt []plot.Option
}

// PlotOption configures one AddPlot call
type PlotOption func(*plotConfig)

// WithEmpiricalPriors enables empirical priors that are off by default
func WithEmpiricalPriors(names ...string) PlotOption {
	return func(c *plotConfig) {
		c.with = append(c.with, names...)
	}
}

// WithoutEmpiricalPriors disables empirical priors that are on by default
func WithoutEmpiricalPriors(names ...string) PlotOption {
	return func(c *plotConfig) {
		c.without = append(c.without, names...)
	}
}

// WithPlotOptions forwards options to plot.New
func WithPlotOptions(opts ...plot.Option) PlotOption {
	return func(c *plotConfig) {
		c.plotOpt = append(c.plotOpt, opts...)
	}
}

// AddPlot registers a plot of one or two variables. priors override the
// chain's generation priors for the physical parameters they name; every
// other parameter keeps weight 1. All configuration errors surface here,
// before any data is read.
func (s *Stack) AddPlot(variables []string, priors []string, axes []plot.Axis, massOrdering bool, opts ...PlotOption) (*plot.Plot, error) {
	var cfg plotConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	for _, v := range variables {
		if _, ok := s.samples.Variable(v); !ok {
			return nil, fmt.Errorf("%w: %s is not defined for this chain", core.ErrUnknownVariable, v)
		}
	}

	e := &entry{}
	if len(priors) == 0 {
		log.Printf("[PlotStack] No priors supplied for plot %v, it stays uniform in the chain's own priors", variables)
	}
	parsed, err := s.graph.ParsePriors(priors, s.samples.Compulsory())
	if err != nil {
		return nil, err
	}
	e.priors = parsed
	for _, v := range s.samples.Compulsory() {
		target, ok := parsed[v]
		if !ok {
			continue
		}
		native, ok := s.samples.NativePrior(v)
		if !ok {
			return nil, fmt.Errorf("%w: %w: prior %s requested for %s but the chain publishes no generation prior for it",
				core.ErrConfiguration, core.ErrNoTransform, target, v)
		}
		w, err := s.graph.JacobianFunc(native, target)
		if err != nil {
			return nil, fmt.Errorf("plot %v, variable %s: %w", variables, v, err)
		}
		log.Printf("[PlotStack] Prior for %s in plot %v: %s -> %s", v, variables, native, target)
		if !w.Identity {
			e.jacobians = append(e.jacobians, varWeight{variable: v, weight: w})
		}
	}

	if e.empirical, err = s.selectEmpirical(cfg.with, cfg.without); err != nil {
		return nil, err
	}

	plotOpts := cfg.plotOpt
	needOrdering := massOrdering
	for _, ep := range e.empirical {
		if ep.Ordering() != prior.BothOrderings {
			needOrdering = true
		}
	}
	if needOrdering {
		e.ordering = s.samples.OrderingVariable()
		if _, ok := s.samples.Variable(e.ordering); !ok {
			return nil, fmt.Errorf("%w: mass ordering variable %s", core.ErrUnknownVariable, e.ordering)
		}
	}
	if massOrdering {
		plotOpts = append(plotOpts, plot.WithMassOrdering(e.ordering))
	}

	p, err := plot.New(variables, axes, plotOpts...)
	if err != nil {
		return nil, err
	}
	e.plot = p

	s.require(variables...)
	for _, jw := range e.jacobians {
		s.require(jw.variable)
	}
	for _, ep := range e.empirical {
		s.require(ep.Variables()...)
	}
	if e.ordering != "" {
		s.require(e.ordering)
	}

	s.entries = append(s.entries, e)
	s.byID[p.ID()] = e
	return p, nil
}

func (s *Stack) selectEmpirical(with, without []string) ([]*empirical.Prior, error) {
	for _, name := range append(append([]string(nil), with...), without...) {
		if _, ok := s.samples.EmpiricalPrior(name); !ok {
			return nil, fmt.Errorf("%w: unknown empirical prior %s", core.ErrConfiguration, name)
		}
	}
	on := make(map[string]bool)
	for _, ep := range s.samples.EmpiricalPriors() {
		on[ep.Name()] = ep.Default()
	}
	for _, name := range with {
		on[name] = true
	}
	for _, name := range without {
		on[name] = false
	}

	var out []*empirical.Prior
	for _, ep := range s.samples.EmpiricalPriors() {
		if on[ep.Name()] {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (s *Stack) require(names ...string) {
	for _, n := range names {
		if !s.seen[n] {
			s.seen[n] = true
			s.required = append(s.required, n)
		}
	}
}

// FillPlots streams up to maxSteps steps (all when maxSteps <= 0) in batches
// and fills every plot, then finalizes them. Any error aborts the run and
// leaves the stack partially filled.
func (s *Stack) FillPlots(ctx context.Context, maxSteps, batchSize int) error {
	it, err := s.samples.Source().Batches(ctx, batchSize, maxSteps)
	if err != nil {
		return fmt.Errorf("open chain: %w", err)
	}
	defer it.Close()

	start := time.Now()
	batches, steps := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read batch %d: %w", batches, err)
		}
		if err := s.fillBatch(batch); err != nil {
			return fmt.Errorf("batch %d: %w", batches, err)
		}
		batches++
		steps += batch.Len()
		if s.progressEvery > 0 && batches%s.progressEvery == 0 {
			log.Printf("[PlotStack] Processed %d batches (%d steps) in %.2fs", batches, steps, time.Since(start).Seconds())
		}
	}
	log.Printf("[PlotStack] Filled %d plots from %d steps in %.2fs", len(s.entries), steps, time.Since(start).Seconds())

	var errs []error
	for _, e := range s.entries {
		if d := e.plot.Dropped(); d > 0 {
			log.Printf("[PlotStack] Warning: plot %s dropped %d samples outside its axes", e.plot.Name(), d)
		}
		if err := e.plot.Finalize(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Stack) fillBatch(batch chain.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	if err := s.samples.Resolve(batch, s.required); err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, e := range s.entries {
		g.Go(func() error {
			w, err := e.weights(batch)
			if err != nil {
				return fmt.Errorf("plot %s: %w", e.plot.Name(), err)
			}
			return e.plot.Fill(batch, w)
		})
	}
	return g.Wait()
}

// weights composes the Jacobians and the gated empirical factors. It returns
// nil when every sample has weight 1.
func (e *entry) weights(batch chain.Batch) ([]float64, error) {
	if len(e.jacobians) == 0 && len(e.empirical) == 0 {
		return nil, nil
	}
	n := batch.Len()
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	for _, jw := range e.jacobians {
		col := batch[jw.variable]
		for i, x := range col {
			w[i] *= jw.weight.Eval(x)
		}
	}

	var ord []float64
	if e.ordering != "" {
		ord = batch[e.ordering]
	}
	for _, ep := range e.empirical {
		f, err := ep.Weights(batch, ord)
		if err != nil {
			return nil, err
		}
		for i, v := range f {
			w[i] *= v
		}
	}
	return w, nil
}

// MakeIntervals computes HPD regions at the same levels for every plot
func (s *Stack) MakeIntervals(levels []float64) error {
	var errs []error
	for _, e := range s.entries {
		if _, err := e.plot.MakeIntervals(levels); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Plots returns the plots in registration order
func (s *Stack) Plots() []*plot.Plot {
	out := make([]*plot.Plot, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.plot
	}
	return out
}

// Plot looks up a plot by id
func (s *Stack) Plot(id core.PlotID) (*plot.Plot, bool) {
	e, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return e.plot, true
}

// Info describes the reweighting applied to a plot
type Info struct {
	Priors    []string
	Empirical []string
}

// Info returns the priors and empirical priors attached to a plot
func (s *Stack) Info(id core.PlotID) (Info, bool) {
	e, ok := s.byID[id]
	if !ok {
		return Info{}, false
	}
	var info Info
	vars := make([]string, 0, len(e.priors))
	for v := range e.priors {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	for _, v := range vars {
		info.Priors = append(info.Priors, fmt.Sprintf("%s=%s", v, e.priors[v]))
	}
	for _, ep := range e.empirical {
		info.Empirical = append(info.Empirical, ep.Name())
	}
	return info, true
}

// Required lists the variables every batch is resolved to, in first-use order
func (s *Stack) Required() []string { return append([]string(nil), s.required...) }

// Citation returns the provenance string of the underlying chain
func (s *Stack) Citation() string { return s.samples.Citation() }
