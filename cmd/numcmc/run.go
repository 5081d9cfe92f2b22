package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"text/tabwriter"

	"numcmc/adapters/api"
	"numcmc/adapters/excel"
	"numcmc/adapters/memory"
	"numcmc/adapters/postgres"
	"numcmc/domain/chain"
	"numcmc/domain/core"
	"numcmc/internal/config"
	"numcmc/internal/errors"
	"numcmc/internal/jacobian"
	"numcmc/internal/job"
	"numcmc/internal/oscillation"
	"numcmc/internal/plotstack"
	"numcmc/internal/report"
	"numcmc/internal/samples"
	"numcmc/internal/testkit"
	"numcmc/ports"
)

// demoJob is run by the demo command when no job file is given
const demoJob = `{
  "levels": [0.68, 0.95],
  "priors": ["Uniform:sin^2(Theta23)", "Uniform:sin^2(2Theta13)"],
  "plots": [
    {"variables": ["SinSqTheta23"], "bins": [40], "range": [[0.3, 0.7]], "mass_ordering": true},
    {"variables": ["DeltaCP"], "bins": [36], "range": [[-3.14159265, 3.14159265]], "mass_ordering": true},
    {"variables": ["SinSqTheta23", "DeltaCP"], "bins": [20, 18],
     "range": [[0.3, 0.7], [-3.14159265, 3.14159265]], "empirical": ["reactor"]}
  ]
}`

type demoOptions struct {
	jobPath    string
	format     string
	steps      int
	seed       int64
	exportFile string
	exportDB   bool
}

// session is one opened chain with its plot stack
type session struct {
	cfg     *config.Config
	samples *samples.Samples
	stack   *plotstack.Stack
	close   func() error
}

// openSource picks the chain backend: an explicit file wins, then the
// database, then the configured file
func openSource(ctx context.Context, cfg *config.Config, chainPath string) (ports.ChainSource, func() error, error) {
	noop := func() error { return nil }
	switch {
	case chainPath != "":
		src, err := excel.NewChainReader(excel.DefaultChainConfig(chainPath))
		return src, noop, err
	case cfg.Database.URL != "":
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		src, err := postgres.NewChainSource(ctx, db, cfg.Chain.Table)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return src, db.Close, nil
	case cfg.Chain.File != "":
		src, err := excel.NewChainReader(excel.DefaultChainConfig(cfg.Chain.File))
		return src, noop, err
	}
	return nil, nil, errors.ConfigInvalid("no chain configured: pass --chain or set NUMCMC_CHAIN_FILE or DATABASE_URL")
}

func newSession(cfg *config.Config, src ports.ChainSource, closer func() error) (*session, error) {
	graph := jacobian.NewGraph()
	smp, err := samples.New(src, graph, samples.WithOrderingVariable(cfg.Engine.OrderingVariable))
	if err != nil {
		closer()
		return nil, errors.Wrap(err, "failed to open chain session")
	}
	if err := oscillation.Register(smp); err != nil {
		closer()
		return nil, errors.Wrap(err, "failed to register derived variables")
	}
	stack := plotstack.New(smp, graph,
		plotstack.WithWorkers(cfg.Engine.Workers),
		plotstack.WithProgressEvery(cfg.Engine.ProgressEvery))
	return &session{cfg: cfg, samples: smp, stack: stack, close: closer}, nil
}

func openSession(ctx context.Context, chainPath string) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	src, closer, err := openSource(ctx, cfg, chainPath)
	if err != nil {
		return nil, err
	}
	return newSession(cfg, src, closer)
}

// levels returns the job's levels when it names any, else the configured ones
func (s *session) levels(j *job.Job) []float64 {
	if len(j.Levels) > 0 {
		return j.Levels
	}
	return s.cfg.Engine.Levels
}

// run registers the job's plots, fills them and computes intervals. Empty
// plots and unreachable levels are logged and left out of the report.
func (s *session) run(ctx context.Context, j *job.Job) error {
	if _, err := j.Apply(s.stack); err != nil {
		return err
	}
	if err := s.stack.FillPlots(ctx, s.cfg.Engine.MaxSteps, s.cfg.Engine.BatchSize); err != nil {
		if !stderrors.Is(err, core.ErrEmptyHistogram) {
			return errors.Wrap(err, "failed to fill plots")
		}
		log.Printf("Warning: %v", err)
	}
	if err := s.stack.MakeIntervals(s.levels(j)); err != nil {
		if !core.IsDegenerateError(err) {
			return errors.Wrap(err, "failed to compute intervals")
		}
		log.Printf("Warning: %v", err)
	}
	return nil
}

func (s *session) report(ctx context.Context, w io.Writer, j *job.Job, format string) error {
	out, err := report.NewReader(s.stack, s.levels(j)).Report(ctx, ports.ReportFormat(format))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func runFill(ctx context.Context, w io.Writer, jobPath, chainPath, format string) error {
	j, err := job.Load(jobPath)
	if err != nil {
		return err
	}
	s, err := openSession(ctx, chainPath)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.run(ctx, j); err != nil {
		return err
	}
	return s.report(ctx, w, j, format)
}

func runServe(ctx context.Context, jobPath, chainPath string) error {
	j, err := job.Load(jobPath)
	if err != nil {
		return err
	}
	s, err := openSession(ctx, chainPath)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.run(ctx, j); err != nil {
		return err
	}
	server := api.NewServer(report.NewReader(s.stack, s.levels(j)), s.cfg.Server.GinMode)
	return server.Run(ctx, ":"+s.cfg.Server.Port)
}

func runDescribe(ctx context.Context, w io.Writer, chainPath string, names []string) error {
	s, err := openSession(ctx, chainPath)
	if err != nil {
		return err
	}
	defer s.close()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIABLE\tCOUNT\tMEAN\tSTDDEV\tMEDIAN\tP05\tP95\tMIN\tMAX")
	for _, name := range names {
		sum, err := s.samples.Describe(ctx, name, s.cfg.Engine.BatchSize, s.cfg.Engine.MaxSteps)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\t%.6g\t%.6g\t%.6g\t%.6g\t%.6g\t%.6g\t%.6g\n", sum.Variable, sum.Count,
			sum.Mean, sum.StdDev, sum.Median, sum.P05, sum.P95, sum.Min, sum.Max)
	}
	return tw.Flush()
}

func runCatalogue(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tINVERTIBLE")
	for _, p := range jacobian.NewGraph().Pairs() {
		if p.Identity {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\n", p.From, p.To, p.Invertible)
	}
	return tw.Flush()
}

func runDemo(ctx context.Context, w io.Writer, opts demoOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var j *job.Job
	if opts.jobPath != "" {
		j, err = job.Load(opts.jobPath)
	} else {
		j, err = job.Parse([]byte(demoJob))
	}
	if err != nil {
		return err
	}

	genCfg := testkit.DefaultChainConfig()
	genCfg.Steps = opts.steps
	genCfg.Seed = opts.seed
	published := testkit.NewChainGenerator(genCfg).Published()
	if err := exportDemo(ctx, cfg, opts, published); err != nil {
		return err
	}

	src, err := memory.FromPublished(published)
	if err != nil {
		return err
	}
	s, err := newSession(cfg, src, func() error { return nil })
	if err != nil {
		return err
	}
	if err := s.run(ctx, j); err != nil {
		return err
	}
	return s.report(ctx, w, j, opts.format)
}

func exportDemo(ctx context.Context, cfg *config.Config, opts demoOptions, published chain.Published) error {
	if opts.exportFile != "" {
		if err := excel.WriteChain(excel.DefaultChainConfig(opts.exportFile), published); err != nil {
			return errors.Wrap(err, "failed to export chain")
		}
		log.Printf("Wrote synthetic chain to %s", opts.exportFile)
	}
	if opts.exportDB {
		if cfg.Database.URL == "" {
			return errors.ConfigInvalid("--export-db needs DATABASE_URL")
		}
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.SaveChain(ctx, db, cfg.Chain.Table, published); err != nil {
			return err
		}
		log.Printf("Saved synthetic chain to table %s", cfg.Chain.Table)
	}
	return nil
}
