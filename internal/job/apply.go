package job

import (
	"fmt"
	"log"

	"numcmc/internal/plot"
	"numcmc/internal/plotstack"
)

// Axes builds the plot axes a job entry describes
func (p Plot) Axes() ([]plot.Axis, error) {
	axes := make([]plot.Axis, len(p.Variables))
	for i := range p.Variables {
		var err error
		if p.Edges != nil {
			axes[i], err = plot.EdgeAxis(p.Edges[i])
		} else {
			axes[i], err = plot.UniformAxis(p.Bins[i], p.Range[i][0], p.Range[i][1])
		}
		if err != nil {
			return nil, fmt.Errorf("axis %s: %w", p.Variables[i], err)
		}
	}
	return axes, nil
}

// Apply registers every plot of the job on the stack. A plot's own priors
// replace the job-level list when non-empty.
func (j *Job) Apply(stack *plotstack.Stack) ([]*plot.Plot, error) {
	var out []*plot.Plot
	for i, p := range j.Plots {
		axes, err := p.Axes()
		if err != nil {
			return nil, fmt.Errorf("plot %d: %w", i, err)
		}
		priors := j.Priors
		if len(p.Priors) > 0 {
			priors = p.Priors
		}
		var opts []plotstack.PlotOption
		if len(p.Empirical) > 0 {
			opts = append(opts, plotstack.WithEmpiricalPriors(p.Empirical...))
		}
		if len(p.Without) > 0 {
			opts = append(opts, plotstack.WithoutEmpiricalPriors(p.Without...))
		}
		pl, err := stack.AddPlot(p.Variables, priors, axes, p.MassOrdering, opts...)
		if err != nil {
			return nil, fmt.Errorf("plot %d (%v): %w", i, p.Variables, err)
		}
		out = append(out, pl)
	}
	log.Printf("[Job] Registered %d plots", len(out))
	return out, nil
}
