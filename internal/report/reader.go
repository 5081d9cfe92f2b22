package report

import (
	"context"
	"fmt"

	"numcmc/domain/core"
	"numcmc/domain/prior"
	"numcmc/internal/errors"
	"numcmc/internal/plot"
	"numcmc/internal/plotstack"
	"numcmc/ports"
)

// Reader serves a filled stack read-only
type Reader struct {
	stack  *plotstack.Stack
	levels []float64
}

// NewReader creates a reader; levels are used for the interval report
func NewReader(stack *plotstack.Stack, levels []float64) *Reader {
	return &Reader{stack: stack, levels: append([]float64(nil), levels...)}
}

var _ ports.ResultsReader = (*Reader)(nil)

// ListPlots implements ports.ResultsReader
func (r *Reader) ListPlots(ctx context.Context) ([]ports.PlotSummary, error) {
	plots := r.stack.Plots()
	out := make([]ports.PlotSummary, 0, len(plots))
	for _, p := range plots {
		out = append(out, r.summary(p))
	}
	return out, nil
}

// GetPlot implements ports.ResultsReader
func (r *Reader) GetPlot(ctx context.Context, id core.PlotID) (*ports.PlotDetail, error) {
	p, ok := r.stack.Plot(id)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("plot %s", id))
	}
	if !p.Finalized() {
		return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("plot %s has not been filled", id))
	}

	detail := &ports.PlotDetail{
		PlotSummary: r.summary(p),
		Edges:       p.Edges(),
		Density:     p.Density(),
		Mass:        map[string]float64{"total": p.Total()},
		Dropped:     p.Dropped(),
	}
	if _, split := p.MassOrdering(); split {
		detail.NormalDensity, _ = p.PartitionDensity(prior.NormalOrdering)
		detail.InvertedDensity, _ = p.PartitionDensity(prior.InvertedOrdering)
		detail.Mass[prior.NormalOrdering.String()] = p.Mass(prior.NormalOrdering)
		detail.Mass[prior.InvertedOrdering.String()] = p.Mass(prior.InvertedOrdering)
	}
	if iv, ok := p.Intervals(); ok {
		detail.Levels = iv.Levels
		detail.Thresholds = iv.Thresholds
		detail.LevelMap = iv.LevelMap
	}
	return detail, nil
}

// Report implements ports.ResultsReader
func (r *Reader) Report(ctx context.Context, format ports.ReportFormat) (string, error) {
	md := Build(r.stack, r.levels, r.stack.Citation())
	switch format {
	case ports.ReportMarkdown, "":
		return md, nil
	case ports.ReportHTML:
		return HTML(md), nil
	}
	return "", errors.InvalidInput(fmt.Sprintf("unknown report format %q", format))
}

func (r *Reader) summary(p *plot.Plot) ports.PlotSummary {
	_, split := p.MassOrdering()
	s := ports.PlotSummary{
		ID:           p.ID(),
		Variables:    p.Variables(),
		Dims:         p.Dims(),
		MassOrdering: split,
	}
	if info, ok := r.stack.Info(p.ID()); ok {
		s.Priors = info.Priors
		s.Empirical = info.Empirical
	}
	return s
}
