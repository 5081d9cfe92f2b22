// Package report renders the filled plots of a stack as a Markdown interval
// report, optionally converted to HTML.
package report

import (
	"fmt"
	"strings"

	"numcmc/domain/prior"
	"numcmc/internal/plot"
	"numcmc/internal/plotstack"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Build writes one section per plot: priors, mass fractions per ordering,
// mode, mean, and for every level the threshold with the credible ranges
// (1D) or the region area (2D). Intervals are computed at levels on any
// finalized plot; plots that cannot be summarized say why.
func Build(stack *plotstack.Stack, levels []float64, citation string) string {
	var b strings.Builder
	b.WriteString("# Credible intervals\n\n")
	if citation != "" {
		fmt.Fprintf(&b, "Chain: %s\n\n", citation)
	}

	for i, p := range stack.Plots() {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, p.Name())
		if info, ok := stack.Info(p.ID()); ok {
			writeInfo(&b, info)
		}
		if err := writePlot(&b, p, levels); err != nil {
			fmt.Fprintf(&b, "No density: %v\n\n", err)
		}
	}
	return b.String()
}

func writeInfo(b *strings.Builder, info plotstack.Info) {
	if len(info.Priors) > 0 {
		fmt.Fprintf(b, "- Priors: `%s`\n", strings.Join(info.Priors, "`, `"))
	} else {
		b.WriteString("- Priors: chain generation priors\n")
	}
	if len(info.Empirical) > 0 {
		fmt.Fprintf(b, "- Empirical priors: %s\n", strings.Join(info.Empirical, ", "))
	}
}

func writePlot(b *strings.Builder, p *plot.Plot, levels []float64) error {
	mode, err := p.Mode()
	if err != nil {
		return err
	}
	mean, err := p.Mean()
	if err != nil {
		return err
	}

	if _, split := p.MassOrdering(); split {
		fmt.Fprintf(b, "- Mass ordering: NO %.3f, IO %.3f\n",
			p.Mass(prior.NormalOrdering), p.Mass(prior.InvertedOrdering))
	}
	fmt.Fprintf(b, "- Mode: %s\n", formatPoint(mode))
	fmt.Fprintf(b, "- Mean: %s\n", formatPoint(mean))
	if d := p.Dropped(); d > 0 {
		fmt.Fprintf(b, "- Samples outside the axes: %d\n", d)
	}
	b.WriteString("\n")

	iv, ok := p.Intervals()
	if !ok || !iv.HasLevels(levels) {
		if iv, err = p.MakeIntervals(levels); err != nil {
			return err
		}
	}

	if p.Dims() == 1 {
		b.WriteString("| Level | Threshold | Credible ranges |\n|---|---|---|\n")
	} else {
		b.WriteString("| Level | Threshold | Region area |\n|---|---|---|\n")
	}
	// ascending reads better than the internal order
	for i := len(iv.Levels) - 1; i >= 0; i-- {
		level := iv.Levels[i]
		var cell string
		if p.Dims() == 1 {
			ranges, err := p.CredibleRanges(level)
			if err != nil {
				return err
			}
			cell = formatRanges(ranges)
		} else {
			area, err := p.RegionArea(level)
			if err != nil {
				return err
			}
			cell = fmt.Sprintf("%.4g", area)
		}
		fmt.Fprintf(b, "| %.4g | %.4g | %s |\n", level, iv.Thresholds[i], cell)
	}
	b.WriteString("\n")
	return nil
}

func formatPoint(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.4g", x)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatRanges(ranges []plot.Range) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = fmt.Sprintf("[%.4g, %.4g]", r.Lo, r.Hi)
	}
	return strings.Join(parts, " ∪ ")
}

// HTML renders a Markdown report as a complete HTML page
func HTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Credible intervals",
	})
	return string(markdown.Render(doc, renderer))
}
