package ports

import (
	"context"

	"numcmc/domain/core"
)

// ResultsReader provides read-only access to filled plots for the API
type ResultsReader interface {
	ListPlots(ctx context.Context) ([]PlotSummary, error)
	GetPlot(ctx context.Context, id core.PlotID) (*PlotDetail, error)
	Report(ctx context.Context, format ReportFormat) (string, error)
}

// ReportFormat selects the rendering of the interval report
type ReportFormat string

const (
	ReportMarkdown ReportFormat = "md"
	ReportHTML     ReportFormat = "html"
)

// PlotSummary is the list view of a plot
type PlotSummary struct {
	ID           core.PlotID `json:"id"`
	Variables    []string    `json:"variables"`
	Dims         int         `json:"dims"`
	MassOrdering bool        `json:"mass_ordering"`
	Priors       []string    `json:"priors,omitempty"`
	Empirical    []string    `json:"empirical,omitempty"`
}

// PlotDetail carries everything a renderer needs to draw a plot
type PlotDetail struct {
	PlotSummary

	Edges           [][]float64        `json:"edges"`
	Density         []float64          `json:"density"`
	NormalDensity   []float64          `json:"normal_density,omitempty"`
	InvertedDensity []float64          `json:"inverted_density,omitempty"`
	Mass            map[string]float64 `json:"mass"`
	Dropped         int64              `json:"dropped"`

	// HPD results, present once intervals were computed
	Levels     []float64   `json:"levels,omitempty"`
	Thresholds []float64   `json:"thresholds,omitempty"`
	LevelMap   [][]float64 `json:"level_map,omitempty"`
}
