// Package job reads the JSON job file that lists the plots to build and
// applies it to a plot stack.
package job

import (
	"fmt"
	"os"

	"numcmc/domain/core"

	"github.com/tidwall/gjson"
)

// Job is a parsed job file
type Job struct {
	Levels []float64
	Priors []string
	Plots  []Plot
}

// Plot describes one plot. Either Bins with Range or Edges gives each axis.
type Plot struct {
	Variables    []string
	Bins         []int
	Range        [][2]float64
	Edges        [][]float64
	MassOrdering bool
	Priors       []string
	Empirical    []string
	Without      []string
}

// Load reads and parses a job file
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a job document
func Parse(data []byte) (*Job, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", core.ErrMalformedJob)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: top level must be an object", core.ErrMalformedJob)
	}

	j := &Job{}
	var err error
	if j.Levels, err = floatList(doc.Get("levels"), "levels"); err != nil {
		return nil, err
	}
	if j.Priors, err = stringList(doc.Get("priors"), "priors"); err != nil {
		return nil, err
	}

	plots := doc.Get("plots")
	if !plots.IsArray() || len(plots.Array()) == 0 {
		return nil, fmt.Errorf("%w: plots must be a non-empty array", core.ErrMalformedJob)
	}
	for i, p := range plots.Array() {
		plot, err := parsePlot(p)
		if err != nil {
			return nil, fmt.Errorf("plot %d: %w", i, err)
		}
		j.Plots = append(j.Plots, plot)
	}
	return j, nil
}

func parsePlot(r gjson.Result) (Plot, error) {
	if !r.IsObject() {
		return Plot{}, fmt.Errorf("%w: plot must be an object", core.ErrMalformedJob)
	}
	var p Plot
	var err error
	if p.Variables, err = stringList(r.Get("variables"), "variables"); err != nil {
		return Plot{}, err
	}
	if len(p.Variables) == 0 {
		return Plot{}, fmt.Errorf("%w: variables are required", core.ErrMalformedJob)
	}
	if p.Priors, err = stringList(r.Get("priors"), "priors"); err != nil {
		return Plot{}, err
	}
	if p.Empirical, err = stringList(r.Get("empirical"), "empirical"); err != nil {
		return Plot{}, err
	}
	if p.Without, err = stringList(r.Get("without"), "without"); err != nil {
		return Plot{}, err
	}
	if mo := r.Get("mass_ordering"); mo.Exists() {
		if mo.Type != gjson.True && mo.Type != gjson.False {
			return Plot{}, fmt.Errorf("%w: mass_ordering must be a boolean", core.ErrMalformedJob)
		}
		p.MassOrdering = mo.Bool()
	}

	edges, hasEdges := r.Get("edges"), r.Get("edges").Exists()
	bins, hasBins := r.Get("bins"), r.Get("bins").Exists()
	switch {
	case hasEdges && hasBins:
		return Plot{}, fmt.Errorf("%w: give either edges or bins with range, not both", core.ErrMalformedJob)
	case hasEdges:
		if !edges.IsArray() {
			return Plot{}, fmt.Errorf("%w: edges must be an array of arrays", core.ErrMalformedJob)
		}
		for _, e := range edges.Array() {
			list, err := floatList(e, "edges")
			if err != nil {
				return Plot{}, err
			}
			p.Edges = append(p.Edges, list)
		}
		if len(p.Edges) != len(p.Variables) {
			return Plot{}, fmt.Errorf("%w: %d edge lists for %d variables", core.ErrMalformedJob, len(p.Edges), len(p.Variables))
		}
	case hasBins:
		if p.Bins, err = intList(bins, "bins"); err != nil {
			return Plot{}, err
		}
		rng := r.Get("range")
		if !rng.IsArray() {
			return Plot{}, fmt.Errorf("%w: bins need a range", core.ErrMalformedJob)
		}
		for _, pair := range rng.Array() {
			list, err := floatList(pair, "range")
			if err != nil {
				return Plot{}, err
			}
			if len(list) != 2 {
				return Plot{}, fmt.Errorf("%w: range entries are [min, max]", core.ErrMalformedJob)
			}
			p.Range = append(p.Range, [2]float64{list[0], list[1]})
		}
		if len(p.Bins) != len(p.Variables) || len(p.Range) != len(p.Variables) {
			return Plot{}, fmt.Errorf("%w: bins and range need one entry per variable", core.ErrMalformedJob)
		}
	default:
		return Plot{}, fmt.Errorf("%w: plot needs edges or bins with range", core.ErrMalformedJob)
	}
	return p, nil
}

func stringList(r gjson.Result, field string) ([]string, error) {
	if !r.Exists() {
		return nil, nil
	}
	if !r.IsArray() {
		return nil, fmt.Errorf("%w: %s must be an array of strings", core.ErrMalformedJob, field)
	}
	var out []string
	for _, v := range r.Array() {
		if v.Type != gjson.String {
			return nil, fmt.Errorf("%w: %s must be an array of strings", core.ErrMalformedJob, field)
		}
		out = append(out, v.String())
	}
	return out, nil
}

func floatList(r gjson.Result, field string) ([]float64, error) {
	if !r.Exists() {
		return nil, nil
	}
	if !r.IsArray() {
		return nil, fmt.Errorf("%w: %s must be an array of numbers", core.ErrMalformedJob, field)
	}
	var out []float64
	for _, v := range r.Array() {
		if v.Type != gjson.Number {
			return nil, fmt.Errorf("%w: %s must be an array of numbers", core.ErrMalformedJob, field)
		}
		out = append(out, v.Float())
	}
	return out, nil
}

func intList(r gjson.Result, field string) ([]int, error) {
	floats, err := floatList(r, field)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(floats))
	for i, f := range floats {
		if f != float64(int(f)) {
			return nil, fmt.Errorf("%w: %s must be whole numbers", core.ErrMalformedJob, field)
		}
		out[i] = int(f)
	}
	return out, nil
}
