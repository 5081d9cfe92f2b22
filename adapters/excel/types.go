package excel

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"numcmc/domain/core"
	"numcmc/domain/prior"
	"numcmc/domain/surface"
)

// chainMeta is everything published alongside the samples
type chainMeta struct {
	headers  []string
	priors   map[string]string
	surfaces map[string]surface.Surface
	citation string
}

// parseHeader trims the header row and rejects empty or repeated names
func parseHeader(row []string) ([]string, error) {
	headers := make([]string, len(row))
	seen := make(map[string]bool, len(row))
	for i, h := range row {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("%w: empty header in column %d", core.ErrMissingColumn, i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("%w: column %s", core.ErrDuplicateName, h)
		}
		seen[h] = true
		headers[i] = h
	}
	return headers, nil
}

// parsePriorRows reads (variable, prior) rows; a header row is skipped
func parsePriorRows(rows [][]string) (map[string]string, error) {
	priors := make(map[string]string)
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		v, p := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		if i == 0 && strings.EqualFold(v, "variable") {
			continue
		}
		if v == "" || p == "" {
			continue
		}
		if _, dup := priors[v]; dup {
			return nil, fmt.Errorf("%w: prior for %s listed twice", core.ErrDuplicateName, v)
		}
		priors[v] = p
	}
	return priors, nil
}

// parseSurfaceRows reads surfaces stored in long form, one grid point per
// row: constraint, x, y, value. y is empty for 1D surfaces.
func parseSurfaceRows(rows [][]string) (map[string]surface.Surface, error) {
	points := make(map[string][]surface.Point)
	dims := make(map[string]int)
	for i, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		name := strings.TrimSpace(row[0])
		if i == 0 && strings.EqualFold(name, "constraint") {
			continue
		}
		cell := func(j int) string {
			if j < len(row) {
				return strings.TrimSpace(row[j])
			}
			return ""
		}
		d := 2
		if cell(2) == "" {
			d = 1
		}
		if prev, ok := dims[name]; ok && prev != d {
			return nil, fmt.Errorf("%w: %s mixes 1D and 2D rows", core.ErrInvalidSurface, name)
		}
		dims[name] = d

		var p surface.Point
		var err error
		if p.X, err = strconv.ParseFloat(cell(1), 64); err != nil {
			return nil, fmt.Errorf("%w: %s row %d: x: %v", core.ErrInvalidSurface, name, i+1, err)
		}
		if d == 2 {
			if p.Y, err = strconv.ParseFloat(cell(2), 64); err != nil {
				return nil, fmt.Errorf("%w: %s row %d: y: %v", core.ErrInvalidSurface, name, i+1, err)
			}
		}
		if p.Value, err = strconv.ParseFloat(cell(3), 64); err != nil {
			return nil, fmt.Errorf("%w: %s row %d: value: %v", core.ErrInvalidSurface, name, i+1, err)
		}
		points[name] = append(points[name], p)
	}

	out := make(map[string]surface.Surface, len(points))
	for constraint, pts := range points {
		cn, err := prior.ParseConstraintName(constraint)
		if err != nil {
			return nil, err
		}
		s, err := surface.FromPoints(cn.Name, dims[constraint], pts)
		if err != nil {
			return nil, err
		}
		out[constraint] = s
	}
	return out, nil
}

// surfaceRows is the inverse of parseSurfaceRows, with a header row
func surfaceRows(surfaces map[string]surface.Surface) [][]string {
	names := make([]string, 0, len(surfaces))
	for n := range surfaces {
		names = append(names, n)
	}
	sort.Strings(names)

	rows := [][]string{{"constraint", "x", "y", "value"}}
	for _, n := range names {
		s := surfaces[n]
		for _, p := range s.Points() {
			y := ""
			if s.Dims() == 2 {
				y = formatFloat(p.Y)
			}
			rows = append(rows, []string{n, formatFloat(p.X), y, formatFloat(p.Value)})
		}
	}
	return rows
}

func priorRows(priors map[string]string) [][]string {
	vars := make([]string, 0, len(priors))
	for v := range priors {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	rows := [][]string{{"variable", "prior"}}
	for _, v := range vars {
		rows = append(rows, []string{v, priors[v]})
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// parseRow converts one data row into numbers, column by column
func parseRow(headers []string, row []string, line int) ([]float64, error) {
	out := make([]float64, len(headers))
	for j, h := range headers {
		if j >= len(row) || strings.TrimSpace(row[j]) == "" {
			return nil, fmt.Errorf("%w: row %d has no value for %s", core.ErrBatchShape, line, h)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d column %s: %w", line, h, err)
		}
		out[j] = v
	}
	return out, nil
}
