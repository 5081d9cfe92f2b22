// Package excel reads MCMC chains stored as XLSX workbooks or CSV files.
//
// A workbook holds the samples on the chain sheet (header row of column
// names, one step per row), the generation priors on the priors sheet
// (variable, prior), tabulated empirical surfaces on the surfaces sheet
// (constraint, x, y, value) and a citation in A1 of the citation sheet. A
// CSV chain keeps the same metadata in sidecar files next to it.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"numcmc/domain/chain"
	"numcmc/domain/surface"
	"numcmc/internal/errors"
	"numcmc/ports"

	"github.com/xuri/excelize/v2"
)

// ChainReader streams a chain from an XLSX or CSV file
type ChainReader struct {
	config   ChainConfig
	fileType string
	meta     chainMeta
}

// NewChainReader opens the file and reads its header and metadata. Samples
// are only read when batches are requested.
func NewChainReader(config ChainConfig) (*ChainReader, error) {
	r := &ChainReader{config: config, fileType: config.fileType()}
	log.Printf("[ChainReader] Opening %s chain: %s", r.fileType, config.FilePath)

	if _, err := os.Stat(config.FilePath); os.IsNotExist(err) {
		return nil, errors.SourceError(config.FilePath, fmt.Errorf("%s file not found", strings.ToUpper(r.fileType)))
	}

	start := time.Now()
	var err error
	switch r.fileType {
	case "csv":
		err = r.readCSVMeta()
	default:
		err = r.readExcelMeta()
	}
	if err != nil {
		return nil, errors.SourceError(config.FilePath, err)
	}
	log.Printf("[ChainReader] Metadata read in %.2fms (%d columns, %d priors, %d surfaces)",
		float64(time.Since(start).Nanoseconds())/1e6, len(r.meta.headers), len(r.meta.priors), len(r.meta.surfaces))
	return r, nil
}

func (r *ChainReader) readExcelMeta() error {
	f, err := excelize.OpenFile(r.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.chainSheet(f)
	rows, err := f.Rows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return fmt.Errorf("sheet %s has no header row", sheet)
	}
	header, err := rows.Columns()
	if err != nil {
		return err
	}
	if r.meta.headers, err = parseHeader(header); err != nil {
		return err
	}

	if r.hasSheet(f, r.config.PriorsSheet) {
		prows, err := f.GetRows(r.config.PriorsSheet)
		if err != nil {
			return err
		}
		if r.meta.priors, err = parsePriorRows(prows); err != nil {
			return err
		}
	}
	if r.hasSheet(f, r.config.SurfacesSheet) {
		srows, err := f.GetRows(r.config.SurfacesSheet)
		if err != nil {
			return err
		}
		if r.meta.surfaces, err = parseSurfaceRows(srows); err != nil {
			return err
		}
	}
	if r.hasSheet(f, r.config.CitationSheet) {
		c, err := f.GetCellValue(r.config.CitationSheet, "A1")
		if err != nil {
			return err
		}
		r.meta.citation = strings.TrimSpace(c)
	}
	return nil
}

// chainSheet falls back to the first sheet when the configured one is absent
func (r *ChainReader) chainSheet(f *excelize.File) string {
	if r.hasSheet(f, r.config.ChainSheet) {
		return r.config.ChainSheet
	}
	return f.GetSheetName(0)
}

func (r *ChainReader) hasSheet(f *excelize.File, name string) bool {
	if name == "" {
		return false
	}
	idx, err := f.GetSheetIndex(name)
	return err == nil && idx >= 0
}

func (r *ChainReader) readCSVMeta() error {
	file, err := os.Open(r.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	header, err := csv.NewReader(file).Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	if r.meta.headers, err = parseHeader(header); err != nil {
		return err
	}

	if rows, err := readOptionalCSV(r.config.sidecar("priors", ".csv")); err != nil {
		return err
	} else if rows != nil {
		if r.meta.priors, err = parsePriorRows(rows); err != nil {
			return err
		}
	}
	if rows, err := readOptionalCSV(r.config.sidecar("surfaces", ".csv")); err != nil {
		return err
	} else if rows != nil {
		if r.meta.surfaces, err = parseSurfaceRows(rows); err != nil {
			return err
		}
	}
	if data, err := os.ReadFile(r.config.sidecar("citation", ".txt")); err == nil {
		r.meta.citation = strings.TrimSpace(string(data))
	} else if !os.IsNotExist(err) {
		return err
	}
	return nil
}

func readOptionalCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}

// Columns implements ports.ChainSource
func (r *ChainReader) Columns() []string { return append([]string(nil), r.meta.headers...) }

// Priors implements ports.ChainSource
func (r *ChainReader) Priors() map[string]string {
	out := make(map[string]string, len(r.meta.priors))
	for k, v := range r.meta.priors {
		out[k] = v
	}
	return out
}

// Surfaces implements ports.ChainSource
func (r *ChainReader) Surfaces() map[string]surface.Surface {
	out := make(map[string]surface.Surface, len(r.meta.surfaces))
	for k, v := range r.meta.surfaces {
		out[k] = v
	}
	return out
}

// Citation implements ports.ChainSource
func (r *ChainReader) Citation() string { return r.meta.citation }

// Batches implements ports.ChainSource. Each call reopens the file and
// streams rows without loading the sheet.
func (r *ChainReader) Batches(ctx context.Context, batchSize, maxSteps int) (ports.BatchIterator, error) {
	if batchSize < 1 {
		return nil, errors.InvalidInput(fmt.Sprintf("batch size must be positive, got %d", batchSize))
	}

	var rows rowSource
	switch r.fileType {
	case "csv":
		file, err := os.Open(r.config.FilePath)
		if err != nil {
			return nil, errors.SourceError(r.config.FilePath, err)
		}
		reader := csv.NewReader(file)
		reader.ReuseRecord = true
		if _, err := reader.Read(); err != nil {
			file.Close()
			return nil, errors.SourceError(r.config.FilePath, err)
		}
		rows = &csvRows{file: file, reader: reader}
	default:
		f, err := excelize.OpenFile(r.config.FilePath)
		if err != nil {
			return nil, errors.SourceError(r.config.FilePath, err)
		}
		xr, err := f.Rows(r.chainSheet(f))
		if err != nil {
			f.Close()
			return nil, errors.SourceError(r.config.FilePath, err)
		}
		if !xr.Next() {
			f.Close()
			return nil, errors.SourceError(r.config.FilePath, fmt.Errorf("chain sheet has no header row"))
		}
		rows = &xlsxRows{file: f, rows: xr}
	}

	return &iterator{
		path:     r.config.FilePath,
		headers:  r.meta.headers,
		rows:     rows,
		size:     batchSize,
		maxSteps: maxSteps,
		line:     1,
	}, nil
}

var _ ports.ChainSource = (*ChainReader)(nil)

// rowSource yields raw data rows; io.EOF ends the stream
type rowSource interface {
	next() ([]string, error)
	close() error
}

type csvRows struct {
	file   *os.File
	reader *csv.Reader
}

func (c *csvRows) next() ([]string, error) { return c.reader.Read() }
func (c *csvRows) close() error            { return c.file.Close() }

type xlsxRows struct {
	file *excelize.File
	rows *excelize.Rows
}

func (x *xlsxRows) next() ([]string, error) {
	if !x.rows.Next() {
		if err := x.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return x.rows.Columns(excelize.Options{RawCellValue: true})
}

func (x *xlsxRows) close() error {
	x.rows.Close()
	return x.file.Close()
}

type iterator struct {
	path     string
	headers  []string
	rows     rowSource
	size     int
	maxSteps int
	read     int
	line     int
	done     bool
}

func (it *iterator) Next(ctx context.Context) (chain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.done {
		return nil, io.EOF
	}

	want := it.size
	if it.maxSteps > 0 {
		want = min(want, it.maxSteps-it.read)
	}
	cols := make([][]float64, len(it.headers))
	n := 0
	for n < want {
		raw, err := it.rows.next()
		if err == io.EOF {
			it.done = true
			break
		}
		if err != nil {
			return nil, errors.SourceError(it.path, err)
		}
		it.line++
		if blank(raw) {
			continue
		}
		vals, err := parseRow(it.headers, raw, it.line)
		if err != nil {
			return nil, errors.SourceError(it.path, err)
		}
		for j, v := range vals {
			cols[j] = append(cols[j], v)
		}
		n++
	}
	it.read += n
	if it.maxSteps > 0 && it.read >= it.maxSteps {
		it.done = true
	}
	if n == 0 {
		return nil, io.EOF
	}

	b := make(chain.Batch, len(it.headers))
	for j, h := range it.headers {
		b[h] = cols[j]
	}
	return b, nil
}

func (it *iterator) Close() error {
	it.done = true
	if it.rows == nil {
		return nil
	}
	err := it.rows.close()
	it.rows = nil
	return err
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
