package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"time"

	"numcmc/domain/chain"

	"github.com/xuri/excelize/v2"
)

// WriteChain stores a chain in the layout ChainReader reads, as a workbook
// or as a CSV file with sidecars depending on the file extension
func WriteChain(config ChainConfig, c chain.Published) error {
	if err := c.Samples.Validate(); err != nil {
		return err
	}
	start := time.Now()
	var err error
	switch config.fileType() {
	case "csv":
		err = writeCSVChain(config, c)
	default:
		err = writeExcelChain(config, c)
	}
	if err != nil {
		return fmt.Errorf("write chain %s: %w", config.FilePath, err)
	}
	log.Printf("[ChainWriter] Wrote %d steps to %s in %.2fms",
		c.Samples.Len(), config.FilePath, float64(time.Since(start).Nanoseconds())/1e6)
	return nil
}

func writeExcelChain(config ChainConfig, c chain.Published) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", config.ChainSheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(config.ChainSheet)
	if err != nil {
		return err
	}
	names := c.Samples.Names()
	header := make([]interface{}, len(names))
	for i, n := range names {
		header[i] = n
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	row := make([]interface{}, len(names))
	for s := 0; s < c.Samples.Len(); s++ {
		for i, n := range names {
			row[i] = c.Samples[n][s]
		}
		cell, err := excelize.CoordinatesToCellName(1, s+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	if len(c.Priors) > 0 {
		if err := writeSheet(f, config.PriorsSheet, priorRows(c.Priors)); err != nil {
			return err
		}
	}
	if len(c.Surfaces) > 0 {
		if err := writeSheet(f, config.SurfacesSheet, surfaceRows(c.Surfaces)); err != nil {
			return err
		}
	}
	if c.Citation != "" {
		if _, err := f.NewSheet(config.CitationSheet); err != nil {
			return err
		}
		if err := f.SetCellValue(config.CitationSheet, "A1", c.Citation); err != nil {
			return err
		}
	}
	return f.SaveAs(config.FilePath)
}

func writeSheet(f *excelize.File, sheet string, rows [][]string) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(r))
		for j, v := range r {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func writeCSVChain(config ChainConfig, c chain.Published) error {
	names := c.Samples.Names()
	rows := make([][]string, 0, c.Samples.Len()+1)
	rows = append(rows, names)
	for s := 0; s < c.Samples.Len(); s++ {
		row := make([]string, len(names))
		for i, n := range names {
			row[i] = formatFloat(c.Samples[n][s])
		}
		rows = append(rows, row)
	}
	if err := writeCSV(config.FilePath, rows); err != nil {
		return err
	}
	if len(c.Priors) > 0 {
		if err := writeCSV(config.sidecar("priors", ".csv"), priorRows(c.Priors)); err != nil {
			return err
		}
	}
	if len(c.Surfaces) > 0 {
		if err := writeCSV(config.sidecar("surfaces", ".csv"), surfaceRows(c.Surfaces)); err != nil {
			return err
		}
	}
	if c.Citation != "" {
		return os.WriteFile(config.sidecar("citation", ".txt"), []byte(c.Citation+"\n"), 0o644)
	}
	return nil
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return file.Close()
}
