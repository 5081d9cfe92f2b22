package excel

import (
	"path/filepath"
	"strings"
)

// ChainConfig locates a chain stored in a workbook or a CSV file
type ChainConfig struct {
	FilePath      string `json:"file_path"`
	ChainSheet    string `json:"chain_sheet"`
	PriorsSheet   string `json:"priors_sheet"`
	SurfacesSheet string `json:"surfaces_sheet"`
	CitationSheet string `json:"citation_sheet"`
}

// DefaultChainConfig returns the default sheet layout for a chain file
func DefaultChainConfig(filePath string) ChainConfig {
	return ChainConfig{
		FilePath:      filePath,
		ChainSheet:    "chain",
		PriorsSheet:   "priors",
		SurfacesSheet: "surfaces",
		CitationSheet: "citation",
	}
}

func (c ChainConfig) fileType() string {
	if strings.ToLower(filepath.Ext(c.FilePath)) == ".csv" {
		return "csv"
	}
	return "xlsx"
}

// sidecar names a metadata file next to a CSV chain: chain.csv gives
// chain.priors.csv, chain.surfaces.csv and chain.citation.txt
func (c ChainConfig) sidecar(kind, ext string) string {
	base := strings.TrimSuffix(c.FilePath, filepath.Ext(c.FilePath))
	return base + "." + kind + ext
}
