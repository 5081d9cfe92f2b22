package chain

import "numcmc/domain/surface"

// Published is a complete chain together with the metadata its authors
// publish with it: generation priors keyed by variable, empirical surfaces
// keyed by constraint name, and a citation
type Published struct {
	Samples  Batch
	Priors   map[string]string
	Surfaces map[string]surface.Surface
	Citation string
}
