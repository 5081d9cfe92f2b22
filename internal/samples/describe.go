package samples

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"numcmc/domain/core"

	"github.com/montanaflynn/stats"
)

// Summary holds the marginal statistics of one variable
type Summary struct {
	Variable string  `json:"variable"`
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Median   float64 `json:"median"`
	P05      float64 `json:"p05"`
	P95      float64 `json:"p95"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// Describe streams the chain and summarizes one variable. Derived variables
// are evaluated on the fly. maxSteps <= 0 reads the whole chain.
func (s *Samples) Describe(ctx context.Context, variable string, batchSize, maxSteps int) (Summary, error) {
	if _, ok := s.variables[variable]; !ok {
		return Summary{}, fmt.Errorf("%w: %s", core.ErrUnknownVariable, variable)
	}
	start := time.Now()

	it, err := s.src.Batches(ctx, batchSize, maxSteps)
	if err != nil {
		return Summary{}, err
	}
	defer it.Close()

	var data stats.Float64Data
	for {
		batch, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Summary{}, err
		}
		if err := s.Resolve(batch, []string{variable}); err != nil {
			return Summary{}, err
		}
		data = append(data, batch[variable]...)
	}
	log.Printf("[Samples] Collected %d values of %s in %.2fms", len(data), variable, float64(time.Since(start).Nanoseconds())/1e6)

	return summarize(variable, data)
}

func summarize(variable string, data stats.Float64Data) (Summary, error) {
	sum := Summary{Variable: variable, Count: len(data)}
	if len(data) == 0 {
		return sum, fmt.Errorf("%w: no samples of %s", core.ErrEmptyHistogram, variable)
	}

	var err error
	if sum.Mean, err = stats.Mean(data); err != nil {
		return sum, err
	}
	if sum.StdDev, err = stats.StandardDeviation(data); err != nil {
		return sum, err
	}
	if sum.Median, err = stats.Median(data); err != nil {
		return sum, err
	}
	if sum.P05, err = stats.Percentile(data, 5); err != nil {
		return sum, err
	}
	if sum.P95, err = stats.Percentile(data, 95); err != nil {
		return sum, err
	}
	if sum.Min, err = stats.Min(data); err != nil {
		return sum, err
	}
	if sum.Max, err = stats.Max(data); err != nil {
		return sum, err
	}
	return sum, nil
}
