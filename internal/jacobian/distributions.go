package jacobian

import (
	"numcmc/domain/prior"

	"gonum.org/v1/gonum/stat/distuv"
)

// Density is a closed-form probability density over the transformed coordinate
type Density func(v float64) float64

// DensityFactory builds a density from a prior's parameters. Parameter
// counts are already checked by the prior parser.
type DensityFactory func(params []float64) Density

func gaussian(params []float64) Density {
	n := distuv.Normal{Mu: params[0], Sigma: params[1]}
	return n.Prob
}

func bimodalGaussian(params []float64) Density {
	first := distuv.Normal{Mu: params[0], Sigma: params[1]}
	second := distuv.Normal{Mu: params[2], Sigma: params[3]}
	frac := params[4]
	return func(v float64) float64 {
		return frac*first.Prob(v) + (1-frac)*second.Prob(v)
	}
}

func step(params []float64) Density {
	edge, below, above := params[0], params[1], params[2]
	return func(v float64) float64 {
		if v < edge {
			return below
		}
		return above
	}
}

func defaultDensities() map[prior.Kind]DensityFactory {
	return map[prior.Kind]DensityFactory{
		prior.Gaussian:        gaussian,
		prior.BimodalGaussian: bimodalGaussian,
		prior.Step:            step,
	}
}
