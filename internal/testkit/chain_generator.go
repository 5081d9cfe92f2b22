package testkit

import (
	"math"
	"math/rand"

	"numcmc/adapters/memory"
	"numcmc/domain/chain"
	"numcmc/domain/surface"
	"numcmc/internal/oscillation"

	"gonum.org/v1/gonum/stat/distuv"
)

// Names of the empirical surfaces published with a generated chain
const (
	ReactorConstraint = "reactor:Theta13:1"
	SolarConstraint   = "solar:Theta12:Deltam2_21:0"
)

// ChainGeneratorConfig configures the synthetic oscillation chain generator
type ChainGeneratorConfig struct {
	Steps            int     `json:"steps"`
	InvertedFraction float64 `json:"inverted_fraction"`
	Seed             int64   `json:"seed"`
	Citation         string  `json:"citation"`

	// ranges are in the coordinate the parameter is sampled uniformly in
	SinSq2Theta13 [2]float64 `json:"sin_sq_2theta13"`
	SinSqTheta23  [2]float64 `json:"sin_sq_theta23"`
	SinSqTheta12  [2]float64 `json:"sin_sq_theta12"`
	AbsDm2_32     [2]float64 `json:"abs_dm2_32"`
	Dm2_21        [2]float64 `json:"dm2_21"`

	// centres and widths of the published empirical constraints
	ReactorMean  float64 `json:"reactor_mean"`
	ReactorSigma float64 `json:"reactor_sigma"`
	SolarTheta   float64 `json:"solar_theta"`
	SolarDm2     float64 `json:"solar_dm2"`
}

// DefaultChainConfig returns a chain roughly matching a global fit
func DefaultChainConfig() ChainGeneratorConfig {
	return ChainGeneratorConfig{
		Steps:            20000,
		InvertedFraction: 0.3,
		Seed:             42,
		Citation:         "numcmc synthetic oscillation chain (seeded)",
		SinSq2Theta13:    [2]float64{0.06, 0.11},
		SinSqTheta23:     [2]float64{0.35, 0.65},
		SinSqTheta12:     [2]float64{0.25, 0.37},
		AbsDm2_32:        [2]float64{2.3e-3, 2.7e-3},
		Dm2_21:           [2]float64{6.5e-5, 8.5e-5},
		ReactorMean:      0.0853,
		ReactorSigma:     0.0027,
		SolarTheta:       0.5903,
		SolarDm2:         7.53e-5,
	}
}

// ChainGenerator draws chains whose generation priors are known exactly
type ChainGenerator struct {
	config ChainGeneratorConfig
	rng    *rand.Rand
}

// NewChainGenerator creates a generator; the same seed gives the same chain
func NewChainGenerator(config ChainGeneratorConfig) *ChainGenerator {
	return &ChainGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Priors returns the generation priors in the chain's published form
func (g *ChainGenerator) Priors() map[string]string {
	return map[string]string{
		oscillation.DeltaCP:   "Uniform:DeltaCP",
		oscillation.Theta13:   "Uniform:sin^2(2Theta13)",
		oscillation.Theta23:   "Uniform:sin^2(Theta23)",
		oscillation.Theta12:   "Uniform:sin^2(Theta12)",
		oscillation.Deltam232: "Uniform:Deltam2_32",
		oscillation.Deltam221: "Uniform:Deltam2_21",
	}
}

// Generate draws the configured number of steps
func (g *ChainGenerator) Generate() chain.Batch {
	n := g.config.Steps
	b := chain.Batch{}
	for _, name := range oscillation.Compulsory {
		b[name] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		b[oscillation.DeltaCP][i] = g.uniform(-math.Pi, math.Pi)
		b[oscillation.Theta13][i] = math.Asin(math.Sqrt(g.uniform(g.config.SinSq2Theta13[0], g.config.SinSq2Theta13[1]))) / 2
		b[oscillation.Theta23][i] = math.Asin(math.Sqrt(g.uniform(g.config.SinSqTheta23[0], g.config.SinSqTheta23[1])))
		b[oscillation.Theta12][i] = math.Asin(math.Sqrt(g.uniform(g.config.SinSqTheta12[0], g.config.SinSqTheta12[1])))

		dm := g.uniform(g.config.AbsDm2_32[0], g.config.AbsDm2_32[1])
		if g.rng.Float64() < g.config.InvertedFraction {
			dm = -dm
		}
		b[oscillation.Deltam232][i] = dm
		b[oscillation.Deltam221][i] = g.uniform(g.config.Dm2_21[0], g.config.Dm2_21[1])
	}
	return b
}

func (g *ChainGenerator) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.rng.Float64()
}

// Surfaces tabulates a reactor constraint on Theta13 and a solar constraint
// on (Theta12, Deltam2_21), keyed by constraint name
func (g *ChainGenerator) Surfaces() map[string]surface.Surface {
	reactor := distuv.Normal{Mu: g.config.ReactorMean, Sigma: g.config.ReactorSigma}
	thetas := grid(0, math.Pi/4, 129)
	values := make([]float64, len(thetas))
	for i, th := range thetas {
		s := math.Sin(2 * th)
		values[i] = reactor.Prob(s * s)
	}

	solarTheta := distuv.Normal{Mu: g.config.SolarTheta, Sigma: 0.013}
	solarDm := distuv.Normal{Mu: g.config.SolarDm2, Sigma: 0.18e-5}
	th12 := grid(0.45, 0.75, 61)
	dm21 := grid(g.config.Dm2_21[0], g.config.Dm2_21[1], 41)
	solar := make([]float64, 0, len(th12)*len(dm21))
	for _, th := range th12 {
		for _, dm := range dm21 {
			solar = append(solar, solarTheta.Prob(th)*solarDm.Prob(dm))
		}
	}

	return map[string]surface.Surface{
		ReactorConstraint: {Name: "reactor", Axes: [][]float64{thetas}, Values: values},
		SolarConstraint:   {Name: "solar", Axes: [][]float64{th12, dm21}, Values: solar},
	}
}

// Published generates a chain with its priors, surfaces and citation
func (g *ChainGenerator) Published() chain.Published {
	return chain.Published{
		Samples:  g.Generate(),
		Priors:   g.Priors(),
		Surfaces: g.Surfaces(),
		Citation: g.config.Citation,
	}
}

// Source generates a chain and serves it from memory
func (g *ChainGenerator) Source() (*memory.Source, error) {
	return memory.FromPublished(g.Published())
}

func grid(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}
