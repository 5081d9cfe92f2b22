// Package jacobian derives the importance weights that move a chain sampled
// uniformly in one reparameterization of a variable onto another prior.
//
// A chain generated uniform in s(x) has density |ds/dx| in x. Reweighting it
// to be uniform in t(x) multiplies every sample by
//
//	w(x) = |dt/dx| / |ds/dx| = |dt/ds|
//
// and a non-uniform target f(t) multiplies that by f(t(x)). The catalogue of
// expressions is fixed, so every pairwise transform is built once by NewGraph
// from closed-form derivatives and the Graph is read-only afterwards.
package jacobian

import (
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"sort"
	"strings"

	"numcmc/domain/core"
	"numcmc/domain/prior"
)

// WeightFunc maps a sample of the underlying variable onto its weight
type WeightFunc func(x float64) float64

// Weight is a resolved reweighting from one prior to another
type Weight struct {
	From     prior.Spec
	To       prior.Spec
	Fn       WeightFunc
	Identity bool
}

// Eval returns the weight of a single sample
func (w Weight) Eval(x float64) float64 {
	if w.Identity || w.Fn == nil {
		return 1
	}
	return w.Fn(x)
}

// Pair describes one entry of the transform table
type Pair struct {
	From       string
	To         string
	Invertible bool
	Identity   bool
}

type pairKey struct{ from, to string }

// Graph is the immutable catalogue plus its all-pairs Jacobian table
type Graph struct {
	exprs     []Expr
	byName    map[string]Expr
	table     map[pairKey]WeightFunc
	densities map[prior.Kind]DensityFactory
}

// probe points used to decide whether a derivative ratio vanishes identically
const probePoints = 257

// NewGraph builds the catalogue and eagerly computes every pairwise transform
func NewGraph() *Graph {
	exprs := defaultCatalogue()
	g := &Graph{
		exprs:     exprs,
		byName:    make(map[string]Expr, len(exprs)),
		table:     make(map[pairKey]WeightFunc, len(exprs)*len(exprs)),
		densities: defaultDensities(),
	}
	for _, e := range exprs {
		g.byName[e.Name] = e
	}
	for _, from := range exprs {
		for _, to := range exprs {
			g.table[pairKey{from.Name, to.Name}] = chainRule(from, to)
		}
	}
	return g
}

// chainRule returns |d to / d from| or nil when from == to or the ratio is
// identically zero
func chainRule(from, to Expr) WeightFunc {
	if from.Name == to.Name {
		return nil
	}
	ratio := func(x float64) float64 {
		return cmplx.Abs(to.Deriv(x)) / cmplx.Abs(from.Deriv(x))
	}

	nonZero := false
	for i := 0; i < probePoints; i++ {
		x := -2*math.Pi + 4*math.Pi*float64(i)/float64(probePoints-1)
		r := ratio(x)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		if r != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		log.Printf("[JacobianGraph] Transformation from %s to %s not possible, derivative ratio is zero", from.Name, to.Name)
		return nil
	}
	return ratio
}

// Expressions lists the catalogue in declaration order
func (g *Graph) Expressions() []string {
	names := make([]string, len(g.exprs))
	for i, e := range g.exprs {
		names[i] = e.Name
	}
	return names
}

// Lookup returns a catalogue entry by its canonical name
func (g *Graph) Lookup(name string) (Expr, bool) {
	e, ok := g.byName[name]
	return e, ok
}

// Pairs lists every table entry, sorted by source then target
func (g *Graph) Pairs() []Pair {
	pairs := make([]Pair, 0, len(g.table))
	for k, fn := range g.table {
		identity := k.from == k.to
		pairs = append(pairs, Pair{From: k.from, To: k.to, Invertible: identity || fn != nil, Identity: identity})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].From != pairs[j].From {
			return pairs[i].From < pairs[j].From
		}
		return pairs[i].To < pairs[j].To
	})
	return pairs
}

// JacobianFunc returns the weight that converts samples drawn under from into
// samples distributed according to to
func (g *Graph) JacobianFunc(from, to prior.Spec) (Weight, error) {
	if from.Kind != prior.Uniform {
		log.Printf("[JacobianGraph] Warning: source prior %s is not Uniform; its deviation from uniform cannot be compensated", from)
	}

	jac, ok := g.table[pairKey{from.Expr, to.Expr}]
	if !ok {
		return Weight{}, fmt.Errorf("%w: no direct transformation from %s to %s", core.ErrNoTransform, from, to)
	}

	w := Weight{From: from, To: to}
	if to.Kind == prior.Uniform {
		if jac == nil {
			w.Identity = true
			return w, nil
		}
		w.Fn = jac
		return w, nil
	}

	factory, ok := g.densities[to.Kind]
	if !ok {
		return Weight{}, fmt.Errorf("%w: %s", core.ErrDistributionUnavailable, to.Kind)
	}
	target := g.byName[to.Expr]
	if target.Real == nil {
		return Weight{}, fmt.Errorf("%w: %s has no real coordinate to evaluate a %s density on",
			core.ErrNoTransform, to.Expr, to.Kind)
	}
	density := factory(to.Params)
	coord := target.Real

	if jac == nil {
		w.Fn = func(x float64) float64 { return density(coord(x)) }
		return w, nil
	}
	w.Fn = func(x float64) float64 { return density(coord(x)) * jac(x) }
	return w, nil
}

// ParsePriors parses prior strings written in terms of known variable names.
// Each string must reference exactly one known variable, and each variable
// may receive at most one prior. The returned specs are written in the free
// coordinate x and keyed by variable name.
func (g *Graph) ParsePriors(priors []string, known []string) (map[string]prior.Spec, error) {
	parsed := make(map[string]prior.Spec, len(priors))
	for _, s := range priors {
		spec, err := prior.Parse(s)
		if err != nil {
			return nil, err
		}
		variable, canonical, err := g.resolve(spec.Expr, known)
		if err != nil {
			return nil, fmt.Errorf("prior %q: %w", s, err)
		}
		if prev, dup := parsed[variable]; dup {
			return nil, fmt.Errorf("%w: variable %s already has prior %s", core.ErrDuplicateName, variable, prev)
		}
		parsed[variable] = spec.WithExpr(canonical)
	}
	return parsed, nil
}

// NativePrior normalizes the prior a chain was generated under. The
// expression may use either the variable's own name or the free coordinate.
func (g *Graph) NativePrior(variable, s string) (prior.Spec, error) {
	spec, err := prior.Parse(s)
	if err != nil {
		return prior.Spec{}, err
	}
	if _, ok := g.byName[spec.Expr]; ok && !strings.Contains(spec.Expr, variable) {
		return spec, nil
	}
	_, canonical, err := g.resolve(spec.Expr, []string{variable})
	if err != nil {
		return prior.Spec{}, fmt.Errorf("native prior %q of %s: %w", s, variable, err)
	}
	return spec.WithExpr(canonical), nil
}

// resolve finds the single known variable an expression is written in and
// returns the matching catalogue entry's canonical name
func (g *Graph) resolve(expr string, known []string) (string, string, error) {
	matchVar, matchExpr := "", ""
	for _, v := range known {
		for _, e := range g.exprs {
			if e.Render(v) != expr {
				continue
			}
			if matchVar != "" && matchVar != v {
				return "", "", fmt.Errorf("%w: %s matches both %s and %s", core.ErrAmbiguousVariable, expr, matchVar, v)
			}
			matchVar, matchExpr = v, e.Name
		}
	}
	if matchVar != "" {
		return matchVar, matchExpr, nil
	}

	mentioned := mentionedVariables(expr, known)
	switch len(mentioned) {
	case 0:
		return "", "", fmt.Errorf("%w: %s references no known variable", core.ErrAmbiguousVariable, expr)
	case 1:
		return "", "", fmt.Errorf("%w: %w: %s is not a catalogued reparameterization of %s",
			core.ErrConfiguration, core.ErrNoTransform, expr, mentioned[0])
	default:
		return "", "", fmt.Errorf("%w: %s references %s", core.ErrAmbiguousVariable, expr, strings.Join(mentioned, ", "))
	}
}

// mentionedVariables returns the known names occurring in expr, skipping a
// name when the following character continues an identifier (Theta1 inside
// Theta13)
func mentionedVariables(expr string, known []string) []string {
	var out []string
	for _, v := range known {
		if v == "" {
			continue
		}
		for start := 0; ; {
			i := strings.Index(expr[start:], v)
			if i < 0 {
				break
			}
			end := start + i + len(v)
			if end == len(expr) || !isIdentChar(expr[end]) {
				out = append(out, v)
				break
			}
			start += i + 1
		}
	}
	sort.Strings(out)
	return out
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
