// Package prior parses the prior-specification and constraint-name wire
// formats into typed values. Strings are parsed once at ingestion; nothing
// downstream looks at the raw text again.
//
// Prior specifications take one of three forms:
//
//	Gaussian(0.55,0.01):sin^2(Theta23)
//	Uniform:DeltaCP
//	sin^2(2Theta13)            (implicit Uniform)
package prior

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"numcmc/domain/core"
)

// Kind is the closed set of supported prior distributions
type Kind int

const (
	Uniform Kind = iota
	Gaussian
	BimodalGaussian
	Step
)

var kindNames = map[Kind]string{
	Uniform:         "Uniform",
	Gaussian:        "Gaussian",
	BimodalGaussian: "BimodalGaussian",
	Step:            "Step",
}

// arity is the fixed parameter count of each distribution
var arity = map[Kind]int{
	Uniform:         0,
	Gaussian:        2, // mean, sigma
	BimodalGaussian: 5, // mean1, sigma1, mean2, sigma2, fraction of the first mode
	Step:            3, // edge, density below, density above
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Arity returns the number of parameters the distribution takes
func (k Kind) Arity() int {
	return arity[k]
}

// ParseKind maps a distribution name onto its Kind
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", core.ErrUnknownDistribution, name)
}

// Spec is a parsed prior specification
type Spec struct {
	Kind   Kind
	Params []float64
	Expr   string
}

// UniformIn returns the implicit uniform prior over an expression
func UniformIn(expr string) Spec {
	return Spec{Kind: Uniform, Expr: expr}
}

// Parse parses a prior specification string
func Parse(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Spec{}, fmt.Errorf("%w: empty string", core.ErrMalformedPrior)
	}
	if err := checkBalanced(s); err != nil {
		return Spec{}, err
	}

	split := topLevelColon(s)
	if split < 0 {
		expr := normalizeExpr(s)
		return Spec{Kind: Uniform, Expr: expr}, nil
	}

	head := strings.TrimSpace(s[:split])
	expr := normalizeExpr(s[split+1:])
	if expr == "" {
		return Spec{}, fmt.Errorf("%w: %q has no expression", core.ErrMalformedPrior, s)
	}

	name, params, err := parseHead(head)
	if err != nil {
		return Spec{}, fmt.Errorf("%w (in %q)", err, s)
	}
	kind, err := ParseKind(name)
	if err != nil {
		return Spec{}, err
	}
	spec := Spec{Kind: kind, Params: params, Expr: expr}
	if err := spec.validate(); err != nil {
		return Spec{}, fmt.Errorf("%w (in %q)", err, s)
	}
	return spec, nil
}

// MustParse is Parse for package-level literals; it panics on error
func MustParse(s string) Spec {
	spec, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return spec
}

// String renders the canonical wire form
func (s Spec) String() string {
	if len(s.Params) == 0 {
		return s.Kind.String() + ":" + s.Expr
	}
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = strconv.FormatFloat(p, 'g', -1, 64)
	}
	return fmt.Sprintf("%s(%s):%s", s.Kind, strings.Join(parts, ","), s.Expr)
}

// WithExpr returns a copy of the spec over a different expression
func (s Spec) WithExpr(expr string) Spec {
	params := make([]float64, len(s.Params))
	copy(params, s.Params)
	return Spec{Kind: s.Kind, Params: params, Expr: expr}
}

// Equal compares two specs by value
func (s Spec) Equal(o Spec) bool {
	if s.Kind != o.Kind || s.Expr != o.Expr || len(s.Params) != len(o.Params) {
		return false
	}
	for i := range s.Params {
		if s.Params[i] != o.Params[i] {
			return false
		}
	}
	return true
}

func (s Spec) validate() error {
	if want := s.Kind.Arity(); len(s.Params) != want {
		return fmt.Errorf("%w: %s takes %d parameters, got %d",
			core.ErrMalformedPrior, s.Kind, want, len(s.Params))
	}
	for i, v := range s.Params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s parameter %d is %g", core.ErrMalformedPrior, s.Kind, i+1, v)
		}
	}
	switch s.Kind {
	case Gaussian:
		if s.Params[1] <= 0 {
			return fmt.Errorf("%w: Gaussian sigma must be positive", core.ErrMalformedPrior)
		}
	case BimodalGaussian:
		if s.Params[1] <= 0 || s.Params[3] <= 0 {
			return fmt.Errorf("%w: BimodalGaussian sigmas must be positive", core.ErrMalformedPrior)
		}
		if f := s.Params[4]; f < 0 || f > 1 {
			return fmt.Errorf("%w: BimodalGaussian fraction must be in [0,1]", core.ErrMalformedPrior)
		}
	case Step:
		if s.Params[1] < 0 || s.Params[2] < 0 {
			return fmt.Errorf("%w: Step densities must be non-negative", core.ErrMalformedPrior)
		}
	}
	return nil
}

func parseHead(head string) (string, []float64, error) {
	open := strings.IndexByte(head, '(')
	if open < 0 {
		if strings.ContainsRune(head, ')') {
			return "", nil, fmt.Errorf("%w: stray ')'", core.ErrMalformedPrior)
		}
		return head, nil, nil
	}
	if !strings.HasSuffix(head, ")") || strings.Count(head, "(") != 1 || strings.Count(head, ")") != 1 {
		return "", nil, fmt.Errorf("%w: distribution parameters must be a single (...) group", core.ErrMalformedPrior)
	}
	name := strings.TrimSpace(head[:open])
	body := strings.TrimSpace(head[open+1 : len(head)-1])
	if name == "" {
		return "", nil, fmt.Errorf("%w: missing distribution name", core.ErrMalformedPrior)
	}
	if body == "" {
		return name, nil, nil
	}

	fields := strings.Split(body, ",")
	params := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("%w: parameter %d: %v", core.ErrMalformedPrior, i+1, err)
		}
		params[i] = v
	}
	return name, params, nil
}

func checkBalanced(s string) error {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: unbalanced ')' in %q", core.ErrMalformedPrior, s)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: missing ')' in %q", core.ErrMalformedPrior, s)
	}
	return nil
}

func topLevelColon(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ':':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func normalizeExpr(s string) string {
	return strings.Join(strings.Fields(s), "")
}
