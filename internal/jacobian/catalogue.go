package jacobian

import (
	"math"
	"math/cmplx"
)

// Symbol is the free coordinate every catalogue expression is written in
const Symbol = "x"

// Expr is one elementary reparameterization of the free coordinate. Deriv is
// the closed-form derivative with respect to x; it is complex so that the
// phase variable exp(-ix) follows the same modulus rule as the real ones.
// Real is nil for expressions without a real-valued coordinate.
type Expr struct {
	Name   string
	Real   func(x float64) float64
	Deriv  func(x float64) complex128
	render func(sym string) string
}

// Render writes the expression in terms of a named variable
func (e Expr) Render(sym string) string {
	return e.render(sym)
}

func realDeriv(f func(x float64) float64) func(x float64) complex128 {
	return func(x float64) complex128 { return complex(f(x), 0) }
}

func pow(v float64, n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= v
	}
	return out
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func entry(render func(string) string, value, deriv func(float64) float64) Expr {
	return Expr{Name: render(Symbol), Real: value, Deriv: realDeriv(deriv), render: render}
}

// defaultCatalogue is the fixed set of supported reparameterizations
func defaultCatalogue() []Expr {
	return []Expr{
		entry(func(s string) string { return s },
			func(x float64) float64 { return x },
			func(float64) float64 { return 1 }),
		entry(func(s string) string { return "sin(" + s + ")" },
			math.Sin,
			math.Cos),
		entry(func(s string) string { return "sin^2(" + s + ")" },
			func(x float64) float64 { return pow(math.Sin(x), 2) },
			func(x float64) float64 { return math.Sin(2 * x) }),
		entry(func(s string) string { return "cos(" + s + ")" },
			math.Cos,
			func(x float64) float64 { return -math.Sin(x) }),
		entry(func(s string) string { return "cos^2(" + s + ")" },
			func(x float64) float64 { return pow(math.Cos(x), 2) },
			func(x float64) float64 { return -math.Sin(2 * x) }),
		entry(func(s string) string { return "cos^4(" + s + ")" },
			func(x float64) float64 { return pow(math.Cos(x), 4) },
			func(x float64) float64 { return -4 * pow(math.Cos(x), 3) * math.Sin(x) }),
		entry(func(s string) string { return "2" + s },
			func(x float64) float64 { return 2 * x },
			func(float64) float64 { return 2 }),
		entry(func(s string) string { return "sin(2" + s + ")" },
			func(x float64) float64 { return math.Sin(2 * x) },
			func(x float64) float64 { return 2 * math.Cos(2*x) }),
		entry(func(s string) string { return "sin^2(2" + s + ")" },
			func(x float64) float64 { return pow(math.Sin(2*x), 2) },
			func(x float64) float64 { return 2 * math.Sin(4*x) }),
		entry(func(s string) string { return "cos(2" + s + ")" },
			func(x float64) float64 { return math.Cos(2 * x) },
			func(x float64) float64 { return -2 * math.Sin(2*x) }),
		entry(func(s string) string { return "cos^2(2" + s + ")" },
			func(x float64) float64 { return pow(math.Cos(2*x), 2) },
			func(x float64) float64 { return -2 * math.Sin(4*x) }),
		{
			Name:   "exp(-i" + Symbol + ")",
			Deriv:  func(x float64) complex128 { return -1i * cmplx.Exp(complex(0, -x)) },
			render: func(s string) string { return "exp(-i" + s + ")" },
		},
		entry(func(s string) string { return "abs(" + s + ")" },
			math.Abs,
			sign),
	}
}
