package prior

import (
	"fmt"
	"strings"

	"numcmc/domain/core"
)

// Ordering selects which side of the mass-ordering partition a factor
// applies to
type Ordering int

const (
	BothOrderings Ordering = iota
	NormalOrdering
	InvertedOrdering
)

func (o Ordering) String() string {
	switch o {
	case NormalOrdering:
		return "NO"
	case InvertedOrdering:
		return "IO"
	default:
		return "both"
	}
}

// Includes reports whether a sample with the given sign of the ordering
// variable falls on this side. Zero counts as normal ordering.
func (o Ordering) Includes(orderingValue float64) bool {
	switch o {
	case NormalOrdering:
		return orderingValue >= 0
	case InvertedOrdering:
		return orderingValue < 0
	default:
		return true
	}
}

// OrderingOf classifies a value of the mass-splitting variable
func OrderingOf(orderingValue float64) Ordering {
	if orderingValue < 0 {
		return InvertedOrdering
	}
	return NormalOrdering
}

// ConstraintName is the parsed form of
//
//	uniqueName:var1:...:varN:[NO|IO]:appliedByDefaultFlag
type ConstraintName struct {
	Name      string
	Variables []string
	Ordering  Ordering
	Default   bool
}

// ParseConstraintName parses an empirical-prior or constraint name
func ParseConstraintName(s string) (ConstraintName, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 3 {
		return ConstraintName{}, fmt.Errorf("%w: %q needs a name, at least one variable and a default flag",
			core.ErrMalformedConstraint, s)
	}

	var c ConstraintName
	switch flag := parts[len(parts)-1]; flag {
	case "0":
		c.Default = false
	case "1":
		c.Default = true
	default:
		return ConstraintName{}, fmt.Errorf("%w: default flag of %q must be 0 or 1, got %q",
			core.ErrMalformedConstraint, s, flag)
	}

	vars := parts[1 : len(parts)-1]
	switch vars[len(vars)-1] {
	case "NO":
		c.Ordering = NormalOrdering
		vars = vars[:len(vars)-1]
	case "IO":
		c.Ordering = InvertedOrdering
		vars = vars[:len(vars)-1]
	}

	c.Name = parts[0]
	if c.Name == "" {
		return ConstraintName{}, fmt.Errorf("%w: %q has an empty name", core.ErrMalformedConstraint, s)
	}
	if len(vars) == 0 {
		return ConstraintName{}, fmt.Errorf("%w: %q names no variables", core.ErrMalformedConstraint, s)
	}
	for _, v := range vars {
		if v == "" {
			return ConstraintName{}, fmt.Errorf("%w: %q has an empty variable", core.ErrMalformedConstraint, s)
		}
	}
	c.Variables = append([]string(nil), vars...)
	return c, nil
}

// String renders the wire form
func (c ConstraintName) String() string {
	parts := append([]string{c.Name}, c.Variables...)
	if c.Ordering != BothOrderings {
		parts = append(parts, c.Ordering.String())
	}
	flag := "0"
	if c.Default {
		flag = "1"
	}
	return strings.Join(append(parts, flag), ":")
}
