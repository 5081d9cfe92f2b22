package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Configuration errors, raised at registration or AddPlot time
	ErrConfiguration       = errors.New("configuration error")
	ErrUnknownVariable     = fmt.Errorf("%w: unknown variable", ErrConfiguration)
	ErrMissingColumn       = fmt.Errorf("%w: compulsory column missing from chain", ErrConfiguration)
	ErrDuplicateName       = fmt.Errorf("%w: duplicate name", ErrConfiguration)
	ErrMalformedPrior      = fmt.Errorf("%w: malformed prior specification", ErrConfiguration)
	ErrUnknownDistribution = fmt.Errorf("%w: unknown distribution", ErrConfiguration)
	ErrMalformedConstraint = fmt.Errorf("%w: malformed constraint name", ErrConfiguration)
	ErrAmbiguousVariable   = fmt.Errorf("%w: prior must reference exactly one variable", ErrConfiguration)
	ErrDimensionality      = fmt.Errorf("%w: only 1D and 2D plots are supported", ErrConfiguration)
	ErrInvalidAxis         = fmt.Errorf("%w: invalid axis", ErrConfiguration)
	ErrInvalidLevel        = fmt.Errorf("%w: credible level must be in (0,1)", ErrConfiguration)
	ErrInvalidSurface      = fmt.Errorf("%w: invalid density surface", ErrConfiguration)
	ErrMalformedJob        = fmt.Errorf("%w: malformed job", ErrConfiguration)

	// Evaluation errors, raised while streaming the chain
	ErrEvaluation      = errors.New("variable evaluation failed")
	ErrBatchShape      = errors.New("batch columns have inconsistent lengths")
	ErrNonFiniteWeight = errors.New("non-finite sample weight")

	// Degenerate-math conditions
	ErrNoTransform             = errors.New("no prior transformation available")
	ErrDistributionUnavailable = errors.New("distribution not available")
	ErrEmptyHistogram          = errors.New("histogram has zero weighted mass")
	ErrLevelUnreachable        = errors.New("credible level not reachable")

	// Protocol violations
	ErrFinalized = errors.New("histogram already finalized")
)

// NewEvaluationError attaches the variable name to an evaluation failure
func NewEvaluationError(variable string, cause error) error {
	return fmt.Errorf("%w for variable %s: %w", ErrEvaluation, variable, cause)
}

// IsConfigurationError reports whether err was raised by a bad setup rather than by the data
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsEvaluationError reports whether err was raised while evaluating a batch
func IsEvaluationError(err error) bool {
	return errors.Is(err, ErrEvaluation) ||
		errors.Is(err, ErrBatchShape) ||
		errors.Is(err, ErrNonFiniteWeight)
}

// IsDegenerateError reports whether err signals a mathematically degenerate condition
func IsDegenerateError(err error) bool {
	return errors.Is(err, ErrNoTransform) ||
		errors.Is(err, ErrDistributionUnavailable) ||
		errors.Is(err, ErrEmptyHistogram) ||
		errors.Is(err, ErrLevelUnreachable)
}
