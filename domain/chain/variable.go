package chain

import (
	"fmt"

	"numcmc/domain/core"
)

// Inputs is the set of resolved argument columns handed to a variable function
type Inputs map[string][]float64

// Func computes one value per step from its inputs
type Func func(in Inputs) ([]float64, error)

// Variable is a named quantity computed from other named columns. Native
// chain columns are Variables with no inputs that read their own column.
type Variable struct {
	Name   string
	Inputs []string
	Fn     Func
}

// NewVariable creates a derived variable over the declared inputs
func NewVariable(name string, inputs []string, fn Func) *Variable {
	in := make([]string, len(inputs))
	copy(in, inputs)
	return &Variable{Name: name, Inputs: in, Fn: fn}
}

// NewNativeVariable wraps a column that the chain provides directly
func NewNativeVariable(name string) *Variable {
	return &Variable{
		Name:   name,
		Inputs: []string{name},
		Fn: func(in Inputs) ([]float64, error) {
			col, ok := in[name]
			if !ok {
				return nil, fmt.Errorf("column %s not present in batch", name)
			}
			return col, nil
		},
	}
}

// IsNative reports whether the variable reads a chain column directly
func (v *Variable) IsNative() bool {
	return len(v.Inputs) == 1 && v.Inputs[0] == v.Name
}

// Evaluate resolves the declared inputs against the batch and calls the
// wrapped function. Inputs absent from the batch are omitted.
func (v *Variable) Evaluate(batch Batch) (out []float64, err error) {
	in := make(Inputs, len(v.Inputs))
	for _, name := range v.Inputs {
		if col, ok := batch[name]; ok {
			in[name] = col
		}
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = core.NewEvaluationError(v.Name, fmt.Errorf("panic: %v", r))
		}
	}()

	out, err = v.Fn(in)
	if err != nil {
		return nil, core.NewEvaluationError(v.Name, err)
	}
	if n := batch.Len(); len(out) != n {
		return nil, core.NewEvaluationError(v.Name,
			fmt.Errorf("%w: produced %d values for a batch of %d", core.ErrBatchShape, len(out), n))
	}
	return out, nil
}

func (v *Variable) String() string {
	return fmt.Sprintf("Variable(name=%q, inputs=%v)", v.Name, v.Inputs)
}
