package relbuild

import (
	"github.com/morel-lang/hybrid/internal/env"
)

// VarRef resolves one `from`-source variable to a column reference,
// storing closures over the builder's current state (spec.md §9:
// "callbacks as first-class values" — Go has first-class closures, so
// this package uses them directly rather than the tagged
// Scalar(index)|Range(offset,width) variant the spec suggests for
// languages without them). A scalar source variable sets only Resolve.
// A record source variable additionally sets Fields and Field, so a
// selector can address one member without materialising the whole row.
type VarRef struct {
	// Resolve produces a reference to the variable as a whole: the
	// scalar column itself, or, for a record variable, the full range.
	Resolve func(b Builder) Ref
	// Fields lists the record's field names in canonical (sorted)
	// order; nil for a scalar variable.
	Fields []string
	// Field produces a reference to one named field; nil for a scalar
	// variable.
	Field func(b Builder, name string) Ref
}

func (v VarRef) isRecord() bool { return v.Field != nil }

// RelContext threads the pieces query lowering carries from step to
// step: the lexical environment (for identifier folding), the Builder
// under construction, and the variableMap resolving `from`-source
// variables to column references (spec.md §4.6.2 step 3).
type RelContext struct {
	Env         *env.Environment
	Builder     Builder
	VariableMap map[string]VarRef
	InputCount  int
}

// WithEnv returns a copy of c with Env replaced.
func (c RelContext) WithEnv(e *env.Environment) RelContext {
	c.Env = e
	return c
}

// WithVariableMap returns a copy of c with VariableMap replaced.
func (c RelContext) WithVariableMap(vm map[string]VarRef) RelContext {
	c.VariableMap = vm
	return c
}
