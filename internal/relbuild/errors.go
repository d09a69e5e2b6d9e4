package relbuild

import (
	"github.com/pkg/errors"
	goerrors "gopkg.in/src-d/go-errors.v1"
)

// ErrBuilderRejected wraps a panic raised by a Builder method during
// Lower, turning it into an ordinary error for the enclosing
// declaration's compilation (spec.md §7: "Builder rejection ...
// propagates as a compile-time failure").
var ErrBuilderRejected = goerrors.NewKind("relational builder rejected the plan: %v")

// errUnsupportedYield signals that a yield expression fell outside
// the recognised shapes of spec.md §4.6.5; callers treat it exactly
// like any other ok=false return, never surfacing it to Lower's
// caller as an error (spec.md §7: "no error is raised").
var errUnsupportedYield = errors.New("unsupported yield shape")

// recoverBuilderPanic converts a panic raised by a Builder call into
// *err, wrapped with the call site via pkg/errors, and otherwise
// leaves err untouched. Call via defer at the top of Lower.
func recoverBuilderPanic(err *error) {
	if r := recover(); r != nil {
		*err = errors.WithStack(ErrBuilderRejected.New(r))
	}
}
