// Package relbuild implements the relational builder contract (C8) and
// the query-lowering algorithm (C7) that drives it: translating a core
// `from` expression, a foreign-relation reference, or a set operator
// into calls against a Builder (spec.md §4.6, §6).
package relbuild

import (
	"github.com/morel-lang/hybrid/internal/core"
)

// JoinKind distinguishes the join types a Builder accepts. Inner is the
// only kind declared, and the only one this package's lowering
// produces (spec.md §6: "only INNER used").
type JoinKind int

const (
	InnerJoin JoinKind = iota
)

// SetKind distinguishes the three set operators a Builder accepts.
type SetKind int

const (
	SetUnion SetKind = iota
	SetMinus
	SetIntersect
)

// AggOp is a relational aggregate function, after mapping from a core
// built-in aggregate reference (spec.md §4.6.3).
type AggOp int

const (
	AggSum AggOp = iota
	AggCount
	AggMin
	AggMax
)

// Ref is an expression-level handle to something already pushed or
// built on the Builder — a column reference, a literal, or the result
// of a call — opaque to this package beyond what Builder itself
// returns.
type Ref any

// Rel is a handle to a relation on the Builder's stack.
type Rel any

// AggCall is one aggregate call within an Aggregate invocation, paired
// with the output field name it is bound to via As.
type AggCall struct {
	Op   AggOp
	Args []Ref
	Name string
}

// RowType is the Builder's own row-type representation, opaque to this
// package. It is threaded through LeastRestrictive and Convert during
// row-type harmonisation (spec.md §4.6.4).
type RowType any

// Builder is the relational algebra construction contract C7 drives
// (spec.md §6). Implementations are free to build an actual query plan
// (a real planner) or, for tests, an in-memory model
// (internal/fakebuilder).
//
// Any method may panic to signal builder rejection (spec.md §7:
// "Builder rejection ... propagates as a compile-time failure"); Lower
// recovers exactly one such panic per top-level call and turns it into
// an error.
type Builder interface {
	// Push places a previously obtained relation on top of the stack.
	Push(rel Rel)
	// As aliases the relation currently on top of the stack.
	As(alias string)
	// Values pushes a literal relation of the given row type and row
	// count (used for literal list/tuple collections lowered as an
	// inline relation).
	Values(rowType RowType, rows [][]Ref)

	// FieldByIndex references column index in the current row.
	FieldByIndex(index int) Ref
	// FieldByLevel references a column nested level frames up, at
	// aliasIndex within that frame and fieldIndex within the alias.
	FieldByLevel(level, aliasIndex, fieldIndex int) Ref
	// FieldByRange references the sub-range of the current row
	// belonging to the source named name (a record-typed source's full
	// set of columns).
	FieldByRange(name string) Ref

	// Literal returns a reference to a constant value; the stack is
	// left unchanged.
	Literal(value any, typ core.Type) Ref
	// Call applies a named scalar operator (equality, comparison,
	// arithmetic) to args.
	Call(op string, args ...Ref) Ref

	// Project replaces the top relation with a projection over exps,
	// optionally naming the output columns.
	Project(exps []Ref, names []string)
	// Filter replaces the top relation with a selection over exp.
	Filter(exp Ref)
	// Sort replaces the top relation with a sort over exps (each
	// already wrapped by Desc if descending).
	Sort(exps []Ref)

	// Join folds the top two relations on the stack into one, with the
	// given join type and trivially-true condition.
	Join(kind JoinKind)

	// SetOp folds the top inputCount relations into one via the named
	// set operator; all indicates bag (duplicate-preserving) semantics.
	SetOp(kind SetKind, all bool, inputCount int)

	// Aggregate replaces the top relation with a group-by over
	// groupKey, computing calls.
	Aggregate(groupKey []Ref, calls []AggCall)

	// Desc wraps a sort expression to mark it descending.
	Desc(exp Ref) Ref

	// RowTypeOf returns the row type of rel, which need not be on the
	// stack.
	RowTypeOf(rel Rel) RowType
	// LeastRestrictive returns the widening row type across rowTypes
	// (spec.md §4.6.4).
	LeastRestrictive(rowTypes []RowType) RowType
	// Convert replaces the top relation with one projected to fit
	// rowType, used after LeastRestrictive.
	Convert(rowType RowType)

	// Build pops and returns the top relation.
	Build() Rel
}
