package core

// Expr is a type-resolved core expression node.
type Expr interface {
	Type() Type
	exprNode()
}

// Id is an identifier reference, carrying the ordinal distinguishing it
// from other bindings of the same name introduced in different scopes
// (spec.md §4.1: "lookup by identifier-with-ordinal returns the exact
// binding").
type Id struct {
	Name    string
	Ordinal int
	Typ     Type
}

func (i Id) Type() Type { return i.Typ }
func (Id) exprNode()    {}

// SameIdentity reports whether i and o name the same binding: equal
// name and ordinal. Typ is deliberately excluded, both because it
// plays no part in identifier identity and because a Type can hold a
// RecordType or TupleType, whose slice-valued fields make plain `==`
// panic at runtime when compared through an interface.
func (i Id) SameIdentity(o Id) bool {
	return i.Name == o.Name && i.Ordinal == o.Ordinal
}

// WithOrdinal returns a copy of id with Ordinal replaced; used by
// renumber (spec.md §4.1.7).
func (i Id) WithOrdinal(ord int) Id {
	i.Ordinal = ord
	return i
}

// LiteralKind distinguishes the literal shapes of spec.md §3.
type LiteralKind int

const (
	LitBool LiteralKind = iota
	LitChar
	LitInt
	LitReal
	LitString
	LitUnit
)

// Literal is a literal value of one of the six primitive shapes.
type Literal struct {
	Kind  LiteralKind
	Value any // bool, rune, int64, float64, string, or nil for LitUnit
	Typ   Type
}

func (l Literal) Type() Type { return l.Typ }
func (Literal) exprNode()    {}

// Tuple is a positional product expression.
type Tuple struct {
	Args []Expr
	Typ  Type
}

func (t Tuple) Type() Type { return t.Typ }
func (Tuple) exprNode()    {}

// RecordCons constructs a record value from named field expressions.
type RecordCons struct {
	Fields []RecordFieldExpr
	Typ    Type
}

// RecordFieldExpr is one field = expr pair in a record construction.
type RecordFieldExpr struct {
	Name string
	Expr Expr
}

func (r RecordCons) Type() Type { return r.Typ }
func (RecordCons) exprNode()    {}

// RecordSelector is "#field arg" — projecting one named field out of a
// record-valued expression.
type RecordSelector struct {
	Field string
	Arg   Expr
	Typ   Type
}

func (r RecordSelector) Type() Type { return r.Typ }
func (RecordSelector) exprNode()    {}

// Apply is function application, fn applied to arg (arg may itself be a
// Tuple for multi-argument calls).
type Apply struct {
	Fn  Expr
	Arg Expr
	Typ Type
}

func (a Apply) Type() Type { return a.Typ }
func (Apply) exprNode()    {}

// Fn is a function abstraction: fun param => body.
type Fn struct {
	Param Pattern
	Body  Expr
	Typ   Type
}

func (f Fn) Type() Type { return f.Typ }
func (Fn) exprNode()    {}

// Let introduces one non-recursive declaration visible in Body.
type Let struct {
	Decl Decl
	Body Expr
	Typ  Type
}

func (l Let) Type() Type { return l.Typ }
func (Let) exprNode()    {}

// Local introduces a datatype or mutually-recursive declaration group
// visible only within Body (distinct from Let: it does not leak its
// bindings into the surrounding scope the way a top-level Let does).
type Local struct {
	Decl Decl
	Body Expr
	Typ  Type
}

func (l Local) Type() Type { return l.Typ }
func (Local) exprNode()    {}

// MatchCase is one pat => expr alternative of a Match.
type MatchCase struct {
	Pat  Pattern
	Expr Expr
}

// Match is a case/match expression over Arg.
type Match struct {
	Arg   Expr
	Cases []MatchCase
	Typ   Type
}

func (m Match) Type() Type { return m.Typ }
func (Match) exprNode()    {}

// FromSource is one source binding "pat = exp" of a From expression's
// initial join sources (spec.md §4.6.2).
type FromSource struct {
	Pat Pattern
	Exp Expr
}

// UnboundedExtent stands in for a from-source pattern with no explicit
// bound collection — Morel's "x suchThat p" sugar — until the rewrite
// driver's unbounded-extent elaboration pass (spec.md §4.5 step 3)
// either discovers a concrete bound or leaves it, in which case lowering
// falls back to interpreter code (spec.md §4.6.1).
type UnboundedExtent struct {
	Typ Type
}

func (u UnboundedExtent) Type() Type { return u.Typ }
func (UnboundedExtent) exprNode()    {}

// StepKind distinguishes the five step kinds of a From expression.
type StepKind int

const (
	StepScan StepKind = iota
	StepWhere
	StepOrder
	StepGroup
	StepYield
)

// Step is one element of a From expression's ordered step sequence.
// Exactly the fields relevant to Kind are populated.
type Step struct {
	Kind StepKind

	// StepScan: an additional mid-pipeline source, as produced by the
	// Relationalizer lifting "xs" into "from e in xs".
	ScanPat Pattern
	ScanExp Expr

	// StepWhere
	WhereExp Expr

	// StepOrder
	OrderItems []OrderItem

	// StepGroup
	GroupKeys  []GroupKey
	Aggregates []Aggregate

	// StepYield
	YieldExp Expr
}

// OrderItem is one "exp [desc]" entry of an order step.
type OrderItem struct {
	Exp        Expr
	Descending bool
}

// GroupKey is one "name = exp" grouping key of a group step.
type GroupKey struct {
	Name string
	Exp  Expr
}

// Aggregate is one "name = aggFn arg?" aggregate of a group step.
type Aggregate struct {
	Name string
	Op   AggOp
	Arg  Expr // nil if the aggregate takes no argument (e.g. count)
}

// AggOp is a built-in aggregate function reference, as it appears
// unresolved in the core AST before relational lowering (spec.md
// §4.6.3).
type AggOp string

const (
	AggSum   AggOp = "relational_sum"
	AggZSumI AggOp = "z_sum_int"
	AggZSumR AggOp = "z_sum_real"
	AggCount AggOp = "relational_count"
	AggMin   AggOp = "relational_min"
	AggMax   AggOp = "relational_max"
)

// From is a list-comprehension-style query: scan sources followed by an
// ordered step sequence, with an optional explicit yield.
type From struct {
	Sources []FromSource
	Steps   []Step
	// Yield is the explicit yield expression, or nil for the implicit
	// yield (the record of currently live step bindings).
	Yield Expr
	Typ   Type
}

func (f From) Type() Type { return f.Typ }
func (From) exprNode()    {}

// SetOpKind names one of the set operators applied to a tuple of
// sub-queries.
type SetOpKind int

const (
	SetUnion SetOpKind = iota
	SetExcept
	SetIntersect
)

// SetOp applies Kind to Args in order.
type SetOp struct {
	Kind SetOpKind
	Args []Expr
	Typ  Type
}

func (s SetOp) Type() Type { return s.Typ }
func (SetOp) exprNode()    {}

// Decl is a core declaration: a value binding, a recursive function
// group, or a datatype declaration.
type Decl interface {
	declNode()
}

// ValDecl is "val pat = exp".
type ValDecl struct {
	Pat Pattern
	Exp Expr
}

func (ValDecl) declNode() {}

// FunBinding is one function of a (possibly mutually recursive) FunDecl
// group.
type FunBinding struct {
	Name  string
	Cases []MatchCase
	Typ   Type
}

// FunDecl is a group of mutually recursive function declarations.
type FunDecl struct {
	Bindings []FunBinding
}

func (FunDecl) declNode() {}

// DatatypeDecl introduces one or more mutually recursive datatypes.
type DatatypeDecl struct {
	Types []DatatypeType
}

func (DatatypeDecl) declNode() {}

// Declaration is the top-level unit the rewrite driver (C6) and query
// lowering (C7) operate on: a Decl paired with a human-readable name
// for error attribution and tracing, and an optional skip pattern.
type Declaration struct {
	Name string
	Decl Decl
	// SkipPattern, when non-nil, names the synthetic top-level binding
	// produced by upgrading "val (x,y) = e" to "val it = …" (spec.md
	// §4.5 step 4); the printer suppresses it.
	SkipPattern *Id
}
