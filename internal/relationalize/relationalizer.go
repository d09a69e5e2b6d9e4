// Package relationalize implements the Relationalizer (C5): it rewrites
// "map"/"filter" primitive calls into equivalent from-comprehensions and
// flattens a from whose source is itself a from (spec.md §4.4).
package relationalize

import (
	"github.com/morel-lang/hybrid/internal/core"
	"github.com/morel-lang/hybrid/internal/env"
	"github.com/morel-lang/hybrid/internal/transform"
)

// builtin names recognized as the map/filter primitives (spec.md §4.4).
const (
	listMap    = "List.map"
	listFilter = "List.filter"
)

// Relationalizer rewrites one core expression at a time. It carries a
// NameGenerator so every lifted scan variable is fresh.
type Relationalizer struct {
	Gen *env.NameGenerator
}

// New returns a Relationalizer allocating fresh names from gen.
func New(gen *env.NameGenerator) *Relationalizer {
	return &Relationalizer{Gen: gen}
}

// Rewrite applies the Relationalizer bottom-up to expr, returning the
// rewritten expression and whether anything changed.
func (r *Relationalizer) Rewrite(expr core.Expr) (core.Expr, transform.Identity) {
	rewritten, id := r.rewriteChildren(expr)
	if top, ok := r.rewriteTop(rewritten); ok {
		return top, transform.NewTree
	}
	return rewritten, id
}

// rewriteChildren rewrites expr's immediate sub-expressions, bottom-up,
// without looking at expr's own top-level shape.
func (r *Relationalizer) rewriteChildren(expr core.Expr) (core.Expr, transform.Identity) {
	switch e := expr.(type) {
	case core.Apply:
		fn, idf := r.Rewrite(e.Fn)
		arg, ida := r.Rewrite(e.Arg)
		if !idf.Changed() && !ida.Changed() {
			return e, transform.SameTree
		}
		e.Fn, e.Arg = fn, arg
		return e, transform.NewTree
	case core.Tuple:
		changed := false
		args := make([]core.Expr, len(e.Args))
		for i, a := range e.Args {
			na, id := r.Rewrite(a)
			args[i] = na
			changed = changed || id.Changed()
		}
		if !changed {
			return e, transform.SameTree
		}
		e.Args = args
		return e, transform.NewTree
	case core.From:
		changed := false
		srcs := make([]core.FromSource, len(e.Sources))
		for i, s := range e.Sources {
			ne, id := r.Rewrite(s.Exp)
			srcs[i] = core.FromSource{Pat: s.Pat, Exp: ne}
			changed = changed || id.Changed()
		}
		steps := make([]core.Step, len(e.Steps))
		for i, s := range e.Steps {
			ns, id := r.rewriteStep(s)
			steps[i] = ns
			changed = changed || id.Changed()
		}
		var yield core.Expr
		if e.Yield != nil {
			var id transform.Identity
			yield, id = r.Rewrite(e.Yield)
			changed = changed || id.Changed()
		}
		if !changed {
			return e, transform.SameTree
		}
		e.Sources, e.Steps, e.Yield = srcs, steps, yield
		return e, transform.NewTree
	default:
		return expr, transform.SameTree
	}
}

func (r *Relationalizer) rewriteStep(s core.Step) (core.Step, transform.Identity) {
	changed := false
	switch s.Kind {
	case core.StepScan:
		ne, id := r.Rewrite(s.ScanExp)
		s.ScanExp = ne
		changed = id.Changed()
	case core.StepWhere:
		ne, id := r.Rewrite(s.WhereExp)
		s.WhereExp = ne
		changed = id.Changed()
	case core.StepOrder:
		items := make([]core.OrderItem, len(s.OrderItems))
		for i, it := range s.OrderItems {
			ne, id := r.Rewrite(it.Exp)
			items[i] = core.OrderItem{Exp: ne, Descending: it.Descending}
			changed = changed || id.Changed()
		}
		s.OrderItems = items
	case core.StepGroup:
		keys := make([]core.GroupKey, len(s.GroupKeys))
		for i, k := range s.GroupKeys {
			ne, id := r.Rewrite(k.Exp)
			keys[i] = core.GroupKey{Name: k.Name, Exp: ne}
			changed = changed || id.Changed()
		}
		s.GroupKeys = keys
	case core.StepYield:
		ne, id := r.Rewrite(s.YieldExp)
		s.YieldExp = ne
		changed = id.Changed()
	}
	if !changed {
		return s, transform.SameTree
	}
	return s, transform.NewTree
}

// rewriteTop recognizes a map/filter call or a from-of-from shape at
// expr's own top level, returning the rewritten expression and true if
// a rewrite fired.
func (r *Relationalizer) rewriteTop(expr core.Expr) (core.Expr, bool) {
	if head, args, ok := flattenApply(expr); ok {
		switch {
		case head == listMap && len(args) == 2:
			return r.liftMap(args[0], args[1], expr.Type()), true
		case head == listFilter && len(args) == 2:
			return r.liftFilter(args[0], args[1], expr.Type()), true
		}
	}
	if from, ok := expr.(core.From); ok {
		if flat, ok := flattenOneLevel(from); ok {
			return flat, true
		}
	}
	return expr, false
}

// flattenApply unrolls a left-nested chain of single-argument
// applications down to its head identifier, returning the identifier's
// name and the arguments in left-to-right (curried) order.
func flattenApply(expr core.Expr) (string, []core.Expr, bool) {
	var args []core.Expr
	cur := expr
	for {
		app, ok := cur.(core.Apply)
		if !ok {
			break
		}
		args = append([]core.Expr{app.Arg}, args...)
		cur = app.Fn
	}
	id, ok := cur.(core.Id)
	if !ok || len(args) == 0 {
		return "", nil, false
	}
	return id.Name, args, true
}

// elemType returns the element type of a list- or bag-typed expression.
func elemType(t core.Type) core.Type {
	switch tt := t.(type) {
	case core.ListType:
		return tt.Elem
	case core.BagType:
		return tt.Elem
	default:
		return t
	}
}

func applyOne(fn core.Expr, arg core.Expr, resultType core.Type) core.Expr {
	return core.Apply{Fn: fn, Arg: arg, Typ: resultType}
}

// liftMap rewrites "(map f xs)" to "from e in xs yield f e" (spec.md
// §4.4).
func (r *Relationalizer) liftMap(f, xs core.Expr, resultType core.Type) core.Expr {
	elemT := elemType(xs.Type())
	e := core.Id{Name: r.Gen.Get(), Typ: elemT}
	fnResultType := elemType(resultType)
	from := core.From{
		Sources: []core.FromSource{{Pat: core.IdPattern{Id: e, Typ: elemT}, Exp: xs}},
		Yield:   applyOne(f, e, fnResultType),
		Typ:     resultType,
	}
	if flat, ok := flattenOneLevel(from); ok {
		return flat
	}
	return from
}

// liftFilter rewrites "(filter f xs)" to "from e in xs where f e" (spec.md
// §4.4).
func (r *Relationalizer) liftFilter(f, xs core.Expr, resultType core.Type) core.Expr {
	elemT := elemType(xs.Type())
	e := core.Id{Name: r.Gen.Get(), Typ: elemT}
	boolT := core.PrimitiveType{Name: core.Bool}
	from := core.From{
		Sources: []core.FromSource{{Pat: core.IdPattern{Id: e, Typ: elemT}, Exp: xs}},
		Steps:   []core.Step{{Kind: core.StepWhere, WhereExp: applyOne(f, e, boolT)}},
		Yield:   e,
		Typ:     resultType,
	}
	if flat, ok := flattenOneLevel(from); ok {
		return flat
	}
	return from
}

// flattenOneLevel flattens outer when its first source is itself a From,
// per spec.md §4.4's nested-from rule: the outer step sequence is
// replaced by the inner's steps, the inner's trailing yield (or unit, if
// the inner produced no steps) wrapped in a single-field record under
// the outer source's pattern name, followed by the outer's own steps.
func flattenOneLevel(outer core.From) (core.From, bool) {
	if len(outer.Sources) != 1 {
		return core.From{}, false
	}
	src := outer.Sources[0]
	inner, ok := src.Exp.(core.From)
	if !ok {
		return core.From{}, false
	}
	idPat, ok := src.Pat.(core.IdPattern)
	if !ok {
		return core.From{}, false
	}

	var innerResult core.Expr
	unitT := core.PrimitiveType{Name: core.Unit}
	switch {
	case inner.Yield != nil:
		innerResult = inner.Yield
	case len(inner.Steps) == 0:
		innerResult = core.Literal{Kind: core.LitUnit, Typ: unitT}
	default:
		innerResult = core.Literal{Kind: core.LitUnit, Typ: unitT}
	}

	fieldName := idPat.Id.Name
	recType := core.NewRecordType([]core.RecordField{{Name: fieldName, Type: innerResult.Type()}})
	wrap := core.Step{
		Kind: core.StepYield,
		YieldExp: core.RecordCons{
			Fields: []core.RecordFieldExpr{{Name: fieldName, Expr: innerResult}},
			Typ:    recType,
		},
	}

	steps := make([]core.Step, 0, len(inner.Steps)+1+len(outer.Steps))
	steps = append(steps, inner.Steps...)
	steps = append(steps, wrap)
	steps = append(steps, outer.Steps...)

	return core.From{
		Sources: inner.Sources,
		Steps:   steps,
		Yield:   outer.Yield,
		Typ:     outer.Typ,
	}, true
}
