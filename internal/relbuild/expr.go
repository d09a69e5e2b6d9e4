package relbuild

import "github.com/morel-lang/hybrid/internal/core"

// translateExpr lowers a core expression to a scalar reference in the
// current row (spec.md §4.6.5). ok is false when expr is not one of
// the recognised shapes, in which case the enclosing `from` lowering
// fails and falls back to interpreter code.
func translateExpr(ctx RelContext, expr core.Expr) (Ref, bool) {
	switch e := expr.(type) {
	case core.Literal:
		return translateLiteral(ctx.Builder, e), true
	case core.Id:
		return translateId(ctx, e)
	case core.RecordSelector:
		return translateSelector(ctx, e)
	case core.Tuple:
		return translateTuple(ctx, e)
	case core.Apply:
		return translateApply(ctx, e)
	default:
		return nil, false
	}
}

// translateApply recognises a curried application of a built-in
// operator ("e.sal > 1000" is Apply(Apply(Id(">"), e.sal), 1000)) and
// lowers it to a single builder.Call. Anything whose head is not a
// bare identifier (a user function value, for instance) is outside
// the shapes this package lowers.
func translateApply(ctx RelContext, apply core.Apply) (Ref, bool) {
	head, args, ok := flattenApply(apply)
	if !ok {
		return nil, false
	}
	refs := make([]Ref, len(args))
	for i, a := range args {
		ref, ok := translateExpr(ctx, a)
		if !ok {
			return nil, false
		}
		refs[i] = ref
	}
	return ctx.Builder.Call(head, refs...), true
}

// flattenApply unrolls a curried Apply chain headed by a bare
// identifier into the identifier's name and its arguments in order.
func flattenApply(expr core.Expr) (string, []core.Expr, bool) {
	var args []core.Expr
	cur := core.Expr(expr)
	for {
		apply, ok := cur.(core.Apply)
		if !ok {
			break
		}
		args = append([]core.Expr{apply.Arg}, args...)
		cur = apply.Fn
	}
	id, ok := cur.(core.Id)
	if !ok {
		return "", nil, false
	}
	return id.Name, args, true
}

// translateLiteral encodes a literal as the builder sees it. Char
// literals become single-character strings, a work-around for
// builders lacking a CHAR type (spec.md §4.6.5, §9 open question 2);
// unit literals pass through as a nil-valued literal of unit type,
// which a Builder is free to treat as an empty row.
func translateLiteral(b Builder, lit core.Literal) Ref {
	if lit.Kind == core.LitChar {
		return b.Literal(string(lit.Value.(rune)), lit.Typ)
	}
	return b.Literal(lit.Value, lit.Typ)
}

// translateId implements the three-way identifier rule of spec.md
// §4.6.5: a concrete non-unit environment binding folds to a literal;
// a record-typed `from` variable expands to a tuple of its field
// selections; otherwise the variableMap resolver produces the
// reference.
func translateId(ctx RelContext, id core.Id) (Ref, bool) {
	if binding, ok := ctx.Env.GetOptId(id); ok && binding.HasValue() {
		if sv, ok := binding.Value.(core.ScalarValue); ok {
			return ctx.Builder.Literal(sv.Raw, id.Typ), true
		}
	}
	vr, ok := ctx.VariableMap[id.Name]
	if !ok {
		return nil, false
	}
	if vr.isRecord() {
		refs := make([]Ref, len(vr.Fields))
		for i, f := range vr.Fields {
			refs[i] = vr.Field(ctx.Builder, f)
		}
		return ctx.Builder.Call("ROW", refs...), true
	}
	return vr.Resolve(ctx.Builder), true
}

// translateSelector implements "#field x": a field reference against
// x's range.
func translateSelector(ctx RelContext, sel core.RecordSelector) (Ref, bool) {
	id, ok := sel.Arg.(core.Id)
	if !ok {
		return nil, false
	}
	vr, ok := ctx.VariableMap[id.Name]
	if !ok || !vr.isRecord() {
		return nil, false
	}
	return vr.Field(ctx.Builder, sel.Field), true
}

// translateTuple builds a ROW call with a synthetic row type whose
// field names are positional indices.
func translateTuple(ctx RelContext, t core.Tuple) (Ref, bool) {
	refs := make([]Ref, len(t.Args))
	for i, a := range t.Args {
		r, ok := translateExpr(ctx, a)
		if !ok {
			return nil, false
		}
		refs[i] = r
	}
	return ctx.Builder.Call("ROW", refs...), true
}
