package relbuild

import "github.com/morel-lang/hybrid/internal/core"

// lowerSetOp implements the set-operator recognised shape of spec.md
// §4.6.1: lower each argument, harmonise row types (§4.6.4), then emit
// the corresponding builder call.
func lowerSetOp(ctx RelContext, e core.SetOp) (Rel, bool, error) {
	rels := make([]Rel, len(e.Args))
	rowTypes := make([]RowType, len(e.Args))
	for i, arg := range e.Args {
		rel, ok, err := Lower(ctx, arg)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		rels[i] = rel
		rowTypes[i] = ctx.Builder.RowTypeOf(rel)
	}

	lrt := ctx.Builder.LeastRestrictive(rowTypes)

	// Harmonise each input to lrt, reinserting them in their original
	// order afterward rather than stack order (spec.md §4.6.4).
	harmonised := make([]Rel, len(rels))
	for i, rel := range rels {
		ctx.Builder.Push(rel)
		ctx.Builder.Convert(lrt)
		harmonised[i] = ctx.Builder.Build()
	}
	for _, rel := range harmonised {
		ctx.Builder.Push(rel)
	}

	kind, all := setOpMapping(e.Kind)
	ctx.Builder.SetOp(kind, all, len(harmonised))
	return ctx.Builder.Build(), true, nil
}

// setOpMapping maps a core set operator to its builder kind and
// duplicate-handling flag: union is multiset (duplicates preserved),
// except/intersect are set semantics (duplicates removed).
func setOpMapping(k core.SetOpKind) (SetKind, bool) {
	switch k {
	case core.SetExcept:
		return SetMinus, false
	case core.SetIntersect:
		return SetIntersect, false
	default:
		return SetUnion, true
	}
}
