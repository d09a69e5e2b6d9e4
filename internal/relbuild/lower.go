package relbuild

import (
	"github.com/morel-lang/hybrid/internal/core"
)

// Lower implements the recognised-shapes dispatch of spec.md §4.6.1.
// ok is false, with a nil error, whenever expr falls outside the
// shapes this package lowers — the caller falls back to interpreter
// code, exactly as spec.md §7 requires ("Unsupported lowering ...
// no error is raised"). A non-nil error only ever comes from a
// Builder panic (spec.md §7: "Builder rejection").
func Lower(ctx RelContext, expr core.Expr) (rel Rel, ok bool, err error) {
	defer recoverBuilderPanic(&err)

	switch e := expr.(type) {
	case core.RecordSelector:
		if r, ok := lowerForeignRelation(ctx, e); ok {
			return r, true, nil
		}
		return nil, false, nil
	case core.Id:
		if r, ok := lowerForeignRelationId(ctx, e); ok {
			return r, true, nil
		}
		return nil, false, nil
	case core.SetOp:
		return lowerSetOp(ctx, e)
	case core.From:
		return lowerFrom(ctx, e)
	default:
		return nil, false, nil
	}
}

// lowerForeignRelationId recognises a bare identifier bound to a
// foreign relation handle — the common case of a `from`-source that is
// itself the relation ("from d in depts", spec.md §8 scenario A).
func lowerForeignRelationId(ctx RelContext, id core.Id) (Rel, bool) {
	binding, ok := ctx.Env.GetOptId(id)
	if !ok {
		return nil, false
	}
	handle, ok := binding.Value.(core.RelationHandle)
	if !ok {
		return nil, false
	}
	if rel, ok := handle.Handle.(Rel); ok {
		return rel, true
	}
	return nil, false
}

// lowerForeignRelation recognises "#field scope": scope is an id bound
// to a foreign schema value whose runtime form is a relation handle
// keyed by field name (spec.md §4.6.1).
func lowerForeignRelation(ctx RelContext, sel core.RecordSelector) (Rel, bool) {
	id, ok := sel.Arg.(core.Id)
	if !ok {
		return nil, false
	}
	binding, ok := ctx.Env.GetOptId(id)
	if !ok {
		return nil, false
	}
	handle, ok := binding.Value.(core.RelationHandle)
	if !ok {
		return nil, false
	}
	schema, ok := handle.Handle.(map[string]Rel)
	if !ok {
		return nil, false
	}
	rel, ok := schema[sel.Field]
	return rel, ok
}
