package rewrite

import (
	"github.com/morel-lang/hybrid/internal/core"
)

// relationalIn is the built-in membership test Morel's "suchThat" sugar
// desugars to: "x suchThat (x Relational.in bound)".
const relationalIn = "Relational.in"

// elaborateUnboundedExtents repeatedly replaces each UnboundedExtent
// source in expr with a concrete bounded expression discovered from a
// same-step "x Relational.in bound" where-clause constraining that
// source's pattern variable, until a pass makes no further progress or
// the driver's inline-pass budget is exhausted (spec.md §4.5 step 3).
// Only a From at the top of expr is examined; a From nested inside
// another expression keeps its UnboundedExtent sources.
// Once a pass observes no remaining unbounded patterns, later callers
// may skip this stage entirely (the monotone "may contain unbounded"
// flag described in §4.5 is the caller's responsibility — elaborate
// itself is always safe to call redundantly, since a From with no
// UnboundedExtent source is returned unchanged).
func (d *Driver) elaborateUnboundedExtents(expr core.Expr) core.Expr {
	for pass := 0; pass < max(d.Config.InlinePassCount, 1); pass++ {
		next, changed := elaborateOnce(expr)
		expr = next
		if !changed {
			break
		}
	}
	return expr
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func elaborateOnce(expr core.Expr) (core.Expr, bool) {
	switch e := expr.(type) {
	case core.From:
		changed := false
		srcs := make([]core.FromSource, len(e.Sources))
		copy(srcs, e.Sources)
		for i, src := range srcs {
			if _, unbounded := src.Exp.(core.UnboundedExtent); !unbounded {
				continue
			}
			if bound, ok := findBound(src.Pat, e.Steps); ok {
				srcs[i].Exp = bound
				changed = true
			}
		}
		if !changed {
			return e, false
		}
		e.Sources = srcs
		return e, true
	default:
		return expr, false
	}
}

// findBound looks for a StepWhere of shape "x Relational.in bound" where
// x is the identifier pat binds, and returns bound.
func findBound(pat core.Pattern, steps []core.Step) (core.Expr, bool) {
	idPat, ok := pat.(core.IdPattern)
	if !ok {
		return nil, false
	}
	for _, s := range steps {
		if s.Kind != core.StepWhere {
			continue
		}
		outer, ok := s.WhereExp.(core.Apply)
		if !ok {
			continue
		}
		inner, ok := outer.Fn.(core.Apply)
		if !ok {
			continue
		}
		head, ok := inner.Fn.(core.Id)
		if !ok || head.Name != relationalIn {
			continue
		}
		scrutinee, ok := inner.Arg.(core.Id)
		if !ok || scrutinee.Name != idPat.Id.Name {
			continue
		}
		return outer.Arg, true
	}
	return nil, false
}
