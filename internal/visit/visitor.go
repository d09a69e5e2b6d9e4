// Package visit implements the traversal harness (C2, EnvVisitor) that
// walks the core AST while maintaining a synchronised Environment, and
// the RefChecker (C3) built on top of it.
package visit

import (
	"github.com/morel-lang/hybrid/internal/core"
	"github.com/morel-lang/hybrid/internal/env"
)

// Frame remembers one enclosing from-step, so a nested aggregate visit
// can reconstruct that step's input schema (spec.md §4.2).
type Frame struct {
	Step core.Step
	Env  *env.Environment
}

// EnvVisitor holds the traversal state: the current environment and the
// stack of enclosing from-steps. It is immutable — every "descend with
// more bindings" operation returns a new EnvVisitor.
type EnvVisitor struct {
	Env       *env.Environment
	FromStack []Frame
}

// New returns an EnvVisitor rooted at e with an empty from-stack.
func New(e *env.Environment) *EnvVisitor {
	return &EnvVisitor{Env: e}
}

// WithEnv returns a copy of v with Env replaced.
func (v *EnvVisitor) WithEnv(e *env.Environment) *EnvVisitor {
	return &EnvVisitor{Env: e, FromStack: v.FromStack}
}

// Bind returns a copy of v with its environment extended by bs.
func (v *EnvVisitor) Bind(bs []core.Binding) *EnvVisitor {
	return v.WithEnv(v.Env.BindAll(bs))
}

// PushFrame returns a copy of v with step pushed onto the from-stack,
// remembering the environment in effect at that step's input.
func (v *EnvVisitor) PushFrame(step core.Step) *EnvVisitor {
	frames := make([]Frame, len(v.FromStack), len(v.FromStack)+1)
	copy(frames, v.FromStack)
	frames = append(frames, Frame{Step: step, Env: v.Env})
	return &EnvVisitor{Env: v.Env, FromStack: frames}
}

// bindingsOf returns one type-only Binding per identifier a pattern
// introduces.
func bindingsOf(pat core.Pattern) []core.Binding {
	ids := core.Vars(pat)
	out := make([]core.Binding, len(ids))
	for i, id := range ids {
		out[i] = core.Binding{Id: id, Kind: core.KindVal}
	}
	return out
}

// Each is called at every expression node during Walk, with the
// EnvVisitor whose environment is in scope at that node (i.e. already
// extended for that node's own bindings when the node is itself a
// binder's body, not the binder's own sub-expressions that precede the
// binding — see the per-construct rules in Walk). Returning an error
// aborts the walk.
type Each func(v *EnvVisitor, e core.Expr) error

// Walk performs deterministic depth-first, left-to-right descent over
// expr, calling each at every node with the environment synchronised to
// that node's position (spec.md §4.2, §5 "Ordering").
func Walk(v *EnvVisitor, expr core.Expr, each Each) error {
	if err := each(v, expr); err != nil {
		return err
	}
	switch e := expr.(type) {
	case core.Id, core.Literal:
		return nil

	case core.Tuple:
		for _, a := range e.Args {
			if err := Walk(v, a, each); err != nil {
				return err
			}
		}
		return nil

	case core.RecordCons:
		for _, f := range e.Fields {
			if err := Walk(v, f.Expr, each); err != nil {
				return err
			}
		}
		return nil

	case core.RecordSelector:
		return Walk(v, e.Arg, each)

	case core.Apply:
		if err := Walk(v, e.Fn, each); err != nil {
			return err
		}
		return Walk(v, e.Arg, each)

	case core.Fn:
		child := v.Bind(bindingsOf(e.Param))
		return Walk(child, e.Body, each)

	case core.Let:
		bodyEnv, err := walkDecl(v, e.Decl, each)
		if err != nil {
			return err
		}
		return Walk(v.WithEnv(bodyEnv), e.Body, each)

	case core.Local:
		bodyEnv, err := walkDecl(v, e.Decl, each)
		if err != nil {
			return err
		}
		return Walk(v.WithEnv(bodyEnv), e.Body, each)

	case core.Match:
		if err := Walk(v, e.Arg, each); err != nil {
			return err
		}
		for _, c := range e.Cases {
			child := v.Bind(bindingsOf(c.Pat))
			if err := Walk(child, c.Expr, each); err != nil {
				return err
			}
		}
		return nil

	case core.From:
		return walkFrom(v, e, each)

	case core.SetOp:
		for _, a := range e.Args {
			if err := Walk(v, a, each); err != nil {
				return err
			}
		}
		return nil

	default:
		return nil
	}
}

// walkDecl descends into decl's own sub-expressions (with the
// environment appropriate to each — a ValDecl's Exp does not see its
// own binding, a FunDecl's Cases see every sibling in the group, per
// spec.md §4.2's "recursive value decls") and returns the environment
// the decl's body should see.
func walkDecl(v *EnvVisitor, decl core.Decl, each Each) (*env.Environment, error) {
	switch d := decl.(type) {
	case core.ValDecl:
		if err := Walk(v, d.Exp, each); err != nil {
			return nil, err
		}
		child := v.Bind(bindingsOf(d.Pat))
		return child.Env, nil
	case core.FunDecl:
		var bs []core.Binding
		for _, fb := range d.Bindings {
			bs = append(bs, core.Binding{Id: core.Id{Name: fb.Name}, Kind: core.KindVal})
		}
		child := v.Bind(bs)
		for _, fb := range d.Bindings {
			for _, c := range fb.Cases {
				caseVisitor := child.Bind(bindingsOf(c.Pat))
				if err := Walk(caseVisitor, c.Expr, each); err != nil {
					return nil, err
				}
			}
		}
		return child.Env, nil
	case core.DatatypeDecl:
		return v.Env, nil
	default:
		return v.Env, nil
	}
}

// walkFrom descends into a From expression per spec.md §4.6.2's source
// and step ordering, threading the accumulating environment and
// maintaining the from-stack for nested aggregate visits.
func walkFrom(v *EnvVisitor, f core.From, each Each) error {
	cur := v
	for _, src := range f.Sources {
		if err := Walk(cur, src.Exp, each); err != nil {
			return err
		}
		cur = cur.Bind(bindingsOf(src.Pat))
	}

	for _, step := range f.Steps {
		frameVisitor := cur.PushFrame(step)
		switch step.Kind {
		case core.StepScan:
			if err := Walk(cur, step.ScanExp, each); err != nil {
				return err
			}
			cur = cur.Bind(bindingsOf(step.ScanPat))
		case core.StepWhere:
			if err := Walk(cur, step.WhereExp, each); err != nil {
				return err
			}
		case core.StepOrder:
			for _, item := range step.OrderItems {
				if err := Walk(cur, item.Exp, each); err != nil {
					return err
				}
			}
		case core.StepGroup:
			for _, k := range step.GroupKeys {
				if err := Walk(frameVisitor, k.Exp, each); err != nil {
					return err
				}
			}
			var bs []core.Binding
			for _, k := range step.GroupKeys {
				bs = append(bs, core.Binding{Id: core.Id{Name: k.Name}, Kind: core.KindVal})
			}
			for _, a := range step.Aggregates {
				if a.Arg != nil {
					if err := Walk(frameVisitor, a.Arg, each); err != nil {
						return err
					}
				}
				bs = append(bs, core.Binding{Id: core.Id{Name: a.Name}, Kind: core.KindVal})
			}
			// A group step replaces the from's row-scope bindings with
			// exactly its key and aggregate outputs (spec.md §4.6.2 step
			// 4), but the enclosing lexical environment in scope when
			// this From was entered — v.Env, not cur.Env — must still be
			// visible afterward, or any reference to an outer binding in
			// a later step or the final yield wrongly reports unbound.
			cur = cur.WithEnv(v.Env.BindAll(bs))
		case core.StepYield:
			if err := Walk(cur, step.YieldExp, each); err != nil {
				return err
			}
			// A mid-pipeline yield of a record becomes the new current
			// row: subsequent steps see its fields as live variables
			// (this is what lets the Relationalizer's nested-from
			// flattening wrap a source in a single-field record and have
			// later steps still resolve it by name, spec.md §4.4).
			if rec, ok := step.YieldExp.(core.RecordCons); ok {
				var bs []core.Binding
				for _, f := range rec.Fields {
					bs = append(bs, core.Binding{Id: core.Id{Name: f.Name}, Kind: core.KindVal})
				}
				cur = cur.WithEnv(v.Env.BindAll(bs))
			}
		}
	}

	if f.Yield != nil {
		return Walk(cur, f.Yield, each)
	}
	return nil
}
