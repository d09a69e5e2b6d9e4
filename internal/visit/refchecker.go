package visit

import (
	goerrors "gopkg.in/src-d/go-errors.v1"

	"github.com/morel-lang/hybrid/internal/core"
	"github.com/morel-lang/hybrid/internal/env"
)

// ErrUnboundReference is raised when an Id node does not resolve in its
// enclosing environment (spec.md §4.3, §7).
var ErrUnboundReference = goerrors.NewKind("unbound reference: %s")

// Check walks expr, asserting that every Id resolves in the environment
// in scope at that point. It returns the first ErrUnboundReference
// encountered, or nil if every reference resolves (spec.md §4.3: "a
// specialization of C2 that asserts, at every Id node, that its
// identifier resolves").
func Check(root *env.Environment, expr core.Expr) error {
	v := New(root)
	return Walk(v, expr, func(v *EnvVisitor, e core.Expr) error {
		id, ok := e.(core.Id)
		if !ok {
			return nil
		}
		if _, found := v.Env.GetOptId(id); found {
			return nil
		}
		if _, found := v.Env.GetOpt(id.Name); found {
			return nil
		}
		return ErrUnboundReference.New(id.Name)
	})
}

// CheckDecl checks every expression reachable from decl against root,
// extended as walkDecl would extend it were decl itself the Decl of an
// enclosing Let — i.e. it checks the declaration's own right-hand sides
// exactly as Walk would when descending through a Let/Local wrapping it.
func CheckDecl(root *env.Environment, decl core.Decl) error {
	_, err := walkDecl(New(root), decl, func(v *EnvVisitor, e core.Expr) error {
		id, ok := e.(core.Id)
		if !ok {
			return nil
		}
		if _, found := v.Env.GetOptId(id); found {
			return nil
		}
		if _, found := v.Env.GetOpt(id.Name); found {
			return nil
		}
		return ErrUnboundReference.New(id.Name)
	})
	return err
}
