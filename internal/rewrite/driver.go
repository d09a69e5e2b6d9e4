// Package rewrite implements the rewrite driver (C6): the fixed-point
// loop that alternates inlining, relationalization (C5), and
// unbounded-extent elaboration over a core declaration (spec.md §4.5).
package rewrite

import (
	"github.com/sirupsen/logrus"
	goerrors "gopkg.in/src-d/go-errors.v1"

	"github.com/morel-lang/hybrid/internal/core"
	"github.com/morel-lang/hybrid/internal/env"
	"github.com/morel-lang/hybrid/internal/relationalize"
	"github.com/morel-lang/hybrid/internal/transform"
	"github.com/morel-lang/hybrid/internal/visit"
)

// Errors raised by the driver (spec.md §7).
var (
	ErrMatchRedundant     = goerrors.NewKind("match redundant: pattern %d is subsumed by preceding patterns")
	ErrMatchNonExhaustive = goerrors.NewKind("match nonexhaustive: not all constructors of %s are covered")
	ErrMatchBoth          = goerrors.NewKind("match redundant and nonexhaustive")
)

// Inliner is the external inlining collaborator (spec.md §2: "C6
// alternates inliner passes (external) with C5 and unbounded-extent
// elaboration"). This module drives it but does not implement it; name
// resolution and the inlining heuristic itself live outside this
// package's scope (spec.md §1).
type Inliner interface {
	Inline(e *env.Environment, expr core.Expr) (core.Expr, transform.Identity, error)
}

// NoopInliner never rewrites anything. It is a usable default for
// embedders that have not wired a real inliner yet, and lets this
// package's own tests exercise the driver's loop control without a real
// inlining heuristic.
type NoopInliner struct{}

func (NoopInliner) Inline(_ *env.Environment, expr core.Expr) (core.Expr, transform.Identity, error) {
	return expr, transform.SameTree, nil
}

// Config mirrors the propMap keys of spec.md §6.
type Config struct {
	InlinePassCount      int
	Relationalize        bool
	MatchCoverageEnabled bool
	// RefCheckEnabled runs the RefChecker (C3) over decl once, before
	// the fixed-point loop, as the "once" batch's other member
	// alongside match-coverage checking.
	RefCheckEnabled bool
}

// Warning is one non-fatal diagnostic surfaced through the
// warningConsumer (spec.md §7).
type Warning struct {
	Message string
}

// Driver runs the C6 fixed-point loop.
type Driver struct {
	Config  Config
	Inliner Inliner
	Log     *logrus.Entry
}

// New returns a Driver with the given config and inliner. If inliner is
// nil, NoopInliner is used. If log is nil, a default logrus entry is
// used.
func New(cfg Config, inliner Inliner, log *logrus.Entry) *Driver {
	if inliner == nil {
		inliner = NoopInliner{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Driver{Config: cfg, Inliner: inliner, Log: log}
}

// Result is the outcome of running the driver once over a declaration.
type Result struct {
	Decl     core.Declaration
	Warnings []Warning
}

// Run executes the algorithm of spec.md §4.5 over decl, in the
// environment root.
func (d *Driver) Run(root *env.Environment, decl core.Declaration) (Result, error) {
	var warnings []Warning

	if d.Config.RefCheckEnabled {
		if err := visit.CheckDecl(root, decl.Decl); err != nil {
			return Result{}, err
		}
	}

	if d.Config.MatchCoverageEnabled {
		if err := d.checkMatchCoverage(decl.Decl, &warnings); err != nil {
			return Result{}, err
		}
	}

	rel := relationalize.New(env.NewNameGenerator())

	expr, hasExpr := declExpr(decl.Decl)
	if hasExpr {
		if d.Config.InlinePassCount == 0 {
			rewritten, _, err := d.Inliner.Inline(root, expr)
			if err != nil {
				return Result{}, err
			}
			expr = rewritten
		} else {
			for pass := 0; pass < d.Config.InlinePassCount; pass++ {
				d.Log.WithFields(logrus.Fields{"pass": pass, "decl": decl.Name}).Debug("rewrite pass")

				inlined, inlineId, err := d.Inliner.Inline(root, expr)
				if err != nil {
					return Result{}, err
				}
				changed := inlineId

				if d.Config.Relationalize {
					relExpr, relId := rel.Rewrite(inlined)
					inlined = relExpr
					changed = transform.Combine(changed, relId)
				}

				expr = inlined
				if !changed.Changed() {
					break
				}
			}

			expr = d.elaborateUnboundedExtents(expr)
		}
		decl.Decl = replaceDeclExpr(decl.Decl, expr)
	}

	decl = attachSkipPattern(decl)

	d.Log.WithFields(logrus.Fields{"decl": decl.Name}).Debug("rewrite complete")
	return Result{Decl: decl, Warnings: warnings}, nil
}

// declExpr extracts the single expression a ValDecl wraps, if decl is a
// ValDecl. FunDecl/DatatypeDecl are left untouched by the inliner/
// relationalizer loop in this module (their bodies are walked via
// visit.Walk by the embedder's own inliner implementation).
func declExpr(decl core.Decl) (core.Expr, bool) {
	if vd, ok := decl.(core.ValDecl); ok {
		return vd.Exp, true
	}
	return nil, false
}

// DeclExpr is declExpr exported for embedders (compiler.go) that need
// to find the expression a rewritten ValDecl carries, e.g. to hand it
// to C7 query lowering after the fixed-point loop finishes.
func DeclExpr(decl core.Decl) (core.Expr, bool) {
	return declExpr(decl)
}

func replaceDeclExpr(decl core.Decl, expr core.Expr) core.Decl {
	if vd, ok := decl.(core.ValDecl); ok {
		vd.Exp = expr
		return vd
	}
	return decl
}

// attachSkipPattern upgrades a tuple-destructuring ValDecl "val (x,y) =
// e" to a synthetic "val it = e" and records the original pattern as
// SkipPattern so the printer can suppress it (spec.md §4.5 step 4).
func attachSkipPattern(decl core.Declaration) core.Declaration {
	vd, ok := decl.Decl.(core.ValDecl)
	if !ok {
		return decl
	}
	if _, isId := vd.Pat.(core.IdPattern); isId {
		return decl
	}
	tp, ok := vd.Pat.(core.TuplePattern)
	if !ok {
		return decl
	}
	itId := core.Id{Name: "it", Typ: tp.Typ}
	decl.Decl = core.ValDecl{Pat: core.IdPattern{Id: itId, Typ: tp.Typ}, Exp: vd.Exp}
	idCopy := itId
	decl.SkipPattern = &idCopy
	return decl
}

// checkMatchCoverage walks decl and reports redundant/non-exhaustive
// matches (spec.md §4.5 step 1). Redundant matches are fatal; a purely
// non-exhaustive match is a warning; both together are fatal with the
// combined message.
func (d *Driver) checkMatchCoverage(decl core.Decl, warnings *[]Warning) error {
	var outerErr error
	visitExpr := func(expr core.Expr) {
		walkMatches(expr, func(m core.Match) {
			redundant := findRedundant(m.Cases)
			exhaustive := isExhaustive(m)
			switch {
			case len(redundant) > 0 && !exhaustive:
				outerErr = ErrMatchBoth.New()
			case len(redundant) > 0:
				outerErr = ErrMatchRedundant.New(redundant[0])
			case !exhaustive:
				*warnings = append(*warnings, Warning{Message: "match nonexhaustive"})
			}
		})
	}
	switch dd := decl.(type) {
	case core.ValDecl:
		visitExpr(dd.Exp)
	case core.FunDecl:
		for _, b := range dd.Bindings {
			for _, c := range b.Cases {
				visitExpr(c.Expr)
			}
		}
	}
	return outerErr
}

// walkMatches calls fn for every Match node reachable from expr.
func walkMatches(expr core.Expr, fn func(core.Match)) {
	_ = visit.Walk(visit.New(nil), expr, func(_ *visit.EnvVisitor, e core.Expr) error {
		if m, ok := e.(core.Match); ok {
			fn(m)
		}
		return nil
	})
}

// findRedundant returns the 1-based indices of cases whose pattern is
// subsumed by the set of preceding patterns.
func findRedundant(cases []core.MatchCase) []int {
	var redundant []int
	var seenWildcard bool
	seenLiterals := map[any]bool{}
	seenCtors := map[string]bool{}
	for i, c := range cases {
		if seenWildcard {
			redundant = append(redundant, i+1)
			continue
		}
		switch p := c.Pat.(type) {
		case core.WildcardPattern, core.IdPattern:
			seenWildcard = true
		case core.LiteralPattern:
			if seenLiterals[p.Lit.Value] {
				redundant = append(redundant, i+1)
			}
			seenLiterals[p.Lit.Value] = true
		case core.ConPattern:
			if seenCtors[p.Ctor] {
				redundant = append(redundant, i+1)
				continue
			}
			if p.Arg == nil || isCatchAll(p.Arg) {
				seenCtors[p.Ctor] = true
			}
		}
	}
	return redundant
}

// isCatchAll reports whether pat matches every value of its type, i.e.
// it binds rather than discriminates: a wildcard or a bare identifier.
func isCatchAll(pat core.Pattern) bool {
	switch pat.(type) {
	case core.WildcardPattern, core.IdPattern:
		return true
	default:
		return false
	}
}

// isExhaustive reports whether m's cases cover every value of the
// scrutinee's type. A wildcard/id pattern or, for a datatype, every
// constructor being matched, counts as exhaustive.
func isExhaustive(m core.Match) bool {
	for _, c := range m.Cases {
		switch c.Pat.(type) {
		case core.WildcardPattern, core.IdPattern:
			return true
		}
	}
	dt, ok := m.Arg.Type().(core.DatatypeType)
	if !ok {
		return false
	}
	covered := map[string]bool{}
	for _, c := range m.Cases {
		if cp, ok := c.Pat.(core.ConPattern); ok {
			covered[cp.Ctor] = true
		}
	}
	for _, ctor := range dt.Constructors {
		if !covered[ctor.Name] {
			return false
		}
	}
	return true
}
