// Package hybrid is the top-level entry point for the compiler
// middle-end: it wires the rewrite driver (C6) to the relational
// query-lowering pass (C7) the way the teacher's engine.go wires its
// analyzer onto plan execution.
package hybrid

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	goerrors "gopkg.in/src-d/go-errors.v1"

	"github.com/morel-lang/hybrid/internal/core"
	"github.com/morel-lang/hybrid/internal/env"
	"github.com/morel-lang/hybrid/internal/relbuild"
	"github.com/morel-lang/hybrid/internal/rewrite"
)

// ErrCompile wraps a panic recovered from anywhere in the Compile
// pipeline — a buggy post-pass, an unexpected AST shape reaching the
// relational builder — into an ordinary error (spec.md §7:
// "exceptions as control flow, never abort the enclosing compilation").
var ErrCompile = goerrors.NewKind("compile: %v")

// Config mirrors the four propMap keys of spec.md §6.
type Config struct {
	Hybrid               bool
	InlinePassCount      int
	Relationalize        bool
	MatchCoverageEnabled bool
	RefCheckEnabled      bool
	Tracer               Tracer
	Log                  *logrus.Entry
}

// Tracer is the sink for intermediate compilation artefacts (spec.md
// §6). The three "...bool" methods report whether the caller should
// suppress the event that triggered them (true) or propagate it as a
// compile error (false).
type Tracer interface {
	OnCore(pass int, decl core.Declaration)
	OnPlan(plan relbuild.Rel)
	OnResult(value any)
	OnWarnings(warnings []rewrite.Warning)
	OnException(err error) bool
	OnTypeException(err error) bool
	HandleCompileException(err error) bool
}

// NoopTracer discards every event and never suppresses an error; the
// default when a Config carries no Tracer.
type NoopTracer struct{}

func (NoopTracer) OnCore(int, core.Declaration)      {}
func (NoopTracer) OnPlan(relbuild.Rel)               {}
func (NoopTracer) OnResult(any)                      {}
func (NoopTracer) OnWarnings([]rewrite.Warning)      {}
func (NoopTracer) OnException(error) bool            { return false }
func (NoopTracer) OnTypeException(error) bool        { return false }
func (NoopTracer) HandleCompileException(error) bool { return false }

// PostPass is an extra rewrite step an embedder can splice in after C6's
// fixed-point loop finishes, mirroring the teacher's
// AddPostAnalyzeRule.
type PostPass func(root *env.Environment, expr core.Expr) (core.Expr, error)

// Builder assembles a Compiler from a Config plus an ordered list of
// inliner and post-pass wiring, the way the teacher's
// analyzer.NewBuilder(...).AddPostAnalyzeRule(...).Build() assembles an
// Engine's analyzer from a provider and rule additions.
type Builder struct {
	config     Config
	inliner    rewrite.Inliner
	postPasses []PostPass
}

// NewBuilder starts a Builder from cfg.
func NewBuilder(cfg Config) *Builder {
	return &Builder{config: cfg}
}

// WithInliner sets the external inliner C6 drives (spec.md §2: C6
// alternates inliner passes with C5/unbounded-extent elaboration but
// does not implement inlining itself).
func (b *Builder) WithInliner(inliner rewrite.Inliner) *Builder {
	b.inliner = inliner
	return b
}

// AddPostRewritePass appends p to the post-fixed-point pass list.
func (b *Builder) AddPostRewritePass(p PostPass) *Builder {
	b.postPasses = append(b.postPasses, p)
	return b
}

// Build assembles the Compiler.
func (b *Builder) Build() *Compiler {
	log := b.config.Log
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	driverCfg := rewrite.Config{
		InlinePassCount:      b.config.InlinePassCount,
		Relationalize:        b.config.Relationalize,
		MatchCoverageEnabled: b.config.MatchCoverageEnabled,
		RefCheckEnabled:      b.config.RefCheckEnabled,
	}
	return &Compiler{
		config:     b.config,
		log:        log,
		driver:     rewrite.New(driverCfg, b.inliner, log),
		postPasses: append([]PostPass(nil), b.postPasses...),
	}
}

// CompileResult is the outcome of one Compile call: the rewritten
// declaration, and, when Config.Hybrid is set and the declaration's
// expression is one of the shapes C7 recognises, the lowered plan.
type CompileResult struct {
	Decl    core.Declaration
	Plan    relbuild.Rel
	HasPlan bool
}

// Compiler runs the C6 rewrite driver over a declaration and, when
// hybrid execution is enabled, attempts C7 query lowering against an
// external relational Builder.
type Compiler struct {
	config     Config
	log        *logrus.Entry
	driver     *rewrite.Driver
	postPasses []PostPass
}

func (c *Compiler) tracer() Tracer {
	if c.config.Tracer != nil {
		return c.config.Tracer
	}
	return NoopTracer{}
}

// Compile runs decl through the rewrite driver, any post-passes, and —
// when Config.Hybrid is set and builder is non-nil — C7 query
// lowering. A panic anywhere in this pipeline is recovered and offered
// to the Tracer via HandleCompileException before being turned into an
// error, so one bad declaration never aborts a session (spec.md §7).
func (c *Compiler) Compile(root *env.Environment, decl core.Declaration, builder relbuild.Builder) (result CompileResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			wrapped := errors.WithStack(ErrCompile.New(r))
			if c.tracer().HandleCompileException(wrapped) {
				result, err = CompileResult{}, nil
				return
			}
			result, err = CompileResult{}, wrapped
		}
	}()

	tr := c.tracer()
	tr.OnCore(0, decl)

	res, rerr := c.driver.Run(root, decl)
	if rerr != nil {
		if tr.OnException(rerr) {
			return CompileResult{}, nil
		}
		return CompileResult{}, errors.Wrapf(rerr, "rewriting %s", decl.Name)
	}
	if len(res.Warnings) > 0 {
		tr.OnWarnings(res.Warnings)
	}
	decl = res.Decl

	for _, pass := range c.postPasses {
		expr, hasExpr := rewrite.DeclExpr(decl.Decl)
		if !hasExpr {
			continue
		}
		rewritten, perr := pass(root, expr)
		if perr != nil {
			if tr.OnException(perr) {
				continue
			}
			return CompileResult{}, errors.Wrap(perr, "post-rewrite pass")
		}
		decl.Decl = replacePassExpr(decl.Decl, rewritten)
	}

	tr.OnCore(-1, decl)

	if !c.config.Hybrid || builder == nil {
		return CompileResult{Decl: decl}, nil
	}

	expr, hasExpr := rewrite.DeclExpr(decl.Decl)
	if !hasExpr {
		return CompileResult{Decl: decl}, nil
	}

	plan, ok, lowerErr := relbuild.Lower(relbuild.RelContext{Env: root, Builder: builder}, expr)
	if lowerErr != nil {
		if tr.OnException(lowerErr) {
			return CompileResult{Decl: decl}, nil
		}
		return CompileResult{}, errors.Wrapf(lowerErr, "lowering %s", decl.Name)
	}
	if !ok {
		return CompileResult{Decl: decl}, nil
	}
	tr.OnPlan(plan)
	return CompileResult{Decl: decl, Plan: plan, HasPlan: true}, nil
}

// replacePassExpr mirrors rewrite's own replaceDeclExpr for the one
// Decl shape a PostPass can rewrite.
func replacePassExpr(decl core.Decl, expr core.Expr) core.Decl {
	if vd, ok := decl.(core.ValDecl); ok {
		vd.Exp = expr
		return vd
	}
	return decl
}
