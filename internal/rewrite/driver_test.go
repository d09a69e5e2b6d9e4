package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/morel-lang/hybrid/internal/core"
	"github.com/morel-lang/hybrid/internal/env"
	"github.com/morel-lang/hybrid/internal/transform"
	"github.com/morel-lang/hybrid/internal/visit"
)

var intType = core.PrimitiveType{Name: core.Int}

// countingInliner rewrites an Id named "target" to a literal once, then
// reports SameTree on every subsequent call — enough to drive the
// fixed-point loop to a stop.
type countingInliner struct{ calls int }

func (c *countingInliner) Inline(_ *env.Environment, expr core.Expr) (core.Expr, transform.Identity, error) {
	c.calls++
	if id, ok := expr.(core.Id); ok && id.Name == "target" {
		return core.Literal{Kind: core.LitInt, Value: int64(42), Typ: intType}, transform.NewTree, nil
	}
	return expr, transform.SameTree, nil
}

func TestDriverStopsAtFixedPoint(t *testing.T) {
	require := require.New(t)
	inliner := &countingInliner{}
	d := New(Config{InlinePassCount: 10}, inliner, nil)

	decl := core.Declaration{
		Name: "it",
		Decl: core.ValDecl{
			Pat: core.IdPattern{Id: core.Id{Name: "it"}, Typ: intType},
			Exp: core.Id{Name: "target", Typ: intType},
		},
	}

	result, err := d.Run(env.Empty, decl)
	require.NoError(err)

	vd := result.Decl.Decl.(core.ValDecl)
	lit, ok := vd.Exp.(core.Literal)
	require.True(ok)
	require.Equal(int64(42), lit.Value)

	// One pass rewrites target -> literal (NewTree), the next pass sees
	// a literal and reports SameTree, which stops the loop: 2 Inline
	// calls, not 10.
	require.Equal(2, inliner.calls)
}

func TestDriverZeroPassesRunsSingleLimitedInline(t *testing.T) {
	require := require.New(t)
	inliner := &countingInliner{}
	d := New(Config{InlinePassCount: 0}, inliner, nil)

	decl := core.Declaration{
		Decl: core.ValDecl{
			Pat: core.IdPattern{Id: core.Id{Name: "it"}, Typ: intType},
			Exp: core.Id{Name: "target", Typ: intType},
		},
	}
	_, err := d.Run(env.Empty, decl)
	require.NoError(err)
	require.Equal(1, inliner.calls)
}

func TestAttachSkipPatternUpgradesTupleDecl(t *testing.T) {
	require := require.New(t)
	d := New(Config{}, nil, nil)

	tupleType := core.TupleType{Args: []core.Type{intType, intType}}
	decl := core.Declaration{
		Decl: core.ValDecl{
			Pat: core.TuplePattern{
				Args: []core.Pattern{
					core.IdPattern{Id: core.Id{Name: "x"}, Typ: intType},
					core.IdPattern{Id: core.Id{Name: "y"}, Typ: intType},
				},
				Typ: tupleType,
			},
			Exp: core.Tuple{Args: []core.Expr{
				core.Literal{Kind: core.LitInt, Value: int64(1), Typ: intType},
				core.Literal{Kind: core.LitInt, Value: int64(2), Typ: intType},
			}, Typ: tupleType},
		},
	}

	result, err := d.Run(env.Empty, decl)
	require.NoError(err)
	require.NotNil(result.Decl.SkipPattern)
	require.Equal("it", result.Decl.SkipPattern.Name)

	vd := result.Decl.Decl.(core.ValDecl)
	idp, ok := vd.Pat.(core.IdPattern)
	require.True(ok)
	require.Equal("it", idp.Id.Name)
}

func TestMatchCoverageFlagsRedundant(t *testing.T) {
	require := require.New(t)
	d := New(Config{MatchCoverageEnabled: true}, nil, nil)

	lit1 := core.Literal{Kind: core.LitInt, Value: int64(1), Typ: intType}
	match := core.Match{
		Arg: core.Id{Name: "x", Typ: intType},
		Cases: []core.MatchCase{
			{Pat: core.WildcardPattern{Typ: intType}, Expr: lit1},
			{Pat: core.LiteralPattern{Lit: lit1}, Expr: lit1}, // unreachable after the wildcard
		},
		Typ: intType,
	}
	decl := core.Declaration{Decl: core.ValDecl{
		Pat: core.IdPattern{Id: core.Id{Name: "it"}, Typ: intType},
		Exp: match,
	}}

	_, err := d.Run(env.Empty, decl)
	require.Error(err)
	require.True(ErrMatchRedundant.Is(err))
}

func TestMatchCoverageWarnsNonExhaustive(t *testing.T) {
	require := require.New(t)
	d := New(Config{MatchCoverageEnabled: true}, nil, nil)

	dt := core.DatatypeType{Name: "color", Constructors: []core.Constructor{{Name: "Red"}, {Name: "Blue"}}}
	match := core.Match{
		Arg: core.Id{Name: "c", Typ: dt},
		Cases: []core.MatchCase{
			{Pat: core.ConPattern{Ctor: "Red", Typ: dt}, Expr: core.Literal{Kind: core.LitInt, Value: int64(1), Typ: intType}},
		},
		Typ: intType,
	}
	decl := core.Declaration{Decl: core.ValDecl{
		Pat: core.IdPattern{Id: core.Id{Name: "it"}, Typ: intType},
		Exp: match,
	}}

	result, err := d.Run(env.Empty, decl)
	require.NoError(err)
	require.Len(result.Warnings, 1)
}

func TestRefCheckFlagsUnboundIdentifier(t *testing.T) {
	require := require.New(t)
	d := New(Config{RefCheckEnabled: true}, nil, nil)

	decl := core.Declaration{Decl: core.ValDecl{
		Pat: core.IdPattern{Id: core.Id{Name: "it"}, Typ: intType},
		Exp: core.Id{Name: "unbound", Typ: intType},
	}}

	_, err := d.Run(env.Empty, decl)
	require.Error(err)
	require.True(visit.ErrUnboundReference.Is(err))
}

func TestRefCheckAllowsBoundIdentifier(t *testing.T) {
	require := require.New(t)
	d := New(Config{RefCheckEnabled: true}, nil, nil)

	root := env.Empty.Bind(core.Binding{Id: core.Id{Name: "x"}, Kind: core.KindVal})
	decl := core.Declaration{Decl: core.ValDecl{
		Pat: core.IdPattern{Id: core.Id{Name: "it"}, Typ: intType},
		Exp: core.Id{Name: "x", Typ: intType},
	}}

	_, err := d.Run(root, decl)
	require.NoError(err)
}

func TestMatchCoverageFlagsRedundantConstructor(t *testing.T) {
	require := require.New(t)
	d := New(Config{MatchCoverageEnabled: true}, nil, nil)

	dt := core.DatatypeType{Name: "color", Constructors: []core.Constructor{{Name: "Red"}, {Name: "Blue"}}}
	lit := core.Literal{Kind: core.LitInt, Value: int64(1), Typ: intType}
	match := core.Match{
		Arg: core.Id{Name: "c", Typ: dt},
		Cases: []core.MatchCase{
			{Pat: core.ConPattern{Ctor: "Red", Typ: dt}, Expr: lit},
			{Pat: core.ConPattern{Ctor: "Red", Typ: dt}, Expr: lit}, // unreachable duplicate
			{Pat: core.ConPattern{Ctor: "Blue", Typ: dt}, Expr: lit},
		},
		Typ: intType,
	}
	decl := core.Declaration{Decl: core.ValDecl{
		Pat: core.IdPattern{Id: core.Id{Name: "it"}, Typ: intType},
		Exp: match,
	}}

	_, err := d.Run(env.Empty, decl)
	require.Error(err)
	require.True(ErrMatchRedundant.Is(err))
}

func TestElaborateUnboundedExtent(t *testing.T) {
	require := require.New(t)
	d := New(Config{InlinePassCount: 1}, nil, nil)

	bound := core.Id{Name: "knownSet", Typ: core.ListType{Elem: intType}}
	from := core.From{
		Sources: []core.FromSource{
			{Pat: core.IdPattern{Id: core.Id{Name: "x"}, Typ: intType}, Exp: core.UnboundedExtent{Typ: intType}},
		},
		Steps: []core.Step{
			{Kind: core.StepWhere, WhereExp: core.Apply{
				Fn:  core.Apply{Fn: core.Id{Name: relationalIn}, Arg: core.Id{Name: "x", Typ: intType}},
				Arg: bound,
			}},
		},
		Typ: core.ListType{Elem: intType},
	}

	decl := core.Declaration{Decl: core.ValDecl{
		Pat: core.IdPattern{Id: core.Id{Name: "it"}, Typ: intType},
		Exp: from,
	}}

	result, err := d.Run(env.Empty, decl)
	require.NoError(err)
	vd := result.Decl.Decl.(core.ValDecl)
	outFrom := vd.Exp.(core.From)
	require.Equal(bound, outFrom.Sources[0].Exp)
}
