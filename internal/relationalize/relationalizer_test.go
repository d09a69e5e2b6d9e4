package relationalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/morel-lang/hybrid/internal/core"
	"github.com/morel-lang/hybrid/internal/env"
)

var (
	intType    = core.PrimitiveType{Name: core.Int}
	stringType = core.PrimitiveType{Name: core.String}
)

func curriedApply(head string, headType core.Type, args ...core.Expr) core.Expr {
	var cur core.Expr = core.Id{Name: head, Typ: headType}
	for _, a := range args {
		cur = core.Apply{Fn: cur, Arg: a, Typ: a.Type()}
	}
	return cur
}

// TestLiftMap covers spec.md end-to-end scenario E: "List.map (fn e =>
// e.name) emps" rewrites to "from e in emps yield e.name".
func TestLiftMap(t *testing.T) {
	require := require.New(t)

	empType := core.RecordType{Fields: []core.RecordField{{Name: "name", Type: stringType}}}
	empsType := core.ListType{Elem: empType}
	emps := core.Id{Name: "emps", Typ: empsType}

	nameFieldAccess := core.Fn{
		Param: core.IdPattern{Id: core.Id{Name: "e"}, Typ: empType},
		Body: core.RecordSelector{
			Field: "name",
			Arg:   core.Id{Name: "e", Typ: empType},
			Typ:   stringType,
		},
		Typ: core.FunctionType{Param: empType, Result: stringType},
	}

	call := curriedApply(listMap, core.FunctionType{}, nameFieldAccess, emps)
	call = withResultType(call, core.ListType{Elem: stringType})

	r := New(env.NewNameGenerator())
	rewritten, id := r.Rewrite(call)
	require.True(id.Changed())

	from, ok := rewritten.(core.From)
	require.True(ok, "expected a From, got %T", rewritten)
	require.Len(from.Sources, 1)
	require.Equal(emps, from.Sources[0].Exp)
	require.Empty(from.Steps)

	apply, ok := from.Yield.(core.Apply)
	require.True(ok)
	require.Equal(nameFieldAccess, apply.Fn)
}

func withResultType(e core.Expr, t core.Type) core.Expr {
	switch v := e.(type) {
	case core.Apply:
		v.Typ = t
		return v
	default:
		return e
	}
}

func TestLiftFilter(t *testing.T) {
	require := require.New(t)
	boolType := core.PrimitiveType{Name: core.Bool}
	xsType := core.ListType{Elem: intType}
	xs := core.Id{Name: "xs", Typ: xsType}

	pred := core.Fn{
		Param: core.IdPattern{Id: core.Id{Name: "e"}, Typ: intType},
		Body:  core.Literal{Kind: core.LitBool, Value: true, Typ: boolType},
		Typ:   core.FunctionType{Param: intType, Result: boolType},
	}

	call := curriedApply(listFilter, core.FunctionType{}, pred, xs)
	call = withResultType(call, xsType)

	r := New(env.NewNameGenerator())
	rewritten, id := r.Rewrite(call)
	require.True(id.Changed())

	from, ok := rewritten.(core.From)
	require.True(ok)
	require.Len(from.Steps, 1)
	require.Equal(core.StepWhere, from.Steps[0].Kind)
}

// TestRewritePreservesType checks spec.md §8 property 4: relationalize
// never changes an expression's static type, across every rule this
// package applies (map lifting, filter lifting, identity passthrough).
func TestRewritePreservesType(t *testing.T) {
	require := require.New(t)
	boolType := core.PrimitiveType{Name: core.Bool}

	empType := core.RecordType{Fields: []core.RecordField{{Name: "name", Type: stringType}}}
	mapFn := core.Fn{
		Param: core.IdPattern{Id: core.Id{Name: "e"}, Typ: empType},
		Body:  core.RecordSelector{Field: "name", Arg: core.Id{Name: "e", Typ: empType}, Typ: stringType},
		Typ:   core.FunctionType{Param: empType, Result: stringType},
	}
	mapCall := withResultType(curriedApply(listMap, core.FunctionType{}, mapFn, core.Id{Name: "emps", Typ: core.ListType{Elem: empType}}), core.ListType{Elem: stringType})

	filterPred := core.Fn{
		Param: core.IdPattern{Id: core.Id{Name: "e"}, Typ: intType},
		Body:  core.Literal{Kind: core.LitBool, Value: true, Typ: boolType},
		Typ:   core.FunctionType{Param: intType, Result: boolType},
	}
	filterCall := withResultType(curriedApply(listFilter, core.FunctionType{}, filterPred, core.Id{Name: "xs", Typ: core.ListType{Elem: intType}}), core.ListType{Elem: intType})

	lit := core.Literal{Kind: core.LitInt, Value: int64(1), Typ: intType}

	for _, e := range []core.Expr{mapCall, filterCall, lit} {
		r := New(env.NewNameGenerator())
		out, _ := r.Rewrite(e)
		require.Equal(e.Type(), out.Type(), "type changed rewriting %#v", e)
	}
}

func TestRewriteIsIdentityWhenNothingMatches(t *testing.T) {
	require := require.New(t)
	r := New(env.NewNameGenerator())
	lit := core.Literal{Kind: core.LitInt, Value: int64(1), Typ: intType}
	out, id := r.Rewrite(lit)
	require.Equal(lit, out)
	require.False(id.Changed())
}

// TestFlattenNestedFrom exercises the nested-from flattening rule of
// spec.md §4.4: "from e in (from x in xs yield g x) where p e" collapses
// to a single From over xs.
func TestFlattenNestedFrom(t *testing.T) {
	require := require.New(t)

	xsType := core.ListType{Elem: intType}
	xs := core.Id{Name: "xs", Typ: xsType}
	gX := core.RecordSelector{Field: "f", Arg: core.Id{Name: "x", Typ: intType}, Typ: intType}

	inner := core.From{
		Sources: []core.FromSource{{Pat: core.IdPattern{Id: core.Id{Name: "x"}, Typ: intType}, Exp: xs}},
		Yield:   gX,
		Typ:     xsType,
	}

	outer := core.From{
		Sources: []core.FromSource{{Pat: core.IdPattern{Id: core.Id{Name: "e"}, Typ: intType}, Exp: inner}},
		Steps: []core.Step{
			{Kind: core.StepWhere, WhereExp: core.Id{Name: "e", Typ: intType}},
		},
		Typ: xsType,
	}

	flat, ok := flattenOneLevel(outer)
	require.True(ok)
	require.Equal(inner.Sources, flat.Sources)
	// inner steps (none) + synthetic wrap yield + outer's where step
	require.Len(flat.Steps, 2)
	require.Equal(core.StepYield, flat.Steps[0].Kind)
	rec, ok := flat.Steps[0].YieldExp.(core.RecordCons)
	require.True(ok)
	require.Len(rec.Fields, 1)
	require.Equal("e", rec.Fields[0].Name)
	require.Equal(core.StepWhere, flat.Steps[1].Kind)
}
