package visit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/morel-lang/hybrid/internal/core"
	"github.com/morel-lang/hybrid/internal/env"
)

var intType = core.PrimitiveType{Name: core.Int}

func id(name string) core.Id { return core.Id{Name: name, Typ: intType} }

func TestCheckResolvesBoundIdentifier(t *testing.T) {
	require := require.New(t)
	root := env.Empty.Bind(core.Binding{Id: core.Id{Name: "x"}, Kind: core.KindVal})

	err := Check(root, id("x"))
	require.NoError(err)
}

func TestCheckRejectsUnboundIdentifier(t *testing.T) {
	require := require.New(t)

	err := Check(env.Empty, id("y"))
	require.Error(err)
	require.True(ErrUnboundReference.Is(err))
}

func TestCheckFnBindsParam(t *testing.T) {
	require := require.New(t)
	fn := core.Fn{
		Param: core.IdPattern{Id: core.Id{Name: "x"}, Typ: intType},
		Body:  id("x"),
		Typ:   core.FunctionType{Param: intType, Result: intType},
	}
	require.NoError(Check(env.Empty, fn))
}

func TestCheckFnRejectsFreeVariableInBody(t *testing.T) {
	require := require.New(t)
	fn := core.Fn{
		Param: core.IdPattern{Id: core.Id{Name: "x"}, Typ: intType},
		Body:  id("y"),
		Typ:   core.FunctionType{Param: intType, Result: intType},
	}
	err := Check(env.Empty, fn)
	require.Error(err)
	require.True(ErrUnboundReference.Is(err))
}

func TestCheckLetDoesNotLeakIntoOwnRHS(t *testing.T) {
	require := require.New(t)
	let := core.Let{
		Decl: core.ValDecl{
			Pat: core.IdPattern{Id: core.Id{Name: "x"}, Typ: intType},
			Exp: id("x"), // self-reference: not in scope for a non-recursive ValDecl
		},
		Body: id("x"),
		Typ:  intType,
	}
	err := Check(env.Empty, let)
	require.Error(err)
	require.True(ErrUnboundReference.Is(err))
}

func TestCheckLetBindsBody(t *testing.T) {
	require := require.New(t)
	let := core.Let{
		Decl: core.ValDecl{
			Pat: core.IdPattern{Id: core.Id{Name: "x"}, Typ: intType},
			Exp: core.Literal{Kind: core.LitInt, Value: int64(1), Typ: intType},
		},
		Body: id("x"),
		Typ:  intType,
	}
	require.NoError(Check(env.Empty, let))
}

func TestCheckFunDeclIsMutuallyRecursive(t *testing.T) {
	require := require.New(t)
	// fun isEven n = ... isOdd ...  and isOdd n = ... isEven ...
	fd := core.FunDecl{Bindings: []core.FunBinding{
		{Name: "isEven", Cases: []core.MatchCase{{
			Pat:  core.WildcardPattern{Typ: intType},
			Expr: id("isOdd"),
		}}},
		{Name: "isOdd", Cases: []core.MatchCase{{
			Pat:  core.WildcardPattern{Typ: intType},
			Expr: id("isEven"),
		}}},
	}}
	let := core.Let{Decl: fd, Body: id("isEven"), Typ: intType}
	require.NoError(Check(env.Empty, let))
}

func TestCheckFromThreadsSourceBindings(t *testing.T) {
	require := require.New(t)
	listType := core.ListType{Elem: intType}
	from := core.From{
		Sources: []core.FromSource{
			{Pat: core.IdPattern{Id: core.Id{Name: "e"}, Typ: intType}, Exp: id("emps")},
		},
		Steps: []core.Step{
			{Kind: core.StepWhere, WhereExp: id("e")},
		},
		Typ: listType,
	}
	root := env.Empty.Bind(core.Binding{Id: core.Id{Name: "emps"}, Kind: core.KindVal})
	require.NoError(Check(root, from))
}

func TestCheckFromGroupResetsLiveBindings(t *testing.T) {
	require := require.New(t)
	from := core.From{
		Sources: []core.FromSource{
			{Pat: core.IdPattern{Id: core.Id{Name: "e"}, Typ: intType}, Exp: id("emps")},
		},
		Steps: []core.Step{
			{
				Kind:      core.StepGroup,
				GroupKeys: []core.GroupKey{{Name: "k", Exp: id("e")}},
			},
			// After the group step, "e" is no longer live — only "k".
			{Kind: core.StepWhere, WhereExp: id("e")},
		},
		Typ: intType,
	}
	root := env.Empty.Bind(core.Binding{Id: core.Id{Name: "emps"}, Kind: core.KindVal})
	err := Check(root, from)
	require.Error(err)
	require.True(ErrUnboundReference.Is(err))
}

// TestCheckFromGroupKeepsEnclosingBindingsLive guards against a group
// step's reset wiping out bindings from outside the from entirely: a
// top-level constant referenced after grouping must still resolve.
func TestCheckFromGroupKeepsEnclosingBindingsLive(t *testing.T) {
	require := require.New(t)
	from := core.From{
		Sources: []core.FromSource{
			{Pat: core.IdPattern{Id: core.Id{Name: "e"}, Typ: intType}, Exp: id("emps")},
		},
		Steps: []core.Step{
			{
				Kind:      core.StepGroup,
				GroupKeys: []core.GroupKey{{Name: "k", Exp: id("e")}},
			},
			{Kind: core.StepWhere, WhereExp: id("threshold")},
		},
		Typ: intType,
	}
	root := env.Empty.
		Bind(core.Binding{Id: core.Id{Name: "emps"}, Kind: core.KindVal}).
		Bind(core.Binding{Id: core.Id{Name: "threshold"}, Kind: core.KindVal})
	require.NoError(Check(root, from))
}
