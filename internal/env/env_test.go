package env

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/morel-lang/hybrid/internal/core"
)

func valBinding(name string, ordinal int) core.Binding {
	return core.Binding{
		Id:    core.Id{Name: name, Ordinal: ordinal},
		Kind:  core.KindVal,
		Value: core.ScalarValue{Raw: int64(ordinal)},
	}
}

// TestPersistence covers spec.md §8 property 1: binding onto e leaves e
// itself unchanged, and the new environment's top is the new binding.
func TestPersistence(t *testing.T) {
	require := require.New(t)

	e := Empty
	b := valBinding("x", 0)
	e2 := e.Bind(b)

	top, ok := e2.Top()
	require.True(ok)
	require.Equal(b, top)

	_, ok = e.Top()
	require.False(ok, "original environment must be unaffected by Bind")
	require.Equal(0, e.Depth())
	require.Equal(1, e2.Depth())
}

// TestLookupShadow covers spec.md §8 property 2: binding the same name
// twice, GetOpt resolves to the most recent.
func TestLookupShadow(t *testing.T) {
	require := require.New(t)

	b1 := valBinding("x", 0)
	b2 := valBinding("x", 1)

	e := Empty.Bind(b1).Bind(b2)

	got, ok := e.GetOpt("x")
	require.True(ok)
	require.Equal(b2, got)

	// The shadowed binding is still visited, strictly after its shadower.
	var seen []core.Binding
	e.Visit(func(b core.Binding) bool {
		seen = append(seen, b)
		return true
	})
	require.Equal([]core.Binding{b2, b1}, seen)
}

func TestGetOptId(t *testing.T) {
	require := require.New(t)
	b1 := valBinding("x", 0)
	b2 := valBinding("x", 1)
	e := Empty.Bind(b1).Bind(b2)

	got, ok := e.GetOptId(core.Id{Name: "x", Ordinal: 0})
	require.True(ok)
	require.Equal(b1, got)

	_, ok = e.GetOptId(core.Id{Name: "x", Ordinal: 99})
	require.False(ok)
}

func TestGetTopNeverFollowsOverload(t *testing.T) {
	require := require.New(t)
	over := core.Id{Name: "f", Ordinal: 0}
	inst := core.Binding{
		Id:         core.Id{Name: "f$1", Ordinal: 0},
		Kind:       core.KindInst,
		OverloadId: &over,
	}
	e := Empty.Bind(inst)

	// GetOpt resolves through the overload id.
	_, ok := e.GetOpt("f")
	require.True(ok)

	// GetTop does not: it only matches a binding's own identifier name.
	_, ok = e.GetTop("f")
	require.False(ok)
}

func TestCollectEnumeratesOverloadInstances(t *testing.T) {
	require := require.New(t)
	over := core.Id{Name: "f", Ordinal: 0}
	inst1 := core.Binding{Id: core.Id{Name: "f$int"}, Kind: core.KindInst, OverloadId: &over}
	inst2 := core.Binding{Id: core.Id{Name: "f$real"}, Kind: core.KindInst, OverloadId: &over}
	other := valBinding("g", 0)

	e := Empty.Bind(inst1).Bind(other).Bind(inst2)

	var collected []core.Binding
	e.Collect(over, func(b core.Binding) { collected = append(collected, b) })

	require.Equal([]core.Binding{inst2, inst1}, collected)
}

// TestPlusAssociativity covers spec.md §8 property 3.
func TestPlusAssociativity(t *testing.T) {
	require := require.New(t)

	a := Empty.Bind(valBinding("a", 0))
	b := Empty.Bind(valBinding("b", 0))
	c := Empty.Bind(valBinding("c", 0))

	left := a.Plus(b).Plus(c)
	right := a.Plus(b.Plus(c))

	for _, name := range []string{"a", "b", "c"} {
		lv, lok := left.GetOpt(name)
		rv, rok := right.GetOpt(name)
		require.Equal(lok, rok)
		if lok {
			require.Equal(lv, rv)
		}
	}
}

func TestPlusKeepsOthersTopOnTop(t *testing.T) {
	require := require.New(t)
	a := Empty.Bind(valBinding("x", 1))
	other := Empty.Bind(valBinding("y", 1)).Bind(valBinding("x", 2))

	merged := a.Plus(other)
	top, ok := merged.Top()
	require.True(ok)
	require.Equal(valBinding("x", 2), top)
}

func TestDistance(t *testing.T) {
	require := require.New(t)
	x := core.Id{Name: "x"}
	e := Empty.Bind(core.Binding{Id: x}).Bind(valBinding("y", 0)).Bind(valBinding("z", 0))

	require.Equal(2, e.Distance(x))
	require.GreaterOrEqual(e.Distance(core.Id{Name: "unbound"}), e.Depth())
}

func TestForEachValueSkipsUnitAndDedups(t *testing.T) {
	require := require.New(t)
	e := Empty.
		Bind(core.Binding{Id: core.Id{Name: "a"}, Value: core.UnitValue{}}).
		Bind(valBinding("x", 1)).
		Bind(valBinding("x", 2))

	var names []string
	e.ForEachValue(func(b core.Binding) { names = append(names, b.Id.Name) })
	require.Equal([]string{"x"}, names)
}

func TestForEachTypeMaterializesOverEntry(t *testing.T) {
	require := require.New(t)
	over := core.Id{Name: "f"}
	e := Empty.Bind(core.Binding{Id: core.Id{Name: "f$1"}, Kind: core.KindInst, OverloadId: &over})

	var kinds []core.BindKind
	var names []string
	e.ForEachType(func(b core.Binding) {
		kinds = append(kinds, b.Kind)
		names = append(names, b.Id.Name)
	})
	require.Equal([]core.BindKind{core.KindOver, core.KindInst}, kinds)
	require.Equal([]string{"f", "f$1"}, names)
}

func TestNearestAncestorNotObscuredBy(t *testing.T) {
	require := require.New(t)
	e := Empty.Bind(valBinding("a", 0)).Bind(valBinding("b", 0)).Bind(valBinding("c", 0))

	pruned := e.NearestAncestorNotObscuredBy(map[string]bool{"c": true, "b": true})
	top, ok := pruned.Top()
	require.True(ok)
	require.Equal("a", top.Id.Name)

	// Empty environment returns itself.
	require.Nil(Empty.NearestAncestorNotObscuredBy(map[string]bool{"anything": true}))
}

func TestRenumberZeroesOrdinals(t *testing.T) {
	require := require.New(t)
	over := core.Id{Name: "f", Ordinal: 5}
	e := Empty.
		Bind(core.Binding{Id: core.Id{Name: "x", Ordinal: 3}}).
		Bind(core.Binding{Id: core.Id{Name: "f$1", Ordinal: 7}, Kind: core.KindInst, OverloadId: &over})

	renumbered := e.Renumber()
	all := renumbered.All()
	require.Len(all, 2)
	for _, b := range all {
		require.Equal(0, b.Id.Ordinal)
		if b.OverloadId != nil {
			require.Equal(0, b.OverloadId.Ordinal)
		}
	}
}

func TestBindAllIdentityOptimization(t *testing.T) {
	require := require.New(t)
	bs := []core.Binding{valBinding("x", 0), valBinding("y", 0)}
	e := Empty.BindAll(bs)
	e2 := e.BindAll(bs)
	require.Same(e, e2)
}
