package outmatch_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/morel-lang/hybrid/internal/core"
	"github.com/morel-lang/hybrid/internal/outmatch"
)

var (
	intType    = core.PrimitiveType{Name: core.Int}
	stringType = core.PrimitiveType{Name: core.String}
)

// TestBagOfRecordsIgnoresOrder covers spec.md end-to-end scenario F:
// a bag of records compares equal under both field permutation within
// each element and element permutation within the bag.
func TestBagOfRecordsIgnoresOrder(t *testing.T) {
	recType := core.NewRecordType([]core.RecordField{
		{Name: "a", Type: intType},
		{Name: "b", Type: stringType},
	})
	typ := core.BagType{Elem: recType}

	a := `val it = [{a=1,b="x"},{a=2,b="y"}] : {a:int,b:string} bag`
	b := `val it = [{b="y",a=2},{a=1,b="x"}] : {a:int,b:string} bag`

	require.True(t, outmatch.Equivalent(typ, a, b))
}

func TestCommutative(t *testing.T) {
	typ := core.ListType{Elem: intType}
	x := `[1,2,3] : int list`
	y := `[1,2,3] : int list`
	z := `[1,2,4] : int list`
	require.Equal(t, outmatch.Equivalent(typ, x, y), outmatch.Equivalent(typ, y, x))
	require.Equal(t, outmatch.Equivalent(typ, x, z), outmatch.Equivalent(typ, z, x))
}

func TestBagPermutationAlwaysEquivalent(t *testing.T) {
	typ := core.BagType{Elem: intType}
	base := `[1,2,2,3] : int bag`
	perm := `[3,2,1,2] : int bag`
	require.True(t, outmatch.Equivalent(typ, base, perm))
}

func TestListPermutationNotEquivalent(t *testing.T) {
	typ := core.ListType{Elem: intType}
	base := `[1,2,3] : int list`
	perm := `[3,2,1] : int list`
	require.False(t, outmatch.Equivalent(typ, base, perm))
}

func TestRecordFieldOrderIgnored(t *testing.T) {
	recType := core.NewRecordType([]core.RecordField{
		{Name: "name", Type: stringType},
		{Name: "id", Type: intType},
	})
	a := `{id=1,name="eng"} : {id:int,name:string}`
	b := `{name="eng",id=1} : {id:int,name:string}`
	require.True(t, outmatch.Equivalent(recType, a, b))
}

func TestTupleOrderSignificant(t *testing.T) {
	typ := core.TupleType{Args: []core.Type{intType, stringType}}
	a := `(1,"x") : int * string`
	b := `(1,"y") : int * string`
	require.False(t, outmatch.Equivalent(typ, a, b))
}

func TestDatatypeConstructorAndArg(t *testing.T) {
	opt := core.DatatypeType{
		Name: "option",
		Constructors: []core.Constructor{
			{Name: "NONE"},
			{Name: "SOME", Arg: intType},
		},
	}
	require.True(t, outmatch.Equivalent(opt, `SOME 1 : int option`, `SOME 1 : int option`))
	require.False(t, outmatch.Equivalent(opt, `SOME 1 : int option`, `SOME 2 : int option`))
	require.True(t, outmatch.Equivalent(opt, `NONE : int option`, `NONE : int option`))
	require.False(t, outmatch.Equivalent(opt, `NONE : int option`, `SOME 1 : int option`))
}

func TestValPrefixAndNegativeNumbers(t *testing.T) {
	typ := core.ListType{Elem: intType}
	a := `val it = [~1,2,~3] : int list`
	b := `[~1,2,~3] : int list`
	require.True(t, outmatch.Equivalent(typ, a, b))
}

func TestMalformedInputIsNotEquivalent(t *testing.T) {
	typ := core.ListType{Elem: intType}
	require.False(t, outmatch.Equivalent(typ, `[1,2,3 : int list`, `[1,2,3] : int list`))
}

func TestNestedTupleInsideBagUsesMultisetSemantics(t *testing.T) {
	typ := core.BagType{Elem: core.TupleType{Args: []core.Type{intType, intType}}}
	a := `[(1,2),(3,4)] : (int * int) bag`
	b := `[(3,4),(1,2)] : (int * int) bag`
	require.True(t, outmatch.Equivalent(typ, a, b))
}
