// Package outmatch implements the OutputMatcher (C9): a type-directed
// parser and comparator for the pretty-printed form of Morel values,
// exposed only to the test harness (spec.md §4.7, §6). It never
// raises: parsing or comparison failures fall back to a negative
// answer, since a false negative is tolerable and a false positive is
// not.
package outmatch

import (
	"github.com/google/go-cmp/cmp"

	"github.com/morel-lang/hybrid/internal/core"
)

// Tuple is a parsed positional product value.
type Tuple []any

// Record is a parsed record value, reordered into its type's canonical
// (name-sorted) field order so two records with differently-ordered
// source text compare equal positionally.
type Record []any

// List is a parsed ordered-collection value; element order is
// significant for comparison.
type List []any

// Bag is a parsed unordered-collection value. Equal implements
// multiset comparison (spec.md §4.7 step 4): for every element of the
// receiver, find exactly one unmatched equivalent element of o. cmp
// picks this method up automatically whenever a Bag value is reached
// during a structural comparison, so bags nested inside tuples,
// records, or datatype arguments get multiset semantics "for free"
// without any type threaded alongside the value.
type Bag []any

func (b Bag) Equal(o Bag) bool {
	if len(b) != len(o) {
		return false
	}
	used := make([]bool, len(o))
	for _, lv := range b {
		found := false
		for i, rv := range o {
			if used[i] {
				continue
			}
			if cmp.Equal(lv, rv) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Ctor is a parsed datatype value: a constructor name and its
// argument, nil for a nullary constructor.
type Ctor struct {
	Name string
	Arg  any
}

// Unit is the parsed form of the unit value "()".
type Unit struct{}

// Equivalent parses actual and expected against typ's schema and
// reports whether they denote the same value (spec.md §4.7). Any
// parse or comparison failure — a malformed string, a type the parser
// does not recognise, an unexpected panic deep in a recursive descent
// — is caught and reported as false rather than propagated.
func Equivalent(typ core.Type, actual, expected string) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	av, ok := parseTop(typ, actual)
	if !ok {
		return false
	}
	ev, ok := parseTop(typ, expected)
	if !ok {
		return false
	}
	return cmp.Equal(av, ev)
}

func parseTop(typ core.Type, s string) (v any, ok bool) {
	defer func() {
		if recover() != nil {
			v, ok = nil, false
		}
	}()
	body := extractValue(s)
	toks, err := tokenize(body)
	if err != nil {
		return nil, false
	}
	p := &parser{toks: toks}
	val, err := p.parseValue(typ)
	if err != nil || !p.atEnd() {
		return nil, false
	}
	return val, true
}
