// Package env implements the immutable lexical Environment (C1) used
// during compilation, and the NameGenerator (C4) that allocates fresh
// identifiers during rewriting.
//
// The Environment is a persistent linked chain of frames, each
// contributing exactly one Binding and pointing at a parent frame
// (spec.md §4.1). No operation mutates an existing Environment; bind
// always returns a new chain sharing the old one as its tail. A nil
// *Environment is the empty environment.
package env

import (
	"reflect"

	"github.com/morel-lang/hybrid/internal/core"
)

// Environment is one frame of the persistent binding chain, or nil for
// the empty environment.
type Environment struct {
	parent  *Environment
	binding core.Binding
	depth   int
}

// Empty is the environment with no bindings.
var Empty *Environment

// Depth returns the number of frames in the chain (0 for Empty).
func (e *Environment) Depth() int {
	if e == nil {
		return 0
	}
	return e.depth
}

// Top returns the most recently bound Binding and true, or the zero
// Binding and false if e is empty.
func (e *Environment) Top() (core.Binding, bool) {
	if e == nil {
		return core.Binding{}, false
	}
	return e.binding, true
}

// Parent returns the environment below e's top frame.
func (e *Environment) Parent() *Environment {
	if e == nil {
		return nil
	}
	return e.parent
}

// Bind returns a new environment with b layered on top of e.
func (e *Environment) Bind(b core.Binding) *Environment {
	return &Environment{parent: e, binding: b, depth: e.Depth() + 1}
}

// BindAll returns a new environment with bs layered on top of e, the
// last element of bs ending up at the top of the stack. If e's top
// len(bs) frames already equal bs exactly (identifier and value), e is
// returned unchanged (spec.md §4.1: "identity optimization").
func (e *Environment) BindAll(bs []core.Binding) *Environment {
	if len(bs) == 0 {
		return e
	}
	if e.topMatches(bs) {
		return e
	}
	out := e
	for _, b := range bs {
		out = out.Bind(b)
	}
	return out
}

// topMatches reports whether e's top len(bs) frames, read bottom-up,
// equal bs exactly.
func (e *Environment) topMatches(bs []core.Binding) bool {
	cur := e
	for i := len(bs) - 1; i >= 0; i-- {
		if cur == nil {
			return false
		}
		want := bs[i]
		if !cur.binding.Id.SameIdentity(want.Id) || cur.binding.Kind != want.Kind {
			return false
		}
		if !reflect.DeepEqual(cur.binding.Value, want.Value) {
			return false
		}
		cur = cur.parent
	}
	return true
}

// All returns every binding in the chain, most-recent-first — the
// canonical iteration order (spec.md §4.1 invariant 2).
func (e *Environment) All() []core.Binding {
	var out []core.Binding
	for cur := e; cur != nil; cur = cur.parent {
		out = append(out, cur.binding)
	}
	return out
}

// Visit calls fn for every binding, most-recent-first, stopping early if
// fn returns false.
func (e *Environment) Visit(fn func(core.Binding) bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if !fn(cur.binding) {
			return
		}
	}
}

// GetOpt returns the most recent unshadowed binding matching name,
// either by its own identifier or by its overload group's identifier
// (spec.md §4.1: "lookup by name returns the most recent unshadowed
// binding").
func (e *Environment) GetOpt(name string) (core.Binding, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		b := cur.binding
		if b.Id.Name == name || (b.OverloadId != nil && b.OverloadId.Name == name) {
			return b, true
		}
	}
	return core.Binding{}, false
}

// GetOptId returns the binding with the exact identifier id (name and
// ordinal), or false if none exists.
func (e *Environment) GetOptId(id core.Id) (core.Binding, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if cur.binding.Id.SameIdentity(id) {
			return cur.binding, true
		}
	}
	return core.Binding{}, false
}

// GetTop returns the first binding, walking top-down, whose own
// identifier's name equals name. Unlike GetOpt, it never resolves
// through an overload group's identifier (spec.md §4.1: "never follows
// overload chain").
func (e *Environment) GetTop(name string) (core.Binding, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if cur.binding.Id.Name == name {
			return cur.binding, true
		}
	}
	return core.Binding{}, false
}

// Collect calls consumer for every binding belonging to the overload
// group named id.Name — either the binding itself or one of its
// instances — in most-recent-first order (spec.md §4.1: "enumerate
// overload instances").
func (e *Environment) Collect(id core.Id, consumer func(core.Binding)) {
	for cur := e; cur != nil; cur = cur.parent {
		b := cur.binding
		if b.Id.Name == id.Name || (b.OverloadId != nil && b.OverloadId.Name == id.Name) {
			consumer(b)
		}
	}
}

// Plus returns e extended with other's bindings, with other's own top
// binding ending up on top of the merged chain (spec.md §4.1: "other's
// top remains on top").
func (e *Environment) Plus(other *Environment) *Environment {
	bindings := other.All() // most-recent-first
	out := e
	for i := len(bindings) - 1; i >= 0; i-- {
		out = out.Bind(bindings[i])
	}
	return out
}

// distanceSentinel is returned by Distance when id is not bound; it
// always exceeds any real chain depth.
const distanceSentinel = 1 << 30

// Distance returns the number of frames between e's top and the nearest
// binding of id, or distanceSentinel (a value beyond any real chain
// length) if id is not bound (spec.md §4.1: used to judge inlining
// profitability).
func (e *Environment) Distance(id core.Id) int {
	i := 0
	for cur := e; cur != nil; cur = cur.parent {
		if cur.binding.Id.SameIdentity(id) {
			return i
		}
		i++
	}
	return distanceSentinel
}

// ForEachValue calls fn for every binding with a concrete, non-unit
// value, most-recent-first, deduplicated by name (first occurrence —
// the unshadowed one — wins; spec.md §4.1 invariant 4).
func (e *Environment) ForEachValue(fn func(core.Binding)) {
	seen := make(map[string]bool)
	e.Visit(func(b core.Binding) bool {
		if !b.HasValue() {
			return true
		}
		if seen[b.Id.Name] {
			return true
		}
		seen[b.Id.Name] = true
		fn(b)
		return true
	})
}

// ForEachType calls fn for every binding relevant to type display,
// deduplicated by name like ForEachValue, except that overload
// instances (Kind == core.KindInst) are never deduplicated against
// each other — instead, the first time a given overload group is
// encountered, a synthetic core.KindOver binding for that group is
// emitted immediately before it (spec.md §4.1 invariant 5).
func (e *Environment) ForEachType(fn func(core.Binding)) {
	seen := make(map[string]bool)
	seenOverload := make(map[string]bool)
	e.Visit(func(b core.Binding) bool {
		if b.Kind == core.KindInst && b.OverloadId != nil {
			group := b.OverloadId.Name
			if !seenOverload[group] {
				seenOverload[group] = true
				fn(core.Binding{Id: *b.OverloadId, Kind: core.KindOver})
			}
			fn(b)
			return true
		}
		if seen[b.Id.Name] {
			return true
		}
		seen[b.Id.Name] = true
		fn(b)
		return true
	})
}

// NearestAncestorNotObscuredBy returns the deepest suffix of e whose top
// binding's name is not a member of obscured, pruning away the
// irrelevant enclosing frames whose names collide with it. The empty
// environment returns itself (spec.md §4.1 invariant 6).
func (e *Environment) NearestAncestorNotObscuredBy(obscured map[string]bool) *Environment {
	for cur := e; ; cur = cur.parent {
		if cur == nil {
			return cur
		}
		if !obscured[cur.binding.Id.Name] {
			return cur
		}
	}
}

// Renumber returns an environment structurally identical to e but with
// every binding's identifier (and overload-group identifier, if any)
// reset to ordinal 0 — used when evaluating a fragment whose ordinals
// were generated in a different compilation context (spec.md §4.1.7).
// The original Java source calls this "a rather crude hack"; this
// implementation keeps exactly its documented contract and no more.
func (e *Environment) Renumber() *Environment {
	if e == nil {
		return nil
	}
	parent := e.parent.Renumber()
	b := e.binding
	b.Id.Ordinal = 0
	if b.OverloadId != nil {
		ov := *b.OverloadId
		ov.Ordinal = 0
		b.OverloadId = &ov
	}
	return parent.Bind(b)
}
