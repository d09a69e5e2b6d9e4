// Package fakebuilder is a minimal in-memory implementation of the C8
// relational builder contract (internal/relbuild.Builder), standing in
// for a real planner so internal/relbuild's query lowering (C7) can be
// exercised end to end without one (spec.md §8 scenarios A-F).
package fakebuilder

import (
	"fmt"
	"sort"

	"github.com/morel-lang/hybrid/internal/core"
	"github.com/morel-lang/hybrid/internal/relbuild"
)

// Row is one row of column values.
type Row []any

// Relation is the fakebuilder's Rel: a flat table of named columns.
type Relation struct {
	Fields []string
	Rows   []Row
}

// NewRelation constructs a Relation directly, for seeding a foreign
// relation handle in a test's environment.
func NewRelation(fields []string, rows []Row) *Relation {
	return &Relation{Fields: fields, Rows: rows}
}

// expr is the fakebuilder's Ref: a closure evaluating a scalar over a
// row. Literal refs ignore their argument.
type expr func(row Row) any

// descExpr marks a sort key as descending.
type descExpr struct{ inner expr }

type entry struct {
	fields      []string
	rows        []Row
	aliasRanges map[string]fieldRange
}

type fieldRange struct{ offset, width int }

// Builder is the fakebuilder's stack machine.
type Builder struct {
	stack []entry
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

func (b *Builder) top() *entry {
	return &b.stack[len(b.stack)-1]
}

func (b *Builder) pop() entry {
	e := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return e
}

func (b *Builder) push(e entry) {
	b.stack = append(b.stack, e)
}

// Push places rel on top of the stack.
func (b *Builder) Push(rel relbuild.Rel) {
	r := rel.(*Relation)
	b.push(entry{fields: r.Fields, rows: r.Rows, aliasRanges: map[string]fieldRange{}})
}

// As aliases the top relation's entire current width under alias.
func (b *Builder) As(alias string) {
	top := b.top()
	if top.aliasRanges == nil {
		top.aliasRanges = map[string]fieldRange{}
	}
	top.aliasRanges[alias] = fieldRange{0, len(top.fields)}
}

// Values pushes a literal relation built by evaluating each row's refs
// (which must not depend on any outer row).
func (b *Builder) Values(rowType relbuild.RowType, rows [][]relbuild.Ref) {
	fields := rowType.([]string)
	out := make([]Row, len(rows))
	for i, row := range rows {
		r := make(Row, len(row))
		for j, ref := range row {
			r[j] = ref.(expr)(nil)
		}
		out[i] = r
	}
	b.push(entry{fields: fields, rows: out, aliasRanges: map[string]fieldRange{}})
}

// FieldByIndex references column index of the current row.
func (b *Builder) FieldByIndex(index int) relbuild.Ref {
	return expr(func(row Row) any { return row[index] })
}

// FieldByLevel is declared to satisfy the C8 contract but is never
// produced by this module's own lowering (internal/relbuild resolves
// every `from`-source reference via FieldByIndex or FieldByRange); it
// panics if called, which Lower's recover turns into a compile error.
func (b *Builder) FieldByLevel(level, aliasIndex, fieldIndex int) relbuild.Ref {
	panic("fakebuilder: FieldByLevel is not implemented")
}

// FieldByRange references the full span of columns belonging to the
// source aliased name on the current top relation.
func (b *Builder) FieldByRange(name string) relbuild.Ref {
	rng, ok := b.top().aliasRanges[name]
	if !ok {
		panic(fmt.Sprintf("fakebuilder: no alias %q on current relation", name))
	}
	return expr(func(row Row) any {
		return append(Row(nil), row[rng.offset:rng.offset+rng.width]...)
	})
}

// Literal returns a reference to a constant value.
func (b *Builder) Literal(value any, _ core.Type) relbuild.Ref {
	return expr(func(Row) any { return value })
}

// Call applies a named scalar operator to args.
func (b *Builder) Call(op string, args ...relbuild.Ref) relbuild.Ref {
	return expr(func(row Row) any {
		vals := make([]any, len(args))
		for i, a := range args {
			vals[i] = a.(expr)(row)
		}
		return applyOp(op, vals)
	})
}

// Project replaces the top relation with a projection over exps.
func (b *Builder) Project(exps []relbuild.Ref, names []string) {
	top := b.pop()
	newRows := make([]Row, len(top.rows))
	for i, row := range top.rows {
		r := make(Row, len(exps))
		for j, e := range exps {
			r[j] = e.(expr)(row)
		}
		newRows[i] = r
	}
	fields := names
	if fields == nil {
		fields = make([]string, len(exps))
		for i := range fields {
			fields[i] = fmt.Sprintf("$%d", i)
		}
	}
	b.push(entry{fields: fields, rows: newRows, aliasRanges: map[string]fieldRange{}})
}

// Filter replaces the top relation with a selection over exp.
func (b *Builder) Filter(exp relbuild.Ref) {
	top := b.pop()
	var kept []Row
	for _, row := range top.rows {
		if truthy(exp.(expr)(row)) {
			kept = append(kept, row)
		}
	}
	b.push(entry{fields: top.fields, rows: kept, aliasRanges: top.aliasRanges})
}

// Sort replaces the top relation with a sort over exps, stable, ties
// broken by declaration order of the items.
func (b *Builder) Sort(exps []relbuild.Ref) {
	top := b.pop()
	rows := append([]Row(nil), top.rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		for _, e := range exps {
			desc := false
			ev := e
			if d, ok := ev.(descExpr); ok {
				desc = true
				ev = d.inner
			}
			vi := ev.(expr)(rows[i])
			vj := ev.(expr)(rows[j])
			c := compareValues(vi, vj)
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	b.push(entry{fields: top.fields, rows: rows, aliasRanges: top.aliasRanges})
}

// Join folds the top two relations into their Cartesian product
// (every recognised shape uses a trivially-true join condition;
// spec.md §4.6.2 step 1).
func (b *Builder) Join(_ relbuild.JoinKind) {
	right := b.pop()
	left := b.pop()
	fields := append(append([]string(nil), left.fields...), right.fields...)
	var rows []Row
	for _, l := range left.rows {
		for _, r := range right.rows {
			row := make(Row, 0, len(l)+len(r))
			row = append(row, l...)
			row = append(row, r...)
			rows = append(rows, row)
		}
	}
	aliases := map[string]fieldRange{}
	for k, v := range left.aliasRanges {
		aliases[k] = v
	}
	shift := len(left.fields)
	for k, v := range right.aliasRanges {
		aliases[k] = fieldRange{v.offset + shift, v.width}
	}
	b.push(entry{fields: fields, rows: rows, aliasRanges: aliases})
}

// SetOp folds the top inputCount relations into one via the named set
// operator. all=true preserves duplicates (bag/multiset semantics);
// all=false deduplicates (set semantics).
func (b *Builder) SetOp(kind relbuild.SetKind, all bool, inputCount int) {
	popped := make([]entry, inputCount)
	for i := 0; i < inputCount; i++ {
		popped[i] = b.pop()
	}
	// popped[0] is the most recently pushed (last in original order);
	// reverse to recover left-to-right input order.
	inputs := make([]entry, inputCount)
	for i, e := range popped {
		inputs[inputCount-1-i] = e
	}

	var rows []Row
	switch kind {
	case relbuild.SetUnion:
		for _, in := range inputs {
			rows = append(rows, in.rows...)
		}
	case relbuild.SetMinus:
		exclude := map[string]bool{}
		for _, in := range inputs[1:] {
			for _, r := range in.rows {
				exclude[rowKey(r)] = true
			}
		}
		for _, r := range inputs[0].rows {
			if !exclude[rowKey(r)] {
				rows = append(rows, r)
			}
		}
	case relbuild.SetIntersect:
		counts := map[string]int{}
		for _, in := range inputs {
			seen := map[string]bool{}
			for _, r := range in.rows {
				k := rowKey(r)
				if !seen[k] {
					seen[k] = true
					counts[k]++
				}
			}
		}
		seen := map[string]bool{}
		for _, r := range inputs[0].rows {
			k := rowKey(r)
			if counts[k] == inputCount && !seen[k] {
				seen[k] = true
				rows = append(rows, r)
			}
		}
	}
	if !all {
		rows = dedupe(rows)
	}
	b.push(entry{fields: inputs[0].fields, rows: rows, aliasRanges: map[string]fieldRange{}})
}

// Aggregate replaces the top relation with a group-by over groupKey,
// computing calls. Output columns are positional: group keys first,
// then aggregate results, in declaration order (internal/relbuild
// re-projects and renames immediately afterward).
func (b *Builder) Aggregate(groupKey []relbuild.Ref, calls []relbuild.AggCall) {
	top := b.pop()

	type group struct {
		key  Row
		rows []Row
	}
	order := []string{}
	groups := map[string]*group{}
	for _, row := range top.rows {
		key := make(Row, len(groupKey))
		for i, k := range groupKey {
			key[i] = k.(expr)(row)
		}
		gk := rowKey(key)
		g, ok := groups[gk]
		if !ok {
			g = &group{key: key}
			groups[gk] = g
			order = append(order, gk)
		}
		g.rows = append(g.rows, row)
	}
	sort.Strings(order)

	fields := make([]string, len(groupKey)+len(calls))
	for i := range groupKey {
		fields[i] = fmt.Sprintf("_g%d", i)
	}
	for i := range calls {
		fields[len(groupKey)+i] = fmt.Sprintf("_a%d", i)
	}

	rows := make([]Row, 0, len(order))
	for _, gk := range order {
		g := groups[gk]
		row := make(Row, len(fields))
		copy(row, g.key)
		for i, call := range calls {
			row[len(groupKey)+i] = evalAgg(call, g.rows)
		}
		rows = append(rows, row)
	}
	b.push(entry{fields: fields, rows: rows, aliasRanges: map[string]fieldRange{}})
}

// Desc wraps a sort expression as descending.
func (b *Builder) Desc(exp relbuild.Ref) relbuild.Ref {
	return descExpr{inner: exp.(expr)}
}

// RowTypeOf returns rel's field names as its fakebuilder "row type".
func (b *Builder) RowTypeOf(rel relbuild.Rel) relbuild.RowType {
	return rel.(*Relation).Fields
}

// LeastRestrictive returns the first input's field names; fakebuilder
// does not track per-column static types, so there is no real widening
// to perform beyond giving every input a shared name.
func (b *Builder) LeastRestrictive(rowTypes []relbuild.RowType) relbuild.RowType {
	if len(rowTypes) == 0 {
		return []string(nil)
	}
	return rowTypes[0]
}

// Convert renames the top relation's columns to rowType.
func (b *Builder) Convert(rowType relbuild.RowType) {
	top := b.top()
	top.fields = rowType.([]string)
}

// Build pops and returns the top relation.
func (b *Builder) Build() relbuild.Rel {
	top := b.pop()
	return &Relation{Fields: top.fields, Rows: top.rows}
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func rowKey(row Row) string {
	return fmt.Sprint([]any(row))
}

func dedupe(rows []Row) []Row {
	seen := map[string]bool{}
	var out []Row
	for _, r := range rows {
		k := rowKey(r)
		if !seen[k] {
			seen[k] = true
			out = append(out, r)
		}
	}
	return out
}
