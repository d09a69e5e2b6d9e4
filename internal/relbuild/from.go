package relbuild

import (
	"sort"

	"golang.org/x/exp/maps"

	"github.com/morel-lang/hybrid/internal/core"
)

// sourceInfo tracks one `from`-source's shape through the permutation
// and variableMap construction steps of spec.md §4.6.2.
type sourceInfo struct {
	name   string
	width  int
	fields []core.RecordField // nil for a scalar source
	offset int
}

// elemType returns t's collection element type, or t itself if t is
// not a collection (mirrors internal/relationalize's elemType: a
// `from`-source's static type is always a collection of its bound
// pattern's type).
func elemType(t core.Type) core.Type {
	switch c := t.(type) {
	case core.ListType:
		return c.Elem
	case core.BagType:
		return c.Elem
	default:
		return t
	}
}

// rowShape reports the column width and, for a record-typed source,
// its canonical (sorted) field list.
func rowShape(t core.Type) (width int, fields []core.RecordField) {
	if rt, ok := t.(core.RecordType); ok {
		return len(rt.Fields), rt.Fields
	}
	return 1, nil
}

// lowerFrom implements the `from`-lowering algorithm of spec.md
// §4.6.2. It returns ok=false (no error) when any piece — a source, a
// step expression, or an aggregate — falls outside the recognised
// shapes, so the caller can fall back to interpreter code.
func lowerFrom(ctx RelContext, f core.From) (Rel, bool, error) {
	if len(f.Sources) == 0 {
		return nil, false, nil
	}

	infos := make([]sourceInfo, len(f.Sources))
	for i, src := range f.Sources {
		idPat, ok := src.Pat.(core.IdPattern)
		if !ok {
			return nil, false, nil
		}
		rel, ok, err := Lower(ctx, src.Exp)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		ctx.Builder.Push(rel)
		ctx.Builder.As(idPat.Id.Name)
		width, fields := rowShape(elemType(src.Exp.Type()))
		infos[i] = sourceInfo{name: idPat.Id.Name, width: width, fields: fields}

		if i > 0 {
			ctx.Builder.Join(InnerJoin)
		}
	}

	// Step 2: a single source needs no permutation — its own layout is
	// already canonical, and projecting it anyway would hide the foreign
	// relation's identity behind a no-op project, contradicting scenario
	// A's "no project, no filter" outcome.
	if len(infos) > 1 {
		ctx = applyPermutation(ctx, infos)
	} else {
		infos[0].offset = 0
	}

	// Step 3: build the variableMap.
	ctx = ctx.WithVariableMap(variableMapFor(infos))

	// Step 4: walk the steps.
	sawStep := false
	for _, step := range f.Steps {
		sawStep = true
		next, ok, err := applyStep(ctx, step)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		ctx = next
	}

	// Step 5: explicit or implicit yield.
	if f.Yield != nil {
		if err := applyFinalYield(ctx, f.Yield, true); err != nil {
			if err == errUnsupportedYield {
				return nil, false, nil
			}
			return nil, false, err
		}
	} else if len(infos) > 1 || sawStep {
		if err := applyImplicitYield(ctx); err != nil {
			return nil, false, err
		}
	}
	// else: single source, no steps, no yield — the relation already on
	// top of the stack IS the result (scenario A).

	return ctx.Builder.Build(), true, nil
}

// applyPermutation emits the name-sorted column project of spec.md
// §4.6.2 step 2 and returns ctx with each sourceInfo's offset updated
// to its position in the new, canonical layout.
func applyPermutation(ctx RelContext, infos []sourceInfo) RelContext {
	sorted := make([]int, len(infos))
	for i := range infos {
		sorted[i] = i
	}
	sort.Slice(sorted, func(a, b int) bool { return infos[sorted[a]].name < infos[sorted[b]].name })

	origOffset := make([]int, len(infos))
	running := 0
	for i, info := range infos {
		origOffset[i] = running
		running += info.width
	}

	var exps []Ref
	newOffset := 0
	for _, idx := range sorted {
		info := &infos[idx]
		for col := 0; col < info.width; col++ {
			exps = append(exps, ctx.Builder.FieldByIndex(origOffset[idx]+col))
		}
		info.offset = newOffset
		newOffset += info.width
	}
	ctx.Builder.Project(exps, nil)
	return ctx
}

// variableMapFor builds the variableMap of spec.md §4.6.2 step 3 from
// sourceInfo entries already carrying their canonical offsets.
func variableMapFor(infos []sourceInfo) map[string]VarRef {
	vm := make(map[string]VarRef, len(infos))
	for _, info := range infos {
		vm[info.name] = varRefFor(info.name, info.offset, info.fields)
	}
	return vm
}

// varRefFor builds the variableMap entry for one source: alias is the
// source's own pattern name, used by FieldByRange to reference the
// source's full span when the variable is used as a whole value
// rather than through a selector.
func varRefFor(alias string, offset int, fields []core.RecordField) VarRef {
	if fields == nil {
		return VarRef{Resolve: func(b Builder) Ref { return b.FieldByIndex(offset) }}
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	indexOf := func(name string) int {
		for i, n := range names {
			if n == name {
				return i
			}
		}
		return -1
	}
	return VarRef{
		Fields:  names,
		Resolve: func(b Builder) Ref { return b.FieldByRange(alias) },
		Field: func(b Builder, name string) Ref {
			i := indexOf(name)
			if i < 0 {
				return nil
			}
			return b.FieldByIndex(offset + i)
		},
	}
}

// applyStep applies one step of spec.md §4.6.2 step 4 and returns the
// context to carry into the next step.
func applyStep(ctx RelContext, step core.Step) (RelContext, bool, error) {
	switch step.Kind {
	case core.StepScan:
		return applyScan(ctx, step)
	case core.StepWhere:
		ref, ok := translateExpr(ctx, step.WhereExp)
		if !ok {
			return ctx, false, nil
		}
		ctx.Builder.Filter(ref)
		return ctx, true, nil
	case core.StepOrder:
		refs := make([]Ref, len(step.OrderItems))
		for i, item := range step.OrderItems {
			ref, ok := translateExpr(ctx, item.Exp)
			if !ok {
				return ctx, false, nil
			}
			if item.Descending {
				ref = ctx.Builder.Desc(ref)
			}
			refs[i] = ref
		}
		ctx.Builder.Sort(refs)
		return ctx, true, nil
	case core.StepGroup:
		return applyGroup(ctx, step)
	case core.StepYield:
		if err := applyMidYield(ctx, step.YieldExp); err != nil {
			if err == errUnsupportedYield {
				return ctx, false, nil
			}
			return ctx, false, err
		}
		return ctx.WithVariableMap(midYieldVariableMap(ctx, step.YieldExp)), true, nil
	default:
		return ctx, false, nil
	}
}

// applyScan folds an additional mid-pipeline source (as produced by
// the Relationalizer lifting a bare collection into the step stream)
// into the relation on the stack via an INNER JOIN, then extends the
// variableMap with its binding. The row layout gains the new source's
// columns at the end rather than being fully re-sorted, since a
// mid-pipeline scan is not part of the initial source list spec.md
// §4.6.2 step 2 permutes.
func applyScan(ctx RelContext, step core.Step) (RelContext, bool, error) {
	idPat, ok := step.ScanPat.(core.IdPattern)
	if !ok {
		return ctx, false, nil
	}
	rel, ok, err := Lower(ctx, step.ScanExp)
	if err != nil {
		return ctx, false, err
	}
	if !ok {
		return ctx, false, nil
	}
	ctx.Builder.Push(rel)
	ctx.Builder.As(idPat.Id.Name)
	ctx.Builder.Join(InnerJoin)

	offset := totalWidth(ctx.VariableMap)
	_, fields := rowShape(elemType(step.ScanExp.Type()))
	vm := make(map[string]VarRef, len(ctx.VariableMap)+1)
	for k, v := range ctx.VariableMap {
		vm[k] = v
	}
	vm[idPat.Id.Name] = varRefFor(idPat.Id.Name, offset, fields)
	return ctx.WithVariableMap(vm), true, nil
}

func totalWidth(vm map[string]VarRef) int {
	total := 0
	for _, v := range vm {
		if v.isRecord() {
			total += len(v.Fields)
		} else {
			total++
		}
	}
	return total
}

// applyGroup implements spec.md §4.6.2 step 4's group(groupExps,
// aggregates) clause: translate keys and aggregate arguments, emit
// Aggregate, then re-project the output columns in name-sorted order
// and rebuild the variableMap so every output field is a bare column
// reference (spec.md testable property 7).
func applyGroup(ctx RelContext, step core.Step) (RelContext, bool, error) {
	groupKeyRefs := make([]Ref, len(step.GroupKeys))
	for i, k := range step.GroupKeys {
		ref, ok := translateExpr(ctx, k.Exp)
		if !ok {
			return ctx, false, nil
		}
		groupKeyRefs[i] = ref
	}

	calls := make([]AggCall, len(step.Aggregates))
	for i, agg := range step.Aggregates {
		op, ok := mapAggOp(agg.Op)
		if !ok {
			return ctx, false, nil
		}
		var args []Ref
		if agg.Arg != nil {
			ref, ok := translateExpr(ctx, agg.Arg)
			if !ok {
				return ctx, false, nil
			}
			args = []Ref{ref}
		}
		calls[i] = AggCall{Op: op, Args: args, Name: agg.Name}
	}

	ctx.Builder.Aggregate(groupKeyRefs, calls)

	type outCol struct {
		name string
		pos  int
	}
	var cols []outCol
	for i, k := range step.GroupKeys {
		cols = append(cols, outCol{k.Name, i})
	}
	base := len(step.GroupKeys)
	for i, agg := range step.Aggregates {
		cols = append(cols, outCol{agg.Name, base + i})
	}
	sort.Slice(cols, func(a, b int) bool { return cols[a].name < cols[b].name })

	refs := make([]Ref, len(cols))
	names := make([]string, len(cols))
	for i, c := range cols {
		refs[i] = ctx.Builder.FieldByIndex(c.pos)
		names[i] = c.name
	}
	ctx.Builder.Project(refs, names)

	vm := make(map[string]VarRef, len(cols))
	for i, c := range cols {
		offset := i
		vm[c.name] = VarRef{Resolve: func(b Builder) Ref { return b.FieldByIndex(offset) }}
	}
	return ctx.WithVariableMap(vm), true, nil
}

// applyMidYield handles a StepYield appearing mid-pipeline (the
// Relationalizer's nested-from flattening wraps an inner query's
// result in a single-field record so the outer steps can keep
// referring to it by name; internal/visit mirrors this by resetting
// live bindings the same way). Only a RecordCons shape is supported,
// since that is the only shape the Relationalizer ever produces here;
// any other shape, or a field expression that does not translate,
// returns errUnsupportedYield.
func applyMidYield(ctx RelContext, yieldExp core.Expr) error {
	rec, ok := yieldExp.(core.RecordCons)
	if !ok {
		return errUnsupportedYield
	}
	refs := make([]Ref, len(rec.Fields))
	names := make([]string, len(rec.Fields))
	for i, f := range rec.Fields {
		ref, ok := translateExpr(ctx, f.Expr)
		if !ok {
			return errUnsupportedYield
		}
		refs[i] = ref
		names[i] = f.Name
	}
	ctx.Builder.Project(refs, names)
	return nil
}

func midYieldVariableMap(ctx RelContext, yieldExp core.Expr) map[string]VarRef {
	rec, ok := yieldExp.(core.RecordCons)
	if !ok {
		return ctx.VariableMap
	}
	vm := make(map[string]VarRef, len(rec.Fields))
	for i, f := range rec.Fields {
		offset := i
		vm[f.Name] = VarRef{Resolve: func(b Builder) Ref { return b.FieldByIndex(offset) }}
	}
	return vm
}

// applyFinalYield implements spec.md §4.6.2 step 5 / §4.6.5 for an
// explicit yield. A RecordCons yield projects its fields in
// name-sorted order (matching implicit-yield field ordering and
// testable property 7's column-order discipline); any other shape
// translates to a single scalar column.
func applyFinalYield(ctx RelContext, yieldExp core.Expr, sortFields bool) error {
	if rec, ok := yieldExp.(core.RecordCons); ok {
		fields := make([]core.RecordFieldExpr, len(rec.Fields))
		copy(fields, rec.Fields)
		if sortFields {
			sort.Slice(fields, func(a, b int) bool { return fields[a].Name < fields[b].Name })
		}
		refs := make([]Ref, len(fields))
		names := make([]string, len(fields))
		for i, f := range fields {
			ref, ok := translateExpr(ctx, f.Expr)
			if !ok {
				return errUnsupportedYield
			}
			refs[i] = ref
			names[i] = f.Name
		}
		ctx.Builder.Project(refs, names)
		return nil
	}
	ref, ok := translateExpr(ctx, yieldExp)
	if !ok {
		return errUnsupportedYield
	}
	ctx.Builder.Project([]Ref{ref}, nil)
	return nil
}

// applyImplicitYield implements spec.md §4.6.2 step 5's fallback: the
// record of currently live variables, field order name-sorted.
func applyImplicitYield(ctx RelContext) error {
	names := maps.Keys(ctx.VariableMap)
	sort.Strings(names)

	var refs []Ref
	for _, name := range names {
		vr := ctx.VariableMap[name]
		if vr.isRecord() {
			for _, f := range vr.Fields {
				refs = append(refs, vr.Field(ctx.Builder, f))
			}
			continue
		}
		refs = append(refs, vr.Resolve(ctx.Builder))
	}
	ctx.Builder.Project(refs, names)
	return nil
}
