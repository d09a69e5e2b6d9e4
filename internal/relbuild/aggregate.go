package relbuild

import "github.com/morel-lang/hybrid/internal/core"

// mapAggOp implements the aggregate operator mapping of spec.md
// §4.6.3. A core aggregate reference this package does not recognise
// returns ok=false, which causes the enclosing `from` lowering to fail
// (and fall back to interpreter code) rather than raise an error
// (spec.md §7: "Unsupported lowering ... no error is raised").
func mapAggOp(op core.AggOp) (AggOp, bool) {
	switch op {
	case core.AggSum, core.AggZSumI, core.AggZSumR:
		return AggSum, true
	case core.AggCount:
		return AggCount, true
	case core.AggMin:
		return AggMin, true
	case core.AggMax:
		return AggMax, true
	default:
		return 0, false
	}
}
