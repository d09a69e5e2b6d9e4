package fakebuilder

import (
	"github.com/morel-lang/hybrid/internal/relbuild"
)

// applyOp evaluates a named scalar operator over already-evaluated
// argument values. "ROW" builds a tuple; the rest are the comparison
// and arithmetic operators a `from`-step's where/order expressions can
// reference.
func applyOp(op string, vals []any) any {
	switch op {
	case "ROW":
		return append([]any(nil), vals...)
	case "=":
		return compareValues(vals[0], vals[1]) == 0
	case "<>":
		return compareValues(vals[0], vals[1]) != 0
	case ">":
		return compareValues(vals[0], vals[1]) > 0
	case ">=":
		return compareValues(vals[0], vals[1]) >= 0
	case "<":
		return compareValues(vals[0], vals[1]) < 0
	case "<=":
		return compareValues(vals[0], vals[1]) <= 0
	case "+":
		return numeric(vals[0]) + numeric(vals[1])
	case "-":
		return numeric(vals[0]) - numeric(vals[1])
	case "*":
		return numeric(vals[0]) * numeric(vals[1])
	case "andalso":
		return truthy(vals[0]) && truthy(vals[1])
	case "orelse":
		return truthy(vals[0]) || truthy(vals[1])
	default:
		panic("fakebuilder: unsupported operator " + op)
	}
}

func numeric(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

// compareValues orders two scalar values: numerically for numbers,
// lexically for strings, falsely-before-truly for bools.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case int64, float64:
		fa, fb := numeric(a), numeric(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	default:
		return 0
	}
}

// evalAgg computes one aggregate call over a group's member rows.
func evalAgg(call relbuild.AggCall, rows []Row) any {
	switch call.Op {
	case relbuild.AggCount:
		return int64(len(rows))
	case relbuild.AggSum:
		var sum float64
		for _, r := range rows {
			sum += numeric(call.Args[0].(expr)(r))
		}
		return sum
	case relbuild.AggMin:
		var min float64
		for i, r := range rows {
			v := numeric(call.Args[0].(expr)(r))
			if i == 0 || v < min {
				min = v
			}
		}
		return min
	case relbuild.AggMax:
		var max float64
		for i, r := range rows {
			v := numeric(call.Args[0].(expr)(r))
			if i == 0 || v > max {
				max = v
			}
		}
		return max
	default:
		panic("fakebuilder: unsupported aggregate")
	}
}
