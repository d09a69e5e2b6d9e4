// Package transform carries the object-identity bookkeeping the rewrite
// driver (C6) uses to detect a fixed point: every rewrite pass reports
// whether it actually produced a new tree or returned its input
// unchanged, so the driver can stop iterating the instant a pass is a
// no-op (spec.md §4.5, §8 property 5). The shape mirrors the teacher's
// own sql/transform package (TreeIdentity, NewTree/SameTree).
package transform

// Identity reports whether a rewrite step produced a structurally new
// tree (NewTree) or returned its input untouched (SameTree).
type Identity bool

const (
	SameTree Identity = false
	NewTree  Identity = true
)

// Combine folds a sequence of Identity results the way nested rewrite
// calls must: the combination is NewTree iff at least one step reported
// NewTree.
func Combine(a, b Identity) Identity {
	return a || b
}

// Changed reports whether id is NewTree.
func (id Identity) Changed() bool { return bool(id) }
