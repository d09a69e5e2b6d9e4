package env

import "fmt"

// NameGenerator allocates fresh identifiers during rewriting and tracks
// per-name occurrence counts (spec.md §4.3/C4, §5: "the name generator
// must be monotone"). A NameGenerator is owned by one compilation; per
// §5 it is not internally synchronised, and an embedder sharing one
// across goroutines must serialise access itself.
type NameGenerator struct {
	next   int
	counts map[string]int
}

// NewNameGenerator returns a NameGenerator with no prior allocations.
func NewNameGenerator() *NameGenerator {
	return &NameGenerator{counts: make(map[string]int)}
}

// Get returns a fresh, never-before-returned identifier stem.
func (g *NameGenerator) Get() string {
	g.next++
	return fmt.Sprintf("v%d", g.next)
}

// Inc returns a strictly increasing counter value for name: the first
// call for a given name returns 1, the second 2, and so on.
func (g *NameGenerator) Inc(name string) int {
	g.counts[name]++
	return g.counts[name]
}
