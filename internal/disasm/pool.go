package disasm

import (
	"fmt"
	"slices"
)

// Pool is the active constant pool. A nested list receives a copy taken when
// it starts, so neither side observes the other's redefinitions.
type Pool []string

// Lookup returns entry k.
func (p Pool) Lookup(k int) (string, error) {
	if k < 0 || k >= len(p) {
		return "", fmt.Errorf("%w: index %d, pool has %d entries", ErrPoolIndex, k, len(p))
	}
	return p[k], nil
}

// Snapshot returns an independent copy of the pool.
func (p Pool) Snapshot() Pool {
	return slices.Clone(p)
}
