// Package disasm renders decoded AVM1 action lists as an indented trace,
// resolving branch offsets and constant pool references along the way.
package disasm

import (
	"errors"
	"fmt"
	"slices"

	"avm1dump/internal/avm1"
)

var (
	// ErrBranchTarget is returned when a branch does not land on an action boundary.
	ErrBranchTarget = errors.New("branch target is not an action boundary")
	// ErrPoolIndex is returned when a push references a missing pool entry.
	ErrPoolIndex = errors.New("constant pool index out of range")
	// ErrNestingLimit is shared with the decoder so callers check one sentinel.
	ErrNestingLimit = avm1.ErrNestingLimit
)

// PositionTable maps the end offset of every action in one list to its
// index. Offsets are relative to the start of that list.
type PositionTable struct {
	ends []int
}

// Resolve builds the position table for list.
func Resolve(list avm1.List) *PositionTable {
	ends := make([]int, len(list))
	pos := 0
	for i, r := range list {
		pos += r.Size
		ends[i] = pos
	}
	return &PositionTable{ends: ends}
}

// End returns the offset just past action i.
func (t *PositionTable) End(i int) int {
	return t.ends[i]
}

// Len is the number of actions in the table.
func (t *PositionTable) Len() int {
	return len(t.ends)
}

// IndexAt returns the index of the action ending exactly at offset.
func (t *PositionTable) IndexAt(offset int) (int, bool) {
	// Sizes are at least one byte, so ends is strictly increasing.
	return slices.BinarySearch(t.ends, offset)
}

// Target resolves a branch at index i with relative offset d to the
// display index of the action it lands on. The anchor is the end of the
// branch itself. Offset 0 is the start of the list and displays as 0.
func (t *PositionTable) Target(i int, d int) (int, error) {
	target := t.ends[i] + d
	if target == 0 {
		return 0, nil
	}
	idx, ok := t.IndexAt(target)
	if !ok {
		return 0, fmt.Errorf("%w: action %d jumps %+d to offset %d", ErrBranchTarget, i, d, target)
	}
	return idx + 1, nil
}
