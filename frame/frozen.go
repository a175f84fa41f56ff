package frame

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-classfile/jcfg/vtype"
)

// LocalType pairs a local index with the verification type observed
// there in a FrozenState.
type LocalType struct {
	Index int
	Type  vtype.Type
}

// FrozenState is the immutable snapshot of a State used as a
// memoization key when re-entering a block (spec.md §4.3). It only
// records the verification type of each stack slot and of the locals
// the caller asks it to keep: the trace engine passes the set of
// locals read before overwrite within the block being re-entered,
// plus whatever locals the caller still carries, so two calls that
// agree on everything actually observable by that block compare
// equal even if they disagree on locals the block never looks at.
//
// Types alone are sufficient for _same_entry: vtype.Type already
// carries the discriminating return offset (the offset following the
// jsr) for returnAddress values in its Offset field, so two FrozenStates with equal Type slices cannot
// conflate distinct subroutine returns.
type FrozenState struct {
	Stack  []vtype.Type
	Locals []LocalType // sorted by Index
}

// Freeze captures a memoization key from s, keeping only the locals
// whose index is in keep.
func Freeze(s *State, keep map[int]bool) *FrozenState {
	stack := make([]vtype.Type, len(s.stack))
	for i, e := range s.stack {
		stack[i] = e.Type
	}

	idxs := make([]int, 0, len(keep))
	for i := range keep {
		if _, ok := s.locals[i]; ok {
			idxs = append(idxs, i)
		}
	}
	sort.Ints(idxs)

	locals := make([]LocalType, len(idxs))
	for i, idx := range idxs {
		locals[i] = LocalType{Index: idx, Type: s.locals[idx].Type}
	}

	return &FrozenState{Stack: stack, Locals: locals}
}

// Equal reports whether f and g were reached under interchangeable
// conditions: equal stack type sequence and equal recorded locals.
func (f *FrozenState) Equal(g *FrozenState) bool {
	if f == g {
		return true
	}
	if g == nil || len(f.Stack) != len(g.Stack) || len(f.Locals) != len(g.Locals) {
		return false
	}
	for i := range f.Stack {
		if f.Stack[i] != g.Stack[i] {
			return false
		}
	}
	for i := range f.Locals {
		if f.Locals[i] != g.Locals[i] {
			return false
		}
	}
	return true
}

// Key returns a deterministic string suitable as a map key, since
// FrozenState itself holds slices and is not comparable with ==.
func (f *FrozenState) Key() string {
	var b strings.Builder
	for _, t := range f.Stack {
		fmt.Fprintf(&b, "s%s|", t)
	}
	for _, l := range f.Locals {
		fmt.Fprintf(&b, "l%d:%s|", l.Index, l.Type)
	}
	return b.String()
}
