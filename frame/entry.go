// Package frame implements the abstract-interpretation state used by
// the trace engine: entries, frames/states, frame deltas and the
// frozen snapshots used as memoization keys (spec.md §3/§4.4).
package frame

import "github.com/go-classfile/jcfg/vtype"

// Source names where an Entry came from: a parameter, an instruction
// at a given bytecode offset, or an incoming control-flow edge. It is
// informational only and never affects equality.
type Source struct {
	Kind   SourceKind
	Offset int32 // instruction offset, for SourceInstruction
	Param  int   // parameter index, for SourceParam
}

type SourceKind uint8

const (
	SourceNone SourceKind = iota
	SourceParam
	SourceInstruction
	SourceEdge
	SourceMerge
)

// Entry is a handle into a State: one value that has flowed through
// the abstract interpreter. Its identity is scoped to the State that
// created it (spec.md §4.5 "shared-resource policy").
type Entry struct {
	id     int
	Source Source
	Type   vtype.Type
	Value  interface{} // constant-fold literal, or nil

	Parents []*Entry // cast chain: entries this one was derived from
	Merges  []*Entry // entries folded into this one at a join
}

// ID returns the entry's identity within its owning State.
func (e *Entry) ID() int { return e.id }

// sameEntry reports whether two entries are interchangeable for
// constraint memoization purposes (spec.md §4.3 _same_entry): equal
// type, which for returnAddress values includes the offset following
// the jsr, so distinct subroutine returns are never conflated.
func sameEntry(a, b *Entry) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Type != b.Type {
		return false
	}
	if a.Type.Kind == vtype.ReturnAddress && a.Type.Offset != b.Type.Offset {
		return false
	}
	return true
}
