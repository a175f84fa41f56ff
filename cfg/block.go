// Package cfg implements the control-flow graph over JVM instructions:
// an arena of labeled blocks connected by typed, multiplicity-limited
// edges, plus the ReturnBlock/RethrowBlock singletons and the opaque
// (unresolved ret) edge bookkeeping (spec.md §3 CFG).
package cfg

import "github.com/go-classfile/jcfg/insn"

// Label identifies a Block within a Graph's arena. Blocks are looked
// up by label rather than by pointer so that removing a block never
// leaves dangling references in edges that still name it.
type Label int32

const (
	// ReturnLabel is the singleton block every normal return edge
	// targets.
	ReturnLabel Label = -1
	// RethrowLabel is the singleton block every athrow edge targets.
	RethrowLabel Label = -2
)

// Block is an extended basic block: a label and its ordered
// instructions. Inline marks a block that may be replicated at
// multiple call sites during assembly (the jsr-fallthrough target of
// a subroutine body).
type Block struct {
	Label  Label
	Instrs []*insn.Instr
	Inline bool
}

// StartOffset returns the bytecode offset of the block's first
// instruction, or -1 if the block is empty (true only for the
// ReturnBlock/RethrowBlock singletons).
func (b *Block) StartOffset() int32 {
	if len(b.Instrs) == 0 {
		return -1
	}
	return b.Instrs[0].Offset
}

// Terminator returns the block's last instruction, or nil if empty.
func (b *Block) Terminator() *insn.Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	return b.Instrs[len(b.Instrs)-1]
}
