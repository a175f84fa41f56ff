package verify

import "fmt"

// SourceKind distinguishes the four provenance shapes a verifier
// error can carry (spec.md §7: "a source reference — block, edge,
// instruction-in-block, or 'none'").
type SourceKind uint8

const (
	SourceNone SourceKind = iota
	SourceBlock
	SourceEdge
	SourceInstruction
)

// Source pins a verifier error to where in the CFG it happened.
// verify has no dependency on the cfg package: block labels and
// instruction offsets are carried as plain int32s so that cfg, frame
// and insn can all depend on verify without a cycle.
type Source struct {
	Kind SourceKind

	Block int32 // SourceBlock, SourceInstruction: the owning block's label

	From, To int32 // SourceEdge: the edge's endpoints

	Offset int32 // SourceInstruction: the instruction's bytecode offset
}

// Block returns a Source naming a block.
func Block(label int32) Source { return Source{Kind: SourceBlock, Block: label} }

// Edge returns a Source naming an edge between two blocks.
func Edge(from, to int32) Source { return Source{Kind: SourceEdge, From: from, To: to} }

// Instruction returns a Source naming one instruction within a block.
func Instruction(block int32, offset int32) Source {
	return Source{Kind: SourceInstruction, Block: block, Offset: offset}
}

func (s Source) String() string {
	switch s.Kind {
	case SourceBlock:
		return fmt.Sprintf("block %d", s.Block)
	case SourceEdge:
		return fmt.Sprintf("edge %d->%d", s.From, s.To)
	case SourceInstruction:
		return fmt.Sprintf("block %d, offset %d", s.Block, s.Offset)
	default:
		return "none"
	}
}
