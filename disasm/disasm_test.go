package disasm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-classfile/jcfg/cfg"
	"github.com/go-classfile/jcfg/classfile"
	"github.com/go-classfile/jcfg/cpool"
	"github.com/go-classfile/jcfg/insn"
)

func assemble(t *testing.T, instrs []*insn.Instr) []byte {
	t.Helper()
	var buf bytes.Buffer
	offset := int32(0)
	for _, in := range instrs {
		in.Offset = offset
		require.NoError(t, insn.Encode(&buf, in))
		offset = int32(buf.Len())
	}
	return buf.Bytes()
}

// iconst_m1; ireturn
func TestDisassembleStraightLine(t *testing.T) {
	instrs := []*insn.Instr{
		{Op: insn.IconstM1},
		{Op: insn.Ireturn},
	}
	code := &classfile.Code{Bytes: assemble(t, instrs)}
	g, _, err := Disassemble(code, cpool.New())
	require.NoError(t, err)

	errs := g.Validate()
	require.Empty(t, errs)
	require.Len(t, g.Out(0), 1)
	require.Equal(t, cfg.ReturnLabel, g.Out(0)[0].To)
}

// iload_0; ifeq +7 (skip to the second iconst_m1); iconst_m1; goto +4; iconst_m1; ireturn
func TestDisassembleConditionalBranch(t *testing.T) {
	instrs := []*insn.Instr{
		{Op: insn.Iload0},             // offset 0, len 1
		{Op: insn.Ifeq, Branch: 7},    // offset 1, len 3 -> target 8
		{Op: insn.IconstM1},           // offset 4
		{Op: insn.Goto, Branch: 4},    // offset 5, len 3 -> target 9
		{Op: insn.IconstM1},           // offset 8
		{Op: insn.Ireturn},            // offset 9
	}
	code := &classfile.Code{Bytes: assemble(t, instrs)}
	g, _, err := Disassemble(code, cpool.New())
	require.NoError(t, err)
	require.Empty(t, g.Validate())

	// entry block (iload_0, ifeq) has a jump edge and a fallthrough edge.
	out := g.Out(0)
	require.Len(t, out, 2)
	kinds := map[cfg.EdgeKind]bool{}
	for _, e := range out {
		kinds[e.Kind] = true
	}
	require.True(t, kinds[cfg.Jump])
	require.True(t, kinds[cfg.Fallthrough])
}

func TestDisassembleTableswitch(t *testing.T) {
	instrs := []*insn.Instr{
		{Op: insn.Iload0},
		{
			Op:      insn.Tableswitch,
			Default: 24, // relative to the tableswitch's own offset (1) -> absolute 25, the ireturn
			Low:     0,
			High:    1,
			Offsets: []int32{23, 23}, // -> absolute 24, the iconst
		},
		{Op: insn.IconstM1},
		{Op: insn.Ireturn},
	}
	// Target offsets above are computed for this exact instruction
	// layout (tableswitch at offset 1, padded to 2 bytes, giving a
	// 23-byte instruction ending at offset 24); assemble() then uses
	// insn.Encode, which derives the same padding from each
	// instruction's own Offset as it writes.
	code := &classfile.Code{Bytes: assemble(t, instrs)}
	g, _, err := Disassemble(code, cpool.New())
	require.NoError(t, err)
	require.Empty(t, g.Validate())

	var switchBlock cfg.Label = -100
	for _, b := range g.Blocks() {
		for _, in := range b.Instrs {
			if in.Op == insn.Tableswitch {
				switchBlock = b.Label
			}
		}
	}
	require.NotEqual(t, cfg.Label(-100), switchBlock)
	out := g.Out(switchBlock)
	require.Len(t, out, 3) // default + 2 cases
	for _, e := range out {
		require.Equal(t, cfg.Switch, e.Kind)
	}
}

// goto with an operand pointing past the end of the code array: an
// obfuscator's trick that a verifier rejects but the disassembler must
// tolerate (spec.md §4.2, §8 scenario 6). The raw goto is kept, a
// Fallthrough edge stands in for its unresolvable Jump edge, and one
// diagnostic is recorded rather than an error.
func TestDisassembleUnboundGotoFallsThroughWithWarning(t *testing.T) {
	instrs := []*insn.Instr{
		{Op: insn.Goto, Branch: 1000}, // offset 0, len 3 -> target 1000, out of range
		{Op: insn.Ireturn},            // offset 3
	}
	code := &classfile.Code{Bytes: assemble(t, instrs)}
	g, log, err := Disassemble(code, cpool.New())
	require.NoError(t, err)
	require.Equal(t, 1, log.Len())

	out := g.Out(0)
	require.Len(t, out, 1)
	require.Equal(t, cfg.Fallthrough, out[0].Kind)
	require.Equal(t, insn.Goto, out[0].Instr.Op)
}
