package asm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-classfile/jcfg/cfg"
	"github.com/go-classfile/jcfg/classfile"
	"github.com/go-classfile/jcfg/cpool"
	"github.com/go-classfile/jcfg/disasm"
	"github.com/go-classfile/jcfg/insn"
	"github.com/go-classfile/jcfg/trace"
	"github.com/go-classfile/jcfg/vtype"
)

func assembleBytes(t *testing.T, instrs []*insn.Instr) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, in := range instrs {
		require.NoError(t, insn.Encode(&buf, in))
	}
	return buf.Bytes()
}

func decodeCode(t *testing.T, code *classfile.Code) []*insn.Instr {
	t.Helper()
	instrs, err := insn.DecodeAll(code.Bytes)
	require.NoError(t, err)
	return instrs
}

// traced disassembles instrs/exc into a graph and runs the trace
// engine over it with the given static-method parameter types,
// returning everything Assemble needs to lower it back.
func traced(t *testing.T, instrs []*insn.Instr, exc []classfile.ExceptionTableEntry, params []vtype.Type) (*cfg.Graph, *trace.Result, *cpool.Pool, *vtype.Environment, []vtype.Type) {
	t.Helper()
	env := vtype.NewEnvironment()
	pool := cpool.New()
	code := &classfile.Code{Bytes: assembleBytes(t, instrs), Exceptions: exc}

	g, _, err := disasm.Disassemble(code, pool)
	require.NoError(t, err)
	require.Empty(t, g.Validate())

	seed := trace.Seed(env, trace.Method{Static: true, Params: params})
	res := trace.Run(g, &insn.Context{Env: env, Pool: pool}, seed, trace.Options{})
	require.True(t, res.Errors.Empty())

	seedLocals := make([]vtype.Type, res.MaxLocals)
	for i := range seedLocals {
		seedLocals[i] = env.TopT()
	}
	for i, p := range params {
		seedLocals[i] = p
	}
	return g, res, pool, env, seedLocals
}

// iload_0; iload_1; iadd; ireturn
func TestAssembleStraightLine(t *testing.T) {
	env := vtype.NewEnvironment()
	g, res, pool, env2, seedLocals := traced(t, []*insn.Instr{
		{Op: insn.Iload0},
		{Op: insn.Iload1},
		{Op: insn.Iadd},
		{Op: insn.Ireturn},
	}, nil, []vtype.Type{env.IntT(), env.IntT()})

	code, err := Assemble(g, res, pool, env2, seedLocals, 52)
	require.NoError(t, err)
	require.Equal(t, uint16(2), code.MaxStack)
	require.Empty(t, code.Exceptions)

	out := decodeCode(t, code)
	require.Len(t, out, 4)
	require.Equal(t, insn.Ireturn, out[3].Op)

	frames, err := code.StackMapTable(pool)
	require.NoError(t, err)
	require.Empty(t, frames) // single block, nothing to merge
}

// iload_0; ifeq -> iconst_0; else: iconst_1; goto join; join: ireturn
//
// The merge block needs an explicit stack-map frame (one slot holding
// Integer), and its encoding should compress to same_locals_1_stack.
func TestAssembleConditionalProducesStackMapFrame(t *testing.T) {
	env := vtype.NewEnvironment()
	g, res, pool, env2, seedLocals := traced(t, []*insn.Instr{
		{Op: insn.Iload0},          // offset 0
		{Op: insn.Ifeq, Branch: 7}, // offset 1 -> target 8
		{Op: insn.Iconst1},         // offset 4
		{Op: insn.Goto, Branch: 4}, // offset 5 -> target 9
		{Op: insn.Iconst0},         // offset 8
		{Op: insn.Ireturn},         // offset 9
	}, nil, []vtype.Type{env.IntT()})

	code, err := Assemble(g, res, pool, env2, seedLocals, 52)
	require.NoError(t, err)

	// Every block but the first needs its own frame entry (then, else
	// and the join point); only the join point carries a value on the
	// stack, so only it compresses to same_locals_1_stack.
	frames, err := code.StackMapTable(pool)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	require.Equal(t, classfile.KindSameLocals1Stack, frames[len(frames)-1].Kind)
}

// try { iconst_0; istore_1; goto end } handler: astore_1 ; end: return
//
// The synthesized exception table must protect the try range and
// point at the handler, and the handler's frame must show Throwable
// on the stack.
func TestAssembleExceptionTableAndFrame(t *testing.T) {
	instrs := []*insn.Instr{
		{Op: insn.Iconst0},         // offset 0
		{Op: insn.Istore1},         // offset 1
		{Op: insn.Goto, Branch: 4}, // offset 2 -> target 6
		{Op: insn.Astore1},         // offset 5 (handler)
		{Op: insn.Return},          // offset 6
	}
	exc := []classfile.ExceptionTableEntry{
		{StartPC: 0, EndPC: 5, HandlerPC: 5, CatchType: 0},
	}
	g, res, pool, env, seedLocals := traced(t, instrs, exc, nil)

	code, err := Assemble(g, res, pool, env, seedLocals, 52)
	require.NoError(t, err)
	require.Len(t, code.Exceptions, 1)
	require.Equal(t, uint16(0), code.Exceptions[0].StartPC)
	require.Equal(t, uint16(5), code.Exceptions[0].HandlerPC)

	// The handler block (first frame after the implicit entry one) and
	// the joined end block both need an explicit frame; only the
	// handler's carries the caught Throwable on its stack.
	frames, err := code.StackMapTable(pool)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Len(t, frames[0].Stack, 1)
	require.Equal(t, classfile.VTObject, frames[0].Stack[0].Tag)
}

// A branch target placed far enough away to overflow the signed
// 16-bit displacement a goto encodes must widen to goto_w once
// AssignOffsets reaches a fixed point.
func TestAssembleWidensOutOfRangeGoto(t *testing.T) {
	env := vtype.NewEnvironment()
	pool := cpool.New()

	// The first goto jumps over the return block to a second goto that
	// jumps back to it, so the return block lies between the first goto
	// and its target.
	instrs := []*insn.Instr{
		{Op: insn.Goto, Branch: 4},  // offset 0, len 3 -> target 4
		{Op: insn.Return},           // offset 3
		{Op: insn.Goto, Branch: -1}, // offset 4 -> target 3
	}
	code := &classfile.Code{Bytes: assembleBytes(t, instrs)}
	g, _, err := disasm.Disassemble(code, pool)
	require.NoError(t, err)

	// Pad the return block past a 32767-byte displacement; Nop has no
	// operands, so each adds exactly one byte. Padding the target block
	// itself would not move its start.
	between := g.Block(g.Out(g.Out(0)[0].To)[0].To)
	padding := make([]*insn.Instr, 40000)
	for i := range padding {
		padding[i] = &insn.Instr{Op: insn.Nop}
	}
	between.Instrs = append(padding, between.Instrs...)

	seed := trace.Seed(env, trace.Method{Static: true})
	res := trace.Run(g, &insn.Context{Env: env, Pool: pool}, seed, trace.Options{})
	require.True(t, res.Errors.Empty())

	out, err := Assemble(g, res, pool, env, nil, 52)
	require.NoError(t, err)

	decoded := decodeCode(t, out)
	require.Equal(t, insn.GotoW, decoded[0].Op)
}
