package trace

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-classfile/jcfg/cfg"
	"github.com/go-classfile/jcfg/classfile"
	"github.com/go-classfile/jcfg/cpool"
	"github.com/go-classfile/jcfg/disasm"
	"github.com/go-classfile/jcfg/insn"
	"github.com/go-classfile/jcfg/vtype"
)

func assemble(t *testing.T, instrs []*insn.Instr) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, in := range instrs {
		in.Offset = int32(buf.Len())
		require.NoError(t, insn.Encode(&buf, in))
	}
	return buf.Bytes()
}

func disassemble(t *testing.T, instrs []*insn.Instr, exc []classfile.ExceptionTableEntry, pool *cpool.Pool) *cfg.Graph {
	t.Helper()
	code := &classfile.Code{Bytes: assemble(t, instrs), Exceptions: exc}
	g, _, err := disasm.Disassemble(code, pool)
	require.NoError(t, err)
	require.Empty(t, g.Validate())
	return g
}

func blockWith(t *testing.T, g *cfg.Graph, op insn.Opcode) cfg.Label {
	t.Helper()
	for _, b := range g.Blocks() {
		for _, in := range b.Instrs {
			if in.Op == op {
				return b.Label
			}
		}
	}
	t.Fatalf("no block contains opcode %v", op)
	return 0
}

// return
func TestRunEmptyMethod(t *testing.T) {
	env := vtype.NewEnvironment()
	g := disassemble(t, []*insn.Instr{{Op: insn.Return}}, nil, cpool.New())

	seed := Seed(env, Method{Static: true})
	res := Run(g, &insn.Context{Env: env, Pool: cpool.New()}, seed, Options{})

	require.True(t, res.Errors.Empty())
	require.Equal(t, 0, res.MaxStack)
	require.Len(t, res.Constraints[g.EntryBlock().Label], 1)
}

// iload_0; iload_1; iadd; ireturn
func TestRunIntAdd(t *testing.T) {
	env := vtype.NewEnvironment()
	pool := cpool.New()
	g := disassemble(t, []*insn.Instr{
		{Op: insn.Iload0},
		{Op: insn.Iload1},
		{Op: insn.Iadd},
		{Op: insn.Ireturn},
	}, nil, pool)

	seed := Seed(env, Method{Static: true, Params: []vtype.Type{env.IntT(), env.IntT()}})
	res := Run(g, &insn.Context{Env: env, Pool: pool}, seed, Options{})

	require.True(t, res.Errors.Empty())
	require.Equal(t, 2, res.MaxStack)
	require.Equal(t, 2, res.MaxLocals)
}

// iload_0; ifeq -> iconst_0; else: iconst_1; goto join; join: ireturn
//
// Both arms push an Int and converge on the same block: the merge
// should reuse a single memoized entry constraint rather than record
// two.
func TestRunConditionalReturnMerges(t *testing.T) {
	env := vtype.NewEnvironment()
	pool := cpool.New()
	g := disassemble(t, []*insn.Instr{
		{Op: insn.Iload0},          // offset 0, len 1
		{Op: insn.Ifeq, Branch: 7}, // offset 1, len 3 -> target 8
		{Op: insn.Iconst1},         // offset 4
		{Op: insn.Goto, Branch: 4}, // offset 5, len 3 -> target 9
		{Op: insn.Iconst0},         // offset 8
		{Op: insn.Ireturn},         // offset 9
	}, nil, pool)

	seed := Seed(env, Method{Static: true, Params: []vtype.Type{env.IntT()}})
	res := Run(g, &insn.Context{Env: env, Pool: pool}, seed, Options{})

	require.True(t, res.Errors.Empty())
	retBlock := blockWith(t, g, insn.Ireturn)
	require.Len(t, res.Constraints[retBlock], 1)
	require.Equal(t, []vtype.Type{env.IntT()}, res.Constraints[retBlock][0].Entry.Stack)
}

// iload_0; tableswitch{0, 1, default: all to iconst_m1}; iconst_m1; ireturn
//
// The tableswitch at offset 1 takes 2 pad bytes and ends at offset 24.
func TestRunTableswitch(t *testing.T) {
	env := vtype.NewEnvironment()
	pool := cpool.New()
	g := disassemble(t, []*insn.Instr{
		{Op: insn.Iload0},
		{
			Op:      insn.Tableswitch,
			Default: 23,
			Low:     0,
			High:    1,
			Offsets: []int32{23, 23},
		},
		{Op: insn.IconstM1},
		{Op: insn.Ireturn},
	}, nil, pool)

	seed := Seed(env, Method{Static: true, Params: []vtype.Type{env.IntT()}})
	res := Run(g, &insn.Context{Env: env, Pool: pool}, seed, Options{})

	require.True(t, res.Errors.Empty())
	require.Equal(t, 1, res.MaxStack)
}

// try { iconst_0; istore_1 } catch (Throwable) { astore_1 } ; return
//
// The exception edge must clear the stack and push the declared
// catch type regardless of what the protected block left behind.
func TestRunTryCatchPushesThrowable(t *testing.T) {
	env := vtype.NewEnvironment()
	pool := cpool.New()
	instrs := []*insn.Instr{
		{Op: insn.Iconst0},          // offset 0
		{Op: insn.Istore1},          // offset 1
		{Op: insn.Goto, Branch: 4},  // offset 2, len 3 -> target 6
		{Op: insn.Astore1},          // offset 5 (handler)
		{Op: insn.Return},           // offset 6
	}
	exc := []classfile.ExceptionTableEntry{
		{StartPC: 0, EndPC: 5, HandlerPC: 5, CatchType: 0},
	}
	g := disassemble(t, instrs, exc, pool)

	seed := Seed(env, Method{Static: true})
	res := Run(g, &insn.Context{Env: env, Pool: pool}, seed, Options{})

	require.True(t, res.Errors.Empty())
	handler := blockWith(t, g, insn.Astore1)
	require.Len(t, res.Constraints[handler], 1)
	stack := res.Constraints[handler][0].Entry.Stack
	require.Len(t, stack, 1)
	require.Equal(t, env.Throwable(), stack[0])
}

// jsr sub; return ... sub: astore_2; ret 2
//
// The ret must resolve back to the jsr's own fallthrough block, and
// the jsr's block must be recorded as a JsrBlock.
func TestRunJsrRetResolvesToCaller(t *testing.T) {
	env := vtype.NewEnvironment()
	pool := cpool.New()
	instrs := []*insn.Instr{
		{Op: insn.Jsr, Branch: 4},       // offset 0, len 3 -> target 4
		{Op: insn.Return},               // offset 3
		{Op: insn.Astore2},              // offset 4 (subroutine entry)
		{Op: insn.Ret, Local: 2},        // offset 5
	}
	code := &classfile.Code{Bytes: assemble(t, instrs)}
	g, _, err := disasm.Disassemble(code, pool)
	require.NoError(t, err)
	// The ret edge stays opaque until the trace resolves it.
	require.Len(t, g.Validate(), 1)

	seed := Seed(env, Method{Static: true})
	res := Run(g, &insn.Context{Env: env, Pool: pool}, seed, Options{})

	require.True(t, res.Errors.Empty())
	require.Empty(t, g.Validate())
	jsrBlock := blockWith(t, g, insn.Jsr)
	require.True(t, res.JsrBlocks[jsrBlock])

	retBlock := blockWith(t, g, insn.Ret)
	fallthroughBlock := blockWith(t, g, insn.Return)
	require.Equal(t, fallthroughBlock, res.Subroutines[retBlock])
}
