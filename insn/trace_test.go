package insn

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-classfile/jcfg/cpool"
	"github.com/go-classfile/jcfg/frame"
	"github.com/go-classfile/jcfg/vtype"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	// iload_0, iload_1, iadd, ireturn
	code := []byte{byte(Iload0), byte(Iload1), byte(Iadd), byte(Ireturn)}
	instrs, err := DecodeAll(code)
	require.NoError(t, err)
	require.Len(t, instrs, 4)
	require.Equal(t, "iload_0", instrs[0].Op.Name())
	require.Equal(t, "ireturn", instrs[3].Op.Name())

	var buf bytes.Buffer
	for _, in := range instrs {
		require.NoError(t, Encode(&buf, in))
	}
	require.Equal(t, code, buf.Bytes())
}

func TestDecodeTableswitchPadding(t *testing.T) {
	// offset 0: nop, then tableswitch at offset 1 needs 2 bytes padding to reach offset 4
	code := []byte{
		byte(Nop),
		byte(Tableswitch), 0, 0, // padding
		0, 0, 0, 10, // default=10
		0, 0, 0, 0, // low=0
		0, 0, 0, 1, // high=1
		0, 0, 0, 20, // offset for case 0
		0, 0, 0, 30, // offset for case 1
	}
	instrs, err := DecodeAll(code)
	require.NoError(t, err)
	require.Len(t, instrs, 2)
	ts := instrs[1]
	require.Equal(t, int32(1), ts.Offset)
	require.Equal(t, int32(10), ts.Default)
	require.Equal(t, []int32{20, 30}, ts.Offsets)
	require.Equal(t, []int32{21, 31}, ts.SwitchTargets())
}

func TestTraceSimpleAdd(t *testing.T) {
	env := vtype.NewEnvironment()
	ctx := &Context{Env: env, Pool: cpool.New()}
	s := frame.NewState()
	s.Set(0, s.NewEntry(env.IntT(), frame.Source{}, nil))
	s.Set(1, s.NewEntry(env.IntT(), frame.Source{}, nil))

	code := []byte{byte(Iload0), byte(Iload1), byte(Iadd), byte(Ireturn)}
	instrs, err := DecodeAll(code)
	require.NoError(t, err)

	for _, in := range instrs[:3] {
		require.NoError(t, Trace(in, s, ctx))
	}
	require.Equal(t, 2, s.MaxStack)
	require.Equal(t, 2, s.MaxLocals)

	top, err := s.Peek()
	require.NoError(t, err)
	require.Equal(t, env.IntT(), top.Type)
}

func TestTraceInvokespecialInitializesReceiver(t *testing.T) {
	env := vtype.NewEnvironment()
	pool := cpool.New()
	idx := pool.Add(cpool.MethodRef{
		Class:       "java/lang/Object",
		NameAndType: cpool.NameAndType{Name: "<init>", Descriptor: "()V"},
	})
	ctx := &Context{Env: env, Pool: pool}
	s := frame.NewState()

	pool2 := cpool.New()
	clsIdx := pool2.Add(cpool.Class{Name: "java/lang/Object"})
	ctx2 := &Context{Env: env, Pool: pool2}
	require.NoError(t, Trace(&Instr{Op: New, Offset: 0, CP: uint16(clsIdx)}, s, ctx2))

	objEntry, err := s.Peek()
	require.NoError(t, err)
	require.Equal(t, vtype.Uninitialized, objEntry.Type.Kind)

	s.Set(0, objEntry) // alias it into a local too
	invoke := &Instr{Op: Invokespecial, Offset: 3, CP: uint16(idx)}
	require.NoError(t, Trace(invoke, s, ctx))

	local, err := s.Get(0)
	require.NoError(t, err)
	require.Equal(t, env.Object(), local.Type)
}
