package frame

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-classfile/jcfg/vtype"
)

func TestPushPopCategory(t *testing.T) {
	s := NewState()
	env := vtype.NewEnvironment()

	a := s.PushType(env.IntT(), Source{}, int32(1))
	require.Equal(t, 1, s.Height())

	b := s.PushType(env.LongT(), Source{}, int64(2))
	require.Equal(t, 3, s.Height())
	require.Equal(t, 3, s.MaxStack)

	got, err := s.Pop()
	require.NoError(t, err)
	require.Equal(t, b, got)
	require.True(t, s.Consumed(b))

	got, err = s.Pop()
	require.NoError(t, err)
	require.Equal(t, a, got)

	_, err = s.Pop()
	require.ErrorAs(t, err, &StackUnderflow{})
}

// TestMaxStackAccountsForWideEntries guards against comparing operand
// *count* to slot *height*: dload_0; dload_2 leaves only two entries
// on s.stack but occupies four category-1 slots.
func TestMaxStackAccountsForWideEntries(t *testing.T) {
	s := NewState()
	env := vtype.NewEnvironment()

	s.PushType(env.DoubleT(), Source{}, nil)
	s.PushType(env.DoubleT(), Source{}, nil)
	require.Equal(t, 2, len(s.StackSnapshot()))
	require.Equal(t, 4, s.MaxStack)
}

func TestSetClearsWideContinuation(t *testing.T) {
	s := NewState()
	env := vtype.NewEnvironment()

	long := s.NewEntry(env.LongT(), Source{}, nil)
	s.Set(0, long)
	require.Equal(t, 2, s.MaxLocals)

	i := s.NewEntry(env.IntT(), Source{}, nil)
	s.Set(0, i)

	_, err := s.Get(1)
	require.ErrorAs(t, err, &UnknownLocal{})
}

func TestDupX2WideSecond(t *testing.T) {
	s := NewState()
	env := vtype.NewEnvironment()

	wide := s.PushType(env.LongT(), Source{}, nil)
	top := s.PushType(env.IntT(), Source{}, nil)

	require.NoError(t, s.DupX2())

	snap := s.StackSnapshot()
	require.Len(t, snap, 3)
	require.Equal(t, top, snap[0])
	require.Equal(t, wide, snap[1])
	require.Equal(t, top, snap[2])
}

func TestFrameDeltaRecording(t *testing.T) {
	s := NewState()
	env := vtype.NewEnvironment()
	s.PushType(env.IntT(), Source{}, nil)
	s.PushType(env.IntT(), Source{}, nil)

	s.StartDelta(Source{Kind: SourceInstruction, Offset: 4})
	_, err := s.Pop()
	require.NoError(t, err)
	_, err = s.Pop()
	require.NoError(t, err)
	s.PushType(env.IntT(), Source{Kind: SourceInstruction, Offset: 4}, nil)
	d := s.FinishDelta()

	require.Len(t, d.Pops, 2)
	require.Len(t, d.Pushes, 1)
	require.Equal(t, -1, d.StackDelta())
}

func TestFrozenStateEqual(t *testing.T) {
	env := vtype.NewEnvironment()

	s1 := NewState()
	s1.PushType(env.IntT(), Source{}, nil)
	s1.Set(0, s1.NewEntry(env.Reference("Foo"), Source{}, nil))

	s2 := NewState()
	s2.PushType(env.IntT(), Source{}, nil)
	s2.Set(0, s2.NewEntry(env.Reference("Foo"), Source{}, nil))

	keep := map[int]bool{0: true}
	f1 := Freeze(s1, keep)
	f2 := Freeze(s2, keep)
	require.True(t, f1.Equal(f2))
	require.Equal(t, f1.Key(), f2.Key())

	s2.Set(0, s2.NewEntry(env.Reference("Bar"), Source{}, nil))
	f3 := Freeze(s2, keep)
	require.False(t, f1.Equal(f3))
}
