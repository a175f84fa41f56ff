package classfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackMapFrameRoundTrip(t *testing.T) {
	frames := []StackMapFrame{
		{Kind: KindSame, OffsetDelta: 10},
		{Kind: KindSameLocals1Stack, OffsetDelta: 5, Stack: []VerificationType{{Tag: VTInteger}}},
		{Kind: KindSameLocals1StackExtended, OffsetDelta: 300, Stack: []VerificationType{{Tag: VTObject, CPIndex: 7}}},
		{Kind: KindChop, OffsetDelta: 12, ChopCount: 2},
		{Kind: KindSameExtended, OffsetDelta: 400},
		{Kind: KindAppend, OffsetDelta: 3, Locals: []VerificationType{{Tag: VTInteger}, {Tag: VTUninitialized, Offset: 4}}},
		{
			Kind:        KindFull,
			OffsetDelta: 0,
			Locals:      []VerificationType{{Tag: VTObject, CPIndex: 1}, {Tag: VTLong}},
			Stack:       []VerificationType{{Tag: VTNull}},
		},
	}

	encoded, err := EncodeStackMapTable(frames)
	require.NoError(t, err)

	decoded, err := DecodeStackMapTable(encoded)
	require.NoError(t, err)
	require.Equal(t, frames, decoded)
}

func TestStackMapFrameTagBoundaries(t *testing.T) {
	// tag 63 is the last same_frame, tag 64 the first same_locals_1_stack_item_frame.
	same, err := EncodeStackMapTable([]StackMapFrame{{Kind: KindSame, OffsetDelta: 63}})
	require.NoError(t, err)
	require.Equal(t, byte(63), same[2])

	oneStack, err := EncodeStackMapTable([]StackMapFrame{{Kind: KindSameLocals1Stack, OffsetDelta: 0, Stack: []VerificationType{{Tag: VTTop}}}})
	require.NoError(t, err)
	require.Equal(t, byte(64), oneStack[2])
}

func TestStackMapReservedTagRejected(t *testing.T) {
	_, err := DecodeStackMapTable([]byte{0x00, 0x01, 246})
	require.Error(t, err)
}
