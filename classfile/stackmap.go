package classfile

import (
	"bytes"
	"fmt"

	"github.com/go-classfile/jcfg/codec"
)

// VerificationTypeTag is the one-byte discriminant of a
// verification_type_info structure (JVMS §4.7.4).
type VerificationTypeTag uint8

const (
	VTTop VerificationTypeTag = iota
	VTInteger
	VTFloat
	VTDouble
	VTLong
	VTNull
	VTUninitializedThis
	VTObject
	VTUninitialized
)

// VerificationType is one stack or local slot in a StackMapFrame:
// primitives/null/uninitializedThis need no extra data, Object
// carries a constant-pool class index, and Uninitialized carries the
// offset of its creating `new`.
type VerificationType struct {
	Tag       VerificationTypeTag
	CPIndex   uint16 // VTObject
	Offset    uint16 // VTUninitialized
}

func readVerificationType(r *bytes.Reader) (VerificationType, error) {
	tagByte, err := codec.ReadU8(r)
	if err != nil {
		return VerificationType{}, err
	}
	vt := VerificationType{Tag: VerificationTypeTag(tagByte)}
	switch vt.Tag {
	case VTObject:
		idx, err := codec.ReadU16(r)
		if err != nil {
			return vt, err
		}
		vt.CPIndex = idx
	case VTUninitialized:
		off, err := codec.ReadU16(r)
		if err != nil {
			return vt, err
		}
		vt.Offset = off
	}
	return vt, nil
}

func writeVerificationType(buf *bytes.Buffer, vt VerificationType) error {
	if err := codec.WriteU8(buf, uint8(vt.Tag)); err != nil {
		return err
	}
	switch vt.Tag {
	case VTObject:
		return codec.WriteU16(buf, vt.CPIndex)
	case VTUninitialized:
		return codec.WriteU16(buf, vt.Offset)
	}
	return nil
}

// StackMapFrameKind names the compressed frame encodings of JVMS
// §4.7.4 (spec.md §4.4 phase 4 "compress").
type StackMapFrameKind uint8

const (
	KindSame StackMapFrameKind = iota
	KindSameLocals1Stack
	KindSameLocals1StackExtended
	KindChop
	KindSameExtended
	KindAppend
	KindFull
)

// StackMapFrame is one decoded entry of a StackMapTable attribute.
// OffsetDelta is always relative to the previous frame (or to -1 for
// the first), per JVMS §4.7.4.
type StackMapFrame struct {
	Kind        StackMapFrameKind
	OffsetDelta uint16

	ChopCount   int                // KindChop: 1-3 trailing locals removed
	Locals      []VerificationType // KindAppend (added locals), KindFull (all locals)
	Stack       []VerificationType // KindSameLocals1Stack[Extended] (exactly one), KindFull
}

// DecodeStackMapTable parses a StackMapTable attribute's raw Info
// bytes.
func DecodeStackMapTable(info []byte) ([]StackMapFrame, error) {
	r := bytes.NewReader(info)
	count, err := codec.ReadU16(r)
	if err != nil {
		return nil, err
	}
	frames := make([]StackMapFrame, 0, count)
	for i := uint16(0); i < count; i++ {
		f, err := decodeOneFrame(r)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func decodeOneFrame(r *bytes.Reader) (StackMapFrame, error) {
	tag, err := codec.ReadU8(r)
	if err != nil {
		return StackMapFrame{}, err
	}
	switch {
	case tag <= 63:
		return StackMapFrame{Kind: KindSame, OffsetDelta: uint16(tag)}, nil

	case tag <= 127:
		vt, err := readVerificationType(r)
		if err != nil {
			return StackMapFrame{}, err
		}
		return StackMapFrame{Kind: KindSameLocals1Stack, OffsetDelta: uint16(tag) - 64, Stack: []VerificationType{vt}}, nil

	case tag == 247:
		delta, err := codec.ReadU16(r)
		if err != nil {
			return StackMapFrame{}, err
		}
		vt, err := readVerificationType(r)
		if err != nil {
			return StackMapFrame{}, err
		}
		return StackMapFrame{Kind: KindSameLocals1StackExtended, OffsetDelta: delta, Stack: []VerificationType{vt}}, nil

	case tag >= 248 && tag <= 250:
		delta, err := codec.ReadU16(r)
		if err != nil {
			return StackMapFrame{}, err
		}
		return StackMapFrame{Kind: KindChop, OffsetDelta: delta, ChopCount: 251 - int(tag)}, nil

	case tag == 251:
		delta, err := codec.ReadU16(r)
		if err != nil {
			return StackMapFrame{}, err
		}
		return StackMapFrame{Kind: KindSameExtended, OffsetDelta: delta}, nil

	case tag >= 252 && tag <= 254:
		delta, err := codec.ReadU16(r)
		if err != nil {
			return StackMapFrame{}, err
		}
		n := int(tag) - 251
		locals := make([]VerificationType, n)
		for i := 0; i < n; i++ {
			locals[i], err = readVerificationType(r)
			if err != nil {
				return StackMapFrame{}, err
			}
		}
		return StackMapFrame{Kind: KindAppend, OffsetDelta: delta, Locals: locals}, nil

	case tag == 255:
		delta, err := codec.ReadU16(r)
		if err != nil {
			return StackMapFrame{}, err
		}
		numLocals, err := codec.ReadU16(r)
		if err != nil {
			return StackMapFrame{}, err
		}
		locals := make([]VerificationType, numLocals)
		for i := range locals {
			if locals[i], err = readVerificationType(r); err != nil {
				return StackMapFrame{}, err
			}
		}
		numStack, err := codec.ReadU16(r)
		if err != nil {
			return StackMapFrame{}, err
		}
		stack := make([]VerificationType, numStack)
		for i := range stack {
			if stack[i], err = readVerificationType(r); err != nil {
				return StackMapFrame{}, err
			}
		}
		return StackMapFrame{Kind: KindFull, OffsetDelta: delta, Locals: locals, Stack: stack}, nil
	}
	return StackMapFrame{}, fmt.Errorf("classfile: reserved stack-map frame tag %d", tag)
}

// EncodeStackMapTable serializes frames back to a StackMapTable
// attribute's Info bytes.
func EncodeStackMapTable(frames []StackMapFrame) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.WriteU16(&buf, uint16(len(frames))); err != nil {
		return nil, err
	}
	for _, f := range frames {
		if err := encodeOneFrame(&buf, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeOneFrame(buf *bytes.Buffer, f StackMapFrame) error {
	switch f.Kind {
	case KindSame:
		return codec.WriteU8(buf, uint8(f.OffsetDelta))

	case KindSameLocals1Stack:
		if err := codec.WriteU8(buf, uint8(64+f.OffsetDelta)); err != nil {
			return err
		}
		return writeVerificationType(buf, f.Stack[0])

	case KindSameLocals1StackExtended:
		if err := codec.WriteU8(buf, 247); err != nil {
			return err
		}
		if err := codec.WriteU16(buf, f.OffsetDelta); err != nil {
			return err
		}
		return writeVerificationType(buf, f.Stack[0])

	case KindChop:
		if err := codec.WriteU8(buf, uint8(251-f.ChopCount)); err != nil {
			return err
		}
		return codec.WriteU16(buf, f.OffsetDelta)

	case KindSameExtended:
		if err := codec.WriteU8(buf, 251); err != nil {
			return err
		}
		return codec.WriteU16(buf, f.OffsetDelta)

	case KindAppend:
		if err := codec.WriteU8(buf, uint8(251+len(f.Locals))); err != nil {
			return err
		}
		if err := codec.WriteU16(buf, f.OffsetDelta); err != nil {
			return err
		}
		for _, l := range f.Locals {
			if err := writeVerificationType(buf, l); err != nil {
				return err
			}
		}
		return nil

	case KindFull:
		if err := codec.WriteU8(buf, 255); err != nil {
			return err
		}
		if err := codec.WriteU16(buf, f.OffsetDelta); err != nil {
			return err
		}
		if err := codec.WriteU16(buf, uint16(len(f.Locals))); err != nil {
			return err
		}
		for _, l := range f.Locals {
			if err := writeVerificationType(buf, l); err != nil {
				return err
			}
		}
		if err := codec.WriteU16(buf, uint16(len(f.Stack))); err != nil {
			return err
		}
		for _, s := range f.Stack {
			if err := writeVerificationType(buf, s); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("classfile: unknown stack-map frame kind %d", f.Kind)
}
