package insn

import (
	"bytes"

	"github.com/go-classfile/jcfg/codec"
)

// Encode writes in's opcode and operands to buf at the position buf
// is currently at, which the caller must ensure equals in.Offset so
// that tableswitch/lookupswitch padding lines up. It is the inverse
// of DecodeAll/decodeOne.
func Encode(buf *bytes.Buffer, in *Instr) error {
	if in.Wide && in.Op.IsWideTarget() {
		if err := codec.WriteU8(buf, uint8(Wide)); err != nil {
			return err
		}
		if err := codec.WriteU8(buf, uint8(in.Op)); err != nil {
			return err
		}
		if err := codec.WriteU16(buf, uint16(in.Local)); err != nil {
			return err
		}
		if in.Op == Iinc {
			return codec.WriteU16(buf, uint16(int16(in.Imm)))
		}
		return nil
	}

	if err := codec.WriteU8(buf, uint8(in.Op)); err != nil {
		return err
	}

	switch in.Op.Layout() {
	case LayoutNone:
		return nil

	case LayoutLocal8:
		return codec.WriteU8(buf, uint8(in.Local))

	case LayoutImm8:
		return codec.WriteU8(buf, uint8(int8(in.Imm)))

	case LayoutImm16:
		return codec.WriteU16(buf, uint16(int16(in.Imm)))

	case LayoutCPIndex8:
		return codec.WriteU8(buf, uint8(in.CP))

	case LayoutCPIndex16:
		return codec.WriteU16(buf, in.CP)

	case LayoutInvokeInterface:
		if err := codec.WriteU16(buf, in.CP); err != nil {
			return err
		}
		if err := codec.WriteU8(buf, in.Count); err != nil {
			return err
		}
		return codec.WriteU8(buf, 0)

	case LayoutInvokeDynamic:
		if err := codec.WriteU16(buf, in.CP); err != nil {
			return err
		}
		return codec.WriteU16(buf, 0)

	case LayoutBranch16:
		return codec.WriteU16(buf, uint16(int16(in.Branch)))

	case LayoutBranch32:
		return codec.WriteU32(buf, uint32(in.Branch))

	case LayoutIinc:
		if err := codec.WriteU8(buf, uint8(in.Local)); err != nil {
			return err
		}
		return codec.WriteU8(buf, uint8(int8(in.Imm)))

	case LayoutNewarray:
		return codec.WriteU8(buf, uint8(in.AType))

	case LayoutMultianewarray:
		if err := codec.WriteU16(buf, in.CP); err != nil {
			return err
		}
		return codec.WriteU8(buf, in.Count)

	case LayoutTableswitch:
		return encodeTableswitch(buf, in)

	case LayoutLookupswitch:
		return encodeLookupswitch(buf, in)
	}
	return nil
}

func padWrite(buf *bytes.Buffer, opStart int32) error {
	pos := opStart + 1 // opcode byte already written
	pad := (4 - pos%4) % 4
	for i := int32(0); i < pad; i++ {
		if err := codec.WriteU8(buf, 0); err != nil {
			return err
		}
	}
	return nil
}

func encodeTableswitch(buf *bytes.Buffer, in *Instr) error {
	if err := padWrite(buf, in.Offset); err != nil {
		return err
	}
	if err := codec.WriteU32(buf, uint32(in.Default)); err != nil {
		return err
	}
	if err := codec.WriteU32(buf, uint32(in.Low)); err != nil {
		return err
	}
	if err := codec.WriteU32(buf, uint32(in.High)); err != nil {
		return err
	}
	for _, off := range in.Offsets {
		if err := codec.WriteU32(buf, uint32(off)); err != nil {
			return err
		}
	}
	return nil
}

func encodeLookupswitch(buf *bytes.Buffer, in *Instr) error {
	if err := padWrite(buf, in.Offset); err != nil {
		return err
	}
	if err := codec.WriteU32(buf, uint32(in.Default)); err != nil {
		return err
	}
	if err := codec.WriteU32(buf, uint32(len(in.Matches))); err != nil {
		return err
	}
	for i := range in.Matches {
		if err := codec.WriteU32(buf, uint32(in.Matches[i])); err != nil {
			return err
		}
		if err := codec.WriteU32(buf, uint32(in.Jumps[i])); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the encoded length in bytes of in, as it would be
// written by Encode at offset in.Offset. Used by the assembler during
// offset-fixup iteration before bytes are actually emitted.
func Len(in *Instr) int32 {
	var buf bytes.Buffer
	// Encode computes tableswitch/lookupswitch padding from in.Offset,
	// so callers performing fixup must keep in.Offset current before
	// calling Len.
	_ = Encode(&buf, in)
	return int32(buf.Len())
}
