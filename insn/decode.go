package insn

import (
	"bytes"
	"fmt"

	"github.com/go-classfile/jcfg/codec"
)

// UnknownOpcode is returned by Decode when a byte does not name a
// defined JVM opcode.
type UnknownOpcode struct {
	Byte   byte
	Offset int32
}

func (e UnknownOpcode) Error() string {
	return fmt.Sprintf("insn: unknown opcode 0x%02x at offset %d", e.Byte, e.Offset)
}

// DecodeAll decodes every instruction in a Code attribute's raw byte
// stream, in offset order.
func DecodeAll(code []byte) ([]*Instr, error) {
	var out []*Instr
	r := bytes.NewReader(code)
	for r.Len() > 0 {
		pos := int32(len(code) - r.Len())
		in, err := decodeOne(code, r, pos)
		if err != nil {
			return out, err
		}
		out = append(out, in)
	}
	return out, nil
}

func decodeOne(code []byte, r *bytes.Reader, offset int32) (*Instr, error) {
	opByte, err := codec.ReadU8(r)
	if err != nil {
		return nil, err
	}
	op := Opcode(opByte)

	if op == Wide {
		return decodeWide(r, offset)
	}

	if !op.Defined() {
		return nil, UnknownOpcode{Byte: opByte, Offset: offset}
	}

	in := &Instr{Op: op, Offset: offset}
	if err := decodeOperands(code, r, in); err != nil {
		return nil, err
	}
	in.Length = int32(len(code)-r.Len()) - offset
	return in, nil
}

func decodeWide(r *bytes.Reader, offset int32) (*Instr, error) {
	innerByte, err := codec.ReadU8(r)
	if err != nil {
		return nil, err
	}
	inner := Opcode(innerByte)
	if !inner.Defined() || !inner.IsWideTarget() {
		return nil, UnknownOpcode{Byte: innerByte, Offset: offset + 1}
	}

	in := &Instr{Op: inner, Offset: offset, Wide: true}
	idx, err := codec.ReadU16(r)
	if err != nil {
		return nil, err
	}
	in.Local = int(idx)

	if inner == Iinc {
		c, err := codec.ReadU16(r)
		if err != nil {
			return nil, err
		}
		in.Imm = int32(int16(c))
		in.Length = 6
	} else {
		in.Length = 4
	}
	return in, nil
}

func decodeOperands(code []byte, r *bytes.Reader, in *Instr) error {
	switch in.Op.Layout() {
	case LayoutNone:
		return nil

	case LayoutLocal8:
		v, err := codec.ReadU8(r)
		if err != nil {
			return err
		}
		in.Local = int(v)
		return nil

	case LayoutImm8:
		v, err := codec.ReadU8(r)
		if err != nil {
			return err
		}
		in.Imm = int32(int8(v))
		return nil

	case LayoutImm16:
		v, err := codec.ReadU16(r)
		if err != nil {
			return err
		}
		in.Imm = int32(int16(v))
		return nil

	case LayoutCPIndex8:
		v, err := codec.ReadU8(r)
		if err != nil {
			return err
		}
		in.CP = uint16(v)
		return nil

	case LayoutCPIndex16:
		v, err := codec.ReadU16(r)
		if err != nil {
			return err
		}
		in.CP = v
		return nil

	case LayoutInvokeInterface:
		v, err := codec.ReadU16(r)
		if err != nil {
			return err
		}
		in.CP = v
		cnt, err := codec.ReadU8(r)
		if err != nil {
			return err
		}
		in.Count = cnt
		if _, err := codec.ReadU8(r); err != nil { // reserved zero
			return err
		}
		return nil

	case LayoutInvokeDynamic:
		v, err := codec.ReadU16(r)
		if err != nil {
			return err
		}
		in.CP = v
		if _, err := codec.ReadU16(r); err != nil { // reserved zero
			return err
		}
		return nil

	case LayoutBranch16:
		v, err := codec.ReadU16(r)
		if err != nil {
			return err
		}
		in.Branch = int32(int16(v))
		return nil

	case LayoutBranch32:
		v, err := codec.ReadU32(r)
		if err != nil {
			return err
		}
		in.Branch = int32(v)
		return nil

	case LayoutIinc:
		idx, err := codec.ReadU8(r)
		if err != nil {
			return err
		}
		in.Local = int(idx)
		c, err := codec.ReadU8(r)
		if err != nil {
			return err
		}
		in.Imm = int32(int8(c))
		return nil

	case LayoutNewarray:
		v, err := codec.ReadU8(r)
		if err != nil {
			return err
		}
		in.AType = NewarrayType(v)
		return nil

	case LayoutMultianewarray:
		v, err := codec.ReadU16(r)
		if err != nil {
			return err
		}
		in.CP = v
		dims, err := codec.ReadU8(r)
		if err != nil {
			return err
		}
		in.Count = dims
		return nil

	case LayoutTableswitch:
		return decodeTableswitch(code, r, in)

	case LayoutLookupswitch:
		return decodeLookupswitch(code, r, in)
	}
	return fmt.Errorf("insn: unhandled layout for %s", in.Op.Name())
}

func padTo4(code []byte, r *bytes.Reader, opStart int32) error {
	pos := int32(len(code) - r.Len())
	pad := (4 - pos%4) % 4
	if pad == 0 {
		return nil
	}
	_, err := codec.ReadBytes(r, int(pad))
	return err
}

func decodeTableswitch(code []byte, r *bytes.Reader, in *Instr) error {
	if err := padTo4(code, r, in.Offset); err != nil {
		return err
	}
	def, err := codec.ReadU32(r)
	if err != nil {
		return err
	}
	in.Default = int32(def)
	low, err := codec.ReadU32(r)
	if err != nil {
		return err
	}
	high, err := codec.ReadU32(r)
	if err != nil {
		return err
	}
	in.Low, in.High = int32(low), int32(high)
	n := in.High - in.Low + 1
	in.Offsets = make([]int32, 0, n)
	for i := int32(0); i < n; i++ {
		off, err := codec.ReadU32(r)
		if err != nil {
			return err
		}
		in.Offsets = append(in.Offsets, int32(off))
	}
	return nil
}

func decodeLookupswitch(code []byte, r *bytes.Reader, in *Instr) error {
	if err := padTo4(code, r, in.Offset); err != nil {
		return err
	}
	def, err := codec.ReadU32(r)
	if err != nil {
		return err
	}
	in.Default = int32(def)
	npairs, err := codec.ReadU32(r)
	if err != nil {
		return err
	}
	in.Matches = make([]int32, 0, npairs)
	in.Jumps = make([]int32, 0, npairs)
	for i := uint32(0); i < npairs; i++ {
		m, err := codec.ReadU32(r)
		if err != nil {
			return err
		}
		j, err := codec.ReadU32(r)
		if err != nil {
			return err
		}
		in.Matches = append(in.Matches, int32(m))
		in.Jumps = append(in.Jumps, int32(j))
	}
	return nil
}
