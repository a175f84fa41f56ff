package insn

// Instr is one decoded instruction: its opcode, its bytecode offset,
// its encoded length in bytes, and whichever operand fields its
// Layout populates. Unused fields for a given layout are zero.
type Instr struct {
	Op     Opcode
	Offset int32
	Length int32
	Wide   bool // decoded via the wide prefix (local index is u2, iinc const is s2)

	Local  int    // LayoutLocal8, LayoutIinc, Ret
	Imm    int32  // LayoutImm8, LayoutImm16, LayoutIinc (the increment)
	CP     uint16 // LayoutCPIndex8/16, LayoutInvokeInterface, LayoutInvokeDynamic, LayoutMultianewarray
	Count  uint8  // LayoutInvokeInterface operand count, LayoutMultianewarray dims
	Branch int32  // LayoutBranch16/32: target offset relative to Offset
	AType  NewarrayType

	// Tableswitch
	Default  int32
	Low, High int32
	Offsets  []int32 // len == High-Low+1, relative to Offset

	// Lookupswitch
	Matches []int32
	Jumps   []int32 // relative to Offset, parallel to Matches
}

// Target returns the absolute bytecode offset a relative branch
// operand points to.
func (in *Instr) Target() int32 { return in.Offset + in.Branch }

// SwitchTargets returns the absolute offsets of every non-default
// switch arm, in table/pair order.
func (in *Instr) SwitchTargets() []int32 {
	var rel []int32
	switch in.Op {
	case Tableswitch:
		rel = in.Offsets
	case Lookupswitch:
		rel = in.Jumps
	default:
		return nil
	}
	out := make([]int32, len(rel))
	for i, r := range rel {
		out[i] = in.Offset + r
	}
	return out
}

// DefaultTarget returns the absolute offset of a switch's default arm.
func (in *Instr) DefaultTarget() int32 { return in.Offset + in.Default }

// IsBranch reports whether in ends its block with a single
// conditional or unconditional jump.
func (in *Instr) IsBranch() bool {
	switch in.Op.Layout() {
	case LayoutBranch16, LayoutBranch32:
		return true
	default:
		return false
	}
}

// IsConditional reports whether in is a conditional branch (as
// opposed to goto/goto_w/jsr/jsr_w, which are unconditional).
func (in *Instr) IsConditional() bool {
	switch in.Op {
	case Goto, GotoW, Jsr, JsrW:
		return false
	}
	return in.IsBranch()
}

// IsReturn reports whether in is one of the *return family terminators.
func (in *Instr) IsReturn() bool {
	switch in.Op {
	case Ireturn, Lreturn, Freturn, Dreturn, Areturn, Return:
		return true
	default:
		return false
	}
}

// IsSwitch reports whether in is tableswitch or lookupswitch.
func (in *Instr) IsSwitch() bool {
	return in.Op == Tableswitch || in.Op == Lookupswitch
}

// Terminator reports whether in can end a basic block: any branch,
// switch, return, athrow or ret.
func (in *Instr) Terminator() bool {
	return in.IsBranch() || in.IsSwitch() || in.IsReturn() || in.Op == Athrow || in.Op == Ret
}

func (in *Instr) String() string {
	return in.Op.Name()
}
