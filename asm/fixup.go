package asm

import (
	"github.com/go-classfile/jcfg/insn"
)

// negate maps each conditional-branch opcode to its logical inverse,
// used to rewrite an out-of-range conditional into "invert; narrow
// goto over a wide goto" (spec.md §4.5 phase 2, Open Question (a)).
var negate = map[insn.Opcode]insn.Opcode{
	insn.Ifeq: insn.Ifne, insn.Ifne: insn.Ifeq,
	insn.Iflt: insn.Ifge, insn.Ifge: insn.Iflt,
	insn.Ifgt: insn.Ifle, insn.Ifle: insn.Ifgt,
	insn.IfIcmpeq: insn.IfIcmpne, insn.IfIcmpne: insn.IfIcmpeq,
	insn.IfIcmplt: insn.IfIcmpge, insn.IfIcmpge: insn.IfIcmplt,
	insn.IfIcmpgt: insn.IfIcmple, insn.IfIcmple: insn.IfIcmpgt,
	insn.IfAcmpeq: insn.IfAcmpne, insn.IfAcmpne: insn.IfAcmpeq,
	insn.Ifnull: insn.Ifnonnull, insn.Ifnonnull: insn.Ifnull,
}

func fitsS16(v int32) bool { return v >= -32768 && v <= 32767 }

// AssignOffsets lays out every unit's instructions linearly and
// iterates to a fixed point: each pass may widen an unconditional
// goto/jsr or split a conditional branch whose displacement has grown
// out of 16-bit range, which shifts every later offset and can in turn
// require further widening (spec.md §4.5 phase 1 step 4, phase 2).
func AssignOffsets(lay *Layout) {
	for {
		offset := int32(0)
		for _, u := range lay.Units {
			u.Offset = offset
			for _, in := range u.Instrs {
				in.Offset = offset
				offset += insn.Len(in)
			}
		}
		if !fixBranches(lay) {
			return
		}
	}
}

// fixBranches recomputes every recorded jump's displacement against
// the offsets AssignOffsets just assigned, widening or rewriting
// instructions whose displacement no longer fits. It reports whether
// anything changed, so AssignOffsets knows whether another pass is
// needed.
func fixBranches(lay *Layout) bool {
	changed := false
	for _, u := range lay.Units {
		for i := 0; i < len(u.Instrs); i++ {
			in := u.Instrs[i]
			bt, ok := lay.Targets[in]
			if !ok {
				continue
			}

			switch {
			case in.Op == insn.Goto || in.Op == insn.Jsr:
				disp := lay.offsetOf(bt.label) - in.Offset
				if !fitsS16(disp) {
					widen(in)
					changed = true
					continue
				}
				in.Branch = disp

			case in.Op == insn.GotoW || in.Op == insn.JsrW:
				in.Branch = lay.offsetOf(bt.label) - in.Offset

			case in.IsConditional():
				disp := lay.offsetOf(bt.label) - in.Offset
				if !fitsS16(disp) {
					u.Instrs = rewriteConditional(lay, u.Instrs, i, bt)
					changed = true
					continue
				}
				in.Branch = disp

			case in.IsSwitch():
				updateSwitch(in, bt, lay)
			}
		}
	}
	return changed
}

func widen(in *insn.Instr) {
	switch in.Op {
	case insn.Goto:
		in.Op = insn.GotoW
	case insn.Jsr:
		in.Op = insn.JsrW
	}
}

// rewriteConditional splits the out-of-range conditional branch at
// index i into its logical inverse (a short branch skipping the
// goto_w that follows it) followed by an unconditional goto_w carrying the
// original target, a standard verifier-transparent way to reach an
// arbitrary 32-bit displacement from a conditional opcode that only
// encodes a 16-bit one.
func rewriteConditional(lay *Layout, instrs []*insn.Instr, i int, bt *branchTarget) []*insn.Instr {
	orig := instrs[i]
	inv := &insn.Instr{Op: negate[orig.Op], Branch: 8} // skip past the 5-byte goto_w that follows
	wide := &insn.Instr{Op: insn.GotoW}
	lay.Targets[wide] = bt
	delete(lay.Targets, orig)

	out := make([]*insn.Instr, 0, len(instrs)+1)
	out = append(out, instrs[:i]...)
	out = append(out, inv, wide)
	out = append(out, instrs[i+1:]...)
	return out
}

func updateSwitch(in *insn.Instr, bt *branchTarget, lay *Layout) {
	if bt.hasDef {
		in.Default = lay.offsetOf(bt.def) - in.Offset
	}
	switch in.Op {
	case insn.Tableswitch:
		for i := range in.Offsets {
			in.Offsets[i] = lay.offsetOf(bt.cases[i]) - in.Offset
		}
	case insn.Lookupswitch:
		for i := range in.Jumps {
			in.Jumps[i] = lay.offsetOf(bt.cases[i]) - in.Offset
		}
	}
}
