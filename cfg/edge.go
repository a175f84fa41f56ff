package cfg

import "github.com/go-classfile/jcfg/insn"

// EdgeKind distinguishes the ways control can pass from one block to
// another (spec.md §3 Edge).
type EdgeKind uint8

const (
	Fallthrough EdgeKind = iota
	Jump
	JsrJump
	JsrFallthrough
	Ret
	Switch
	Exception
)

// limit returns the maximum number of edges of this kind a single
// block may originate, or 0 for unbounded.
func (k EdgeKind) limit() int {
	switch k {
	case Fallthrough, Jump, JsrJump, JsrFallthrough, Ret:
		return 1
	default:
		return 0 // Switch, Exception: unbounded
	}
}

func (k EdgeKind) String() string {
	switch k {
	case Fallthrough:
		return "fallthrough"
	case Jump:
		return "jump"
	case JsrJump:
		return "jsr-jump"
	case JsrFallthrough:
		return "jsr-fallthrough"
	case Ret:
		return "ret"
	case Switch:
		return "switch"
	case Exception:
		return "exception"
	}
	return "?"
}

// Edge is a directed, typed connection between two blocks.
type Edge struct {
	From, To Label
	Kind     EdgeKind

	Instr *insn.Instr // the jump/switch/ret instruction that created this edge, if any

	Value *int32 // Switch: case key; nil means the default arm

	Throwable string // Exception: internal name of the caught type ("" means any, i.e. finally)
	Priority  int    // Exception: lower sorts earlier in the emitted exception table

	InlineCoverage bool // Exception: whether the protected range extends over an inlined block copy

	resolved bool // set once a Ret edge's To has been bound by Graph.Resolve
}
