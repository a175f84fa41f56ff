// Package disasm builds a control-flow graph out of a decoded method
// body: boundary discovery, block splitting and typed edge emission
// (spec.md §4.2).
package disasm

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-classfile/jcfg/cfg"
	"github.com/go-classfile/jcfg/classfile"
	"github.com/go-classfile/jcfg/cpool"
	"github.com/go-classfile/jcfg/insn"
	"github.com/go-classfile/jcfg/verify"
)

// PrintDebugInfo toggles verbose logging of the boundary/split passes.
var PrintDebugInfo = false

var logger *log.Logger

func init() {
	var w io.Writer = io.Discard
	if PrintDebugInfo {
		w = os.Stderr
	}
	logger = log.New(w, "disasm: ", log.Lshortfile)
}

// ErrEmptyCode is returned when a Code attribute has no instructions
// to disassemble.
var ErrEmptyCode = errors.New("disasm: empty code array")

// Disassemble decodes code's bytecode and exception table into a
// Graph whose blocks hold insn.Instr slices. pool resolves exception
// table catch-type indices to internal class names. The returned Log
// carries non-fatal diagnostics (e.g. an obfuscated unbound forward
// goto, spec.md §8 scenario 6); it is never nil and may be empty.
func Disassemble(code *classfile.Code, pool *cpool.Pool) (*cfg.Graph, *verify.Log, error) {
	log := &verify.Log{}

	instrs, err := insn.DecodeAll(code.Bytes)
	if err != nil {
		return nil, log, err
	}
	if len(instrs) == 0 {
		return nil, log, ErrEmptyCode
	}
	logger.Printf("decoded %d instructions", len(instrs))

	boundaries := discoverBoundaries(instrs, code.Exceptions)
	g, byOffset, order := splitBlocks(instrs, boundaries)
	if err := emitEdges(g, byOffset, order, log); err != nil {
		return nil, log, err
	}
	emitExceptionEdges(g, byOffset, order, code.Exceptions, pool)
	return g, log, nil
}

// discoverBoundaries collects every bytecode offset that must start a
// new block: branch/switch targets, exception handler starts, and
// exception range bounds (spec.md §4.2 step 1).
func discoverBoundaries(instrs []*insn.Instr, exc []classfile.ExceptionTableEntry) map[int32]bool {
	b := make(map[int32]bool)
	for _, in := range instrs {
		switch {
		case in.IsBranch():
			b[in.Target()] = true
		case in.IsSwitch():
			b[in.DefaultTarget()] = true
			for _, t := range in.SwitchTargets() {
				b[t] = true
			}
		}
	}
	for _, e := range exc {
		b[int32(e.StartPC)] = true
		b[int32(e.EndPC)] = true
		b[int32(e.HandlerPC)] = true
	}
	return b
}

// splitBlocks walks instrs in offset order, starting a fresh block
// whenever the previous instruction terminated control flow or the
// current offset is a recorded boundary (spec.md §4.2 step 2). It
// returns the populated graph, a map from instruction offset to the
// block that contains it, and the blocks in program order.
func splitBlocks(instrs []*insn.Instr, boundaries map[int32]bool) (*cfg.Graph, map[int32]cfg.Label, []*cfg.Block) {
	g := cfg.NewGraph()
	byOffset := make(map[int32]cfg.Label, len(instrs))
	var order []*cfg.Block

	cur := g.NewBlock()
	order = append(order, cur)
	var prevTerminated bool

	for _, in := range instrs {
		if (prevTerminated || boundaries[in.Offset]) && len(cur.Instrs) > 0 {
			cur = g.NewBlock()
			order = append(order, cur)
		}
		cur.Instrs = append(cur.Instrs, in)
		byOffset[in.Offset] = cur.Label
		prevTerminated = in.Terminator()
	}

	// A new block is opened only for an instruction about to be
	// appended, so the one block that can stay empty is the initial
	// block of a method with no instructions; it is dropped.
	if n := len(order); n > 0 && len(order[n-1].Instrs) == 0 {
		order = order[:n-1]
	}
	return g, byOffset, order
}

// emitEdges walks each block's terminator and wires the typed edges
// it implies (spec.md §4.2 step 3). An unbound forward goto/goto_w (a
// target offset with no matching block, which should not occur for
// well-formed input but is tolerated for obfuscated bytecode) keeps
// its raw instruction and falls back to a fallthrough into the
// numerically-next block, recording a diagnostic in log (spec.md §4.2,
// §8 scenario 6).
func emitEdges(g *cfg.Graph, byOffset map[int32]cfg.Label, order []*cfg.Block, log *verify.Log) error {
	for i, b := range order {
		term := b.Terminator()
		if term == nil {
			continue
		}
		next := cfg.Label(-99) // sentinel: no numeric successor
		if i+1 < len(order) {
			next = order[i+1].Label
		}

		switch {
		case term.Op == insn.Goto || term.Op == insn.GotoW:
			if err := addGotoEdge(g, log, b.Label, term, byOffset, next); err != nil {
				return err
			}

		case term.Op == insn.Jsr || term.Op == insn.JsrW:
			if err := addJump(g, b.Label, term, byOffset, next, cfg.JsrJump); err != nil {
				return err
			}
			if next != cfg.Label(-99) {
				if err := g.AddEdge(&cfg.Edge{From: b.Label, To: next, Kind: cfg.JsrFallthrough, Instr: term}); err != nil {
					return err
				}
				g.Block(next).Inline = true
			}

		case term.Op == insn.Ret:
			if err := g.AddEdge(&cfg.Edge{From: b.Label, Kind: cfg.Ret, Instr: term}); err != nil {
				return err
			}

		case term.IsConditional():
			if err := addJump(g, b.Label, term, byOffset, next, cfg.Jump); err != nil {
				return err
			}
			if next != cfg.Label(-99) {
				if err := g.AddEdge(&cfg.Edge{From: b.Label, To: next, Kind: cfg.Fallthrough, Instr: term}); err != nil {
					return err
				}
			}

		case term.IsSwitch():
			if err := addSwitchEdges(g, b.Label, term, byOffset); err != nil {
				return err
			}

		case term.IsReturn():
			if err := g.AddEdge(&cfg.Edge{From: b.Label, To: cfg.ReturnLabel, Kind: cfg.Fallthrough, Instr: term}); err != nil {
				return err
			}

		case term.Op == insn.Athrow:
			if err := g.AddEdge(&cfg.Edge{From: b.Label, To: cfg.RethrowLabel, Kind: cfg.Fallthrough, Instr: term}); err != nil {
				return err
			}

		default:
			// Falls off the end of the block into the next one
			// without an explicit terminator instruction.
			if next != cfg.Label(-99) {
				if err := g.AddEdge(&cfg.Edge{From: b.Label, To: next, Kind: cfg.Fallthrough}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func addJump(g *cfg.Graph, from cfg.Label, term *insn.Instr, byOffset map[int32]cfg.Label, next cfg.Label, kind cfg.EdgeKind) error {
	to, ok := byOffset[term.Target()]
	if !ok {
		logger.Printf("unbound jump target %d from block %d, falling back to fallthrough", term.Target(), from)
		if next == cfg.Label(-99) {
			return fmt.Errorf("disasm: unbound jump target %d with no following block", term.Target())
		}
		to = next
	}
	return g.AddEdge(&cfg.Edge{From: from, To: to, Kind: kind, Instr: term})
}

// addGotoEdge binds a goto/goto_w's Jump edge. When the operand
// targets an offset past end-of-code (an obfuscated input with no
// block to bind to), the raw instruction is preserved as-is and a
// Fallthrough edge to the numerically-next block is emitted in its
// place, with a diagnostic recorded in log rather than raised (spec.md
// §4.2, §8 scenario 6).
func addGotoEdge(g *cfg.Graph, log *verify.Log, from cfg.Label, term *insn.Instr, byOffset map[int32]cfg.Label, next cfg.Label) error {
	to, ok := byOffset[term.Target()]
	if ok {
		return g.AddEdge(&cfg.Edge{From: from, To: to, Kind: cfg.Jump, Instr: term})
	}
	if next == cfg.Label(-99) {
		return fmt.Errorf("disasm: unbound goto target %d with no following block", term.Target())
	}
	log.Add(verify.InvalidEdge, verify.Block(int32(from)),
		"goto at block %d targets offset %d outside the code array; falling back to a fallthrough into block %d",
		from, term.Target(), next)
	return g.AddEdge(&cfg.Edge{From: from, To: next, Kind: cfg.Fallthrough, Instr: term})
}

func addSwitchEdges(g *cfg.Graph, from cfg.Label, term *insn.Instr, byOffset map[int32]cfg.Label) error {
	addOne := func(target int32, value *int32) error {
		to, ok := byOffset[target]
		if !ok {
			return fmt.Errorf("disasm: unbound switch target %d", target)
		}
		return g.AddEdge(&cfg.Edge{From: from, To: to, Kind: cfg.Switch, Instr: term, Value: value})
	}
	if err := addOne(term.DefaultTarget(), nil); err != nil {
		return err
	}
	targets := term.SwitchTargets()
	switch term.Op {
	case insn.Tableswitch:
		for i, t := range targets {
			v := term.Low + int32(i)
			if err := addOne(t, &v); err != nil {
				return err
			}
		}
	case insn.Lookupswitch:
		for i, t := range targets {
			v := term.Matches[i]
			if err := addOne(t, &v); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitExceptionEdges connects every block whose starting offset lies
// in [start, end) to its handler block (spec.md §4.2 step 4).
func emitExceptionEdges(g *cfg.Graph, byOffset map[int32]cfg.Label, order []*cfg.Block, exc []classfile.ExceptionTableEntry, pool *cpool.Pool) {
	for i, e := range exc {
		handler, ok := byOffset[int32(e.HandlerPC)]
		if !ok {
			logger.Printf("exception table entry %d has unbound handler offset %d", i, e.HandlerPC)
			continue
		}
		for _, b := range order {
			start := b.StartOffset()
			if start < 0 {
				continue
			}
			if start >= int32(e.StartPC) && start < int32(e.EndPC) {
				g.AddEdge(&cfg.Edge{
					From:      b.Label,
					To:        handler,
					Kind:      cfg.Exception,
					Priority:  i,
					Throwable: catchTypeName(e, pool),
				})
			}
		}
	}
}

func catchTypeName(e classfile.ExceptionTableEntry, pool *cpool.Pool) string {
	if e.CatchType == 0 {
		return "java/lang/Throwable"
	}
	if c, ok := pool.Get(e.CatchType).(cpool.Class); ok {
		return c.Name
	}
	return ""
}
