// Package trace runs the CFG-level abstract interpretation over a
// disassembled method body: an iterative depth-first walk of the
// control-flow graph that threads a frame.State along every edge,
// memoizes revisits of a block under an interchangeable entry state,
// resolves jsr/ret subroutine edges lazily, and accumulates max_stack,
// max_locals and liveness as it goes (spec.md §4.3).
package trace

import (
	"github.com/go-classfile/jcfg/cfg"
	"github.com/go-classfile/jcfg/frame"
	"github.com/go-classfile/jcfg/insn"
	"github.com/go-classfile/jcfg/verify"
	"github.com/go-classfile/jcfg/vtype"
)

// Options configures one Run.
type Options struct {
	// Exact freezes a memoization-style snapshot after every
	// instruction rather than only at block boundaries, which widens
	// Constraint.Instructions at the cost of more allocation. Off by
	// default; most callers only need entry/exit pairs.
	Exact bool
}

// Constraint records one (entry, exit) frame pair observed for a
// block, plus the bookkeeping needed to decide whether a later visit
// under an equivalent frame can be pruned (spec.md §4.3 constraint
// memoization) and to drive liveness (spec.md §4.3 "locals read before
// overwrite").
type Constraint struct {
	Keep  map[int]bool      // locals this constraint's memo key compares
	Entry *frame.FrozenState // the entry frame, frozen under Keep
	Exit  *frame.State       // the frame as it stood at the block's last instruction

	ReadBeforeWrite map[int]bool // locals read in this block before any write to them
	Written         map[int]bool // locals written anywhere in this block

	Instructions []*frame.FrozenState // per-instruction snapshots, only populated when Options.Exact
}

// Result is everything one Run produced.
type Result struct {
	Graph *cfg.Graph

	MaxStack  int
	MaxLocals int

	// Constraints holds every distinct (entry, exit) pair recorded per
	// block, in the order first observed.
	Constraints map[cfg.Label][]*Constraint

	// Subroutines maps the block ending in a ret to the block its ret
	// edge was resolved to (the jsr-fallthrough target it returns
	// control to).
	Subroutines map[cfg.Label]cfg.Label

	// JsrBlocks is the set of blocks whose terminator is jsr/jsr_w.
	JsrBlocks map[cfg.Label]bool

	BackEdges map[*cfg.Edge]bool
	LeafEdges map[*cfg.Edge]bool

	Liveness *Liveness

	Errors *verify.Log
}

type task struct {
	edge *cfg.Edge   // edge being entered; nil only for the synthetic start into the entry block
	fr   *frame.State // the frame on entry to edge.To, after any edge-specific transform
	path []cfg.Label  // blocks visited so far on this DFS branch, for back-edge detection
}

// Run walks g starting from the entry block with seed as the initial
// frame, applying ctx to every instruction's trace(frame) contract.
func Run(g *cfg.Graph, ctx *insn.Context, seed *frame.State, opts Options) *Result {
	res := &Result{
		Graph:       g,
		Constraints: make(map[cfg.Label][]*Constraint),
		Subroutines: make(map[cfg.Label]cfg.Label),
		JsrBlocks:   make(map[cfg.Label]bool),
		BackEdges:   make(map[*cfg.Edge]bool),
		LeafEdges:   make(map[*cfg.Edge]bool),
		Errors:      &verify.Log{},
	}

	instrBlock := indexInstrBlocks(g)
	updateMax(res, seed)

	stack := []task{{edge: nil, fr: seed, path: nil}}

	for len(stack) > 0 {
		n := len(stack) - 1
		t := stack[n]
		stack = stack[:n]

		label := g.EntryBlock().Label
		if t.edge != nil {
			label = t.edge.To
		}

		if label == cfg.ReturnLabel || label == cfg.RethrowLabel {
			if t.edge != nil {
				res.LeafEdges[t.edge] = true
			}
			updateMax(res, t.fr)
			continue
		}

		if containsLabel(t.path, label) {
			if t.edge != nil {
				res.BackEdges[t.edge] = true
			}
			continue
		}

		if reused := tryReuse(res, label, t.fr); reused {
			continue
		}

		b := g.Block(label)
		if b == nil {
			res.Errors.Add(verify.InvalidBlock, verify.Block(int32(label)), "edge targets a block that does not exist in the graph")
			continue
		}

		pushed := traceBlock(res, g, ctx, instrBlock, b, t, &stack, opts)
		if !pushed && t.edge != nil {
			res.LeafEdges[t.edge] = true
		}
	}

	res.Liveness = computeLiveness(g, res)
	return res
}

// traceBlock runs every instruction of b against t.fr, records the
// resulting Constraint, and pushes a task for each real outgoing edge
// (skipping the never-forward-taken jsr-fallthrough edge). It returns
// whether any successor task was pushed.
func traceBlock(res *Result, g *cfg.Graph, ctx *insn.Context, instrBlock map[int32]cfg.Label, b *cfg.Block, t task, stack *[]task, opts Options) bool {
	entrySnapshot := t.fr.Clone()
	startAccess := len(t.fr.Access)
	dumpState("block entry", entrySnapshot)

	var instrSnapshots []*frame.FrozenState
	keep := keepSet(entrySnapshot)

	for _, in := range b.Instrs {
		if err := insn.Trace(in, t.fr, ctx); err != nil {
			res.Errors.Add(mapErrKind(err), verify.Instruction(int32(b.Label), in.Offset), "%v", err)
			break
		}
		if opts.Exact {
			instrSnapshots = append(instrSnapshots, frame.Freeze(t.fr, keepSet(t.fr)))
		}
	}

	if term := b.Terminator(); term != nil && (term.Op == insn.Jsr || term.Op == insn.JsrW) {
		res.JsrBlocks[b.Label] = true
	}

	blockAccess := t.fr.Access[startAccess:]
	readBeforeWrite, written := accessSets(blockAccess)

	c := &Constraint{
		Keep:            keep,
		Entry:           frame.Freeze(entrySnapshot, keep),
		Exit:            t.fr,
		ReadBeforeWrite: readBeforeWrite,
		Written:         written,
		Instructions:    instrSnapshots,
	}
	res.Constraints[b.Label] = append(res.Constraints[b.Label], c)
	updateMax(res, t.fr)
	dumpState("block exit", t.fr)

	if term := b.Terminator(); term != nil && term.Op == insn.Ret {
		resolveRet(res, g, b, term, t.fr, instrBlock)
	}

	pushed := false
	for _, oe := range g.Out(b.Label) {
		if oe.Kind == cfg.JsrFallthrough {
			continue
		}
		if oe.Kind == cfg.Ret && oe.Opaque() {
			// resolveRet couldn't bind a target; skip rather than
			// walk into an undefined block.
			continue
		}
		nf := edgeFrame(ctx.Env, t.fr, oe)
		newPath := append(append([]cfg.Label(nil), t.path...), b.Label)
		*stack = append(*stack, task{edge: oe, fr: nf, path: newPath})
		pushed = true
	}
	return pushed
}

// keepSet is the memoization key's local set: every local index
// currently occupied in s. This is a conservative reading of spec.md
// §4.3's "locals read before overwrite within the block, plus
// whatever locals the caller still carries" — using the full carried
// set rather than computing precise per-block liveness up front trades
// some memoization opportunities for a much simpler, certainly-sound
// implementation.
func keepSet(s *frame.State) map[int]bool {
	keep := make(map[int]bool)
	for _, i := range s.LocalIndices() {
		keep[i] = true
	}
	return keep
}

// tryReuse reports whether fr matches a previously recorded entry
// constraint for label under that constraint's own keep set, in which
// case the block (and everything reachable only through it) has
// already been explored under an interchangeable state and this visit
// is pruned.
func tryReuse(res *Result, label cfg.Label, fr *frame.State) bool {
	for _, c := range res.Constraints[label] {
		cand := frame.Freeze(fr, c.Keep)
		if cand.Equal(c.Entry) {
			return true
		}
	}
	return false
}

func containsLabel(path []cfg.Label, l cfg.Label) bool {
	for _, p := range path {
		if p == l {
			return true
		}
	}
	return false
}

func updateMax(res *Result, fr *frame.State) {
	if fr.MaxStack > res.MaxStack {
		res.MaxStack = fr.MaxStack
	}
	if fr.MaxLocals > res.MaxLocals {
		res.MaxLocals = fr.MaxLocals
	}
}

// edgeFrame clones exit (the frame at the end of the block that owns
// e) and applies e's edge-specific effect.
func edgeFrame(env *vtype.Environment, exit *frame.State, e *cfg.Edge) *frame.State {
	nf := exit.Clone()
	if e.Kind == cfg.Exception {
		nf.ClearStack()
		name := e.Throwable
		if name == "" {
			name = env.ThrowableClass
		}
		// No classloader is available to check name is actually
		// assignable to Throwable (vtype.CheckMerge's documented
		// limitation); the declared catch type is trusted as-is.
		nf.PushType(env.Reference(name), frame.Source{Kind: frame.SourceEdge}, nil)
	}
	return nf
}

// indexInstrBlocks maps every instruction's offset to the label of the
// block that contains it, used to find a ret's originating jsr block
// from the returnAddress entry's source offset.
func indexInstrBlocks(g *cfg.Graph) map[int32]cfg.Label {
	out := make(map[int32]cfg.Label)
	for _, b := range g.Blocks() {
		for _, in := range b.Instrs {
			out[in.Offset] = b.Label
		}
	}
	return out
}

// resolveRet binds b's opaque ret edge to the block the matching jsr's
// fallthrough continues into (spec.md §4.3 "resolve RetEdge opacity
// lazily"). Any failure along the way degrades to leaving the ret
// edge unresolved (traceBlock then treats it as a leaf) and reports an
// INVALID_BLOCK diagnostic rather than aborting the rest of the trace.
func resolveRet(res *Result, g *cfg.Graph, b *cfg.Block, term *insn.Instr, fr *frame.State, instrBlock map[int32]cfg.Label) {
	var retEdge *cfg.Edge
	for _, oe := range g.Out(b.Label) {
		if oe.Kind == cfg.Ret {
			retEdge = oe
			break
		}
	}
	if retEdge == nil || !retEdge.Opaque() {
		return
	}

	e, err := fr.Get(term.Local)
	if err != nil {
		res.Errors.Add(verify.InvalidBlock, verify.Block(int32(b.Label)), "ret reads unset local %d: %v", term.Local, err)
		return
	}
	if e.Type.Kind != vtype.ReturnAddress {
		res.Errors.Add(verify.InvalidBlock, verify.Block(int32(b.Label)), "ret at local %d holds a %s, not a returnAddress", term.Local, e.Type)
		return
	}

	jsrBlock, ok := instrBlock[e.Source.Offset]
	if !ok {
		res.Errors.Add(verify.InvalidBlock, verify.Block(int32(b.Label)), "ret's returnAddress names no jsr instruction in this method")
		return
	}

	var fallthroughTarget cfg.Label
	found := false
	for _, oe := range g.Out(jsrBlock) {
		if oe.Kind == cfg.JsrFallthrough {
			fallthroughTarget = oe.To
			found = true
			break
		}
	}
	if !found {
		res.Errors.Add(verify.InvalidBlock, verify.Block(int32(jsrBlock)), "jsr at block %d has no matching jsr-fallthrough edge for its ret to resolve to", jsrBlock)
		return
	}

	g.Resolve(retEdge, fallthroughTarget)
	res.Subroutines[b.Label] = fallthroughTarget
}

// accessSets splits a block's slice of the access log into the locals
// read before any write to them within the block, and the locals
// written anywhere in the block (spec.md §4.3 liveness inputs).
func accessSets(accesses []frame.Access) (readBeforeWrite, written map[int]bool) {
	readBeforeWrite = make(map[int]bool)
	written = make(map[int]bool)
	for _, a := range accesses {
		if a.Read {
			if !written[a.Index] {
				readBeforeWrite[a.Index] = true
			}
			continue
		}
		written[a.Index] = true
	}
	return readBeforeWrite, written
}

func mapErrKind(err error) verify.Kind {
	switch err.(type) {
	case frame.StackUnderflow:
		return verify.StackUnderflow
	case frame.UnknownLocal:
		return verify.UnknownLocal
	case frame.CategoryMismatch:
		return verify.InvalidTypeCategory
	default:
		return verify.InvalidType
	}
}
