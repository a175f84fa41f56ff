package asm

import (
	"sort"

	"golang.org/x/exp/slices"

	"github.com/go-classfile/jcfg/cfg"
	"github.com/go-classfile/jcfg/insn"
	"github.com/go-classfile/jcfg/trace"
)

// Unit is one physical emission of a source block. A block is spliced
// into more than one Unit when subroutine inlining duplicates its
// body across call sites (spec.md §4.5 phase 1 step 5); every other
// block gets exactly one Unit.
type Unit struct {
	Block  cfg.Label
	Instrs []*insn.Instr
	Offset int32
}

// branchTarget records the source-level target(s) a unit's terminator
// resolves to, independent of the instruction's eventual physical
// offset. Layout builds this once from the graph's edges; fixup
// re-derives physical displacements from it on every pass.
type branchTarget struct {
	label  cfg.Label   // Jump, JsrJump
	def    cfg.Label   // Switch default arm
	hasDef bool
	cases  []cfg.Label // Switch arms, parallel to Instr.Offsets/Matches
}

type newSite struct {
	origOffset int32
	clone      *insn.Instr
}

// Layout is phase 1's output: the ordered physical units and the
// bookkeeping later phases need to resolve jumps and uninitialized
// types back to physical offsets.
type Layout struct {
	Units    []*Unit
	ByLabel  map[cfg.Label]*Unit // canonical addressable unit per label; absent for inline-only splice copies
	Targets  map[*insn.Instr]*branchTarget
	newSites []newSite
}

func (lay *Layout) offsetOf(l cfg.Label) int32 {
	if u, ok := lay.ByLabel[l]; ok {
		return u.Offset
	}
	return -1
}

// FinalizeNewOffsets returns, for every `new` instruction laid out,
// the mapping from its original (pre-layout) bytecode offset to its
// final physical offset. Call only after AssignOffsets has reached a
// fixed point (spec.md §4.5 phase 4 step 3: "replace uninitialized
// types with the numeric offset of their creating new").
func (lay *Layout) FinalizeNewOffsets() map[int32]int32 {
	out := make(map[int32]int32, len(lay.newSites))
	for _, s := range lay.newSites {
		out[s.origOffset] = s.clone.Offset
	}
	return out
}

// jsrSite is one jsr/jsr_w call site discovered in g.
type jsrSite struct {
	caller cfg.Label
	entry  cfg.Label // JsrJump target: the subroutine's first block
	cont   cfg.Label // JsrFallthrough target: where ret eventually returns
}

func collectJsrSites(g *cfg.Graph) []jsrSite {
	var sites []jsrSite
	for _, b := range g.Blocks() {
		term := b.Terminator()
		if term == nil || (term.Op != insn.Jsr && term.Op != insn.JsrW) {
			continue
		}
		entry, haveEntry := jumpKindTarget(g, b.Label, cfg.JsrJump)
		cont, haveCont := jumpKindTarget(g, b.Label, cfg.JsrFallthrough)
		if haveEntry && haveCont {
			sites = append(sites, jsrSite{caller: b.Label, entry: entry, cont: cont})
		}
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].caller < sites[j].caller })
	return sites
}

// spliceDecision records, per jsr call site, whether it was chosen for
// inline splicing (and so drops its jsr instruction) or kept as real
// bytecode because its subroutine's MaxInlineDepth was exhausted.
type spliceDecision struct {
	spliced    map[cfg.Label]bool // caller label -> spliced
	standalone map[cfg.Label]bool // subroutine entry label -> needs one shared real copy
}

func planSplices(sites []jsrSite, maxDepth int) spliceDecision {
	d := spliceDecision{spliced: map[cfg.Label]bool{}, standalone: map[cfg.Label]bool{}}
	counts := map[cfg.Label]int{}
	for _, s := range sites {
		if counts[s.entry] < maxDepth {
			counts[s.entry]++
			d.spliced[s.caller] = true
		} else {
			d.standalone[s.entry] = true
		}
	}
	return d
}

// subroutineBody returns the blocks reachable from entry without
// crossing a ret edge (the edge that leaves the subroutine back to
// whichever caller's continuation it resolved to), in ascending label
// order. jsr-fallthrough edges are never physically taken and are not
// followed.
func subroutineBody(g *cfg.Graph, entry cfg.Label) []cfg.Label {
	seen := map[cfg.Label]bool{}
	var order []cfg.Label
	var walk func(l cfg.Label)
	walk = func(l cfg.Label) {
		if seen[l] || l == cfg.ReturnLabel || l == cfg.RethrowLabel {
			return
		}
		seen[l] = true
		order = append(order, l)
		b := g.Block(l)
		if b == nil {
			return
		}
		if term := b.Terminator(); term != nil && term.Op == insn.Ret {
			return
		}
		for _, e := range g.Out(l) {
			if e.Kind == cfg.JsrFallthrough {
				continue
			}
			walk(e.To)
		}
	}
	walk(entry)
	slices.Sort(order)
	return order
}

func liveSet(g *cfg.Graph, res *trace.Result, removeDead bool) map[cfg.Label]bool {
	live := map[cfg.Label]bool{}
	for _, b := range g.Blocks() {
		if b.Label == cfg.ReturnLabel || b.Label == cfg.RethrowLabel {
			continue
		}
		if !removeDead || len(res.Constraints[b.Label]) > 0 {
			live[b.Label] = true
		}
	}
	return live
}

func sortedLabels(set map[cfg.Label]bool) []cfg.Label {
	out := make([]cfg.Label, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// BuildLayout runs phase 1 of assembly: it orders blocks (entry first,
// then ascending label), drops unreached blocks when
// Config.RemoveDeadBlocks is set, replaces a kept dead block's body
// with a synthetic athrow, and splices jsr/ret subroutine bodies
// inline at their call sites up to Config.MaxInlineDepth
// (spec.md §4.5 phase 1).
//
// Nested jsr/ret inside a spliced subroutine body is not itself
// spliced further; the inner jsr/ret pair is copied as real bytecode
// into the splice. This keeps the algorithm bounded without chasing
// arbitrarily deep subroutine nesting, at the cost of not eliminating
// jsr/ret entirely when subroutines call each other.
func BuildLayout(g *cfg.Graph, res *trace.Result, conf Config) *Layout {
	lay := &Layout{ByLabel: map[cfg.Label]*Unit{}, Targets: map[*insn.Instr]*branchTarget{}}

	live := liveSet(g, res, conf.RemoveDeadBlocks)
	order := sortedLabels(live)
	entryLabel := g.EntryBlock().Label

	var sites []jsrSite
	var plan spliceDecision
	if conf.InlineSubroutines {
		sites = collectJsrSites(g)
		plan = planSplices(sites, conf.MaxInlineDepth)
	}
	siteByCaller := make(map[cfg.Label]jsrSite, len(sites))
	for _, s := range sites {
		siteByCaller[s.caller] = s
	}

	subroutineMembers := map[cfg.Label]bool{}
	bodies := map[cfg.Label][]cfg.Label{}
	for _, s := range sites {
		if _, ok := bodies[s.entry]; !ok {
			body := subroutineBody(g, s.entry)
			bodies[s.entry] = body
			for _, l := range body {
				subroutineMembers[l] = true
			}
		}
	}

	dead := func(l cfg.Label) bool { return len(res.Constraints[l]) == 0 && l != entryLabel }

	newUnit := func(l cfg.Label, src []*insn.Instr) *Unit {
		var instrs []*insn.Instr
		if dead(l) {
			instrs = []*insn.Instr{{Op: insn.Athrow}}
		} else {
			instrs = cloneInstrsTracked(lay, src)
		}
		u := &Unit{Block: l, Instrs: instrs}
		lay.Units = append(lay.Units, u)
		return u
	}

	for _, l := range order {
		if subroutineMembers[l] {
			continue
		}
		b := g.Block(l)
		if site, ok := siteByCaller[l]; ok && plan.spliced[l] {
			u := newUnit(l, b.Instrs[:len(b.Instrs)-1]) // drop jsr
			lay.ByLabel[l] = u
			recordTargets(g, l, u, lay.Targets)
			for _, bl := range bodies[site.entry] {
				lay.Units = append(lay.Units, spliceClone(g, bl, lay, res))
			}
			continue
		}
		u := newUnit(l, b.Instrs)
		lay.ByLabel[l] = u
		recordTargets(g, l, u, lay.Targets)
	}

	var standaloneEntries []cfg.Label
	for e := range plan.standalone {
		standaloneEntries = append(standaloneEntries, e)
	}
	slices.Sort(standaloneEntries)
	for _, e := range standaloneEntries {
		for _, bl := range bodies[e] {
			if _, done := lay.ByLabel[bl]; done {
				continue
			}
			b := g.Block(bl)
			u := newUnit(bl, b.Instrs)
			lay.ByLabel[bl] = u
			recordTargets(g, bl, u, lay.Targets)
		}
	}

	return lay
}

// spliceClone emits one inline copy of a subroutine-body block,
// dropping its trailing ret if it is the block that ends the body.
// Dead subroutine-body blocks are not expected (a reachable jsr always
// makes its body reachable) so no athrow substitution is attempted
// here.
func spliceClone(g *cfg.Graph, l cfg.Label, lay *Layout, res *trace.Result) *Unit {
	b := g.Block(l)
	src := b.Instrs
	if term := b.Terminator(); term != nil && term.Op == insn.Ret {
		src = src[:len(src)-1]
	}
	u := &Unit{Block: l, Instrs: cloneInstrsTracked(lay, src)}
	recordTargets(g, l, u, lay.Targets)
	return u
}

func cloneInstr(in *insn.Instr) *insn.Instr {
	c := *in
	c.Offsets = append([]int32(nil), in.Offsets...)
	c.Matches = append([]int32(nil), in.Matches...)
	c.Jumps = append([]int32(nil), in.Jumps...)
	return &c
}

func cloneInstrs(src []*insn.Instr) []*insn.Instr {
	out := make([]*insn.Instr, len(src))
	for i, in := range src {
		out[i] = cloneInstr(in)
	}
	return out
}

// cloneInstrsTracked clones src and, for every `new` instruction in
// it, remembers the clone alongside its pre-layout offset so
// FinalizeNewOffsets can translate uninitialized(offset) types once
// final addresses are known.
func cloneInstrsTracked(lay *Layout, src []*insn.Instr) []*insn.Instr {
	out := cloneInstrs(src)
	for i, in := range src {
		if in.Op == insn.New {
			lay.newSites = append(lay.newSites, newSite{origOffset: in.Offset, clone: out[i]})
		}
	}
	return out
}

func jumpKindTarget(g *cfg.Graph, from cfg.Label, kind cfg.EdgeKind) (cfg.Label, bool) {
	for _, e := range g.Out(from) {
		if e.Kind == kind {
			return e.To, true
		}
	}
	return 0, false
}

func switchTarget(g *cfg.Graph, from cfg.Label, in *insn.Instr) *branchTarget {
	bt := &branchTarget{}
	for _, e := range g.Out(from) {
		if e.Kind == cfg.Switch && e.Value == nil {
			bt.def, bt.hasDef = e.To, true
		}
	}
	findCase := func(key int32) cfg.Label {
		for _, e := range g.Out(from) {
			if e.Kind == cfg.Switch && e.Value != nil && *e.Value == key {
				return e.To
			}
		}
		return cfg.ReturnLabel
	}
	switch in.Op {
	case insn.Tableswitch:
		bt.cases = make([]cfg.Label, len(in.Offsets))
		for i := range in.Offsets {
			bt.cases[i] = findCase(in.Low + int32(i))
		}
	case insn.Lookupswitch:
		bt.cases = make([]cfg.Label, len(in.Matches))
		for i, key := range in.Matches {
			bt.cases[i] = findCase(key)
		}
	}
	return bt
}

// recordTargets captures u's terminator's CFG-level target(s), if any,
// so fixup can resolve physical displacements without re-deriving them
// from stale relative offsets on every pass.
func recordTargets(g *cfg.Graph, l cfg.Label, u *Unit, targets map[*insn.Instr]*branchTarget) {
	if len(u.Instrs) == 0 {
		return
	}
	term := u.Instrs[len(u.Instrs)-1]
	switch {
	case term.Op == insn.Goto || term.Op == insn.GotoW:
		if to, ok := jumpKindTarget(g, l, cfg.Jump); ok {
			targets[term] = &branchTarget{label: to}
		}
	case term.Op == insn.Jsr || term.Op == insn.JsrW:
		if to, ok := jumpKindTarget(g, l, cfg.JsrJump); ok {
			targets[term] = &branchTarget{label: to}
		}
	case term.IsConditional():
		if to, ok := jumpKindTarget(g, l, cfg.Jump); ok {
			targets[term] = &branchTarget{label: to}
		}
	case term.IsSwitch():
		targets[term] = switchTarget(g, l, term)
	}
}
