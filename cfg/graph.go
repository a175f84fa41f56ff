package cfg

import "fmt"

// EdgeLimitExceeded is returned by AddEdge when a block already has
// the maximum number of edges of the given kind (spec.md §3 "limit").
type EdgeLimitExceeded struct {
	From  Label
	Kind  EdgeKind
	Limit int
}

func (e EdgeLimitExceeded) Error() string {
	return fmt.Sprintf("cfg: block %d already has %d %s edge(s)", e.From, e.Limit, e.Kind)
}

// UnresolvedOpaqueEdge is reported by Validate when a ret edge was
// never bound to a target block.
type UnresolvedOpaqueEdge struct {
	From Label
}

func (e UnresolvedOpaqueEdge) Error() string {
	return fmt.Sprintf("cfg: block %d has an unresolved ret edge", e.From)
}

// Graph is the arena of blocks and edges for one method body.
type Graph struct {
	blocks    map[Label]*Block
	out       map[Label][]*Edge
	in        map[Label][]*Edge
	opaque    map[*Edge]bool
	nextLabel Label
}

// NewGraph returns an empty Graph pre-populated with the
// ReturnBlock/RethrowBlock singletons.
func NewGraph() *Graph {
	g := &Graph{
		blocks: make(map[Label]*Block),
		out:    make(map[Label][]*Edge),
		in:     make(map[Label][]*Edge),
		opaque: make(map[*Edge]bool),
	}
	g.blocks[ReturnLabel] = &Block{Label: ReturnLabel}
	g.blocks[RethrowLabel] = &Block{Label: RethrowLabel}
	return g
}

// NewBlock allocates and registers a fresh block with the next free
// label.
func (g *Graph) NewBlock() *Block {
	b := &Block{Label: g.nextLabel}
	g.nextLabel++
	g.blocks[b.Label] = b
	return b
}

// Block returns the block with the given label, or nil.
func (g *Graph) Block(l Label) *Block { return g.blocks[l] }

// Blocks returns every block in the graph, in unspecified order.
func (g *Graph) Blocks() []*Block {
	out := make([]*Block, 0, len(g.blocks))
	for _, b := range g.blocks {
		out = append(out, b)
	}
	return out
}

// EntryBlock returns the block with the smallest non-negative label,
// which disassembly always assigns to the method's first instruction.
func (g *Graph) EntryBlock() *Block { return g.blocks[0] }

// AddEdge registers e, enforcing the per-kind multiplicity limit on
// e.From and rejecting any outgoing edge from the ReturnBlock or
// RethrowBlock singletons. A Ret edge is registered as opaque, whatever
// its To, until Resolve binds its target.
func (g *Graph) AddEdge(e *Edge) error {
	if e.From == ReturnLabel || e.From == RethrowLabel {
		return fmt.Errorf("cfg: %s has no outgoing edges", blockName(e.From))
	}
	if limit := e.Kind.limit(); limit > 0 && countKind(g.out[e.From], e.Kind) >= limit {
		return EdgeLimitExceeded{From: e.From, Kind: e.Kind, Limit: limit}
	}
	g.out[e.From] = append(g.out[e.From], e)
	if e.Opaque() {
		g.opaque[e] = true
		return nil
	}
	g.in[e.To] = append(g.in[e.To], e)
	return nil
}

// Opaque reports whether e's target has not yet been resolved. Ret
// edges are created opaque and resolved once subroutine analysis
// determines which block follows the matching jsr.
func (e *Edge) Opaque() bool { return e.Kind == Ret && !e.resolved }

func countKind(edges []*Edge, k EdgeKind) int {
	n := 0
	for _, e := range edges {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func blockName(l Label) string {
	switch l {
	case ReturnLabel:
		return "the return block"
	case RethrowLabel:
		return "the rethrow block"
	default:
		return fmt.Sprintf("block %d", l)
	}
}

// Resolve binds an opaque ret edge to its target block.
func (g *Graph) Resolve(e *Edge, to Label) {
	delete(g.opaque, e)
	e.resolved = true
	e.To = to
	g.in[to] = append(g.in[to], e)
}

// OpaqueEdges returns every edge still awaiting resolution.
func (g *Graph) OpaqueEdges() []*Edge {
	out := make([]*Edge, 0, len(g.opaque))
	for e := range g.opaque {
		out = append(out, e)
	}
	return out
}

// Out returns the outgoing edges of the block labeled l, in insertion
// order.
func (g *Graph) Out(l Label) []*Edge { return g.out[l] }

// In returns the incoming edges of the block labeled l, in insertion
// order.
func (g *Graph) In(l Label) []*Edge { return g.in[l] }

// Validate checks the structural invariants of spec.md §3: the
// singleton blocks have no outgoing edges (enforced by AddEdge,
// re-checked here for graphs built by hand in tests), the entry block
// has no incoming edges, and every ret edge has been resolved.
func (g *Graph) Validate() []error {
	var errs []error
	if len(g.out[ReturnLabel]) != 0 {
		errs = append(errs, fmt.Errorf("cfg: return block has outgoing edges"))
	}
	if len(g.out[RethrowLabel]) != 0 {
		errs = append(errs, fmt.Errorf("cfg: rethrow block has outgoing edges"))
	}
	if len(g.in[0]) != 0 {
		errs = append(errs, fmt.Errorf("cfg: entry block has incoming edges"))
	}
	for e := range g.opaque {
		errs = append(errs, UnresolvedOpaqueEdge{From: e.From})
	}
	return errs
}
