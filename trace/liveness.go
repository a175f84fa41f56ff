package trace

import (
	"golang.org/x/exp/slices"

	"github.com/go-classfile/jcfg/cfg"
)

// Liveness holds, for every block, the locals live on entry and live
// on exit (spec.md §4.3: derived from the trace's recorded local
// accesses rather than a separate instruction walk).
type Liveness struct {
	LiveIn  map[cfg.Label]map[int]bool
	LiveOut map[cfg.Label]map[int]bool
}

// In reports whether local is live on entry to block.
func (l *Liveness) In(block cfg.Label, local int) bool { return l.LiveIn[block][local] }

// Out reports whether local is live on exit from block.
func (l *Liveness) Out(block cfg.Label, local int) bool { return l.LiveOut[block][local] }

// blockInfo unions the ReadBeforeWrite/Written sets across every
// Constraint recorded for a block: if two distinct entry states caused
// different locals to be touched, the union is the safe
// over-approximation for a backward dataflow fixpoint.
func blockInfo(res *Result) (read, written map[cfg.Label]map[int]bool) {
	read = make(map[cfg.Label]map[int]bool)
	written = make(map[cfg.Label]map[int]bool)
	for label, constraints := range res.Constraints {
		r := make(map[int]bool)
		w := make(map[int]bool)
		for _, c := range constraints {
			for idx := range c.ReadBeforeWrite {
				r[idx] = true
			}
			for idx := range c.Written {
				w[idx] = true
			}
		}
		read[label] = r
		written[label] = w
	}
	return read, written
}

// successors returns the labels control can actually flow to from
// block, skipping jsr-fallthrough (never taken forward) and any ret
// edge that never resolved.
func successors(g *cfg.Graph, block cfg.Label) []cfg.Label {
	var out []cfg.Label
	for _, e := range g.Out(block) {
		if e.Kind == cfg.JsrFallthrough {
			continue
		}
		if e.Kind == cfg.Ret && e.Opaque() {
			continue
		}
		out = append(out, e.To)
	}
	slices.Sort(out)
	return out
}

// computeLiveness runs the standard backward may-be-live dataflow
// fixpoint over g using the read/written sets the trace observed per
// block.
func computeLiveness(g *cfg.Graph, res *Result) *Liveness {
	read, written := blockInfo(res)

	labels := make([]cfg.Label, 0, len(res.Constraints))
	for l := range res.Constraints {
		labels = append(labels, l)
	}
	slices.Sort(labels)

	liveIn := make(map[cfg.Label]map[int]bool, len(labels))
	liveOut := make(map[cfg.Label]map[int]bool, len(labels))
	for _, l := range labels {
		liveIn[l] = make(map[int]bool)
		liveOut[l] = make(map[int]bool)
	}

	for changed := true; changed; {
		changed = false
		for _, l := range labels {
			out := make(map[int]bool)
			for _, succ := range successors(g, l) {
				if succ == cfg.ReturnLabel || succ == cfg.RethrowLabel {
					continue
				}
				for idx := range liveIn[succ] {
					out[idx] = true
				}
			}

			in := make(map[int]bool)
			for idx := range read[l] {
				in[idx] = true
			}
			for idx := range out {
				if !written[l][idx] {
					in[idx] = true
				}
			}

			if !setEqual(out, liveOut[l]) || !setEqual(in, liveIn[l]) {
				changed = true
			}
			liveOut[l] = out
			liveIn[l] = in
		}
	}

	return &Liveness{LiveIn: liveIn, LiveOut: liveOut}
}

func setEqual(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
