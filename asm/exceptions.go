package asm

import (
	"sort"

	"github.com/go-classfile/jcfg/cfg"
	"github.com/go-classfile/jcfg/classfile"
	"github.com/go-classfile/jcfg/cpool"
	"github.com/go-classfile/jcfg/insn"
)

// BuildExceptionTable synthesizes the exception table from every
// Exception-kind edge in g, sorted by Edge.Priority so overlapping
// handlers are tried in the order the source declared them
// (spec.md §4.5 phase 3). Call only after AssignOffsets has reached a
// fixed point.
func BuildExceptionTable(g *cfg.Graph, lay *Layout, pool *cpool.Pool) []classfile.ExceptionTableEntry {
	type row struct {
		start, end, handler uint16
		catchType           int
		priority            int
	}
	var rows []row

	for i, u := range lay.Units {
		for _, e := range g.Out(u.Block) {
			if e.Kind != cfg.Exception {
				continue
			}
			handlerOff := lay.offsetOf(e.To)
			if handlerOff < 0 {
				continue
			}

			end := u.Offset + unitLength(u)
			if e.InlineCoverage && i+1 < len(lay.Units) {
				next := lay.Units[i+1]
				end = next.Offset + unitLength(next)
			}

			catchType := 0
			if e.Throwable != "" {
				catchType = pool.Add(cpool.Class{Name: e.Throwable})
			}

			rows = append(rows, row{
				start:     uint16(u.Offset),
				end:       uint16(end),
				handler:   uint16(handlerOff),
				catchType: catchType,
				priority:  e.Priority,
			})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].priority < rows[j].priority })

	out := make([]classfile.ExceptionTableEntry, len(rows))
	for i, r := range rows {
		out[i] = classfile.ExceptionTableEntry{
			StartPC: r.start, EndPC: r.end, HandlerPC: r.handler, CatchType: r.catchType,
		}
	}
	return out
}

func unitLength(u *Unit) int32 {
	var n int32
	for _, in := range u.Instrs {
		n += insn.Len(in)
	}
	return n
}
