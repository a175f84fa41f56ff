package asm

import (
	"sort"

	"github.com/go-classfile/jcfg/cfg"
	"github.com/go-classfile/jcfg/classfile"
	"github.com/go-classfile/jcfg/cpool"
	"github.com/go-classfile/jcfg/trace"
	"github.com/go-classfile/jcfg/verify"
	"github.com/go-classfile/jcfg/vtype"
)

// FrameSite is one block boundary that needs an explicit entry in the
// StackMapTable: its physical offset and the merged verification
// types for its locals (index-addressed, wide types already collapsed
// to a single JVMS slot) and its stack (spec.md §4.5 phase 4).
type FrameSite struct {
	Offset int32
	Locals []vtype.Type
	Stack  []vtype.Type
}

// ComputeFrames derives one FrameSite per block that needs one: every
// block the trace recorded at least one entry constraint for (merging
// across every recorded predecessor state), and every dead block kept
// in the layout (a synthetic single-Throwable frame). The entry
// block's implicit bootstrap frame is never emitted explicitly.
func ComputeFrames(lay *Layout, res *trace.Result, env *vtype.Environment, log *verify.Log) []*FrameSite {
	if len(lay.Units) == 0 {
		return nil
	}
	var sites []*FrameSite
	seen := map[cfg.Label]bool{}

	for _, u := range lay.Units {
		if u == lay.Units[0] || seen[u.Block] {
			seen[u.Block] = true
			continue
		}
		seen[u.Block] = true

		constraints := res.Constraints[u.Block]
		if len(constraints) == 0 {
			sites = append(sites, deadFrame(env, u.Offset, res.MaxLocals))
			continue
		}
		sites = append(sites, mergeFrame(env, log, u.Block, u.Offset, constraints))
	}

	sort.Slice(sites, func(i, j int) bool { return sites[i].Offset < sites[j].Offset })
	return sites
}

func deadFrame(env *vtype.Environment, offset int32, maxLocals int) *FrameSite {
	locals := make([]vtype.Type, maxLocals)
	for i := range locals {
		locals[i] = env.TopT()
	}
	return &FrameSite{
		Offset: offset,
		Locals: collapseWide(locals),
		Stack:  []vtype.Type{env.Throwable()},
	}
}

func mergeFrame(env *vtype.Environment, log *verify.Log, block cfg.Label, offset int32, constraints []*trace.Constraint) *FrameSite {
	stackLen := len(constraints[0].Entry.Stack)
	stack := make([]vtype.Type, stackLen)
	for i := 0; i < stackLen; i++ {
		var ts []vtype.Type
		for _, c := range constraints {
			if i >= len(c.Entry.Stack) {
				log.Add(verify.InvalidStackMerge, verify.Block(int32(block)),
					"predecessors disagree on stack height at slot %d", i)
				continue
			}
			ts = append(ts, c.Entry.Stack[i])
		}
		stack[i] = vtype.Merge(env, ts)
	}

	localSet := map[int]bool{}
	for _, c := range constraints {
		for _, l := range c.Entry.Locals {
			localSet[l.Index] = true
		}
	}
	maxIdx := -1
	for i := range localSet {
		if i > maxIdx {
			maxIdx = i
		}
	}

	locals := make([]vtype.Type, maxIdx+1)
	for i := range locals {
		locals[i] = env.TopT()
	}
	for idx := 0; idx <= maxIdx; idx++ {
		if !localSet[idx] {
			continue
		}
		var ts []vtype.Type
		for _, c := range constraints {
			t := env.TopT()
			for _, l := range c.Entry.Locals {
				if l.Index == idx {
					t = l.Type
					break
				}
			}
			ts = append(ts, t)
		}
		locals[idx] = vtype.Merge(env, ts)
	}

	return &FrameSite{Offset: offset, Locals: collapseWide(locals), Stack: stack}
}

// collapseWide turns an index-addressed locals array (one slot per
// local variable index, including the implicit continuation slot
// after a category-2 value) into the sequence a StackMapFrame actually
// encodes, where a long/double contributes exactly one entry.
func collapseWide(locals []vtype.Type) []vtype.Type {
	var out []vtype.Type
	for i := 0; i < len(locals); i++ {
		t := locals[i]
		out = append(out, t)
		if t.Category() == 2 {
			i++
		}
	}
	return out
}

func trimTop(locals []vtype.Type) []vtype.Type {
	n := len(locals)
	for n > 0 && locals[n-1].Kind == vtype.Top {
		n--
	}
	return locals[:n]
}

func sameLocals(a, b []vtype.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isAppend(prev, cur []vtype.Type) bool {
	if len(cur) <= len(prev) || len(cur)-len(prev) > 3 {
		return false
	}
	return sameLocals(prev, cur[:len(prev)])
}

func isChop(prev, cur []vtype.Type) bool {
	if len(prev) <= len(cur) || len(prev)-len(cur) > 3 {
		return false
	}
	return sameLocals(cur, prev[:len(cur)])
}

// CompressFrames encodes sites as the compressed StackMapFrame kinds
// of JVMS §4.7.4, comparing each against the locals the previous
// frame (or, for the first, the method's bootstrap locals) left in
// effect (spec.md §4.5 phase 4 step 4).
func CompressFrames(env *vtype.Environment, pool *cpool.Pool, newOffsets map[int32]int32, seedLocals []vtype.Type, sites []*FrameSite) []classfile.StackMapFrame {
	out := make([]classfile.StackMapFrame, 0, len(sites))
	prevLocals := seedLocals
	prevOffset := int32(-1)

	for _, s := range sites {
		delta := s.Offset - prevOffset - 1
		locals := trimTop(s.Locals)

		switch {
		case len(s.Stack) == 0 && sameLocals(prevLocals, locals):
			out = append(out, sameFrame(delta))

		case len(s.Stack) == 1 && sameLocals(prevLocals, locals):
			out = append(out, sameLocals1Frame(delta, toVerificationType(pool, newOffsets, s.Stack[0])))

		case len(s.Stack) == 0 && isAppend(prevLocals, locals):
			added := locals[len(prevLocals):]
			out = append(out, classfile.StackMapFrame{
				Kind: classfile.KindAppend, OffsetDelta: uint16(delta),
				Locals: toVerificationTypes(pool, newOffsets, added),
			})

		case len(s.Stack) == 0 && isChop(prevLocals, locals):
			out = append(out, classfile.StackMapFrame{
				Kind: classfile.KindChop, OffsetDelta: uint16(delta),
				ChopCount: len(prevLocals) - len(locals),
			})

		default:
			out = append(out, classfile.StackMapFrame{
				Kind: classfile.KindFull, OffsetDelta: uint16(delta),
				Locals: toVerificationTypes(pool, newOffsets, locals),
				Stack:  toVerificationTypes(pool, newOffsets, s.Stack),
			})
		}

		prevLocals = locals
		prevOffset = s.Offset
	}
	return out
}

func sameFrame(delta int32) classfile.StackMapFrame {
	if delta <= 63 {
		return classfile.StackMapFrame{Kind: classfile.KindSame, OffsetDelta: uint16(delta)}
	}
	return classfile.StackMapFrame{Kind: classfile.KindSameExtended, OffsetDelta: uint16(delta)}
}

func sameLocals1Frame(delta int32, vt classfile.VerificationType) classfile.StackMapFrame {
	if delta <= 63 {
		return classfile.StackMapFrame{Kind: classfile.KindSameLocals1Stack, OffsetDelta: uint16(delta), Stack: []classfile.VerificationType{vt}}
	}
	return classfile.StackMapFrame{Kind: classfile.KindSameLocals1StackExtended, OffsetDelta: uint16(delta), Stack: []classfile.VerificationType{vt}}
}

func toVerificationTypes(pool *cpool.Pool, newOffsets map[int32]int32, ts []vtype.Type) []classfile.VerificationType {
	out := make([]classfile.VerificationType, len(ts))
	for i, t := range ts {
		out[i] = toVerificationType(pool, newOffsets, t)
	}
	return out
}

func toVerificationType(pool *cpool.Pool, newOffsets map[int32]int32, t vtype.Type) classfile.VerificationType {
	switch t.Kind {
	case vtype.Top:
		return classfile.VerificationType{Tag: classfile.VTTop}
	case vtype.Int:
		return classfile.VerificationType{Tag: classfile.VTInteger}
	case vtype.Float:
		return classfile.VerificationType{Tag: classfile.VTFloat}
	case vtype.Long:
		return classfile.VerificationType{Tag: classfile.VTLong}
	case vtype.Double:
		return classfile.VerificationType{Tag: classfile.VTDouble}
	case vtype.Null:
		return classfile.VerificationType{Tag: classfile.VTNull}
	case vtype.UninitializedThis:
		return classfile.VerificationType{Tag: classfile.VTUninitializedThis}
	case vtype.Uninitialized:
		off := t.Offset
		if final, ok := newOffsets[off]; ok {
			off = final
		}
		return classfile.VerificationType{Tag: classfile.VTUninitialized, Offset: uint16(off)}
	case vtype.ReturnAddress:
		// Only reachable if a live jsr slipped past the precondition
		// that frames are computed only when none remain; degrade to
		// Top rather than emit a malformed class file.
		return classfile.VerificationType{Tag: classfile.VTTop}
	default: // Reference, including arrays
		return classfile.VerificationType{Tag: classfile.VTObject, CPIndex: uint16(pool.Add(cpool.Class{Name: classDescriptor(t)}))}
	}
}

func classDescriptor(t vtype.Type) string {
	if !t.IsArray() {
		return t.ClassName
	}
	prefix := ""
	for i := uint8(0); i < t.Dim; i++ {
		prefix += "["
	}
	if t.ClassName != "" {
		return prefix + "L" + t.ClassName + ";"
	}
	return prefix + primitiveDescriptor(t.ElemPrimitive)
}

func primitiveDescriptor(k vtype.Kind) string {
	switch k {
	case vtype.Long:
		return "J"
	case vtype.Float:
		return "F"
	case vtype.Double:
		return "D"
	default:
		return "I"
	}
}
