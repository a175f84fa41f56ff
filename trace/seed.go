package trace

import (
	"github.com/go-classfile/jcfg/frame"
	"github.com/go-classfile/jcfg/vtype"
)

// Method describes the entry-state inputs Seed needs from a method's
// declaration: whether it is static (no receiver) or a constructor
// (receiver starts uninitializedThis), the class that declares it, and
// its parameter types in descriptor order (the return type is not
// part of the frame).
type Method struct {
	OwnerClass  string
	Static      bool
	Constructor bool
	Params      []vtype.Type
}

// Seed builds the initial frame a method's trace begins from: the
// receiver (if any) at local 0, then each parameter laid out by
// verification category, with max_locals initialized to the total
// width and the local-access log cleared of the seeding writes
// themselves (spec.md §4.3 "seed the DFS with the initial frame").
func Seed(env *vtype.Environment, m Method) *frame.State {
	s := frame.NewState()
	idx := 0
	if !m.Static {
		var recv vtype.Type
		if m.Constructor {
			recv = env.UninitializedThis()
		} else {
			recv = env.Reference(m.OwnerClass)
		}
		e := s.NewEntry(recv, frame.Source{Kind: frame.SourceParam, Param: -1}, nil)
		s.Set(idx, e)
		idx += recv.Category()
	}
	for i, t := range m.Params {
		e := s.NewEntry(t, frame.Source{Kind: frame.SourceParam, Param: i}, nil)
		s.Set(idx, e)
		idx += t.Category()
	}
	s.Access = nil
	return s
}
