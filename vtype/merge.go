package vtype

// CheckMerge reports whether b may flow into a slot expecting a, and
// if so returns the merged (possibly widened) type for that slot
// (spec.md §4.3/§4.4, check_merge/merge). It never panics; on an
// incompatible pair it returns (Top-typed value, false) so callers can
// substitute a cast/top entry and keep analysis going (spec.md §7).
//
// Full JVM assignability requires walking the real class hierarchy to
// find a common supertype, which needs a classpath — out of scope per
// spec.md §1 ("surrounding descriptor/signature parsers beyond what
// the CFG needs to carry names"). Reference merges here are therefore
// conservative: two different reference types that are not identical
// merge to env.Object() rather than to their true least common
// supertype. Two identical reference types merge to themselves
// without widening.
func CheckMerge(env *Environment, a, b Type) (Type, bool) {
	if a == b {
		return a, true
	}
	if a.Category() != b.Category() {
		return Type{Kind: Top}, false
	}

	switch {
	case a.Kind == Top || b.Kind == Top:
		return Type{Kind: Top}, false

	case a.Kind == ReturnAddress || b.Kind == ReturnAddress:
		// returnAddress values are discriminated by source and never
		// merge across distinct subroutine returns (spec.md §4.3).
		return Type{Kind: Top}, false

	case a.IsReference() && b.IsReference():
		return mergeReference(env, a, b), true

	default:
		return Type{Kind: Top}, false
	}
}

func mergeReference(env *Environment, a, b Type) Type {
	if a.Kind == Null {
		return b
	}
	if b.Kind == Null {
		return a
	}
	if a.IsArray() && b.IsArray() && a.Dim == b.Dim && a.ElemPrimitive == b.ElemPrimitive && a.ClassName == b.ClassName {
		return a
	}
	// Arrays of different shape, or any other reference mismatch,
	// merge to Object: every array type and every class/interface type
	// is assignable to java/lang/Object.
	return env.Object()
}

// Merge folds a sequence of types reached at a control-flow join into
// a single type, used when computing stack-map-frame entry types
// (spec.md §4.5 phase 4). An empty slice merges to Top.
func Merge(env *Environment, ts []Type) Type {
	if len(ts) == 0 {
		return Type{Kind: Top}
	}
	acc := ts[0]
	for _, t := range ts[1:] {
		merged, ok := CheckMerge(env, acc, t)
		if !ok {
			return Type{Kind: Top}
		}
		acc = merged
	}
	return acc
}
