// Package vtype implements the JVM verification-type lattice used by
// the frame calculus and trace engine: primitives, references, arrays
// and the pseudo-types (top, null, returnAddress, uninitialized,
// uninitializedThis) of spec.md §3/§4.4.
package vtype

import "fmt"

// Kind distinguishes the members of the verification-type lattice.
type Kind uint8

const (
	// Top is the "don't know / don't care" type: the second half of a
	// category-2 slot, and the result of merging two incompatible
	// types when analysis is asked to keep going rather than fail.
	Top Kind = iota
	Int
	Long
	Float
	Double
	Null
	// ReturnAddress is the pseudo-type pushed onto a local by jsr for
	// consumption by the matching ret; its Offset (the bytecode offset
	// following the jsr) distinguishes distinct subroutine return
	// addresses (spec.md §4.3, _same_entry).
	ReturnAddress
	// Uninitialized tags the result of `new` before the constructor
	// runs; Offset is the bytecode offset of the creating instruction.
	Uninitialized
	// UninitializedThis tags a constructor's receiver before the
	// superclass/this constructor call completes.
	UninitializedThis
	// Reference is a class, interface or array type. Dim > 0 marks an
	// array; ClassName then names the element type (or is empty, with
	// ElemPrimitive set, for primitive-element arrays).
	Reference
)

// Type is a single immutable verification type. It is comparable, so
// two Types are structurally equal exactly when ==.
type Type struct {
	Kind          Kind
	ClassName     string // binary class/interface name (Reference, or the class named by the creating new for Uninitialized), or "" for primitive arrays
	Dim           uint8  // array dimension; 0 for non-arrays
	ElemPrimitive Kind   // Int/Long/Float/Double when Dim>0 and ClassName==""
	Offset        int32  // creating-instruction offset for Uninitialized, or the offset following the jsr for ReturnAddress
}

// Category returns the verification-type category: 2 for long/double,
// 1 for everything else (spec.md §3).
func (t Type) Category() int {
	if t.Kind == Long || t.Kind == Double {
		return 2
	}
	return 1
}

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool { return t.Kind == Reference && t.Dim > 0 }

// IsReference reports whether t is a class, interface, array or null
// reference type, or one of the uninitialized pseudo-types.
func (t Type) IsReference() bool {
	return t.Kind == Reference || t.Kind == Null || t.Kind == Uninitialized || t.Kind == UninitializedThis
}

func (t Type) String() string {
	switch t.Kind {
	case Top:
		return "top"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Null:
		return "null"
	case ReturnAddress:
		return fmt.Sprintf("returnAddress(%d)", t.Offset)
	case Uninitialized:
		return fmt.Sprintf("uninitialized(%d)", t.Offset)
	case UninitializedThis:
		return "uninitializedThis"
	case Reference:
		if t.Dim > 0 {
			if t.ClassName != "" {
				return fmt.Sprintf("%s%s", arrayPrefix(t.Dim), t.ClassName)
			}
			return fmt.Sprintf("%s%s", arrayPrefix(t.Dim), Type{Kind: t.ElemPrimitive}.String())
		}
		return t.ClassName
	}
	return "<invalid>"
}

func arrayPrefix(dim uint8) string {
	s := ""
	for i := uint8(0); i < dim; i++ {
		s += "["
	}
	return s
}
