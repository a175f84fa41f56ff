package vtype

// Environment owns the interned verification types for one analysis
// session. The original design used process-level type singletons
// (e.g. a global int_t); this replaces that with a value passed
// explicitly so that concurrent analyses of disjoint methods (spec.md
// §5) never contend on shared mutable global state. Primitive types
// need no real interning (Type is a small comparable value), but
// reference types are cached here so repeated lookups of the same
// class name return an identical value without re-allocating strings.
type Environment struct {
	ObjectClass    string
	ThrowableClass string
	StringClass    string

	refs map[string]Type
}

// NewEnvironment returns an Environment using the standard JVM root
// classes.
func NewEnvironment() *Environment {
	return &Environment{
		ObjectClass:    "java/lang/Object",
		ThrowableClass: "java/lang/Throwable",
		StringClass:    "java/lang/String",
		refs:           make(map[string]Type),
	}
}

func (e *Environment) TopT() Type    { return Type{Kind: Top} }
func (e *Environment) IntT() Type    { return Type{Kind: Int} }
func (e *Environment) LongT() Type   { return Type{Kind: Long} }
func (e *Environment) FloatT() Type  { return Type{Kind: Float} }
func (e *Environment) DoubleT() Type { return Type{Kind: Double} }
func (e *Environment) NullT() Type   { return Type{Kind: Null} }

func (e *Environment) ReturnAddress(returnOffset int32) Type {
	return Type{Kind: ReturnAddress, Offset: returnOffset}
}

func (e *Environment) Uninitialized(offset int32) Type {
	return Type{Kind: Uninitialized, Offset: offset}
}

func (e *Environment) UninitializedThis() Type {
	return Type{Kind: UninitializedThis}
}

// Reference returns (and interns) the class/interface type named
// name.
func (e *Environment) Reference(name string) Type {
	if t, ok := e.refs[name]; ok {
		return t
	}
	t := Type{Kind: Reference, ClassName: name}
	e.refs[name] = t
	return t
}

// Object returns java/lang/Object.
func (e *Environment) Object() Type { return e.Reference(e.ObjectClass) }

// Throwable returns java/lang/Throwable.
func (e *Environment) Throwable() Type { return e.Reference(e.ThrowableClass) }

// ArrayOf returns the array type with one more dimension than elem.
// Arrays of arrays collapse dimension rather than nesting (a
// Type[Dim=2,ClassName="Foo"] is Foo[][], not (Foo[])[]).
func (e *Environment) ArrayOf(elem Type) Type {
	switch {
	case elem.IsArray():
		return Type{Kind: Reference, Dim: elem.Dim + 1, ClassName: elem.ClassName, ElemPrimitive: elem.ElemPrimitive}
	case elem.Kind == Reference:
		return Type{Kind: Reference, Dim: 1, ClassName: elem.ClassName}
	default:
		return Type{Kind: Reference, Dim: 1, ElemPrimitive: elem.Kind}
	}
}
