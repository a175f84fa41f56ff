// Package cpool implements the JVM class-file constant pool: a
// 1-based, index-addressable table of tagged constants with
// forward/reverse deduplication and a two-phase (collect, then
// resolve) load protocol so that self- and cyclic references between
// slots can be handled without eager recursion. See spec.md §3 and
// §4.1.
package cpool

import "fmt"

// Tag identifies the wire-format variant of a constant pool entry
// (JVMS 4.4, Table 4.4-A).
type Tag uint8

const (
	TagUTF8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldRef           Tag = 9
	TagMethodRef          Tag = 10
	TagInterfaceMethodRef Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

// since records the class-file major version at which each tag was
// introduced, used to reject ConstantNotSupported.
var since = map[Tag]uint16{
	TagUTF8: 45, TagInteger: 45, TagFloat: 45, TagLong: 45, TagDouble: 45,
	TagClass: 45, TagString: 45, TagFieldRef: 45, TagMethodRef: 45,
	TagInterfaceMethodRef: 45, TagNameAndType: 45,
	TagMethodHandle: 51, TagMethodType: 51,
	TagDynamic: 55, TagInvokeDynamic: 51,
	TagModule: 53, TagPackage: 53,
}

// Wide reports whether a tag occupies two consecutive constant pool
// indices (Long and Double; JVMS 4.4.5).
func (t Tag) Wide() bool { return t == TagLong || t == TagDouble }

// Constant is the tagged-variant sum of every constant pool entry.
// Exactly one of the concrete types below implements it for any given
// slot.
type Constant interface {
	Tag() Tag
	String() string
	isConstant()
}

// Index is an inhabited placeholder standing in for a slot that could
// not be resolved (a dangling or recursive reference) or one an
// operator intentionally left invalid. Index values compare equal to
// each other structurally only when their indices match, so they never
// spuriously dedup against a real constant.
type Index int

func (Index) Tag() Tag          { return 0 }
func (i Index) String() string  { return fmt.Sprintf("#%d", int(i)) }
func (Index) isConstant()       {}

type UTF8 string

func (UTF8) Tag() Tag         { return TagUTF8 }
func (s UTF8) String() string { return string(s) }
func (UTF8) isConstant()      {}

type Integer int32

func (Integer) Tag() Tag         { return TagInteger }
func (i Integer) String() string { return fmt.Sprintf("%d", int32(i)) }
func (Integer) isConstant()      {}

type Float float32

func (Float) Tag() Tag         { return TagFloat }
func (f Float) String() string { return fmt.Sprintf("%g", float32(f)) }
func (Float) isConstant()      {}

type Long int64

func (Long) Tag() Tag         { return TagLong }
func (l Long) String() string { return fmt.Sprintf("%d", int64(l)) }
func (Long) isConstant()      {}

type Double float64

func (Double) Tag() Tag         { return TagDouble }
func (d Double) String() string { return fmt.Sprintf("%g", float64(d)) }
func (Double) isConstant()      {}

// Class refers to a class or interface by its binary name (itself a
// UTF8 constant, given here already resolved).
type Class struct{ Name string }

func (Class) Tag() Tag         { return TagClass }
func (c Class) String() string { return "class " + c.Name }
func (Class) isConstant()      {}

type String struct{ Value string }

func (String) Tag() Tag         { return TagString }
func (s String) String() string { return fmt.Sprintf("string %q", s.Value) }
func (String) isConstant()      {}

// NameAndType pairs a member name with its field/method descriptor.
type NameAndType struct {
	Name       string
	Descriptor string
}

func (NameAndType) Tag() Tag { return TagNameAndType }
func (n NameAndType) String() string {
	return fmt.Sprintf("%s:%s", n.Name, n.Descriptor)
}
func (NameAndType) isConstant() {}

type FieldRef struct {
	Class       string
	NameAndType NameAndType
}

func (FieldRef) Tag() Tag { return TagFieldRef }
func (r FieldRef) String() string {
	return fmt.Sprintf("field %s.%s", r.Class, r.NameAndType)
}
func (FieldRef) isConstant() {}

type MethodRef struct {
	Class       string
	NameAndType NameAndType
}

func (MethodRef) Tag() Tag { return TagMethodRef }
func (r MethodRef) String() string {
	return fmt.Sprintf("method %s.%s", r.Class, r.NameAndType)
}
func (MethodRef) isConstant() {}

type InterfaceMethodRef struct {
	Class       string
	NameAndType NameAndType
}

func (InterfaceMethodRef) Tag() Tag { return TagInterfaceMethodRef }
func (r InterfaceMethodRef) String() string {
	return fmt.Sprintf("interfacemethod %s.%s", r.Class, r.NameAndType)
}
func (InterfaceMethodRef) isConstant() {}

// RefKind is the handle kind of a MethodHandle constant (JVMS 4.4.8).
type RefKind uint8

const (
	RefGetField RefKind = iota + 1
	RefGetStatic
	RefPutField
	RefPutStatic
	RefInvokeVirtual
	RefInvokeStatic
	RefInvokeSpecial
	RefNewInvokeSpecial
	RefInvokeInterface
)

type MethodHandle struct {
	Kind      RefKind
	Reference Constant // FieldRef, MethodRef or InterfaceMethodRef
}

func (MethodHandle) Tag() Tag { return TagMethodHandle }
func (h MethodHandle) String() string {
	return fmt.Sprintf("methodhandle(%d) %s", h.Kind, h.Reference)
}
func (MethodHandle) isConstant() {}

type MethodType struct{ Descriptor string }

func (MethodType) Tag() Tag         { return TagMethodType }
func (t MethodType) String() string { return "methodtype " + t.Descriptor }
func (MethodType) isConstant()      {}

// Dynamic is a condy constant (JVMS 4.4.10): a constant produced by a
// bootstrap method referenced by index into the class's
// BootstrapMethods attribute.
type Dynamic struct {
	BSMIndex    uint16
	NameAndType NameAndType
}

func (Dynamic) Tag() Tag { return TagDynamic }
func (d Dynamic) String() string {
	return fmt.Sprintf("dynamic[bsm=%d] %s", d.BSMIndex, d.NameAndType)
}
func (Dynamic) isConstant() {}

type InvokeDynamic struct {
	BSMIndex    uint16
	NameAndType NameAndType
}

func (InvokeDynamic) Tag() Tag { return TagInvokeDynamic }
func (d InvokeDynamic) String() string {
	return fmt.Sprintf("invokedynamic[bsm=%d] %s", d.BSMIndex, d.NameAndType)
}
func (InvokeDynamic) isConstant() {}

type Module struct{ Name string }

func (Module) Tag() Tag         { return TagModule }
func (m Module) String() string { return "module " + m.Name }
func (Module) isConstant()      {}

type Package struct{ Name string }

func (Package) Tag() Tag         { return TagPackage }
func (p Package) String() string { return "package " + p.Name }
func (Package) isConstant()      {}
