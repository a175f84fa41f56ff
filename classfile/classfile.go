// Package classfile reads and writes the JVM class-file container
// format: the 8-byte magic/version header, the constant pool, access
// flags, this/super class, interfaces, fields, methods and
// attributes (spec.md §4.5 "Class-file reader/writer").
package classfile

import (
	"errors"
	"io"

	"github.com/go-classfile/jcfg/codec"
	"github.com/go-classfile/jcfg/cpool"
)

// ErrInvalidMagic is returned when a byte stream does not begin with
// the class-file magic number 0xCAFEBABE.
var ErrInvalidMagic = errors.New("classfile: invalid magic number")

const Magic uint32 = 0xCAFEBABE

// Member is a field_info or method_info structure: access flags, a
// name/descriptor pair (by constant-pool index) and its attributes.
type Member struct {
	AccessFlags     uint16
	NameIndex       int
	DescriptorIndex int
	Attributes      []Attribute
}

func (m *Member) Name(pool *cpool.Pool) string       { return pool.Utf8(m.NameIndex) }
func (m *Member) Descriptor(pool *cpool.Pool) string { return pool.Utf8(m.DescriptorIndex) }

// Attr returns the first attribute named name, or nil.
func (m *Member) Attr(pool *cpool.Pool, name string) *Attribute {
	return findAttr(m.Attributes, pool, name)
}

// ClassFile is the parsed contents of one .class file.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16

	ConstantPool *cpool.Pool

	AccessFlags uint16
	ThisClass   int
	SuperClass  int
	Interfaces  []int

	Fields  []Member
	Methods []Member

	Attributes []Attribute
}

func (cf *ClassFile) ThisClassName() string {
	return className(cf.ConstantPool, cf.ThisClass)
}

func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	return className(cf.ConstantPool, cf.SuperClass)
}

func className(pool *cpool.Pool, idx int) string {
	if c, ok := pool.Get(idx).(cpool.Class); ok {
		return c.Name
	}
	return ""
}

// ReadClass parses a complete class file from r. Parse errors from
// the constant pool are returned alongside a best-effort ClassFile so
// callers can inspect whatever did decode (spec.md §4.1 tolerant
// decode policy); a nil ClassFile return means the header or the
// constant pool could not be read at all.
func ReadClass(r io.Reader) (*ClassFile, []error, error) {
	magic, err := codec.ReadU32(r)
	if err != nil {
		return nil, nil, err
	}
	if magic != Magic {
		return nil, nil, ErrInvalidMagic
	}

	minor, err := codec.ReadU16(r)
	if err != nil {
		return nil, nil, err
	}
	major, err := codec.ReadU16(r)
	if err != nil {
		return nil, nil, err
	}

	pool, poolErrs, err := cpool.Read(uint16(major), r)
	if err != nil {
		return nil, poolErrs, err
	}

	cf := &ClassFile{MinorVersion: minor, MajorVersion: major, ConstantPool: pool}

	if cf.AccessFlags, err = codec.ReadU16(r); err != nil {
		return cf, poolErrs, err
	}
	thisClass, err := codec.ReadU16(r)
	if err != nil {
		return cf, poolErrs, err
	}
	cf.ThisClass = int(thisClass)
	superClass, err := codec.ReadU16(r)
	if err != nil {
		return cf, poolErrs, err
	}
	cf.SuperClass = int(superClass)

	ifaceCount, err := codec.ReadU16(r)
	if err != nil {
		return cf, poolErrs, err
	}
	for i := uint16(0); i < ifaceCount; i++ {
		idx, err := codec.ReadU16(r)
		if err != nil {
			return cf, poolErrs, err
		}
		cf.Interfaces = append(cf.Interfaces, int(idx))
	}

	if cf.Fields, err = readMembers(r); err != nil {
		return cf, poolErrs, err
	}
	if cf.Methods, err = readMembers(r); err != nil {
		return cf, poolErrs, err
	}
	if cf.Attributes, err = readAttributes(r); err != nil {
		return cf, poolErrs, err
	}

	return cf, poolErrs, nil
}

func readMembers(r io.Reader) ([]Member, error) {
	count, err := codec.ReadU16(r)
	if err != nil {
		return nil, err
	}
	out := make([]Member, 0, count)
	for i := uint16(0); i < count; i++ {
		var m Member
		flags, err := codec.ReadU16(r)
		if err != nil {
			return out, err
		}
		m.AccessFlags = flags
		name, err := codec.ReadU16(r)
		if err != nil {
			return out, err
		}
		m.NameIndex = int(name)
		desc, err := codec.ReadU16(r)
		if err != nil {
			return out, err
		}
		m.DescriptorIndex = int(desc)
		if m.Attributes, err = readAttributes(r); err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

// WriteClass serializes cf back to the class-file binary format.
func WriteClass(w io.Writer, cf *ClassFile) error {
	if err := codec.WriteU32(w, Magic); err != nil {
		return err
	}
	if err := codec.WriteU16(w, cf.MinorVersion); err != nil {
		return err
	}
	if err := codec.WriteU16(w, cf.MajorVersion); err != nil {
		return err
	}
	if err := cf.ConstantPool.Write(w); err != nil {
		return err
	}
	if err := codec.WriteU16(w, cf.AccessFlags); err != nil {
		return err
	}
	if err := codec.WriteU16(w, uint16(cf.ThisClass)); err != nil {
		return err
	}
	if err := codec.WriteU16(w, uint16(cf.SuperClass)); err != nil {
		return err
	}
	if err := codec.WriteU16(w, uint16(len(cf.Interfaces))); err != nil {
		return err
	}
	for _, idx := range cf.Interfaces {
		if err := codec.WriteU16(w, uint16(idx)); err != nil {
			return err
		}
	}
	if err := writeMembers(w, cf.Fields); err != nil {
		return err
	}
	if err := writeMembers(w, cf.Methods); err != nil {
		return err
	}
	return writeAttributes(w, cf.Attributes)
}

func writeMembers(w io.Writer, members []Member) error {
	if err := codec.WriteU16(w, uint16(len(members))); err != nil {
		return err
	}
	for _, m := range members {
		if err := codec.WriteU16(w, m.AccessFlags); err != nil {
			return err
		}
		if err := codec.WriteU16(w, uint16(m.NameIndex)); err != nil {
			return err
		}
		if err := codec.WriteU16(w, uint16(m.DescriptorIndex)); err != nil {
			return err
		}
		if err := writeAttributes(w, m.Attributes); err != nil {
			return err
		}
	}
	return nil
}
