package classfile

import (
	"bytes"

	"github.com/go-classfile/jcfg/codec"
	"github.com/go-classfile/jcfg/cpool"
)

// ExceptionTableEntry is one row of a Code attribute's exception
// table: the protected range [StartPC, EndPC), the handler entry
// point, and the caught type's constant-pool index (0 means "any",
// i.e. a finally block).
type ExceptionTableEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType int
}

// Code is the decoded form of a Code attribute (JVMS §4.7.3).
type Code struct {
	MaxStack  uint16
	MaxLocals uint16
	Bytes     []byte
	Exceptions []ExceptionTableEntry
	Attributes []Attribute
}

// Code returns the decoded Code attribute of a method, or nil if m
// has no Code attribute (e.g. abstract or native methods).
func (m *Member) Code(pool *cpool.Pool) (*Code, error) {
	a := m.Attr(pool, "Code")
	if a == nil {
		return nil, nil
	}
	return DecodeCode(a.Info)
}

// StackMapTable returns the decoded StackMapTable attribute nested in
// a Code attribute, or nil if there isn't one (pre-J2SE-6 class files,
// or methods too simple to need one).
func (c *Code) StackMapTable(pool *cpool.Pool) ([]StackMapFrame, error) {
	a := findAttr(c.Attributes, pool, "StackMapTable")
	if a == nil {
		return nil, nil
	}
	return DecodeStackMapTable(a.Info)
}

// DecodeCode parses a Code attribute's raw Info bytes.
func DecodeCode(info []byte) (*Code, error) {
	r := bytes.NewReader(info)
	c := &Code{}
	var err error
	if c.MaxStack, err = codec.ReadU16(r); err != nil {
		return nil, err
	}
	if c.MaxLocals, err = codec.ReadU16(r); err != nil {
		return nil, err
	}
	length, err := codec.ReadU32(r)
	if err != nil {
		return nil, err
	}
	if c.Bytes, err = codec.ReadBytes(r, int(length)); err != nil {
		return nil, err
	}

	excCount, err := codec.ReadU16(r)
	if err != nil {
		return nil, err
	}
	for i := uint16(0); i < excCount; i++ {
		var e ExceptionTableEntry
		start, err := codec.ReadU16(r)
		if err != nil {
			return nil, err
		}
		end, err := codec.ReadU16(r)
		if err != nil {
			return nil, err
		}
		handler, err := codec.ReadU16(r)
		if err != nil {
			return nil, err
		}
		catch, err := codec.ReadU16(r)
		if err != nil {
			return nil, err
		}
		e.StartPC, e.EndPC, e.HandlerPC, e.CatchType = start, end, handler, int(catch)
		c.Exceptions = append(c.Exceptions, e)
	}

	if c.Attributes, err = readAttributes(r); err != nil {
		return nil, err
	}
	return c, nil
}

// Encode serializes c back into a Code attribute's Info bytes.
func (c *Code) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.WriteU16(&buf, c.MaxStack); err != nil {
		return nil, err
	}
	if err := codec.WriteU16(&buf, c.MaxLocals); err != nil {
		return nil, err
	}
	if err := codec.WriteU32(&buf, uint32(len(c.Bytes))); err != nil {
		return nil, err
	}
	if _, err := buf.Write(c.Bytes); err != nil {
		return nil, err
	}
	if err := codec.WriteU16(&buf, uint16(len(c.Exceptions))); err != nil {
		return nil, err
	}
	for _, e := range c.Exceptions {
		if err := codec.WriteU16(&buf, e.StartPC); err != nil {
			return nil, err
		}
		if err := codec.WriteU16(&buf, e.EndPC); err != nil {
			return nil, err
		}
		if err := codec.WriteU16(&buf, e.HandlerPC); err != nil {
			return nil, err
		}
		if err := codec.WriteU16(&buf, uint16(e.CatchType)); err != nil {
			return nil, err
		}
	}
	if err := writeAttributes(&buf, c.Attributes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
