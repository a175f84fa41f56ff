package classfile

import (
	"io"

	"github.com/go-classfile/jcfg/codec"
	"github.com/go-classfile/jcfg/cpool"
)

// Attribute is a generic attribute_info: a name (by constant-pool
// index) and its raw payload. Code and StackMapTable attributes parse
// their Info further via DecodeCode/DecodeStackMapTable.
type Attribute struct {
	NameIndex int
	Info      []byte
}

func (a Attribute) Name(pool *cpool.Pool) string { return pool.Utf8(a.NameIndex) }

func findAttr(attrs []Attribute, pool *cpool.Pool, name string) *Attribute {
	for i := range attrs {
		if attrs[i].Name(pool) == name {
			return &attrs[i]
		}
	}
	return nil
}

func readAttributes(r io.Reader) ([]Attribute, error) {
	count, err := codec.ReadU16(r)
	if err != nil {
		return nil, err
	}
	out := make([]Attribute, 0, count)
	for i := uint16(0); i < count; i++ {
		nameIdx, err := codec.ReadU16(r)
		if err != nil {
			return out, err
		}
		length, err := codec.ReadU32(r)
		if err != nil {
			return out, err
		}
		info, err := codec.ReadBytes(r, int(length))
		if err != nil {
			return out, err
		}
		out = append(out, Attribute{NameIndex: int(nameIdx), Info: info})
	}
	return out, nil
}

func writeAttributes(w io.Writer, attrs []Attribute) error {
	if err := codec.WriteU16(w, uint16(len(attrs))); err != nil {
		return err
	}
	for _, a := range attrs {
		if err := codec.WriteU16(w, uint16(a.NameIndex)); err != nil {
			return err
		}
		if err := codec.WriteU32(w, uint32(len(a.Info))); err != nil {
			return err
		}
		if _, err := w.Write(a.Info); err != nil {
			return err
		}
	}
	return nil
}
