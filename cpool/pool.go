package cpool

import (
	"bytes"
	"io"

	"github.com/go-classfile/jcfg/codec"
)

// Pool is the class-file constant pool: a 1-based, index-addressable
// table. Index 0 is reserved ("none"). A wide constant (Long, Double)
// at index k reserves k+1, which holds nil in slots.
type Pool struct {
	slots []Constant       // slots[0] is always nil
	index map[Constant]int // dedup: constant -> first index it was added at
}

// New returns an empty pool with slot 0 reserved.
func New() *Pool {
	return &Pool{
		slots: []Constant{nil},
		index: make(map[Constant]int),
	}
}

// Len returns one past the highest occupied index.
func (p *Pool) Len() int { return len(p.slots) }

// Get returns the constant at i, or an Index(i) placeholder if the
// slot is empty or out of range. Callers that want a hard failure on
// a missing slot should compare the result's Tag() to 0.
func (p *Pool) Get(i int) Constant {
	if i <= 0 || i >= len(p.slots) || p.slots[i] == nil {
		return Index(i)
	}
	return p.slots[i]
}

// Add deduplicates c by structural equality, returning the index of an
// existing equal constant or appending a new one. Adding an Index is a
// no-op that returns its own value. Nested references (a Class's name,
// a ref's NameAndType, ...) are stored as resolved Go values rather
// than indices, so Add does not itself need to chase them; Write does,
// when it serializes the pool back to bytes.
func (p *Pool) Add(c Constant) int {
	if idx, ok := c.(Index); ok {
		return int(idx)
	}
	if i, ok := p.index[c]; ok {
		return i
	}
	i := len(p.slots)
	p.slots = append(p.slots, c)
	if c.Tag().Wide() {
		p.slots = append(p.slots, nil)
	}
	p.index[c] = i
	return i
}

// AddString is equivalent to Add(UTF8(s)).
func (p *Pool) AddString(s string) int { return p.Add(UTF8(s)) }

// Utf8 looks up the UTF8 constant at index i, returning "" if the slot
// is not a UTF8 entry.
func (p *Pool) Utf8(i int) string {
	if s, ok := p.Get(i).(UTF8); ok {
		return string(s)
	}
	return ""
}

// resolving is the per-Read() visited-stack used to detect cyclic
// constant references (spec.md §4.1, §9).
type resolving struct {
	onStack map[int]bool
	done    map[int]Constant
	errs    []error
}

type pending struct {
	tag Tag
	// raw index operands, meaning depends on tag
	a, b uint16
	// literal payload for self-contained tags
	lit Constant
}

// Read parses a constant pool from r given the owning class file's
// major version, using the two-phase collect-then-resolve protocol of
// spec.md §4.1: a first pass captures raw index references per slot,
// and a second pass resolves them through deref, short-circuiting
// cycles with an Index placeholder and a RecursiveConstant error. Non-fatal resolution
// errors (recursive references) are returned alongside the pool
// rather than aborting the read.
func Read(version uint16, r io.Reader) (*Pool, []error, error) {
	count, err := codec.ReadU16(r)
	if err != nil {
		return nil, nil, err
	}

	p := New()
	pend := make(map[int]pending)

	i := 1
	for i < int(count) {
		tagByte, err := codec.ReadU8(r)
		if err != nil {
			return nil, nil, err
		}
		tag := Tag(tagByte)

		minVer, ok := since[tag]
		if !ok {
			return nil, nil, UnknownTag(tagByte)
		}
		if version < minVer {
			return nil, nil, ConstantNotSupported{tag, minVer, version}
		}

		pe := pending{tag: tag}
		switch tag {
		case TagUTF8:
			n, err := codec.ReadU16(r)
			if err != nil {
				return nil, nil, err
			}
			raw, err := codec.ReadBytes(r, int(n))
			if err != nil {
				return nil, nil, err
			}
			pe.lit = UTF8(decodeModifiedUTF8(raw))
		case TagInteger:
			v, err := codec.ReadU32(r)
			if err != nil {
				return nil, nil, err
			}
			pe.lit = Integer(int32(v))
		case TagFloat:
			v, err := codec.ReadU32(r)
			if err != nil {
				return nil, nil, err
			}
			pe.lit = Float(float32frombits(v))
		case TagLong:
			v, err := codec.ReadU64(r)
			if err != nil {
				return nil, nil, err
			}
			pe.lit = Long(int64(v))
		case TagDouble:
			v, err := codec.ReadU64(r)
			if err != nil {
				return nil, nil, err
			}
			pe.lit = Double(float64frombits(v))
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			a, err := codec.ReadU16(r)
			if err != nil {
				return nil, nil, err
			}
			pe.a = a
		case TagFieldRef, TagMethodRef, TagInterfaceMethodRef, TagNameAndType, TagDynamic, TagInvokeDynamic:
			a, err := codec.ReadU16(r)
			if err != nil {
				return nil, nil, err
			}
			b, err := codec.ReadU16(r)
			if err != nil {
				return nil, nil, err
			}
			pe.a, pe.b = a, b
		case TagMethodHandle:
			kind, err := codec.ReadU8(r)
			if err != nil {
				return nil, nil, err
			}
			ref, err := codec.ReadU16(r)
			if err != nil {
				return nil, nil, err
			}
			pe.a, pe.b = uint16(kind), ref
		default:
			return nil, nil, UnknownTag(tagByte)
		}

		pend[i] = pe
		// Reserve the slot now so indices line up during resolution;
		// the final value is filled in below.
		p.slots = append(p.slots, nil)
		if tag.Wide() {
			p.slots = append(p.slots, nil)
			i += 2
		} else {
			i++
		}
	}

	res := &resolving{onStack: map[int]bool{}, done: map[int]Constant{}}
	for idx := range pend {
		c, err := resolve(idx, pend, res, version)
		if err != nil {
			res.errs = append(res.errs, err)
		}
		if idx < len(p.slots) {
			p.slots[idx] = c
		}
	}

	// Rebuild the dedup index over the resolved slots.
	for idx, c := range p.slots {
		if c == nil {
			continue
		}
		if _, ok := p.index[c]; !ok {
			p.index[c] = idx
		}
	}

	return p, res.errs, nil
}

func resolve(idx int, pend map[int]pending, res *resolving, version uint16) (Constant, error) {
	if c, ok := res.done[idx]; ok {
		return c, nil
	}
	if res.onStack[idx] {
		return Index(idx), RecursiveConstant{idx}
	}
	pe, ok := pend[idx]
	if !ok {
		return Index(idx), nil
	}
	if pe.lit != nil {
		res.done[idx] = pe.lit
		return pe.lit, nil
	}

	res.onStack[idx] = true
	defer delete(res.onStack, idx)

	derefUTF8 := func(i uint16) string {
		c, err := resolve(int(i), pend, res, version)
		if err != nil {
			res.errs = append(res.errs, err)
		}
		if s, ok := c.(UTF8); ok {
			return string(s)
		}
		return ""
	}
	derefNT := func(i uint16) NameAndType {
		c, err := resolve(int(i), pend, res, version)
		if err != nil {
			res.errs = append(res.errs, err)
		}
		if nt, ok := c.(NameAndType); ok {
			return nt
		}
		return NameAndType{}
	}
	derefClassName := func(i uint16) string {
		c, err := resolve(int(i), pend, res, version)
		if err != nil {
			res.errs = append(res.errs, err)
		}
		if cl, ok := c.(Class); ok {
			return cl.Name
		}
		return ""
	}

	var out Constant
	switch pe.tag {
	case TagClass:
		out = Class{Name: derefUTF8(pe.a)}
	case TagString:
		out = String{Value: derefUTF8(pe.a)}
	case TagMethodType:
		out = MethodType{Descriptor: derefUTF8(pe.a)}
	case TagModule:
		out = Module{Name: derefUTF8(pe.a)}
	case TagPackage:
		out = Package{Name: derefUTF8(pe.a)}
	case TagNameAndType:
		out = NameAndType{Name: derefUTF8(pe.a), Descriptor: derefUTF8(pe.b)}
	case TagFieldRef:
		out = FieldRef{Class: derefClassName(pe.a), NameAndType: derefNT(pe.b)}
	case TagMethodRef:
		out = MethodRef{Class: derefClassName(pe.a), NameAndType: derefNT(pe.b)}
	case TagInterfaceMethodRef:
		out = InterfaceMethodRef{Class: derefClassName(pe.a), NameAndType: derefNT(pe.b)}
	case TagDynamic:
		out = Dynamic{BSMIndex: pe.a, NameAndType: derefNT(pe.b)}
	case TagInvokeDynamic:
		out = InvokeDynamic{BSMIndex: pe.a, NameAndType: derefNT(pe.b)}
	case TagMethodHandle:
		ref, err := resolve(int(pe.b), pend, res, version)
		if err != nil {
			res.errs = append(res.errs, err)
		}
		out = MethodHandle{Kind: RefKind(pe.a), Reference: ref}
	default:
		out = Index(idx)
	}

	res.done[idx] = out
	return out, nil
}

// writer materializes the transitive closure of nested constants (a
// Class's name, a ref's class and NameAndType, ...) into index
// positions, extending a snapshot of the pool's slots without
// mutating the source Pool. This keeps Write safe to call against a
// Pool shared read-only across a parallel trace pass (spec.md §5),
// with any new constants it needs serialized through this local
// writer instead.
type writer struct {
	slots []Constant
	index map[Constant]int
}

func newWriter(p *Pool) *writer {
	w := &writer{
		slots: append([]Constant(nil), p.slots...),
		index: make(map[Constant]int, len(p.index)),
	}
	for i, c := range w.slots {
		if c == nil {
			continue
		}
		if _, ok := w.index[c]; !ok {
			w.index[c] = i
		}
	}
	return w
}

func (w *writer) indexOf(c Constant) uint16 {
	if idx, ok := c.(Index); ok {
		return uint16(idx)
	}
	if i, ok := w.index[c]; ok {
		return uint16(i)
	}
	i := len(w.slots)
	w.slots = append(w.slots, c)
	if c.Tag().Wide() {
		w.slots = append(w.slots, nil)
	}
	w.index[c] = i
	return uint16(i)
}

func (w *writer) utf8(s string) uint16    { return w.indexOf(UTF8(s)) }
func (w *writer) class(name string) uint16 { return w.indexOf(Class{Name: name}) }
func (w *writer) nameAndType(nt NameAndType) uint16 { return w.indexOf(nt) }

// Write emits the pool in class-file form: a u2 count followed by each
// occupied slot's tag and payload, walked in index order with wide
// slots advancing by 2, then backpatches the count.
func (p *Pool) Write(w io.Writer) error {
	wr := newWriter(p)
	buf := &bytes.Buffer{}

	for i := 1; i < len(wr.slots); i++ {
		c := wr.slots[i]
		if c == nil {
			continue
		}
		if err := writeConstant(buf, wr, c); err != nil {
			return err
		}
		if c.Tag().Wide() {
			i++
		}
	}

	count := uint16(len(wr.slots))
	if err := codec.WriteU16(w, count); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func writeConstant(buf *bytes.Buffer, wr *writer, c Constant) error {
	if err := codec.WriteU8(buf, uint8(c.Tag())); err != nil {
		return err
	}
	switch v := c.(type) {
	case UTF8:
		raw := encodeModifiedUTF8(string(v))
		if err := codec.WriteU16(buf, uint16(len(raw))); err != nil {
			return err
		}
		_, err := buf.Write(raw)
		return err
	case Integer:
		return codec.WriteU32(buf, uint32(int32(v)))
	case Float:
		return codec.WriteU32(buf, float32bits(float32(v)))
	case Long:
		return codec.WriteU64(buf, uint64(int64(v)))
	case Double:
		return codec.WriteU64(buf, float64bits(float64(v)))
	case Class:
		return codec.WriteU16(buf, wr.utf8(v.Name))
	case String:
		return codec.WriteU16(buf, wr.utf8(v.Value))
	case MethodType:
		return codec.WriteU16(buf, wr.utf8(v.Descriptor))
	case Module:
		return codec.WriteU16(buf, wr.utf8(v.Name))
	case Package:
		return codec.WriteU16(buf, wr.utf8(v.Name))
	case NameAndType:
		if err := codec.WriteU16(buf, wr.utf8(v.Name)); err != nil {
			return err
		}
		return codec.WriteU16(buf, wr.utf8(v.Descriptor))
	case FieldRef:
		if err := codec.WriteU16(buf, wr.class(v.Class)); err != nil {
			return err
		}
		return codec.WriteU16(buf, wr.nameAndType(v.NameAndType))
	case MethodRef:
		if err := codec.WriteU16(buf, wr.class(v.Class)); err != nil {
			return err
		}
		return codec.WriteU16(buf, wr.nameAndType(v.NameAndType))
	case InterfaceMethodRef:
		if err := codec.WriteU16(buf, wr.class(v.Class)); err != nil {
			return err
		}
		return codec.WriteU16(buf, wr.nameAndType(v.NameAndType))
	case Dynamic:
		if err := codec.WriteU16(buf, v.BSMIndex); err != nil {
			return err
		}
		return codec.WriteU16(buf, wr.nameAndType(v.NameAndType))
	case InvokeDynamic:
		if err := codec.WriteU16(buf, v.BSMIndex); err != nil {
			return err
		}
		return codec.WriteU16(buf, wr.nameAndType(v.NameAndType))
	case MethodHandle:
		if err := codec.WriteU8(buf, uint8(v.Kind)); err != nil {
			return err
		}
		return codec.WriteU16(buf, wr.indexOf(v.Reference))
	}
	return nil
}
