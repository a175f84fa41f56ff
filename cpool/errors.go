package cpool

import "fmt"

// UnknownTag is reported when a constant pool slot carries a tag byte
// this reader does not recognize.
type UnknownTag uint8

func (e UnknownTag) Error() string {
	return fmt.Sprintf("cpool: unknown constant tag %d", uint8(e))
}

// ConstantNotSupported is reported when a slot's tag was introduced in
// a later class-file major version than the one being read.
type ConstantNotSupported struct {
	Tag     Tag
	Since   uint16
	Version uint16
}

func (e ConstantNotSupported) Error() string {
	return fmt.Sprintf("cpool: tag %d requires class version %d, file is version %d", e.Tag, e.Since, e.Version)
}

// RecursiveConstant is reported when resolving a slot requires
// resolving the same slot again (a reference cycle). The lookup that
// re-enters the slot is not followed and yields an Index placeholder.
type RecursiveConstant struct {
	Index int
}

func (e RecursiveConstant) Error() string {
	return fmt.Sprintf("cpool: constant at index %d participates in a reference cycle", e.Index)
}
