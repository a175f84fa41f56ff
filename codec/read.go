// Package codec provides fixed-width, big-endian primitive reads and
// writes shared by the constant pool, code attribute and assembler
// packages. The class-file format encodes u1/u2/u4/u8 quantities
// big-endian throughout (JVMS 4.4); this package is the single place
// that knows that byte order.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// IoShort is returned when a buffer is too short to hold the value a
// caller expects to read from it.
type IoShort struct {
	Expected int
}

func (e IoShort) Error() string {
	return fmt.Sprintf("classfile: buffer too short, expected at least %d more bytes", e.Expected)
}

func ReadU8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, IoShort{1}
	}
	return buf[0], nil
}

func ReadU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, IoShort{2}
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func ReadU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, IoShort{4}
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func ReadU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, IoShort{8}
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func ReadBytes(r io.Reader, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, IoShort{n}
	}
	return buf, nil
}

func WriteU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func WriteU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func WriteU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func WriteU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}
