// Package mutf8 encodes and decodes the JVM's modified UTF-8 string
// format used by the Utf8 constant pool entry (JVMS 4.4.7).
//
// Modified UTF-8 differs from standard UTF-8 in two ways: U+0000 is
// encoded as the two-byte sequence C0 80 instead of a single zero byte,
// and supplementary-plane code points (> U+FFFF) are encoded as a
// surrogate pair, each half encoded as its own 3-byte UTF-8 run (CESU-8),
// rather than a single 4-byte UTF-8 run.
package mutf8

import "unicode/utf16"

// Decode converts modified UTF-8 bytes to a Go string. Byte sequences
// that do not form valid modified UTF-8 are skipped rather than
// rejected: obfuscated class files are known to carry malformed
// constant-pool strings, and a best-effort decode is more useful to a
// caller than a hard failure partway through the pool.
func Decode(b []byte) string {
	out := make([]rune, 0, len(b))
	i := 0
	for i < len(b) {
		c := b[i]
		switch {
		case c&0x80 == 0: // 0xxxxxxx
			if c == 0 {
				// A bare zero byte is not valid modified UTF-8; skip it.
				i++
				continue
			}
			out = append(out, rune(c))
			i++

		case c&0xE0 == 0xC0 && i+1 < len(b) && b[i+1]&0xC0 == 0x80: // 110xxxxx 10xxxxxx
			r := (rune(c&0x1F) << 6) | rune(b[i+1]&0x3F)
			out = append(out, r)
			i += 2

		case c&0xF0 == 0xE0 && i+2 < len(b) && b[i+1]&0xC0 == 0x80 && b[i+2]&0xC0 == 0x80: // 1110xxxx 10xxxxxx 10xxxxxx
			r := (rune(c&0x0F) << 12) | (rune(b[i+1]&0x3F) << 6) | rune(b[i+2]&0x3F)
			out = append(out, r)
			i += 3

		default:
			// Not a valid lead byte (or a truncated sequence): skip one
			// byte and resynchronize, so ill-formed input never makes
			// decoding fail.
			i++
		}
	}
	// Recombine any CESU-8-encoded surrogate pairs into single runes.
	return string(utf16.Decode(toUTF16(out)))
}

// toUTF16 reinterprets decoded code points as UTF-16 code units so that
// any surrogate halves produced by CESU-8 decoding are recombined by
// utf16.Decode.
func toUTF16(rs []rune) []uint16 {
	units := make([]uint16, 0, len(rs))
	for _, r := range rs {
		units = append(units, uint16(r))
	}
	return units
}

// Encode converts a Go string to modified UTF-8 bytes.
func Encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, u := range utf16.Encode([]rune(s)) {
		r := rune(u)
		switch {
		case r == 0:
			out = append(out, 0xC0, 0x80)
		case r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out,
				byte(0xC0|(r>>6)),
				byte(0x80|(r&0x3F)),
			)
		default: // includes lone surrogate halves from utf16.Encode
			out = append(out,
				byte(0xE0|(r>>12)),
				byte(0x80|((r>>6)&0x3F)),
				byte(0x80|(r&0x3F)),
			)
		}
	}
	return out
}
