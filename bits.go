package stegano

import (
	"strings"
	"unicode/utf8"
)

// Bits are carried as one uint8 per bit holding 0 or 1, most significant bit
// of each byte first.

// BytesToBits expands b into 8 bits per byte, MSB first
func BytesToBits(b []byte) []uint8 {
	bits := make([]uint8, 0, len(b)*8)
	for _, c := range b {
		for i := 7; i >= 0; i-- {
			bits = append(bits, (c>>uint(i))&1)
		}
	}
	return bits
}

// BitsToBytes packs bits MSB first. A trailing group shorter than 8 bits is dropped.
func BitsToBytes(bits []uint8) []byte {
	out := make([]byte, 0, len(bits)/8)
	for i := 0; i+8 <= len(bits); i += 8 {
		var c byte
		for _, bit := range bits[i : i+8] {
			c = c<<1 | bit&1
		}
		out = append(out, c)
	}
	return out
}

// TextToBits returns the UTF-8 bytes of s as bits
func TextToBits(s string) []uint8 {
	return BytesToBits([]byte(s))
}

// AppendUint appends the low width bits of v, MSB first
func AppendUint(dst []uint8, v uint64, width int) []uint8 {
	for i := width - 1; i >= 0; i-- {
		dst = append(dst, uint8(v>>uint(i))&1)
	}
	return dst
}

// ReadUint interprets bits as an unsigned integer, MSB first
func ReadUint(bits []uint8) uint64 {
	var v uint64
	for _, bit := range bits {
		v = v<<1 | uint64(bit&1)
	}
	return v
}

// LengthPrefixed returns a width-bit header holding count followed by payload.
// ok is false when count does not fit in width bits.
func LengthPrefixed(payload []uint8, count uint64, width int) (bits []uint8, ok bool) {
	if width < 64 && count >= 1<<uint(width) {
		return nil, false
	}
	bits = make([]uint8, 0, width+len(payload))
	bits = AppendUint(bits, count, width)
	return append(bits, payload...), true
}

// replacementChar stands in for undecodable bytes in extracted text
const replacementChar = "\uFFFD"

// DecodeLenient decodes b as UTF-8, writing replacement for every byte that
// does not start a valid sequence. An empty replacement drops invalid bytes.
func DecodeLenient(b []byte, replacement string) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			sb.WriteString(replacement)
			b = b[1:]
			continue
		}
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

func nibble(bits []uint8) uint8 {
	return uint8(ReadUint(bits[:4]))
}
