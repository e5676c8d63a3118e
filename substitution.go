package stegano

import "strings"

// substitutionAlphabet is the closed alphabet rotated by Substitute
const substitutionAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultSubstitutionShift is the rotation applied to identifiers before sealing
const DefaultSubstitutionShift = 5

// Substitute rotates every alphanumeric character of s forward by shift places
// in a 62 character alphabet. Other characters pass through unchanged. This is
// obfuscation only; integrity comes from the AEAD tag.
func Substitute(s string, shift int) string {
	return rotate(s, shift)
}

// Unsubstitute reverses Substitute
func Unsubstitute(s string, shift int) string {
	return rotate(s, -shift)
}

func rotate(s string, shift int) string {
	n := len(substitutionAlphabet)
	shift %= n
	if shift < 0 {
		shift += n
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r > 0x7f {
			sb.WriteRune(r)
			continue
		}
		i := strings.IndexByte(substitutionAlphabet, byte(r))
		if i < 0 {
			sb.WriteRune(r)
			continue
		}
		sb.WriteByte(substitutionAlphabet[(i+shift)%n])
	}
	return sb.String()
}
