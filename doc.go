// Package stegano hides a short authenticated payload, typically an
// encrypted user identifier, inside a carrier image and recovers it from the
// image bytes alone.
//
// # Overview
//
// The package has two halves. The payload half turns a numeric identifier
// into base64 text sealed with an AEAD under a key derived from a master key.
// The image half embeds that text into pixels with one of three schemes and
// extracts it again.
//
// # Algorithms
//
//   - f5 (default): 8x8 blocks of one channel are transformed and quantized
//     with the JPEG luminance table. Every 15 nonzero coefficients carry four
//     bits through a (1, 15, 4) matrix code, changing at most one coefficient
//     by one step toward zero. A coefficient that reaches zero leaves its
//     group, which is refilled and resolved again for the same four bits.
//     A 12-bit header holds the payload bit count.
//   - dct: one bit per 8x8 luma block, stored as the sign of coefficient
//     (5, 2). The message is NUL terminated and extraction stops at the first
//     run of eight zero bits.
//   - qim: one bit per sample of one RGB channel, stored by rounding the
//     sample onto one of two lattices Delta/2 apart. A 32-bit big-endian byte
//     count precedes the message.
//
// The algorithm is not recorded in the image. Whoever reveals must use the
// algorithm that hid.
//
// # Payload Format
//
//	base64( nonce[12] || AEAD(substitute(decimal id)) || tag[16] )
//
// The derived key is HKDF-SHA256(master, salt = "", info =
// "stegano-chacha20-key-derivation"). ChaCha20-Poly1305 is the default AEAD;
// AES-256-GCM is available. The alphanumeric substitution applied before
// sealing is obfuscation only.
//
// # Basic Usage
//
//	ids, err := stegano.NewIdentifierCipher(&stegano.CipherConfig{
//	    KeyProvider: stegano.NewEnvKeyProvider(""),
//	})
//	if err != nil {
//	    panic(err)
//	}
//
//	payload, _ := ids.EncryptIdentifier(123)
//
//	s, _ := stegano.New(&stegano.Config{Algorithm: stegano.AlgorithmQIM})
//	stego, err := s.Hide(imageBytes, payload, stegano.FormatPNG)
//
//	text, _ := s.Reveal(stego)
//	id, err := ids.DecryptUserID(text)
//
// # Output Formats
//
// PNG, BMP and TIFF are lossless. JPEG output is written at quality 100 with
// the standard library encoder, which always subsamples chroma; payloads in
// the green or blue channel are not expected to survive it. Any recompression
// after hiding is outside what the schemes are built for.
//
// # Concurrency
//
// Stegano, IdentifierCipher and KeyRing hold no mutable state. Pool runs
// hide and reveal calls on a fixed set of workers and honours context
// cancellation while waiting.
package stegano
