package stegano

import (
	"encoding/base64"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestQIM_RoundTripProperty(t *testing.T) {
	cover := texturedCarrier(32, 32)

	rapid.Check(t, func(t *rapid.T) {
		delta := float64(rapid.IntRange(2, 16).Draw(t, "delta"))
		ch := Channel(rapid.IntRange(1, 3).Draw(t, "channel"))
		msg := rapid.StringN(0, 64, 120).Draw(t, "msg")

		e := NewQIMEmbedder(delta, ch)
		c := cover.Clone()
		if err := e.Embed(c, msg); err != nil {
			t.Fatalf("Embed: %v", err)
		}
		got, err := e.Extract(c)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if got != msg {
			t.Fatalf("Extract = %q, want %q", got, msg)
		}
	})
}

// base64 text never contains eight consecutive zero bits, so the DCT
// terminator cannot fire early on identifier payloads
func TestDCT_Base64RoundTripProperty(t *testing.T) {
	cover := solidCarrier(160, 160, 128)
	e := NewDCTEmbedder(0)

	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.Byte(), 0, 30).Draw(t, "raw")
		msg := base64.StdEncoding.EncodeToString(raw)

		c := cover.Clone()
		if err := e.Embed(c, msg); err != nil {
			t.Fatalf("Embed: %v", err)
		}
		got, err := e.Extract(c)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if got != msg {
			t.Fatalf("Extract = %q, want %q", got, msg)
		}
	})
}

func TestIdentifierCipher_RoundTripProperty(t *testing.T) {
	ciphers := []*IdentifierCipher{
		newTestCipher(t, CipherChaCha20Poly1305, testMasterKey),
		newTestCipher(t, CipherAES256GCM, testMasterKey),
	}

	rapid.Check(t, func(t *rapid.T) {
		c := ciphers[rapid.IntRange(0, 1).Draw(t, "suite")]
		id := rapid.Uint64().Draw(t, "id")

		payload, err := c.EncryptIdentifier(id)
		if err != nil {
			t.Fatalf("EncryptIdentifier: %v", err)
		}
		got, err := c.DecryptUserID(payload)
		if err != nil {
			t.Fatalf("DecryptUserID: %v", err)
		}
		if got != id {
			t.Fatalf("DecryptUserID = %d, want %d", got, id)
		}
	})
}

func TestIdentifierCipher_TamperProperty(t *testing.T) {
	c := newTestCipher(t, CipherAuto, testMasterKey)

	rapid.Check(t, func(t *rapid.T) {
		id := rapid.Uint64().Draw(t, "id")
		payload, err := c.EncryptIdentifier(id)
		if err != nil {
			t.Fatalf("EncryptIdentifier: %v", err)
		}

		raw, _ := base64.StdEncoding.DecodeString(payload)
		i := rapid.IntRange(0, len(raw)-1).Draw(t, "index")
		mask := rapid.ByteRange(1, 255).Draw(t, "mask")
		raw[i] ^= mask
		tampered := base64.StdEncoding.EncodeToString(raw)

		_, err = c.DecryptIdentifier(tampered)
		if !IsAuthenticationError(err) {
			t.Fatalf("DecryptIdentifier(tampered) = %v, want AuthenticationError", err)
		}
	})
}

func TestDecodeLenient_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "b")
		got := DecodeLenient(b, replacementChar)
		if strings.ToValidUTF8(got, "") != got {
			t.Fatalf("DecodeLenient produced invalid UTF-8: %q", got)
		}
		if dropped := DecodeLenient(b, ""); len(dropped) > len(b) {
			t.Fatalf("dropping invalid bytes grew the text: %q", dropped)
		}
	})
}
