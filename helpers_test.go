package stegano

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// testMasterKey is a fixed 32-byte key in hex
const testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// otherMasterKey differs from testMasterKey in every byte
const otherMasterKey = "f0e1d2c3b4a5968778695a4b3c2d1e0ff0e1d2c3b4a5968778695a4b3c2d1e0f"

// solidImage returns a w x h image filled with one gray level
func solidImage(w, h int, level uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: level, G: level, B: level, A: 0xff})
		}
	}
	return img
}

// texturedImage returns a mid-range grayscale pattern with enough detail to
// leave plenty of nonzero quantized coefficients in every 8x8 block
func texturedImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 128 + 40*math.Sin(0.7*float64(x)) + 30*math.Cos(1.3*float64(y))
			g := uint8(math.Round(v))
			img.SetNRGBA(x, y, color.NRGBA{R: g, G: g, B: g, A: 0xff})
		}
	}
	return img
}

func solidCarrier(w, h int, level uint8) *Carrier {
	return NewCarrier(solidImage(w, h, level))
}

func texturedCarrier(w, h int) *Carrier {
	return NewCarrier(texturedImage(w, h))
}

// encodeCarrier encodes c as PNG and fails the test on error
func encodeCarrier(t testing.TB, c *Carrier) []byte {
	t.Helper()
	data, err := c.Bytes(FormatPNG, 0)
	if err != nil {
		t.Fatalf("failed to encode carrier: %v", err)
	}
	return data
}

// reloadCarrier round trips c through PNG bytes
func reloadCarrier(t testing.TB, c *Carrier) *Carrier {
	t.Helper()
	out, err := DecodeCarrier(encodeCarrier(t, c))
	if err != nil {
		t.Fatalf("failed to decode carrier: %v", err)
	}
	return out
}

func newTestCipher(t testing.TB, suite CipherSuite, hexKey string) *IdentifierCipher {
	t.Helper()
	c, err := NewIdentifierCipher(&CipherConfig{Suite: suite, KeyProvider: NewHexKeyProvider(hexKey)})
	if err != nil {
		t.Fatalf("failed to create identifier cipher: %v", err)
	}
	return c
}
