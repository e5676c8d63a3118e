package stegano

import "fmt"

// dctRow and dctCol locate the mid-frequency coefficient carrying the bit
const (
	dctRow = 5
	dctCol = 2
)

// dctTerminatorRun is the number of consecutive zero bits that ends extraction
const dctTerminatorRun = 8

// DCTEmbedder hides one bit per full 8x8 luma block by forcing the sign of
// coefficient (5, 2) to ±Strength. The message is followed by a NUL byte and
// extraction stops at the first run of eight zero bits, wherever it falls.
// A message whose own bits contain such a run ("@0" is the shortest printable
// example) is therefore cut short on extraction; base64 payloads never are.
type DCTEmbedder struct {
	Strength float64
}

// NewDCTEmbedder creates a DCT embedder; strength 0 selects DefaultDCTStrength
func NewDCTEmbedder(strength float64) *DCTEmbedder {
	if strength == 0 {
		strength = DefaultDCTStrength
	}
	return &DCTEmbedder{Strength: strength}
}

// Algorithm implements Embedder
func (e *DCTEmbedder) Algorithm() Algorithm { return AlgorithmDCT }

func (e *DCTEmbedder) strength() float64 {
	if e.Strength == 0 {
		return DefaultDCTStrength
	}
	return e.Strength
}

// Capacity returns the number of message bits the carrier can hold, the
// terminator excluded
func (e *DCTEmbedder) Capacity(c *Carrier) int {
	n := (c.Width/blockSize)*(c.Height/blockSize) - dctTerminatorRun
	if n < 0 {
		return 0
	}
	return n
}

// Embed writes message plus terminator into the leading blocks of c. Blocks
// past the last bit and the chroma of every pixel are left as they were.
func (e *DCTEmbedder) Embed(c *Carrier, message string) error {
	if err := ValidateDimensions(c.Width, c.Height); err != nil {
		return err
	}
	return e.writeBits(c, TextToBits(message+"\x00"))
}

// writeBits forces one bit per block in raster order
func (e *DCTEmbedder) writeBits(c *Carrier, bits []uint8) error {
	luma, u, v := c.lumaPlane()
	if available := luma.numBlocks(); len(bits) > available {
		return &CapacityError{Algorithm: AlgorithmDCT, Needed: len(bits), Available: available}
	}

	bw := luma.blocksWide()
	strength := e.strength()
	for idx, bit := range bits {
		by, bx := idx/bw, idx%bw
		b := luma.load(by, bx)
		coef := forwardDCT(&b)
		if bit == 1 {
			coef[dctRow][dctCol] = strength
		} else {
			coef[dctRow][dctCol] = -strength
		}
		b = inverseDCT(&coef)
		luma.store(by, bx, &b)
		c.storeLumaBlock(luma, u, v, by, bx)
	}
	return nil
}

// Extract reads bits until the terminator run and decodes them as UTF-8.
// When no terminator is found every collected bit is decoded.
func (e *DCTEmbedder) Extract(c *Carrier) (string, error) {
	if err := ValidateDimensions(c.Width, c.Height); err != nil {
		return "", err
	}

	luma, _, _ := c.lumaPlane()
	bits := make([]uint8, 0, luma.numBlocks())
	run := 0

scan:
	for by := 0; by < luma.blocksHigh(); by++ {
		for bx := 0; bx < luma.blocksWide(); bx++ {
			b := luma.load(by, bx)
			coef := forwardDCT(&b)
			if coef[dctRow][dctCol] > 0 {
				bits = append(bits, 1)
				run = 0
				continue
			}
			bits = append(bits, 0)
			run++
			if run >= dctTerminatorRun {
				bits = bits[:len(bits)-dctTerminatorRun]
				break scan
			}
		}
	}

	return DecodeLenient(BitsToBytes(bits), replacementChar), nil
}

func (e *DCTEmbedder) String() string {
	return fmt.Sprintf("dct(strength=%g)", e.Strength)
}
