package stegano

import (
	"bytes"
	"fmt"
	"math"
)

const (
	// f5GroupSize is the number of nonzero coefficients behind each codeword
	f5GroupSize = 15

	// f5CodewordBits is the number of payload bits carried per group
	f5CodewordBits = 4

	// f5HeaderBits is the width of the payload bit count header
	f5HeaderBits = 12

	// f5MaxPayloadBits is the largest count the header can carry
	f5MaxPayloadBits = 1<<f5HeaderBits - 1
)

// luminanceQuant is the standard JPEG luminance quantization table
var luminanceQuant = [blockSize][blockSize]float64{
	{16, 11, 10, 16, 24, 40, 51, 61},
	{12, 12, 14, 19, 26, 58, 60, 55},
	{14, 13, 16, 24, 40, 57, 69, 56},
	{14, 17, 22, 29, 51, 87, 80, 62},
	{18, 22, 37, 56, 68, 109, 103, 77},
	{24, 35, 55, 64, 81, 104, 113, 92},
	{49, 64, 78, 87, 103, 121, 120, 101},
	{72, 92, 95, 98, 112, 100, 103, 99},
}

// coefficientParity maps a nonzero quantized coefficient to its code bit:
// positive odd and negative even give 1, negative odd and positive even give 0
func coefficientParity(c int32) uint8 {
	odd := c%2 != 0
	if (c > 0 && odd) || (c < 0 && !odd) {
		return 1
	}
	return 0
}

// coefficientGroup is the ordered window of up to 15 nonzero coefficients.
// Column j of the 4x15 parity check matrix is the binary form of j+1, so the
// syndrome is the XOR of j+1 over every member whose parity is 1.
type coefficientGroup struct {
	pos    [f5GroupSize]int
	parity [f5GroupSize]uint8
	n      int
}

func (g *coefficientGroup) push(pos int, parity uint8) {
	g.pos[g.n] = pos
	g.parity[g.n] = parity
	g.n++
}

func (g *coefficientGroup) full() bool { return g.n == f5GroupSize }

func (g *coefficientGroup) reset() { g.n = 0 }

// remove drops member j and shifts the later members down
func (g *coefficientGroup) remove(j int) {
	copy(g.pos[j:g.n-1], g.pos[j+1:g.n])
	copy(g.parity[j:g.n-1], g.parity[j+1:g.n])
	g.n--
}

func (g *coefficientGroup) syndrome() uint8 {
	var s uint8
	for j := 0; j < g.n; j++ {
		if g.parity[j] == 1 {
			s ^= uint8(j + 1)
		}
	}
	return s
}

// groupState is the phase of the group currently being built
type groupState uint8

const (
	// stateCollecting gathers nonzero coefficients until the group is full
	stateCollecting groupState = iota
	// stateResolving computes the syndrome of a full group and adjusts at most one member
	stateResolving
	// stateShrunkRetry refills a group that lost a member to zero; the cursor has not moved
	stateShrunkRetry
)

func (s groupState) String() string {
	switch s {
	case stateCollecting:
		return "collecting"
	case stateResolving:
		return "resolving"
	case stateShrunkRetry:
		return "shrunk-retry"
	default:
		return "unknown"
	}
}

// matrixStats counts what one embedding pass did
type matrixStats struct {
	resolutions int // full groups resolved, retries included
	changes     int // coefficients moved one step toward zero
	shrinkage   int // changes that produced a zero
}

// matrixEncoder walks quantized coefficients in scan order and embeds bits
// four at a time. The cursor only advances once a group has been resolved
// without shrinkage.
type matrixEncoder struct {
	coef   []int32
	bits   []uint8
	cursor int
	group  coefficientGroup
	state  groupState
	stats  matrixStats
}

func newMatrixEncoder(coef []int32, bits []uint8) *matrixEncoder {
	return &matrixEncoder{coef: coef, bits: bits}
}

// feed offers the coefficient at pos to the current group
func (m *matrixEncoder) feed(pos int) {
	c := m.coef[pos]
	if c == 0 {
		return
	}
	m.group.push(pos, coefficientParity(c))
	if m.group.full() {
		m.state = stateResolving
		m.resolve()
	}
}

// resolve makes the syndrome of the full group equal the next four bits
func (m *matrixEncoder) resolve() {
	m.stats.resolutions++
	target := nibble(m.bits[m.cursor:])
	flip := int(target^m.group.syndrome()) - 1
	if flip < 0 {
		m.advance()
		return
	}

	pos := m.group.pos[flip]
	if m.coef[pos] > 0 {
		m.coef[pos]--
	} else {
		m.coef[pos]++
	}
	m.stats.changes++

	if m.coef[pos] == 0 {
		m.stats.shrinkage++
		m.group.remove(flip)
		m.state = stateShrunkRetry
		return
	}
	m.advance()
}

func (m *matrixEncoder) advance() {
	m.cursor += f5CodewordBits
	m.group.reset()
	m.state = stateCollecting
}

func (m *matrixEncoder) done() bool {
	return m.cursor >= len(m.bits)
}

// matrixDecoder replays the grouping walk and emits each group's syndrome
type matrixDecoder struct {
	group coefficientGroup
	bits  []uint8
}

func (m *matrixDecoder) feed(c int32) {
	if c == 0 {
		return
	}
	m.group.push(0, coefficientParity(c))
	if m.group.full() {
		m.bits = AppendUint(m.bits, uint64(m.group.syndrome()), f5CodewordBits)
		m.group.reset()
	}
}

// readMatrixBits replays the decoder walk over coef until n bits are out.
// Fewer than n bits come back when coef runs out of full groups.
func readMatrixBits(coef []int32, n int) []uint8 {
	var dec matrixDecoder
	for _, v := range coef {
		if len(dec.bits) >= n {
			break
		}
		dec.feed(v)
	}
	if len(dec.bits) > n {
		return dec.bits[:n]
	}
	return dec.bits
}

// embedCoefficients writes the length-prefixed message into coef in place
// and returns the bits it embedded
func embedCoefficients(coef []int32, message string) (matrixStats, []uint8, error) {
	payload := TextToBits(message)
	bits, ok := LengthPrefixed(payload, uint64(len(payload)), f5HeaderBits)
	if !ok {
		return matrixStats{}, nil, &CapacityError{
			Algorithm: AlgorithmF5,
			Needed:    f5HeaderBits + len(payload),
			Available: f5HeaderBits + f5MaxPayloadBits,
		}
	}

	enc := newMatrixEncoder(coef, bits)
	for pos := 0; pos < len(coef) && !enc.done(); pos++ {
		enc.feed(pos)
	}
	if !enc.done() {
		return enc.stats, nil, &CapacityError{Algorithm: AlgorithmF5, Needed: len(bits), Available: enc.cursor}
	}
	return enc.stats, bits, nil
}

// f5Capacity is the payload bound for a plane with nonzero usable coefficients
func f5Capacity(nonzero int) int {
	n := nonzero/f5GroupSize*f5CodewordBits - f5HeaderBits
	if n < 0 {
		return 0
	}
	if n > f5MaxPayloadBits {
		return f5MaxPayloadBits
	}
	return n
}

// F5Embedder hides a 12-bit length header and the message in the quantized
// DCT coefficients of one channel with a (1, 15, 4) matrix code: every 15
// nonzero coefficients carry four bits at the cost of at most one change.
// The zero value works on the green channel.
type F5Embedder struct {
	Channel Channel
}

// NewF5Embedder creates a matrix-code embedder on ch (green when zero)
func NewF5Embedder(ch Channel) *F5Embedder {
	if ch == channelDefault {
		ch = ChannelGreen
	}
	return &F5Embedder{Channel: ch}
}

// Algorithm implements Embedder
func (e *F5Embedder) Algorithm() Algorithm { return AlgorithmF5 }

func (e *F5Embedder) channel() Channel {
	if e.Channel == channelDefault {
		return ChannelGreen
	}
	return e.Channel
}

// Capacity returns an upper bound on the message bits the carrier can hold.
// Shrinkage consumes extra coefficients, so a message at the bound may still
// be rejected.
func (e *F5Embedder) Capacity(c *Carrier) int {
	if ValidateDimensions(c.Width, c.Height) != nil {
		return 0
	}
	coef, _ := quantizePlane(c.channelPlane(e.channel()))
	return f5Capacity(nonzeroCount(coef))
}

// Embed implements Embedder
func (e *F5Embedder) Embed(c *Carrier, message string) error {
	_, err := e.embed(c, message)
	return err
}

// embed also re-reads the written channel: clamping inverse-transformed
// samples to [0, 255] can move quantized coefficients, and a carrier that
// loses the payload that way is restored and rejected with ErrUnstableCarrier.
func (e *F5Embedder) embed(c *Carrier, message string) (matrixStats, error) {
	if err := ValidateDimensions(c.Width, c.Height); err != nil {
		return matrixStats{}, err
	}

	ch := e.channel()
	p := c.channelPlane(ch)
	coef, width := quantizePlane(p)

	stats, bits, err := embedCoefficients(coef, message)
	if err != nil {
		return stats, err
	}

	dequantizePlane(p, coef, width)
	samples := c.Channel(ch)
	original := append([]uint8(nil), samples...)
	clipped := 0
	for y := 0; y < p.blocksHigh()*blockSize; y++ {
		for x := 0; x < width; x++ {
			i := y*p.width + x
			if v := p.pix[i]; v < 0 || v > 255 {
				clipped++
			}
			samples[i] = clampRound(p.pix[i])
		}
	}

	written, _ := quantizePlane(c.channelPlane(ch))
	if !bytes.Equal(readMatrixBits(written, len(bits)), bits) {
		copy(samples, original)
		return stats, fmt.Errorf("%w: payload lost on write-back, %d samples clipped", ErrUnstableCarrier, clipped)
	}
	return stats, nil
}

// Extract implements Embedder. Invalid UTF-8 in the payload is dropped.
func (e *F5Embedder) Extract(c *Carrier) (string, error) {
	if err := ValidateDimensions(c.Width, c.Height); err != nil {
		return "", err
	}

	coef, _ := quantizePlane(c.channelPlane(e.channel()))

	header := readMatrixBits(coef, f5HeaderBits)
	if len(header) < f5HeaderBits {
		return "", fmt.Errorf("%w: %d codeword bits, need %d for the header", ErrNoPayload, len(header), f5HeaderBits)
	}
	total := f5HeaderBits + int(ReadUint(header))
	bits := readMatrixBits(coef, total)
	return DecodeLenient(BitsToBytes(bits[f5HeaderBits:]), ""), nil
}

// quantizePlane transforms every full block of p and quantizes it with the
// luminance table. The result covers the block region in raster order and
// width is its row length.
func quantizePlane(p *plane) (coef []int32, width int) {
	width = p.blocksWide() * blockSize
	coef = make([]int32, width*p.blocksHigh()*blockSize)
	for by := 0; by < p.blocksHigh(); by++ {
		for bx := 0; bx < p.blocksWide(); bx++ {
			b := p.load(by, bx)
			d := forwardDCT(&b)
			for u := 0; u < blockSize; u++ {
				row := coef[(by*blockSize+u)*width+bx*blockSize:]
				for v := 0; v < blockSize; v++ {
					q := math.RoundToEven(math.RoundToEven(d[u][v]) / luminanceQuant[u][v])
					row[v] = int32(q)
				}
			}
		}
	}
	return coef, width
}

// dequantizePlane is the inverse of quantizePlane; samples are left unclamped
func dequantizePlane(p *plane, coef []int32, width int) {
	for by := 0; by < p.blocksHigh(); by++ {
		for bx := 0; bx < p.blocksWide(); bx++ {
			var d block
			for u := 0; u < blockSize; u++ {
				row := coef[(by*blockSize+u)*width+bx*blockSize:]
				for v := 0; v < blockSize; v++ {
					d[u][v] = float64(row[v]) * luminanceQuant[u][v]
				}
			}
			b := inverseDCT(&d)
			p.store(by, bx, &b)
		}
	}
}

func nonzeroCount(coef []int32) int {
	n := 0
	for _, c := range coef {
		if c != 0 {
			n++
		}
	}
	return n
}
