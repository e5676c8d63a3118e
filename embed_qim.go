package stegano

import (
	"encoding/binary"
	"fmt"
	"math"
)

// qimHeaderBits is the width of the big-endian message byte count
const qimHeaderBits = 32

// QIMEmbedder hides one bit per sample of a single RGB channel by moving the
// sample onto lattice 0 (multiples of Delta) or lattice 1 (offset by Delta/2).
// Samples are consumed in row-major order. Zero fields take the same
// defaults as NewQIMEmbedder.
type QIMEmbedder struct {
	Delta   float64
	Channel Channel
}

// NewQIMEmbedder creates a QIM embedder. Zero values select DefaultQIMDelta
// and the blue channel.
func NewQIMEmbedder(delta float64, ch Channel) *QIMEmbedder {
	if delta == 0 {
		delta = DefaultQIMDelta
	}
	if ch == channelDefault {
		ch = ChannelBlue
	}
	return &QIMEmbedder{Delta: delta, Channel: ch}
}

// Algorithm implements Embedder
func (e *QIMEmbedder) Algorithm() Algorithm { return AlgorithmQIM }

// resolved fills in the defaults for zero fields
func (e *QIMEmbedder) resolved() *QIMEmbedder {
	if e.Delta != 0 && e.Channel != channelDefault {
		return e
	}
	return NewQIMEmbedder(e.Delta, e.Channel)
}

// Capacity returns the number of message bits after the header
func (e *QIMEmbedder) Capacity(c *Carrier) int {
	n := c.Width*c.Height - qimHeaderBits
	if n < 0 {
		return 0
	}
	return n
}

// quantize returns the point of lattice bit nearest to x
func (e *QIMEmbedder) quantize(x float64, bit uint8) float64 {
	shift := float64(bit) * e.Delta / 2
	return e.Delta*math.RoundToEven((x-shift)/e.Delta) + shift
}

// decide returns the lattice x is closest to; ties go to lattice 0
func (e *QIMEmbedder) decide(x float64) uint8 {
	if math.Abs(x-e.quantize(x, 0)) <= math.Abs(x-e.quantize(x, 1)) {
		return 0
	}
	return 1
}

// Embed implements Embedder
func (e *QIMEmbedder) Embed(c *Carrier, message string) error {
	if uint64(len(message)) > math.MaxUint32 {
		return &CapacityError{Algorithm: AlgorithmQIM, Needed: qimHeaderBits + 8*len(message), Available: c.Width * c.Height}
	}

	payload := make([]byte, 4, 4+len(message))
	binary.BigEndian.PutUint32(payload, uint32(len(message)))
	payload = append(payload, message...)
	bits := BytesToBits(payload)

	q := e.resolved()
	samples := c.Channel(q.Channel)
	if len(bits) > len(samples) {
		return &CapacityError{Algorithm: AlgorithmQIM, Needed: len(bits), Available: len(samples)}
	}

	for i, bit := range bits {
		samples[i] = clampRound(q.quantize(float64(samples[i]), bit))
	}
	return nil
}

// Extract implements Embedder. Invalid UTF-8 is replaced with U+FFFD.
func (e *QIMEmbedder) Extract(c *Carrier) (string, error) {
	q := e.resolved()
	samples := c.Channel(q.Channel)
	if len(samples) < qimHeaderBits {
		return "", fmt.Errorf("%w: %d samples cannot hold the length header", ErrNoPayload, len(samples))
	}

	header := make([]uint8, qimHeaderBits)
	for i := range header {
		header[i] = q.decide(float64(samples[i]))
	}
	n := ReadUint(header)

	total := uint64(qimHeaderBits) + 8*n
	if total > uint64(len(samples)) {
		return "", fmt.Errorf("%w: header claims %d bytes, carrier holds %d bits", ErrNoPayload, n, len(samples)-qimHeaderBits)
	}

	bits := make([]uint8, 0, 8*n)
	for i := qimHeaderBits; i < int(total); i++ {
		bits = append(bits, q.decide(float64(samples[i])))
	}
	return DecodeLenient(BitsToBytes(bits), replacementChar), nil
}
