package stegano

import (
	"image"
	"image/color"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCoefficientParity(t *testing.T) {
	tests := []struct {
		c    int32
		want uint8
	}{
		{1, 1}, {3, 1}, {-2, 1}, {-4, 1},
		{2, 0}, {4, 0}, {-1, 0}, {-3, 0},
	}
	for _, tt := range tests {
		if got := coefficientParity(tt.c); got != tt.want {
			t.Errorf("coefficientParity(%d) = %d, want %d", tt.c, got, tt.want)
		}
	}
}

func TestCoefficientGroup_Syndrome(t *testing.T) {
	var g coefficientGroup
	for j := 0; j < f5GroupSize; j++ {
		g.push(j, 1)
	}
	// XOR of 1..15 is zero
	assert.Equal(t, uint8(0), g.syndrome())

	// flipping member j toggles the syndrome by j+1
	for j := 0; j < f5GroupSize; j++ {
		g.parity[j] ^= 1
		assert.Equal(t, uint8(j+1), g.syndrome())
		g.parity[j] ^= 1
	}

	g.remove(4)
	assert.Equal(t, f5GroupSize-1, g.n)
	assert.Equal(t, 5, g.pos[4])
	assert.Equal(t, 14, g.pos[13])
}

func repeatCoef(v int32, n int) []int32 {
	coef := make([]int32, n)
	for i := range coef {
		coef[i] = v
	}
	return coef
}

func TestMatrixEncoder_NoChangeNeeded(t *testing.T) {
	// fifteen positive odd coefficients already have syndrome 0000
	coef := repeatCoef(3, f5GroupSize)
	enc := newMatrixEncoder(coef, []uint8{0, 0, 0, 0})

	for pos := range coef {
		enc.feed(pos)
	}

	assert.True(t, enc.done())
	assert.Equal(t, 1, enc.stats.resolutions)
	assert.Equal(t, 0, enc.stats.changes)
	assert.Equal(t, repeatCoef(3, f5GroupSize), coef)
}

func TestMatrixEncoder_SingleChange(t *testing.T) {
	coef := repeatCoef(3, f5GroupSize)
	enc := newMatrixEncoder(coef, []uint8{0, 1, 0, 1})

	for pos := range coef {
		enc.feed(pos)
	}

	require.True(t, enc.done())
	assert.Equal(t, stateCollecting, enc.state)
	assert.Equal(t, 1, enc.stats.changes)
	assert.Equal(t, int32(2), coef[4], "member 4 realises syndrome 5")

	var dec matrixDecoder
	for _, c := range coef {
		dec.feed(c)
	}
	assert.Equal(t, []uint8{0, 1, 0, 1}, dec.bits)
}

func TestMatrixEncoder_ShrinkageRetriesSameBits(t *testing.T) {
	coef := repeatCoef(1, f5GroupSize+1)
	coef[5] = 3
	enc := newMatrixEncoder(coef, []uint8{0, 1, 0, 1})

	for pos := 0; pos < f5GroupSize; pos++ {
		enc.feed(pos)
	}

	// member 4 was a 1 and dropped to zero: the group shrank, nothing advanced
	assert.Equal(t, stateShrunkRetry, enc.state)
	assert.Equal(t, 0, enc.cursor)
	assert.Equal(t, f5GroupSize-1, enc.group.n)
	assert.Equal(t, int32(0), coef[4])
	assert.False(t, enc.done())

	enc.feed(f5GroupSize)

	// the refilled group puts the 3 at index 4, which now absorbs the change
	assert.True(t, enc.done())
	assert.Equal(t, stateCollecting, enc.state)
	assert.Equal(t, int32(2), coef[5])
	assert.Equal(t, matrixStats{resolutions: 2, changes: 2, shrinkage: 1}, enc.stats)

	var dec matrixDecoder
	for _, c := range coef {
		dec.feed(c)
	}
	assert.Equal(t, []uint8{0, 1, 0, 1}, dec.bits)
}

func TestMatrixEncoder_SkipsZeros(t *testing.T) {
	coef := make([]int32, 2*f5GroupSize)
	for i := 0; i < len(coef); i += 2 {
		coef[i] = -2
	}
	enc := newMatrixEncoder(coef, []uint8{1, 1, 1, 1})

	for pos := range coef {
		enc.feed(pos)
	}
	require.True(t, enc.done())

	for i := 1; i < len(coef); i += 2 {
		assert.Equal(t, int32(0), coef[i], "zero coefficient %d must never change", i)
	}
}

// TestMatrixEncoder_Property embeds random bits into random coefficients and
// checks that the decoder reads them back and that every change is a single
// step on a distinct coefficient
func TestMatrixEncoder_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nbits := 4 * rapid.IntRange(1, 20).Draw(t, "nibbles")
		bits := rapid.SliceOfN(rapid.IntRange(0, 1), nbits, nbits).Draw(t, "bits")
		coef32 := rapid.SliceOfN(rapid.Int32Range(-6, 6), 2000, 2000).Draw(t, "coef")

		payload := make([]uint8, nbits)
		for i, b := range bits {
			payload[i] = uint8(b)
		}
		orig := append([]int32(nil), coef32...)

		enc := newMatrixEncoder(coef32, payload)
		for pos := 0; pos < len(coef32) && !enc.done(); pos++ {
			enc.feed(pos)
		}
		if !enc.done() {
			t.Skip("not enough nonzero coefficients")
		}

		diffs := 0
		for i := range orig {
			if orig[i] == coef32[i] {
				continue
			}
			diffs++
			d := orig[i] - coef32[i]
			if d != 1 && d != -1 {
				t.Fatalf("coefficient %d moved by %d", i, d)
			}
			if abs32(coef32[i]) >= abs32(orig[i]) {
				t.Fatalf("coefficient %d moved away from zero: %d -> %d", i, orig[i], coef32[i])
			}
		}
		if diffs != enc.stats.changes {
			t.Fatalf("diffs = %d, changes = %d", diffs, enc.stats.changes)
		}
		if enc.stats.changes > enc.stats.resolutions {
			t.Fatalf("changes %d exceed resolved groups %d", enc.stats.changes, enc.stats.resolutions)
		}

		var dec matrixDecoder
		for _, c := range coef32 {
			dec.feed(c)
		}
		if len(dec.bits) < nbits {
			t.Fatalf("decoded %d bits, want at least %d", len(dec.bits), nbits)
		}
		for i := range payload {
			if dec.bits[i] != payload[i] {
				t.Fatalf("bit %d = %d, want %d", i, dec.bits[i], payload[i])
			}
		}
	})
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestF5Embedder_RoundTrip(t *testing.T) {
	e := NewF5Embedder(0)

	for _, msg := range []string{"x", "abc", "hello", "test message!"} {
		t.Run(msg, func(t *testing.T) {
			c := texturedCarrier(64, 64)
			require.NoError(t, e.Embed(c, msg))

			got, err := e.Extract(reloadCarrier(t, c))
			require.NoError(t, err)
			assert.Equal(t, msg, got)
		})
	}
}

// TestF5Embedder_ThreeCharacters embeds three characters into a 64x64
// grayscale pattern and checks that at most one quantized coefficient
// differs per resolved group
func TestF5Embedder_ThreeCharacters(t *testing.T) {
	e := NewF5Embedder(ChannelGreen)
	orig := texturedCarrier(64, 64)
	c := orig.Clone()

	stats, err := e.embed(c, "abc")
	require.NoError(t, err)

	stego := reloadCarrier(t, c)
	got, err := e.Extract(stego)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	before, _ := quantizePlane(orig.channelPlane(ChannelGreen))
	after, _ := quantizePlane(stego.channelPlane(ChannelGreen))
	diffs := 0
	for i := range before {
		if before[i] != after[i] {
			diffs++
		}
	}
	assert.Equal(t, stats.changes, diffs)
	assert.LessOrEqual(t, stats.changes, stats.resolutions)
	assert.GreaterOrEqual(t, stats.resolutions, (f5HeaderBits+24)/f5CodewordBits)

	// red and blue are untouched
	assert.Equal(t, orig.Channel(ChannelRed), stego.Channel(ChannelRed))
	assert.Equal(t, orig.Channel(ChannelBlue), stego.Channel(ChannelBlue))
}

func TestF5Embedder_Capacity(t *testing.T) {
	e := NewF5Embedder(0)
	c := texturedCarrier(64, 64)

	capacity := e.Capacity(c)
	require.Positive(t, capacity)
	assert.Equal(t, 0, capacity%f5CodewordBits)

	// far more than the carrier can hold
	long := strings.Repeat("z", capacity/8+8)
	err := e.Embed(c.Clone(), long)
	require.Error(t, err)
	assert.True(t, IsCapacityError(err))
}

func TestF5Embedder_CapacityBoundary(t *testing.T) {
	// magnitude 3 coefficients only ever drop to 2, so nothing shrinks and
	// the bound is exact: five groups carry the header plus eight bits
	coef := repeatCoef(3, 5*f5GroupSize)
	require.Equal(t, 8, f5Capacity(nonzeroCount(coef)))

	stats, bits, err := embedCoefficients(coef, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.shrinkage)
	assert.Equal(t, 5, stats.resolutions)
	assert.Equal(t, bits, readMatrixBits(coef, f5HeaderBits+8))

	_, _, err = embedCoefficients(repeatCoef(3, 5*f5GroupSize), "ab")
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
}

func TestF5Embedder_OneByteOverCapacity(t *testing.T) {
	e := NewF5Embedder(0)
	c := texturedCarrier(64, 64)
	orig := append([]uint8(nil), c.Channel(ChannelGreen)...)

	err := e.Embed(c, strings.Repeat("z", e.Capacity(c)/8+1))
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
	assert.Equal(t, orig, c.Channel(ChannelGreen))
}

// noiseCarrier fills every channel with uniform values over the full range
func noiseCarrier(w, h int, seed int64) *Carrier {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 0xff,
			})
		}
	}
	return NewCarrier(img)
}

// Full-range samples clip on write-back. Embed either leaves a readable
// payload or rejects the carrier and leaves it as it was.
func TestF5Embedder_ClippedCarrier(t *testing.T) {
	e := NewF5Embedder(0)

	for seed := int64(1); seed <= 20; seed++ {
		c := noiseCarrier(64, 64, seed)
		orig := append([]uint8(nil), c.Channel(ChannelGreen)...)

		err := e.Embed(c, "abc")
		if err != nil {
			require.ErrorIs(t, err, ErrUnstableCarrier, "seed %d", seed)
			assert.Equal(t, orig, c.Channel(ChannelGreen), "seed %d", seed)
			continue
		}

		got, err := e.Extract(reloadCarrier(t, c))
		require.NoError(t, err, "seed %d", seed)
		assert.Equal(t, "abc", got, "seed %d", seed)
	}
}

func TestF5Embedder_ZeroValue(t *testing.T) {
	var e F5Embedder
	c := texturedCarrier(64, 64)
	origRed := append([]uint8(nil), c.Channel(ChannelRed)...)

	assert.Equal(t, NewF5Embedder(0).Capacity(c), e.Capacity(c))
	require.NoError(t, e.Embed(c, "zero"))
	assert.Equal(t, origRed, c.Channel(ChannelRed))

	got, err := NewF5Embedder(ChannelGreen).Extract(c)
	require.NoError(t, err)
	assert.Equal(t, "zero", got)
}

func TestF5Embedder_HeaderLimit(t *testing.T) {
	e := NewF5Embedder(0)
	c := texturedCarrier(16, 16)

	// 512 bytes is 4096 bits, one more than the 12-bit header can count
	err := e.Embed(c, strings.Repeat("a", 512))
	var ce *CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, AlgorithmF5, ce.Algorithm)
	assert.Equal(t, f5HeaderBits+4096, ce.Needed)
}

func TestF5Embedder_CapacityCap(t *testing.T) {
	e := NewF5Embedder(0)
	c := texturedCarrier(512, 512)
	assert.LessOrEqual(t, e.Capacity(c), f5MaxPayloadBits)
}

func TestF5Embedder_Errors(t *testing.T) {
	e := NewF5Embedder(0)

	_, err := e.Extract(solidCarrier(4, 4, 0))
	assert.ErrorIs(t, err, ErrImageTooSmall)

	// a black block quantizes to all zeros, so there is no header to read
	_, err = e.Extract(solidCarrier(8, 8, 0))
	assert.ErrorIs(t, err, ErrNoPayload)
	assert.Equal(t, 0, e.Capacity(solidCarrier(8, 8, 0)))
}

func TestF5Embedder_ChannelSelection(t *testing.T) {
	e := NewF5Embedder(ChannelRed)
	c := texturedCarrier(64, 64)
	origGreen := append([]uint8(nil), c.Channel(ChannelGreen)...)

	require.NoError(t, e.Embed(c, "red"))
	assert.Equal(t, origGreen, c.Channel(ChannelGreen))

	got, err := e.Extract(c)
	require.NoError(t, err)
	assert.Equal(t, "red", got)
}
