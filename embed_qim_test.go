package stegano

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQIMEmbedder_Hello embeds "hello" with delta 4 into a 64x64 solid gray image
func TestQIMEmbedder_Hello(t *testing.T) {
	e := NewQIMEmbedder(4, ChannelBlue)
	c := solidCarrier(64, 64, 128)

	require.NoError(t, e.Embed(c, "hello"))

	got, err := e.Extract(reloadCarrier(t, c))
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestQIMEmbedder_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		delta float64
		level uint8
		msg   string
	}{
		{"empty", 4, 128, ""},
		{"dark", 4, 0, "dark carrier"},
		{"bright", 4, 255, "bright carrier"},
		{"delta 8", 8, 77, "wider lattice"},
		{"utf8", 4, 128, "héllo 世界"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewQIMEmbedder(tt.delta, 0)
			c := solidCarrier(32, 32, tt.level)
			require.NoError(t, e.Embed(c, tt.msg))

			got, err := e.Extract(reloadCarrier(t, c))
			require.NoError(t, err)
			assert.Equal(t, tt.msg, got)
		})
	}
}

func TestQIMEmbedder_Quantize(t *testing.T) {
	e := NewQIMEmbedder(4, 0)

	tests := []struct {
		x    float64
		bit  uint8
		want float64
	}{
		{128, 0, 128},
		{128, 1, 130},
		{129, 0, 128},
		{131, 1, 130},
		{2, 0, 0},
		{6, 0, 8},
		{255, 0, 256},
		{255, 1, 254},
	}
	for _, tt := range tests {
		if got := e.quantize(tt.x, tt.bit); got != tt.want {
			t.Errorf("quantize(%v, %d) = %v, want %v", tt.x, tt.bit, got, tt.want)
		}
	}

	// 255 is equidistant from 256 and 254, and ties read as 0
	assert.Equal(t, uint8(0), e.decide(255))
	assert.Equal(t, uint8(1), e.decide(254))
}

func TestQIMEmbedder_OnlyPrefixTouched(t *testing.T) {
	e := NewQIMEmbedder(0, 0)
	c := texturedCarrier(16, 16)
	orig := c.Clone()

	require.NoError(t, e.Embed(c, "a"))

	blue := c.Channel(ChannelBlue)
	for i := qimHeaderBits + 8; i < len(blue); i++ {
		require.Equal(t, orig.Channel(ChannelBlue)[i], blue[i], "sample %d", i)
	}
	assert.Equal(t, orig.Channel(ChannelRed), c.Channel(ChannelRed))
	assert.Equal(t, orig.Channel(ChannelGreen), c.Channel(ChannelGreen))
}

func TestQIMEmbedder_CapacityBoundary(t *testing.T) {
	e := NewQIMEmbedder(4, ChannelBlue)
	// 72 samples: 32 header bits and five message bytes
	c := solidCarrier(9, 8, 128)
	require.Equal(t, 40, e.Capacity(c))

	exact := c.Clone()
	require.NoError(t, e.Embed(exact, "hello"))
	got, err := e.Extract(exact)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	err = e.Embed(c.Clone(), "hello!")
	var ce *CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, AlgorithmQIM, ce.Algorithm)
	assert.Equal(t, 80, ce.Needed)
	assert.Equal(t, 72, ce.Available)
}

func TestQIMEmbedder_SmallImages(t *testing.T) {
	e := NewQIMEmbedder(0, 0)

	// smaller than one block is fine for qim
	c := solidCarrier(5, 7, 100)
	require.NoError(t, e.Embed(c, ""))
	got, err := e.Extract(c)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = e.Extract(solidCarrier(4, 4, 100))
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestQIMEmbedder_CorruptHeader(t *testing.T) {
	e := NewQIMEmbedder(4, ChannelBlue)
	c := solidCarrier(8, 8, 128)

	// a header claiming a million bytes cannot be satisfied by 64 samples
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, 1_000_000)
	blue := c.Channel(ChannelBlue)
	for i, bit := range BytesToBits(header) {
		blue[i] = clampRound(e.quantize(float64(blue[i]), bit))
	}

	_, err := e.Extract(c)
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestQIMEmbedder_InvalidUTF8Replaced(t *testing.T) {
	e := NewQIMEmbedder(4, ChannelBlue)
	c := solidCarrier(16, 16, 128)

	require.NoError(t, e.Embed(c, "a\xffb"))
	got, err := e.Extract(c)
	require.NoError(t, err)
	assert.Equal(t, "a�b", got)
}

func TestQIMEmbedder_ZeroValue(t *testing.T) {
	var e QIMEmbedder
	c := solidCarrier(64, 64, 128)
	origRed := append([]uint8(nil), c.Channel(ChannelRed)...)

	require.NoError(t, e.Embed(c, "zero"))
	assert.Equal(t, origRed, c.Channel(ChannelRed))
	assert.Equal(t, QIMEmbedder{}, e)

	got, err := NewQIMEmbedder(DefaultQIMDelta, ChannelBlue).Extract(c)
	require.NoError(t, err)
	assert.Equal(t, "zero", got)

	got, err = e.Extract(c)
	require.NoError(t, err)
	assert.Equal(t, "zero", got)
}
