package stegano

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Carrier is a decoded RGB image, one 8-bit plane per channel. Alpha is
// discarded on decode and output is always opaque.
type Carrier struct {
	Width  int
	Height int
	planes [3][]uint8
}

// NewCarrier copies img into a Carrier
func NewCarrier(img image.Image) *Carrier {
	b := img.Bounds()
	c := newCarrier(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < c.Height; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < c.Width; x++ {
				i := y*c.Width + x
				c.planes[0][i] = row[4*x]
				c.planes[1][i] = row[4*x+1]
				c.planes[2][i] = row[4*x+2]
			}
		}
	default:
		for y := 0; y < c.Height; y++ {
			for x := 0; x < c.Width; x++ {
				px := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				i := y*c.Width + x
				c.planes[0][i] = px.R
				c.planes[1][i] = px.G
				c.planes[2][i] = px.B
			}
		}
	}
	return c
}

func newCarrier(width, height int) *Carrier {
	c := &Carrier{Width: width, Height: height}
	for i := range c.planes {
		c.planes[i] = make([]uint8, width*height)
	}
	return c
}

// DecodeCarrier decodes PNG, JPEG, GIF, BMP or TIFF bytes. Failures are
// reported as *DecodeError.
func DecodeCarrier(data []byte) (*Carrier, error) {
	if err := ValidateImageData(data); err != nil {
		return nil, NewDecodeError("", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, NewDecodeError(format, err)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, NewDecodeError(format, fmt.Errorf("image has no pixels"))
	}
	return NewCarrier(img), nil
}

// Channel returns the samples of ch in row-major order. The slice aliases
// the carrier.
func (c *Carrier) Channel(ch Channel) []uint8 {
	return c.planes[ch.index()]
}

// Clone returns a deep copy
func (c *Carrier) Clone() *Carrier {
	out := &Carrier{Width: c.Width, Height: c.Height}
	for i := range c.planes {
		out.planes[i] = append([]uint8(nil), c.planes[i]...)
	}
	return out
}

// Image returns the carrier as an opaque NRGBA image
func (c *Carrier) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, c.Width, c.Height))
	for i := 0; i < c.Width*c.Height; i++ {
		img.Pix[4*i] = c.planes[0][i]
		img.Pix[4*i+1] = c.planes[1][i]
		img.Pix[4*i+2] = c.planes[2][i]
		img.Pix[4*i+3] = 0xff
	}
	return img
}

// Encode writes the carrier in format. JPEG uses quality (clamped to
// [1, 100]); the other formats are lossless.
func (c *Carrier) Encode(w io.Writer, format Format, quality int) error {
	img := c.Image()

	var err error
	switch format {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		err = enc.Encode(w, img)
	case FormatJPEG:
		if quality < 1 {
			quality = 1
		}
		if quality > 100 {
			quality = 100
		}
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return &EncodeError{Format: format.String(), Message: "unsupported output format", Err: ErrUnsupportedFormat}
	}
	if err != nil {
		return NewEncodeError(format.String(), err)
	}
	return nil
}

// Bytes encodes the carrier into a new buffer
func (c *Carrier) Bytes(format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf, format, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BT.601 luma/chroma with chroma centred on 128, as used for the luma plane
// of the dct embedder.
const (
	lumaR   = 0.299
	lumaG   = 0.587
	lumaB   = 0.114
	chromaU = 0.492
	chromaV = 0.877
	chromaZ = 128.0
)

func rgbToYUV(r, g, b uint8) (y, u, v float64) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	y = lumaR*rf + lumaG*gf + lumaB*bf
	u = chromaU*(bf-y) + chromaZ
	v = chromaV*(rf-y) + chromaZ
	return y, u, v
}

func yuvToRGB(y, u, v float64) (r, g, b uint8) {
	rf := y + (v-chromaZ)/chromaV
	bf := y + (u-chromaZ)/chromaU
	gf := (y - lumaR*rf - lumaB*bf) / lumaG
	return clampRound(rf), clampRound(gf), clampRound(bf)
}

// lumaPlane returns the Y plane and keeps U and V for the write back
func (c *Carrier) lumaPlane() (luma, u, v *plane) {
	luma = newPlane(c.Width, c.Height)
	u = newPlane(c.Width, c.Height)
	v = newPlane(c.Width, c.Height)
	for i := range luma.pix {
		luma.pix[i], u.pix[i], v.pix[i] = rgbToYUV(c.planes[0][i], c.planes[1][i], c.planes[2][i])
	}
	return luma, u, v
}

// storeLumaBlock converts block (by, bx) of luma back to RGB using the
// original chroma. Luma is rounded and clamped first.
func (c *Carrier) storeLumaBlock(luma, u, v *plane, by, bx int) {
	y0, x0 := by*blockSize, bx*blockSize
	for y := y0; y < y0+blockSize; y++ {
		for x := x0; x < x0+blockSize; x++ {
			i := y*c.Width + x
			yq := float64(clampRound(luma.pix[i]))
			c.planes[0][i], c.planes[1][i], c.planes[2][i] = yuvToRGB(yq, u.pix[i], v.pix[i])
		}
	}
}

// channelPlane copies ch into a float plane
func (c *Carrier) channelPlane(ch Channel) *plane {
	p := newPlane(c.Width, c.Height)
	for i, s := range c.Channel(ch) {
		p.pix[i] = float64(s)
	}
	return p
}
