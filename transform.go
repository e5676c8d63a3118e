package stegano

import "math"

// blockSize is the edge length of the transform blocks
const blockSize = 8

// block holds one 8x8 tile in row-major order
type block [blockSize][blockSize]float64

// dctBasis[k][n] is the orthonormal DCT-II basis, c(k)·cos(π(2n+1)k/16)
var dctBasis = func() (m [blockSize][blockSize]float64) {
	for k := 0; k < blockSize; k++ {
		c := math.Sqrt(2.0 / blockSize)
		if k == 0 {
			c = math.Sqrt(1.0 / blockSize)
		}
		for n := 0; n < blockSize; n++ {
			m[k][n] = c * math.Cos(math.Pi*float64(2*n+1)*float64(k)/(2*blockSize))
		}
	}
	return m
}()

// forwardDCT computes the orthonormal 2-D DCT-II of b (no level shift), so
// that inverseDCT(forwardDCT(b)) == b up to floating point error.
func forwardDCT(b *block) block {
	var tmp, out block
	// rows
	for y := 0; y < blockSize; y++ {
		for k := 0; k < blockSize; k++ {
			var s float64
			for n := 0; n < blockSize; n++ {
				s += dctBasis[k][n] * b[y][n]
			}
			tmp[y][k] = s
		}
	}
	// columns
	for x := 0; x < blockSize; x++ {
		for k := 0; k < blockSize; k++ {
			var s float64
			for n := 0; n < blockSize; n++ {
				s += dctBasis[k][n] * tmp[n][x]
			}
			out[k][x] = s
		}
	}
	return out
}

// inverseDCT computes the 2-D DCT-III, the inverse of forwardDCT
func inverseDCT(c *block) block {
	var tmp, out block
	for x := 0; x < blockSize; x++ {
		for n := 0; n < blockSize; n++ {
			var s float64
			for k := 0; k < blockSize; k++ {
				s += dctBasis[k][n] * c[k][x]
			}
			tmp[n][x] = s
		}
	}
	for y := 0; y < blockSize; y++ {
		for n := 0; n < blockSize; n++ {
			var s float64
			for k := 0; k < blockSize; k++ {
				s += dctBasis[k][n] * tmp[y][k]
			}
			out[y][n] = s
		}
	}
	return out
}

// plane is a float view of one image channel
type plane struct {
	width, height int
	pix           []float64
}

func newPlane(width, height int) *plane {
	return &plane{width: width, height: height, pix: make([]float64, width*height)}
}

// blocksWide and blocksHigh count the full 8x8 blocks; trailing partial rows
// and columns are never part of a block.
func (p *plane) blocksWide() int { return p.width / blockSize }
func (p *plane) blocksHigh() int { return p.height / blockSize }

// numBlocks returns the number of full blocks in raster order
func (p *plane) numBlocks() int { return p.blocksWide() * p.blocksHigh() }

// load copies the block at block coordinates (by, bx)
func (p *plane) load(by, bx int) block {
	var b block
	y0, x0 := by*blockSize, bx*blockSize
	for y := 0; y < blockSize; y++ {
		row := p.pix[(y0+y)*p.width+x0:]
		for x := 0; x < blockSize; x++ {
			b[y][x] = row[x]
		}
	}
	return b
}

// store writes b to block coordinates (by, bx)
func (p *plane) store(by, bx int, b *block) {
	y0, x0 := by*blockSize, bx*blockSize
	for y := 0; y < blockSize; y++ {
		row := p.pix[(y0+y)*p.width+x0:]
		for x := 0; x < blockSize; x++ {
			row[x] = b[y][x]
		}
	}
}

// clampRound rounds half to even and clamps to a valid 8-bit sample
func clampRound(v float64) uint8 {
	v = math.RoundToEven(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
