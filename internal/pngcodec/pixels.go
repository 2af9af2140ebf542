package pngcodec

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"image"
	"image/color"

	"github.com/zeebo/blake3"
)

// PixelBuffer is the canonical decoded image: non-premultiplied RGBA with
// 8 bits per sample, row-major, stride 4*Width.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{Width: width, Height: height, Pix: make([]uint8, 4*width*height)}
}

func (b *PixelBuffer) Stride() int { return 4 * b.Width }

func (b *PixelBuffer) Row(y int) []uint8 {
	return b.Pix[y*b.Stride() : (y+1)*b.Stride()]
}

func (b *PixelBuffer) At(x, y int) color.NRGBA {
	i := y*b.Stride() + 4*x
	return color.NRGBA{R: b.Pix[i], G: b.Pix[i+1], B: b.Pix[i+2], A: b.Pix[i+3]}
}

func (b *PixelBuffer) Set(x, y int, c color.NRGBA) {
	i := y*b.Stride() + 4*x
	b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3] = c.R, c.G, c.B, c.A
}

// Equal reports whether both buffers have the same dimensions and samples.
func (b *PixelBuffer) Equal(other *PixelBuffer) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Width == other.Width && b.Height == other.Height && bytes.Equal(b.Pix, other.Pix)
}

// Digest is a BLAKE3 hash over the dimensions and samples. Two buffers
// share a digest exactly when Equal holds (barring collisions).
func (b *PixelBuffer) Digest() Digest {
	h := blake3.New()
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[0:4], uint32(b.Width))
	binary.BigEndian.PutUint32(dims[4:8], uint32(b.Height))
	h.Write(dims[:])
	h.Write(b.Pix)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// NRGBA returns a standard library view of a copy of the buffer.
func (b *PixelBuffer) NRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	copy(img.Pix, b.Pix)
	return img
}

// Digest is a 32-byte BLAKE3 content hash of a PixelBuffer.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short returns the first 12 hex characters, enough for display.
func (d Digest) Short() string { return d.String()[:12] }
