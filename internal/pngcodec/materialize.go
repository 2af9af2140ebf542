package pngcodec

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Materialize inflates and unfilters the IDAT stream of s and normalizes
// every pixel to 8-bit RGBA. Sixteen-bit samples keep their high byte.
func Materialize(s *Stream, limits Limits) (*PixelBuffer, error) {
	h := s.Header
	width, height := int(h.Width), int(h.Height)
	if limits.MaxPixels > 0 && uint64(h.Width)*uint64(h.Height) > limits.MaxPixels {
		return nil, formatErrf(KindTooLarge, "%dx%d exceeds %d pixels", width, height, limits.MaxPixels)
	}

	conv, err := newConverter(s)
	if err != nil {
		return nil, err
	}

	idat := s.IDAT()
	readers := make([]io.Reader, 0, len(idat))
	for _, c := range idat {
		readers = append(readers, bytes.NewReader(c.Data))
	}
	zr, err := zlib.NewReader(io.MultiReader(readers...))
	if err != nil {
		return nil, &FormatError{Kind: KindCorruptData, Detail: "zlib header", Err: err}
	}
	defer zr.Close()

	buf := NewPixelBuffer(width, height)
	if h.Interlaced() {
		for i, p := range adam7 {
			if err := readPass(zr, conv, buf, p, KindInterlace); err != nil {
				return nil, annotatePass(err, i)
			}
		}
	} else {
		if err := readPass(zr, conv, buf, pass{0, 0, 1, 1}, KindCorruptData); err != nil {
			return nil, err
		}
	}

	// Reading to the end verifies the adler-32 trailer. Surplus
	// decompressed bytes are tolerated.
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return nil, &FormatError{Kind: KindCorruptData, Detail: "zlib stream", Err: err}
	}
	return buf, nil
}

func readPass(r io.Reader, conv *converter, buf *PixelBuffer, p pass, shortKind Kind) error {
	pw, ph := p.size(buf.Width, buf.Height)
	if pw == 0 || ph == 0 {
		return nil
	}
	rowLen := conv.h.rowBytes(pw)
	bpp := conv.h.filterStride()

	// cr and pr hold the current and previous rows; byte 0 is the filter type.
	cr := make([]uint8, 1+rowLen)
	pr := make([]uint8, 1+rowLen)
	for y := 0; y < ph; y++ {
		if _, err := io.ReadFull(r, cr); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return &FormatError{Kind: shortKind, Detail: fmt.Sprintf("not enough pixel data at row %d", y)}
			}
			return &FormatError{Kind: KindCorruptData, Err: err}
		}
		if !unfilter(cr[0], cr[1:], pr[1:], bpp) {
			return formatErrf(KindInvalidFilter, "filter type %d at row %d", cr[0], y)
		}
		conv.row(buf, cr[1:], pw, p, y)
		pr, cr = cr, pr
	}
	return nil
}

func annotatePass(err error, index int) error {
	var fe *FormatError
	if errors.As(err, &fe) && fe.Kind == KindInterlace {
		out := *fe
		out.Detail = fmt.Sprintf("pass %d: %s", index+1, fe.Detail)
		return &out
	}
	return err
}

// converter turns unfiltered scanlines of any colour type and depth into
// RGBA samples.
type converter struct {
	h       Header
	palette []color.NRGBA
	hasKey  bool
	key     [3]uint16
}

func newConverter(s *Stream) (*converter, error) {
	c := &converter{h: s.Header}
	trns, hasTRNS := s.Find(TypetRNS)

	switch c.h.ColorType {
	case Palette:
		plte, ok := s.Find(TypePLTE)
		if !ok {
			return nil, formatErr(KindMissingPalette, "colour type 3 without PLTE")
		}
		n := len(plte.Data)
		if n == 0 || n%3 != 0 || n > 256*3 {
			return nil, chunkErr(KindMalformed, TypePLTE, plte.Offset, fmt.Sprintf("bad palette length %d", n))
		}
		c.palette = make([]color.NRGBA, n/3)
		for i := range c.palette {
			c.palette[i] = color.NRGBA{R: plte.Data[3*i], G: plte.Data[3*i+1], B: plte.Data[3*i+2], A: 0xff}
		}
		if hasTRNS {
			for i := 0; i < len(trns.Data) && i < len(c.palette); i++ {
				c.palette[i].A = trns.Data[i]
			}
		}
	case Gray:
		if hasTRNS && len(trns.Data) >= 2 {
			c.hasKey = true
			c.key[0] = uint16(trns.Data[0])<<8 | uint16(trns.Data[1])
		}
	case RGB:
		if hasTRNS && len(trns.Data) >= 6 {
			c.hasKey = true
			for i := range c.key {
				c.key[i] = uint16(trns.Data[2*i])<<8 | uint16(trns.Data[2*i+1])
			}
		}
	}
	return c, nil
}

// sample extracts sample ch of pixel i at the source bit depth.
func (c *converter) sample(row []uint8, i, ch int) uint16 {
	channels := c.h.ColorType.Channels()
	switch d := int(c.h.BitDepth); d {
	case 8:
		return uint16(row[i*channels+ch])
	case 16:
		j := 2 * (i*channels + ch)
		return uint16(row[j])<<8 | uint16(row[j+1])
	default:
		// Sub-byte depths only occur with one channel.
		bit := i * d
		shift := 8 - d - bit%8
		return uint16(row[bit/8]>>shift) & (1<<d - 1)
	}
}

// scale maps a sample at the source depth onto 0..255.
func (c *converter) scale(v uint16) uint8 {
	switch c.h.BitDepth {
	case 1:
		return uint8(v * 0xff)
	case 2:
		return uint8(v * 0x55)
	case 4:
		return uint8(v * 0x11)
	case 16:
		return uint8(v >> 8)
	default:
		return uint8(v)
	}
}

func (c *converter) row(buf *PixelBuffer, row []uint8, width int, p pass, y int) {
	dy := p.yOffset + y*p.yFactor
	base := dy * buf.Stride()
	for i := 0; i < width; i++ {
		dx := p.xOffset + i*p.xFactor
		out := buf.Pix[base+4*dx : base+4*dx+4]
		switch c.h.ColorType {
		case Gray:
			v := c.sample(row, i, 0)
			g := c.scale(v)
			out[0], out[1], out[2], out[3] = g, g, g, 0xff
			if c.hasKey && v == c.key[0] {
				out[3] = 0
			}
		case RGB:
			r, g, b := c.sample(row, i, 0), c.sample(row, i, 1), c.sample(row, i, 2)
			out[0], out[1], out[2], out[3] = c.scale(r), c.scale(g), c.scale(b), 0xff
			if c.hasKey && r == c.key[0] && g == c.key[1] && b == c.key[2] {
				out[3] = 0
			}
		case Palette:
			idx := int(c.sample(row, i, 0))
			px := color.NRGBA{A: 0xff}
			if idx < len(c.palette) {
				px = c.palette[idx]
			}
			out[0], out[1], out[2], out[3] = px.R, px.G, px.B, px.A
		case GrayAlpha:
			g := c.scale(c.sample(row, i, 0))
			out[0], out[1], out[2], out[3] = g, g, g, c.scale(c.sample(row, i, 1))
		case RGBA:
			for ch := 0; ch < 4; ch++ {
				out[ch] = c.scale(c.sample(row, i, ch))
			}
		}
	}
}
