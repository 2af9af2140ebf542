package pngcodec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// FilterStrategy selects how the encoder filters scanlines.
type FilterStrategy int

const (
	FilterAdaptive FilterStrategy = iota
	FilterNone
)

func (f FilterStrategy) String() string {
	switch f {
	case FilterAdaptive:
		return "adaptive"
	case FilterNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

func ParseFilterStrategy(name string) (FilterStrategy, error) {
	switch name {
	case "adaptive":
		return FilterAdaptive, nil
	case "none":
		return FilterNone, nil
	default:
		return 0, fmt.Errorf("unknown filter strategy: %q", name)
	}
}

// CompressionLevel is a zlib effort level.
type CompressionLevel int

const (
	CompressionBest    CompressionLevel = zlib.BestCompression
	CompressionDefault CompressionLevel = zlib.DefaultCompression
	CompressionFast    CompressionLevel = zlib.BestSpeed
	CompressionNone    CompressionLevel = zlib.NoCompression
)

func (l CompressionLevel) String() string {
	switch l {
	case CompressionBest:
		return "best"
	case CompressionDefault:
		return "default"
	case CompressionFast:
		return "fast"
	case CompressionNone:
		return "none"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

func ParseCompressionLevel(name string) (CompressionLevel, error) {
	switch name {
	case "best":
		return CompressionBest, nil
	case "default":
		return CompressionDefault, nil
	case "fast":
		return CompressionFast, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("unknown compression level: %q", name)
	}
}

const DefaultMaxIDATBytes = 1 << 16

// Encoder serializes a PixelBuffer as a minimal non-interlaced 8-bit RGBA
// PNG. The zero value filters adaptively but stores deflate blocks
// uncompressed; scrubbed output uses NewEncoder.
type Encoder struct {
	Level        CompressionLevel
	Filter       FilterStrategy
	MaxIDATBytes int
}

// NewEncoder returns the encoder used for scrubbed output: highest zlib
// effort, adaptive filtering, 64 KiB IDAT chunks.
func NewEncoder() *Encoder {
	return &Encoder{Level: CompressionBest, Filter: FilterAdaptive, MaxIDATBytes: DefaultMaxIDATBytes}
}

// Encode writes buf as a PNG. retained must be the structural chunk set
// produced by Strip for the stream buf was materialized from; its IHDR
// must describe the same dimensions.
func (e *Encoder) Encode(w io.Writer, buf *PixelBuffer, retained []Chunk) error {
	if err := checkRetained(buf, retained); err != nil {
		return err
	}
	return e.EncodePixels(w, buf)
}

// EncodePixels writes buf without consulting a source chunk list.
func (e *Encoder) EncodePixels(w io.Writer, buf *PixelBuffer) error {
	if buf.Width <= 0 || buf.Height <= 0 {
		return fmt.Errorf("pngcodec: cannot encode %dx%d image", buf.Width, buf.Height)
	}
	if len(buf.Pix) != 4*buf.Width*buf.Height {
		return fmt.Errorf("pngcodec: pixel buffer holds %d bytes, want %d", len(buf.Pix), 4*buf.Width*buf.Height)
	}

	bw := bufio.NewWriter(w)
	if _, err := io.WriteString(bw, Signature); err != nil {
		return err
	}

	h := Header{
		Width:     uint32(buf.Width),
		Height:    uint32(buf.Height),
		BitDepth:  8,
		ColorType: RGBA,
	}
	if err := WriteChunk(bw, TypeIHDR, h.Marshal()); err != nil {
		return err
	}

	limit := e.MaxIDATBytes
	if limit <= 0 {
		limit = DefaultMaxIDATBytes
	}
	iw := &idatWriter{w: bw, max: limit}
	zw, err := zlib.NewWriterLevel(iw, int(e.Level))
	if err != nil {
		return err
	}
	if err := e.writeRows(zw, buf); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := iw.Flush(); err != nil {
		return err
	}

	if err := WriteChunk(bw, TypeIEND, nil); err != nil {
		return err
	}
	return bw.Flush()
}

func (e *Encoder) writeRows(w io.Writer, buf *PixelBuffer) error {
	const bpp = 4
	stride := buf.Stride()
	prev := make([]uint8, stride)
	line := make([]uint8, 1+stride)

	var scratch [][]uint8
	if e.Filter == FilterAdaptive {
		scratch = make([][]uint8, nFilter)
		for i := range scratch {
			scratch[i] = make([]uint8, stride)
		}
	}

	for y := 0; y < buf.Height; y++ {
		cur := buf.Row(y)
		if e.Filter == FilterAdaptive {
			ft, out := chooseFilter(scratch, cur, prev, bpp)
			line[0] = ft
			copy(line[1:], out)
		} else {
			line[0] = ftNone
			copy(line[1:], cur)
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
		prev = cur
	}
	return nil
}

func checkRetained(buf *PixelBuffer, retained []Chunk) error {
	if len(retained) < 3 {
		return fmt.Errorf("pngcodec: retained chunk set has %d chunks, want IHDR, IDAT and IEND", len(retained))
	}
	if retained[0].Type != TypeIHDR {
		return fmt.Errorf("pngcodec: retained chunk set starts with %s", retained[0].Type)
	}
	if last := retained[len(retained)-1].Type; last != TypeIEND {
		return fmt.Errorf("pngcodec: retained chunk set ends with %s", last)
	}
	for _, c := range retained[1 : len(retained)-1] {
		if c.Type != TypeIDAT {
			return fmt.Errorf("pngcodec: %s chunk in retained set", c.Type)
		}
	}
	h, err := ParseHeader(retained[0].Data)
	if err != nil {
		return err
	}
	if int(h.Width) != buf.Width || int(h.Height) != buf.Height {
		return fmt.Errorf("pngcodec: header is %dx%d but pixels are %dx%d", h.Width, h.Height, buf.Width, buf.Height)
	}
	return nil
}

// idatWriter packs the compressed stream into IDAT chunks of at most max bytes.
type idatWriter struct {
	w   io.Writer
	max int
	buf bytes.Buffer
}

func (iw *idatWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		room := iw.max - iw.buf.Len()
		if room > len(p) {
			room = len(p)
		}
		iw.buf.Write(p[:room])
		p = p[room:]
		if iw.buf.Len() == iw.max {
			if err := iw.Flush(); err != nil {
				return 0, err
			}
		}
	}
	return n, nil
}

// Flush emits any buffered bytes as one IDAT chunk.
func (iw *idatWriter) Flush() error {
	if iw.buf.Len() == 0 {
		return nil
	}
	err := WriteChunk(iw.w, TypeIDAT, iw.buf.Bytes())
	iw.buf.Reset()
	return err
}
