package pngcodec

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/klauspost/compress/zlib"
)

// fixture describes a PNG to synthesize for tests. pixels holds raw
// samples at the header's bit depth: pixels[y][x][channel].
type fixture struct {
	header    Header
	pixels    [][][]uint16
	filter    uint8
	before    []Chunk
	after     []Chunk
	idatSplit int
	// raw, when set, replaces the scanlines derived from pixels.
	raw []byte
}

// packRow packs one scanline of raw samples at the given depth.
func packRow(row [][]uint16, depth int) []byte {
	var out []byte
	switch depth {
	case 8:
		for _, px := range row {
			for _, s := range px {
				out = append(out, byte(s))
			}
		}
	case 16:
		for _, px := range row {
			for _, s := range px {
				out = append(out, byte(s>>8), byte(s))
			}
		}
	default:
		out = make([]byte, (len(row)*depth+7)/8)
		for i, px := range row {
			bit := i * depth
			out[bit/8] |= byte(px[0]) << (8 - depth - bit%8)
		}
	}
	return out
}

// filterRows filters a sequence of scanlines that share one reduced image.
func filterRows(rows [][]byte, ft uint8, bpp int) []byte {
	var out []byte
	prev := make([]byte, 0)
	for _, row := range rows {
		if len(prev) != len(row) {
			prev = make([]byte, len(row))
		}
		line := make([]byte, len(row))
		applyFilter(ft, line, row, prev, bpp)
		out = append(out, ft)
		out = append(out, line...)
		prev = row
	}
	return out
}

func (f fixture) rawStream() []byte {
	h := f.header
	depth := int(h.BitDepth)
	bpp := h.filterStride()
	if !h.Interlaced() {
		rows := make([][]byte, len(f.pixels))
		for y, row := range f.pixels {
			rows[y] = packRow(row, depth)
		}
		return filterRows(rows, f.filter, bpp)
	}

	var out []byte
	width, height := int(h.Width), int(h.Height)
	for _, p := range adam7 {
		pw, ph := p.size(width, height)
		if pw == 0 || ph == 0 {
			continue
		}
		rows := make([][]byte, ph)
		for y := 0; y < ph; y++ {
			reduced := make([][]uint16, pw)
			for x := 0; x < pw; x++ {
				reduced[x] = f.pixels[p.yOffset+y*p.yFactor][p.xOffset+x*p.xFactor]
			}
			rows[y] = packRow(reduced, depth)
		}
		out = append(out, filterRows(rows, f.filter, bpp)...)
	}
	return out
}

func (f fixture) bytes(t *testing.T) []byte {
	t.Helper()

	var z bytes.Buffer
	raw := f.raw
	if raw == nil {
		raw = f.rawStream()
	}
	zw := zlib.NewWriter(&z)
	if _, err := zw.Write(raw); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("deflate close: %v", err)
	}

	var out bytes.Buffer
	out.WriteString(Signature)
	mustWriteChunk(t, &out, TypeIHDR, f.header.Marshal())
	for _, c := range f.before {
		mustWriteChunk(t, &out, c.Type, c.Data)
	}
	data := z.Bytes()
	split := f.idatSplit
	if split <= 0 {
		split = len(data)
	}
	for len(data) > 0 {
		n := split
		if n > len(data) {
			n = len(data)
		}
		mustWriteChunk(t, &out, TypeIDAT, data[:n])
		data = data[n:]
	}
	for _, c := range f.after {
		mustWriteChunk(t, &out, c.Type, c.Data)
	}
	mustWriteChunk(t, &out, TypeIEND, nil)
	return out.Bytes()
}

func mustWriteChunk(t *testing.T, w *bytes.Buffer, ct ChunkType, data []byte) {
	t.Helper()
	if err := WriteChunk(w, ct, data); err != nil {
		t.Fatalf("write %s: %v", ct, err)
	}
}

func chunk(tag string, data []byte) Chunk {
	return Chunk{Type: ParseChunkType(tag), Data: data}
}

// gray8 builds an 8-bit grayscale fixture with a simple gradient.
func gray8(width, height int) fixture {
	pixels := make([][][]uint16, height)
	for y := range pixels {
		pixels[y] = make([][]uint16, width)
		for x := range pixels[y] {
			pixels[y][x] = []uint16{uint16((x*31 + y*17) % 256)}
		}
	}
	return fixture{
		header: Header{Width: uint32(width), Height: uint32(height), BitDepth: 8, ColorType: Gray},
		pixels: pixels,
	}
}

// rgba8 builds an 8-bit RGBA fixture whose samples vary along both axes
// and include translucent and fully transparent pixels.
func rgba8(width, height int) fixture {
	pixels := make([][][]uint16, height)
	for y := range pixels {
		pixels[y] = make([][]uint16, width)
		for x := range pixels[y] {
			pixels[y][x] = []uint16{
				uint16((x * 13) % 256),
				uint16((y * 29) % 256),
				uint16((x*y + 7) % 256),
				uint16((x*3 + y*5) % 256),
			}
		}
	}
	return fixture{
		header: Header{Width: uint32(width), Height: uint32(height), BitDepth: 8, ColorType: RGBA},
		pixels: pixels,
	}
}

func bufferFromRows(rows [][]color.NRGBA) *PixelBuffer {
	buf := NewPixelBuffer(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, c := range row {
			buf.Set(x, y, c)
		}
	}
	return buf
}

// stdlibDecode decodes data with image/png and normalizes it the same way
// Materialize does, as an independent reference.
func stdlibDecode(t *testing.T, data []byte) *PixelBuffer {
	t.Helper()

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("image/png decode: %v", err)
	}
	b := img.Bounds()
	buf := NewPixelBuffer(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			buf.Set(x, y, toNRGBA(img, b.Min.X+x, b.Min.Y+y))
		}
	}
	return buf
}

func toNRGBA(img image.Image, x, y int) color.NRGBA {
	switch m := img.(type) {
	case *image.NRGBA64:
		c := m.NRGBA64At(x, y)
		return color.NRGBA{R: uint8(c.R >> 8), G: uint8(c.G >> 8), B: uint8(c.B >> 8), A: uint8(c.A >> 8)}
	case *image.Gray16:
		g := uint8(m.Gray16At(x, y).Y >> 8)
		return color.NRGBA{R: g, G: g, B: g, A: 0xff}
	default:
		return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	}
}

func mustMaterialize(t *testing.T, data []byte) *PixelBuffer {
	t.Helper()
	s, err := DecodeBytes(data, DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	buf, err := Materialize(s, DefaultLimits())
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	return buf
}
