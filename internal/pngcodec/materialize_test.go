package pngcodec

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"testing"
)

func px(samples ...uint16) []uint16 { return samples }

func opaque(r, g, b uint8) color.NRGBA { return color.NRGBA{R: r, G: g, B: b, A: 0xff} }

func grayPx(v uint8, a uint8) color.NRGBA { return color.NRGBA{R: v, G: v, B: v, A: a} }

type materializeCase struct {
	name   string
	ct     ColorType
	depth  uint8
	extra  []Chunk
	pixels [][][]uint16
	want   [][]color.NRGBA
}

func materializeCases() []materializeCase {
	return []materializeCase{
		{
			name: "gray1", ct: Gray, depth: 1,
			pixels: [][][]uint16{{px(1), px(0), px(1)}, {px(0), px(1), px(0)}},
			want: [][]color.NRGBA{
				{grayPx(255, 255), grayPx(0, 255), grayPx(255, 255)},
				{grayPx(0, 255), grayPx(255, 255), grayPx(0, 255)},
			},
		},
		{
			name: "gray2", ct: Gray, depth: 2,
			pixels: [][][]uint16{{px(0), px(1), px(2), px(3)}},
			want:   [][]color.NRGBA{{grayPx(0, 255), grayPx(85, 255), grayPx(170, 255), grayPx(255, 255)}},
		},
		{
			name: "gray4-trns", ct: Gray, depth: 4,
			extra:  []Chunk{chunk("tRNS", []byte{0, 5})},
			pixels: [][][]uint16{{px(0), px(5), px(15)}},
			want:   [][]color.NRGBA{{grayPx(0, 255), grayPx(85, 0), grayPx(255, 255)}},
		},
		{
			name: "gray8", ct: Gray, depth: 8,
			pixels: [][][]uint16{{px(7), px(128)}, {px(255), px(0)}},
			want:   [][]color.NRGBA{{grayPx(7, 255), grayPx(128, 255)}, {grayPx(255, 255), grayPx(0, 255)}},
		},
		{
			name: "gray16-trns", ct: Gray, depth: 16,
			extra:  []Chunk{chunk("tRNS", []byte{0x12, 0x34})},
			pixels: [][][]uint16{{px(0x1234), px(0x12ff)}},
			want:   [][]color.NRGBA{{grayPx(0x12, 0), grayPx(0x12, 255)}},
		},
		{
			name: "rgb8-trns", ct: RGB, depth: 8,
			extra: []Chunk{chunk("tRNS", []byte{0, 10, 0, 20, 0, 30})},
			pixels: [][][]uint16{
				{px(10, 20, 30), px(1, 2, 3)},
				{px(255, 0, 0), px(10, 20, 31)},
			},
			want: [][]color.NRGBA{
				{{R: 10, G: 20, B: 30, A: 0}, opaque(1, 2, 3)},
				{opaque(255, 0, 0), opaque(10, 20, 31)},
			},
		},
		{
			name: "rgb16", ct: RGB, depth: 16,
			pixels: [][][]uint16{{px(0xabcd, 0x0102, 0xffff)}, {px(0x00ff, 0x8000, 0x7fff)}},
			want:   [][]color.NRGBA{{opaque(0xab, 0x01, 0xff)}, {opaque(0x00, 0x80, 0x7f)}},
		},
		{
			name: "palette1", ct: Palette, depth: 1,
			extra:  []Chunk{chunk("PLTE", []byte{255, 0, 0, 0, 0, 255})},
			pixels: [][][]uint16{{px(0), px(1), px(0)}},
			want:   [][]color.NRGBA{{opaque(255, 0, 0), opaque(0, 0, 255), opaque(255, 0, 0)}},
		},
		{
			name: "palette2-trns-out-of-range", ct: Palette, depth: 2,
			extra: []Chunk{
				chunk("PLTE", []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}),
				chunk("tRNS", []byte{128}),
			},
			pixels: [][][]uint16{{px(0), px(1), px(2), px(3)}},
			want: [][]color.NRGBA{{
				{R: 1, G: 2, B: 3, A: 128}, opaque(4, 5, 6), opaque(7, 8, 9), opaque(0, 0, 0),
			}},
		},
		{
			name: "palette4", ct: Palette, depth: 4,
			extra:  []Chunk{chunk("PLTE", []byte{10, 20, 30, 40, 50, 60})},
			pixels: [][][]uint16{{px(1), px(0)}, {px(0), px(1)}},
			want: [][]color.NRGBA{
				{opaque(40, 50, 60), opaque(10, 20, 30)},
				{opaque(10, 20, 30), opaque(40, 50, 60)},
			},
		},
		{
			name: "palette8-trns", ct: Palette, depth: 8,
			extra: []Chunk{
				chunk("PLTE", []byte{9, 9, 9, 200, 100, 50}),
				chunk("tRNS", []byte{0, 64}),
			},
			pixels: [][][]uint16{{px(0), px(1)}},
			want:   [][]color.NRGBA{{{R: 9, G: 9, B: 9, A: 0}, {R: 200, G: 100, B: 50, A: 64}}},
		},
		{
			name: "grayalpha8", ct: GrayAlpha, depth: 8,
			pixels: [][][]uint16{{px(40, 0), px(200, 255)}},
			want:   [][]color.NRGBA{{grayPx(40, 0), grayPx(200, 255)}},
		},
		{
			name: "grayalpha16", ct: GrayAlpha, depth: 16,
			pixels: [][][]uint16{{px(0x8081, 0x4000)}},
			want:   [][]color.NRGBA{{grayPx(0x80, 0x40)}},
		},
		{
			name: "rgba8", ct: RGBA, depth: 8,
			pixels: [][][]uint16{{px(1, 2, 3, 4), px(250, 251, 252, 0)}},
			want:   [][]color.NRGBA{{{R: 1, G: 2, B: 3, A: 4}, {R: 250, G: 251, B: 252, A: 0}}},
		},
		{
			name: "rgba16", ct: RGBA, depth: 16,
			pixels: [][][]uint16{{px(0x1111, 0x2222, 0x3333, 0x4444)}},
			want:   [][]color.NRGBA{{{R: 0x11, G: 0x22, B: 0x33, A: 0x44}}},
		},
	}
}

func (c materializeCase) fixture(filter uint8, interlace uint8) fixture {
	return fixture{
		header: Header{
			Width:     uint32(len(c.pixels[0])),
			Height:    uint32(len(c.pixels)),
			BitDepth:  c.depth,
			ColorType: c.ct,
			Interlace: interlace,
		},
		pixels: c.pixels,
		filter: filter,
		before: c.extra,
	}
}

func TestMaterializeColorTypes(t *testing.T) {
	for _, tc := range materializeCases() {
		for interlace := uint8(0); interlace <= 1; interlace++ {
			for ft := uint8(ftNone); ft < nFilter; ft++ {
				name := fmt.Sprintf("%s/interlace=%d/filter=%d", tc.name, interlace, ft)
				t.Run(name, func(t *testing.T) {
					data := tc.fixture(ft, interlace).bytes(t)
					got := mustMaterialize(t, data)
					want := bufferFromRows(tc.want)
					if !got.Equal(want) {
						t.Fatalf("pixels mismatch\n got: %v\nwant: %v", got.Pix, want.Pix)
					}
					if ref := stdlibDecode(t, data); !got.Equal(ref) {
						t.Fatalf("disagrees with image/png\n got: %v\n ref: %v", got.Pix, ref.Pix)
					}
				})
			}
		}
	}
}

func TestMaterializeInterlacedMatchesStdlib(t *testing.T) {
	bit := fixture{
		header: Header{Width: 9, Height: 10, BitDepth: 1, ColorType: Gray, Interlace: 1},
	}
	for y := 0; y < 10; y++ {
		row := make([][]uint16, 9)
		for x := range row {
			row[x] = px(uint16((x + y) % 2))
		}
		bit.pixels = append(bit.pixels, row)
	}

	color8 := rgba8(17, 11)
	color8.header.Interlace = 1
	color8.filter = ftPaeth

	for name, f := range map[string]fixture{"gray1": bit, "rgba8": color8} {
		t.Run(name, func(t *testing.T) {
			data := f.bytes(t)
			got := mustMaterialize(t, data)
			if ref := stdlibDecode(t, data); !got.Equal(ref) {
				t.Fatalf("interlaced decode disagrees with image/png")
			}
		})
	}
}

func TestMaterializeSplitIDAT(t *testing.T) {
	f := rgba8(20, 20)
	f.filter = ftAverage
	whole := mustMaterialize(t, f.bytes(t))

	f.idatSplit = 7
	split := mustMaterialize(t, f.bytes(t))
	if !whole.Equal(split) {
		t.Fatalf("IDAT split changed pixels")
	}
}

func TestMaterializeErrors(t *testing.T) {
	gray := gray8(4, 3)

	badFilter := gray
	badFilter.raw = append([]byte{5}, make([]byte, 4)...)
	badFilter.raw = append(badFilter.raw, make([]byte, 10)...)

	short := gray
	short.raw = []byte{0, 1, 2, 3, 4}

	interlacedShort := gray
	interlacedShort.header.Interlace = 1
	interlacedShort.raw = []byte{0, 1}

	noPalette := fixture{
		header: Header{Width: 1, Height: 1, BitDepth: 8, ColorType: Palette},
		raw:    []byte{0, 0},
	}

	tests := []struct {
		name string
		data func(t *testing.T) []byte
		want error
	}{
		{"invalid filter", badFilter.bytes, ErrInvalidFilter},
		{"short data", short.bytes, ErrCorruptData},
		{"short interlaced data", interlacedShort.bytes, ErrInterlace},
		{"missing palette", noPalette.bytes, ErrMissingPalette},
		{"not zlib", func(t *testing.T) []byte { return rawIDAT(t, gray.header, []byte("definitely not zlib")) }, ErrCorruptData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := DecodeBytes(tt.data(t), DefaultLimits())
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			_, err = Materialize(s, DefaultLimits())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestMaterializePixelLimit(t *testing.T) {
	s, err := DecodeBytes(gray8(10, 10).bytes(t), DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	_, err = Materialize(s, Limits{MaxPixels: 99})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected too large, got %v", err)
	}
}

// rawIDAT builds a PNG whose single IDAT holds payload verbatim.
func rawIDAT(t *testing.T, h Header, payload []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	out.WriteString(Signature)
	mustWriteChunk(t, &out, TypeIHDR, h.Marshal())
	mustWriteChunk(t, &out, TypeIDAT, payload)
	mustWriteChunk(t, &out, TypeIEND, nil)
	return out.Bytes()
}
