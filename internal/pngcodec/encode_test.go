package pngcodec

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
)

// allMetadata is one chunk of every ancillary kind the stripper must drop.
func allMetadata() []Chunk {
	return []Chunk{
		chunk("tEXt", []byte("Software\x00NovelAI")),
		chunk("zTXt", []byte("Comment\x00\x00\x78\x9c\x03\x00\x00\x00\x00\x01")),
		chunk("iTXt", []byte("Description\x00\x00\x00\x00\x00hello")),
		chunk("tIME", []byte{0x07, 0xe8, 1, 2, 3, 4, 5}),
		chunk("gAMA", []byte{0, 0, 0xb1, 0x8f}),
		chunk("cHRM", make([]byte, 32)),
		chunk("sRGB", []byte{0}),
		chunk("iCCP", []byte("icc\x00\x00\x78\x9c\x03\x00\x00\x00\x00\x01")),
		chunk("pHYs", []byte{0, 0, 0x0b, 0x13, 0, 0, 0x0b, 0x13, 1}),
		chunk("eXIf", []byte{0x49, 0x49, 0x2a, 0x00, 8, 0, 0, 0, 0, 0}),
		chunk("prVt", []byte("application private")),
	}
}

func scrub(t *testing.T, data []byte, enc *Encoder) ([]byte, *PixelBuffer, StripResult) {
	t.Helper()
	s, err := DecodeBytes(data, DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	buf, err := Materialize(s, DefaultLimits())
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	res := Strip(s)
	var out bytes.Buffer
	if err := enc.Encode(&out, buf, res.Retained); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return out.Bytes(), buf, res
}

func TestEncodeRoundTripAllColorTypes(t *testing.T) {
	for _, tc := range materializeCases() {
		for interlace := uint8(0); interlace <= 1; interlace++ {
			t.Run(tc.name, func(t *testing.T) {
				f := tc.fixture(ftSub, interlace)
				f.before = append(append([]Chunk{}, f.before...), allMetadata()...)
				out, src, _ := scrub(t, f.bytes(t), NewEncoder())

				got := mustMaterialize(t, out)
				if !got.Equal(src) {
					t.Fatalf("round trip changed pixels\n got: %v\nwant: %v", got.Pix, src.Pix)
				}
				if ref := stdlibDecode(t, out); !ref.Equal(src) {
					t.Fatalf("image/png reads different pixels from output")
				}
			})
		}
	}
}

func TestEncodeOutputIsMinimal(t *testing.T) {
	f := rgba8(40, 30)
	f.before = allMetadata()
	f.after = []Chunk{chunk("tIME", []byte{0x07, 0xe8, 1, 2, 3, 4, 5})}
	enc := &Encoder{Level: CompressionNone, Filter: FilterNone, MaxIDATBytes: 256}
	out, _, res := scrub(t, f.bytes(t), enc)

	if res.DroppedCount() != len(allMetadata())+1 {
		t.Fatalf("dropped %d chunks: %v", res.DroppedCount(), res.Dropped)
	}

	s, err := DecodeBytes(out, DefaultLimits())
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	idats := 0
	for i, c := range s.Chunks {
		switch {
		case i == 0 && c.Type == TypeIHDR:
		case i == len(s.Chunks)-1 && c.Type == TypeIEND:
		case c.Type == TypeIDAT:
			idats++
			if c.Length() > 256 {
				t.Fatalf("IDAT of %d bytes exceeds limit", c.Length())
			}
		default:
			t.Fatalf("unexpected %s chunk at position %d", c.Type, i)
		}
	}
	if idats < 2 {
		t.Fatalf("expected the stream to be split across IDAT chunks, got %d", idats)
	}
	want := Header{Width: 40, Height: 30, BitDepth: 8, ColorType: RGBA}
	if s.Header != want {
		t.Fatalf("header = %+v, want %+v", s.Header, want)
	}
}

func TestEncodeChecksumsVerifyIndependently(t *testing.T) {
	f := gray8(16, 16)
	f.before = allMetadata()
	out, _, _ := scrub(t, f.bytes(t), NewEncoder())

	if string(out[:len(Signature)]) != Signature {
		t.Fatalf("missing signature")
	}
	for off := len(Signature); off < len(out); {
		length := int(binary.BigEndian.Uint32(out[off : off+4]))
		body := out[off+4 : off+8+length]
		stored := binary.BigEndian.Uint32(out[off+8+length : off+12+length])
		if crc32.ChecksumIEEE(body) != stored {
			t.Fatalf("chunk %q at %d has bad CRC", body[:4], off)
		}
		off += 12 + length
	}
}

func TestEncodeIdempotent(t *testing.T) {
	f := rgba8(12, 9)
	f.before = allMetadata()
	first, src, _ := scrub(t, f.bytes(t), NewEncoder())
	second, again, res := scrub(t, first, NewEncoder())

	if !src.Equal(again) {
		t.Fatalf("second pass changed pixels")
	}
	if src.Digest() != again.Digest() {
		t.Fatalf("digests differ: %s vs %s", src.Digest(), again.Digest())
	}
	if res.DroppedCount() != 0 {
		t.Fatalf("second pass dropped %v", res.Dropped)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("second pass produced different bytes")
	}
}

func TestEncodeFilterStrategiesAgree(t *testing.T) {
	f := rgba8(33, 17)
	data := f.bytes(t)
	for _, strategy := range []FilterStrategy{FilterAdaptive, FilterNone} {
		for _, level := range []CompressionLevel{CompressionBest, CompressionDefault, CompressionFast, CompressionNone} {
			t.Run(strategy.String()+"/"+level.String(), func(t *testing.T) {
				out, src, _ := scrub(t, data, &Encoder{Level: level, Filter: strategy})
				if got := mustMaterialize(t, out); !got.Equal(src) {
					t.Fatalf("pixels changed")
				}
			})
		}
	}
}

func TestEncodeRejectsMismatchedRetainedSet(t *testing.T) {
	s, err := DecodeBytes(gray8(4, 4).bytes(t), DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	res := Strip(s)
	enc := NewEncoder()

	if err := enc.Encode(&bytes.Buffer{}, NewPixelBuffer(5, 4), res.Retained); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
	if err := enc.Encode(&bytes.Buffer{}, NewPixelBuffer(4, 4), res.Retained[1:]); err == nil {
		t.Fatalf("expected missing IHDR error")
	}
	withText := append([]Chunk{res.Retained[0], chunk("tEXt", []byte("a\x00b"))}, res.Retained[1:]...)
	if err := enc.Encode(&bytes.Buffer{}, NewPixelBuffer(4, 4), withText); err == nil {
		t.Fatalf("expected metadata in retained set to be rejected")
	}
}

func TestParseEncoderOptions(t *testing.T) {
	for _, name := range []string{"best", "default", "fast", "none"} {
		level, err := ParseCompressionLevel(name)
		if err != nil {
			t.Fatalf("ParseCompressionLevel(%q): %v", name, err)
		}
		if level.String() != name {
			t.Errorf("roundtrip: %q -> %q", name, level.String())
		}
	}
	if _, err := ParseCompressionLevel("maximum"); err == nil {
		t.Errorf("expected unknown level to fail")
	}
	for _, name := range []string{"adaptive", "none"} {
		f, err := ParseFilterStrategy(name)
		if err != nil || f.String() != name {
			t.Errorf("ParseFilterStrategy(%q) = %v, %v", name, f, err)
		}
	}
}
