package pngcodec

import (
	"encoding/binary"
	"fmt"
)

// ColorType is the IHDR colour type field.
type ColorType uint8

const (
	Gray      ColorType = 0
	RGB       ColorType = 2
	Palette   ColorType = 3
	GrayAlpha ColorType = 4
	RGBA      ColorType = 6
)

func (c ColorType) String() string {
	switch c {
	case Gray:
		return "grayscale"
	case RGB:
		return "RGB"
	case Palette:
		return "palette"
	case GrayAlpha:
		return "grayscale+alpha"
	case RGBA:
		return "RGBA"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Channels is the number of samples per pixel as stored in the datastream.
func (c ColorType) Channels() int {
	switch c {
	case Gray, Palette:
		return 1
	case GrayAlpha:
		return 2
	case RGB:
		return 3
	case RGBA:
		return 4
	default:
		return 0
	}
}

func allowedDepths(c ColorType) []uint8 {
	switch c {
	case Gray:
		return []uint8{1, 2, 4, 8, 16}
	case Palette:
		return []uint8{1, 2, 4, 8}
	case RGB, GrayAlpha, RGBA:
		return []uint8{8, 16}
	default:
		return nil
	}
}

const headerLen = 13

// Header is the decoded IHDR payload.
type Header struct {
	Width       uint32
	Height      uint32
	BitDepth    uint8
	ColorType   ColorType
	Compression uint8
	Filter      uint8
	Interlace   uint8
}

func ParseHeader(data []byte) (Header, error) {
	if len(data) != headerLen {
		return Header{}, formatErrf(KindMalformed, "IHDR length %d, want %d", len(data), headerLen)
	}
	h := Header{
		Width:       binary.BigEndian.Uint32(data[0:4]),
		Height:      binary.BigEndian.Uint32(data[4:8]),
		BitDepth:    data[8],
		ColorType:   ColorType(data[9]),
		Compression: data[10],
		Filter:      data[11],
		Interlace:   data[12],
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

func (h Header) Validate() error {
	if h.Width == 0 || h.Height == 0 {
		return formatErr(KindMalformed, "non-positive dimension")
	}
	if h.Width > maxChunkLen || h.Height > maxChunkLen {
		return formatErr(KindMalformed, "dimension exceeds 2^31-1")
	}
	depths := allowedDepths(h.ColorType)
	if depths == nil {
		return formatErrf(KindMalformed, "invalid colour type %d", uint8(h.ColorType))
	}
	valid := false
	for _, d := range depths {
		if d == h.BitDepth {
			valid = true
			break
		}
	}
	if !valid {
		return formatErrf(KindMalformed, "bit depth %d not allowed for %s", h.BitDepth, h.ColorType)
	}
	if h.Compression != 0 {
		return formatErrf(KindMalformed, "compression method %d", h.Compression)
	}
	if h.Filter != 0 {
		return formatErrf(KindMalformed, "filter method %d", h.Filter)
	}
	if h.Interlace > 1 {
		return formatErrf(KindMalformed, "interlace method %d", h.Interlace)
	}
	return nil
}

func (h Header) Marshal() []byte {
	out := make([]byte, headerLen)
	binary.BigEndian.PutUint32(out[0:4], h.Width)
	binary.BigEndian.PutUint32(out[4:8], h.Height)
	out[8] = h.BitDepth
	out[9] = uint8(h.ColorType)
	out[10] = h.Compression
	out[11] = h.Filter
	out[12] = h.Interlace
	return out
}

func (h Header) Interlaced() bool { return h.Interlace == 1 }

// bitsPerPixel is the packed size of one pixel in the datastream.
func (h Header) bitsPerPixel() int {
	return h.ColorType.Channels() * int(h.BitDepth)
}

// filterStride is the byte distance filters use for the "left" neighbour,
// rounded up to one byte for sub-byte depths.
func (h Header) filterStride() int {
	return (h.bitsPerPixel() + 7) / 8
}

// rowBytes is the size of a scanline of the given width without its filter byte.
func (h Header) rowBytes(width int) int {
	return (h.bitsPerPixel()*width + 7) / 8
}

func (h Header) String() string {
	interlace := "non-interlaced"
	if h.Interlaced() {
		interlace = "Adam7"
	}
	return fmt.Sprintf("%dx%d, %d-bit %s, %s", h.Width, h.Height, h.BitDepth, h.ColorType, interlace)
}
