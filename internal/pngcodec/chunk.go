package pngcodec

import (
	"encoding/binary"
	"hash/crc32"
	"io"
)

// Signature is the fixed 8-byte header of every PNG datastream.
const Signature = "\x89PNG\r\n\x1a\n"

// maxChunkLen is the largest length the PNG format allows (2^31-1).
const maxChunkLen = 0x7fffffff

// ChunkType is the 4-byte ASCII tag of a chunk.
type ChunkType [4]byte

var (
	TypeIHDR = ChunkType{'I', 'H', 'D', 'R'}
	TypePLTE = ChunkType{'P', 'L', 'T', 'E'}
	TypeIDAT = ChunkType{'I', 'D', 'A', 'T'}
	TypeIEND = ChunkType{'I', 'E', 'N', 'D'}

	TypetRNS = ChunkType{'t', 'R', 'N', 'S'}
	TypetEXt = ChunkType{'t', 'E', 'X', 't'}
	TypezTXt = ChunkType{'z', 'T', 'X', 't'}
	TypeiTXt = ChunkType{'i', 'T', 'X', 't'}
	TypetIME = ChunkType{'t', 'I', 'M', 'E'}
	TypegAMA = ChunkType{'g', 'A', 'M', 'A'}
	TypecHRM = ChunkType{'c', 'H', 'R', 'M'}
	TypesRGB = ChunkType{'s', 'R', 'G', 'B'}
	TypeiCCP = ChunkType{'i', 'C', 'C', 'P'}
	TypepHYs = ChunkType{'p', 'H', 'Y', 's'}
	TypeeXIf = ChunkType{'e', 'X', 'I', 'f'}
	TypesBIT = ChunkType{'s', 'B', 'I', 'T'}
	TypebKGD = ChunkType{'b', 'K', 'G', 'D'}
)

// ParseChunkType converts a 4-letter tag. It panics on any other length and
// is meant for constants and tests.
func ParseChunkType(s string) ChunkType {
	if len(s) != 4 {
		panic("pngcodec: chunk type must be 4 bytes: " + s)
	}
	var t ChunkType
	copy(t[:], s)
	return t
}

func (t ChunkType) String() string { return string(t[:]) }

// Valid reports whether every byte is an ASCII letter.
func (t ChunkType) Valid() bool {
	for _, b := range t {
		if !(b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z') {
			return false
		}
	}
	return true
}

// IsCritical reports whether the ancillary bit (bit 5 of the first byte) is clear.
func (t ChunkType) IsCritical() bool { return t[0]&0x20 == 0 }

// IsPrivate reports whether the private bit (bit 5 of the second byte) is set.
func (t ChunkType) IsPrivate() bool { return t[1]&0x20 != 0 }

// IsStructural reports whether the chunk belongs to the set that survives
// stripping: IHDR, IDAT and IEND.
func (t ChunkType) IsStructural() bool {
	return t == TypeIHDR || t == TypeIDAT || t == TypeIEND
}

// IsMetadata reports whether the chunk carries nothing needed to rebuild the
// pixel grid once it has been materialized.
func (t ChunkType) IsMetadata() bool {
	return !t.IsStructural() && t != TypePLTE && t != TypetRNS
}

// Chunk is one length-prefixed, checksummed block of a PNG datastream.
type Chunk struct {
	Type   ChunkType
	Data   []byte
	CRC    uint32
	Offset int64
}

func (c Chunk) Length() int { return len(c.Data) }

// ChecksumValid recomputes the CRC over type and payload.
func (c Chunk) ChecksumValid() bool {
	return chunkCRC(c.Type, c.Data) == c.CRC
}

func chunkCRC(t ChunkType, data []byte) uint32 {
	crc := crc32.NewIEEE()
	crc.Write(t[:])
	crc.Write(data)
	return crc.Sum32()
}

// WriteChunk writes a complete chunk with a freshly computed CRC.
func WriteChunk(w io.Writer, t ChunkType, data []byte) error {
	if len(data) > maxChunkLen {
		return formatErrf(KindTooLarge, "%s chunk of %d bytes", t, len(data))
	}
	var header [8]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(data)))
	copy(header[4:], t[:])
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	var footer [4]byte
	binary.BigEndian.PutUint32(footer[:], chunkCRC(t, data))
	_, err := w.Write(footer[:])
	return err
}

// Limits bounds the memory a single decode may claim.
type Limits struct {
	MaxChunkBytes uint32
	MaxPixels     uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxChunkBytes: maxChunkLen,
		MaxPixels:     1 << 28,
	}
}
