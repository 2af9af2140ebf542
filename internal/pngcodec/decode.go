package pngcodec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Stream is a structurally validated PNG datastream: IHDR first, contiguous
// IDATs, IEND last.
type Stream struct {
	Header Header
	Chunks []Chunk
}

// IDAT returns the image data chunks in stream order.
func (s *Stream) IDAT() []Chunk {
	var out []Chunk
	for _, c := range s.Chunks {
		if c.Type == TypeIDAT {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the first chunk of the given type.
func (s *Stream) Find(t ChunkType) (Chunk, bool) {
	for _, c := range s.Chunks {
		if c.Type == t {
			return c, true
		}
	}
	return Chunk{}, false
}

// MetadataChunks returns every chunk the stripper would drop.
func (s *Stream) MetadataChunks() []Chunk {
	var out []Chunk
	for _, c := range s.Chunks {
		if c.Type.IsMetadata() {
			out = append(out, c)
		}
	}
	return out
}

// DecodeBytes is Decode over an in-memory file.
func DecodeBytes(data []byte, limits Limits) (*Stream, error) {
	return Decode(bytes.NewReader(data), limits)
}

const (
	dsStart = iota
	dsSeenIHDR
	dsSeenIDAT
	dsAfterIDAT
	dsSeenIEND
)

// Decode reads a PNG datastream into its chunk sequence. IDAT payloads are
// kept compressed.
func Decode(r io.Reader, limits Limits) (*Stream, error) {
	br := bufio.NewReader(r)

	sig := make([]byte, len(Signature))
	if _, err := io.ReadFull(br, sig); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, formatErr(KindNotPNG, "file shorter than signature")
		}
		return nil, err
	}
	if string(sig) != Signature {
		return nil, formatErr(KindNotPNG, "signature mismatch")
	}

	s := &Stream{}
	stage := dsStart
	offset := int64(len(Signature))
	var tmp [8]byte

	for stage != dsSeenIEND {
		if _, err := io.ReadFull(br, tmp[:8]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, formatErr(KindMalformed, "missing IEND")
			}
			return nil, err
		}
		length := binary.BigEndian.Uint32(tmp[:4])
		var t ChunkType
		copy(t[:], tmp[4:8])

		if !t.Valid() {
			return nil, chunkErr(KindMalformed, t, offset, "invalid chunk type")
		}
		if length > maxChunkLen {
			return nil, chunkErr(KindMalformed, t, offset, "chunk length exceeds 2^31-1")
		}
		if limits.MaxChunkBytes > 0 && length > limits.MaxChunkBytes {
			return nil, chunkErr(KindTooLarge, t, offset, "chunk exceeds configured limit")
		}

		// Grow with the input rather than trusting the declared length.
		data, err := io.ReadAll(io.LimitReader(br, int64(length)))
		if err != nil {
			return nil, err
		}
		if len(data) != int(length) {
			return nil, chunkErr(KindMalformed, t, offset, "truncated chunk")
		}
		if _, err := io.ReadFull(br, tmp[:4]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, chunkErr(KindMalformed, t, offset, "truncated chunk")
			}
			return nil, err
		}
		c := Chunk{Type: t, Data: data, CRC: binary.BigEndian.Uint32(tmp[:4]), Offset: offset}
		if !c.ChecksumValid() {
			return nil, chunkErr(KindCorruptChunk, t, offset, "CRC mismatch")
		}

		switch {
		case t == TypeIHDR:
			if stage != dsStart {
				return nil, chunkErr(KindMalformed, t, offset, "duplicate IHDR")
			}
			h, err := ParseHeader(data)
			if err != nil {
				return nil, withChunk(err, t, offset)
			}
			s.Header = h
			stage = dsSeenIHDR
		case stage == dsStart:
			return nil, chunkErr(KindMalformed, t, offset, "first chunk is not IHDR")
		case t == TypeIDAT:
			if stage == dsAfterIDAT {
				return nil, chunkErr(KindMalformed, t, offset, "IDAT chunks are not contiguous")
			}
			stage = dsSeenIDAT
		case t == TypeIEND:
			if stage == dsSeenIHDR {
				return nil, chunkErr(KindMalformed, t, offset, "no IDAT before IEND")
			}
			if length != 0 {
				return nil, chunkErr(KindMalformed, t, offset, "IEND carries data")
			}
			stage = dsSeenIEND
		case t == TypePLTE:
			if stage != dsSeenIHDR {
				return nil, chunkErr(KindMalformed, t, offset, "PLTE after IDAT")
			}
		case t.IsCritical():
			return nil, chunkErr(KindMalformed, t, offset, "unknown critical chunk")
		default:
			if stage == dsSeenIDAT {
				stage = dsAfterIDAT
			}
		}

		s.Chunks = append(s.Chunks, c)
		offset += int64(length) + 12
	}

	if _, err := br.ReadByte(); err == nil {
		return nil, formatErrf(KindMalformed, "trailing data after IEND at offset %d", offset)
	} else if !errors.Is(err, io.EOF) {
		return nil, err
	}

	return s, nil
}

func withChunk(err error, t ChunkType, offset int64) error {
	var fe *FormatError
	if errors.As(err, &fe) {
		out := *fe
		out.Chunk = t
		out.Offset = offset
		return &out
	}
	return err
}
