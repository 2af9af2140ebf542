package pngcodec

import "fmt"

// Kind classifies a FormatError.
type Kind int

const (
	KindNotPNG Kind = iota + 1
	KindCorruptChunk
	KindMalformed
	KindCorruptData
	KindInvalidFilter
	KindMissingPalette
	KindInterlace
	KindTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindNotPNG:
		return "not a PNG"
	case KindCorruptChunk:
		return "corrupt chunk"
	case KindMalformed:
		return "malformed structure"
	case KindCorruptData:
		return "corrupt image data"
	case KindInvalidFilter:
		return "invalid filter"
	case KindMissingPalette:
		return "missing palette"
	case KindInterlace:
		return "interlace decode failure"
	case KindTooLarge:
		return "image too large"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

var (
	ErrNotPNG         = &FormatError{Kind: KindNotPNG}
	ErrCorruptChunk   = &FormatError{Kind: KindCorruptChunk}
	ErrMalformed      = &FormatError{Kind: KindMalformed}
	ErrCorruptData    = &FormatError{Kind: KindCorruptData}
	ErrInvalidFilter  = &FormatError{Kind: KindInvalidFilter}
	ErrMissingPalette = &FormatError{Kind: KindMissingPalette}
	ErrInterlace      = &FormatError{Kind: KindInterlace}
	ErrTooLarge       = &FormatError{Kind: KindTooLarge}
)

// FormatError reports that the input is not a PNG the pipeline can rebuild.
// Chunk and Offset are set when the failure is tied to a specific chunk.
type FormatError struct {
	Kind   Kind
	Chunk  ChunkType
	Offset int64
	Detail string
	Err    error
}

func (e *FormatError) Error() string {
	msg := "png: " + e.Kind.String()
	if e.Chunk != (ChunkType{}) {
		msg += fmt.Sprintf(" (%s chunk at offset %d)", e.Chunk, e.Offset)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is matches any FormatError of the same Kind, so the Err* values work as
// sentinels with errors.Is.
func (e *FormatError) Is(target error) bool {
	other, ok := target.(*FormatError)
	return ok && other.Kind == e.Kind
}

func formatErr(kind Kind, detail string) error {
	return &FormatError{Kind: kind, Detail: detail}
}

func formatErrf(kind Kind, format string, args ...any) error {
	return &FormatError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func chunkErr(kind Kind, c ChunkType, offset int64, detail string) error {
	return &FormatError{Kind: kind, Chunk: c, Offset: offset, Detail: detail}
}
