package processor

import (
	"github.com/rs/zerolog"

	"pngscrub/internal/pngcodec"
)

// Options carries per-run settings that are not part of the policy file.
type Options struct {
	Limits pngcodec.Limits
	// Logger receives debug-level pipeline events. The zero value discards them.
	Logger zerolog.Logger

	queue *destinationQueue
}

// DefaultOptions returns decode limits suitable for untrusted input and a
// disabled logger.
func DefaultOptions() Options {
	return Options{Limits: pngcodec.DefaultLimits(), Logger: zerolog.Nop()}
}

// SkipReason explains why a file produced no output.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipExists
	SkipDisabled
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return ""
	case SkipExists:
		return "already exists"
	case SkipDisabled:
		return "metadata removal disabled"
	default:
		return "unknown"
	}
}

// OutputDecision is made once per file before any decoding happens.
type OutputDecision struct {
	Path    string
	Proceed bool
	Reason  SkipReason
}

type Status int

const (
	StatusCreated Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result is the outcome of one file. Err is set on failure; otherwise
// Decision says whether a copy was written.
type Result struct {
	Path     string
	Index    int
	Decision OutputDecision
	Err      error

	Header      pngcodec.Header
	Dropped     []pngcodec.ChunkType
	InputBytes  int64
	OutputBytes int64
	Digest      pngcodec.Digest

	// Metadata is filled when the policy asks for metadata display.
	Metadata    *MetadataReport
	MetadataErr error
}

func (r Result) Status() Status {
	switch {
	case r.Err != nil:
		return StatusFailed
	case r.Decision.Proceed:
		return StatusCreated
	default:
		return StatusSkipped
	}
}

// BytesSaved is the size difference between input and output. It is zero
// unless a copy was written, and negative when the output grew.
func (r Result) BytesSaved() int64 {
	if r.Status() != StatusCreated {
		return 0
	}
	return r.InputBytes - r.OutputBytes
}

type Summary struct {
	Total         int
	Processed     int
	Skipped       int
	Failed        int
	ChunksRemoved int
	BytesSaved    int64
}

func (s *Summary) add(r Result) {
	switch r.Status() {
	case StatusCreated:
		s.Processed++
		s.ChunksRemoved += len(r.Dropped)
		s.BytesSaved += r.BytesSaved()
	case StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

type ProgressUpdate struct {
	TotalDelta         int
	ProcessedDelta     int
	SkippedDelta       int
	FailedDelta        int
	ChunksRemovedDelta int
	BytesSavedDelta    int64
}

func updateFor(r Result) ProgressUpdate {
	switch r.Status() {
	case StatusCreated:
		return ProgressUpdate{
			ProcessedDelta:     1,
			ChunksRemovedDelta: len(r.Dropped),
			BytesSavedDelta:    r.BytesSaved(),
		}
	case StatusSkipped:
		return ProgressUpdate{SkippedDelta: 1}
	default:
		return ProgressUpdate{FailedDelta: 1}
	}
}

// MetadataReport describes the ancillary content of one PNG.
type MetadataReport struct {
	Path        string
	FileSize    int64
	Header      pngcodec.Header
	PixelDigest pngcodec.Digest

	// PixelErr is set when the image data does not decode; PixelDigest is
	// then zero.
	PixelErr error
	Entries  []MetadataEntry
	Insights []ScanInsight
}

// MetadataEntry summarizes one metadata chunk, in stream order.
type MetadataEntry struct {
	Chunk   pngcodec.ChunkType
	Offset  int64
	Size    int
	Summary string
	Fields  []Field
}

// Field is a key/value pair recovered from a chunk payload.
type Field struct {
	Key   string
	Value string
}

type ScanInsight struct {
	Kind    string
	Message string
}
