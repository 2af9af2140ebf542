package imgutil

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies an image container by its leading bytes.
type Kind int

const (
	KindUnknown Kind = iota
	KindPNG
	KindJPEG
	KindGIF
	KindWebP
	KindTIFF
)

func (k Kind) String() string {
	switch k {
	case KindPNG:
		return "png"
	case KindJPEG:
		return "jpeg"
	case KindGIF:
		return "gif"
	case KindWebP:
		return "webp"
	case KindTIFF:
		return "tiff"
	default:
		return "unknown"
	}
}

// HeaderSize is the number of bytes DetectHeader needs.
const HeaderSize = 12

var signatures = []struct {
	kind   Kind
	prefix []byte
}{
	{KindPNG, []byte("\x89PNG\r\n\x1a\n")},
	{KindJPEG, []byte{0xff, 0xd8, 0xff}},
	{KindGIF, []byte("GIF87a")},
	{KindGIF, []byte("GIF89a")},
	{KindTIFF, []byte{0x49, 0x49, 0x2a, 0x00}},
	{KindTIFF, []byte{0x4d, 0x4d, 0x00, 0x2a}},
}

var errShortHeader = errors.New("header too short")

// DetectHeader inspects the first bytes of a file for known signatures.
func DetectHeader(header []byte) (Kind, error) {
	if len(header) < 8 {
		return KindUnknown, errShortHeader
	}
	for _, sig := range signatures {
		if bytes.HasPrefix(header, sig.prefix) {
			return sig.kind, nil
		}
	}
	if len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")) {
		return KindWebP, nil
	}
	return KindUnknown, nil
}

// SniffFile reads the start of a file to determine its type. Files shorter
// than a signature are reported as unknown.
func SniffFile(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, err
	}
	defer f.Close()

	return SniffReader(f)
}

func SniffReader(r io.Reader) (Kind, error) {
	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return KindUnknown, err
	}
	kind, err := DetectHeader(header[:n])
	if errors.Is(err, errShortHeader) {
		return KindUnknown, nil
	}
	return kind, err
}

// HasPNGExtension reports whether path ends in .png, ignoring case.
func HasPNGExtension(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".png")
}
