package imgutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectHeader(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   Kind
	}{
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0d"), KindPNG},
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F'}, KindJPEG},
		{"gif", []byte("GIF89a\x01\x00\x01\x00"), KindGIF},
		{"webp", []byte("RIFF\x10\x00\x00\x00WEBP"), KindWebP},
		{"tiff", []byte{0x4d, 0x4d, 0x00, 0x2a, 0, 0, 0, 8}, KindTIFF},
		{"text", []byte("hello, world"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectHeader(tt.header)
			if err != nil {
				t.Fatalf("DetectHeader: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := DetectHeader([]byte{0x89, 'P'}); err == nil {
		t.Fatalf("expected short header error")
	}
}

func TestSniffFileShort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.png")
	if err := os.WriteFile(path, []byte{0x89, 'P', 'N'}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	kind, err := SniffFile(path)
	if err != nil || kind != KindUnknown {
		t.Fatalf("SniffFile = %v, %v", kind, err)
	}
}

func TestHasPNGExtension(t *testing.T) {
	for path, want := range map[string]bool{
		"a.png":         true,
		"dir/PHOTO.PNG": true,
		"b.Png":         true,
		"c.jpg":         false,
		"png":           false,
		"d.png.bak":     false,
	} {
		if got := HasPNGExtension(path); got != want {
			t.Errorf("HasPNGExtension(%q) = %v, want %v", path, got, want)
		}
	}
}
