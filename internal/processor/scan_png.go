package processor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zlib"

	"pngscrub/internal/pngcodec"
)

// maxInflatedText bounds how much of a compressed text or profile chunk is
// inflated for display.
const maxInflatedText = 1 << 20

// ReadMetadata decodes path independently of the scrub pipeline and
// summarizes every metadata chunk it carries. Pixel data that fails to
// decode is recorded in PixelErr; the chunk entries are still returned.
func ReadMetadata(path string) (MetadataReport, error) {
	report := MetadataReport{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return report, &IOError{Op: "read", Path: path, Err: err}
	}
	report.FileSize = int64(len(data))

	limits := pngcodec.DefaultLimits()
	stream, err := pngcodec.DecodeBytes(data, limits)
	if err != nil {
		return report, err
	}
	report.Header = stream.Header

	if buf, err := pngcodec.Materialize(stream, limits); err != nil {
		report.PixelErr = err
	} else {
		report.PixelDigest = buf.Digest()
	}

	for _, c := range stream.MetadataChunks() {
		report.Entries = append(report.Entries, describeChunk(c))
	}
	report.Insights = buildInsights(report.Entries)
	return report, nil
}

func describeChunk(c pngcodec.Chunk) MetadataEntry {
	entry := MetadataEntry{Chunk: c.Type, Offset: c.Offset, Size: c.Length()}

	var err error
	switch c.Type {
	case pngcodec.TypetEXt:
		err = describeText(&entry, c.Data)
	case pngcodec.TypezTXt:
		err = describeCompressedText(&entry, c.Data)
	case pngcodec.TypeiTXt:
		err = describeInternationalText(&entry, c.Data)
	case pngcodec.TypetIME:
		err = describeTime(&entry, c.Data)
	case pngcodec.TypegAMA:
		err = describeGamma(&entry, c.Data)
	case pngcodec.TypecHRM:
		err = describeChromaticity(&entry, c.Data)
	case pngcodec.TypesRGB:
		err = describeRenderingIntent(&entry, c.Data)
	case pngcodec.TypeiCCP:
		err = describeICCProfile(&entry, c.Data)
	case pngcodec.TypepHYs:
		err = describePhysical(&entry, c.Data)
	case pngcodec.TypeeXIf:
		err = describeExif(&entry, c.Data)
	case pngcodec.TypesBIT:
		err = describeSignificantBits(&entry, c.Data)
	case pngcodec.TypebKGD:
		err = describeBackground(&entry, c.Data)
	default:
		kind := "ancillary"
		if c.Type.IsPrivate() {
			kind = "private"
		}
		entry.Summary = fmt.Sprintf("%s chunk, %s", kind, humanize.Bytes(uint64(c.Length())))
	}
	if err != nil {
		entry.Summary = fmt.Sprintf("unreadable (%v), %s", err, humanize.Bytes(uint64(c.Length())))
		entry.Fields = nil
	}
	return entry
}

// splitKeyword splits a Latin-1 keyword (1-79 bytes) from the rest of the payload.
func splitKeyword(data []byte) (string, []byte, error) {
	idx := bytes.IndexByte(data, 0)
	if idx <= 0 || idx > 79 {
		return "", nil, fmt.Errorf("bad keyword")
	}
	return latin1(data[:idx]), data[idx+1:], nil
}

func latin1(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxInflatedText))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func setText(entry *MetadataEntry, key, value string) {
	entry.Fields = append(entry.Fields, Field{Key: key, Value: value})
	entry.Summary = fmt.Sprintf("%s: %s", key, abbreviate(value, 80))
}

func abbreviate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func describeText(entry *MetadataEntry, data []byte) error {
	key, rest, err := splitKeyword(data)
	if err != nil {
		return err
	}
	setText(entry, key, latin1(rest))
	return nil
}

func describeCompressedText(entry *MetadataEntry, data []byte) error {
	key, rest, err := splitKeyword(data)
	if err != nil {
		return err
	}
	if len(rest) < 1 || rest[0] != 0 {
		return fmt.Errorf("unknown compression method")
	}
	text, err := inflate(rest[1:])
	if err != nil {
		return err
	}
	setText(entry, key, latin1(text))
	return nil
}

func describeInternationalText(entry *MetadataEntry, data []byte) error {
	key, rest, err := splitKeyword(data)
	if err != nil {
		return err
	}
	if len(rest) < 2 {
		return fmt.Errorf("truncated")
	}
	compressed, method := rest[0], rest[1]
	rest = rest[2:]

	// language tag, then translated keyword
	for i := 0; i < 2; i++ {
		idx := bytes.IndexByte(rest, 0)
		if idx < 0 {
			return fmt.Errorf("truncated")
		}
		rest = rest[idx+1:]
	}

	text := rest
	if compressed == 1 {
		if method != 0 {
			return fmt.Errorf("unknown compression method")
		}
		if text, err = inflate(rest); err != nil {
			return err
		}
	}
	setText(entry, key, string(text))
	return nil
}

func describeTime(entry *MetadataEntry, data []byte) error {
	if len(data) != 7 {
		return fmt.Errorf("length %d", len(data))
	}
	year := binary.BigEndian.Uint16(data[:2])
	stamp := fmt.Sprintf("%04d:%02d:%02d %02d:%02d:%02d", year, data[2], data[3], data[4], data[5], data[6])
	entry.Fields = []Field{{Key: "ModifyTime", Value: stamp}}
	entry.Summary = "last modified " + exifDate(stamp) + " UTC"
	return nil
}

func describeGamma(entry *MetadataEntry, data []byte) error {
	if len(data) != 4 {
		return fmt.Errorf("length %d", len(data))
	}
	entry.Summary = fmt.Sprintf("gamma %.5f", float64(binary.BigEndian.Uint32(data))/100000)
	return nil
}

func describeChromaticity(entry *MetadataEntry, data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("length %d", len(data))
	}
	v := func(i int) float64 { return float64(binary.BigEndian.Uint32(data[4*i:])) / 100000 }
	entry.Summary = fmt.Sprintf("white (%.4f, %.4f) red (%.4f, %.4f) green (%.4f, %.4f) blue (%.4f, %.4f)",
		v(0), v(1), v(2), v(3), v(4), v(5), v(6), v(7))
	return nil
}

var renderingIntents = []string{"perceptual", "relative colorimetric", "saturation", "absolute colorimetric"}

func describeRenderingIntent(entry *MetadataEntry, data []byte) error {
	if len(data) != 1 || int(data[0]) >= len(renderingIntents) {
		return fmt.Errorf("bad rendering intent")
	}
	entry.Summary = "sRGB, " + renderingIntents[data[0]] + " intent"
	return nil
}

func describeICCProfile(entry *MetadataEntry, data []byte) error {
	name, rest, err := splitKeyword(data)
	if err != nil {
		return err
	}
	if len(rest) < 1 || rest[0] != 0 {
		return fmt.Errorf("unknown compression method")
	}
	profile, err := inflate(rest[1:])
	if err != nil {
		return err
	}
	entry.Fields = []Field{{Key: "ICCProfile", Value: name}}
	entry.Summary = fmt.Sprintf("ICC profile %q, %s", name, humanize.Bytes(uint64(len(profile))))
	return nil
}

func describeSignificantBits(entry *MetadataEntry, data []byte) error {
	if len(data) == 0 || len(data) > 4 {
		return fmt.Errorf("length %d", len(data))
	}
	bits := make([]string, len(data))
	for i, b := range data {
		bits[i] = strconv.Itoa(int(b))
	}
	entry.Summary = "significant bits " + strings.Join(bits, "/")
	return nil
}

// describeBackground reads bKGD, whose layout depends on the colour type:
// a palette index, a gray sample or an RGB triple.
func describeBackground(entry *MetadataEntry, data []byte) error {
	switch len(data) {
	case 1:
		entry.Summary = fmt.Sprintf("background palette index %d", data[0])
	case 2:
		entry.Summary = fmt.Sprintf("background gray %d", binary.BigEndian.Uint16(data))
	case 6:
		entry.Summary = fmt.Sprintf("background rgb(%d, %d, %d)",
			binary.BigEndian.Uint16(data[0:2]), binary.BigEndian.Uint16(data[2:4]), binary.BigEndian.Uint16(data[4:6]))
	default:
		return fmt.Errorf("length %d", len(data))
	}
	return nil
}

func describePhysical(entry *MetadataEntry, data []byte) error {
	if len(data) != 9 {
		return fmt.Errorf("length %d", len(data))
	}
	x := binary.BigEndian.Uint32(data[0:4])
	y := binary.BigEndian.Uint32(data[4:8])
	if data[8] == 1 {
		entry.Summary = fmt.Sprintf("%.0f x %.0f dpi", float64(x)*0.0254, float64(y)*0.0254)
	} else {
		entry.Summary = fmt.Sprintf("pixel aspect %d:%d", x, y)
	}
	return nil
}
