package processor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"pngscrub/internal/pngcodec"
)

// generatorKeys are text keywords written by image generators and editors.
// Keys are matched case-insensitively.
var generatorKeys = []string{
	"Software", "Source", "Comment", "Title", "Description",
	"Generation time", "Generation_time", "parameters", "prompt", "workflow",
}

// sourced is a field value and the chunk it was read from.
type sourced struct {
	value string
	chunk pngcodec.ChunkType
}

// fieldIndex groups field values by key across every metadata chunk.
type fieldIndex map[string][]sourced

func indexFields(entries []MetadataEntry) fieldIndex {
	idx := make(fieldIndex)
	for _, entry := range entries {
		for _, f := range entry.Fields {
			key := strings.TrimSpace(f.Key)
			if key == "" {
				continue
			}
			idx[key] = append(idx[key], sourced{value: strings.TrimSpace(f.Value), chunk: entry.Chunk})
		}
	}
	return idx
}

// first returns the first value stored under key and the chunk holding it.
func (idx fieldIndex) first(key string) (sourced, bool) {
	if list := idx[key]; len(list) > 0 {
		return list[0], true
	}
	return sourced{}, false
}

func (idx fieldIndex) firstFold(key string) (string, sourced, bool) {
	for k, list := range idx {
		if strings.EqualFold(k, key) && len(list) > 0 {
			return k, list[0], true
		}
	}
	return "", sourced{}, false
}

// chunksOf lists, in order of first appearance, the chunks that carry key.
func (idx fieldIndex) chunksOf(keys ...string) []string {
	var out []string
	seen := map[pngcodec.ChunkType]bool{}
	for _, key := range keys {
		for _, v := range idx[key] {
			if v.chunk == (pngcodec.ChunkType{}) || seen[v.chunk] {
				continue
			}
			seen[v.chunk] = true
			out = append(out, v.chunk.String())
		}
	}
	return out
}

func inChunks(chunks []string) string {
	if len(chunks) == 0 {
		return ""
	}
	return " in " + strings.Join(chunks, ", ")
}

func buildInsights(entries []MetadataEntry) []ScanInsight {
	idx := indexFields(entries)
	if len(idx) == 0 {
		return nil
	}

	var insights []ScanInsight
	for _, build := range []func(fieldIndex) []ScanInsight{
		locationInsights,
		deviceInsights,
		timelineInsights,
		identifierInsights,
		generatorInsights,
	} {
		insights = append(insights, build(idx)...)
	}
	return insights
}

func locationInsights(idx fieldIndex) []ScanInsight {
	latRaw, okLat := idx.first("GPSLatitude")
	lonRaw, okLon := idx.first("GPSLongitude")
	if !okLat || !okLon {
		return nil
	}
	lat, okLat := parseDegrees(latRaw.value)
	lon, okLon := parseDegrees(lonRaw.value)
	if !okLat || !okLon {
		return nil
	}
	if ref, ok := idx.first("GPSLatitudeRef"); ok && ref.value == "S" {
		lat = -lat
	}
	if ref, ok := idx.first("GPSLongitudeRef"); ok && ref.value == "W" {
		lon = -lon
	}

	msg := fmt.Sprintf("GPS position %.5f, %.5f%s; coordinates can point to a home or workplace",
		lat, lon, inChunks(idx.chunksOf("GPSLatitude", "GPSLongitude")))
	return []ScanInsight{{Kind: "Location", Message: msg}}
}

func deviceInsights(idx fieldIndex) []ScanInsight {
	var parts []string
	for _, key := range []string{"Make", "Model"} {
		if v, ok := idx.first(key); ok && v.value != "" {
			parts = append(parts, v.value)
		}
	}
	device := strings.Join(parts, " ")
	if device == "" {
		if v, ok := idx.first("CameraModelName"); ok {
			device = v.value
		}
	}
	if device == "" {
		return nil
	}
	msg := fmt.Sprintf("Capture device %q%s", device, inChunks(idx.chunksOf("Make", "Model", "CameraModelName")))
	return []ScanInsight{{Kind: "Device", Message: msg}}
}

// timelineInsights reports EXIF capture times, which carry no zone, and the
// tIME modification stamp, which is UTC.
func timelineInsights(idx fieldIndex) []ScanInsight {
	var out []ScanInsight
	for _, key := range []string{"DateTimeOriginal", "DateTimeDigitized", "DateTime"} {
		if v, ok := idx.first(key); ok && v.value != "" {
			out = append(out, ScanInsight{
				Kind:    "Timeline",
				Message: fmt.Sprintf("%s %s%s, local time of an unknown zone", key, exifDate(v.value), inChunks(idx.chunksOf(key))),
			})
			break
		}
	}
	if v, ok := idx.first("ModifyTime"); ok && v.value != "" {
		out = append(out, ScanInsight{
			Kind:    "Timeline",
			Message: fmt.Sprintf("Last modified %s UTC%s", exifDate(v.value), inChunks(idx.chunksOf("ModifyTime"))),
		})
	}
	return out
}

func identifierInsights(idx fieldIndex) []ScanInsight {
	var keys []string
	for key, vals := range idx {
		if strings.Contains(strings.ToLower(key), "serial") && len(vals) > 0 {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	msg := fmt.Sprintf("Device serial numbers (%s)%s", strings.Join(keys, ", "), inChunks(idx.chunksOf(keys...)))
	return []ScanInsight{{Kind: "Identifier", Message: msg}}
}

func generatorInsights(idx fieldIndex) []ScanInsight {
	var found []string
	for key := range idx {
		for _, g := range generatorKeys {
			if strings.EqualFold(key, g) {
				found = append(found, key)
				break
			}
		}
	}
	if len(found) == 0 {
		return nil
	}
	sort.Strings(found)

	msg := "Generator fields: " + strings.Join(found, ", ")
	if _, tool, ok := idx.firstFold("Software"); ok && tool.value != "" {
		msg = fmt.Sprintf("Created with %s; fields: %s", abbreviate(tool.value, 40), strings.Join(found, ", "))
	}
	msg += inChunks(idx.chunksOf(found...))
	insights := []ScanInsight{{Kind: "Generator", Message: msg}}

	for _, key := range []string{"parameters", "prompt", "Description", "Comment"} {
		if name, v, ok := idx.firstFold(key); ok && v.value != "" {
			insights = append(insights, ScanInsight{
				Kind:    "Prompt",
				Message: fmt.Sprintf("Embedded prompt or settings text (%d chars) in %q%s", len([]rune(v.value)), key, inChunks(idx.chunksOf(name))),
			})
			break
		}
	}
	return insights
}

// parseDegrees reads a coordinate as go-exif formats it: either a plain
// number or up to three rationals for degrees, minutes and seconds.
func parseDegrees(raw string) (float64, bool) {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	parts := strings.Fields(raw)
	if len(parts) == 0 || len(parts) > 3 {
		return 0, false
	}
	deg, scale := 0.0, 1.0
	for _, part := range parts {
		v, ok := parseRational(part)
		if !ok {
			return 0, false
		}
		deg += v / scale
		scale *= 60
	}
	return deg, true
}

func parseRational(part string) (float64, bool) {
	num, den, isFrac := strings.Cut(part, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if !isFrac {
		return n, true
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, false
	}
	return n / d, true
}

// exifDate turns "2024:01:02 03:04:05" into "2024-01-02 03:04:05".
func exifDate(s string) string {
	date, clock, ok := strings.Cut(s, " ")
	if !ok || strings.Count(date, ":") != 2 {
		return s
	}
	return strings.ReplaceAll(date, ":", "-") + " " + clock
}
