package processor

import (
	"errors"
	"fmt"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// describeExif lists the tags of an eXIf payload, which is a bare TIFF
// structure without the JPEG APP1 wrapper.
func describeExif(entry *MetadataEntry, data []byte) error {
	tags, _, err := exif.GetFlatExifData(data, nil)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			entry.Summary = "no EXIF data"
			return nil
		}
		return err
	}

	gps := 0
	for _, tag := range tags {
		if tag.TagName == "" {
			continue
		}
		if strings.HasPrefix(tag.TagName, "GPS") || strings.Contains(tag.IfdPath, "GPS") {
			gps++
		}
		entry.Fields = append(entry.Fields, Field{Key: tag.TagName, Value: strings.TrimSpace(tag.Formatted)})
	}

	entry.Summary = fmt.Sprintf("%d EXIF tags", len(entry.Fields))
	if gps > 0 {
		entry.Summary += fmt.Sprintf(", %d GPS", gps)
	}
	return nil
}
