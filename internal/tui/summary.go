package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"pngscrub/internal/pngcodec"
	"pngscrub/internal/processor"
)

type SummaryRow struct {
	Label string
	Value string
}

// BatchRows lays out the end-of-run totals.
func BatchRows(s processor.Summary) []SummaryRow {
	return []SummaryRow{
		{Label: "Files", Value: strconv.Itoa(s.Total)},
		{Label: "Created", Value: strconv.Itoa(s.Processed)},
		{Label: "Skipped", Value: strconv.Itoa(s.Skipped)},
		{Label: "Failed", Value: strconv.Itoa(s.Failed)},
		{Label: "Metadata chunks removed", Value: strconv.Itoa(s.ChunksRemoved)},
		{Label: "Bytes saved", Value: signedBytes(s.BytesSaved)},
	}
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, lipgloss.Width(row.Label))
		valueWidth = max(valueWidth, lipgloss.Width(row.Value))
	}

	hline := dimStyle.Render(strings.Repeat("-", labelWidth+valueWidth+3))
	lines := []string{hline}
	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		lines = append(lines, fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value)))
	}
	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// RenderReport formats a metadata report for the scan command and for
// display_metadata output.
func RenderReport(r processor.MetadataReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(r.Path))
	b.WriteString("\n")
	pixels := "pixels " + r.PixelDigest.Short()
	if r.PixelErr != nil {
		pixels = "pixels unreadable: " + r.PixelErr.Error()
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("PNG, %s, %s, %s",
		r.Header, humanize.Bytes(uint64(r.FileSize)), pixels)))
	b.WriteString("\n")

	if len(r.Entries) == 0 {
		b.WriteString(cleanStyle.Render("no metadata chunks"))
		b.WriteString("\n")
		return b.String()
	}
	for _, e := range r.Entries {
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			chunkStyle.Render(e.Chunk.String()),
			labelStyle.Render(e.Summary),
			dimStyle.Render(fmt.Sprintf("@%d", e.Offset))))
		if e.Chunk == pngcodec.TypeeXIf {
			for _, f := range e.Fields {
				b.WriteString(dimStyle.Render(fmt.Sprintf("      %s = %s", f.Key, f.Value)))
				b.WriteString("\n")
			}
		}
	}
	for _, in := range r.Insights {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  ! %s: %s", in.Kind, in.Message)))
		b.WriteString("\n")
	}
	return b.String()
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

var (
	valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
	chunkStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	cleanStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	warnStyle  = lipgloss.NewStyle().Foreground(ColorWarn)
)
