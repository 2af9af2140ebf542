package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"pngscrub/internal/processor"
)

// Model renders batch progress from a stream of processor updates. It quits
// when the update channel is closed. Ctrl+C calls cancel and keeps
// rendering until the run drains.
type Model struct {
	updates <-chan processor.ProgressUpdate
	cancel  context.CancelFunc
	started time.Time
	width   int

	total         int
	processed     int
	skipped       int
	failed        int
	chunksRemoved int
	bytesSaved    int64
	cancelling    bool
	quitting      bool
}

type doneMsg struct{}

type updateMsg processor.ProgressUpdate

func NewModel(updates <-chan processor.ProgressUpdate, cancel context.CancelFunc) Model {
	return Model{updates: updates, cancel: cancel, started: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.total += msg.TotalDelta
		m.processed += msg.ProcessedDelta
		m.skipped += msg.SkippedDelta
		m.failed += msg.FailedDelta
		m.chunksRemoved += msg.ChunksRemovedDelta
		m.bytesSaved += msg.BytesSavedDelta
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.cancelling {
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) done() int { return m.processed + m.skipped + m.failed }

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = min(60, m.width-10)
		barWidth = max(barWidth, 20)
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = min(float64(m.done())/float64(m.total), 1)
	}

	elapsed := time.Since(m.started).Round(time.Millisecond)
	counts := fmt.Sprintf("  created:%d skipped:%d failed:%d", m.processed, m.skipped, m.failed)

	lines := []string{
		titleStyle.Render("pngscrub"),
		labelStyle.Render(fmt.Sprintf("Files: %d/%d", m.done(), m.total)) + dimStyle.Render(counts),
		labelStyle.Render(fmt.Sprintf("Metadata chunks removed: %d", m.chunksRemoved)),
		labelStyle.Render("Bytes saved: " + signedBytes(m.bytesSaved)),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(renderBar(barWidth, ratio)),
	}
	if m.cancelling {
		lines = append(lines, warnStyle.Render("Cancelling: waiting for running files to finish"))
	}
	return strings.Join(lines, "\n")
}

func listenForUpdates(updates <-chan processor.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(ratio*float64(width) + 0.5)
	filled = max(0, min(filled, width))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

// signedBytes formats a byte delta; growth is shown with a minus sign.
func signedBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.Bytes(uint64(-n))
	}
	return humanize.Bytes(uint64(n))
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorAccentAlt)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
)
