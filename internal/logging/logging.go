package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const (
	EnvLogLevel   = "PNGSCRUB_LOG_LEVEL"
	EnvLogNoColor = "PNGSCRUB_LOG_NOCOLOR"
)

// Options control logger construction. Zero values mean: info level,
// colour on terminals, format chosen from the sink.
type Options struct {
	// Level is an explicit level, typically from a flag. When empty the
	// environment decides, then info.
	Level   string
	NoColor bool
	// JSON forces machine-readable output even on a terminal.
	JSON bool
}

// New builds the CLI logger. Terminal sinks get zerolog's console writer;
// anything else (pipes, files, CI) gets one JSON object per line.
// Environment variables fill in the level and colour when opts leaves them
// unset.
func New(w io.Writer, opts Options) (zerolog.Logger, error) {
	applyEnvOverrides(&opts)

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := w
	if !opts.JSON && isTerminal(w) {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.Kitchen,
			NoColor:    opts.NoColor,
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func applyEnvOverrides(opts *Options) {
	if strings.TrimSpace(opts.Level) == "" {
		opts.Level = strings.TrimSpace(os.Getenv(EnvLogLevel))
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(EnvLogNoColor))); err == nil && !opts.NoColor {
		opts.NoColor = v
	}
}

// ParseLevel accepts zerolog level names plus "warning" and "off".
// An empty string selects info.
func ParseLevel(raw string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	case "off", "none":
		return zerolog.Disabled, nil
	}
	return zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
