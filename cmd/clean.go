package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pngscrub/internal/config"
	"pngscrub/internal/pngcodec"
	"pngscrub/internal/processor"
	"pngscrub/internal/tui"
)

var cleanFlags struct {
	output         string
	keepNames      bool
	allowOverwrite bool
	showMetadata   bool
	keepMetadata   bool
	workers        int
	compression    string
	filter         string
	noVerify       bool
}

var cleanCmd = &cobra.Command{
	Use:   "clean [flags] <file|dir>...",
	Short: "Write metadata-free copies of PNG files",
	Args:  cobra.ArbitraryArgs,
	RunE:  runClean,
}

func addCleanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&cleanFlags.output, "output", "o", "", "export directory (overrides export_path)")
	f.BoolVar(&cleanFlags.keepNames, "keep-names", false, "keep source file names instead of Image<N>.png")
	f.BoolVar(&cleanFlags.allowOverwrite, "allow-overwrite", false, "replace existing files in the export directory")
	f.BoolVar(&cleanFlags.showMetadata, "show-metadata", false, "print each file's metadata before scrubbing")
	f.BoolVar(&cleanFlags.keepMetadata, "keep-metadata", false, "do not write scrubbed copies")
	f.IntVarP(&cleanFlags.workers, "workers", "j", 1, "files processed concurrently")
	f.StringVar(&cleanFlags.compression, "compression", "best", "zlib effort: best, default, fast, none")
	f.StringVar(&cleanFlags.filter, "filter", "adaptive", "scanline filtering: adaptive, none")
	f.BoolVar(&cleanFlags.noVerify, "no-verify", false, "skip re-decoding output to compare pixels")
}

func init() {
	addCleanFlags(cleanCmd)
	rootCmd.AddCommand(cleanCmd)
}

// loadPolicy reads the policy file and applies flags the user set explicitly.
func loadPolicy(cmd *cobra.Command, log zerolog.Logger) (config.Policy, error) {
	policy, created, err := config.Load(configPath)
	if err != nil {
		return config.Policy{}, err
	}
	if created {
		log.Info().Str("path", configPath).Msg("created default config")
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		policy.ExportPath = cleanFlags.output
	}
	if flags.Changed("keep-names") && cleanFlags.keepNames {
		policy.Naming = config.NamingPreserve
	}
	if flags.Changed("allow-overwrite") && cleanFlags.allowOverwrite {
		policy.Overwrite = config.OverwriteAllow
	}
	if flags.Changed("show-metadata") {
		policy.DisplayMetadata = cleanFlags.showMetadata
	}
	if flags.Changed("keep-metadata") {
		policy.RemoveMetadata = !cleanFlags.keepMetadata
	}
	if flags.Changed("workers") {
		policy.Workers = cleanFlags.workers
	}
	if flags.Changed("compression") {
		level, err := pngcodec.ParseCompressionLevel(cleanFlags.compression)
		if err != nil {
			return config.Policy{}, err
		}
		policy.Compression = level
	}
	if flags.Changed("filter") {
		filter, err := pngcodec.ParseFilterStrategy(cleanFlags.filter)
		if err != nil {
			return config.Policy{}, err
		}
		policy.Filter = filter
	}
	if flags.Changed("no-verify") && cleanFlags.noVerify {
		policy.VerifyOutput = false
	}
	return policy, policy.Validate()
}

func runClean(cmd *cobra.Command, args []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	policy, err := loadPolicy(cmd, log)
	if err != nil {
		return err
	}

	paths, warnings := processor.CollectInputs(args, policy.ExportPath)
	for _, w := range warnings {
		log.Warn().Str("path", w.Path).Msg(w.Reason + ", skipping")
	}
	if len(paths) == 0 {
		return errors.New("no valid PNG files were provided")
	}
	log.Info().
		Str("export_path", policy.ExportPath).
		Int("files", len(paths)).
		Int("workers", policy.Workers).
		Msg("processing PNG files")

	opts := processor.DefaultOptions()
	opts.Logger = log

	out := cmd.OutOrStdout()
	var (
		summary processor.Summary
		results []processor.Result
		runErr  error
	)
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if showProgress() {
		updates := make(chan processor.ProgressUpdate, 64)
		program := tea.NewProgram(tui.NewModel(updates, cancel))
		uiDone := make(chan struct{})
		go func() {
			_, _ = program.Run()
			close(uiDone)
		}()
		summary, results, runErr = processor.Run(ctx, paths, policy, opts, updates)
		close(updates)
		<-uiDone
	} else {
		summary, results, runErr = processor.Run(ctx, paths, policy, opts, nil)
	}

	for _, res := range results {
		if res.Metadata != nil {
			fmt.Fprintln(out, tui.RenderReport(*res.Metadata))
		} else if res.MetadataErr != nil {
			log.Error().Str("path", res.Path).Err(res.MetadataErr).Msg("reading metadata failed")
		}
		logResult(log, res)
	}

	fmt.Fprintln(out, tui.RenderSummary(tui.BatchRows(summary)))
	if summary.Processed > 0 {
		outPath := policy.ExportPath
		if abs, absErr := filepath.Abs(outPath); absErr == nil {
			outPath = abs
		}
		fmt.Fprintf(out, "Scrubbed copies written to: %s\n", outPath)
	}
	if runErr != nil {
		log.Warn().Err(runErr).Msg("batch interrupted")
	}
	return nil
}

func logResult(log zerolog.Logger, res processor.Result) {
	switch res.Status() {
	case processor.StatusCreated:
		log.Info().
			Str("path", res.Path).
			Str("output", res.Decision.Path).
			Int("removed", len(res.Dropped)).
			Int64("saved", res.BytesSaved()).
			Msg("created scrubbed copy")
	case processor.StatusSkipped:
		ev := log.Warn().Str("path", res.Path).Str("reason", res.Decision.Reason.String())
		if res.Decision.Path != "" {
			ev = ev.Str("output", res.Decision.Path)
		}
		ev.Msg("skipped")
	default:
		log.Error().Str("path", res.Path).Err(res.Err).Msg("scrub failed")
	}
}

func showProgress() bool {
	return !noProgress && term.IsTerminal(int(os.Stdout.Fd()))
}
