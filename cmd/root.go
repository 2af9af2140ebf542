package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pngscrub/internal/config"
	"pngscrub/internal/logging"
)

var (
	configPath string
	logLevel   string
	logJSON    bool
	noProgress bool
)

var rootCmd = &cobra.Command{
	Use:   "pngscrub [flags] <file|dir>...",
	Short: "pngscrub - strip metadata from PNG images",
	Long: "pngscrub writes a copy of each PNG with every ancillary chunk removed " +
		"(text, timestamps, EXIF, colour profiles, private data) and the pixels, " +
		"alpha included, reproduced exactly.",
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runClean,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "pngscrub:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFileName, "policy file, created with defaults when missing")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error, disabled); overrides "+logging.EnvLogLevel)
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write JSON log lines even on a terminal")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable the live progress display")
	addCleanFlags(rootCmd)
}

// newLogger leaves the level to the environment unless --log-level was given.
func newLogger(cmd *cobra.Command) (zerolog.Logger, error) {
	opts := logging.Options{JSON: logJSON}
	if cmd.Flags().Changed("log-level") {
		opts.Level = logLevel
	}
	return logging.New(os.Stderr, opts)
}
