package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pngscrub/internal/processor"
	"pngscrub/internal/tui"
)

var scanCmd = &cobra.Command{
	Use:   "scan <file|dir>...",
	Short: "Report PNG metadata and privacy risks without writing anything",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(cmd)
		if err != nil {
			return err
		}

		paths, warnings := processor.CollectInputs(args, "")
		for _, w := range warnings {
			log.Warn().Str("path", w.Path).Msg(w.Reason + ", skipping")
		}
		if len(paths) == 0 {
			return errors.New("no valid PNG files were provided")
		}

		out := cmd.OutOrStdout()
		for i, path := range paths {
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			report, err := processor.ReadMetadata(path)
			if err != nil {
				log.Error().Str("path", path).Err(err).Msg("scan failed")
				continue
			}
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprint(out, tui.RenderReport(report))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
