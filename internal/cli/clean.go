package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mathscan/mathscan/internal/cleanup"
	"github.com/mathscan/mathscan/internal/logger"
)

func newCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean [directory]",
		Short: "Remove build artifacts and temporary files",
		Long: `Recursively remove unwanted files and directories:
  - Temporary files (*.tmp, *.bak, *~, *.swp)
  - Build directories (build, debug, release, dist, ...)
  - IDE artifacts (.vs, .idea)
  - System files (.DS_Store, Thumbs.db)

Source and project files are preserved. The directory defaults to the
current one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Starting cleanup in: %s\n", root)
			if dryRun {
				fmt.Fprintln(out, "*** DRY RUN MODE - No files will be deleted ***")
			}
			fmt.Fprintln(out)

			log := logger.WithComponent("cleanup")
			sum, err := cleanup.New(cleanup.Options{DryRun: dryRun, Out: out, Logger: &log}).Run(root)
			if err != nil {
				return err
			}
			cleanup.WriteSummary(out, sum)
			if sum.Errors > 0 {
				return fmt.Errorf("%d entries could not be removed", sum.Errors)
			}
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "Show what would be deleted without deleting")
	return cmd
}
