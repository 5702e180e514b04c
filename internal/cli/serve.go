package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/mathscan/mathscan/internal/logger"
	"github.com/mathscan/mathscan/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Long: `Serve recognition tools over the Model Context Protocol (JSON-RPC 2.0,
one message per line on stdin/stdout). Logs go to stderr.

Configure it in an MCP client as a stdio server running "mathscan serve".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			workers, _ := cmd.Flags().GetInt("workers")
			queueSize, _ := cmd.Flags().GetInt("queue-size")

			session, err := a.newSession(a.cfg.OCR)
			if err != nil {
				return err
			}
			defer session.Close()

			log := logger.WithComponent("server")
			srv := server.New(session, server.Options{
				Version:   a.version,
				Workers:   workers,
				QueueSize: queueSize,
				Logger:    &log,
			})
			err = srv.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().Int("workers", a.cfg.Workers, "Number of background recognition workers")
	cmd.Flags().Int("queue-size", a.cfg.QueueSize, "Maximum number of queued recognition jobs")
	return cmd
}
