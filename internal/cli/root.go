// Package cli implements the mathscan command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mathscan/mathscan/internal/config"
	"github.com/mathscan/mathscan/internal/logger"
	"github.com/mathscan/mathscan/internal/ocr"
)

// app carries what every subcommand needs.
type app struct {
	cfg     *config.Config
	version string

	// sessionOpts are appended to the options derived from cfg.
	sessionOpts []ocr.Option
}

// NewRootCommand builds the command tree. Extra session options are passed
// to every ocr.NewSession call.
func NewRootCommand(cfg *config.Config, version string, opts ...ocr.Option) *cobra.Command {
	a := &app{cfg: cfg, version: version, sessionOpts: opts}

	root := &cobra.Command{
		Use:   "mathscan",
		Short: "mathscan - text and equation recognition with Tesseract",
		Long: `mathscan recognizes text and mathematical notation in images using the
Tesseract OCR engine.

Run "mathscan ocr <image>" for a single image, or "mathscan serve" to expose
recognition as MCP tools over stdin/stdout.

Settings come from MATHSCAN_* environment variables (a .env file in the
working directory is read first) and can be overridden per command.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCommand(a),
		newOCRCommand(a),
		newLanguagesCommand(a),
		newFormatsCommand(),
		newValidateCommand(),
		newCleanCommand(),
	)
	return root
}

// Execute runs the command line with os.Args until it finishes or the
// process receives SIGINT or SIGTERM.
func Execute(cfg *config.Config, version string) error {
	log := logger.WithComponent("cmd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(cfg, version).ExecuteContext(ctx); err != nil {
		log.Debug().Err(err).Msg("Command execution failed")
		return err
	}
	return nil
}

// newSession starts a session for cfg with the app's tessdata location.
func (a *app) newSession(cfg ocr.Config) (*ocr.Session, error) {
	opts := []ocr.Option{ocr.WithDataPath(a.cfg.TessdataPath)}
	opts = append(opts, a.sessionOpts...)
	return ocr.NewSession(cfg, opts...)
}
