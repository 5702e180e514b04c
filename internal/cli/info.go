package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mathscan/mathscan/internal/imaging"
	"github.com/mathscan/mathscan/internal/ocr"
)

func newLanguagesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List installed Tesseract languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := a.newSession(a.cfg.OCR)
			if err != nil {
				return err
			}
			defer session.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tesseract %s", session.Version())
			if dir := session.DataPath(); dir != "" {
				fmt.Fprintf(out, " (%s)", dir)
			}
			fmt.Fprintln(out)
			for _, lang := range session.AvailableLanguages() {
				fmt.Fprintln(out, lang)
			}
			return nil
		},
	}
}

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported image formats",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(ocr.SupportedFormats(), " "))
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [image-file]",
		Short: "Check that an image can be recognized",
		Long: `Check that an image file exists, has a supported format and decodes.
Prints its dimensions, format and whether its background is dark.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !ocr.ValidateImage(path) {
				return fmt.Errorf("invalid or unsupported image file: %s", path)
			}

			cache := imaging.NewImageCache()
			info, err := imaging.LoadImageInfo(cache, path)
			if err != nil {
				return err
			}
			img, err := cache.Load(path)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %dx%d, background %s, dark=%t\n",
				path, info.Format, info.Width, info.Height,
				imaging.BackgroundColor(img).Hex, imaging.IsDarkBackground(img))
			return nil
		},
	}
}
