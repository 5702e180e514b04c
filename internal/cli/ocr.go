package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mathscan/mathscan/internal/export"
	"github.com/mathscan/mathscan/internal/imaging"
	"github.com/mathscan/mathscan/internal/logger"
	"github.com/mathscan/mathscan/internal/ocr"
)

func newOCRCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ocr [image-file]",
		Short: "Recognize text in an image",
		Long: `Recognize text in an image file with Tesseract and print it.

Modes:
  auto       automatic page segmentation (default)
  text       automatic page segmentation, no character restriction
  equations  single text block restricted to digits, letters and operators
  mixed      automatic page segmentation restricted like equations

Flags override the MATHSCAN_OCR_* environment settings for this run.`,
		Example: `  # Print the text of a scanned page
  mathscan ocr page.png

  # Recognize an equation and save the text next to the image
  mathscan ocr formula.jpg --mode equations --save

  # Full result as JSON, no confidence threshold
  mathscan ocr board.png --json --no-confidence`,
		Args: cobra.ExactArgs(1),
		RunE: a.runOCR,
	}

	defaults := a.cfg.OCR
	cmd.Flags().String("mode", defaults.Mode.String(), "Recognition mode: auto, text, equations or mixed")
	cmd.Flags().String("lang", defaults.Language, "Tesseract language(s), joined with '+'")
	cmd.Flags().Int("dpi", defaults.DPI, "Source resolution; 0 disables rescaling")
	cmd.Flags().Int("min-confidence", defaults.MinimumConfidence, "Minimum mean confidence (0-100)")
	cmd.Flags().Bool("no-preprocess", !defaults.PreprocessImage, "Skip grayscale conversion and rescaling")
	cmd.Flags().Bool("no-confidence", !defaults.EnableConfidenceScoring, "Disable confidence scoring")
	cmd.Flags().Bool("invert", defaults.AutoInvert, "Invert light-on-dark images before recognition")
	cmd.Flags().String("region", "", "Recognize only this rectangle: x1,y1,x2,y2 in pixels")
	cmd.Flags().String("area", "", "Recognize only a named area: "+strings.Join(imaging.AreaNames(), ", "))
	cmd.Flags().StringP("output", "o", "", "Write the recognized text to this file")
	cmd.Flags().Bool("save", false, "Write the recognized text next to the image (.txt)")
	cmd.Flags().Bool("json", false, "Print the full result as JSON")
	cmd.Flags().Bool("progress", false, "Report pipeline stages on stderr")
	cmd.Flags().Duration("timeout", 0, "Give up if recognition has not started within this time")
	return cmd
}

// ocrConfigFromFlags applies the command flags on top of base.
func ocrConfigFromFlags(cmd *cobra.Command, base ocr.Config) (ocr.Config, error) {
	cfg := base
	flags := cmd.Flags()

	if flags.Changed("mode") {
		name, _ := flags.GetString("mode")
		mode, err := ocr.ParseMode(name)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}
	if flags.Changed("lang") {
		cfg.Language, _ = flags.GetString("lang")
	}
	if flags.Changed("dpi") {
		cfg.DPI, _ = flags.GetInt("dpi")
	}
	if flags.Changed("min-confidence") {
		cfg.MinimumConfidence, _ = flags.GetInt("min-confidence")
	}
	if flags.Changed("no-preprocess") {
		off, _ := flags.GetBool("no-preprocess")
		cfg.PreprocessImage = !off
	}
	if flags.Changed("no-confidence") {
		off, _ := flags.GetBool("no-confidence")
		cfg.EnableConfidenceScoring = !off
	}
	if flags.Changed("invert") {
		cfg.AutoInvert, _ = flags.GetBool("invert")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid OCR settings: %w", err)
	}
	return cfg, nil
}

// selectionRequest builds the request for path, cropping the image when
// --region or --area is given.
func selectionRequest(cmd *cobra.Command, path string) (ocr.Request, error) {
	regionSpec, _ := cmd.Flags().GetString("region")
	area, _ := cmd.Flags().GetString("area")
	if regionSpec == "" && area == "" {
		return ocr.Request{Path: path}, nil
	}

	var region *imaging.Region
	if regionSpec != "" {
		r, err := imaging.ParseRegion(regionSpec)
		if err != nil {
			return ocr.Request{}, err
		}
		region = &r
	}
	if !ocr.ValidateImage(path) {
		return ocr.Request{}, fmt.Errorf("invalid or unsupported image file: %s", path)
	}
	img, err := imaging.Load(path)
	if err != nil {
		return ocr.Request{}, err
	}
	cropped, err := imaging.Select(img, region, area)
	if err != nil {
		return ocr.Request{}, err
	}
	return ocr.Request{Image: cropped}, nil
}

func (a *app) runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")
	imagePath := args[0]

	outputPath, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetBool("save")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	showProgress, _ := cmd.Flags().GetBool("progress")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if save && outputPath == "" {
		outputPath = export.TextPath(imagePath)
	}

	cfg, err := ocrConfigFromFlags(cmd, a.cfg.OCR)
	if err != nil {
		return err
	}

	session, err := a.newSession(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := selectionRequest(cmd, imagePath)
	if err != nil {
		return err
	}
	if showProgress {
		errOut := cmd.ErrOrStderr()
		req.Progress = func(stage ocr.Stage, percent int) {
			fmt.Fprintf(errOut, "[%3d%%] %s\n", percent, stage)
		}
	}

	log.Info().
		Str("file", imagePath).
		Str("mode", cfg.Mode.String()).
		Str("language", cfg.Language).
		Msg("Starting OCR processing")

	res := session.Recognize(ctx, req)

	if res.Success && outputPath != "" {
		if err := export.WriteText(outputPath, res.Text); err != nil {
			return err
		}
		log.Info().Str("output", outputPath).Msg("Text saved")
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else if res.Success {
		fmt.Fprintln(out, res.Text)
		if cfg.EnableConfidenceScoring {
			fmt.Fprintf(cmd.ErrOrStderr(), "confidence %.1f%%, %s\n", res.Confidence, res.ProcessingTime.Round(time.Millisecond))
		}
	}

	return res.Err()
}
