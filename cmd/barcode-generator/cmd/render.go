package cmd

import (
	"fmt"
	"os"
	"strings"

	"barcode-generator/internal/config"
	"barcode-generator/internal/scan"
	"barcode-generator/internal/services"
	"barcode-generator/internal/validator"

	"github.com/spf13/cobra"
)

type renderOptions struct {
	format    string
	output    string
	quietZone int
	fontSize  int
	verify    bool
}

func newRenderCommand(a *app) *cobra.Command {
	opts := &renderOptions{}

	renderCmd := &cobra.Command{
		Use:   "render <symbology> <contents>",
		Short: "Render a barcode to a file",
		Long: `Validate contents and render the barcode as SVG, PNG or a vector .ai file.

The output defaults to barcode_<symbology>_<contents>.<ext> in the current
directory; use --output - to write to stdout.

Examples:
  barcode-generator render ean13 880956022307
  barcode-generator render code128 "Hello World" --format png --verify
  barcode-generator render upca 03600029145 --format ai --font-path OCRB.ttf`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("quiet-zone") {
				opts.quietZone = cfg.Barcode.DefaultQuietZone
			}
			if !cmd.Flags().Changed("font-size") {
				opts.fontSize = cfg.Barcode.DefaultFontSize
			}
			return runRender(cmd, cfg, opts, args[0], args[1])
		},
	}

	renderCmd.Flags().StringVarP(&opts.format, "format", "f", "svg", "output format (svg, png, ai)")
	renderCmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file, - for stdout")
	renderCmd.Flags().IntVar(&opts.quietZone, "quiet-zone", 10, "quiet zone in modules (0-50)")
	renderCmd.Flags().IntVar(&opts.fontSize, "font-size", 35, "human-readable text size (8-45)")
	renderCmd.Flags().BoolVar(&opts.verify, "verify", false, "decode the rendered barcode and compare it with the contents")

	return renderCmd
}

func runRender(cmd *cobra.Command, cfg *config.Config, opts *renderOptions, symbologyName, contents string) error {
	format := strings.ToLower(opts.format)
	if format != "svg" && format != "png" && format != "ai" {
		return fmt.Errorf("unsupported format %q (want svg, png or ai)", opts.format)
	}

	symbology, err := validator.ParseSymbology(symbologyName)
	if err != nil {
		symbology = validator.Symbology(symbologyName)
	}
	raw, err := validator.NewRequest(contents, symbology, opts.quietZone)
	if err != nil {
		return err
	}
	req, res := raw.Normalize()
	if err := res.Err(); err != nil {
		return err
	}

	textOpts := services.DefaultTextOptions(opts.fontSize)
	if err := textOpts.Validate(); err != nil {
		return err
	}

	barcodes := services.NewBarcodeService(cfg.Barcode)

	var data []byte
	switch format {
	case "svg":
		data, err = barcodes.RenderSVG(req, textOpts)
	case "png":
		data, err = barcodes.RenderPNG(req, textOpts)
	case "ai":
		var result *services.PDFResult
		result, err = services.NewPDFService(&cfg.PDF, barcodes).GenerateBarcodePDF(req)
		if err == nil {
			data = result.Data
			if result.FontNotice != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), result.FontNotice)
			}
		}
	}
	if err != nil {
		return err
	}

	if opts.verify {
		if err := verifyRender(cmd, barcodes, req, textOpts); err != nil {
			return err
		}
	}

	if res.Note != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", res.Note, req.Contents)
	}

	if opts.output == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	output := opts.output
	if output == "" {
		output = services.DownloadFilename(req, format)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

// verifyRender decodes a bitmap rendition of req and fails on mismatch
func verifyRender(cmd *cobra.Command, barcodes *services.BarcodeService, req validator.Request, textOpts services.TextOptions) error {
	req.QuietZone = max(req.QuietZone, 10)
	img, err := barcodes.RenderImage(req, textOpts)
	if err != nil {
		return err
	}
	result, err := scan.NewServerDecoder().Verify(img, req.Symbology, req.Contents)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	if !result.Verified {
		return fmt.Errorf("verification failed: decoded %q, expected %q", result.Decoded, result.Expected)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "verified as %s\n", result.Format)
	return nil
}
