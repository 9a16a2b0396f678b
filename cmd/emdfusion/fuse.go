package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"emdfusion/pkg/fusion"
	"emdfusion/pkg/imageio"
)

// autoPreview names the preview after the output file
const autoPreview = "auto"

var fuseFlags struct {
	output           string
	preview          string
	stretch          bool
	window           int
	mode             string
	workers          int
	saveIntermediary string
	fit              bool
	quiet            bool
}

var fuseCmd = &cobra.Command{
	Use:   "fuse <imageA> <imageB>",
	Short: "Fuse two grayscale images into a raw .bin file",
	Long: `Fuses two co-registered images of identical size. Inputs may be PNG, JPEG,
GIF, BMP, TIFF or raw .bin files; color inputs are converted to luminance.
The result is written in the raw format (uint32 width, uint32 height, little
endian, then the pixels), and optionally as a preview image.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		applyFuseFlags(cmd)

		params, err := cfg.FusionParams()
		if err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}

		opts := cfg.LoadOptions()
		a, err := imageio.LoadGray(args[0], opts)
		if err != nil {
			log.Fatalf("Failed to load image A: %v", err)
		}
		b, err := imageio.LoadGray(args[1], opts)
		if err != nil {
			log.Fatalf("Failed to load image B: %v", err)
		}

		fmt.Printf("Fusing %s and %s (%dx%d)...\n", a.Filename, b.Filename, a.Width, a.Height)
		startTime := time.Now()
		res, err := fusion.NewFuser(params).Process(a, b)
		if err != nil {
			log.Fatalf("Fusion failed: %v", err)
		}
		processingTime := time.Since(startTime)

		var progress imageio.ProgressCallback
		if params.Verbose {
			progress = func(completed, total int, message string) {
				log.Printf("Saving [%d/%d] %s", completed, total, message)
			}
		}
		if err := imageio.SaveRaw(fuseFlags.output, res.Fused, progress); err != nil {
			log.Fatalf("Failed to save fused image: %v", err)
		}

		preview := fuseFlags.preview
		if preview == autoPreview {
			preview = strings.TrimSuffix(fuseFlags.output, filepath.Ext(fuseFlags.output)) + "." + cfg.Output.PreviewFormat
		}
		if preview != "" {
			if err := imageio.Export(preview, res.Fused); err != nil {
				log.Fatalf("Failed to save preview: %v", err)
			}
		}

		printSummary(res, processingTime, preview, params)
	},
}

func init() {
	rootCmd.AddCommand(fuseCmd)

	f := fuseCmd.Flags()
	f.StringVarP(&fuseFlags.output, "output", "o", "fused.bin", "raw output file")
	f.StringVar(&fuseFlags.preview, "preview", "", "also export the result as an image (format from extension; bare flag uses the configured format)")
	f.Lookup("preview").NoOptDefVal = autoPreview
	f.BoolVar(&fuseFlags.stretch, "stretch", true, "stretch the fused image to the full 0..255 range")
	f.IntVar(&fuseFlags.window, "window", 0, "local variance window size, odd (default from config)")
	f.StringVar(&fuseFlags.mode, "mode", "", "variance mode: reference or twopass (default from config)")
	f.IntVar(&fuseFlags.workers, "workers", 0, "number of worker goroutines (default from config)")
	f.StringVar(&fuseFlags.saveIntermediary, "save-intermediary", "", "directory to save intermediary results")
	f.BoolVar(&fuseFlags.fit, "fit", false, "downsize inputs larger than the maximum dimensions")
	f.BoolVarP(&fuseFlags.quiet, "quiet", "q", false, "only log errors")
}

// applyFuseFlags overrides configuration values with explicitly set flags
func applyFuseFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("stretch") {
		cfg.Fusion.Stretch = fuseFlags.stretch
	}
	if f.Changed("window") {
		cfg.Fusion.WindowSize = fuseFlags.window
	}
	if f.Changed("mode") {
		cfg.Fusion.VarianceMode = fuseFlags.mode
	}
	if f.Changed("workers") {
		cfg.Processing.NumWorkers = fuseFlags.workers
	}
	if f.Changed("save-intermediary") {
		cfg.Output.SaveIntermediaryResults = true
		cfg.Output.IntermediaryDir = fuseFlags.saveIntermediary
	}
	if f.Changed("fit") {
		cfg.Input.FitOversized = fuseFlags.fit
	}
	if fuseFlags.quiet {
		cfg.Output.Verbose = false
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid options: %v", err)
	}
}

func printSummary(res *fusion.Result, processingTime time.Duration, preview string, params *fusion.Params) {
	m := res.Metrics

	fmt.Printf("\nFusion completed successfully in %.3f seconds!\n", processingTime.Seconds())
	fmt.Printf("Fused image saved to: %s\n", fuseFlags.output)
	if preview != "" {
		fmt.Printf("Preview saved to: %s\n", preview)
	}

	fmt.Printf("\nDecision Mask:\n")
	fmt.Printf("==============\n")
	fmt.Printf("Adaptive threshold: %d\n", m.Epsilon)
	fmt.Printf("From A: %.1f%%  From B: %.1f%%  Averaged: %.1f%%\n", m.ShareA*100, m.ShareB*100, m.ShareAverage*100)
	if res.Stretched {
		fmt.Println("Histogram stretch applied")
	}

	fmt.Printf("\nQuality Metrics:\n")
	fmt.Printf("================\n")
	fmt.Printf("Entropy: %.3f bits\n", m.Entropy)
	fmt.Printf("Mutual Information (A, B, total): %.3f, %.3f, %.3f\n", m.MutualInfoA, m.MutualInfoB, m.FusionMI)
	fmt.Printf("Structural Similarity Index (A, B): %.3f, %.3f\n", m.SSIMA, m.SSIMB)
	fmt.Printf("Correlation (A, B): %.3f, %.3f\n", m.CorrelationA, m.CorrelationB)

	if params.SaveIntermediaryResults {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", params.IntermediaryDir)
		fmt.Println("The following stages were saved:")
		fmt.Printf("- %s: EMD residuals of A (000) and B (001)\n", fusion.StageResidual)
		fmt.Printf("- %s: Local variance maps\n", fusion.StageVariance)
		fmt.Printf("- %s: Decision mask (white A, black B, gray averaged)\n", fusion.StageMask)
		fmt.Printf("- %s: Fused image\n", fusion.StageFused)
	}
}
