package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"emdfusion/pkg/imageio"
)

var exportCmd = &cobra.Command{
	Use:   "export <in.bin> <out.(png|bmp|jpg|gif|tif)>",
	Short: "Convert a raw fused image to a standard image format",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		img, err := imageio.LoadRaw(args[0], 0, 0)
		if err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		if err := imageio.Export(args[1], img); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		fmt.Printf("Exported %dx%d image to %s\n", img.Width, img.Height, args[1])
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
