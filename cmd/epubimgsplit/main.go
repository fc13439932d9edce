package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/quotschmacher/EPUB-Image-Splitter/internal/splitter"
)

const (
	defaultInputDir  = "./in"
	defaultOutputDir = "./out"
	defaultMinWidth  = 2
	defaultMinHeight = 2
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epubimgsplit",
		Short: "Rebuild EPUB files with one page per image",
		Long: `epubimgsplit restructures EPUB ebooks so that every embedded image
gets its own page, with the text between images extracted into its
own pages in reading order. Placeholder images (e.g. 1x1 spacers)
are filtered out by pixel dimensions. Original stylesheets are
carried over and linked from every generated page.

Each <name>.epub in the input directory produces a
<name>_imgsplit.epub in the output directory; one malformed input
never aborts the batch.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readBatchOptions(cmd)
			if err != nil {
				return err
			}
			return runBatch(opts)
		},
	}

	cmd.Flags().StringP("input", "i", defaultInputDir, "Input directory containing .epub files")
	cmd.Flags().StringP("output", "o", defaultOutputDir, "Output directory for *_imgsplit.epub files")
	cmd.Flags().Bool("images-only", false, "Generate image pages only (no text pages)")
	cmd.Flags().Int("min-width", defaultMinWidth, "Minimum image width in pixels; smaller images are ignored")
	cmd.Flags().Int("min-height", defaultMinHeight, "Minimum image height in pixels; smaller images are ignored")
	cmd.Flags().Int("max-image-width", 0, "Downscale wider images to this width on copy (0 = keep original size)")

	return cmd
}

// readBatchOptions builds the batch options from the parsed flags.
func readBatchOptions(cmd *cobra.Command) (splitter.BatchOptions, error) {
	inputDir, err := cmd.Flags().GetString("input")
	if err != nil {
		return splitter.BatchOptions{}, err
	}
	outputDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return splitter.BatchOptions{}, err
	}
	imagesOnly, _ := cmd.Flags().GetBool("images-only")
	minWidth, _ := cmd.Flags().GetInt("min-width")
	minHeight, _ := cmd.Flags().GetInt("min-height")
	maxImageWidth, _ := cmd.Flags().GetInt("max-image-width")

	if minWidth < 0 || minHeight < 0 {
		return splitter.BatchOptions{}, fmt.Errorf("min-width and min-height must not be negative")
	}

	return splitter.BatchOptions{
		InputDir:  inputDir,
		OutputDir: outputDir,
		Convert: splitter.Options{
			ImagesOnly:    imagesOnly,
			MinWidth:      minWidth,
			MinHeight:     minHeight,
			MaxImageWidth: maxImageWidth,
		},
	}, nil
}

func runBatch(opts splitter.BatchOptions) error {
	results, err := splitter.NewBatch(opts).Run()
	if err != nil {
		return err
	}
	if len(results) == 0 {
		log.Printf("no EPUB files in %s", opts.InputDir)
		return nil
	}

	failed := splitter.CountFailed(results)
	log.Printf("done. succeeded: %d, failed: %d", len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(results))
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
