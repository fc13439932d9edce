package splitter

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// outputSuffix is appended to the input file stem to form the output name.
const outputSuffix = "_imgsplit.epub"

// BatchOptions holds the directory pair and the per-file conversion options.
type BatchOptions struct {
	InputDir  string
	OutputDir string
	Convert   Options // InputPath/OutputPath are set per file
}

// FileResult records the outcome of converting one input file.
type FileResult struct {
	Name   string // input file name
	Output string // output file name, empty on failure
	Err    error
}

// Batch converts every EPUB in a directory, isolating per-file failures.
type Batch struct {
	Options BatchOptions
}

// NewBatch creates a batch driver.
func NewBatch(opts BatchOptions) *Batch {
	return &Batch{Options: opts}
}

// Run converts each .epub file in the input directory in directory listing
// order. A failure converting one file is recorded and the batch continues;
// only an inaccessible input or output directory aborts the run.
func (b *Batch) Run() ([]FileResult, error) {
	entries, err := os.ReadDir(b.Options.InputDir)
	if err != nil {
		return nil, fmt.Errorf("cannot read input directory: %w", err)
	}
	if err := os.MkdirAll(b.Options.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create output directory: %w", err)
	}

	var results []FileResult
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ".epub") {
			continue
		}

		outName := strings.TrimSuffix(name, filepath.Ext(name)) + outputSuffix

		log.Printf("processing: %s", name)
		opts := b.Options.Convert
		opts.InputPath = filepath.Join(b.Options.InputDir, name)
		opts.OutputPath = filepath.Join(b.Options.OutputDir, outName)

		if err := NewPipeline(opts).Convert(); err != nil {
			log.Printf("failed: %s: %v", name, err)
			results = append(results, FileResult{Name: name, Err: err})
			continue
		}

		log.Printf("wrote: %s", outName)
		results = append(results, FileResult{Name: name, Output: outName})
	}

	return results, nil
}

// CountFailed returns how many results carry an error.
func CountFailed(results []FileResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
