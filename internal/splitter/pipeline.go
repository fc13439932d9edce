package splitter

import (
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/quotschmacher/EPUB-Image-Splitter/internal/epub"
)

// Options holds the per-file conversion options.
type Options struct {
	InputPath  string
	OutputPath string

	ImagesOnly    bool
	MinWidth      int // minimum image width in pixels to qualify for a page
	MinHeight     int // minimum image height in pixels to qualify for a page
	MaxImageWidth int // downscale wider images on copy; 0 disables

	// DropUnknownSize drops images whose dimensions cannot be determined.
	// Default is to keep them as pages.
	DropUnknownSize bool
}

// Pipeline converts one EPUB into its image-split form.
type Pipeline struct {
	Options Options
}

// NewPipeline creates a new conversion pipeline.
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{Options: opts}
}

// Convert executes the conversion: read the source archive, split every
// spine content document into segments, generate one page per segment and
// package the result. The input file is never modified.
func (p *Pipeline) Convert() error {
	reader, opf, err := p.parseEPUB()
	if err != nil {
		return err
	}
	defer reader.Close()

	styles, carried := p.loadStylesheets(reader, opf)
	cssHrefs := make([]string, len(styles))
	for i, css := range styles {
		cssHrefs[i] = css.Href
	}

	filter := PlaceholderFilter{
		MinWidth:    p.Options.MinWidth,
		MinHeight:   p.Options.MinHeight,
		KeepUnknown: !p.Options.DropUnknownSize,
	}
	store := newImageStore(reader, opf, filter, p.Options.MaxImageWidth)

	segments := p.splitSpine(reader, opf, store, carried)

	book := &Book{Metadata: opf.Metadata, Styles: styles}
	for _, seg := range segments {
		var imageHref string
		if seg.Kind == SegmentImage {
			imageHref, err = store.Adopt(seg.ImageHref)
			if err != nil {
				log.Printf("warning: %v, skipping", err)
				continue
			}
		}
		book.Pages = append(book.Pages, GeneratePage(len(book.Pages)+1, seg, imageHref, cssHrefs))
	}
	book.Images = store.Images()

	if len(book.Pages) == 0 {
		return fmt.Errorf("%w: no images or text found in %s", ErrNoPages, p.Options.InputPath)
	}

	return WriteEPUB(p.Options.OutputPath, book)
}

// parseEPUB opens the EPUB file and parses the OPF.
func (p *Pipeline) parseEPUB() (*epub.Reader, *epub.OPF, error) {
	reader, err := epub.Open(p.Options.InputPath)
	if err != nil {
		return nil, nil, err
	}

	opfData, err := reader.ReadFile(reader.OPFPath())
	if err != nil {
		reader.Close()
		return nil, nil, fmt.Errorf("%w: reading %s: %v", epub.ErrMissingPackageDocument, reader.OPFPath(), err)
	}

	opfDir := path.Dir(reader.OPFPath())
	opf, err := epub.ParseOPF(opfData, opfDir)
	if err != nil {
		reader.Close()
		return nil, nil, err
	}

	return reader, opf, nil
}

// splitSpine loads every spine content document in reading order and splits
// it into segments. A document that cannot be read or parsed contributes
// zero segments; the conversion continues.
func (p *Pipeline) splitSpine(reader *epub.Reader, opf *epub.OPF, store *imageStore, carried map[string]bool) []Segment {
	var segments []Segment
	guideTitles := guideTitlesByHref(opf.Guide)
	warnedCSS := make(map[string]bool)

	for _, spineItem := range opf.Spine {
		manifestItem, ok := opf.Manifest[spineItem.IDRef]
		if !ok {
			log.Printf("warning: spine item %q not found in manifest, skipping", spineItem.IDRef)
			continue
		}
		if !isXHTML(manifestItem.MediaType) {
			continue
		}

		data, err := reader.ReadFile(manifestItem.Href)
		if err != nil {
			log.Printf("warning: failed to read %q: %v, skipping", manifestItem.Href, err)
			continue
		}

		content, err := epub.LoadContent(manifestItem.ID, manifestItem.Href, data)
		if err != nil {
			log.Printf("warning: %v: %q: %v, skipping", ErrUnparseableContent, manifestItem.Href, err)
			continue
		}

		for _, css := range content.CSSLinks {
			if !carried[css] && !warnedCSS[css] {
				warnedCSS[css] = true
				log.Printf("warning: stylesheet %q referenced by %q is not in the manifest, not carried", css, manifestItem.Href)
			}
		}

		title := guideTitles[manifestItem.Href]
		if title == "" {
			title = docTitle(manifestItem.Href)
		}
		segments = append(segments, SplitDocument(content, title, p.Options.ImagesOnly, store.Keep)...)
	}

	return segments
}

// guideTitlesByHref maps guide reference targets to their titles, so pages
// generated from a guide-listed document carry its title. Fragments are
// dropped from the targets.
func guideTitlesByHref(guide []epub.GuideReference) map[string]string {
	titles := make(map[string]string)
	for _, ref := range guide {
		href, _, _ := strings.Cut(ref.Href, "#")
		if ref.Title != "" && titles[href] == "" {
			titles[href] = ref.Title
		}
	}
	return titles
}

// loadStylesheets reads every stylesheet from the source manifest, carried
// through unmodified under styles/. Duplicate basenames keep the first copy.
// The second return value records the source archive paths that were carried,
// keyed for cross-checking document references against the set.
func (p *Pipeline) loadStylesheets(reader *epub.Reader, opf *epub.OPF) ([]Resource, map[string]bool) {
	var styles []Resource
	seen := make(map[string]bool)
	carried := make(map[string]bool)

	for _, item := range opf.Stylesheets() {
		name := path.Base(item.Href)
		if seen[name] {
			log.Printf("warning: duplicate stylesheet name %q, keeping first", name)
			carried[item.Href] = true
			continue
		}

		data, err := reader.ReadFile(item.Href)
		if err != nil {
			log.Printf("warning: failed to read stylesheet %q: %v, skipping", item.Href, err)
			continue
		}

		seen[name] = true
		carried[item.Href] = true
		styles = append(styles, Resource{
			ID:        fmt.Sprintf("css_%d", len(styles)+1),
			Href:      "styles/" + name,
			MediaType: "text/css",
			Data:      data,
		})
	}

	return styles, carried
}

// docTitle derives a page title from a content document path.
func docTitle(href string) string {
	base := path.Base(href)
	return strings.TrimSuffix(base, path.Ext(base))
}

// isXHTML checks if a media type indicates an XHTML content file.
func isXHTML(mediaType string) bool {
	return strings.Contains(mediaType, "html")
}
