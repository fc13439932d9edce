package splitter

import (
	"fmt"
	"log"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/quotschmacher/EPUB-Image-Splitter/internal/epub"
)

// Resource is a file carried into the output archive, with its path and
// manifest id relative to the rebuilt package root.
type Resource struct {
	ID        string
	Href      string // package-relative, e.g. "images/img_0001.png"
	MediaType string
	Data      []byte
}

type imageDims struct {
	width, height int
	known         bool
}

// imageStore resolves, classifies and collects the image resources of one
// input file. Classification results and raw bytes are cached per archive
// path; copies are deduplicated so repeated references share one output file.
type imageStore struct {
	reader     *epub.Reader
	mediaTypes map[string]string // archive path -> manifest media type
	filter     PlaceholderFilter
	maxWidth   int

	data    map[string][]byte
	dims    map[string]imageDims
	missing map[string]bool
	copies  map[string]string // archive path -> output href
	images  []Resource
	counter int
}

func newImageStore(reader *epub.Reader, opf *epub.OPF, filter PlaceholderFilter, maxWidth int) *imageStore {
	mediaTypes := make(map[string]string)
	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		mediaTypes[item.Href] = item.MediaType
	}
	return &imageStore{
		reader:     reader,
		mediaTypes: mediaTypes,
		filter:     filter,
		maxWidth:   maxWidth,
		data:       make(map[string][]byte),
		dims:       make(map[string]imageDims),
		missing:    make(map[string]bool),
		copies:     make(map[string]string),
	}
}

// Keep implements the page-image predicate: declared width/height attributes
// win; otherwise the resource header is probed; undeterminable dimensions
// fall back to the filter's KeepUnknown policy. An image whose resource is
// not in the archive never qualifies.
func (s *imageStore) Keep(src string, node *html.Node) bool {
	if !s.reader.Has(src) {
		if !s.missing[src] {
			s.missing[src] = true
			log.Printf("warning: %v (%s)", ErrUnresolvableImage, src)
		}
		return false
	}

	if w, h, ok := declaredDimensions(node); ok {
		return s.keepDims(src, w, h, true)
	}

	data, err := s.load(src)
	if err != nil {
		if !s.missing[src] {
			s.missing[src] = true
			log.Printf("warning: %v (%s)", ErrUnresolvableImage, src)
		}
		return false
	}

	d, ok := s.dims[src]
	if !ok {
		d.width, d.height, d.known = probeDimensions(data)
		s.dims[src] = d
	}
	return s.keepDims(src, d.width, d.height, d.known)
}

func (s *imageStore) keepDims(src string, w, h int, known bool) bool {
	keep := s.filter.Keep(w, h, known)
	if !keep {
		if known {
			log.Printf("skipping placeholder image (%dx%d): %s", w, h, src)
		} else {
			log.Printf("skipping image of unknown dimensions: %s", src)
		}
	}
	return keep
}

// Adopt copies an image resource into the output set, returning its
// package-relative href. Repeated adoption of the same source returns the
// same copy.
func (s *imageStore) Adopt(src string) (string, error) {
	if href, ok := s.copies[src]; ok {
		return href, nil
	}

	data, err := s.load(src)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnresolvableImage, src)
	}

	mediaType := s.mediaTypes[src]
	if mediaType == "" {
		mediaType = guessMediaType(src)
	}
	data = downscaleToWidth(data, mediaType, s.maxWidth)

	s.counter++
	name := fmt.Sprintf("img_%04d%s", s.counter, strings.ToLower(path.Ext(src)))
	href := "images/" + name
	s.copies[src] = href
	s.images = append(s.images, Resource{
		ID:        fmt.Sprintf("img_%04d", s.counter),
		Href:      href,
		MediaType: mediaType,
		Data:      data,
	})
	return href, nil
}

// Images returns the adopted image resources in adoption order.
func (s *imageStore) Images() []Resource {
	return s.images
}

func (s *imageStore) load(src string) ([]byte, error) {
	if data, ok := s.data[src]; ok {
		return data, nil
	}
	data, err := s.reader.ReadFile(src)
	if err != nil {
		return nil, err
	}
	s.data[src] = data
	return data, nil
}

// guessMediaType maps a file extension to a media type, for resources the
// source manifest does not describe.
func guessMediaType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".xhtml", ".html", ".htm":
		return "application/xhtml+xml"
	case ".css":
		return "text/css"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".ttf":
		return "font/ttf"
	case ".otf":
		return "font/otf"
	case ".woff":
		return "font/woff"
	case ".woff2":
		return "font/woff2"
	default:
		return "application/octet-stream"
	}
}
