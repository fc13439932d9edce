package splitter

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/quotschmacher/EPUB-Image-Splitter/internal/epub"
)

// SegmentKind classifies a segment as an image page or a text page.
type SegmentKind int

const (
	// SegmentText is a maximal run of text-bearing nodes between images.
	SegmentText SegmentKind = iota
	// SegmentImage wraps exactly one qualifying image reference.
	SegmentImage
)

// Segment is a maximal run of same-kind content extracted from a content
// document. Each retained segment becomes one generated page.
type Segment struct {
	Kind      SegmentKind
	ImageHref string // archive path of the referenced image (SegmentImage)
	ImageAlt  string // alt text carried from the source img (SegmentImage)
	Markup    string // serialized fragment markup (SegmentText)
	Title     string // suggested page title for the source document
}

// KeepImage decides whether an img element qualifies for its own page.
// src is the resolved archive path of the image resource; node is the img
// element, for declared width/height attributes.
type KeepImage func(src string, node *html.Node) bool

// SplitDocument walks the body of a content document in document order and
// produces the ordered segment sequence. Images passing keep become Image
// segments; everything else accumulates into text runs that are flushed as
// Text segments at each image boundary. Runs without non-whitespace text are
// dropped, so whitespace at document boundaries never becomes an empty page.
// When imagesOnly is set, no Text segments are emitted.
func SplitDocument(c *epub.Content, title string, imagesOnly bool, keep KeepImage) []Segment {
	body := c.Body()
	if body.Length() == 0 {
		return nil
	}

	w := &walker{
		title:      title,
		imagesOnly: imagesOnly,
		keep:       keep,
		keepCache:  make(map[*html.Node]bool),
	}
	w.walk(body.Get(0))
	w.flush()
	return w.segments
}

type walker struct {
	title      string
	imagesOnly bool
	keep       KeepImage
	keepCache  map[*html.Node]bool

	pending      []*html.Node // current text run, in document order
	hasSubstance bool         // run contains non-whitespace text
	segments     []Segment
}

func (w *walker) walk(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.ElementNode && c.Data == "img":
			if w.keepImg(c) {
				w.flush()
				w.segments = append(w.segments, Segment{
					Kind:      SegmentImage,
					ImageHref: attrVal(c, "src"),
					ImageAlt:  attrVal(c, "alt"),
					Title:     w.title,
				})
			}
			// Inert images fold into the surrounding text run; their
			// markup is stripped when the run is serialized.

		case c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style"):
			// never page content

		case c.Type == html.ElementNode && w.subtreeHasPageImage(c):
			// split around nested images
			w.walk(c)

		case c.Type == html.TextNode:
			w.pending = append(w.pending, c)
			if strings.TrimSpace(c.Data) != "" {
				w.hasSubstance = true
			}

		case c.Type == html.ElementNode:
			w.pending = append(w.pending, c)
			if hasText(c) {
				w.hasSubstance = true
			}
		}
	}
}

// flush closes the current text run, emitting a Text segment when the run
// carries substantive content.
func (w *walker) flush() {
	pending, substance := w.pending, w.hasSubstance
	w.pending, w.hasSubstance = nil, false

	if w.imagesOnly || !substance {
		return
	}
	markup := renderFragment(pending)
	if strings.TrimSpace(markup) == "" {
		return
	}
	w.segments = append(w.segments, Segment{
		Kind:   SegmentText,
		Markup: markup,
		Title:  w.title,
	})
}

// keepImg memoizes the keep decision per img node, since classification may
// probe image bytes and subtree scanning visits nodes ahead of emission.
func (w *walker) keepImg(n *html.Node) bool {
	if v, ok := w.keepCache[n]; ok {
		return v
	}
	src := attrVal(n, "src")
	v := src != "" && w.keep(src, n)
	w.keepCache[n] = v
	return v
}

// subtreeHasPageImage reports whether any descendant img qualifies for a page.
func (w *walker) subtreeHasPageImage(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "img" {
			if w.keepImg(c) {
				return true
			}
			continue
		}
		if w.subtreeHasPageImage(c) {
			return true
		}
	}
	return false
}

// hasText reports whether the subtree contains non-whitespace text outside
// script and style elements.
func hasText(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style") {
			continue
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
		if hasText(c) {
			return true
		}
	}
	return false
}

// renderFragment serializes a run of nodes and strips img, script and style
// elements from the result, preserving the remaining inline markup verbatim.
func renderFragment(nodes []*html.Node) string {
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return ""
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + buf.String() + "</div>"))
	if err != nil {
		return buf.String()
	}
	doc.Find("img, script, style").Remove()
	out, err := doc.Find("body > div").First().Html()
	if err != nil {
		return ""
	}
	return out
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
