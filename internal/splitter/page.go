package splitter

import (
	"fmt"
	"html"
	"strings"
)

// Page is a generated content document. N is the 1-based position in the
// final spine; ids and filenames are derived from it (page_<n>, page_<n>.xhtml)
// and stay contiguous regardless of how many segments were filtered out.
type Page struct {
	N     int
	Title string
	Data  []byte
}

// ID returns the manifest id of the page.
func (p Page) ID() string {
	return fmt.Sprintf("page_%d", p.N)
}

// Href returns the package-relative path of the page document.
func (p Page) Href() string {
	return fmt.Sprintf("text/page_%d.xhtml", p.N)
}

// GeneratePage renders one segment as a minimal XHTML document. imageHref is
// the package-relative path of the adopted image copy (Image segments only).
// Every page links every stylesheet in cssHrefs (package-relative).
func GeneratePage(n int, seg Segment, imageHref string, cssHrefs []string) Page {
	title := seg.Title
	if title == "" {
		title = fmt.Sprintf("Page %d", n)
	}

	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString("<html xmlns=\"http://www.w3.org/1999/xhtml\">\n<head>\n")
	fmt.Fprintf(&b, "  <title>%s</title>\n", html.EscapeString(title))
	b.WriteString("  <meta http-equiv=\"Content-Type\" content=\"application/xhtml+xml; charset=utf-8\" />\n")
	for _, css := range cssHrefs {
		// pages live under text/, one level below the package root
		fmt.Fprintf(&b, "  <link rel=\"stylesheet\" type=\"text/css\" href=\"../%s\"/>\n", html.EscapeString(css))
	}
	b.WriteString("</head>\n<body>\n")

	switch seg.Kind {
	case SegmentImage:
		alt := seg.ImageAlt
		if alt == "" {
			alt = title
		}
		b.WriteString("  <div class=\"page\">\n")
		fmt.Fprintf(&b, "    <img src=\"../%s\" alt=\"%s\" />\n", html.EscapeString(imageHref), html.EscapeString(alt))
		b.WriteString("  </div>\n")
	case SegmentText:
		b.WriteString("  <div class=\"page textpage\">\n")
		b.WriteString(seg.Markup)
		b.WriteString("\n  </div>\n")
	}

	b.WriteString("</body>\n</html>\n")

	return Page{
		N:     n,
		Title: title,
		Data:  []byte(b.String()),
	}
}
