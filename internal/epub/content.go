package epub

import (
	"bytes"
	"fmt"
	"path"

	"github.com/PuerkitoBio/goquery"
)

// Content represents a parsed XHTML content file
type Content struct {
	ID       string            // Manifest ID
	Path     string            // File path within the archive
	Document *goquery.Document // Parsed HTML document
	CSSLinks []string          // Referenced CSS archive paths
}

// LoadContent loads and parses an XHTML content file. Relative img src and
// stylesheet hrefs are rewritten in place to archive paths so they match
// manifest item hrefs.
func LoadContent(id, docPath string, content []byte) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML: %w", err)
	}

	c := &Content{
		ID:       id,
		Path:     docPath,
		Document: doc,
	}

	baseDir := path.Dir(docPath)

	doc.Find("link[rel='stylesheet']").Each(func(i int, s *goquery.Selection) {
		if href, exists := s.Attr("href"); exists && href != "" {
			resolved := resolvePath(baseDir, href)
			s.SetAttr("href", resolved)
			c.CSSLinks = append(c.CSSLinks, resolved)
		}
	})

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		if src, exists := s.Attr("src"); exists && src != "" {
			s.SetAttr("src", resolvePath(baseDir, src))
		}
	})

	return c, nil
}

// Body returns the selection for the document body.
func (c *Content) Body() *goquery.Selection {
	return c.Document.Find("body").First()
}

// resolvePath resolves a relative reference against the directory of the
// containing document, e.g. ("text", "../images/photo.jpg") -> "images/photo.jpg".
// Absolute references and references escaping the archive root are returned
// cleaned but unanchored; lookup against the archive simply fails for them.
func resolvePath(baseDir, rel string) string {
	if path.IsAbs(rel) {
		return path.Clean(rel[1:])
	}
	return path.Clean(path.Join(baseDir, rel))
}
