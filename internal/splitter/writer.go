package splitter

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/quotschmacher/EPUB-Image-Splitter/internal/epub"
)

const (
	opfNS       = "http://www.idpf.org/2007/opf"
	dcNS        = "http://purl.org/dc/elements/1.1/"
	containerNS = "urn:oasis:names:tc:opendocument:xmlns:container"
	ncxNS       = "http://www.daisy.org/z3986/2005/ncx/"

	mimetypeEPUB = "application/epub+zip"
)

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="` + containerNS + `">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

// Book is the full output of one conversion: generated pages in spine order
// plus the carried resources and metadata, ready to be packaged.
type Book struct {
	Metadata epub.Metadata
	Pages    []Page
	Styles   []Resource
	Images   []Resource

	id string // resolved canonical identifier, shared by OPF and NCX
}

// WriteEPUB packages a book as a new EPUB at outPath. The archive is written
// to a temporary file in the target directory and renamed into place, so a
// failed write never leaves a partial archive behind. The mimetype entry is
// written first and stored uncompressed, as the container format requires.
func WriteEPUB(outPath string, book *Book) (err error) {
	dir := filepath.Dir(outPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(outPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err = writeArchive(tmp, book); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	if err = os.Rename(tmpName, outPath); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	return nil
}

func writeArchive(f *os.File, book *Book) error {
	zw := zip.NewWriter(f)

	// mimetype: first entry, stored
	mw, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	if _, err := mw.Write([]byte(mimetypeEPUB)); err != nil {
		return err
	}

	opfData, err := buildOPF(book)
	if err != nil {
		return err
	}
	ncxData, err := buildNCX(book)
	if err != nil {
		return err
	}

	entries := []struct {
		name string
		data []byte
	}{
		{"META-INF/container.xml", []byte(containerXML)},
		{"OEBPS/content.opf", opfData},
		{"OEBPS/toc.ncx", ncxData},
	}
	for _, css := range book.Styles {
		entries = append(entries, struct {
			name string
			data []byte
		}{"OEBPS/" + css.Href, css.Data})
	}
	for _, page := range book.Pages {
		entries = append(entries, struct {
			name string
			data []byte
		}{"OEBPS/" + page.Href(), page.Data})
	}
	for _, img := range book.Images {
		entries = append(entries, struct {
			name string
			data []byte
		}{"OEBPS/" + img.Href, img.Data})
	}

	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			return err
		}
		if _, err := w.Write(e.data); err != nil {
			return err
		}
	}

	return zw.Close()
}

// identifier returns the canonical book identifier, generating a urn:uuid
// value when the source metadata carries none.
func (b *Book) identifier() string {
	if b.id == "" {
		if b.Metadata.Identifier != "" {
			b.id = b.Metadata.Identifier
		} else {
			b.id = "urn:uuid:" + uuid.NewString()
		}
	}
	return b.id
}

// title returns the book title for the NCX docTitle, defaulting when empty.
func (b *Book) title() string {
	if b.Metadata.Title != "" {
		return b.Metadata.Title
	}
	return "Untitled"
}

// OPF output structures (EPUB 2.0 package)

type xmlOPF struct {
	XMLName  xml.Name       `xml:"package"`
	Xmlns    string         `xml:"xmlns,attr"`
	Version  string         `xml:"version,attr"`
	UniqueID string         `xml:"unique-identifier,attr"`
	Metadata xmlOPFMetadata `xml:"metadata"`
	Manifest xmlOPFManifest `xml:"manifest"`
	Spine    xmlOPFSpine    `xml:"spine"`
}

type xmlOPFMetadata struct {
	XmlnsDC  string      `xml:"xmlns:dc,attr"`
	XmlnsOPF string      `xml:"xmlns:opf,attr"`
	DC       []xmlDCElem `xml:",any"`
	Meta     []xmlMeta   `xml:"meta"`
}

type xmlDCElem struct {
	XMLName xml.Name
	ID      string `xml:"id,attr,omitempty"`
	Role    string `xml:"opf:role,attr,omitempty"`
	Value   string `xml:",chardata"`
}

type xmlMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type xmlOPFManifest struct {
	Items []xmlOPFItem `xml:"item"`
}

type xmlOPFItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

type xmlOPFSpine struct {
	Toc      string          `xml:"toc,attr"`
	ItemRefs []xmlOPFItemRef `xml:"itemref"`
}

type xmlOPFItemRef struct {
	IDRef string `xml:"idref,attr"`
}

func buildOPF(book *Book) ([]byte, error) {
	pkg := xmlOPF{
		Xmlns:    opfNS,
		Version:  "2.0",
		UniqueID: "BookId",
		Metadata: xmlOPFMetadata{
			XmlnsDC:  dcNS,
			XmlnsOPF: opfNS,
		},
		Spine: xmlOPFSpine{Toc: "ncx"},
	}

	md := book.Metadata
	dc := func(name, value string) {
		if value == "" {
			return
		}
		pkg.Metadata.DC = append(pkg.Metadata.DC, xmlDCElem{
			XMLName: xml.Name{Local: "dc:" + name},
			Value:   value,
		})
	}

	dc("title", book.title())
	for _, c := range md.Creators {
		if c.Name == "" {
			continue
		}
		pkg.Metadata.DC = append(pkg.Metadata.DC, xmlDCElem{
			XMLName: xml.Name{Local: "dc:creator"},
			Role:    c.Role,
			Value:   c.Name,
		})
	}
	dc("language", md.Language)
	dc("publisher", md.Publisher)
	dc("date", md.Date)
	dc("description", md.Description)
	for _, s := range md.Subjects {
		dc("subject", s)
	}
	dc("rights", md.Rights)

	// canonical identifier, referenced by unique-identifier
	pkg.Metadata.DC = append(pkg.Metadata.DC, xmlDCElem{
		XMLName: xml.Name{Local: "dc:identifier"},
		ID:      "BookId",
		Value:   book.identifier(),
	})

	for _, m := range md.MetaEntries {
		// the original cover reference names a dropped manifest item
		if m.Name == "cover" {
			continue
		}
		pkg.Metadata.Meta = append(pkg.Metadata.Meta, xmlMeta{Name: m.Name, Content: m.Content})
	}

	pkg.Manifest.Items = append(pkg.Manifest.Items, xmlOPFItem{
		ID:        "ncx",
		Href:      "toc.ncx",
		MediaType: "application/x-dtbncx+xml",
	})
	for _, css := range book.Styles {
		pkg.Manifest.Items = append(pkg.Manifest.Items, xmlOPFItem{
			ID:        css.ID,
			Href:      css.Href,
			MediaType: css.MediaType,
		})
	}
	for _, page := range book.Pages {
		pkg.Manifest.Items = append(pkg.Manifest.Items, xmlOPFItem{
			ID:        page.ID(),
			Href:      page.Href(),
			MediaType: "application/xhtml+xml",
		})
		pkg.Spine.ItemRefs = append(pkg.Spine.ItemRefs, xmlOPFItemRef{IDRef: page.ID()})
	}
	for _, img := range book.Images {
		pkg.Manifest.Items = append(pkg.Manifest.Items, xmlOPFItem{
			ID:        img.ID,
			Href:      img.Href,
			MediaType: img.MediaType,
		})
	}

	return marshalXML(pkg)
}

// NCX output structures

type xmlNCX struct {
	XMLName  xml.Name    `xml:"ncx"`
	Xmlns    string      `xml:"xmlns,attr"`
	Version  string      `xml:"version,attr"`
	Head     xmlNCXHead  `xml:"head"`
	DocTitle xmlNCXText  `xml:"docTitle"`
	NavMap   []xmlNCXNav `xml:"navMap>navPoint"`
}

type xmlNCXHead struct {
	Meta []xmlMeta `xml:"meta"`
}

type xmlNCXText struct {
	Text string `xml:"text"`
}

type xmlNCXNav struct {
	ID        string        `xml:"id,attr"`
	PlayOrder int           `xml:"playOrder,attr"`
	Label     xmlNCXText    `xml:"navLabel"`
	Content   xmlNCXContent `xml:"content"`
}

type xmlNCXContent struct {
	Src string `xml:"src,attr"`
}

// buildNCX regenerates the navigation map with one navPoint per generated
// page, in spine order.
func buildNCX(book *Book) ([]byte, error) {
	ncx := xmlNCX{
		Xmlns:   ncxNS,
		Version: "2005-1",
		Head: xmlNCXHead{
			Meta: []xmlMeta{
				{Name: "dtb:uid", Content: book.identifier()},
				{Name: "dtb:depth", Content: "1"},
			},
		},
		DocTitle: xmlNCXText{Text: book.title()},
	}

	for i, page := range book.Pages {
		ncx.NavMap = append(ncx.NavMap, xmlNCXNav{
			ID:        fmt.Sprintf("np_%d", i+1),
			PlayOrder: i + 1,
			Label:     xmlNCXText{Text: page.Title},
			Content:   xmlNCXContent{Src: page.Href()},
		})
	}

	return marshalXML(ncx)
}

func marshalXML(v any) ([]byte, error) {
	data, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), data...), nil
}
