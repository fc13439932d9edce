package splitter

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quotschmacher/EPUB-Image-Splitter/internal/epub"
)

// fixtureEPUB builds a complete EPUB on disk and returns its path.
// entries maps archive paths to content; mimetype and container.xml are
// added automatically.
func fixtureEPUB(t *testing.T, dir, name string, entries map[string][]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	mw, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatal(err)
	}
	mw.Write([]byte("application/epub+zip"))

	cw, err := w.Create("META-INF/container.xml")
	if err != nil {
		t.Fatal(err)
	}
	cw.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`))

	for entryName, data := range entries {
		ew, err := w.Create(entryName)
		if err != nil {
			t.Fatal(err)
		}
		ew.Write(data)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// alternatingFixture builds an EPUB whose single chapter is
// [text][image][text][image][text], with one stylesheet and, optionally,
// a 1x1 placeholder image inside the middle text run.
func alternatingFixture(t *testing.T, dir string, withPlaceholder bool) string {
	t.Helper()

	spacer := ""
	spacerItem := ""
	if withPlaceholder {
		spacer = `<img src="../images/spacer.png"/>`
		spacerItem = `<item id="spacer" href="images/spacer.png" media-type="image/png"/>`
	}

	chapter := `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>Chapter 1</title>
  <link rel="stylesheet" type="text/css" href="../styles/main.css"/>
</head>
<body>
  <p>first text</p>
  <img src="../images/a.png" alt="first image"/>
  <p>second ` + spacer + ` text</p>
  <img src="../images/b.png" alt="second image"/>
  <p>third text</p>
</body>
</html>`

	opf := `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="BookId">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Fixture Book</dc:title>
    <dc:identifier id="BookId">urn:isbn:111</dc:identifier>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="styles/main.css" media-type="text/css"/>
    <item id="imga" href="images/a.png" media-type="image/png"/>
    <item id="imgb" href="images/b.png" media-type="image/png"/>
    ` + spacerItem + `
  </manifest>
  <spine>
    <itemref idref="ch1"/>
  </spine>
</package>`

	entries := map[string][]byte{
		"OEBPS/content.opf":     []byte(opf),
		"OEBPS/text/ch1.xhtml":  []byte(chapter),
		"OEBPS/styles/main.css": []byte("p { margin: 0; }"),
		"OEBPS/images/a.png":    encodeTestPNG(t, 3, 3),
		"OEBPS/images/b.png":    encodeTestPNG(t, 4, 4),
	}
	if withPlaceholder {
		entries["OEBPS/images/spacer.png"] = encodeTestPNG(t, 1, 1)
	}

	return fixtureEPUB(t, dir, "fixture.epub", entries)
}

// outputPages reads the converted archive and returns each spine page's
// XHTML source, in spine order.
func outputPages(t *testing.T, path string) []string {
	t.Helper()
	reader, err := epub.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer reader.Close()

	opfData, err := reader.ReadFile(reader.OPFPath())
	if err != nil {
		t.Fatal(err)
	}
	opf, err := epub.ParseOPF(opfData, "OEBPS")
	if err != nil {
		t.Fatalf("parse output OPF: %v", err)
	}

	var pages []string
	for _, si := range opf.Spine {
		item, ok := opf.Manifest[si.IDRef]
		if !ok {
			t.Fatalf("spine id %q missing from manifest", si.IDRef)
		}
		data, err := reader.ReadFile(item.Href)
		if err != nil {
			t.Fatalf("read page %q: %v", item.Href, err)
		}
		pages = append(pages, string(data))
	}
	return pages
}

func convertFixture(t *testing.T, in string, mutate func(*Options)) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "fixture_imgsplit.epub")
	opts := Options{
		InputPath:  in,
		OutputPath: out,
		MinWidth:   2,
		MinHeight:  2,
	}
	if mutate != nil {
		mutate(&opts)
	}
	if err := NewPipeline(opts).Convert(); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	return out
}

func isImagePage(page string) bool {
	return strings.Contains(page, "<img ")
}

func TestConvert_DefaultAlternatingPages(t *testing.T) {
	in := alternatingFixture(t, t.TempDir(), false)
	out := convertFixture(t, in, nil)

	pages := outputPages(t, out)
	if len(pages) != 5 {
		t.Fatalf("page count = %d, want 5", len(pages))
	}

	wantImage := []bool{false, true, false, true, false}
	for i, page := range pages {
		if isImagePage(page) != wantImage[i] {
			t.Errorf("page %d image = %v, want %v", i+1, isImagePage(page), wantImage[i])
		}
	}

	for _, snippet := range []string{"first text", "second", "third text"} {
		found := false
		for _, page := range pages {
			if strings.Contains(page, snippet) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("text %q missing from output pages", snippet)
		}
	}

	if !strings.Contains(pages[1], `alt="first image"`) {
		t.Errorf("alt text not carried:\n%s", pages[1])
	}
}

func TestConvert_ImagesOnly(t *testing.T) {
	in := alternatingFixture(t, t.TempDir(), false)
	out := convertFixture(t, in, func(o *Options) { o.ImagesOnly = true })

	pages := outputPages(t, out)
	if len(pages) != 2 {
		t.Fatalf("page count = %d, want 2", len(pages))
	}
	for i, page := range pages {
		if !isImagePage(page) {
			t.Errorf("page %d is not an image page", i+1)
		}
	}
	// original order preserved
	if !strings.Contains(pages[0], `alt="first image"`) || !strings.Contains(pages[1], `alt="second image"`) {
		t.Error("image pages out of original order")
	}
}

func TestConvert_PlaceholderFiltered(t *testing.T) {
	in := alternatingFixture(t, t.TempDir(), true)
	out := convertFixture(t, in, nil)

	pages := outputPages(t, out)
	// the 1x1 spacer must not create a page or break the text run
	if len(pages) != 5 {
		t.Fatalf("page count = %d, want 5", len(pages))
	}
	for _, page := range pages {
		if strings.Contains(page, "spacer") {
			t.Errorf("placeholder leaked into page:\n%s", page)
		}
	}

	// the spacer resource is not copied into the output
	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	imageEntries := 0
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "OEBPS/images/") {
			imageEntries++
		}
	}
	if imageEntries != 2 {
		t.Errorf("output image count = %d, want 2", imageEntries)
	}
}

func TestConvert_StylesheetPropagation(t *testing.T) {
	in := alternatingFixture(t, t.TempDir(), false)
	out := convertFixture(t, in, nil)

	for i, page := range outputPages(t, out) {
		if !strings.Contains(page, `href="../styles/main.css"`) {
			t.Errorf("page %d missing stylesheet link:\n%s", i+1, page)
		}
		if strings.Count(page, "<link") != 1 {
			t.Errorf("page %d has %d links, want exactly the source stylesheet set", i+1, strings.Count(page, "<link"))
		}
	}
}

func TestConvert_Idempotent(t *testing.T) {
	in := alternatingFixture(t, t.TempDir(), false)
	first := convertFixture(t, in, nil)
	second := convertFixture(t, first, nil)

	count := func(path string) int {
		n := 0
		for _, page := range outputPages(t, path) {
			if isImagePage(page) {
				n++
			}
		}
		return n
	}

	if got, want := count(second), count(first); got != want {
		t.Errorf("image page count after reconversion = %d, want %d", got, want)
	}
}

func TestConvert_UnreadableDocumentIsSkipped(t *testing.T) {
	dir := t.TempDir()
	opf := `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>T</dc:title></metadata>
  <manifest>
    <item id="bad" href="bad.xhtml" media-type="application/xhtml+xml"/>
    <item id="good" href="good.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="bad"/>
    <itemref idref="missing"/>
    <itemref idref="good"/>
  </spine>
</package>`
	in := fixtureEPUB(t, dir, "partial.epub", map[string][]byte{
		"OEBPS/content.opf": []byte(opf),
		// entry listed in the manifest but absent from the archive
		"OEBPS/good.xhtml": []byte(`<html><body><p>still here</p></body></html>`),
	})

	out := convertFixture(t, in, nil)
	pages := outputPages(t, out)
	if len(pages) != 1 {
		t.Fatalf("page count = %d, want 1", len(pages))
	}
	if !strings.Contains(pages[0], "still here") {
		t.Errorf("surviving document content missing:\n%s", pages[0])
	}
}

func TestConvert_NoPages(t *testing.T) {
	dir := t.TempDir()
	opf := `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Empty</dc:title></metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="ch1"/></spine>
</package>`
	in := fixtureEPUB(t, dir, "empty.epub", map[string][]byte{
		"OEBPS/content.opf": []byte(opf),
		"OEBPS/ch1.xhtml":   []byte(`<html><body>   </body></html>`),
	})

	opts := Options{
		InputPath:  in,
		OutputPath: filepath.Join(dir, "empty_imgsplit.epub"),
		MinWidth:   2,
		MinHeight:  2,
	}
	err := NewPipeline(opts).Convert()
	if !errors.Is(err, ErrNoPages) {
		t.Fatalf("Convert() error = %v, want ErrNoPages", err)
	}
}

func TestConvert_DeclaredDimensionsWin(t *testing.T) {
	// declared 1x1 filters the image even though the resource is 3x3
	dir := t.TempDir()
	opf := `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>T</dc:title></metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="img" href="a.png" media-type="image/png"/>
  </manifest>
  <spine><itemref idref="ch1"/></spine>
</package>`
	in := fixtureEPUB(t, dir, "declared.epub", map[string][]byte{
		"OEBPS/content.opf": []byte(opf),
		"OEBPS/ch1.xhtml": []byte(`<html><body>
<p>text</p>
<img src="a.png" width="1" height="1"/>
</body></html>`),
		"OEBPS/a.png": encodeTestPNG(t, 3, 3),
	})

	out := convertFixture(t, in, nil)
	pages := outputPages(t, out)
	if len(pages) != 1 {
		t.Fatalf("page count = %d, want 1 text page", len(pages))
	}
	if isImagePage(pages[0]) {
		t.Error("declared 1x1 image still produced an image page")
	}
}

// svgFixture builds an EPUB whose single chapter references an SVG image.
// SVG has no raster header, so its dimensions cannot be probed.
func svgFixture(t *testing.T, dir string) string {
	t.Helper()
	opf := `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>T</dc:title></metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="logo" href="logo.svg" media-type="image/svg+xml"/>
  </manifest>
  <spine><itemref idref="ch1"/></spine>
</package>`
	return fixtureEPUB(t, dir, "vector.epub", map[string][]byte{
		"OEBPS/content.opf": []byte(opf),
		"OEBPS/ch1.xhtml": []byte(`<html><body>
<p>before</p>
<img src="logo.svg"/>
<p>after</p>
</body></html>`),
		"OEBPS/logo.svg": []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100"/>`),
	})
}

func TestConvert_UnknownDimensionsKeptByDefault(t *testing.T) {
	in := svgFixture(t, t.TempDir())
	out := convertFixture(t, in, nil)

	pages := outputPages(t, out)
	if len(pages) != 3 {
		t.Fatalf("page count = %d, want 3", len(pages))
	}
	if !isImagePage(pages[1]) {
		t.Errorf("undecodable image did not produce a page:\n%s", pages[1])
	}
	if !strings.Contains(pages[1], ".svg") {
		t.Errorf("image page does not reference the copied resource:\n%s", pages[1])
	}
}

func TestConvert_DropUnknownSize(t *testing.T) {
	in := svgFixture(t, t.TempDir())
	out := convertFixture(t, in, func(o *Options) { o.DropUnknownSize = true })

	pages := outputPages(t, out)
	if len(pages) != 1 {
		t.Fatalf("page count = %d, want 1 text page", len(pages))
	}
	if isImagePage(pages[0]) {
		t.Error("dropped image still produced an image page")
	}
	// the dropped image must not break the text run
	if !strings.Contains(pages[0], "before") || !strings.Contains(pages[0], "after") {
		t.Errorf("text around the dropped image missing:\n%s", pages[0])
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "OEBPS/images/") {
			t.Errorf("dropped image copied into output: %s", f.Name)
		}
	}
}

func TestConvert_GuideTitleUsed(t *testing.T) {
	dir := t.TempDir()
	opf := `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>T</dc:title></metadata>
  <manifest>
    <item id="cov" href="cover.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="cov"/></spine>
  <guide>
    <reference type="cover" title="Cover" href="cover.xhtml#top"/>
  </guide>
</package>`
	in := fixtureEPUB(t, dir, "guided.epub", map[string][]byte{
		"OEBPS/content.opf": []byte(opf),
		"OEBPS/cover.xhtml": []byte(`<html><body><p>cover text</p></body></html>`),
	})

	out := convertFixture(t, in, nil)
	pages := outputPages(t, out)
	if len(pages) != 1 {
		t.Fatalf("page count = %d, want 1", len(pages))
	}
	if !strings.Contains(pages[0], "<title>Cover</title>") {
		t.Errorf("guide title not applied:\n%s", pages[0])
	}
}

func TestConvert_ResizesWideImages(t *testing.T) {
	in := alternatingFixture(t, t.TempDir(), false)
	out := convertFixture(t, in, func(o *Options) { o.MaxImageWidth = 2 })

	reader, err := epub.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	data, err := reader.ReadFile("OEBPS/images/img_0001.png")
	if err != nil {
		t.Fatalf("read resized image: %v", err)
	}
	w, _, ok := probeDimensions(data)
	if !ok {
		t.Fatal("resized image not decodable")
	}
	if w != 2 {
		t.Errorf("resized width = %d, want 2", w)
	}
}
