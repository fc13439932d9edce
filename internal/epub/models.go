package epub

// OPF represents the parsed Open Package Format document
type OPF struct {
	Metadata      Metadata
	Manifest      map[string]ManifestItem // id -> item
	ManifestOrder []string                // manifest ids in document order
	Spine         []SpineItem
	Guide         []GuideReference
	NCXPath       string
}

// Metadata represents the metadata section of the OPF
type Metadata struct {
	Title       string
	Creators    []Creator
	Language    string
	Identifier  string
	Publisher   string
	Date        string
	Description string
	Subjects    []string
	Rights      string
	CoverID     string      // EPUB 2.0 cover image manifest item ID (from meta name="cover")
	MetaEntries []MetaEntry // simple meta name/content pairs, carried into the output package
}

// Creator represents a creator (author, editor, etc.) of the book
type Creator struct {
	Name string
	Role string // e.g., "aut" for author, "edt" for editor
	Lang string // xml:lang attribute
}

// MetaEntry represents an EPUB 2.0 style meta element with name/content attributes.
type MetaEntry struct {
	Name    string
	Content string
}

// ManifestItem represents an item in the manifest
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// SpineItem represents an item reference in the spine
type SpineItem struct {
	IDRef  string
	Linear bool
}

// GuideReference represents a reference element in the OPF guide section.
type GuideReference struct {
	Type  string
	Title string
	Href  string
}

// Stylesheets returns the manifest items with a stylesheet media type,
// in manifest document order.
func (opf *OPF) Stylesheets() []ManifestItem {
	var sheets []ManifestItem
	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		if item.MediaType == "text/css" {
			sheets = append(sheets, item)
		}
	}
	return sheets
}
