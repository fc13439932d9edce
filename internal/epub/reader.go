package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Reader provides read-only access to the contents of an EPUB archive.
type Reader struct {
	zipReader *zip.ReadCloser
	files     map[string]*zip.File
	opfPath   string
}

// container.xml structure
type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// Open opens an EPUB file and locates its package document.
// The returned Reader holds an open file handle; callers must Close it.
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	reader := &Reader{
		zipReader: zr,
		files:     make(map[string]*zip.File),
	}

	// Build file map with normalized paths
	for _, f := range zr.File {
		name := normalizePath(f.Name)
		reader.files[name] = f
	}

	// A mimetype entry is not required on input (many real EPUBs get it
	// wrong), but one that declares a different format is rejected.
	if err := reader.checkMimetype(); err != nil {
		zr.Close()
		return nil, err
	}

	// Parse container.xml to get OPF path
	if err := reader.parseContainer(); err != nil {
		zr.Close()
		return nil, err
	}

	return reader, nil
}

// Close closes the underlying ZIP archive.
func (r *Reader) Close() error {
	return r.zipReader.Close()
}

// OPFPath returns the archive path of the package document.
func (r *Reader) OPFPath() string {
	return r.opfPath
}

// Has reports whether the archive contains the given file.
func (r *Reader) Has(path string) bool {
	_, ok := r.files[normalizePath(path)]
	return ok
}

// ReadFile reads the contents of a file from the EPUB
func (r *Reader) ReadFile(path string) ([]byte, error) {
	path = normalizePath(path)
	f, ok := r.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// checkMimetype rejects archives whose mimetype entry names another format.
func (r *Reader) checkMimetype() error {
	if _, ok := r.files["mimetype"]; !ok {
		return nil
	}
	content, err := r.ReadFile("mimetype")
	if err != nil {
		return fmt.Errorf("%w: reading mimetype: %v", ErrMalformedArchive, err)
	}
	if mt := strings.TrimSpace(string(content)); mt != "" && mt != "application/epub+zip" {
		return fmt.Errorf("%w: mimetype is %q", ErrMalformedArchive, mt)
	}
	return nil
}

// parseContainer parses container.xml to extract OPF path
func (r *Reader) parseContainer() error {
	content, err := r.ReadFile("META-INF/container.xml")
	if err != nil {
		return fmt.Errorf("%w: META-INF/container.xml missing", ErrMissingPackageDocument)
	}

	var c container
	if err := xml.Unmarshal(content, &c); err != nil {
		return fmt.Errorf("%w: parsing container.xml: %v", ErrMissingPackageDocument, err)
	}

	// Find the OPF file path
	for _, rf := range c.Rootfiles.Rootfile {
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			if rf.FullPath == "" {
				continue
			}
			r.opfPath = normalizePath(rf.FullPath)
			return nil
		}
	}

	// If no media-type match, use the first one
	if len(c.Rootfiles.Rootfile) > 0 && c.Rootfiles.Rootfile[0].FullPath != "" {
		r.opfPath = normalizePath(c.Rootfiles.Rootfile[0].FullPath)
		return nil
	}

	return fmt.Errorf("%w: no rootfile in container.xml", ErrMissingPackageDocument)
}

// normalizePath normalizes file paths (removes ./ prefix)
func normalizePath(path string) string {
	path = strings.TrimPrefix(path, "./")
	return path
}
