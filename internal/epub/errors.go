package epub

import "errors"

// Sentinel errors returned by the epub package.
var (
	// ErrMalformedArchive indicates the file could not be opened as a
	// ZIP container, or its mimetype entry contradicts the EPUB format.
	ErrMalformedArchive = errors.New("epub: malformed archive")

	// ErrMissingPackageDocument indicates the OPF package document could
	// not be located via META-INF/container.xml.
	ErrMissingPackageDocument = errors.New("epub: package document not found")

	// ErrMalformedManifest indicates the OPF has no usable manifest.
	ErrMalformedManifest = errors.New("epub: malformed manifest")

	// ErrMalformedSpine indicates the OPF has no spine element.
	ErrMalformedSpine = errors.New("epub: malformed spine")
)
