package splitter

import "errors"

// Sentinel errors returned by the splitter package.
var (
	// ErrUnparseableContent indicates a spine content document could not
	// be parsed as markup. Recovered per document: the document yields
	// zero segments and processing continues.
	ErrUnparseableContent = errors.New("splitter: unparseable content document")

	// ErrUnresolvableImage indicates an img reference does not resolve to
	// an archive member. Recovered per image: the reference is skipped.
	ErrUnresolvableImage = errors.New("splitter: unresolvable image resource")

	// ErrNoPages indicates the input produced neither image nor text pages.
	ErrNoPages = errors.New("splitter: no pages produced")

	// ErrWriteFailure indicates the output archive could not be written.
	ErrWriteFailure = errors.New("splitter: write failure")
)
