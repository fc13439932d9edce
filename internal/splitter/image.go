package splitter

import (
	"bytes"
	"image"
	"strconv"
	"strings"

	// register decoders for dimension probing
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/net/html"
)

// PlaceholderFilter classifies images as page-worthy or placeholder by pixel
// dimensions. KeepUnknown is the explicit policy for images whose dimensions
// cannot be determined: when true (the default), such images are kept as pages.
type PlaceholderFilter struct {
	MinWidth    int
	MinHeight   int
	KeepUnknown bool
}

// Keep reports whether an image with the given dimensions qualifies for its
// own page. known is false when the dimensions could not be determined.
func (f PlaceholderFilter) Keep(width, height int, known bool) bool {
	if !known {
		return f.KeepUnknown
	}
	return width >= f.MinWidth && height >= f.MinHeight
}

// declaredDimensions reads width/height attributes from an img element.
// Plain integers and px-suffixed values are accepted; percentages and other
// units are not dimensions in pixels and are ignored.
func declaredDimensions(n *html.Node) (width, height int, ok bool) {
	w, wok := parsePixels(attrVal(n, "width"))
	h, hok := parsePixels(attrVal(n, "height"))
	if !wok || !hok {
		return 0, 0, false
	}
	return w, h, true
}

func parsePixels(v string) (int, bool) {
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// probeDimensions decodes the image header to determine pixel dimensions.
func probeDimensions(data []byte) (width, height int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// downscaleToWidth resizes a raster image to maxWidth when it is wider,
// preserving aspect ratio. JPEG and PNG are re-encoded in their own format;
// anything that cannot be decoded or re-encoded passes through unchanged.
func downscaleToWidth(data []byte, mediaType string, maxWidth int) []byte {
	if maxWidth <= 0 {
		return data
	}

	format, ok := encodeFormat(mediaType)
	if !ok {
		return data
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= maxWidth {
		return data
	}

	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}
	resized := imaging.Resize(src, maxWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		return data
	}
	return buf.Bytes()
}

func encodeFormat(mediaType string) (imaging.Format, bool) {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg":
		return imaging.JPEG, true
	case "image/png":
		return imaging.PNG, true
	default:
		return 0, false
	}
}
