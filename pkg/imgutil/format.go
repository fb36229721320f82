package imgutil

import (
	"fmt"
	"strings"
)

// Format is a canonical output encoder identifier.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// ParseFormat maps a user supplied identifier (jpg, JPEG, tif, ...) to its
// canonical Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	case "gif":
		return FormatGIF, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	default:
		return "", fmt.Errorf("unsupported format %q (use jpg, png, webp, gif, bmp or tiff)", name)
	}
}

// Lossy reports whether the quality setting affects the encoder.
func (f Format) Lossy() bool {
	return f == FormatJPEG || f == FormatWebP
}

// InputExtensions lists the file extensions accepted as inputs, lowercase
// and without the leading dot.
var InputExtensions = []string{"jpg", "jpeg", "png", "gif", "webp", "bmp", "tiff", "tif", "ico"}

// IsInputExtension reports whether ext (with or without a leading dot) is an
// accepted input extension, ignoring case.
func IsInputExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, candidate := range InputExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}
