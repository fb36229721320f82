// Package codec decodes, resizes and encodes images for the batch processor.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	_ "golang.org/x/image/webp"

	"imgmatrix/internal/imgerr"
	"imgmatrix/pkg/imgutil"
)

var ErrUnsupportedContainer = errors.New("unsupported image container")

type Options struct {
	// AutoOrient applies the EXIF Orientation tag of JPEG and TIFF inputs
	// after decoding.
	AutoOrient bool
}

// Codec implements processor.Codec. It holds no mutable state and is safe
// for concurrent use.
type Codec struct {
	opts Options
}

func New(opts Options) *Codec {
	return &Codec{opts: opts}
}

// Decode reads the whole file, checks its signature and decodes it.
func (c *Codec) Decode(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, imgerr.Decode(path, err)
	}

	kind, err := imgutil.DetectHeader(data)
	if err != nil {
		return nil, imgerr.Decode(path, err)
	}
	if kind == imgutil.KindUnknown {
		return nil, imgerr.Decode(path, ErrUnsupportedContainer)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, imgerr.Decode(path, fmt.Errorf("%s: %w", kind, err))
	}

	if c.opts.AutoOrient && kind.HasExif() {
		img = applyOrientation(img, readOrientation(bytes.NewReader(data)))
	}
	return img, nil
}

// Resize scales img to exactly width x height with a Lanczos filter.
func (c *Codec) Resize(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// EncodeAndWrite encodes img in memory first so encoder failures never leave
// a partial file behind, then writes it to path through a temporary file.
func (c *Codec) EncodeAndWrite(img image.Image, path string, format imgutil.Format, quality int) error {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return imgerr.Encode("", fmt.Errorf("%s: %w", path, err))
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return imgerr.Write("", fmt.Errorf("%s: %w", path, err))
	}
	return nil
}

// Encode writes img to w in format. quality applies to JPEG and WebP.
func Encode(w io.Writer, img image.Image, format imgutil.Format, quality int) error {
	switch format {
	case imgutil.FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case imgutil.FormatPNG:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression))
	case imgutil.FormatGIF:
		return imaging.Encode(w, img, imaging.GIF, imaging.GIFNumColors(256))
	case imgutil.FormatBMP:
		return imaging.Encode(w, img, imaging.BMP)
	case imgutil.FormatTIFF:
		return imaging.Encode(w, img, imaging.TIFF)
	case imgutil.FormatWebP:
		options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
		if err != nil {
			return fmt.Errorf("webp options: %w", err)
		}
		return webp.Encode(w, img, options)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
