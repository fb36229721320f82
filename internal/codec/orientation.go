package codec

import (
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
)

const orientationNormal = 1

// readOrientation returns the EXIF Orientation value (1-8) of the IFD0
// block, or 1 when there is none or it cannot be read.
func readOrientation(rs io.ReadSeeker) int {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return orientationNormal
	}

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(rs, nil, true)
	if err != nil {
		return orientationNormal
	}

	for _, tag := range tags {
		if tag.TagName != "Orientation" || strings.Contains(tag.IfdPath, "Thumbnail") {
			continue
		}
		if v, ok := tag.Value.([]uint16); ok && len(v) > 0 && v[0] >= 1 && v[0] <= 8 {
			return int(v[0])
		}
	}
	return orientationNormal
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
