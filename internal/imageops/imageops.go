// Package imageops prepares uploaded pictures for captioning: decoding with a
// format allow-list, flattening to opaque colour, bounding the size and
// framing. It also encodes the final JPEG.
package imageops

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxSide bounds the longest side of a normalized image.
	DefaultMaxSide = 1280
	// DefaultJPEGQuality is the quality used for generated memes.
	DefaultJPEGQuality = 92

	minBorder      = 8
	borderDivision = 64
)

var (
	// ErrUndecodable is returned for bytes no registered decoder understands.
	ErrUndecodable = errors.New("cannot identify image file")
	// ErrUnsupportedFormat is returned for decodable formats outside the allow-list.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

var allowedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
	"webp": true,
}

// FrameColor fills the border added by Frame.
var FrameColor = color.NRGBA{A: 0xff}

// Decode decodes data and returns the image with its format name. Animated
// GIFs yield their first frame.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return nil, "", ErrUndecodable
	}
	if err != nil {
		return nil, format, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if !allowedFormats[format] {
		return nil, format, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return img, format, nil
}

// Flatten converts img to NRGBA and discards transparency: every pixel keeps
// its colour and becomes fully opaque. Palette and grayscale inputs come out
// as ordinary RGB.
func Flatten(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// Fit scales img down so neither side exceeds maxSide, keeping the aspect
// ratio. Images already within bounds are copied unchanged.
func Fit(img *image.NRGBA, maxSide int) *image.NRGBA {
	return imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
}

// BorderWidth is the frame thickness for an image of the given width.
func BorderWidth(width int) int {
	return max(minBorder, width/borderDivision)
}

// Frame surrounds img with a solid FrameColor border.
func Frame(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	border := BorderWidth(b.Dx())
	framed := imaging.New(b.Dx()+2*border, b.Dy()+2*border, FrameColor)
	return imaging.Paste(framed, img, image.Pt(border, border))
}

// Normalize runs Flatten, Fit and Frame in that order.
func Normalize(img image.Image, maxSide int) *image.NRGBA {
	return Frame(Fit(Flatten(img), maxSide))
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
