package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// FontSource tells which typeface the renderer ended up with.
type FontSource string

const (
	// FontBundled is the decorative font shipped in the assets directory.
	FontBundled FontSource = "bundled"
	// FontFallback is the embedded Go Bold typeface.
	FontFallback FontSource = "fallback"
	// FontBitmap is the fixed 7x13 bitmap face, used only if Go Bold cannot be parsed.
	FontBitmap FontSource = "bitmap"
)

// Fonts holds parsed font data. It is read-only after LoadFonts and can be
// shared across requests; faces are created per call because they are not
// safe for concurrent use.
type Fonts struct {
	font   *opentype.Font
	source FontSource

	// Reason explains why the bundled font is not in use. Empty when it is.
	Reason string
}

// LoadFonts parses the font at path. A missing or unreadable font is not an
// error: the returned Fonts falls back to an embedded typeface instead.
func LoadFonts(path string) *Fonts {
	f, err := loadOpenType(path)
	if err == nil {
		return &Fonts{font: f, source: FontBundled}
	}
	reason := err.Error()

	f, err = opentype.Parse(gobold.TTF)
	if err == nil {
		return &Fonts{font: f, source: FontFallback, Reason: reason}
	}
	return &Fonts{source: FontBitmap, Reason: reason}
}

func loadOpenType(path string) (*opentype.Font, error) {
	if path == "" {
		return nil, errors.New("font path not configured")
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("font %s is missing", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return f, nil
}

// Source reports which typeface faces are drawn from.
func (f *Fonts) Source() FontSource {
	return f.source
}

// Face returns a face of the given pixel size. The caller must Close it.
func (f *Fonts) Face(size int) font.Face {
	if f.font != nil {
		face, err := opentype.NewFace(f.font, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			return face
		}
	}
	return basicfont.Face7x13
}
