// Package overlay stamps a decorative, semi-transparent asset into the
// bottom-right corner of a meme.
package overlay

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	// DefaultScale is the overlay width as a fraction of the target width.
	DefaultScale = 0.22
	// DefaultOpacity multiplies the overlay's own alpha channel.
	DefaultOpacity = 0.6
	marginRatio    = 0.03
)

var assetExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Picker chooses an index in [0, n). *rand.Rand from math/rand/v2 satisfies it.
type Picker interface {
	IntN(n int) int
}

// Decoration reports the outcome of Apply.
type Decoration struct {
	Applied bool
	Asset   string // file name of the chosen asset
	Reason  string // why nothing was applied
}

// Compositor composites assets found in one directory. The directory is
// listed once, when the compositor is created.
type Compositor struct {
	dir     string
	scale   float64
	opacity float64
	assets  []string
	listErr error
}

// NewCompositor creates a compositor reading assets from dir.
// Non-positive scale or opacity fall back to the defaults.
func NewCompositor(dir string, scale, opacity float64) *Compositor {
	if scale <= 0 {
		scale = DefaultScale
	}
	if opacity <= 0 {
		opacity = DefaultOpacity
	}
	c := &Compositor{dir: dir, scale: scale, opacity: opacity}
	c.assets, c.listErr = listAssets(dir)
	return c
}

// Assets returns the usable asset files found at creation, sorted by name.
// A missing directory yields an empty list; any other listing failure is
// returned alongside an empty list.
func (c *Compositor) Assets() ([]string, error) {
	return slices.Clone(c.assets), c.listErr
}

func listAssets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list overlay assets: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !assetExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Apply composites one randomly chosen asset onto img. When there are no
// assets (including an unreadable directory), or the chosen one is missing or
// cannot be decoded, img is returned unchanged with Applied=false. Other I/O
// failures reading the asset are returned as errors.
func (c *Compositor) Apply(img *image.NRGBA, pick Picker) (*image.NRGBA, Decoration, error) {
	if c.listErr != nil {
		return img, Decoration{Reason: c.listErr.Error()}, nil
	}
	if len(c.assets) == 0 {
		return img, Decoration{Reason: "no overlay assets"}, nil
	}

	name := c.assets[pick.IntN(len(c.assets))]
	asset, err := c.load(name)
	if err != nil {
		var unusable *unusableAssetError
		if errors.As(err, &unusable) {
			return img, Decoration{Asset: name, Reason: unusable.Error()}, nil
		}
		return img, Decoration{Asset: name}, err
	}

	out, ok := c.composite(img, asset)
	if !ok {
		return img, Decoration{Asset: name, Reason: "target too small for overlay"}, nil
	}
	return out, Decoration{Applied: true, Asset: name}, nil
}

// composite scales asset to the configured share of the target width and
// alpha-blends it into the bottom-right corner. Pixels outside the pasted
// rectangle are left untouched.
func (c *Compositor) composite(img *image.NRGBA, asset image.Image) (*image.NRGBA, bool) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	targetW := int(float64(w) * c.scale)
	src := asset.Bounds()
	if targetW <= 0 || src.Dx() == 0 || src.Dy() == 0 {
		return img, false
	}
	ratio := float64(targetW) / float64(src.Dx())
	targetH := max(1, int(float64(src.Dy())*ratio))

	scaled := imaging.Resize(asset, targetW, targetH, imaging.Lanczos)
	margin := int(float64(w) * marginRatio)
	at := image.Pt(bounds.Min.X+w-targetW-margin, bounds.Min.Y+h-targetH-margin)

	return imaging.Overlay(img, scaled, at, c.opacity), true
}

type unusableAssetError struct {
	name string
	err  error
}

func (e *unusableAssetError) Error() string {
	return fmt.Sprintf("overlay asset %s unusable: %v", e.name, e.err)
}

func (e *unusableAssetError) Unwrap() error { return e.err }

func (c *Compositor) load(name string) (image.Image, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &unusableAssetError{name: name, err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read overlay asset %s: %w", name, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &unusableAssetError{name: name, err: err}
	}
	return imaging.Clone(img), nil
}
