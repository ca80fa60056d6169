package detect

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/timmy/dirt2meme/internal/logger"
)

// Params tunes the cascade scan.
type Params struct {
	MinSize     int     // smallest face edge in pixels
	ScaleFactor float64 // window growth between scan passes
	ShiftFactor float64 // window step as a fraction of its size
	// QualityThreshold is the accumulated detection score a cluster needs to
	// count as a face. It plays the role of a "minimum neighbours" vote.
	QualityThreshold float32
	IoUThreshold     float64 // overlap used to merge raw detections
}

// DefaultParams mirrors the usual frontal-face settings: 1.1 scale steps,
// 60x60 minimum region, five-vote confirmation.
func DefaultParams() Params {
	return Params{
		MinSize:          60,
		ScaleFactor:      1.1,
		ShiftFactor:      0.1,
		QualityThreshold: 5,
		IoUThreshold:     0.2,
	}
}

// Region is one detected face.
type Region struct {
	Row, Col int // centre
	Size     int
	Quality  float32
}

// Cascade is a pigo frontal-face detector. The unpacked cascade is read-only
// and shared by concurrent requests.
type Cascade struct {
	classifier *pigo.Pigo
	params     Params
}

// LoadCascade reads and unpacks a pigo cascade file.
func LoadCascade(path string, p Params) (*Cascade, error) {
	if path == "" {
		return nil, fmt.Errorf("cascade path not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade: %w", err)
	}
	return NewCascade(data, p)
}

// NewCascade unpacks cascade data. Malformed data is reported as an error.
func NewCascade(data []byte, p Params) (c *Cascade, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("malformed cascade data: %v", r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}
	return &Cascade{classifier: classifier, params: p}, nil
}

// Name implements Classifier.
func (c *Cascade) Name() string { return "pigo" }

// HasFace implements Classifier.
func (c *Cascade) HasFace(ctx context.Context, img image.Image) bool {
	regions, err := c.Detect(ctx, img)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Face detection failed, treating as no face")
		return false
	}
	return len(regions) > 0
}

// Detect returns the face regions found in img.
func (c *Cascade) Detect(ctx context.Context, img image.Image) (regions []Region, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			regions, err = nil, fmt.Errorf("cascade run panicked: %v", r)
		}
	}()

	gray := luminance(img)
	params, ok := c.scanParams(gray)
	if !ok {
		return nil, nil
	}

	dets := c.classifier.RunCascade(params, 0)
	dets = c.classifier.ClusterDetections(dets, c.params.IoUThreshold)
	for _, d := range dets {
		if d.Q < c.params.QualityThreshold {
			continue
		}
		regions = append(regions, Region{Row: d.Row, Col: d.Col, Size: d.Scale, Quality: d.Q})
	}
	return regions, nil
}

// scanParams builds the pigo parameters for a grayscale frame. It reports
// false when the frame is smaller than the minimum face size.
func (c *Cascade) scanParams(gray *image.Gray) (pigo.CascadeParams, bool) {
	rows, cols := gray.Rect.Dy(), gray.Rect.Dx()
	maxSize := min(rows, cols)
	if maxSize < c.params.MinSize {
		return pigo.CascadeParams{}, false
	}
	return pigo.CascadeParams{
		MinSize:     c.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: c.params.ShiftFactor,
		ScaleFactor: c.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix,
			Rows:   rows,
			Cols:   cols,
			Dim:    gray.Stride,
		},
	}, true
}

// luminance converts img to an 8-bit grayscale frame anchored at the origin.
func luminance(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
