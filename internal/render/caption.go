package render

import (
	"image"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const (
	minCaptionSize   = 28
	captionSizeRatio = 0.06
	wrapWidthRatio   = 0.9
	topMarginRatio   = 0.04
	lineSpacingRatio = 0.25
	strokeRatio      = 0.08
	minStroke        = 2

	minFooterSize    = 14
	footerSizeRatio  = 0.025
	footerOffsetRate = 0.06
	footerStroke     = 2
)

// DefaultFooter is the watermark drawn under every caption.
const DefaultFooter = "Dirt to Meme Magic"

// Layout describes where a caption block was placed.
type Layout struct {
	FontSize int
	Stroke   int
	Lines    []string
	Heights  []int // box height of each line
	Spacing  int   // gap between consecutive lines
	Top      int   // y of the first line, relative to the image
	Height   int   // stacked height of the whole block
}

// Renderer draws meme captions and the footer watermark.
type Renderer struct {
	fonts  *Fonts
	footer string
}

// NewRenderer creates a caption renderer. An empty footer disables the watermark.
func NewRenderer(fonts *Fonts, footer string) *Renderer {
	return &Renderer{fonts: fonts, footer: footer}
}

// Fonts returns the font set the renderer draws with.
func (r *Renderer) Fonts() *Fonts {
	return r.fonts
}

// Render draws caption in upper case across the top of img and the footer
// near the bottom. img is modified in place and returned for chaining.
func (r *Renderer) Render(img *image.NRGBA, caption string) (*image.NRGBA, Layout) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	size := max(minCaptionSize, int(float64(width)*captionSizeRatio))
	face := r.fonts.Face(size)
	defer face.Close()

	layout := PlanCaption(face, strings.ToUpper(caption), width, height, size)
	measure := FaceMeasurer{Face: face}

	y := layout.Top
	for i, line := range layout.Lines {
		x := (width - measure.Measure(line)) / 2
		drawOutlined(img, face, line, bounds.Min.X+x, bounds.Min.Y+y, layout.Stroke)
		y += layout.Heights[i] + layout.Spacing
	}

	if r.footer != "" {
		r.drawFooter(img)
	}
	return img, layout
}

func (r *Renderer) drawFooter(img *image.NRGBA) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	face := r.fonts.Face(max(minFooterSize, int(float64(width)*footerSizeRatio)))
	defer face.Close()

	x := (width - FaceMeasurer{Face: face}.Measure(r.footer)) / 2
	y := height - int(float64(width)*footerOffsetRate)
	drawOutlined(img, face, r.footer, bounds.Min.X+x, bounds.Min.Y+y, footerStroke)
}

// PlanCaption wraps text against 90% of the canvas width and computes the
// vertical placement of every line. text is used as given.
func PlanCaption(face font.Face, text string, width, height, size int) Layout {
	layout := Layout{
		FontSize: size,
		Stroke:   max(minStroke, int(float64(size)*strokeRatio)),
		Lines:    Wrap(text, FaceMeasurer{Face: face}, int(float64(width)*wrapWidthRatio)),
		Spacing:  int(float64(size) * lineSpacingRatio),
		Top:      int(float64(height) * topMarginRatio),
	}

	for i, line := range layout.Lines {
		h := lineHeight(face, line)
		layout.Heights = append(layout.Heights, h)
		layout.Height += h
		if i > 0 {
			layout.Height += layout.Spacing
		}
	}
	return layout
}

// lineHeight is the distance from the top of the ascender to the lowest inked
// pixel of line.
func lineHeight(face font.Face, line string) int {
	bounds, _ := font.BoundString(face, line)
	return (face.Metrics().Ascent + bounds.Max.Y).Ceil()
}

// drawOutlined draws text in white with a black outline of the given
// thickness. top is the y of the ascender line.
func drawOutlined(dst draw.Image, face font.Face, text string, x, top, stroke int) {
	dot := fixed.Point26_6{X: fixed.I(x), Y: fixed.I(top) + face.Metrics().Ascent}
	bounds, _ := font.BoundString(face, text)

	area := image.Rect(
		(dot.X+bounds.Min.X).Floor()-stroke,
		(dot.Y+bounds.Min.Y).Floor()-stroke,
		(dot.X+bounds.Max.X).Ceil()+stroke,
		(dot.Y+bounds.Max.Y).Ceil()+stroke,
	)
	if area.Empty() {
		return
	}

	glyphs := image.NewAlpha(area)
	d := &font.Drawer{Dst: glyphs, Src: image.Opaque, Face: face, Dot: dot}
	d.DrawString(text)

	draw.DrawMask(dst, area, image.Black, image.Point{}, dilate(glyphs, stroke), area.Min, draw.Over)
	draw.DrawMask(dst, area, image.White, image.Point{}, glyphs, area.Min, draw.Over)
}

// dilate grows the mask by a disc of the given radius, taking the maximum
// coverage found under the disc for every pixel.
func dilate(src *image.Alpha, radius int) *image.Alpha {
	b := src.Bounds()
	dst := image.NewAlpha(b)

	var disc []image.Point
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				disc = append(disc, image.Pt(dx, dy))
			}
		}
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var cover uint8
			for _, o := range disc {
				p := image.Pt(x+o.X, y+o.Y)
				if !p.In(b) {
					continue
				}
				if a := src.Pix[src.PixOffset(p.X, p.Y)]; a > cover {
					cover = a
					if cover == 0xff {
						break
					}
				}
			}
			dst.Pix[dst.PixOffset(x, y)] = cover
		}
	}
	return dst
}
