package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"mime"
	"strings"
	"time"

	"github.com/timmy/dirt2meme/internal/detect"
	"github.com/timmy/dirt2meme/internal/domain"
	"github.com/timmy/dirt2meme/internal/imageops"
	"github.com/timmy/dirt2meme/internal/logger"
	"github.com/timmy/dirt2meme/internal/overlay"
	"github.com/timmy/dirt2meme/internal/render"
	"github.com/timmy/dirt2meme/internal/storage"
)

const outputContentType = "image/jpeg"

// Upload is one image submitted for captioning.
type Upload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Result describes a generated meme.
type Result struct {
	ID           string
	StorageKey   string
	URL          string
	Caption      string
	FaceDetected bool
	Width        int
	Height       int
	SourceFormat string
	Overlay      overlay.Decoration
	FontSource   render.FontSource
	Image        []byte // encoded JPEG
}

// Metadata is the summary returned to clients next to the image.
type Metadata struct {
	Caption      string `json:"caption"`
	FaceDetected bool   `json:"faceDetected"`
}

// Metadata returns the client facing summary of r.
func (r *Result) Metadata() Metadata {
	return Metadata{Caption: r.Caption, FaceDetected: r.FaceDetected}
}

// MemeRecorder persists a record of each generated meme.
type MemeRecorder interface {
	Create(ctx context.Context, meme *domain.Meme) error
}

// GeneratorConfig holds the tunable pipeline settings.
type GeneratorConfig struct {
	MaxSide     int
	JPEGQuality int
}

// Option customizes a Generator.
type Option func(*Generator)

// WithPicker replaces the random source used for caption and overlay choice.
func WithPicker(p Picker) Option {
	return func(g *Generator) { g.pick = p }
}

// WithIDFunc replaces the identifier generator.
func WithIDFunc(f func() string) Option {
	return func(g *Generator) { g.newID = f }
}

// Generator turns uploaded photos into captioned memes. It holds no
// per-request state and may be shared between goroutines.
type Generator struct {
	classifier detect.Classifier
	captions   *CaptionPool
	renderer   *render.Renderer
	overlays   *overlay.Compositor
	storage    storage.ObjectStorage
	recorder   MemeRecorder
	logger     *logger.Logger
	pick       Picker
	newID      func() string
	maxSide    int
	quality    int
}

// NewGenerator creates a Generator. recorder may be nil, in which case no
// database record is written.
func NewGenerator(
	classifier detect.Classifier,
	captions *CaptionPool,
	renderer *render.Renderer,
	overlays *overlay.Compositor,
	objectStorage storage.ObjectStorage,
	recorder MemeRecorder,
	log *logger.Logger,
	cfg *GeneratorConfig,
	opts ...Option,
) *Generator {
	g := &Generator{
		classifier: classifier,
		captions:   captions,
		renderer:   renderer,
		overlays:   overlays,
		storage:    objectStorage,
		recorder:   recorder,
		logger:     log,
		pick:       globalPicker{},
		newID:      newMemeID,
		maxSide:    cfg.MaxSide,
		quality:    cfg.JPEGQuality,
	}
	if g.classifier == nil {
		g.classifier = detect.NoFace{}
	}
	if g.captions == nil {
		g.captions = DefaultCaptionPool()
	}
	if g.maxSide <= 0 {
		g.maxSide = imageops.DefaultMaxSide
	}
	if g.quality <= 0 || g.quality > 100 {
		g.quality = imageops.DefaultJPEGQuality
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// withLogger attaches the generator's logger unless the caller already
// supplied a request scoped one.
func (g *Generator) withLogger(ctx context.Context) context.Context {
	if g.logger == nil || logger.Attached(ctx) {
		return ctx
	}
	return g.logger.WithContext(ctx)
}

func (g *Generator) log(ctx context.Context) *logger.Logger {
	return logger.FromContext(ctx)
}

// composed is the in-memory result of the image stages.
type composed struct {
	img     *image.NRGBA
	caption string
	face    bool
	overlay overlay.Decoration
}

// Generate runs the whole pipeline for one upload and stores the result.
// Invalid requests fail before anything is written.
func (g *Generator) Generate(ctx context.Context, up Upload) (*Result, error) {
	start := time.Now()
	ctx = g.withLogger(ctx)

	src, format, err := g.prepare(up)
	if err != nil {
		g.log(ctx).WithField(logger.FieldFilename, up.Filename).WithError(err).Warn("Rejected upload")
		return nil, err
	}

	out, err := g.compose(ctx, src)
	if err != nil {
		g.log(ctx).WithError(err).Error("Failed to compose meme")
		return nil, err
	}

	data, err := imageops.EncodeJPEG(out.img, g.quality)
	if err != nil {
		return nil, processingFailure("encode", err)
	}

	id := g.newID()
	ctx = logger.SetMemeID(ctx, id)
	res := &Result{
		ID:           id,
		StorageKey:   id + ".jpg",
		Caption:      out.caption,
		FaceDetected: out.face,
		Width:        out.img.Bounds().Dx(),
		Height:       out.img.Bounds().Dy(),
		SourceFormat: format,
		Overlay:      out.overlay,
		FontSource:   g.renderer.Fonts().Source(),
		Image:        data,
	}

	if err := g.persist(ctx, res, up.Filename); err != nil {
		g.log(ctx).WithError(err).Error("Failed to store meme")
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldSize:       len(data),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		"face_detected":        res.FaceDetected,
		"overlay":              res.Overlay.Asset,
		"font":                 string(res.FontSource),
	}).Info(ctx, "Meme generated")

	return res, nil
}

// prepare validates the upload and returns the normalized image.
func (g *Generator) prepare(up Upload) (*image.NRGBA, string, error) {
	if up.Filename == "" || len(up.Data) == 0 {
		return nil, "", invalidInput(nil, "No file uploaded")
	}

	mediaType, _, err := mime.ParseMediaType(up.ContentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, "", invalidInput(err, "File '%s' is not a valid image.", up.Filename)
	}

	img, format, err := imageops.Decode(up.Data)
	switch {
	case errors.Is(err, imageops.ErrUnsupportedFormat):
		return nil, "", invalidInput(err, "Unsupported image format: %s", strings.ToUpper(format))
	case err != nil:
		return nil, "", invalidInput(err, "File '%s' is not a valid image.", up.Filename)
	}

	return imageops.Normalize(img, g.maxSide), format, nil
}

// compose classifies the framed image, then captions and decorates it.
func (g *Generator) compose(ctx context.Context, img *image.NRGBA) (*composed, error) {
	face := g.classifier.HasFace(ctx, img)
	caption := g.captions.Pick(face, g.pick)

	img, layout := g.renderer.Render(img, caption)
	g.log(ctx).WithFields(logger.Fields{
		"font_size": layout.FontSize,
		"lines":     len(layout.Lines),
	}).Debug("Caption rendered")

	if g.overlays == nil {
		return &composed{img: img, caption: caption, face: face}, nil
	}
	img, deco, err := g.overlays.Apply(img, g.pick)
	if err != nil {
		return nil, processingFailure("overlay", err)
	}
	if !deco.Applied && deco.Asset != "" {
		g.log(ctx).WithField("asset", deco.Asset).Warn(deco.Reason)
	}

	return &composed{img: img, caption: caption, face: face, overlay: deco}, nil
}

// persist writes the JPEG to storage and records it.
func (g *Generator) persist(ctx context.Context, res *Result, sourceName string) error {
	if err := ctx.Err(); err != nil {
		return processingFailure("store", err)
	}
	if err := g.storage.Upload(ctx, res.StorageKey, bytes.NewReader(res.Image), int64(len(res.Image)), outputContentType); err != nil {
		return processingFailure("store", err)
	}
	res.URL = g.storage.GetURL(res.StorageKey)

	if g.recorder == nil {
		return nil
	}
	meme := &domain.Meme{
		ID:           res.ID,
		StorageKey:   res.StorageKey,
		URL:          res.URL,
		Caption:      res.Caption,
		FaceDetected: res.FaceDetected,
		OverlayAsset: res.Overlay.Asset,
		Width:        res.Width,
		Height:       res.Height,
		FileSize:     int64(len(res.Image)),
		SourceName:   sourceName,
		SourceFormat: res.SourceFormat,
		FontSource:   string(res.FontSource),
	}
	if !res.Overlay.Applied {
		meme.OverlayAsset = ""
	}
	if err := g.recorder.Create(ctx, meme); err != nil {
		return processingFailure("record", fmt.Errorf("meme %s stored but not recorded: %w", res.ID, err))
	}
	return nil
}
