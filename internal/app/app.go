// Package app assembles the meme pipeline from configuration. Both the HTTP
// server and the command line tool start from here.
package app

import (
	"context"
	"fmt"

	"github.com/timmy/dirt2meme/internal/config"
	"github.com/timmy/dirt2meme/internal/detect"
	"github.com/timmy/dirt2meme/internal/logger"
	"github.com/timmy/dirt2meme/internal/overlay"
	"github.com/timmy/dirt2meme/internal/render"
	"github.com/timmy/dirt2meme/internal/service"
	"github.com/timmy/dirt2meme/internal/storage"
)

// NewStorage builds and prepares the configured object storage.
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (storage.ObjectStorage, error) {
	objectStorage, err := storage.NewStorage(&storage.Config{
		Type:     storage.StorageType(cfg.Type),
		LocalDir: cfg.LocalDir,
		S3: storage.S3Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			PublicURL: cfg.PublicURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
	}
	return objectStorage, nil
}

// NewGenerator loads fonts, the face detector and overlay assets, then
// returns a ready Generator. Missing assets only degrade the output.
func NewGenerator(
	cfg *config.Config,
	objectStorage storage.ObjectStorage,
	recorder service.MemeRecorder,
	log *logger.Logger,
	opts ...service.Option,
) *service.Generator {
	fonts := render.LoadFonts(cfg.Assets.FontPath)
	if fonts.Source() != render.FontBundled {
		log.WithFields(logger.Fields{
			"font":   string(fonts.Source()),
			"reason": fonts.Reason,
		}).Warn("Caption font unavailable, using fallback")
	}

	classifier := detect.Select(detect.Options{
		Enabled:     cfg.Detection.Enabled,
		CascadePath: cfg.Assets.CascadePath,
		Params: detect.Params{
			MinSize:          cfg.Detection.MinSize,
			ScaleFactor:      cfg.Detection.ScaleFactor,
			ShiftFactor:      cfg.Detection.ShiftFactor,
			QualityThreshold: cfg.Detection.QualityThreshold,
			IoUThreshold:     cfg.Detection.IoUThreshold,
		},
	})

	overlays := overlay.NewCompositor(cfg.Assets.OverlayDir, cfg.Pipeline.OverlayScale, cfg.Pipeline.OverlayOpacity)
	if assets, err := overlays.Assets(); err != nil {
		log.WithError(err).Warn("Cannot list overlay assets")
	} else {
		log.WithFields(logger.Fields{
			"dir":             cfg.Assets.OverlayDir,
			logger.FieldCount: len(assets),
			"classifier":      classifier.Name(),
		}).Info("Pipeline assets loaded")
	}

	return service.NewGenerator(
		classifier,
		service.CaptionPoolFromConfig(cfg.Captions.Face, cfg.Captions.Object),
		render.NewRenderer(fonts, cfg.Pipeline.FooterText),
		overlays,
		objectStorage,
		recorder,
		log,
		&service.GeneratorConfig{
			MaxSide:     cfg.Pipeline.MaxSide,
			JPEGQuality: cfg.Pipeline.JPEGQuality,
		},
		opts...,
	)
}
