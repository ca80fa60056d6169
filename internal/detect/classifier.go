// Package detect decides whether an uploaded picture shows a face.
//
// Detection is an optional capability: when no cascade is available the
// pipeline runs with NoFace, which never reports a face.
package detect

import (
	"context"
	"image"

	"github.com/timmy/dirt2meme/internal/logger"
)

// Classifier reports whether an image contains a face-like region.
// Implementations never fail; problems inside the detector count as "no face".
type Classifier interface {
	HasFace(ctx context.Context, img image.Image) bool

	// Name identifies the implementation in logs.
	Name() string
}

// NoFace is the classifier used when face detection is unavailable.
type NoFace struct{}

// HasFace always reports false.
func (NoFace) HasFace(context.Context, image.Image) bool { return false }

// Name implements Classifier.
func (NoFace) Name() string { return "none" }

// Options configures classifier selection at startup.
type Options struct {
	Enabled     bool
	CascadePath string
	Params      Params
}

// Select picks the classifier once at process start: the cascade detector when
// it is enabled and its data loads, NoFace otherwise.
func Select(opts Options) Classifier {
	if !opts.Enabled {
		logger.Info("Face detection disabled, captions come from the object pool")
		return NoFace{}
	}

	cascade, err := LoadCascade(opts.CascadePath, opts.Params)
	if err != nil {
		logger.GetDefault().WithError(err).Warn("Face detection unavailable, falling back to no-face classifier")
		return NoFace{}
	}
	return cascade
}
