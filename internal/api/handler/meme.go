package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/dirt2meme/internal/api/middleware"
	"github.com/timmy/dirt2meme/internal/domain"
	"github.com/timmy/dirt2meme/internal/repository"
	"github.com/timmy/dirt2meme/internal/service"
	"github.com/timmy/dirt2meme/internal/storage"
)

const (
	// HeaderMemeData carries the JSON metadata of a generated meme.
	HeaderMemeData = "X-Meme-Data"
	// HeaderMemeID carries the identifier of a generated meme.
	HeaderMemeID = "X-Meme-ID"

	defaultListLimit = 20
	maxListLimit     = 100
)

// MemeGenerator runs the captioning pipeline.
type MemeGenerator interface {
	Generate(ctx context.Context, up service.Upload) (*service.Result, error)
}

// ImageFetcher downloads a remote image.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*service.Upload, error)
}

// MemeStore reads meme records.
type MemeStore interface {
	GetByID(ctx context.Context, id string) (*domain.Meme, error)
	List(ctx context.Context, filter domain.MemeFilter, limit, offset int) ([]domain.Meme, error)
	Count(ctx context.Context, filter domain.MemeFilter) (int64, error)
}

// MemeHandler handles meme-related endpoints.
type MemeHandler struct {
	generator      MemeGenerator
	fetcher        ImageFetcher
	store          MemeStore
	objects        storage.ObjectStorage
	maxUploadBytes int64
}

// NewMemeHandler creates a new meme handler.
// Parameters:
//   - generator: pipeline used by the upload endpoints.
//   - fetcher: remote image downloader for POST /api/v1/memes/from-url.
//   - store: meme record reader.
//   - objects: storage serving generated files.
//   - maxUploadBytes: request body limit for uploads.
//
// Returns:
//   - *MemeHandler: initialized handler.
func NewMemeHandler(generator MemeGenerator, fetcher ImageFetcher, store MemeStore, objects storage.ObjectStorage, maxUploadBytes int64) *MemeHandler {
	return &MemeHandler{
		generator:      generator,
		fetcher:        fetcher,
		store:          store,
		objects:        objects,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload handles POST /upload.
// The response body is the JPEG; metadata travels in the X-Meme-Data header.
func (h *MemeHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		if c.Request.ContentLength > h.maxUploadBytes {
			h.tooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.tooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No file uploaded"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	res, err := h.generator.Generate(c.Request.Context(), service.Upload{
		Data:        data,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Filename:    fileHeader.Filename,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeMeme(c, res)
}

type fromURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// FromURL handles POST /api/v1/memes/from-url.
func (h *MemeHandler) FromURL(c *gin.Context) {
	var req fromURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Request body must be JSON with a url field"})
		return
	}

	up, err := h.fetcher.Fetch(c.Request.Context(), req.URL)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.generator.Generate(c.Request.Context(), *up)
	if err != nil {
		writeError(c, err)
		return
	}
	writeMeme(c, res)
}

// ListMemes handles GET /api/v1/memes.
func (h *MemeHandler) ListMemes(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "limit must be a positive integer"})
		return
	}
	limit = min(limit, maxListLimit)

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "offset must be a non-negative integer"})
		return
	}

	var filter domain.MemeFilter
	if raw, ok := c.GetQuery("face"); ok {
		face, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "face must be true or false"})
			return
		}
		filter.FaceDetected = &face
	}

	ctx := c.Request.Context()
	memes, err := h.store.List(ctx, filter, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	total, err := h.store.Count(ctx, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if memes == nil {
		memes = []domain.Meme{}
	}

	c.JSON(http.StatusOK, gin.H{
		"results": memes,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetMeme handles GET /api/v1/memes/:id.
func (h *MemeHandler) GetMeme(c *gin.Context) {
	meme, err := h.store.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Meme not found"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meme)
}

// Static handles GET /static/:name and streams a generated file.
func (h *MemeHandler) Static(c *gin.Context) {
	name := c.Param("name")
	rc, err := h.objects.Download(c.Request.Context(), name)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

func (h *MemeHandler) tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"detail": fmt.Sprintf("File too large. Maximum upload size is %d bytes", h.maxUploadBytes),
	})
}

func writeMeme(c *gin.Context, res *service.Result) {
	meta, err := asciiJSON(res.Metadata())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header(HeaderMemeData, meta)
	c.Header(HeaderMemeID, res.ID)
	c.Data(http.StatusOK, "image/jpeg", res.Image)
}

// writeError maps pipeline errors to {"detail": ...} responses.
func writeError(c *gin.Context, err error) {
	if service.IsInvalidInput(err) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	middleware.GetLogger(c).WithError(err).Error("Request processing failed")
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "Processing failed: " + err.Error()})
}
