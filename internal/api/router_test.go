package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/timmy/dirt2meme/internal/api/handler"
	"github.com/timmy/dirt2meme/internal/api/middleware"
	"github.com/timmy/dirt2meme/internal/detect"
	"github.com/timmy/dirt2meme/internal/logger"
	"github.com/timmy/dirt2meme/internal/overlay"
	"github.com/timmy/dirt2meme/internal/render"
	"github.com/timmy/dirt2meme/internal/service"
	"github.com/timmy/dirt2meme/internal/storage"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	log := logger.New(&logger.Config{Level: "error", Output: io.Discard})

	objects, err := storage.NewLocalStorage(t.TempDir(), "/static")
	if err != nil {
		t.Fatal(err)
	}
	gen := service.NewGenerator(
		detect.NoFace{},
		service.DefaultCaptionPool(),
		render.NewRenderer(render.LoadFonts(""), render.DefaultFooter),
		overlay.NewCompositor(filepath.Join(t.TempDir(), "none"), 0, 0),
		objects,
		nil,
		log,
		&service.GeneratorConfig{},
	)
	h := handler.NewMemeHandler(gen, service.NewFetcher(0, 0), nil, objects, 10<<20)
	return SetupRouter(h, RouterConfig{
		Mode:           "test",
		MaxUploadBytes: 10 << 20,
		CORS:           middleware.CORSConfig{AllowAllOrigins: true},
	}, log)
}

func pngUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 240, 160))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 120, 90, 40, 255
	}
	var data bytes.Buffer
	if err := png.Encode(&data, img); err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="dirt.png"`)
	header.Set("Content-Type", "image/png")
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data.Bytes())
	w.Close()
	return &body, w.FormDataContentType()
}

func TestRootAndHealth(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var root map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &root); err != nil || root["message"] != handler.RootMessage {
		t.Fatalf("GET / = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", rec.Code)
	}
	if rec.Header().Get(middleware.HeaderRequestID) == "" {
		t.Error("responses must carry a request id")
	}
}

func TestCORSExposesMemeHeaders(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}
	expose := rec.Header().Get("Access-Control-Expose-Headers")
	for _, h := range []string{handler.HeaderMemeData, handler.HeaderMemeID} {
		if !bytes.Contains([]byte(expose), []byte(h)) {
			t.Errorf("expose headers %q lack %s", expose, h)
		}
	}
}

func TestUploadThenServeStatic(t *testing.T) {
	r := newTestRouter(t)

	body, ct := pngUpload(t)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	var meta service.Metadata
	if err := json.Unmarshal([]byte(rec.Header().Get(handler.HeaderMemeData)), &meta); err != nil {
		t.Fatalf("bad %s header: %v", handler.HeaderMemeData, err)
	}
	if meta.FaceDetected || !service.DefaultCaptionPool().Contains(false, meta.Caption) {
		t.Errorf("metadata = %+v", meta)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	if err != nil || format != "jpeg" {
		t.Fatalf("body is not a jpeg: %v %s", err, format)
	}
	// 240 wide gets the minimum 8px frame
	if cfg.Width != 256 || cfg.Height != 176 {
		t.Errorf("output size = %dx%d", cfg.Width, cfg.Height)
	}
	generated := rec.Body.Bytes()

	id := rec.Header().Get(handler.HeaderMemeID)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/static/%s.jpg", id), nil))
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), generated) {
		t.Fatalf("static fetch = %d (%d bytes)", rec.Code, rec.Body.Len())
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	r := newTestRouter(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, _ := w.CreateFormFile("file", "notes.txt")
	part.Write([]byte("just text"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["detail"] != "File 'notes.txt' is not a valid image." {
		t.Errorf("detail = %q", resp["detail"])
	}
}
