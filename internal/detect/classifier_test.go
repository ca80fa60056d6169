package detect

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/timmy/dirt2meme/internal/imageops"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestNoFaceNeverDetects(t *testing.T) {
	var c Classifier = NoFace{}
	for _, img := range []image.Image{
		solid(10, 10, color.White),
		solid(640, 480, color.Black),
		image.NewNRGBA(image.Rect(0, 0, 0, 0)),
	} {
		if c.HasFace(context.Background(), img) {
			t.Fatalf("NoFace reported a face for %v", img.Bounds())
		}
	}
}

func TestSelectFallsBack(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "disabled", opts: Options{Enabled: false, CascadePath: "whatever", Params: DefaultParams()}},
		{name: "missing cascade", opts: Options{Enabled: true, CascadePath: filepath.Join(t.TempDir(), "facefinder"), Params: DefaultParams()}},
		{name: "unset path", opts: Options{Enabled: true, Params: DefaultParams()}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Select(tc.opts)
			if _, ok := c.(NoFace); !ok {
				t.Fatalf("Select returned %T, want NoFace", c)
			}
		})
	}
}

func TestNewCascadeRejectsMalformedData(t *testing.T) {
	if _, err := NewCascade([]byte{1, 2, 3, 4}, DefaultParams()); err == nil {
		t.Fatal("expected error for truncated cascade data")
	}
}

func TestDetectorFailureIsNotAFace(t *testing.T) {
	// A cascade without unpacked data panics inside pigo; HasFace must absorb it.
	c := &Cascade{params: DefaultParams()}
	if c.HasFace(context.Background(), solid(200, 200, color.Gray{Y: 90})) {
		t.Fatal("broken detector reported a face")
	}
}

func TestScanParams(t *testing.T) {
	c := &Cascade{params: DefaultParams()}

	gray := luminance(solid(320, 240, color.White))
	params, ok := c.scanParams(gray)
	if !ok {
		t.Fatal("expected a scan for a 320x240 frame")
	}
	if params.MinSize != 60 || params.MaxSize != 240 {
		t.Errorf("sizes = %d..%d, want 60..240", params.MinSize, params.MaxSize)
	}
	if params.ScaleFactor != 1.1 || params.Rows != 240 || params.Cols != 320 || params.Dim != 320 {
		t.Errorf("unexpected params %+v", params.ImageParams)
	}

	if _, ok := c.scanParams(luminance(solid(50, 400, color.White))); ok {
		t.Error("frames narrower than the minimum face must be skipped")
	}
}

func TestLuminanceOriginAndValues(t *testing.T) {
	src := solid(4, 3, color.White).SubImage(image.Rect(1, 1, 4, 3))
	gray := luminance(src)
	if gray.Rect != image.Rect(0, 0, 3, 2) {
		t.Fatalf("rect = %v", gray.Rect)
	}
	if gray.GrayAt(0, 0).Y != 0xff {
		t.Errorf("white became %d", gray.GrayAt(0, 0).Y)
	}
}

func loadFace(t *testing.T) image.Image {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "face.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	img, _, err := imageops.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	return imageops.Normalize(img, imageops.DefaultMaxSide)
}

func TestCascadeFindsFace(t *testing.T) {
	c, err := LoadCascade(filepath.Join("testdata", "facefinder"), DefaultParams())
	if err != nil {
		t.Fatalf("LoadCascade: %v", err)
	}

	tests := []struct {
		name string
		img  image.Image
		want bool
	}{
		{name: "portrait", img: loadFace(t), want: true},
		{name: "blank frame", img: solid(800, 600, color.Gray{Y: 128}), want: false},
		{name: "white frame", img: solid(320, 240, color.White), want: false},
		{name: "smaller than min face", img: solid(40, 40, color.Black), want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.HasFace(context.Background(), tc.img); got != tc.want {
				t.Fatalf("HasFace = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCascadeDetectRegions(t *testing.T) {
	c, err := LoadCascade(filepath.Join("testdata", "facefinder"), DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	img := loadFace(t)
	regions, err := c.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(regions) == 0 {
		t.Fatal("no face region found in the portrait")
	}
	b := img.Bounds()
	for _, r := range regions {
		if r.Quality < DefaultParams().QualityThreshold {
			t.Errorf("region %+v below the quality threshold", r)
		}
		if r.Size < DefaultParams().MinSize {
			t.Errorf("region %+v smaller than the minimum size", r)
		}
		if !image.Pt(r.Col, r.Row).In(b) {
			t.Errorf("region centre %+v outside %v", r, b)
		}
	}

	// An unreachable threshold rejects every cluster.
	strict := DefaultParams()
	strict.QualityThreshold = 1e9
	c.params = strict
	if c.HasFace(context.Background(), img) {
		t.Fatal("threshold did not filter detections")
	}
}

func TestSelectLoadsCascade(t *testing.T) {
	c := Select(Options{Enabled: true, CascadePath: filepath.Join("testdata", "facefinder"), Params: DefaultParams()})
	if _, ok := c.(*Cascade); !ok {
		t.Fatalf("Select returned %T, want *Cascade", c)
	}
	if c.Name() != "pigo" {
		t.Errorf("name = %q", c.Name())
	}
}

func TestCascadeCancelledContext(t *testing.T) {
	c, err := LoadCascade(filepath.Join("testdata", "facefinder"), DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Detect(ctx, loadFace(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
