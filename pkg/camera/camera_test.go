package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFromImage(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	frame := FromImage(solidImage(4, 3, color.RGBA{R: 10, G: 20, B: 30, A: 255}), ts)

	if frame.Width != 4 || frame.Height != 3 || frame.Channels != 3 {
		t.Fatalf("unexpected dimensions %dx%dx%d", frame.Width, frame.Height, frame.Channels)
	}
	if len(frame.Data) != 4*3*3 {
		t.Fatalf("expected %d bytes, got %d", 4*3*3, len(frame.Data))
	}
	if frame.Data[0] != 10 || frame.Data[1] != 20 || frame.Data[2] != 30 {
		t.Errorf("unexpected first pixel %v", frame.Data[:3])
	}
	if frame.TimestampMs() != 1700000000000 {
		t.Errorf("unexpected timestamp %d", frame.TimestampMs())
	}
}

func TestFrame_Sample(t *testing.T) {
	frame := FromImage(solidImage(2, 2, color.RGBA{R: 50, A: 255}), time.Now())

	sample := frame.Sample()
	if err := sample.Validate(); err != nil {
		t.Fatalf("sample should be valid: %v", err)
	}
	if sample.Width != 2 || sample.Height != 2 || sample.Channels != 3 {
		t.Errorf("unexpected sample shape %dx%dx%d", sample.Width, sample.Height, sample.Channels)
	}
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(8, 8, color.RGBA{R: 200, G: 100, B: 50, A: 255})); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}

	frame, err := Decode(&buf, time.Now())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if frame.Width != 8 || frame.Height != 8 {
		t.Errorf("unexpected size %dx%d", frame.Width, frame.Height)
	}
	if frame.Data[0] != 200 {
		t.Errorf("expected red 200, got %d", frame.Data[0])
	}
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0xFF, 0xD8, 0xFF, 0xE0}), time.Now())
	if !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}
}

func writeJPEG(t *testing.T, path string, gray uint8) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	img := solidImage(16, 16, color.RGBA{R: gray, G: gray, B: gray, A: 255})
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode failed: %v", err)
	}
}

func TestFileCapturer(t *testing.T) {
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.jpg")}
	writeJPEG(t, paths[0], 40)
	writeJPEG(t, paths[1], 200)

	c := NewFileCapturer(paths, 100*time.Millisecond)
	c.Start = time.UnixMilli(0)
	if !c.Now().Equal(c.Start) {
		t.Errorf("clock should start at Start, got %v", c.Now())
	}

	first, err := c.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	second, err := c.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if first.Path != paths[0] || second.Path != paths[1] {
		t.Errorf("expected frame paths to be set, got %q and %q", first.Path, second.Path)
	}
	if c.Now().UnixMilli() != second.TimestampMs() {
		t.Errorf("clock should follow the last frame, got %d want %d", c.Now().UnixMilli(), second.TimestampMs())
	}
	if second.TimestampMs()-first.TimestampMs() != 100 {
		t.Errorf("expected 100ms between frames, got %d", second.TimestampMs()-first.TimestampMs())
	}
	if second.Data[0] <= first.Data[0] {
		t.Errorf("expected second frame brighter: %d vs %d", second.Data[0], first.Data[0])
	}

	if _, err := c.Capture(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after last file, got %v", err)
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.JPG", "c.jpeg", "notes.txt", "a.landmarks.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	paths, err := ListImages(dir)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	want := []string{"a.JPG", "b.png", "c.jpeg"}
	if len(paths) != len(want) {
		t.Fatalf("expected %d images, got %v", len(want), paths)
	}
	for i, name := range want {
		if paths[i] != filepath.Join(dir, name) {
			t.Errorf("image %d: expected %s, got %s", i, name, paths[i])
		}
	}

	if _, err := ListImages(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestFileCapturer_MissingFile(t *testing.T) {
	c := NewFileCapturer([]string{"/nonexistent/frame.jpg"}, time.Millisecond)
	if _, err := c.Capture(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFileCapturer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewFileCapturer([]string{"unused.jpg"}, time.Millisecond)
	if _, err := c.Capture(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
