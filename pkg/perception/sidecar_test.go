package perception

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrCodeEU/facegate/pkg/camera"
	"github.com/MrCodeEU/facegate/pkg/liveness"
)

// eyeMesh returns a full mesh with both eyes drawn at the given aspect ratio.
func eyeMesh(ear float64) []liveness.Landmark {
	points := make([]liveness.Landmark, liveness.NumLandmarks)
	for i := range points {
		points[i] = liveness.Landmark{X: 0.5, Y: 0.5}
	}
	draw := func(idx [6]int, x0 float64) {
		w, y := 0.1, 0.4
		h := ear * w
		points[idx[0]] = liveness.Landmark{X: x0, Y: y}
		points[idx[1]] = liveness.Landmark{X: x0 + w/3, Y: y - h/2}
		points[idx[2]] = liveness.Landmark{X: x0 + 2*w/3, Y: y - h/2}
		points[idx[3]] = liveness.Landmark{X: x0 + w, Y: y}
		points[idx[4]] = liveness.Landmark{X: x0 + 2*w/3, Y: y + h/2}
		points[idx[5]] = liveness.Landmark{X: x0 + w/3, Y: y + h/2}
	}
	draw(liveness.LeftEyeContour, 0.30)
	draw(liveness.RightEyeContour, 0.55)
	return points
}

func writePNG(t *testing.T, path string, gray uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = gray
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
}

func writeSidecar(t *testing.T, imagePath string, points []liveness.Landmark) {
	t.Helper()
	data, err := json.Marshal(points)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := os.WriteFile(SidecarPath(imagePath), data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestSidecarPath(t *testing.T) {
	if got := SidecarPath("/frames/0001.jpg"); got != "/frames/0001.landmarks.json" {
		t.Errorf("unexpected sidecar path %q", got)
	}
}

func TestSidecarProvider_Landmarks(t *testing.T) {
	dir := t.TempDir()
	ts := time.UnixMilli(5000)
	frame := func(name string) camera.Frame {
		return camera.Frame{Path: filepath.Join(dir, name), Timestamp: ts}
	}

	writeSidecar(t, filepath.Join(dir, "ok.png"), eyeMesh(0.3))
	writeSidecar(t, filepath.Join(dir, "empty.png"), []liveness.Landmark{})
	writeSidecar(t, filepath.Join(dir, "short.png"), make([]liveness.Landmark, 10))
	if err := os.WriteFile(SidecarPath(filepath.Join(dir, "junk.png")), []byte("{"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	p := SidecarProvider{}

	face, err := p.Landmarks(context.Background(), frame("ok.png"))
	if err != nil {
		t.Fatalf("Landmarks failed: %v", err)
	}
	if face.CapturedAt() != 5000 {
		t.Errorf("expected capture time 5000, got %d", face.CapturedAt())
	}

	tests := []struct {
		name string
		file string
		want error
	}{
		{"missing sidecar", "none.png", ErrNoLandmarks},
		{"empty sidecar", "empty.png", ErrNoLandmarks},
		{"wrong landmark count", "short.png", liveness.ErrInvalidFrameShape},
		{"unparsable sidecar", "junk.png", liveness.ErrInvalidFrameShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Landmarks(context.Background(), frame(tt.file)); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := p.Landmarks(context.Background(), camera.Frame{}); err == nil {
		t.Error("expected error for frame without a source file")
	}
}

func TestSidecarProvider_DrivesSession(t *testing.T) {
	dir := t.TempDir()
	ears := []float64{0.3, 0.28, 0.12, 0.29, 0.31}
	var paths []string
	for i, ear := range ears {
		path := filepath.Join(dir, "frame"+string(rune('a'+i))+".png")
		writePNG(t, path, uint8(10+i*10))
		writeSidecar(t, path, eyeMesh(ear))
		paths = append(paths, path)
	}

	capturer := camera.NewFileCapturer(paths, 250*time.Millisecond)
	checker := liveness.NewChecker(liveness.DefaultConfig(), liveness.FixedSelector(liveness.ChallengeBlink), capturer)

	v, err := checker.Check(context.Background(), NewSource(capturer, SidecarProvider{}))
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !v.Live {
		t.Errorf("expected live verdict, got reason %s", v.Reason)
	}
	if v.Metrics.FramesCollected != len(ears) {
		t.Errorf("expected %d frames, got %d", len(ears), v.Metrics.FramesCollected)
	}
}
