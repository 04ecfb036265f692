// Package camera provides frame capture for the liveness engine.
// Frames are decoded to packed RGB so they can be compared pixel by pixel.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MrCodeEU/facegate/pkg/liveness"
)

// Frame represents a single camera frame.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Channels  int
	Format    string // "RGB", "GRAY"
	Timestamp time.Time
	Path      string // source file, empty for device captures
}

// Capturer produces frames one at a time. Capture returns io.EOF when the
// device or sequence is exhausted.
type Capturer interface {
	Capture(ctx context.Context) (Frame, error)
}

// ErrNoFrame is returned when no frame could be captured.
var ErrNoFrame = errors.New("failed to capture frame")

// Sample converts the frame into a raw sample for the motion check.
func (f Frame) Sample() *liveness.RawFrameSample {
	return &liveness.RawFrameSample{
		Width:    f.Width,
		Height:   f.Height,
		Channels: f.Channels,
		Pixels:   f.Data,
	}
}

// TimestampMs returns the capture time in Unix milliseconds.
func (f Frame) TimestampMs() int64 {
	return f.Timestamp.UnixMilli()
}

// FromImage converts an image to a packed RGB frame.
func FromImage(img image.Image, ts time.Time) Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]byte, 0, w*h*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			data = append(data, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}
	return Frame{
		Data:      data,
		Width:     w,
		Height:    h,
		Channels:  3,
		Format:    "RGB",
		Timestamp: ts,
	}
}

// Decode reads a JPEG or PNG image into a frame.
func Decode(r io.Reader, ts time.Time) (Frame, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	return FromImage(img, ts), nil
}

// ListImages returns the JPEG and PNG files in dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// FileCapturer replays a fixed list of image files as a capture stream,
// stamping them at a constant interval starting from Start. It is also a
// clock that follows those timestamps, so a session over it sees the
// recorded cadence rather than decode speed.
type FileCapturer struct {
	Paths    []string
	Start    time.Time
	Interval time.Duration

	next int
}

// NewFileCapturer creates a capturer over paths at the given frame interval.
func NewFileCapturer(paths []string, interval time.Duration) *FileCapturer {
	return &FileCapturer{Paths: paths, Start: time.Now(), Interval: interval}
}

// Now returns the timestamp of the most recently captured file, or Start
// before the first capture.
func (c *FileCapturer) Now() time.Time {
	if c.next == 0 {
		return c.Start
	}
	return c.Start.Add(time.Duration(c.next-1) * c.Interval)
}

// Capture decodes the next file.
func (c *FileCapturer) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if c.next >= len(c.Paths) {
		return Frame{}, io.EOF
	}

	path := c.Paths[c.next]
	ts := c.Start.Add(time.Duration(c.next) * c.Interval)
	c.next++

	file, err := os.Open(path)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	frame, err := Decode(file, ts)
	if err != nil {
		return Frame{}, fmt.Errorf("%s: %w", path, err)
	}
	frame.Path = path
	return frame, nil
}
