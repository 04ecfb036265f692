package liveness

import (
	"context"
	"io"
	"testing"
	"time"
)

const testEyeWidth = 0.1

// createPoints builds a full mesh with both eyes drawn at the given aspect
// ratio. yaw shifts the left eye horizontally so that YawProxy changes by the
// same amount.
func createPoints(ear, yaw float64) []Landmark {
	points := make([]Landmark, NumLandmarks)
	for i := range points {
		points[i] = Landmark{X: 0.5, Y: 0.5}
	}

	drawEye(points, LeftEyeContour, 0.30+yaw, 0.4, ear)
	drawEye(points, RightEyeContour, 0.55, 0.4, ear)
	return points
}

func drawEye(points []Landmark, idx [6]int, x0, y, ear float64) {
	w := testEyeWidth
	h := ear * w
	points[idx[0]] = Landmark{X: x0, Y: y}
	points[idx[1]] = Landmark{X: x0 + w/3, Y: y - h/2}
	points[idx[2]] = Landmark{X: x0 + 2*w/3, Y: y - h/2}
	points[idx[3]] = Landmark{X: x0 + w, Y: y}
	points[idx[4]] = Landmark{X: x0 + 2*w/3, Y: y + h/2}
	points[idx[5]] = Landmark{X: x0 + w/3, Y: y + h/2}
}

func createFrame(t testing.TB, ear, yaw float64, ts int64) *LandmarkFrame {
	t.Helper()
	f, err := NewLandmarkFrame(createPoints(ear, yaw), ts)
	if err != nil {
		t.Fatalf("NewLandmarkFrame failed: %v", err)
	}
	return f
}

func createFramesWithEAR(t testing.TB, ears ...float64) []*LandmarkFrame {
	t.Helper()
	frames := make([]*LandmarkFrame, len(ears))
	for i, ear := range ears {
		frames[i] = createFrame(t, ear, 0, int64(i*100))
	}
	return frames
}

func createFramesWithYaw(t testing.TB, yaws ...float64) []*LandmarkFrame {
	t.Helper()
	frames := make([]*LandmarkFrame, len(yaws))
	for i, yaw := range yaws {
		frames[i] = createFrame(t, 0.3, yaw, int64(i*100))
	}
	return frames
}

// createSample returns a 4x4 RGBA sample with every byte set to value.
func createSample(value byte) *RawFrameSample {
	s := &RawFrameSample{Width: 4, Height: 4, Channels: 4, Pixels: make([]byte, 64)}
	for i := range s.Pixels {
		s.Pixels[i] = value
	}
	return s
}

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// scriptedSource replays observations, advancing the clock by step before
// each one. next, when set, generates observations past the script.
type scriptedSource struct {
	clock *fakeClock
	step  time.Duration
	obs   []Observation
	next  func(i int) Observation
	i     int
}

func (s *scriptedSource) Next(ctx context.Context) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, err
	}
	if s.i >= len(s.obs) && s.next == nil {
		return Observation{}, io.EOF
	}
	s.clock.Advance(s.step)
	var o Observation
	if s.i < len(s.obs) {
		o = s.obs[s.i]
	} else {
		o = s.next(s.i)
	}
	s.i++
	return o, nil
}

func observe(face *LandmarkFrame, sample *RawFrameSample) Observation {
	o := Observation{Face: face, Sample: sample}
	if face != nil {
		o.CapturedAtMs = face.CapturedAt()
	}
	return o
}
