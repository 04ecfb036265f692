package liveness

import (
	"fmt"
	"math"
)

// NumLandmarks is the size of the dense face-mesh topology.
const NumLandmarks = 468

// Landmark indices used by the analyzers. Positions are fixed by the mesh
// topology and never change between frames.
const (
	LeftEyeOuter  = 33
	RightEyeOuter = 263
)

// LeftEyeContour and RightEyeContour list the six contour points of each eye:
// corner, upper lid, upper lid, opposite corner, lower lid, lower lid.
var (
	LeftEyeContour  = [6]int{33, 160, 158, 133, 153, 144}
	RightEyeContour = [6]int{362, 385, 387, 263, 373, 380}
)

// Landmark is a normalized image-relative keypoint.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// LandmarkFrame is one face observation: all mesh landmarks plus the capture
// time in milliseconds. The zero value is not a valid frame; use
// NewLandmarkFrame.
type LandmarkFrame struct {
	points     [NumLandmarks]Landmark
	capturedAt int64
}

// NewLandmarkFrame validates and copies points into a frame. Anything other
// than exactly NumLandmarks points is rejected rather than truncated.
func NewLandmarkFrame(points []Landmark, capturedAtMs int64) (*LandmarkFrame, error) {
	if len(points) != NumLandmarks {
		return nil, fmt.Errorf("%w: got %d landmarks, want %d", ErrInvalidFrameShape, len(points), NumLandmarks)
	}

	f := &LandmarkFrame{capturedAt: capturedAtMs}
	for i, p := range points {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return nil, fmt.Errorf("%w: landmark %d is not finite", ErrInvalidFrameShape, i)
		}
		f.points[i] = p
	}
	return f, nil
}

// At returns the landmark at mesh index i.
func (f *LandmarkFrame) At(i int) Landmark {
	return f.points[i]
}

// CapturedAt returns the capture timestamp in milliseconds.
func (f *LandmarkFrame) CapturedAt() int64 {
	return f.capturedAt
}

// Points returns a copy of all landmarks.
func (f *LandmarkFrame) Points() []Landmark {
	out := make([]Landmark, NumLandmarks)
	copy(out, f.points[:])
	return out
}

func (f *LandmarkFrame) contour(idx [6]int) [6]Landmark {
	var c [6]Landmark
	for i, j := range idx {
		c[i] = f.points[j]
	}
	return c
}

// RawFrameSample is the pixel buffer captured alongside a landmark frame.
type RawFrameSample struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	Pixels   []byte `json:"pixels"`
}

// Validate checks that the buffer length matches the declared dimensions.
func (s *RawFrameSample) Validate() error {
	if s.Width <= 0 || s.Height <= 0 || s.Channels <= 0 {
		return fmt.Errorf("%w: invalid sample dimensions %dx%dx%d", ErrInvalidFrameShape, s.Width, s.Height, s.Channels)
	}
	if want := s.Width * s.Height * s.Channels; len(s.Pixels) != want {
		return fmt.Errorf("%w: sample has %d bytes, want %d", ErrInvalidFrameShape, len(s.Pixels), want)
	}
	return nil
}

// SameShape reports whether two samples have identical dimensions.
func (s *RawFrameSample) SameShape(o *RawFrameSample) bool {
	return s.Width == o.Width && s.Height == o.Height && s.Channels == o.Channels
}

// Observation is a single delivery from a frame source. Face is nil when the
// perception provider found no face in the sample. FaceErr is set instead when
// the provider returned landmarks that could not form a frame; the session
// rejects such observations rather than counting them as face-less.
type Observation struct {
	CapturedAtMs int64
	Face         *LandmarkFrame
	FaceErr      error
	Sample       *RawFrameSample
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
