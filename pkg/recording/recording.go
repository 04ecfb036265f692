// Package recording stores captured liveness sessions so they can be
// replayed through the engine for regression checks and threshold tuning.
package recording

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrCodeEU/facegate/pkg/liveness"
)

// Labels describe what a recording is known to contain.
const (
	LabelLive  = "live"
	LabelSpoof = "spoof"
)

// Frame is one recorded observation. Landmarks is empty when no face was
// found in the sample.
type Frame struct {
	CapturedAtMs int64                    `json:"captured_at_ms"`
	Landmarks    []liveness.Landmark      `json:"landmarks,omitempty"`
	Sample       *liveness.RawFrameSample `json:"sample,omitempty"`
}

// Recording is a captured sequence of observations with its ground truth.
type Recording struct {
	ID        string                 `json:"id"`
	Label     string                 `json:"label"`
	Challenge liveness.ChallengeKind `json:"challenge"`
	CreatedAt time.Time              `json:"created_at"`
	Frames    []Frame                `json:"frames"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// ErrRecordingNotFound is returned when no recording has the requested id.
var ErrRecordingNotFound = errors.New("recording not found")

// ErrRecordingExists is returned when creating a recording whose id is taken.
var ErrRecordingExists = errors.New("recording already exists")

// ErrInvalidRecording is returned for recordings that cannot be replayed.
var ErrInvalidRecording = errors.New("invalid recording")

// New creates an empty recording with a fresh id.
func New(label string, challenge liveness.ChallengeKind) *Recording {
	return &Recording{
		ID:        uuid.NewString(),
		Label:     label,
		Challenge: challenge,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// Add appends an observation to the recording.
func (r *Recording) Add(obs liveness.Observation) {
	f := Frame{CapturedAtMs: obs.CapturedAtMs, Sample: obs.Sample}
	if obs.Face != nil {
		f.Landmarks = obs.Face.Points()
	}
	r.Frames = append(r.Frames, f)
}

// Duration returns the time between the first and last frame.
func (r *Recording) Duration() time.Duration {
	if len(r.Frames) < 2 {
		return 0
	}
	first, last := r.Frames[0].CapturedAtMs, r.Frames[len(r.Frames)-1].CapturedAtMs
	return time.Duration(last-first) * time.Millisecond
}

// Validate checks the recording can be stored and replayed.
func (r *Recording) Validate() error {
	if err := validateID(r.ID); err != nil {
		return err
	}
	switch r.Label {
	case "", LabelLive, LabelSpoof:
	default:
		return fmt.Errorf("%w: unknown label %q", ErrInvalidRecording, r.Label)
	}
	if r.Challenge != "" {
		if _, err := liveness.ParseChallengeKind(string(r.Challenge)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecording, err)
		}
	}
	if len(r.Frames) == 0 {
		return fmt.Errorf("%w: no frames", ErrInvalidRecording)
	}

	for i, f := range r.Frames {
		if i > 0 && f.CapturedAtMs < r.Frames[i-1].CapturedAtMs {
			return fmt.Errorf("%w: frame %d goes back in time", ErrInvalidRecording, i)
		}
		if len(f.Landmarks) > 0 && len(f.Landmarks) != liveness.NumLandmarks {
			return fmt.Errorf("%w: frame %d has %d landmarks", ErrInvalidRecording, i, len(f.Landmarks))
		}
	}
	return nil
}

// validateID rejects ids that would escape the storage directory.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecording)
	}
	if strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: invalid id %q", ErrInvalidRecording, id)
	}
	return nil
}
