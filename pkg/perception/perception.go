// Package perception connects a face-mesh landmark provider and a frame
// capturer to the liveness engine.
package perception

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/MrCodeEU/facegate/pkg/camera"
	"github.com/MrCodeEU/facegate/pkg/liveness"
	"github.com/MrCodeEU/facegate/pkg/logging"
)

// ErrNoLandmarks is returned by a Provider when no face was found in a frame.
var ErrNoLandmarks = errors.New("no face landmarks in frame")

// Provider extracts the dense face mesh from a raw frame.
type Provider interface {
	Landmarks(ctx context.Context, frame camera.Frame) (*liveness.LandmarkFrame, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, frame camera.Frame) (*liveness.LandmarkFrame, error)

// Landmarks calls f.
func (f ProviderFunc) Landmarks(ctx context.Context, frame camera.Frame) (*liveness.LandmarkFrame, error) {
	return f(ctx, frame)
}

// Source is a liveness.FrameSource that captures a frame, runs the provider
// on it and delivers both as one observation.
type Source struct {
	capturer camera.Capturer
	provider Provider
}

// NewSource creates a source from a capturer and a provider.
func NewSource(capturer camera.Capturer, provider Provider) *Source {
	return &Source{capturer: capturer, provider: provider}
}

// Next captures and annotates one frame. A frame without a face is delivered
// with a nil Face so the session can count it. Malformed provider output is
// delivered with FaceErr set so the session rejects the frame.
func (s *Source) Next(ctx context.Context) (liveness.Observation, error) {
	frame, err := s.capturer.Capture(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return liveness.Observation{}, io.EOF
		}
		return liveness.Observation{}, fmt.Errorf("capture: %w", err)
	}

	obs := liveness.Observation{
		CapturedAtMs: frame.TimestampMs(),
		Sample:       frame.Sample(),
	}

	face, err := s.provider.Landmarks(ctx, frame)
	switch {
	case err == nil:
		obs.Face = face
	case errors.Is(err, ErrNoLandmarks):
	case errors.Is(err, liveness.ErrInvalidFrameShape):
		logging.Component("perception").WithError(err).Debug("Provider returned malformed landmarks")
		obs.FaceErr = err
	default:
		return liveness.Observation{}, fmt.Errorf("landmarks: %w", err)
	}
	return obs, nil
}
