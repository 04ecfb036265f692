package perception

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrCodeEU/facegate/pkg/camera"
	"github.com/MrCodeEU/facegate/pkg/liveness"
)

// SidecarSuffix is appended to an image name, minus its extension, to find
// the landmark file exported for it.
const SidecarSuffix = ".landmarks.json"

// SidecarPath returns the landmark file that belongs to an image.
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + SidecarSuffix
}

// SidecarProvider reads landmarks computed offline by an external face-mesh
// model. Each image frame.jpg has a frame.landmarks.json holding a JSON array
// of {"x","y","z"} points. A missing or empty file means no face was found.
type SidecarProvider struct{}

// Landmarks loads the sidecar file of frame.
func (SidecarProvider) Landmarks(ctx context.Context, frame camera.Frame) (*liveness.LandmarkFrame, error) {
	if frame.Path == "" {
		return nil, errors.New("frame has no source file")
	}

	data, err := os.ReadFile(SidecarPath(frame.Path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoLandmarks
		}
		return nil, err
	}

	var points []liveness.Landmark
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", liveness.ErrInvalidFrameShape, SidecarPath(frame.Path), err)
	}
	if len(points) == 0 {
		return nil, ErrNoLandmarks
	}
	return liveness.NewLandmarkFrame(points, frame.TimestampMs())
}
