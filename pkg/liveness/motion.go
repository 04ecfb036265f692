package liveness

import "fmt"

// MotionDelta returns the mean absolute difference of the first channel of
// every pixel between two samples, on a 0-255 scale. Samples must have the
// same shape and be non-nil. Empty buffers yield zero.
func MotionDelta(prev, cur *RawFrameSample) (float64, error) {
	if prev == nil || cur == nil {
		return 0, fmt.Errorf("%w: missing sample", ErrInvalidFrameShape)
	}
	if !prev.SameShape(cur) {
		return 0, fmt.Errorf("%w: sample %dx%dx%d does not match previous %dx%dx%d",
			ErrInvalidFrameShape, cur.Width, cur.Height, cur.Channels, prev.Width, prev.Height, prev.Channels)
	}
	if len(prev.Pixels) != len(cur.Pixels) {
		return 0, fmt.Errorf("%w: sample buffers differ in length", ErrInvalidFrameShape)
	}

	stride := cur.Channels
	if stride <= 0 {
		stride = 1
	}

	var sum, count int
	for i := 0; i < len(cur.Pixels); i += stride {
		d := int(cur.Pixels[i]) - int(prev.Pixels[i])
		if d < 0 {
			d = -d
		}
		sum += d
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return float64(sum) / float64(count), nil
}

// MotionResult is the outcome of the motion gate.
type MotionResult struct {
	LiveConsistent bool
	// HasBaseline is false when there was no previous sample to compare.
	HasBaseline bool
	Delta       float64
}

// MotionGate rules out perfectly static images by requiring pixel-level
// change between two samples.
type MotionGate struct {
	Threshold float64
}

// NewMotionGate creates a gate from engine configuration.
func NewMotionGate(cfg Config) MotionGate {
	return MotionGate{Threshold: cfg.MotionThreshold}
}

// Check compares prev and cur. Without a previous sample the gate passes,
// since there is nothing to compare against.
func (g MotionGate) Check(prev, cur *RawFrameSample) (MotionResult, error) {
	if prev == nil {
		return MotionResult{LiveConsistent: true}, nil
	}
	if cur == nil {
		return MotionResult{}, fmt.Errorf("%w: missing current sample", ErrInvalidFrameShape)
	}

	delta, err := MotionDelta(prev, cur)
	if err != nil {
		return MotionResult{}, err
	}
	return MotionResult{
		LiveConsistent: delta > g.Threshold,
		HasBaseline:    true,
		Delta:          delta,
	}, nil
}
