package liveness

import "math"

// IndeterminateEAR is reported when an eye's horizontal extent is zero and no
// ratio can be computed.
const IndeterminateEAR = -1.0

// EyePair holds the eye aspect ratios of one frame.
type EyePair struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Determinate reports whether both ratios could be computed.
func (p EyePair) Determinate() bool {
	return p.Left != IndeterminateEAR && p.Right != IndeterminateEAR
}

// Closed reports whether both eyes are below threshold.
func (p EyePair) Closed(threshold float64) bool {
	return p.Determinate() && p.Left < threshold && p.Right < threshold
}

// Open reports whether the frame is determinate and not closed.
func (p EyePair) Open(threshold float64) bool {
	return p.Determinate() && !p.Closed(threshold)
}

// EyeAspectRatio computes the lid-to-lid distance (points 1 and 5) over the
// corner-to-corner distance (points 0 and 3) of a six-point eye contour.
func EyeAspectRatio(c [6]Landmark) float64 {
	horizontal := distance(c[0], c[3])
	if horizontal == 0 {
		return IndeterminateEAR
	}
	return distance(c[1], c[5]) / horizontal
}

// EyeRatios computes the left and right eye aspect ratios of a frame.
func EyeRatios(f *LandmarkFrame) EyePair {
	return EyePair{
		Left:  EyeAspectRatio(f.contour(LeftEyeContour)),
		Right: EyeAspectRatio(f.contour(RightEyeContour)),
	}
}

// BlinkResult is the outcome of evaluating a blink challenge.
type BlinkResult struct {
	Passed       bool
	Sufficient   bool
	Ratios       []EyePair
	ClosedFrames int
	// MinEAR is the lowest per-frame value of the more open eye, which is the
	// number that has to fall below the threshold for a frame to count as
	// closed. IndeterminateEAR when no frame was determinate.
	MinEAR float64
}

// EyeAspectRatioAnalyzer evaluates the blink challenge.
type EyeAspectRatioAnalyzer struct {
	Threshold         float64
	MinFrames         int
	RequireBlinkCycle bool
}

// NewEyeAspectRatioAnalyzer creates an analyzer from engine configuration.
func NewEyeAspectRatioAnalyzer(cfg Config) EyeAspectRatioAnalyzer {
	return EyeAspectRatioAnalyzer{
		Threshold:         cfg.EARThreshold,
		MinFrames:         cfg.MinFrames,
		RequireBlinkCycle: cfg.RequireBlinkCycle,
	}
}

// Evaluate runs the blink challenge over the collected frames.
func (a EyeAspectRatioAnalyzer) Evaluate(frames []*LandmarkFrame) BlinkResult {
	res := BlinkResult{
		Ratios: make([]EyePair, 0, len(frames)),
		MinEAR: IndeterminateEAR,
	}

	for _, f := range frames {
		pair := EyeRatios(f)
		res.Ratios = append(res.Ratios, pair)
		if pair.Closed(a.Threshold) {
			res.ClosedFrames++
		}
		if pair.Determinate() {
			v := math.Max(pair.Left, pair.Right)
			if res.MinEAR == IndeterminateEAR || v < res.MinEAR {
				res.MinEAR = v
			}
		}
	}

	if len(frames) < a.MinFrames {
		return res
	}
	res.Sufficient = true

	if a.RequireBlinkCycle {
		res.Passed = hasBlinkCycle(res.Ratios, a.Threshold)
	} else {
		res.Passed = res.ClosedFrames > 0
	}
	return res
}

// hasBlinkCycle looks for an open frame, then a closed frame, then an open
// frame again, in capture order.
func hasBlinkCycle(ratios []EyePair, threshold float64) bool {
	const (
		waitOpen = iota
		waitClosed
		waitReopen
	)
	state := waitOpen
	for _, p := range ratios {
		switch state {
		case waitOpen:
			if p.Open(threshold) {
				state = waitClosed
			}
		case waitClosed:
			if p.Closed(threshold) {
				state = waitReopen
			}
		case waitReopen:
			if p.Open(threshold) {
				return true
			}
		}
	}
	return false
}

// distance calculates the Euclidean distance between two landmarks in the
// image plane.
func distance(p1, p2 Landmark) float64 {
	return math.Hypot(p1.X-p2.X, p1.Y-p2.Y)
}
