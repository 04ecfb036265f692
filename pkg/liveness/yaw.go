package liveness

// YawProxy approximates head yaw as the horizontal offset between the outer
// eye corners. The sign follows the mirrored camera coordinates.
func YawProxy(f *LandmarkFrame) float64 {
	return f.At(LeftEyeOuter).X - f.At(RightEyeOuter).X
}

// HeadTurnResult is the outcome of evaluating a head-turn challenge.
type HeadTurnResult struct {
	Passed     bool
	Sufficient bool
	Yaws       []float64
	Delta      float64
}

// HeadYawAnalyzer evaluates the head-turn challenge.
type HeadYawAnalyzer struct {
	Threshold float64
	MinFrames int
}

// NewHeadYawAnalyzer creates an analyzer from engine configuration.
func NewHeadYawAnalyzer(cfg Config) HeadYawAnalyzer {
	return HeadYawAnalyzer{
		Threshold: cfg.YawThreshold,
		MinFrames: cfg.MinFrames,
	}
}

// Evaluate computes the yaw range over the window and passes when it exceeds
// the threshold.
func (a HeadYawAnalyzer) Evaluate(frames []*LandmarkFrame) HeadTurnResult {
	res := HeadTurnResult{Yaws: make([]float64, 0, len(frames))}
	if len(frames) == 0 {
		return res
	}

	lo, hi := YawProxy(frames[0]), YawProxy(frames[0])
	for _, f := range frames {
		y := YawProxy(f)
		res.Yaws = append(res.Yaws, y)
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	res.Delta = hi - lo

	if len(frames) < a.MinFrames {
		return res
	}
	res.Sufficient = true
	res.Passed = res.Delta > a.Threshold
	return res
}
