package liveness

import "time"

// Reason names the outcome of a session.
type Reason string

const (
	ReasonPassed                Reason = "passed"
	ReasonInsufficientFrames    Reason = "InsufficientFrames"
	ReasonChallengeNotSatisfied Reason = "ChallengeNotSatisfied"
	ReasonMotionCheckFailed     Reason = "MotionCheckFailed"
	ReasonNoFaceDetected        Reason = "NoFaceDetected"
	ReasonInvalidFrameShape     Reason = "InvalidFrameShape"
)

var reasonErrors = map[Reason]error{
	ReasonInsufficientFrames:    ErrInsufficientFrames,
	ReasonChallengeNotSatisfied: ErrChallengeNotSatisfied,
	ReasonMotionCheckFailed:     ErrMotionCheckFailed,
	ReasonNoFaceDetected:        ErrNoFaceDetected,
	ReasonInvalidFrameShape:     ErrInvalidFrameShape,
}

// Metrics carries the evidence collected by a session.
type Metrics struct {
	FramesCollected   int       `json:"frames_collected"`
	FramesWithoutFace int       `json:"frames_without_face"`
	FramesRejected    int       `json:"frames_rejected"`
	EyeRatios         []EyePair `json:"eye_ratios,omitempty"`
	MinEAR            float64   `json:"min_ear"`
	Yaws              []float64 `json:"yaws,omitempty"`
	YawDelta          float64   `json:"yaw_delta"`
	MotionDelta       float64   `json:"motion_delta"`
}

// Verdict is the single result of a liveness session. Callers must reject the
// biometric operation unless Live is true.
type Verdict struct {
	SessionID   string        `json:"session_id"`
	Challenge   ChallengeKind `json:"challenge"`
	Live        bool          `json:"live"`
	Reason      Reason        `json:"reason"`
	Metrics     Metrics       `json:"metrics"`
	CompletedAt time.Time     `json:"completed_at"`
}

// clone returns a copy that shares no slices with v.
func (v Verdict) clone() Verdict {
	if v.Metrics.EyeRatios != nil {
		v.Metrics.EyeRatios = append([]EyePair(nil), v.Metrics.EyeRatios...)
	}
	if v.Metrics.Yaws != nil {
		v.Metrics.Yaws = append([]float64(nil), v.Metrics.Yaws...)
	}
	return v
}

// Err returns the sentinel error for a failed verdict, or nil when live.
func (v Verdict) Err() error {
	if v.Live {
		return nil
	}
	if err, ok := reasonErrors[v.Reason]; ok {
		return err
	}
	return ErrLivenessFailed
}
