// Package gate runs liveness checks in front of a biometric operation.
// The operation is only invoked with a live verdict, and each verdict
// authorizes at most one operation.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrCodeEU/facegate/pkg/audit"
	"github.com/MrCodeEU/facegate/pkg/config"
	"github.com/MrCodeEU/facegate/pkg/liveness"
	"github.com/MrCodeEU/facegate/pkg/logging"
)

// Result represents the outcome of a gated operation.
type Result struct {
	Success  bool
	Error    error
	Duration time.Duration
	Attempts int
	Reason   string
	Subject  string
	Verdicts []liveness.Verdict
}

// ErrorCode represents a specific gate error type.
type ErrorCode string

const (
	ErrCodeNoFace             ErrorCode = "NO_FACE"
	ErrCodeInsufficientFrames ErrorCode = "INSUFFICIENT_FRAMES"
	ErrCodeChallenge          ErrorCode = "CHALLENGE_FAILED"
	ErrCodeMotion             ErrorCode = "MOTION_FAILED"
	ErrCodeInvalidFrame       ErrorCode = "INVALID_FRAME"
	ErrCodeSource             ErrorCode = "SOURCE_ERROR"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeCancelled          ErrorCode = "CANCELLED"
	ErrCodeOperation          ErrorCode = "OPERATION_FAILED"
)

// GateError is a structured gate error.
type GateError struct {
	Code    ErrorCode
	Message string
	Retry   bool
	Details map[string]interface{}
}

func (e *GateError) Error() string {
	return e.Message
}

// User-friendly error messages
var errorMessages = map[ErrorCode]string{
	ErrCodeNoFace:             "Please position your face in front of the camera",
	ErrCodeInsufficientFrames: "Not enough frames captured. Please hold still in good light",
	ErrCodeChallenge:          "Liveness challenge not completed. Please follow the prompt and try again",
	ErrCodeMotion:             "Motion check failed. A static image is suspected",
	ErrCodeInvalidFrame:       "Camera delivered unusable frames. Please check your camera",
	ErrCodeSource:             "Camera error. Please check your camera connection",
	ErrCodeTimeout:            "Liveness check timed out",
	ErrCodeCancelled:          "Liveness check cancelled",
	ErrCodeOperation:          "Operation failed after liveness was confirmed",
}

var reasonCodes = map[liveness.Reason]ErrorCode{
	liveness.ReasonNoFaceDetected:        ErrCodeNoFace,
	liveness.ReasonInsufficientFrames:    ErrCodeInsufficientFrames,
	liveness.ReasonChallengeNotSatisfied: ErrCodeChallenge,
	liveness.ReasonMotionCheckFailed:     ErrCodeMotion,
	liveness.ReasonInvalidFrameShape:     ErrCodeInvalidFrame,
}

// GetErrorMessage returns a user-friendly message for an error code.
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Liveness check failed"
}

// NewGateError creates a new gate error.
func NewGateError(code ErrorCode, retry bool) *GateError {
	return &GateError{
		Code:    code,
		Message: GetErrorMessage(code),
		Retry:   retry,
		Details: make(map[string]interface{}),
	}
}

// ErrorFromVerdict converts a failed verdict into a gate error. A failed
// motion check points at a presentation attack and is not retried.
func ErrorFromVerdict(v liveness.Verdict) *GateError {
	code, ok := reasonCodes[v.Reason]
	if !ok {
		code = ErrCodeChallenge
	}
	e := NewGateError(code, code != ErrCodeMotion)
	e.Details["session_id"] = v.SessionID
	e.Details["challenge"] = string(v.Challenge)
	e.Details["reason"] = string(v.Reason)
	e.Details["frames"] = v.Metrics.FramesCollected
	return e
}

// ErrNotLive is returned when no attempt produced a live verdict.
var ErrNotLive = errors.New("liveness not confirmed")

// LivenessChecker runs one liveness session against a frame source.
type LivenessChecker interface {
	Check(ctx context.Context, src liveness.FrameSource) (liveness.Verdict, error)
	CheckChallenge(ctx context.Context, kind liveness.ChallengeKind, src liveness.FrameSource) (liveness.Verdict, error)
}

// Recorder persists verdicts.
type Recorder interface {
	Record(subject string, attempt int, v liveness.Verdict) (audit.Entry, error)
}

// SourceFactory opens a fresh frame source for an attempt.
type SourceFactory func(ctx context.Context, attempt int) (liveness.FrameSource, error)

// Operation is the biometric operation guarded by the gate.
type Operation func(ctx context.Context, subject string, v liveness.Verdict) error

// Gate runs up to maxAttempts liveness sessions, each with a newly selected
// challenge, and invokes the operation once a session is live.
type Gate struct {
	checker   LivenessChecker
	recorder  Recorder
	challenge liveness.ChallengeKind

	timeout     time.Duration
	maxAttempts int
}

// New creates a gate. recorder may be nil to disable auditing.
func New(cfg config.GateConfig, checker LivenessChecker, recorder Recorder) (*Gate, error) {
	g := &Gate{
		checker:     checker,
		recorder:    recorder,
		timeout:     time.Duration(cfg.Timeout) * time.Second,
		maxAttempts: cfg.MaxAttempts,
	}

	if cfg.Challenge != "" && cfg.Challenge != "random" {
		kind, err := liveness.ParseChallengeKind(cfg.Challenge)
		if err != nil {
			return nil, err
		}
		g.challenge = kind
	}

	return g, nil
}

// SetTimeout sets the overall timeout across attempts.
func (g *Gate) SetTimeout(d time.Duration) {
	g.timeout = d
}

// SetMaxAttempts sets the maximum number of attempts.
func (g *Gate) SetMaxAttempts(attempts int) {
	g.maxAttempts = attempts
}

// Run performs liveness checks for subject and invokes op after the first
// live verdict. op may be nil when only the verdict is wanted.
func (g *Gate) Run(ctx context.Context, subject string, sources SourceFactory, op Operation) Result {
	startTime := time.Now()
	result := Result{Subject: subject}
	log := logging.Component("gate").WithField("subject", subject)

	log.Infof("Starting liveness gate (max %d attempts)", g.maxAttempts)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	finish := func(err error, reason string) Result {
		result.Error = err
		result.Reason = reason
		result.Duration = time.Since(startTime)
		return result
	}

	var lastErr *GateError
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		result.Attempts = attempt
		log.Debugf("Liveness attempt %d/%d", attempt, g.maxAttempts)

		if ctx.Err() != nil {
			return finish(contextError(ctx), "liveness check interrupted")
		}

		src, err := sources(ctx, attempt)
		if err != nil {
			log.Warnf("Frame source failed on attempt %d: %v", attempt, err)
			lastErr = NewGateError(ErrCodeSource, true)
			continue
		}

		verdict, err := g.check(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return finish(contextError(ctx), "liveness check interrupted")
			}
			log.Warnf("Liveness session failed on attempt %d: %v", attempt, err)
			lastErr = NewGateError(ErrCodeSource, true)
			continue
		}

		result.Verdicts = append(result.Verdicts, verdict)
		g.record(subject, attempt, verdict)

		if !verdict.Live {
			gerr := ErrorFromVerdict(verdict)
			if !gerr.Retry {
				log.Errorf("SECURITY ALERT: liveness failed, possible presentation attack: %s", verdict.Reason)
				return finish(gerr, string(verdict.Reason))
			}
			log.Warnf("Liveness failed (retrying): %s", verdict.Reason)
			lastErr = gerr
			continue
		}

		if op != nil {
			if err := op(ctx, subject, verdict); err != nil {
				gerr := NewGateError(ErrCodeOperation, false)
				gerr.Details["error"] = err.Error()
				log.WithError(err).Error("Gated operation failed")
				return finish(gerr, "operation failed")
			}
		}

		result.Success = true
		log.Infof("Liveness confirmed on attempt %d (session %s)", attempt, verdict.SessionID)
		return finish(nil, string(verdict.Reason))
	}

	if lastErr == nil {
		lastErr = NewGateError(ErrCodeChallenge, false)
	}
	return finish(lastErr, fmt.Sprintf("%s after %d attempts", ErrNotLive, result.Attempts))
}

func (g *Gate) check(ctx context.Context, src liveness.FrameSource) (liveness.Verdict, error) {
	if g.challenge != "" {
		return g.checker.CheckChallenge(ctx, g.challenge, src)
	}
	return g.checker.Check(ctx, src)
}

func (g *Gate) record(subject string, attempt int, v liveness.Verdict) {
	if g.recorder == nil {
		return
	}
	if _, err := g.recorder.Record(subject, attempt, v); err != nil {
		logging.Warnf("Failed to audit verdict %s: %v", v.SessionID, err)
	}
}

func contextError(ctx context.Context) *GateError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewGateError(ErrCodeTimeout, false)
	}
	return NewGateError(ErrCodeCancelled, false)
}
