package liveness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MrCodeEU/facegate/pkg/logging"
)

// State is the lifecycle position of a session.
type State int

const (
	StateInit State = iota
	StateCollecting
	StateEvaluating
	StatePassed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateCollecting:
		return "collecting"
	case StateEvaluating:
		return "evaluating"
	case StatePassed:
		return "passed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the state has produced a verdict.
func (s State) Terminal() bool {
	return s == StatePassed || s == StateFailed
}

// Clock supplies wall-clock time to a session.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the real time.
var SystemClock Clock = systemClock{}

// FrameSource delivers observations one at a time. Next blocks until the next
// observation is available; io.EOF means the source has no more frames.
type FrameSource interface {
	Next(ctx context.Context) (Observation, error)
}

// Session collects observations for one challenge over a fixed window and
// yields exactly one Verdict. A session is owned by a single caller and is
// not safe for concurrent use.
type Session struct {
	id        string
	cfg       Config
	challenge ChallengeKind
	clock     Clock
	log       *logrus.Entry

	state State
	start time.Time

	faces       []*LandmarkFrame
	firstSample *RawFrameSample
	lastSample  *RawFrameSample
	noFace      int
	rejected    int

	verdict Verdict
}

// NewSession creates a session in the Init state. A nil clock uses
// SystemClock.
func NewSession(cfg Config, challenge ChallengeKind, clock Clock) *Session {
	if clock == nil {
		clock = SystemClock
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		cfg:       cfg,
		challenge: challenge,
		clock:     clock,
		log: logging.Component("liveness").WithFields(logging.Fields{
			"session_id": id,
			"challenge":  challenge,
		}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Challenge returns the challenge the session evaluates.
func (s *Session) Challenge() ChallengeKind { return s.challenge }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Open starts the observation window.
func (s *Session) Open() error {
	if s.state != StateInit {
		if s.state.Terminal() {
			return ErrSessionClosed
		}
		return fmt.Errorf("session already open (state %s)", s.state)
	}
	s.start = s.clock.Now()
	s.state = StateCollecting
	s.log.Debugf("Liveness window opened (%v)", s.cfg.Window)
	return nil
}

// Elapsed returns the time since the window opened.
func (s *Session) Elapsed() time.Duration {
	if s.state == StateInit {
		return 0
	}
	return s.clock.Now().Sub(s.start)
}

// Expired reports whether the observation window has elapsed.
func (s *Session) Expired() bool {
	return s.state == StateCollecting && s.Elapsed() >= s.cfg.Window
}

// Deliver hands one observation to the session. When the window has already
// elapsed the observation is ignored, the session is evaluated and the
// verdict is returned. Otherwise the returned verdict is nil.
func (s *Session) Deliver(obs Observation) (*Verdict, error) {
	switch {
	case s.state.Terminal():
		return nil, ErrSessionClosed
	case s.state != StateCollecting:
		return nil, ErrSessionNotOpen
	}

	if s.Expired() {
		v := s.evaluate()
		return &v, nil
	}

	if obs.FaceErr != nil {
		s.rejected++
		s.log.WithError(obs.FaceErr).Debug("Rejecting frame with malformed landmarks")
		return nil, nil
	}
	if obs.Face == nil {
		s.noFace++
		s.log.Debug("Discarding frame without face")
		return nil, nil
	}
	if err := s.checkSample(obs.Sample); err != nil {
		s.rejected++
		s.log.WithError(err).Debug("Rejecting frame")
		return nil, nil
	}

	s.faces = append(s.faces, obs.Face)
	if s.firstSample == nil {
		s.firstSample = obs.Sample
	}
	s.lastSample = obs.Sample
	return nil, nil
}

func (s *Session) checkSample(sample *RawFrameSample) error {
	if sample == nil {
		return fmt.Errorf("%w: missing raw sample", ErrInvalidFrameShape)
	}
	if err := sample.Validate(); err != nil {
		return err
	}
	if s.lastSample != nil && !s.lastSample.SameShape(sample) {
		return fmt.Errorf("%w: sample shape changed mid-session", ErrInvalidFrameShape)
	}
	return nil
}

// Close ends the window early and evaluates what was collected.
func (s *Session) Close() (Verdict, error) {
	switch {
	case s.state.Terminal():
		return Verdict{}, ErrSessionClosed
	case s.state != StateCollecting:
		return Verdict{}, ErrSessionNotOpen
	}
	return s.evaluate(), nil
}

// Run opens the session if needed and pulls observations from src until the
// window elapses or the source is exhausted. If ctx is cancelled first the
// session is abandoned: no verdict is produced and ctx.Err() is returned.
func (s *Session) Run(ctx context.Context, src FrameSource) (Verdict, error) {
	if s.state == StateInit {
		if err := s.Open(); err != nil {
			return Verdict{}, err
		}
	}
	if s.state != StateCollecting {
		return Verdict{}, ErrSessionClosed
	}

	for {
		if err := ctx.Err(); err != nil {
			s.log.Debug("Session abandoned")
			return Verdict{}, err
		}
		if s.Expired() {
			return s.evaluate(), nil
		}

		obs, err := s.next(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				s.log.Debug("Session abandoned")
				return Verdict{}, ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, context.DeadlineExceeded) {
				return s.evaluate(), nil
			}
			return Verdict{}, fmt.Errorf("frame source: %w", err)
		}

		v, err := s.Deliver(obs)
		if err != nil {
			return Verdict{}, err
		}
		if v != nil {
			return *v, nil
		}
	}
}

// next waits for one observation, bounded by the time left in the window.
func (s *Session) next(ctx context.Context, src FrameSource) (Observation, error) {
	remaining := s.cfg.Window - s.Elapsed()
	if remaining <= 0 {
		return Observation{}, context.DeadlineExceeded
	}
	wctx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()
	return src.Next(wctx)
}

// Verdict returns the verdict once the session is terminal.
func (s *Session) Verdict() (Verdict, bool) {
	return s.verdict.clone(), s.state.Terminal()
}

func (s *Session) evaluate() Verdict {
	s.state = StateEvaluating

	blink := NewEyeAspectRatioAnalyzer(s.cfg).Evaluate(s.faces)
	turn := NewHeadYawAnalyzer(s.cfg).Evaluate(s.faces)

	m := Metrics{
		FramesCollected:   len(s.faces),
		FramesWithoutFace: s.noFace,
		FramesRejected:    s.rejected,
		EyeRatios:         blink.Ratios,
		MinEAR:            blink.MinEAR,
		Yaws:              turn.Yaws,
		YawDelta:          turn.Delta,
	}

	var prev *RawFrameSample
	if len(s.faces) > 1 {
		prev = s.firstSample
	}
	motion, motionErr := NewMotionGate(s.cfg).Check(prev, s.lastSample)
	m.MotionDelta = motion.Delta

	reason := ReasonPassed
	switch {
	case len(s.faces) < s.cfg.MinFrames:
		reason = s.insufficientReason()
	case s.challenge == ChallengeBlink && !blink.Passed:
		reason = ReasonChallengeNotSatisfied
	case s.challenge == ChallengeHeadTurn && !turn.Passed:
		reason = ReasonChallengeNotSatisfied
	case s.challenge != ChallengeBlink && s.challenge != ChallengeHeadTurn:
		reason = ReasonChallengeNotSatisfied
	case motionErr != nil:
		reason = ReasonInvalidFrameShape
	case !motion.LiveConsistent:
		reason = ReasonMotionCheckFailed
	}

	s.verdict = Verdict{
		SessionID:   s.id,
		Challenge:   s.challenge,
		Live:        reason == ReasonPassed,
		Reason:      reason,
		Metrics:     m,
		CompletedAt: s.clock.Now(),
	}
	if s.verdict.Live {
		s.state = StatePassed
	} else {
		s.state = StateFailed
	}

	// Release frames; only the verdict outlives evaluation.
	s.faces = nil
	s.firstSample, s.lastSample = nil, nil

	s.log.WithFields(logging.Fields{
		"live":         s.verdict.Live,
		"reason":       reason,
		"frames":       m.FramesCollected,
		"min_ear":      m.MinEAR,
		"yaw_delta":    m.YawDelta,
		"motion_delta": m.MotionDelta,
	}).Info("Liveness session completed")

	return s.verdict.clone()
}

// insufficientReason distinguishes an empty window caused by missing faces or
// malformed frames from one that simply saw too few frames.
func (s *Session) insufficientReason() Reason {
	if len(s.faces) == 0 {
		switch {
		case s.noFace > 0 && s.noFace >= s.rejected:
			return ReasonNoFaceDetected
		case s.rejected > 0:
			return ReasonInvalidFrameShape
		}
	}
	return ReasonInsufficientFrames
}
