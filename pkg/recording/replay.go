package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrCodeEU/facegate/pkg/liveness"
)

// Player replays a recording as a frame source. It is also the session clock:
// time advances to each frame's capture timestamp as the frame is delivered,
// so a replay yields the same verdict as the live run regardless of how fast
// it is consumed.
type Player struct {
	challenge liveness.ChallengeKind
	obs       []liveness.Observation
	now       time.Time
	i         int
}

// Replay prepares a recording for playback.
func Replay(rec *Recording) (*Player, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	p := &Player{challenge: rec.Challenge, obs: make([]liveness.Observation, 0, len(rec.Frames))}
	for i, f := range rec.Frames {
		obs := liveness.Observation{CapturedAtMs: f.CapturedAtMs, Sample: f.Sample}
		if len(f.Landmarks) > 0 {
			face, err := liveness.NewLandmarkFrame(f.Landmarks, f.CapturedAtMs)
			if err != nil {
				return nil, fmt.Errorf("%w: frame %d: %v", ErrInvalidRecording, i, err)
			}
			obs.Face = face
		}
		p.obs = append(p.obs, obs)
	}
	p.now = time.UnixMilli(rec.Frames[0].CapturedAtMs)
	return p, nil
}

// Challenge returns the challenge that was issued when the recording was made.
func (p *Player) Challenge() liveness.ChallengeKind {
	return p.challenge
}

// Now returns the capture time of the most recently delivered frame.
func (p *Player) Now() time.Time {
	return p.now
}

// Next delivers the next recorded observation.
func (p *Player) Next(ctx context.Context) (liveness.Observation, error) {
	if err := ctx.Err(); err != nil {
		return liveness.Observation{}, err
	}
	if p.i >= len(p.obs) {
		return liveness.Observation{}, io.EOF
	}

	obs := p.obs[p.i]
	p.i++
	p.now = time.UnixMilli(obs.CapturedAtMs)
	return obs, nil
}

// Remaining returns how many frames have not been delivered yet.
func (p *Player) Remaining() int {
	return len(p.obs) - p.i
}

// Check replays rec through a fresh session. The recorded challenge is used
// unless override is set.
func Check(ctx context.Context, cfg liveness.Config, rec *Recording, override liveness.ChallengeKind) (liveness.Verdict, error) {
	player, err := Replay(rec)
	if err != nil {
		return liveness.Verdict{}, err
	}

	if override != "" {
		return ReplayChecker{Config: cfg}.CheckChallenge(ctx, override, player)
	}
	return ReplayChecker{Config: cfg}.Check(ctx, player)
}

// ErrNotReplay is returned when a ReplayChecker is given a live frame source.
var ErrNotReplay = errors.New("frame source is not a recording player")

// ReplayChecker runs sessions over recording players, using each player as
// the session clock.
type ReplayChecker struct {
	Config liveness.Config
}

// Check replays src with the challenge that was issued when it was recorded.
func (c ReplayChecker) Check(ctx context.Context, src liveness.FrameSource) (liveness.Verdict, error) {
	player, ok := src.(*Player)
	if !ok {
		return liveness.Verdict{}, ErrNotReplay
	}
	if player.challenge == "" {
		return liveness.Verdict{}, fmt.Errorf("%w: recording has no challenge", ErrInvalidRecording)
	}
	return liveness.NewSession(c.Config, player.challenge, player).Run(ctx, player)
}

// CheckChallenge replays src against kind instead of the recorded challenge.
func (c ReplayChecker) CheckChallenge(ctx context.Context, kind liveness.ChallengeKind, src liveness.FrameSource) (liveness.Verdict, error) {
	player, ok := src.(*Player)
	if !ok {
		return liveness.Verdict{}, ErrNotReplay
	}
	return liveness.NewSession(c.Config, kind, player).Run(ctx, player)
}
