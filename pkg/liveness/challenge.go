package liveness

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ChallengeKind is the action a session asks the subject to perform.
type ChallengeKind string

const (
	ChallengeBlink    ChallengeKind = "blink"
	ChallengeHeadTurn ChallengeKind = "head_turn"
)

// Challenges lists every supported challenge in selection order.
var Challenges = []ChallengeKind{ChallengeBlink, ChallengeHeadTurn}

// ParseChallengeKind converts a configuration string to a ChallengeKind.
func ParseChallengeKind(s string) (ChallengeKind, error) {
	switch s {
	case "blink":
		return ChallengeBlink, nil
	case "head_turn", "head-turn", "turn":
		return ChallengeHeadTurn, nil
	}
	return "", fmt.Errorf("unknown challenge: %q (must be blink or head_turn)", s)
}

// Description returns the prompt shown to the subject.
func (k ChallengeKind) Description() string {
	switch k {
	case ChallengeBlink:
		return "Please blink your eyes"
	case ChallengeHeadTurn:
		return "Please turn your head to the left or right"
	}
	return "Please look at the camera"
}

// Selector picks the challenge for a new session.
type Selector interface {
	Select() ChallengeKind
}

// RandomSelector picks uniformly between all challenges.
type RandomSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSelector creates a selector backed by src. A nil src is seeded
// from the current time.
func NewRandomSelector(src rand.Source) *RandomSelector {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &RandomSelector{rng: rand.New(src)}
}

// Select returns a uniformly random challenge.
func (s *RandomSelector) Select() ChallengeKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Challenges[s.rng.Intn(len(Challenges))]
}

// FixedSelector always returns the same challenge.
type FixedSelector ChallengeKind

// Select returns the fixed challenge.
func (s FixedSelector) Select() ChallengeKind {
	return ChallengeKind(s)
}
