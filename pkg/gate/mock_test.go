package gate

import (
	"context"
	"io"

	"github.com/MrCodeEU/facegate/pkg/audit"
	"github.com/MrCodeEU/facegate/pkg/liveness"
)

// MockChecker implements LivenessChecker for testing
type MockChecker struct {
	CheckFunc          func(ctx context.Context, src liveness.FrameSource) (liveness.Verdict, error)
	CheckChallengeFunc func(ctx context.Context, kind liveness.ChallengeKind, src liveness.FrameSource) (liveness.Verdict, error)
}

func (m *MockChecker) Check(ctx context.Context, src liveness.FrameSource) (liveness.Verdict, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, src)
	}
	return liveness.Verdict{SessionID: "mock", Live: true, Reason: liveness.ReasonPassed}, nil
}

func (m *MockChecker) CheckChallenge(ctx context.Context, kind liveness.ChallengeKind, src liveness.FrameSource) (liveness.Verdict, error) {
	if m.CheckChallengeFunc != nil {
		return m.CheckChallengeFunc(ctx, kind, src)
	}
	return liveness.Verdict{SessionID: "mock", Challenge: kind, Live: true, Reason: liveness.ReasonPassed}, nil
}

// MockRecorder implements Recorder for testing
type MockRecorder struct {
	RecordFunc func(subject string, attempt int, v liveness.Verdict) (audit.Entry, error)
	Entries    []audit.Entry
}

func (m *MockRecorder) Record(subject string, attempt int, v liveness.Verdict) (audit.Entry, error) {
	if m.RecordFunc != nil {
		return m.RecordFunc(subject, attempt, v)
	}
	e := audit.Entry{
		SessionID: v.SessionID,
		Subject:   subject,
		Attempt:   attempt,
		Challenge: v.Challenge,
		Live:      v.Live,
		Reason:    v.Reason,
	}
	m.Entries = append(m.Entries, e)
	return e, nil
}

// MockSource implements liveness.FrameSource for testing
type MockSource struct {
	NextFunc func(ctx context.Context) (liveness.Observation, error)
}

func (m *MockSource) Next(ctx context.Context) (liveness.Observation, error) {
	if m.NextFunc != nil {
		return m.NextFunc(ctx)
	}
	return liveness.Observation{}, io.EOF
}

func mockSources(ctx context.Context, attempt int) (liveness.FrameSource, error) {
	return &MockSource{}, nil
}
