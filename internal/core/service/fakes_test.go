package service

import (
	"context"
	"slices"
	"sync"

	"github.com/Wyydra/looper/internal/core/domain"
	"github.com/Wyydra/looper/internal/core/port"
)

type watermarkCall struct {
	path      string
	placement domain.WatermarkPlacement
}

type joinCall struct {
	token   string
	channel string
	uid     domain.PeerID
}

// fakeEngine records every call. Its event stream is unbuffered so an emit
// returns only once the controller has picked the event up.
type fakeEngine struct {
	mu           sync.Mutex
	calls        []string
	fail         map[string]error
	profile      domain.ChannelProfile
	role         domain.ClientRole
	joins        []joinCall
	watermarks   []watermarkCall
	unsubscribed bool
	destroyed    bool

	events chan domain.EngineEvent
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		fail:   make(map[string]error),
		events: make(chan domain.EngineEvent),
	}
}

func (e *fakeEngine) failOn(op string, err error) {
	e.mu.Lock()
	e.fail[op] = err
	e.mu.Unlock()
}

func (e *fakeEngine) record(op string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, op)
	return e.fail[op]
}

func (e *fakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

func (e *fakeEngine) count(op string) int {
	n := 0
	for _, c := range e.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

func (e *fakeEngine) emit(ev domain.EngineEvent) {
	e.events <- ev
}

func (e *fakeEngine) EnableVideo(ctx context.Context) error { return e.record("enableVideo") }

func (e *fakeEngine) StartPreview(ctx context.Context) error { return e.record("startPreview") }

func (e *fakeEngine) SetChannelProfile(ctx context.Context, profile domain.ChannelProfile) error {
	e.mu.Lock()
	e.profile = profile
	e.mu.Unlock()
	return e.record("setChannelProfile")
}

func (e *fakeEngine) SetClientRole(ctx context.Context, role domain.ClientRole) error {
	e.mu.Lock()
	e.role = role
	e.mu.Unlock()
	return e.record("setClientRole")
}

func (e *fakeEngine) JoinChannel(ctx context.Context, token, channel, info string, uid domain.PeerID) error {
	e.mu.Lock()
	e.joins = append(e.joins, joinCall{token: token, channel: channel, uid: uid})
	e.mu.Unlock()
	return e.record("joinChannel")
}

func (e *fakeEngine) LeaveChannel(ctx context.Context) error { return e.record("leaveChannel") }

func (e *fakeEngine) AddWatermark(ctx context.Context, imagePath string, placement domain.WatermarkPlacement) error {
	e.mu.Lock()
	e.watermarks = append(e.watermarks, watermarkCall{path: imagePath, placement: placement})
	e.mu.Unlock()
	return e.record("addWatermark")
}

func (e *fakeEngine) ClearWatermarks(ctx context.Context) error { return e.record("clearWatermarks") }

func (e *fakeEngine) Subscribe() (<-chan domain.EngineEvent, func()) {
	return e.events, func() {
		e.mu.Lock()
		e.unsubscribed = true
		e.mu.Unlock()
	}
}

func (e *fakeEngine) Destroy() error {
	e.mu.Lock()
	e.destroyed = true
	e.mu.Unlock()
	return e.record("destroy")
}

func (e *fakeEngine) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

type fakeFactory struct {
	engine *fakeEngine
	err    error
}

func (f *fakeFactory) Create(ctx context.Context, appID string) (port.Engine, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.engine, nil
}

type fakeGate bool

func (g fakeGate) RequestMediaPermissions(ctx context.Context) bool { return bool(g) }

// fakeAssets resolves every URL to path. When release is set, Resolve signals
// entered and then waits for release.
type fakeAssets struct {
	path    string
	err     error
	entered chan struct{}
	release chan struct{}
}

func (a *fakeAssets) Resolve(ctx context.Context, url string) (string, error) {
	if a.release != nil {
		a.entered <- struct{}{}
		select {
		case <-a.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return a.path, a.err
}

// fakeMember is a ChannelMember that keeps every event it is told about.
type fakeMember struct {
	id      string
	mu      sync.Mutex
	events  []domain.EngineEvent
	failing bool
	closed  bool
}

func (m *fakeMember) ID() string { return m.id }

func (m *fakeMember) Notify(ev domain.EngineEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errNotifyFailed
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *fakeMember) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *fakeMember) Events() []domain.EngineEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

func (m *fakeMember) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// stateLog collects every state an observer is handed.
type stateLog struct {
	mu     sync.Mutex
	states []domain.SessionState
}

func (l *stateLog) OnStateChanged(s domain.SessionState) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) Phases() []domain.Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Phase, 0, len(l.states))
	for _, s := range l.states {
		out = append(out, s.Phase)
	}
	return out
}
