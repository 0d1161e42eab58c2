package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	handler "github.com/Wyydra/looper/internal/adapter/driving/http"
	wsengine "github.com/Wyydra/looper/internal/adapter/driven/engine/ws"
	"github.com/Wyydra/looper/internal/core/domain"
	"github.com/Wyydra/looper/internal/core/port"
	"github.com/Wyydra/looper/internal/core/service"
)

func newRendezvous(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	hub := service.NewChannelHub()
	go hub.Run()
	srv := httptest.NewServer(handler.NewHandler(hub, 0).NewRouter())
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func newEngine(t *testing.T, url string) (port.Engine, <-chan domain.EngineEvent) {
	t.Helper()
	e, err := wsengine.NewFactory(url).Create(context.Background(), "app")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { e.Destroy() })
	events, _ := e.Subscribe()
	return e, events
}

func nextEvent(t *testing.T, events <-chan domain.EngineEvent) domain.EngineEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event stream closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv, _ := newRendezvous(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", resp.StatusCode)
	}
}

func TestWebsocketEnginesMeetInChannel(t *testing.T) {
	t.Parallel()
	srv, url := newRendezvous(t)
	ctx := context.Background()
	a, aEvents := newEngine(t, url)
	b, bEvents := newEngine(t, url)

	if err := a.JoinChannel(ctx, "tok", "looper", "", 100); err != nil {
		t.Fatalf("a join: %v", err)
	}
	if self, ok := nextEvent(t, aEvents).(domain.SelfJoined); !ok || self.ID != 100 || self.Channel != "looper" {
		t.Errorf("a: got %v, want SelfJoined 100", self)
	}

	if err := b.JoinChannel(ctx, "tok", "looper", "", 200); err != nil {
		t.Fatalf("b join: %v", err)
	}
	if self, ok := nextEvent(t, bEvents).(domain.SelfJoined); !ok || self.ID != 200 {
		t.Errorf("b: got %v, want SelfJoined 200", self)
	}
	if pj, ok := nextEvent(t, bEvents).(domain.PeerJoined); !ok || pj.ID != 100 {
		t.Errorf("b: got %v, want PeerJoined 100", pj)
	}
	if pj, ok := nextEvent(t, aEvents).(domain.PeerJoined); !ok || pj.ID != 200 {
		t.Errorf("a: got %v, want PeerJoined 200", pj)
	}

	resp, err := http.Get(srv.URL + "/channels")
	if err != nil {
		t.Fatal(err)
	}
	var channels []service.ChannelInfo
	err = json.NewDecoder(resp.Body).Decode(&channels)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(channels) != 1 || channels[0] != (service.ChannelInfo{Name: "looper", Members: 2}) {
		t.Errorf("channels: got %v", channels)
	}

	if err := b.LeaveChannel(ctx); err != nil {
		t.Fatal(err)
	}
	left, ok := nextEvent(t, aEvents).(domain.PeerLeft)
	if !ok || left.ID != 200 || left.Reason != domain.ReasonQuit {
		t.Errorf("a: got %v, want PeerLeft 200 quit", left)
	}
}

func TestWebsocketDisconnectIsDropped(t *testing.T) {
	t.Parallel()
	_, url := newRendezvous(t)
	ctx := context.Background()
	a, aEvents := newEngine(t, url)
	b, _ := newEngine(t, url)

	if err := a.JoinChannel(ctx, "", "looper", "", 1); err != nil {
		t.Fatal(err)
	}
	nextEvent(t, aEvents)
	if err := b.JoinChannel(ctx, "", "looper", "", 2); err != nil {
		t.Fatal(err)
	}
	nextEvent(t, aEvents)

	if err := b.Destroy(); err != nil {
		t.Fatal(err)
	}
	left, ok := nextEvent(t, aEvents).(domain.PeerLeft)
	if !ok || left.ID != 2 || left.Reason != domain.ReasonDropped {
		t.Errorf("a: got %v, want PeerLeft 2 dropped", left)
	}
}

func TestWebsocketJoinRejected(t *testing.T) {
	t.Parallel()
	_, url := newRendezvous(t)
	ctx := context.Background()
	a, _ := newEngine(t, url)
	b, _ := newEngine(t, url)

	if err := a.JoinChannel(ctx, "", "looper", "", 7); err != nil {
		t.Fatal(err)
	}
	err := b.JoinChannel(ctx, "", "looper", "", 7)
	if err == nil || !strings.Contains(err.Error(), domain.ErrPeerIDTaken.Error()) {
		t.Errorf("duplicate uid: got %v, want peer id taken", err)
	}
	if err := b.JoinChannel(ctx, "", "no/slash", "", 0); !errors.Is(err, domain.ErrInvalidChannelName) {
		t.Errorf("bad name: got %v, want ErrInvalidChannelName", err)
	}
	if err := b.JoinChannel(ctx, "", "looper", "", 8); err != nil {
		t.Errorf("retry with free uid: %v", err)
	}
}

func TestSessionOverRendezvous(t *testing.T) {
	t.Parallel()
	_, url := newRendezvous(t)
	ctx := context.Background()

	ctrl, err := service.NewSessionController(ctx, service.SessionDeps{
		Engines: wsengine.NewFactory(url),
	}, service.SessionConfig{AppID: "app", Channel: "looper", OpTimeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer ctrl.Close()

	peer, _ := newEngine(t, url)
	if err := peer.JoinChannel(ctx, "", "looper", "", 55); err != nil {
		t.Fatal(err)
	}

	if err := ctrl.StartCall(ctx); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := ctrl.Snapshot()
		if s.Phase == domain.PhaseJoined && s.RemotePeers.Contains(55) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("not joined with peer: %+v", s)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := peer.LeaveChannel(ctx); err != nil {
		t.Fatal(err)
	}
	deadline = time.Now().Add(2 * time.Second)
	for ctrl.Snapshot().RemotePeers.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("peer still present after leaving")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
