package ws

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	handler "github.com/Wyydra/looper/internal/adapter/driving/http"
	"github.com/Wyydra/looper/internal/core/domain"
	"github.com/Wyydra/looper/internal/core/service"
)

func dialTestEngine(t *testing.T) *Engine {
	t.Helper()
	hub := service.NewChannelHub()
	go hub.Run()
	srv := httptest.NewServer(handler.NewHandler(hub, 0).NewRouter())
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})

	e, err := NewFactory("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws").Create(context.Background(), "app")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { e.Destroy() })
	return e.(*Engine)
}

func TestCreateRejectsEmptyAppID(t *testing.T) {
	t.Parallel()
	if _, err := NewFactory("ws://127.0.0.1:1/ws").Create(context.Background(), ""); err == nil {
		t.Error("expected error for empty app id")
	}
}

func TestCreateDialFailure(t *testing.T) {
	t.Parallel()
	if _, err := NewFactory("ws://127.0.0.1:1/ws").Create(context.Background(), "app"); err == nil {
		t.Error("expected dial error")
	}
}

func TestLocalState(t *testing.T) {
	t.Parallel()
	e := dialTestEngine(t)
	ctx := context.Background()

	if err := e.StartPreview(ctx); err == nil {
		t.Error("preview started before video was enabled")
	}
	if err := e.EnableVideo(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.StartPreview(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.LeaveChannel(ctx); err != nil {
		t.Errorf("leave while not joined: %v", err)
	}

	p := domain.DefaultPlacement(800)
	if err := e.AddWatermark(ctx, "/tmp/a.png", p); err != nil {
		t.Fatal(err)
	}
	if err := e.AddWatermark(ctx, "", p); err == nil {
		t.Error("expected error for empty watermark path")
	}
	if got := e.Watermarks(); len(got) != 1 || got[0].Path != "/tmp/a.png" {
		t.Errorf("watermarks: got %+v", got)
	}
	if err := e.ClearWatermarks(ctx); err != nil {
		t.Fatal(err)
	}
	if got := e.Watermarks(); len(got) != 0 {
		t.Errorf("watermarks after clear: got %+v", got)
	}
}

func TestClosedEngine(t *testing.T) {
	t.Parallel()
	e := dialTestEngine(t)
	events, _ := e.Subscribe()
	if err := e.Destroy(); err != nil {
		t.Fatal(err)
	}
	if err := e.Destroy(); err != nil {
		t.Errorf("second Destroy: %v", err)
	}
	if _, ok := <-events; ok {
		t.Error("event stream still open after Destroy")
	}
	err := e.JoinChannel(context.Background(), "", "looper", "", 0)
	if !errors.Is(err, errClosed) {
		t.Errorf("join after Destroy: got %v, want errClosed", err)
	}
}
