// Package memory provides a loopback video engine. Engines created from the
// same Factory share one in-process ChannelHub, so they see each other join
// and leave without any network.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Wyydra/looper/internal/core/domain"
	"github.com/Wyydra/looper/internal/core/port"
	"github.com/Wyydra/looper/internal/core/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultEventBuffer = 64

var (
	errDestroyed  = errors.New("engine destroyed")
	errQueueFull  = errors.New("event queue full")
	errEmptyAppID = errors.New("app id is empty")
)

type Watermark struct {
	Path      string
	Placement domain.WatermarkPlacement
}

type Factory struct {
	hub    *service.ChannelHub
	buffer int
}

func NewFactory(hub *service.ChannelHub) *Factory {
	return &Factory{hub: hub, buffer: defaultEventBuffer}
}

func (f *Factory) Create(ctx context.Context, appID string) (port.Engine, error) {
	return f.New(appID)
}

// New is Create with the concrete type, for callers that inspect engine state.
func (f *Factory) New(appID string) (*Engine, error) {
	if appID == "" {
		return nil, errEmptyAppID
	}
	e := &Engine{
		hub:    f.hub,
		appID:  appID,
		id:     uuid.NewString(),
		events: make(chan domain.EngineEvent, f.buffer),
	}
	log.Debug().Str("module", "engine.memory").Str("engine_id", e.id).Msg("Engine created")
	return e, nil
}

// Engine implements port.Engine and port.ChannelMember.
type Engine struct {
	hub   *service.ChannelHub
	appID string
	id    string

	mu           sync.Mutex
	videoEnabled bool
	previewing   bool
	profile      domain.ChannelProfile
	role         domain.ClientRole
	watermarks   []Watermark
	channel      string
	detached     bool
	destroyed    bool
	events       chan domain.EngineEvent
}

func (e *Engine) ID() string { return e.id }

func (e *Engine) Notify(ev domain.EngineEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return errDestroyed
	}
	if e.detached {
		return nil
	}
	select {
	case e.events <- ev:
		return nil
	default:
		return errQueueFull
	}
}

// Close is called by the hub when it drops this engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.channel = ""
	e.mu.Unlock()
	return nil
}

func (e *Engine) EnableVideo(ctx context.Context) error {
	return e.update(func() { e.videoEnabled = true })
}

func (e *Engine) StartPreview(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return errDestroyed
	}
	if !e.videoEnabled {
		return errors.New("video module not enabled")
	}
	e.previewing = true
	return nil
}

func (e *Engine) SetChannelProfile(ctx context.Context, profile domain.ChannelProfile) error {
	return e.update(func() { e.profile = profile })
}

func (e *Engine) SetClientRole(ctx context.Context, role domain.ClientRole) error {
	return e.update(func() { e.role = role })
}

func (e *Engine) JoinChannel(ctx context.Context, token, channel, info string, uid domain.PeerID) error {
	if err := domain.ValidateChannelName(channel); err != nil {
		return err
	}
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return errDestroyed
	}
	if e.channel != "" {
		current := e.channel
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrAlreadyJoined, current)
	}
	e.channel = channel
	e.mu.Unlock()

	if _, err := e.hub.Join(ctx, e, channel, uid); err != nil {
		e.mu.Lock()
		e.channel = ""
		e.mu.Unlock()
		return err
	}
	return nil
}

func (e *Engine) LeaveChannel(ctx context.Context) error {
	e.mu.Lock()
	joined := e.channel != ""
	e.channel = ""
	e.mu.Unlock()
	if !joined {
		return nil
	}
	return e.hub.Leave(ctx, e, domain.ReasonQuit)
}

func (e *Engine) AddWatermark(ctx context.Context, imagePath string, placement domain.WatermarkPlacement) error {
	if imagePath == "" {
		return errors.New("watermark path is empty")
	}
	return e.update(func() {
		e.watermarks = append(e.watermarks, Watermark{Path: imagePath, Placement: placement})
	})
}

func (e *Engine) ClearWatermarks(ctx context.Context) error {
	return e.update(func() { e.watermarks = nil })
}

func (e *Engine) Subscribe() (<-chan domain.EngineEvent, func()) {
	e.mu.Lock()
	e.detached = false
	e.mu.Unlock()
	return e.events, func() {
		e.mu.Lock()
		e.detached = true
		e.mu.Unlock()
	}
}

func (e *Engine) Destroy() error {
	if err := e.LeaveChannel(context.Background()); err != nil && !errors.Is(err, service.ErrHubStopped) {
		log.Warn().Err(err).Str("module", "engine.memory").Msg("Leave on destroy failed")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return nil
	}
	e.destroyed = true
	close(e.events)
	return nil
}

func (e *Engine) Watermarks() []Watermark {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Watermark, len(e.watermarks))
	copy(out, e.watermarks)
	return out
}

func (e *Engine) Previewing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.previewing
}

func (e *Engine) update(fn func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return errDestroyed
	}
	fn()
	return nil
}
