// Package ws is a video engine whose channel signaling runs against a
// rendezvous server over a websocket. Media is not carried; overlay and
// preview state stay local to the engine.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Wyydra/looper/internal/adapter/wire"
	"github.com/Wyydra/looper/internal/core/domain"
	"github.com/Wyydra/looper/internal/core/port"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait   = 5 * time.Second
	eventBuffer = 64
)

var errClosed = errors.New("engine connection closed")

type Watermark struct {
	Path      string
	Placement domain.WatermarkPlacement
}

type Factory struct {
	url    string
	dialer *websocket.Dialer
}

func NewFactory(url string) *Factory {
	return &Factory{url: url, dialer: websocket.DefaultDialer}
}

// Create dials the rendezvous server. The connection lives until Destroy.
func (f *Factory) Create(ctx context.Context, appID string) (port.Engine, error) {
	if appID == "" {
		return nil, errors.New("app id is empty")
	}
	header := http.Header{}
	header.Set("X-App-Id", appID)
	conn, _, err := f.dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", f.url, err)
	}

	e := &Engine{
		appID:  appID,
		conn:   conn,
		log:    log.With().Str("module", "engine.ws").Str("url", f.url).Logger(),
		events: make(chan domain.EngineEvent, eventBuffer),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go e.readPump()
	e.log.Info().Msg("Engine connected")
	return e, nil
}

type Engine struct {
	appID string
	conn  *websocket.Conn
	log   zerolog.Logger

	writeMu sync.Mutex

	mu           sync.Mutex
	videoEnabled bool
	previewing   bool
	profile      domain.ChannelProfile
	role         domain.ClientRole
	watermarks   []Watermark
	joined       bool
	pendingJoin  chan error
	detached     bool

	events    chan domain.EngineEvent
	closed    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (e *Engine) EnableVideo(ctx context.Context) error {
	return e.update(func() { e.videoEnabled = true })
}

func (e *Engine) StartPreview(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
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

// JoinChannel sends the join request and waits for the server to accept or
// reject it. The confirmation itself is delivered as a SelfJoined event.
func (e *Engine) JoinChannel(ctx context.Context, token, channel, info string, uid domain.PeerID) error {
	if err := domain.ValidateChannelName(channel); err != nil {
		return err
	}
	e.mu.Lock()
	if e.joined || e.pendingJoin != nil {
		e.mu.Unlock()
		return domain.ErrAlreadyJoined
	}
	pending := make(chan error, 1)
	e.pendingJoin = pending
	msg := wire.Message{
		Type:    wire.TypeJoin,
		AppID:   e.appID,
		Channel: channel,
		Token:   token,
		Info:    info,
		Profile: e.profile.String(),
		Role:    e.role.String(),
		UID:     uint32(uid),
	}
	e.mu.Unlock()

	if err := e.write(msg); err != nil {
		e.clearPending(pending)
		return err
	}

	select {
	case err := <-pending:
		return err
	case <-e.closed:
		e.clearPending(pending)
		return errClosed
	case <-ctx.Done():
		e.clearPending(pending)
		return ctx.Err()
	}
}

func (e *Engine) clearPending(pending chan error) {
	e.mu.Lock()
	if e.pendingJoin == pending {
		e.pendingJoin = nil
	}
	e.mu.Unlock()
}

// LeaveChannel is accepted while not joined.
func (e *Engine) LeaveChannel(ctx context.Context) error {
	e.mu.Lock()
	joined := e.joined
	e.joined = false
	e.mu.Unlock()
	if !joined {
		return nil
	}
	return e.write(wire.Message{Type: wire.TypeLeave})
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

func (e *Engine) Watermarks() []Watermark {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Watermark, len(e.watermarks))
	copy(out, e.watermarks)
	return out
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

// Destroy closes the connection and the event stream.
func (e *Engine) Destroy() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.closed)
		e.writeMu.Lock()
		_ = e.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		e.writeMu.Unlock()
		err = e.conn.Close()
		<-e.done
		e.log.Info().Msg("Engine destroyed")
	})
	return err
}

func (e *Engine) update(fn func()) error {
	select {
	case <-e.closed:
		return errClosed
	default:
	}
	e.mu.Lock()
	fn()
	e.mu.Unlock()
	return nil
}

func (e *Engine) write(msg wire.Message) error {
	select {
	case <-e.closed:
		return errClosed
	default:
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if err := e.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return e.conn.WriteJSON(msg)
}

func (e *Engine) readPump() {
	defer func() {
		close(e.events)
		close(e.done)
	}()

	for {
		var msg wire.Message
		if err := e.conn.ReadJSON(&msg); err != nil {
			select {
			case <-e.closed:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					e.log.Error().Err(err).Msg("Unexpected close error")
				}
			}
			e.resolvePending(errClosed)
			return
		}

		if msg.Type == wire.TypeError {
			e.log.Error().Str("error", msg.Error).Msg("Rendezvous rejected request")
			e.resolvePending(errors.New(msg.Error))
			continue
		}

		ev, ok := msg.ToEvent()
		if !ok {
			e.log.Warn().Str("type", string(msg.Type)).Msg("Unknown message")
			continue
		}
		if _, self := ev.(domain.SelfJoined); self {
			e.mu.Lock()
			e.joined = true
			e.mu.Unlock()
		}
		if !e.deliver(ev) {
			e.resolvePending(errClosed)
			return
		}
		if _, self := ev.(domain.SelfJoined); self {
			e.resolvePending(nil)
		}
	}
}

func (e *Engine) deliver(ev domain.EngineEvent) bool {
	e.mu.Lock()
	detached := e.detached
	e.mu.Unlock()
	if detached {
		return true
	}
	select {
	case e.events <- ev:
		return true
	case <-e.closed:
		return false
	}
}

func (e *Engine) resolvePending(err error) {
	e.mu.Lock()
	pending := e.pendingJoin
	e.pendingJoin = nil
	e.mu.Unlock()
	if pending != nil {
		pending <- err
	}
}
