package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Wyydra/looper/internal/core/domain"
	"github.com/Wyydra/looper/internal/core/port"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultOpTimeout = 10 * time.Second

type SessionConfig struct {
	AppID        string
	Channel      string
	Token        string
	WatermarkURL string
	Placement    domain.WatermarkPlacement
	OpTimeout    time.Duration
}

type SessionDeps struct {
	Engines     port.EngineFactory
	Permissions port.PermissionGate
	Assets      port.WatermarkAssetProvider
}

// SessionController owns the call state of one screen. State is only touched
// by the run goroutine; intents and engine events are serialized onto it.
// Engine calls execute on a separate FIFO worker and fold their results back
// through the same loop, so the loop never waits on the engine.
type SessionController struct {
	cfg     SessionConfig
	engine  port.Engine
	assets  port.WatermarkAssetProvider
	granted bool
	log     zerolog.Logger

	state     domain.SessionState
	joinSeq   uint64
	wmSeq     uint64
	observers map[domain.ObserverID]port.StateObserver

	actions     chan func()
	events      <-chan domain.EngineEvent
	unsubscribe func()
	ops         *opQueue

	lifetime  context.Context
	cancel    context.CancelFunc
	quit      chan struct{}
	loopDone  chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewSessionController requests media permissions, creates and configures the
// engine and subscribes to its events. The engine is destroyed again if any
// step fails.
func NewSessionController(ctx context.Context, deps SessionDeps, cfg SessionConfig) (_ *SessionController, err error) {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}
	l := log.With().Str("module", "service.session").Str("channel", cfg.Channel).Logger()

	granted := true
	if deps.Permissions != nil {
		granted = deps.Permissions.RequestMediaPermissions(ctx)
	}
	if !granted {
		l.Warn().Msg("Media permissions denied, call features disabled")
	}

	engine, err := deps.Engines.Create(ctx, cfg.AppID)
	if err != nil {
		return nil, &domain.EngineInitError{Err: err}
	}
	defer func() {
		if err == nil {
			return
		}
		if derr := engine.Destroy(); derr != nil {
			l.Error().Err(derr).Msg("Failed to release engine after init error")
		}
	}()

	steps := []struct {
		op string
		fn func(context.Context) error
	}{
		{"enableVideo", engine.EnableVideo},
		{"startPreview", engine.StartPreview},
		{"setChannelProfile", func(ctx context.Context) error {
			return engine.SetChannelProfile(ctx, domain.ProfileLiveBroadcasting)
		}},
		{"setClientRole", func(ctx context.Context) error {
			return engine.SetClientRole(ctx, domain.RoleBroadcaster)
		}},
	}
	for _, step := range steps {
		if err = step.fn(ctx); err != nil {
			return nil, &domain.EngineInitError{Err: &domain.EngineOperationError{Op: step.op, Err: err}}
		}
	}

	events, unsubscribe := engine.Subscribe()
	lifetime, cancel := context.WithCancel(context.WithoutCancel(ctx))

	c := &SessionController{
		cfg:         cfg,
		engine:      engine,
		assets:      deps.Assets,
		granted:     granted,
		log:         l,
		state:       domain.NewSessionState(cfg.AppID, cfg.Channel, cfg.Token),
		observers:   make(map[domain.ObserverID]port.StateObserver),
		actions:     make(chan func()),
		events:      events,
		unsubscribe: unsubscribe,
		ops:         newOpQueue(),
		lifetime:    lifetime,
		cancel:      cancel,
		quit:        make(chan struct{}),
		loopDone:    make(chan struct{}),
		closed:      make(chan struct{}),
	}
	go c.run()
	go c.ops.run(lifetime)

	l.Info().Bool("permissions", granted).Msg("Session controller ready")
	return c, nil
}

func (c *SessionController) run() {
	defer close(c.loopDone)
	events := c.events
	for {
		select {
		case <-c.quit:
			return

		case fn := <-c.actions:
			fn()

		case ev, ok := <-events:
			if !ok {
				c.log.Warn().Msg("Engine event stream closed")
				events = nil
				continue
			}
			c.apply(ev)
		}
	}
}

func (c *SessionController) apply(ev domain.EngineEvent) {
	switch e := ev.(type) {
	case domain.SelfJoined:
		c.log.Info().Str("peer_id", e.ID.String()).Dur("elapsed", e.Elapsed).Stringer("phase", c.state.Phase).Msg("Joined channel")
	case domain.PeerJoined:
		c.log.Info().Str("peer_id", e.ID.String()).Dur("elapsed", e.Elapsed).Msg("Peer joined")
	case domain.PeerLeft:
		c.log.Info().Str("peer_id", e.ID.String()).Stringer("reason", e.Reason).Msg("Peer left")
	}
	c.setState(domain.Fold(c.state, ev))
}

func (c *SessionController) setState(next domain.SessionState) {
	if next.Equal(c.state) {
		return
	}
	c.state = next
	for _, obs := range c.observers {
		obs.OnStateChanged(next)
	}
}

// StartCall joins the configured channel. It is a no-op unless the session is
// idle. Only synchronous engine failures are returned; the join completes when
// the engine confirms it.
func (c *SessionController) StartCall(ctx context.Context) error {
	if !c.granted {
		return domain.ErrPermissionDenied
	}
	reply := make(chan error, 1)
	err := c.call(ctx, func() {
		if c.state.Phase != domain.PhaseIdle {
			c.log.Debug().Stringer("phase", c.state.Phase).Msg("Start call ignored")
			reply <- nil
			return
		}
		c.joinSeq++
		seq := c.joinSeq

		next := c.state
		next.Phase = domain.PhaseJoining
		c.setState(next)

		c.submit("joinChannel", func(ctx context.Context) error {
			return c.engine.JoinChannel(ctx, c.cfg.Token, c.cfg.Channel, "", 0)
		}, func(err error) {
			if err == nil || seq != c.joinSeq || c.state.Phase != domain.PhaseJoining {
				return
			}
			c.setState(c.state.Reset())
		}, reply)
	})
	if err != nil {
		return err
	}
	return c.await(ctx, reply)
}

// EndCall leaves the channel. Local state is reset immediately whatever the
// engine reports; the engine error, if any, is still returned.
func (c *SessionController) EndCall(ctx context.Context) error {
	reply := make(chan error, 1)
	err := c.call(ctx, func() {
		c.joinSeq++
		c.setState(c.state.Reset())
		c.submit("leaveChannel", c.engine.LeaveChannel, nil, reply)
	})
	if err != nil {
		return err
	}
	return c.await(ctx, reply)
}

// EnableWatermark fetches the watermark image and applies it. State only
// changes once both steps succeed.
func (c *SessionController) EnableWatermark(ctx context.Context) error {
	if !c.granted {
		return domain.ErrPermissionDenied
	}
	var seq uint64
	if err := c.call(ctx, func() {
		c.wmSeq++
		seq = c.wmSeq
	}); err != nil {
		return err
	}

	path, err := c.assets.Resolve(ctx, c.cfg.WatermarkURL)
	if err != nil {
		var fetchErr *domain.AssetFetchError
		if !errors.As(err, &fetchErr) {
			err = &domain.AssetFetchError{URL: c.cfg.WatermarkURL, Err: err}
		}
		c.log.Error().Err(err).Msg("Watermark asset unavailable")
		return err
	}

	reply := make(chan error, 1)
	err = c.call(ctx, func() {
		if seq != c.wmSeq {
			reply <- domain.ErrWatermarkSuperseded
			return
		}
		c.submit("addWatermark", func(ctx context.Context) error {
			return c.engine.AddWatermark(ctx, path, c.cfg.Placement)
		}, func(err error) {
			if err != nil || seq != c.wmSeq {
				return
			}
			next := c.state
			next.WatermarkActive = true
			c.setState(next)
		}, reply)
	})
	if err != nil {
		return err
	}
	return c.await(ctx, reply)
}

// DisableWatermark clears every overlay. The state flips to inactive without
// waiting for the engine.
func (c *SessionController) DisableWatermark(ctx context.Context) error {
	reply := make(chan error, 1)
	err := c.call(ctx, func() {
		c.wmSeq++
		next := c.state
		next.WatermarkActive = false
		c.setState(next)
		c.submit("clearWatermarks", c.engine.ClearWatermarks, nil, reply)
	})
	if err != nil {
		return err
	}
	return c.await(ctx, reply)
}

// Snapshot returns a copy of the current state. Once the controller is
// closing it waits for Close to finish and returns the final state.
func (c *SessionController) Snapshot() domain.SessionState {
	var s domain.SessionState
	if err := c.call(context.Background(), func() { s = c.state }); err != nil {
		<-c.closed
		return c.state
	}
	return s
}

// Subscribe registers obs and immediately sends it the current state. The
// returned function removes it.
func (c *SessionController) Subscribe(obs port.StateObserver) (func(), error) {
	id := domain.NewObserverID()
	err := c.call(context.Background(), func() {
		c.observers[id] = obs
		obs.OnStateChanged(c.state)
	})
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("observer_id", id.String()).Msg("Observer subscribed")
	return func() {
		_ = c.call(context.Background(), func() { delete(c.observers, id) })
	}, nil
}

// Close tears the session down: pending engine operations finish, the channel
// is left if needed, events are detached and the engine is destroyed. Safe to
// call more than once.
func (c *SessionController) Close() error {
	c.closeOnce.Do(func() {
		close(c.quit)
		<-c.loopDone
		c.ops.close()
		<-c.ops.done
		c.unsubscribe()

		var errs []error
		if c.state.Phase != domain.PhaseIdle {
			ctx, cancel := context.WithTimeout(c.lifetime, c.cfg.OpTimeout)
			if err := c.engine.LeaveChannel(ctx); err != nil {
				errs = append(errs, &domain.EngineOperationError{Op: "leaveChannel", Err: err})
			}
			cancel()
			c.state = c.state.Reset()
		}
		c.cancel()
		if err := c.engine.Destroy(); err != nil {
			errs = append(errs, &domain.EngineOperationError{Op: "destroy", Err: err})
		}
		c.closeErr = errors.Join(errs...)
		c.log.Info().Msg("Session controller closed")
		close(c.closed)
	})
	return c.closeErr
}

// call runs fn on the event loop and waits for it to finish. fn must not
// block.
func (c *SessionController) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case c.actions <- func() { fn(); close(done) }:
	case <-c.quit:
		return domain.ErrControllerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// post hands fn to the event loop without waiting for it to run.
func (c *SessionController) post(fn func()) bool {
	select {
	case c.actions <- fn:
		return true
	case <-c.quit:
		return false
	}
}

// submit queues an engine call. Must be called from the event loop. complete,
// when set, runs on the loop with the result before reply receives it.
func (c *SessionController) submit(op string, fn func(context.Context) error, complete func(error), reply chan<- error) {
	ok := c.ops.push(func(lifetime context.Context) {
		ctx, cancel := context.WithTimeout(lifetime, c.cfg.OpTimeout)
		err := fn(ctx)
		cancel()
		if err != nil {
			err = &domain.EngineOperationError{Op: op, Err: err}
			c.log.Error().Err(err).Msg("Engine operation failed")
		}
		if complete != nil {
			c.post(func() { complete(err) })
		}
		reply <- err
	})
	if !ok {
		reply <- fmt.Errorf("%s: %w", op, domain.ErrControllerClosed)
	}
}

func (c *SessionController) await(ctx context.Context, reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
