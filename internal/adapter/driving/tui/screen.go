// Package tui renders the call screen in a terminal. Everything shown is
// derived from view.Compose; button presses only issue controller intents.
package tui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Wyydra/looper/internal/core/domain"
	"github.com/Wyydra/looper/internal/core/port"
	"github.com/Wyydra/looper/internal/core/view"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

// Controller is the part of the session controller the screen drives.
type Controller interface {
	StartCall(ctx context.Context) error
	EndCall(ctx context.Context) error
	EnableWatermark(ctx context.Context) error
	DisableWatermark(ctx context.Context) error
	Subscribe(obs port.StateObserver) (func(), error)
}

type intent struct {
	label string
	key   rune
	run   func(ctx context.Context) error
}

const pendingUpdates = 16

// Screen never calls QueueUpdateDraw from the controller's goroutine or from
// intent goroutines: the application only accepts updates while Run is
// active, so every change goes through pump, which starts after the first
// draw and stops with the application.
type Screen struct {
	app      *tview.Application
	ctrl     Controller
	timeout  time.Duration
	header   *tview.TextView
	status   *tview.TextView
	surfaces *tview.Flex
	buttons  []*tview.Button
	intents  []intent
	focused  int

	states    chan domain.SessionState
	updates   chan func()
	started   chan struct{}
	startOnce sync.Once
	stopped   chan struct{}
}

func New(ctrl Controller, timeout time.Duration) *Screen {
	s := &Screen{
		app:      tview.NewApplication(),
		ctrl:     ctrl,
		timeout:  timeout,
		header:   tview.NewTextView().SetDynamicColors(true),
		status:   tview.NewTextView().SetDynamicColors(true),
		surfaces: tview.NewFlex().SetDirection(tview.FlexRow),
		states:   make(chan domain.SessionState, 1),
		updates:  make(chan func(), pendingUpdates),
		started:  make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	s.intents = []intent{
		{label: "Start Call", key: 's', run: ctrl.StartCall},
		{label: "End Call", key: 'e', run: ctrl.EndCall},
		{label: "Enable Watermark", key: 'w', run: ctrl.EnableWatermark},
		{label: "Disable Watermark", key: 'd', run: ctrl.DisableWatermark},
	}

	buttonRow := tview.NewFlex().SetDirection(tview.FlexColumn)
	for _, in := range s.intents {
		b := tview.NewButton(in.label).SetSelectedFunc(func() { s.dispatch(in) })
		s.buttons = append(s.buttons, b)
		buttonRow.AddItem(b, 0, 1, false).AddItem(nil, 1, 0, false)
	}

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.header, 1, 0, false).
		AddItem(buttonRow, 1, 0, true).
		AddItem(s.status, 1, 0, false).
		AddItem(s.surfaces, 0, 1, false)

	s.app.SetRoot(root, true).SetFocus(s.buttons[0])
	s.app.SetInputCapture(s.handleKey)
	s.app.SetAfterDrawFunc(func(tcell.Screen) {
		s.startOnce.Do(func() { close(s.started) })
	})
	return s
}

// Run shows the screen until ctx is done or the user quits.
func (s *Screen) Run(ctx context.Context) error {
	unsubscribe, err := s.ctrl.Subscribe(port.StateObserverFunc(s.onState))
	if err != nil {
		return err
	}
	defer unsubscribe()

	go s.pump()
	go func() {
		select {
		case <-ctx.Done():
			s.app.Stop()
		case <-s.stopped:
		}
	}()
	defer close(s.stopped)
	return s.app.Run()
}

// onState runs on the controller's goroutine and must not block. Only the
// newest state is kept.
func (s *Screen) onState(state domain.SessionState) {
	for {
		select {
		case s.states <- state:
			return
		default:
		}
		select {
		case <-s.states:
		default:
		}
	}
}

// post hands fn to pump. It gives up once the screen has stopped.
func (s *Screen) post(fn func()) {
	select {
	case s.updates <- fn:
	case <-s.stopped:
	}
}

func (s *Screen) pump() {
	select {
	case <-s.started:
	case <-s.stopped:
		return
	}
	for {
		select {
		case <-s.stopped:
			return
		case state := <-s.states:
			s.app.QueueUpdateDraw(func() { s.show(state) })
		case fn := <-s.updates:
			s.app.QueueUpdateDraw(fn)
		}
	}
}

func (s *Screen) show(state domain.SessionState) {
	screen := view.Compose(state)
	s.header.SetText(headerLine(state, screen))
	s.render(screen)
}

func (s *Screen) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Key() {
	case tcell.KeyTab, tcell.KeyRight:
		s.focus(nextFocus(s.focused, len(s.buttons), 1))
		return nil
	case tcell.KeyBacktab, tcell.KeyLeft:
		s.focus(nextFocus(s.focused, len(s.buttons), -1))
		return nil
	case tcell.KeyRune:
		if ev.Rune() == 'q' {
			s.app.Stop()
			return nil
		}
		for _, in := range s.intents {
			if in.key == ev.Rune() {
				s.dispatch(in)
				return nil
			}
		}
	}
	return ev
}

func (s *Screen) focus(i int) {
	s.focused = i
	s.app.SetFocus(s.buttons[i])
}

// dispatch runs an intent off the UI goroutine and reports the outcome in the
// status line.
func (s *Screen) dispatch(in intent) {
	s.status.SetText(fmt.Sprintf("[yellow]%s…", in.label))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		err := in.run(ctx)
		if err != nil {
			log.Error().Err(err).Str("module", "tui").Str("intent", in.label).Msg("Intent failed")
		}
		s.post(func() {
			s.status.SetText(statusLine(in.label, err))
		})
	}()
}

func (s *Screen) render(screen view.Screen) {
	s.surfaces.Clear()
	if screen.Local == nil {
		placeholder := tview.NewTextView().SetTextAlign(tview.AlignCenter).SetText(idleText(screen.Phase))
		s.surfaces.AddItem(placeholder, 0, 1, false)
		return
	}

	local := tview.NewTextView().SetTextAlign(tview.AlignCenter).SetText("camera preview")
	local.SetBorder(true).SetTitle(surfaceTitle(*screen.Local))
	s.surfaces.AddItem(local, 0, 3, false)

	remotes := tview.NewFlex().SetDirection(tview.FlexColumn)
	for _, r := range screen.Remote {
		tv := tview.NewTextView().SetTextAlign(tview.AlignCenter).SetText(r.Key)
		tv.SetBorder(true).SetTitle(surfaceTitle(r))
		remotes.AddItem(tv, 0, 1, false)
	}
	if len(screen.Remote) == 0 {
		remotes.AddItem(tview.NewTextView().SetTextAlign(tview.AlignCenter).SetText("waiting for peers"), 0, 1, false)
	}
	s.surfaces.AddItem(remotes, 0, 1, false)
}

func headerLine(state domain.SessionState, screen view.Screen) string {
	wm := "off"
	if screen.Watermark {
		wm = "on"
	}
	line := fmt.Sprintf("channel [::b]%s[::-]  phase [::b]%s[::-]  watermark [::b]%s[::-]", state.Channel, screen.Phase, wm)
	if id, ok := state.LocalPeer(); ok {
		line += fmt.Sprintf("  uid [::b]%s[::-]", id)
	}
	return line
}

func statusLine(label string, err error) string {
	if err != nil {
		return fmt.Sprintf("[red]%s: %v", label, err)
	}
	return fmt.Sprintf("[green]%s: ok", label)
}

func surfaceTitle(sf view.Surface) string {
	if sf.Kind == view.SurfaceLocal {
		return fmt.Sprintf(" local · %s · uid %s ", sf.Channel, sf.PeerID)
	}
	return fmt.Sprintf(" peer %s ", sf.PeerID)
}

func idleText(phase domain.Phase) string {
	if phase == domain.PhaseJoining {
		return "joining…"
	}
	return "not in a call, press s to start or q to quit"
}

func nextFocus(current, n, step int) int {
	if n == 0 {
		return 0
	}
	return ((current+step)%n + n) % n
}
