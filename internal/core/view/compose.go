// Package view turns a session snapshot into what the call screen shows. It
// holds no state and issues no intents.
package view

import "github.com/Wyydra/looper/internal/core/domain"

type SurfaceKind int

const (
	SurfaceLocal SurfaceKind = iota
	SurfaceRemote
)

// Surface is one video view. Key is stable for the lifetime of the peer so
// renderers can reuse widgets.
type Surface struct {
	Kind    SurfaceKind
	Key     string
	PeerID  domain.PeerID
	Channel string
}

type Controls struct {
	CanStart bool
	CanEnd   bool
}

type Screen struct {
	Phase     domain.Phase
	Local     *Surface
	Remote    []Surface
	Controls  Controls
	Watermark bool
}

func Compose(s domain.SessionState) Screen {
	screen := Screen{
		Phase: s.Phase,
		Controls: Controls{
			CanStart: s.Phase == domain.PhaseIdle,
			CanEnd:   s.Phase != domain.PhaseIdle,
		},
		Watermark: s.WatermarkActive,
	}
	if s.Phase != domain.PhaseJoined {
		return screen
	}

	screen.Local = &Surface{
		Kind:    SurfaceLocal,
		Key:     "local",
		PeerID:  s.LocalPeerID,
		Channel: s.Channel,
	}
	ids := s.RemotePeers.IDs()
	screen.Remote = make([]Surface, 0, len(ids))
	for _, id := range ids {
		screen.Remote = append(screen.Remote, Surface{
			Kind:    SurfaceRemote,
			Key:     "remote-" + id.String(),
			PeerID:  id,
			Channel: s.Channel,
		})
	}
	return screen
}
