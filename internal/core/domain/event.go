package domain

import (
	"fmt"
	"time"
)

// EngineEvent is one notification pushed by the video engine.
type EngineEvent interface {
	isEngineEvent()
}

type SelfJoined struct {
	Channel string
	ID      PeerID
	Elapsed time.Duration
}

type PeerJoined struct {
	ID      PeerID
	Elapsed time.Duration
}

type PeerLeft struct {
	ID     PeerID
	Reason OfflineReason
}

func (SelfJoined) isEngineEvent() {}
func (PeerJoined) isEngineEvent() {}
func (PeerLeft) isEngineEvent()   {}

func (e SelfJoined) String() string {
	return fmt.Sprintf("SelfJoined(%s, %s, %dms)", e.Channel, e.ID, e.Elapsed.Milliseconds())
}

func (e PeerJoined) String() string {
	return fmt.Sprintf("PeerJoined(%s, %dms)", e.ID, e.Elapsed.Milliseconds())
}

func (e PeerLeft) String() string {
	return fmt.Sprintf("PeerLeft(%s, %s)", e.ID, e.Reason)
}

type OfflineReason int

const (
	ReasonQuit OfflineReason = iota
	ReasonDropped
	ReasonBecomeAudience
)

func (r OfflineReason) String() string {
	switch r {
	case ReasonQuit:
		return "quit"
	case ReasonDropped:
		return "dropped"
	case ReasonBecomeAudience:
		return "become_audience"
	default:
		return "unknown"
	}
}
