// Package wire defines the JSON messages exchanged between the websocket
// engine and the rendezvous server.
package wire

import (
	"fmt"
	"time"

	"github.com/Wyydra/looper/internal/core/domain"
)

type MessageType string

const (
	TypeJoin       MessageType = "join"
	TypeLeave      MessageType = "leave"
	TypeSelfJoined MessageType = "self_joined"
	TypePeerJoined MessageType = "peer_joined"
	TypePeerLeft   MessageType = "peer_left"
	TypeError      MessageType = "error"
)

// Message is the single envelope used in both directions. Fields irrelevant to
// Type are left empty.
type Message struct {
	Type      MessageType `json:"type"`
	AppID     string      `json:"app_id,omitempty"`
	Channel   string      `json:"channel,omitempty"`
	Token     string      `json:"token,omitempty"`
	Info      string      `json:"info,omitempty"`
	Profile   string      `json:"profile,omitempty"`
	Role      string      `json:"role,omitempty"`
	UID       uint32      `json:"uid,omitempty"`
	ElapsedMs int64       `json:"elapsed_ms,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func FromEvent(ev domain.EngineEvent) (Message, error) {
	switch e := ev.(type) {
	case domain.SelfJoined:
		return Message{Type: TypeSelfJoined, Channel: e.Channel, UID: uint32(e.ID), ElapsedMs: e.Elapsed.Milliseconds()}, nil
	case domain.PeerJoined:
		return Message{Type: TypePeerJoined, UID: uint32(e.ID), ElapsedMs: e.Elapsed.Milliseconds()}, nil
	case domain.PeerLeft:
		return Message{Type: TypePeerLeft, UID: uint32(e.ID), Reason: e.Reason.String()}, nil
	}
	return Message{}, fmt.Errorf("unsupported event %T", ev)
}

// ToEvent converts a server push into an engine event. ok is false for
// messages that are not events.
func (m Message) ToEvent() (ev domain.EngineEvent, ok bool) {
	elapsed := time.Duration(m.ElapsedMs) * time.Millisecond
	switch m.Type {
	case TypeSelfJoined:
		return domain.SelfJoined{Channel: m.Channel, ID: domain.PeerID(m.UID), Elapsed: elapsed}, true
	case TypePeerJoined:
		return domain.PeerJoined{ID: domain.PeerID(m.UID), Elapsed: elapsed}, true
	case TypePeerLeft:
		return domain.PeerLeft{ID: domain.PeerID(m.UID), Reason: ParseReason(m.Reason)}, true
	}
	return nil, false
}

func ParseReason(s string) domain.OfflineReason {
	switch s {
	case domain.ReasonDropped.String():
		return domain.ReasonDropped
	case domain.ReasonBecomeAudience.String():
		return domain.ReasonBecomeAudience
	default:
		return domain.ReasonQuit
	}
}
