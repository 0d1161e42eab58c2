package domain

// Fold applies one engine event to s and returns the next state. It has no
// side effects.
func Fold(s SessionState, ev EngineEvent) SessionState {
	switch e := ev.(type) {
	case SelfJoined:
		// A join confirmation can race a failed-join revert, so Idle is
		// accepted as well as Joining.
		if s.Phase == PhaseJoined {
			return s
		}
		s.Phase = PhaseJoined
		s.LocalPeerID = e.ID
		s.HasLocalPeer = true
		return s

	case PeerJoined:
		// Presence can arrive ahead of our own confirmation; anything
		// arriving after a leave is stale.
		if s.Phase == PhaseIdle {
			return s
		}
		s.RemotePeers = s.RemotePeers.With(e.ID)
		return s

	case PeerLeft:
		s.RemotePeers = s.RemotePeers.Without(e.ID)
		return s
	}
	return s
}
