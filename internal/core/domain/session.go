package domain

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseJoining
	PhaseJoined
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseJoining:
		return "joining"
	case PhaseJoined:
		return "joined"
	default:
		return "unknown"
	}
}

// SessionState is everything the call screen renders from. It is a value:
// copies are independent snapshots.
type SessionState struct {
	AppID   string
	Channel string
	Token   string

	Phase           Phase
	LocalPeerID     PeerID
	HasLocalPeer    bool
	RemotePeers     Roster
	WatermarkActive bool
}

func NewSessionState(appID, channel, token string) SessionState {
	return SessionState{
		AppID:   appID,
		Channel: channel,
		Token:   token,
		Phase:   PhaseIdle,
	}
}

func (s SessionState) LocalPeer() (PeerID, bool) {
	return s.LocalPeerID, s.HasLocalPeer
}

// Reset drops everything tied to the current call. Credentials and the
// watermark overlay survive.
func (s SessionState) Reset() SessionState {
	s.Phase = PhaseIdle
	s.LocalPeerID = 0
	s.HasLocalPeer = false
	s.RemotePeers = Roster{}
	return s
}

func (s SessionState) Equal(o SessionState) bool {
	return s.AppID == o.AppID &&
		s.Channel == o.Channel &&
		s.Token == o.Token &&
		s.Phase == o.Phase &&
		s.LocalPeerID == o.LocalPeerID &&
		s.HasLocalPeer == o.HasLocalPeer &&
		s.WatermarkActive == o.WatermarkActive &&
		s.RemotePeers.Equal(o.RemotePeers)
}
