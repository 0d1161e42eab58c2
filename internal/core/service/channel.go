package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/Wyydra/looper/internal/core/domain"
	"github.com/Wyydra/looper/internal/core/port"
	"github.com/rs/zerolog/log"
)

var ErrHubStopped = errors.New("channel hub stopped")

type ChannelInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

type membership struct {
	channel  string
	id       domain.PeerID
	joinedAt time.Time
}

type channelRoom struct {
	roster  domain.Roster
	members map[domain.PeerID]port.ChannelMember
}

type joinRequest struct {
	member    port.ChannelMember
	channel   string
	requested domain.PeerID
	at        time.Time
	reply     chan joinResult
}

type joinResult struct {
	id  domain.PeerID
	err error
}

type leaveRequest struct {
	member port.ChannelMember
	reason domain.OfflineReason
	reply  chan struct{}
}

// ChannelHub tracks who is present in which channel and tells members about
// each other. All bookkeeping happens on the Run goroutine.
type ChannelHub struct {
	channels map[string]*channelRoom
	members  map[port.ChannelMember]membership

	join  chan joinRequest
	leave chan leaveRequest
	list  chan chan []ChannelInfo
	quit  chan struct{}
	done  chan struct{}

	newID func() domain.PeerID
}

func NewChannelHub() *ChannelHub {
	return &ChannelHub{
		channels: make(map[string]*channelRoom),
		members:  make(map[port.ChannelMember]membership),
		join:     make(chan joinRequest),
		leave:    make(chan leaveRequest),
		list:     make(chan chan []ChannelInfo),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		newID:    func() domain.PeerID { return domain.PeerID(rand.Uint32()) },
	}
}

// Join puts member into channel under requested, or under a fresh id when
// requested is zero.
func (h *ChannelHub) Join(ctx context.Context, member port.ChannelMember, channel string, requested domain.PeerID) (domain.PeerID, error) {
	req := joinRequest{
		member:    member,
		channel:   channel,
		requested: requested,
		at:        time.Now(),
		reply:     make(chan joinResult, 1),
	}
	select {
	case h.join <- req:
	case <-h.quit:
		return 0, ErrHubStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	res := <-req.reply
	return res.id, res.err
}

// Leave removes member from its channel. Leaving while not joined is fine.
func (h *ChannelHub) Leave(ctx context.Context, member port.ChannelMember, reason domain.OfflineReason) error {
	req := leaveRequest{member: member, reason: reason, reply: make(chan struct{})}
	select {
	case h.leave <- req:
	case <-h.quit:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.reply
	return nil
}

func (h *ChannelHub) Channels(ctx context.Context) ([]ChannelInfo, error) {
	reply := make(chan []ChannelInfo, 1)
	select {
	case h.list <- reply:
	case <-h.quit:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return <-reply, nil
}

func (h *ChannelHub) Stop() {
	select {
	case <-h.quit:
	default:
		close(h.quit)
	}
}

// Done is closed once Run has returned.
func (h *ChannelHub) Done() <-chan struct{} {
	return h.done
}

func (h *ChannelHub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			log.Info().Int("members", len(h.members)).Msg("Stopping ChannelHub. Disconnecting all members.")
			for member := range h.members {
				if err := member.Close(); err != nil {
					log.Error().Err(err).Str("member_id", member.ID()).Msg("Error closing member")
				}
				delete(h.members, member)
			}
			h.channels = make(map[string]*channelRoom)
			return

		case req := <-h.join:
			id, err := h.handleJoin(req)
			req.reply <- joinResult{id: id, err: err}

		case req := <-h.leave:
			h.remove(req.member, req.reason)
			close(req.reply)

		case reply := <-h.list:
			reply <- h.snapshot()
		}
	}
}

func (h *ChannelHub) handleJoin(req joinRequest) (domain.PeerID, error) {
	if m, ok := h.members[req.member]; ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrAlreadyJoined, m.channel)
	}
	if err := domain.ValidateChannelName(req.channel); err != nil {
		return 0, err
	}
	room, ok := h.channels[req.channel]
	if !ok {
		room = &channelRoom{members: make(map[domain.PeerID]port.ChannelMember)}
		h.channels[req.channel] = room
	}

	id := req.requested
	if id == 0 {
		for id == 0 || room.members[id] != nil {
			id = h.newID()
		}
	} else if _, taken := room.members[id]; taken {
		return 0, fmt.Errorf("%w: %s", domain.ErrPeerIDTaken, id)
	}

	now := time.Now()
	existing := room.roster.IDs()
	room.roster = room.roster.With(id)
	room.members[id] = req.member
	h.members[req.member] = membership{channel: req.channel, id: id, joinedAt: req.at}

	log.Info().Str("channel", req.channel).Str("peer_id", id.String()).Int("count", room.roster.Len()).Str("member_id", req.member.ID()).Msg("Member joined channel")

	var dropped []port.ChannelMember
	if err := req.member.Notify(domain.SelfJoined{Channel: req.channel, ID: id, Elapsed: now.Sub(req.at)}); err != nil {
		dropped = append(dropped, req.member)
	}
	for _, other := range existing {
		if err := req.member.Notify(domain.PeerJoined{ID: other, Elapsed: now.Sub(req.at)}); err != nil {
			dropped = append(dropped, req.member)
			break
		}
	}
	for _, other := range existing {
		m := room.members[other]
		if err := m.Notify(domain.PeerJoined{ID: id, Elapsed: now.Sub(h.members[m].joinedAt)}); err != nil {
			log.Error().Err(err).Str("member_id", m.ID()).Msg("Error notifying member")
			dropped = append(dropped, m)
		}
	}
	for _, m := range dropped {
		h.drop(m)
	}
	return id, nil
}

// drop removes a member that can no longer be notified and closes it.
func (h *ChannelHub) drop(member port.ChannelMember) {
	if _, ok := h.members[member]; !ok {
		return
	}
	h.remove(member, domain.ReasonDropped)
	if err := member.Close(); err != nil {
		log.Error().Err(err).Str("member_id", member.ID()).Msg("Error closing member")
	}
}

func (h *ChannelHub) remove(member port.ChannelMember, reason domain.OfflineReason) {
	m, ok := h.members[member]
	if !ok {
		return
	}
	delete(h.members, member)
	room := h.channels[m.channel]
	room.roster = room.roster.Without(m.id)
	delete(room.members, m.id)
	if room.roster.Len() == 0 {
		delete(h.channels, m.channel)
	}
	log.Info().Str("channel", m.channel).Str("peer_id", m.id.String()).Stringer("reason", reason).Int("count", room.roster.Len()).Msg("Member left channel")

	var dropped []port.ChannelMember
	for _, other := range room.roster.IDs() {
		om := room.members[other]
		if err := om.Notify(domain.PeerLeft{ID: m.id, Reason: reason}); err != nil {
			log.Error().Err(err).Str("member_id", om.ID()).Msg("Error notifying member")
			dropped = append(dropped, om)
		}
	}
	for _, om := range dropped {
		h.drop(om)
	}
}

func (h *ChannelHub) snapshot() []ChannelInfo {
	out := make([]ChannelInfo, 0, len(h.channels))
	for name, room := range h.channels {
		out = append(out, ChannelInfo{Name: name, Members: room.roster.Len()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
