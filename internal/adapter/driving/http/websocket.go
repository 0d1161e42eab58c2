package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Wyydra/looper/internal/adapter/wire"
	"github.com/Wyydra/looper/internal/core/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 32
)

var errSendQueueFull = errors.New("send queue full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// TODO: restrict origins once the rendezvous is deployed behind a known host
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSClient is one engine connection. It implements port.ChannelMember.
type WSClient struct {
	id   domain.ClientID
	conn *websocket.Conn
	send chan wire.Message
	log  zerolog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newWSClient(conn *websocket.Conn) *WSClient {
	id := domain.NewClientID()
	return &WSClient{
		id:   id,
		conn: conn,
		send: make(chan wire.Message, sendBuffer),
		log:  log.With().Str("client_id", id.String()).Logger(),
		done: make(chan struct{}),
	}
}

func (c *WSClient) ID() string {
	return c.id.String()
}

func (c *WSClient) Notify(ev domain.EngineEvent) error {
	msg, err := wire.FromEvent(ev)
	if err != nil {
		return err
	}
	return c.enqueue(msg)
}

func (c *WSClient) enqueue(msg wire.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("client closed")
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errSendQueueFull
	}
}

func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return c.conn.Close()
}

func (c *WSClient) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error().Err(err).Msg("Failed to set write deadline")
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Error().Err(err).Msg("Failed to write message")
				return
			}
		}
	}
}

// HTTP handler
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}
	conn.SetReadLimit(h.ReadLimit)

	client := newWSClient(conn)
	l := client.log.With().Str("app_id", r.Header.Get("X-App-Id")).Logger()
	l.Info().Msg("New client connected")

	go client.writePump()

	defer func() {
		l.Info().Msg("Client disconnected")
		if err := h.Hub.Leave(context.Background(), client, domain.ReasonDropped); err != nil {
			l.Debug().Err(err).Msg("Leave on disconnect")
		}
		client.Close()
	}()

	for {
		var req wire.Message
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}

		switch req.Type {
		case wire.TypeJoin:
			id, err := h.Hub.Join(r.Context(), client, req.Channel, domain.PeerID(req.UID))
			if err != nil {
				l.Error().Err(err).Str("channel", req.Channel).Msg("Failed to join channel")
				if err := client.enqueue(wire.Message{Type: wire.TypeError, Error: err.Error()}); err != nil {
					l.Error().Err(err).Msg("Failed to send error")
				}
				continue
			}
			l = l.With().Str("channel", req.Channel).Str("peer_id", id.String()).Logger()
			l.Info().Str("role", req.Role).Bool("token", req.Token != "").Msg("Client joined channel")

		case wire.TypeLeave:
			if err := h.Hub.Leave(r.Context(), client, domain.ReasonQuit); err != nil {
				l.Error().Err(err).Msg("Failed to leave channel")
			}

		default:
			l.Warn().Str("type", string(req.Type)).Msg("Unknown message type")
		}
	}
}
