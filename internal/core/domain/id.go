package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// PeerID identifies a participant inside a channel. Zero asks the engine to
// assign one.
type PeerID uint32

func (id PeerID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

type ObserverID uuid.UUID

func NewObserverID() ObserverID {
	return ObserverID(uuid.New())
}

func (id ObserverID) String() string {
	return uuid.UUID(id).String()
}

type ClientID uuid.UUID

func NewClientID() ClientID {
	return ClientID(uuid.New())
}

func (id ClientID) String() string {
	return uuid.UUID(id).String()
}
