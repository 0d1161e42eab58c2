package port

import "github.com/Wyydra/looper/internal/core/domain"

// ChannelMember is one endpoint registered with a channel hub. Notify must not
// block; an error makes the hub drop the member.
type ChannelMember interface {
	ID() string
	Notify(ev domain.EngineEvent) error
	Close() error
}
