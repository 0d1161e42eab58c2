package domain

import (
	"fmt"
	"strings"
)

const MaxChannelNameLen = 64

const channelNameSymbols = " !#$%&()+-:;<=.>?@[]^_{}|~,"

type ChannelProfile int

const (
	ProfileCommunication ChannelProfile = iota
	ProfileLiveBroadcasting
)

func (p ChannelProfile) String() string {
	if p == ProfileLiveBroadcasting {
		return "live_broadcasting"
	}
	return "communication"
}

type ClientRole int

const (
	RoleBroadcaster ClientRole = iota + 1
	RoleAudience
)

func (r ClientRole) String() string {
	if r == RoleAudience {
		return "audience"
	}
	return "broadcaster"
}

func ValidateChannelName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidChannelName)
	}
	if len(name) > MaxChannelNameLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidChannelName, MaxChannelNameLen)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune(channelNameSymbols, r):
		default:
			return fmt.Errorf("%w: character %q not allowed", ErrInvalidChannelName, r)
		}
	}
	return nil
}
