package port

import (
	"context"

	"github.com/Wyydra/looper/internal/core/domain"
)

// EngineFactory creates engine instances bound to an app identifier.
type EngineFactory interface {
	Create(ctx context.Context, appID string) (Engine, error)
}

// Engine is the video engine handle. Every call may suspend. JoinChannel only
// reports synchronous failures; the outcome of a join arrives later as a
// domain.SelfJoined event.
type Engine interface {
	EnableVideo(ctx context.Context) error
	StartPreview(ctx context.Context) error
	SetChannelProfile(ctx context.Context, profile domain.ChannelProfile) error
	SetClientRole(ctx context.Context, role domain.ClientRole) error

	JoinChannel(ctx context.Context, token, channel, info string, uid domain.PeerID) error
	// LeaveChannel is accepted while not joined.
	LeaveChannel(ctx context.Context) error

	// Watermark calls are accepted without an active preview or session.
	AddWatermark(ctx context.Context, imagePath string, placement domain.WatermarkPlacement) error
	ClearWatermarks(ctx context.Context) error

	// Subscribe returns the event stream and a function that detaches it.
	Subscribe() (events <-chan domain.EngineEvent, cancel func())
	Destroy() error
}
