package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/Wyydra/looper/internal/core/domain"
	"github.com/Wyydra/looper/internal/core/service"
	"github.com/rs/zerolog/log"
)

// bot is a silent channel member used to populate a channel for demos.
type bot struct {
	name string
}

func (b *bot) ID() string                        { return b.name }
func (b *bot) Notify(ev domain.EngineEvent) error { return nil }
func (b *bot) Close() error                       { return nil }

// RunBots joins n bots to channel, one every interval, and removes them when
// ctx is done.
func RunBots(ctx context.Context, hub *service.ChannelHub, channel string, n int, interval time.Duration) {
	bots := make([]*bot, 0, n)
	defer func() {
		for _, b := range bots {
			_ = hub.Leave(context.Background(), b, domain.ReasonQuit)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for len(bots) < n {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		b := &bot{name: fmt.Sprintf("bot-%d", len(bots)+1)}
		id, err := hub.Join(ctx, b, channel, 0)
		if err != nil {
			log.Warn().Err(err).Str("module", "engine.memory").Str("bot", b.name).Msg("Bot failed to join")
			return
		}
		log.Debug().Str("module", "engine.memory").Str("bot", b.name).Str("peer_id", id.String()).Msg("Bot joined")
		bots = append(bots, b)
	}
	<-ctx.Done()
}
