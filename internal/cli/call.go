package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	assethttp "github.com/Wyydra/looper/internal/adapter/driven/asset/http"
	"github.com/Wyydra/looper/internal/adapter/driven/engine/memory"
	wsengine "github.com/Wyydra/looper/internal/adapter/driven/engine/ws"
	"github.com/Wyydra/looper/internal/adapter/driven/permission"
	"github.com/Wyydra/looper/internal/adapter/driving/tui"
	"github.com/Wyydra/looper/internal/config"
	"github.com/Wyydra/looper/internal/core/port"
	"github.com/Wyydra/looper/internal/core/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const botInterval = 2 * time.Second

func newCallCmd(v *viper.Viper, load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Open the call screen",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateCall(); err != nil {
				return err
			}
			return runCall(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.String("app-id", "", "engine app identifier")
	f.String("channel", "looper", "channel to join")
	f.String("token", "", "channel join token")
	f.String("engine", config.EngineWS, "engine implementation (memory, ws)")
	f.String("rendezvous-url", "ws://localhost:8080/ws", "rendezvous websocket url for the ws engine")
	f.Int("bots", 0, "demo peers joining the channel (memory engine only)")
	f.String("permissions", "device", "permission check (device, grant)")
	f.String("log-file", "looper.log", "file receiving logs while the screen is open")

	bindFlag(v, "app_id", cmd, "app-id")
	bindFlag(v, "channel", cmd, "channel")
	bindFlag(v, "token", cmd, "token")
	bindFlag(v, "engine.kind", cmd, "engine")
	bindFlag(v, "engine.rendezvous_url", cmd, "rendezvous-url")
	bindFlag(v, "engine.bots", cmd, "bots")
	bindFlag(v, "permissions.mode", cmd, "permissions")
	bindFlag(v, "log.file", cmd, "log-file")
	return cmd
}

func runCall(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logFile, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	if err := setupLogging(cfg.Log, logFile, false); err != nil {
		return err
	}

	mode, err := permission.ParseMode(cfg.Permissions.Mode)
	if err != nil {
		return err
	}
	assets, err := assethttp.NewProvider(cfg.Watermark.CacheDir, &http.Client{Timeout: cfg.Engine.OpTimeout})
	if err != nil {
		return err
	}

	var engines port.EngineFactory
	switch cfg.Engine.Kind {
	case config.EngineMemory:
		hub := service.NewChannelHub()
		go hub.Run()
		defer hub.Stop()
		if cfg.Engine.Bots > 0 {
			go memory.RunBots(ctx, hub, cfg.Channel, cfg.Engine.Bots, botInterval)
		}
		engines = memory.NewFactory(hub)
	default:
		engines = wsengine.NewFactory(cfg.Engine.RendezvousURL)
	}

	ctrl, err := service.NewSessionController(ctx, service.SessionDeps{
		Engines:     engines,
		Permissions: permission.NewGate(mode),
		Assets:      assets,
	}, service.SessionConfig{
		AppID:        cfg.AppID,
		Channel:      cfg.Channel,
		Token:        cfg.Token,
		WatermarkURL: cfg.Watermark.URL,
		Placement:    cfg.Watermark.Placement,
		OpTimeout:    cfg.Engine.OpTimeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close session")
		}
	}()

	log.Info().Str("channel", cfg.Channel).Str("engine", cfg.Engine.Kind).Msg("Call screen starting")
	return tui.New(ctrl, cfg.Engine.OpTimeout).Run(ctx)
}
