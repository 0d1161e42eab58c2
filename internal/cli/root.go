package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/Wyydra/looper/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type loader func() (*config.Config, error)

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	v := config.NewViper()
	var cfgFile string

	root := &cobra.Command{
		Use:   "looper",
		Short: "Join a live video channel and manage the call",
		Long: `looper drives a video engine session: it joins a broadcast channel,
tracks the peers present in it and toggles an image watermark on the
outgoing video. The rendezvous subcommand runs the channel server that the
websocket engine connects to.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./looper.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	bindFlag(v, "log.level", root, "log-level")

	load := func() (*config.Config, error) {
		return config.Load(v, cfgFile)
	}
	root.AddCommand(newCallCmd(v, load), newRendezvousCmd(v, load))
	return root
}

func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(name)
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

// setupLogging points the global logger at w with the configured level.
func setupLogging(cfg config.LogConfig, w io.Writer, color bool) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	cw := zerolog.ConsoleWriter{Out: w, NoColor: !color}
	log.Logger = zerolog.New(cw).With().Timestamp().Caller().Logger()
	return nil
}
