package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handler "github.com/Wyydra/looper/internal/adapter/driving/http"
	"github.com/Wyydra/looper/internal/config"
	"github.com/Wyydra/looper/internal/core/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newRendezvousCmd(v *viper.Viper, load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rendezvous",
		Short: "Run the channel rendezvous server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := setupLogging(cfg.Log, os.Stderr, true); err != nil {
				return err
			}
			return runRendezvous(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	bindFlag(v, "rendezvous.addr", cmd, "addr")
	return cmd
}

func runRendezvous(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := service.NewChannelHub()
	h := handler.NewHandler(hub, cfg.Rendezvous.ReadLimit)
	srv := &http.Server{
		Addr:    cfg.Rendezvous.Addr,
		Handler: h.NewRouter(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run()
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Starting rendezvous server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		hub.Stop()
		return err
	})

	err := g.Wait()
	log.Info().Msg("Server exited")
	return err
}
