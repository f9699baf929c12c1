package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"

	"github.com/boardsync/relay/config"
	"github.com/boardsync/relay/src/auth"
	"github.com/boardsync/relay/src/crdt"
	"github.com/boardsync/relay/src/hub"
	"github.com/boardsync/relay/src/metrics"
	"github.com/boardsync/relay/src/service"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:          "relay",
		Short:        "Realtime collaboration relay server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the relay server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the relay version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println("relay " + version)
			},
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("fatal configuration error")
		return err
	}

	m := metrics.New()
	h := hub.New(crdt.NewLogEngine(), logger, m)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	svc, err := service.New(h, verifier, cfg, m, logger, version)
	if err != nil {
		logger.Error().Err(err).Msg("service init failed")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.NewReaper(h, cfg.SweepInterval, cfg.RoomTimeout, logger).Run(ctx)

	srv := &fasthttp.Server{
		Handler: svc.Handler(),
		Name:    "boardsync-relay",
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Addr())
	}()
	logger.Info().
		Int("port", cfg.Port).
		Str("env", cfg.Environment).
		Str("room_prefix", cfg.RoomPrefix).
		Msg("relay listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("listener failed")
			return err
		}
		return nil
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	cancel()
	h.CloseAll(websocket.CloseGoingAway, "Server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced exit after grace period")
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
