package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/nimbusdeck/moonlight-go/internal/httpapi"
	"github.com/nimbusdeck/moonlight-go/internal/logging"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pairing/stream control plane and WebRTC signalling server",
	Long: `serve brings up the HTTP control plane (host pairing, app listing,
stream start/stop) and the WebSocket signalling endpoint browser clients use
to negotiate a WebRTC session, without launching a stream itself. Use the
browser UI or the stream subcommand to start one once serve is running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		srv, err := httpapi.New(cfg)
		if err != nil {
			return fmt.Errorf("build control plane: %w", err)
		}

		log := logging.L("main")
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info("serving", "listen", cfg.ListenAddr)
		return srv.Run(ctx)
	},
}
