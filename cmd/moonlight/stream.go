package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nimbusdeck/moonlight-go/internal/httpapi"
	"github.com/nimbusdeck/moonlight-go/internal/logging"
	"github.com/spf13/cobra"
)

var streamCmd = &cobra.Command{
	Use:   "stream <host-id> <app-id>",
	Short: "Launch an app on a paired host and serve it to browser viewers",
	Long: `stream launches app-id on host-id, brings up the engine session and
WebRTC bridge for it, and then serves the same control plane and signalling
endpoint as serve so browser clients can attach to the running stream.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		hostID, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid host id %q: %w", args[0], err)
		}
		appID, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid app id %q: %w", args[1], err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		srv, err := httpapi.New(cfg)
		if err != nil {
			return fmt.Errorf("build control plane: %w", err)
		}

		if err := srv.StartStream(context.Background(), uint32(hostID), uint32(appID)); err != nil {
			return fmt.Errorf("start stream: %w", err)
		}

		log := logging.L("main")
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info("streaming", "listen", cfg.ListenAddr, "hostId", hostID, "appId", appID)
		return srv.Run(ctx)
	},
}
