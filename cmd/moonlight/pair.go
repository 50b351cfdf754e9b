package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nimbusdeck/moonlight-go/internal/httpapi"
	"github.com/spf13/cobra"
)

var (
	pairHTTPPort   int
	pairHTTPSPort  int
	pairDeviceName string
)

var pairCmd = &cobra.Command{
	Use:   "pair <hostname> <pin>",
	Short: "Pair with a GameStream/Sunshine host",
	Long: `pair sends the PIN displayed on the host's pairing screen back to
it and, on success, persists the resulting client/server certificate pair so
later commands can talk to the host without pairing again.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		srv, err := httpapi.New(cfg)
		if err != nil {
			return fmt.Errorf("build control plane: %w", err)
		}

		host, err := srv.Pair(context.Background(), args[0], pairHTTPPort, pairHTTPSPort, args[1], pairDeviceName)
		if err != nil {
			return fmt.Errorf("pair: %w", err)
		}

		fmt.Fprintf(os.Stdout, "paired with %s (host id %d)\n", host.Address.Hostname, host.ID)
		return nil
	},
}

func init() {
	pairCmd.Flags().IntVar(&pairHTTPPort, "http-port", 0, "host HTTP port (default 47989)")
	pairCmd.Flags().IntVar(&pairHTTPSPort, "https-port", 0, "host HTTPS port (default 47984)")
	pairCmd.Flags().StringVar(&pairDeviceName, "device-name", "", "device name to advertise (default from config)")
}
