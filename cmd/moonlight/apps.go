package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/nimbusdeck/moonlight-go/internal/httpapi"
	"github.com/spf13/cobra"
)

var appsCmd = &cobra.Command{
	Use:   "apps <host-id>",
	Short: "List the apps installed on a paired host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hostID, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid host id %q: %w", args[0], err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		srv, err := httpapi.New(cfg)
		if err != nil {
			return fmt.Errorf("build control plane: %w", err)
		}

		apps, err := srv.Apps(context.Background(), uint32(hostID))
		if err != nil {
			return fmt.Errorf("list apps: %w", err)
		}

		for _, app := range apps {
			fmt.Fprintf(os.Stdout, "%d\t%s\n", app.ID, app.Name)
		}
		return nil
	},
}
