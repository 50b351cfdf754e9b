// Command moonlight pairs with a GameStream/Sunshine host, launches apps on
// it, and re-exposes an active stream to browser clients over WebRTC.
package main

import (
	"fmt"
	"os"

	"github.com/nimbusdeck/moonlight-go/internal/config"
	"github.com/nimbusdeck/moonlight-go/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "moonlight",
	Short: "Moonlight/Sunshine client with a WebRTC viewer bridge",
	Long: `moonlight pairs with a GameStream/Sunshine host, launches an app on
it, and re-exposes the resulting audio/video stream to browser clients over
WebRTC, with input shuttled back from exactly one controlling viewer.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.moonlight-go/config.yaml)")

	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("moonlight v%s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads cfgFile (or the default path) and wires up structured
// logging from its log_level/log_format fields before returning it.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			defaultPath := home + "/.moonlight-go/config.yaml"
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				path = defaultPath
			}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	return cfg, nil
}
