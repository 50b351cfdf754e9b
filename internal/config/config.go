// Package config loads the on-disk YAML configuration for the moonlight
// client and WebRTC bridge.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StreamSettings holds default streaming quality settings sent to the host
// at launch/resume time.
type StreamSettings struct {
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	FPS           int    `yaml:"fps"`
	BitrateKbps   int    `yaml:"bitrate_kbps"`
	Codec         string `yaml:"codec"` // "h264", "h265", "av1"
	AudioChannels int    `yaml:"audio_channels"`
}

// ICEServer mirrors webrtc.ICEServer in YAML form.
type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// Config is the top-level configuration document.
type Config struct {
	// ListenAddr is the address the signalling HTTP server binds to.
	ListenAddr string `yaml:"listen_addr"`

	// DeviceName is advertised to the host as this client's display name
	// and folded into the persisted client identity.
	DeviceName string `yaml:"device_name"`

	// StoreDir is the base directory for the client cert/key and the
	// versioned host store. Defaults to "~/.moonlight-go".
	StoreDir string `yaml:"store_dir"`

	// LogLevel is "debug", "info", "warn", or "error".
	LogLevel string `yaml:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format"`

	ICEServers []ICEServer `yaml:"ice_servers"`

	// UDPPortRangeMin/Max bound the ephemeral ICE candidate port range.
	UDPPortRangeMin uint16 `yaml:"udp_port_range_min"`
	UDPPortRangeMax uint16 `yaml:"udp_port_range_max"`

	// NAT1to1IPs maps a public IP onto srflx ICE candidates for hosts behind
	// static 1:1 NAT (cloud VMs with an EIP, most commonly).
	NAT1to1IPs []string `yaml:"nat_1to1_ips"`
	// NAT1to1CandidateType is "host" or "srflx"; see webrtc.ICECandidateType.
	NAT1to1CandidateType string `yaml:"nat_1to1_candidate_type"`

	// NetworkTypes restricts ICE candidate gathering, e.g. ["udp4"]. Empty
	// means no restriction.
	NetworkTypes []string `yaml:"network_types"`

	Stream StreamSettings `yaml:"stream"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		DeviceName: "moonlight-go",
		LogLevel:   "info",
		LogFormat:  "text",
		ICEServers: []ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
		UDPPortRangeMin: 50000,
		UDPPortRangeMax: 50100,
		Stream: StreamSettings{
			Width:         1920,
			Height:        1080,
			FPS:           60,
			BitrateKbps:   20000,
			Codec:         "h264",
			AudioChannels: 2,
		},
	}
}

// Load reads a YAML config file over Default(): fields the file omits keep
// their default, while a field the file sets explicitly (even to a zero
// value) takes the file's value. Returns Default() untouched if path is
// empty or the file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// StoreDirOrDefault resolves StoreDir, expanding "~" and falling back to
// $HOME/.moonlight-go.
func (c *Config) StoreDirOrDefault() string {
	if c.StoreDir != "" {
		if c.StoreDir == "~" || (len(c.StoreDir) > 1 && c.StoreDir[:2] == "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				return home + c.StoreDir[1:]
			}
		}
		return c.StoreDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".moonlight-go"
	}
	return home + "/.moonlight-go"
}
