// Package store persists paired hosts and their credentials to a versioned
// JSON envelope on disk, migrating forward from older on-disk shapes.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nimbusdeck/moonlight-go/internal/logging"
)

var log = logging.L("store")

// CurrentVersion is the envelope version written by this module.
const CurrentVersion = "2"

// HostAddress is a hostname/IP plus the control-plane ports.
type HostAddress struct {
	Hostname  string `json:"hostname"`
	HTTPPort  int    `json:"http_port"`
	HTTPSPort int    `json:"https_port"`
}

// DefaultHostAddress fills in the standard Sunshine/GameStream ports.
func DefaultHostAddress(hostname string) HostAddress {
	return HostAddress{Hostname: hostname, HTTPPort: 47989, HTTPSPort: 47984}
}

// ServerInfo is the parsed payload of the host's serverinfo response,
// cached so callers can show host state without a round trip.
type ServerInfo struct {
	AppVersion            string   `json:"appversion"`
	GfeVersion             string   `json:"gfeversion"`
	UniqueID              string   `json:"uniqueid"`
	MAC                   string   `json:"mac"`
	CurrentGame           int      `json:"current_game"`
	State                 string   `json:"state"`
	PairStatus            int      `json:"pair_status"`
	ServerCodecModeSupport uint32  `json:"server_codec_mode_support"`
	MaxLumaPixelsHEVC     uint64   `json:"max_luma_pixels_hevc"`
	Hostname              string   `json:"hostname"`
	ExternalPort          int      `json:"external_port"`
	SupportedDisplayModes []string `json:"supported_display_modes"`
}

// Host is the persisted aggregate for a single paired (or not-yet-paired)
// remote machine. Per the spec's NotPaired invariant: operations requiring
// authentication must fail unless both ServerCert and ClientCert/ClientKey
// are present.
type Host struct {
	ID                uint32      `json:"id"`
	Address           HostAddress `json:"address"`
	ClientCertPEM     string      `json:"client_cert_pem,omitempty"`
	ClientKeyPEM      string      `json:"client_key_pem,omitempty"`
	ServerCertPEM     string      `json:"server_cert_pem,omitempty"`
	CachedServerInfo  *ServerInfo `json:"cached_server_info,omitempty"`
}

// Paired reports whether this host satisfies the NotPaired invariant.
func (h *Host) Paired() bool {
	return h != nil && h.ServerCertPEM != "" && h.ClientCertPEM != "" && h.ClientKeyPEM != ""
}

// User is a locally-known identity (multiple users may share this client's
// device identity but keep separate paired-host lists).
type User struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

// envelope is the on-disk V2 shape: {version, users, hosts}.
type envelope struct {
	Version string           `json:"version"`
	Users   map[string]User  `json:"users"`
	Hosts   map[string]Host  `json:"hosts"`
}

// envelopeV1 is the flat host-list shape this module migrates forward from.
type envelopeV1 struct {
	Hosts []Host `json:"hosts"`
}

// Store is a file-backed, mutex-guarded collection of paired hosts.
type Store struct {
	mu   sync.Mutex
	path string
	data envelope
}

// Open loads (or initializes) the store at dir/hosts.json, migrating an
// unversioned V1 document if one is found. Migration runs on load, never on
// save, per the module's versioning policy.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, "hosts.json")
	s := &Store{path: path, data: envelope{Version: CurrentVersion, Users: map[string]User{}, Hosts: map[string]Host{}}}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}

	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", path, err)
	}

	if probe.Version == "" {
		log.Warn("migrating unversioned host store to v2", logging.KeyComponent, "store")
		var v1 envelopeV1
		if err := json.Unmarshal(raw, &v1); err != nil {
			return nil, fmt.Errorf("store: parse v1 %s: %w", path, err)
		}
		for i, h := range v1.Hosts {
			h.ID = uint32(i + 1)
			s.data.Hosts[fmt.Sprint(h.ID)] = h
		}
		return s, nil
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("store: parse v2 %s: %w", path, err)
	}
	if s.data.Hosts == nil {
		s.data.Hosts = map[string]Host{}
	}
	if s.data.Users == nil {
		s.data.Users = map[string]User{}
	}
	return s, nil
}

// Save writes the current envelope to disk atomically (write-then-rename).
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	s.data.Version = CurrentVersion
	buf, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("store: rename %s: %w", s.path, err)
	}
	return nil
}

// PutHost inserts or updates a host, assigning an ID on first insert.
func (s *Store) PutHost(h Host) (Host, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == 0 {
		h.ID = s.nextHostIDLocked()
	}
	s.data.Hosts[fmt.Sprint(h.ID)] = h
	return h, s.saveLocked()
}

func (s *Store) nextHostIDLocked() uint32 {
	var max uint32
	for _, h := range s.data.Hosts {
		if h.ID > max {
			max = h.ID
		}
	}
	return max + 1
}

// GetHostByAddress returns the host matching the given hostname, if any.
func (s *Store) GetHostByAddress(hostname string) (Host, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.data.Hosts {
		if h.Address.Hostname == hostname {
			return h, true
		}
	}
	return Host{}, false
}

// ListHosts returns every known host.
func (s *Store) ListHosts() []Host {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Host, 0, len(s.data.Hosts))
	for _, h := range s.data.Hosts {
		out = append(out, h)
	}
	return out
}

// DeleteHost removes a host by ID.
func (s *Store) DeleteHost(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Hosts, fmt.Sprint(id))
	return s.saveLocked()
}
