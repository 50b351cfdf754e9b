package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nimbusdeck/moonlight-go/internal/logging"
	"github.com/nimbusdeck/moonlight-go/internal/store"
	"github.com/nimbusdeck/moonlight-go/internal/sunshine"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var se *sunshine.Error
	if errors.As(err, &se) {
		switch se.Kind {
		case sunshine.KindNotPaired, sunshine.KindPairingAuthFailed:
			status = http.StatusUnauthorized
		case sunshine.KindHostRejected:
			status = http.StatusBadGateway
		case sunshine.KindNotSupportedOnHost:
			status = http.StatusNotImplemented
		case sunshine.KindConnectionAlreadyExists, sunshine.KindInstanceAlreadyExists:
			status = http.StatusConflict
		case sunshine.KindNetwork, sunshine.KindTransport:
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleListHosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Hosts())
}

// Hosts returns every known host, paired or not. Exported for cmd/moonlight.
func (s *Server) Hosts() []store.Host {
	return s.store.ListHosts()
}

func (s *Server) handleDeleteHost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid host id"})
		return
	}
	if err := s.store.DeleteHost(uint32(id)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type pairRequest struct {
	Hostname   string `json:"hostname"`
	HTTPPort   int    `json:"http_port"`
	HTTPSPort  int    `json:"https_port"`
	PIN        string `json:"pin"`
	DeviceName string `json:"device_name"`
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	host, err := s.Pair(r.Context(), req.Hostname, req.HTTPPort, req.HTTPSPort, req.PIN, req.DeviceName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, host)
}

// Pair pairs with a host at hostname (default GameStream ports unless
// httpPort/httpsPort override them) and persists the resulting client/server
// certificate pair. Exported so cmd/moonlight's pair subcommand can pair
// without going through its own loopback HTTP server.
func (s *Server) Pair(ctx context.Context, hostname string, httpPort, httpsPort int, pin, deviceName string) (store.Host, error) {
	addr := store.DefaultHostAddress(hostname)
	if httpPort != 0 {
		addr.HTTPPort = httpPort
	}
	if httpsPort != 0 {
		addr.HTTPSPort = httpsPort
	}
	if deviceName == "" {
		deviceName = s.cfg.DeviceName
	}

	client, id, err := s.clientFor(addr)
	if err != nil {
		return store.Host{}, err
	}

	serverCert, err := client.Pair(ctx, pin, deviceName)
	if err != nil {
		return store.Host{}, err
	}

	host := store.Host{
		Address:       addr,
		ClientCertPEM: string(id.CertPEM()),
		ServerCertPEM: string(certToPEM(serverCert)),
	}
	host, err = s.store.PutHost(host)
	if err != nil {
		return store.Host{}, err
	}
	if err := s.store.Save(); err != nil {
		log.Warn("save store after pairing failed", logging.KeyError, err)
	}

	return host, nil
}

func (s *Server) handleAppList(w http.ResponseWriter, r *http.Request) {
	hostID, err := strconv.ParseUint(r.URL.Query().Get("host_id"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing or invalid host_id"})
		return
	}

	apps, err := s.Apps(r.Context(), uint32(hostID))
	if err != nil {
		if err == errUnknownHost {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown host"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

var errUnknownHost = errors.New("httpapi: unknown host")

// Apps lists the apps installed on an already-paired host. Exported for
// cmd/moonlight's apps subcommand.
func (s *Server) Apps(ctx context.Context, hostID uint32) ([]sunshine.App, error) {
	host := s.findHost(hostID)
	if host == nil {
		return nil, errUnknownHost
	}

	client, err := s.pairedClientFor(*host)
	if err != nil {
		return nil, err
	}

	return client.AppList(ctx)
}

func (s *Server) findHost(id uint32) *store.Host {
	for _, h := range s.store.ListHosts() {
		if h.ID == id {
			return &h
		}
	}
	return nil
}

func (s *Server) handleStreamStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	active := s.stream != nil
	var peerCount int
	if active {
		peerCount = s.stream.bridge.Registry().Count()
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":  active,
		"viewers": peerCount,
	})
}
