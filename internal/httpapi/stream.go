package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"

	"github.com/nimbusdeck/moonlight-go/internal/moonlightcore/limelight"
	"github.com/nimbusdeck/moonlight-go/internal/protocol"
	"github.com/nimbusdeck/moonlight-go/internal/session"
	"github.com/nimbusdeck/moonlight-go/internal/store"
	"github.com/nimbusdeck/moonlight-go/internal/sunshine"
	"github.com/nimbusdeck/moonlight-go/internal/webrtcbridge"
)

func certToPEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

// pairedClientFor rebuilds a sunshine.Client for an already-paired host,
// pinning its HTTPS transport to the persisted server certificate. Any host
// missing the full ClientCert/ClientKey/ServerCert triple fails the
// NotPaired invariant before a request ever leaves this process.
func (s *Server) pairedClientFor(host store.Host) (*sunshine.Client, error) {
	if !host.Paired() {
		return nil, &sunshine.Error{Kind: sunshine.KindNotPaired, Message: "host is not paired"}
	}

	id, err := sunshine.LoadOrCreateIdentity(s.cfg.StoreDirOrDefault())
	if err != nil {
		return nil, err
	}
	client := sunshine.NewClient(host.Address.Hostname, host.Address.HTTPPort, host.Address.HTTPSPort, id)

	block, _ := pem.Decode([]byte(host.ServerCertPEM))
	if block == nil {
		return nil, sunshine.NewNotSupportedOnHost("corrupt persisted server certificate")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	if err := client.PinServerCertificate(cert); err != nil {
		return nil, err
	}
	return client, nil
}

type streamStartRequest struct {
	HostID uint32 `json:"host_id"`
	AppID  uint32 `json:"app_id"`
}

// handleStreamStart launches an app on the host (always through launch; an
// already running app is not resumed) and brings up the engine session plus a fresh
// webrtcbridge.Bridge for browser viewers to attach to. Rejected outright
// if a stream is already active, since internal/session enforces at most
// one engine client per process.
func (s *Server) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	var req streamStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if s.findHost(req.HostID) == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown host"})
		return
	}

	if err := s.StartStream(r.Context(), req.HostID, req.AppID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// StartStream launches appID on hostID and brings up the engine session plus
// a fresh webrtcbridge.Bridge for browser viewers to attach to. Exported so
// cmd/moonlight's stream subcommand can launch a stream without a loopback
// HTTP round trip to its own server.
func (s *Server) StartStream(ctx context.Context, hostID, appID uint32) error {
	s.mu.Lock()
	if s.stream != nil {
		s.mu.Unlock()
		return sunshine.NewConnectionAlreadyExists()
	}
	s.mu.Unlock()

	host := s.findHost(hostID)
	if host == nil {
		return fmt.Errorf("httpapi: unknown host %d", hostID)
	}

	client, err := s.pairedClientFor(*host)
	if err != nil {
		return err
	}

	info, err := client.ServerInfo(ctx)
	if err != nil {
		return err
	}

	riKey := make([]byte, 16)
	if _, err := rand.Read(riKey); err != nil {
		return err
	}
	var riKeyFixed [16]byte
	copy(riKeyFixed[:], riKey)

	_, err = client.Launch(ctx, sunshine.LaunchConfig{
		AppID:       appID,
		Width:       s.cfg.Stream.Width,
		Height:      s.cfg.Stream.Height,
		FPS:         s.cfg.Stream.FPS,
		BitrateKbps: s.cfg.Stream.BitrateKbps,
		RIKey:       riKeyFixed,
		LocalAudio:  false,
	})
	if err != nil {
		return err
	}

	sess, err := session.New()
	if err != nil {
		return err
	}

	videoCodec := negotiateVideoCodec(s.cfg.Stream.Codec, info.ServerCodecModeSupport)
	dispatcher := &sessionInputDispatcher{sess: sess}
	bridge, err := webrtcbridge.New(s.cfg, videoCodec, dispatcher)
	if err != nil {
		sess.Release()
		return err
	}

	videoDecoder := &bridgeStreamer{bridge: bridge}
	bridge.OnPLI(func() { sess.RequestIDR() })

	runCtx, cancel := context.WithCancel(context.Background())
	cfg := session.Config{
		ServerInfo: limelight.ServerInformation{
			Address:                host.Address.Hostname,
			ServerInfoAppVersion:   info.AppVersion,
			ServerCodecModeSupport: info.ServerCodecModeSupport,
		},
		StreamConfig: limelight.StreamConfiguration{
			Width:             s.cfg.Stream.Width,
			Height:            s.cfg.Stream.Height,
			FPS:               s.cfg.Stream.FPS,
			Bitrate:           s.cfg.Stream.BitrateKbps,
			RemoteInputAesKey: riKey,
		},
		VideoDecoder: videoDecoder,
		AudioDecoder: (*audioAdapter)(videoDecoder),
		Listener:     &lifecycleLogger{},
	}

	if err := sess.Start(runCtx, cfg); err != nil {
		cancel()
		sess.Release()
		return err
	}

	s.mu.Lock()
	s.stream = &activeStream{sess: sess, bridge: bridge, cancel: cancel, hostAddr: host.Address, dispatcher: dispatcher}
	s.mu.Unlock()

	return nil
}

func (s *Server) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	s.stopStream()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) stopStream() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream == nil {
		return
	}
	stream.cancel()
	stream.sess.Release()
}

func codecFromName(name string) webrtcbridge.Codec {
	switch name {
	case "av1":
		return webrtcbridge.CodecAV1
	case "h265", "hevc":
		return webrtcbridge.CodecH265
	default:
		return webrtcbridge.CodecH264
	}
}

// negotiateVideoCodec honors the configured codec preference only if the
// host's serverinfo actually advertises support for it, falling back to
// H.264 (which every GameStream/Sunshine host supports) otherwise.
func negotiateVideoCodec(preferred string, serverCodecModeSupport uint32) webrtcbridge.Codec {
	codec := codecFromName(preferred)

	var required int
	switch codec {
	case webrtcbridge.CodecAV1:
		required = protocol.SCMAV1Main8
	case webrtcbridge.CodecH265:
		required = protocol.SCMHEVC
	default:
		return webrtcbridge.CodecH264
	}

	if protocol.SupportsCodec(serverCodecModeSupport, required) {
		return codec
	}

	log.Warn("host does not advertise support for the configured codec, falling back to H.264",
		"configured", preferred)
	return webrtcbridge.CodecH264
}
