// Package webrtcbridge re-exposes a single active Moonlight streaming
// session to any number of browser viewers over WebRTC: one shared video
// and audio track fed from the engine's decode callbacks, and per-viewer
// data channels carrying mouse/keyboard/controller input, of which only the
// input from whichever viewer currently holds control is forwarded.
package webrtcbridge

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"

	"github.com/nimbusdeck/moonlight-go/internal/config"
	"github.com/nimbusdeck/moonlight-go/internal/logging"
)

var log = logging.L("webrtcbridge")

// Codec is the video codec negotiated for a bridged stream, in the
// spec's preference order.
type Codec int

const (
	CodecAV1 Codec = iota
	CodecH265
	CodecH264
)

func (c Codec) mimeType() string {
	switch c {
	case CodecAV1:
		return webrtc.MimeTypeAV1
	case CodecH265:
		return webrtc.MimeTypeH265
	default:
		return webrtc.MimeTypeH264
	}
}

// rtpmapName is the mimeType without its "video/" prefix, the form rtpmap
// attributes in an SDP use (e.g. "H264" rather than "video/H264").
func (c Codec) rtpmapName() string {
	return strings.TrimPrefix(c.mimeType(), "video/")
}

// InputDispatcher receives decoded input events from the data channels of
// the viewer holding control. The Bridge parses wire bytes and drops input
// from spectators (via its peerRegistry); translation into engine calls
// lives one layer up, in whatever owns both the Bridge and the
// internal/session.Session.
type InputDispatcher interface {
	MouseMove(dx, dy int16)
	MouseButton(pressed bool, button uint8)
	MousePosition(x, y, refW, refH uint16)
	MouseScroll(dy int16)
	KeyEvent(pressed bool, modifiers uint8, keycode uint16)
	Text(utf8 string)
	ControllerFrame(data []byte)
}

// Bridge owns the API/MediaEngine shared by every peer connection and the
// viewer registry gating input.
type Bridge struct {
	api     *webrtc.API
	iceCfg  webrtc.Configuration
	settingEngine webrtc.SettingEngine

	registry *peerRegistry
	input    InputDispatcher

	mu        sync.RWMutex
	sessions  map[string]*Session
	videoCodec Codec

	onPLI func()
}

// New builds a Bridge from the application config's ICE/port/codec settings.
func New(cfg *config.Config, videoCodec Codec, input InputDispatcher) (*Bridge, error) {
	servers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		servers = append(servers, webrtc.ICEServer{URLs: s.URLs, Username: s.Username, Credential: s.Credential})
	}

	me := &webrtc.MediaEngine{}
	if err := registerCodec(me, videoCodec); err != nil {
		return nil, fmt.Errorf("webrtcbridge: register video codec: %w", err)
	}
	if err := me.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		PayloadType:        111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("webrtcbridge: register opus: %w", err)
	}

	ir := &interceptor.Registry{}
	pliFactory, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		return nil, fmt.Errorf("webrtcbridge: build PLI interceptor: %w", err)
	}
	ir.Add(pliFactory)
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return nil, fmt.Errorf("webrtcbridge: register default interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	if cfg.UDPPortRangeMin != 0 && cfg.UDPPortRangeMax != 0 {
		if err := se.SetEphemeralUDPPortRange(cfg.UDPPortRangeMin, cfg.UDPPortRangeMax); err != nil {
			return nil, fmt.Errorf("webrtcbridge: set UDP port range: %w", err)
		}
	}
	if len(cfg.NAT1to1IPs) > 0 {
		candType := webrtc.ICECandidateTypeHost
		if cfg.NAT1to1CandidateType == "srflx" {
			candType = webrtc.ICECandidateTypeSrflx
		}
		se.SetNAT1To1IPs(cfg.NAT1to1IPs, candType)
	}
	if len(cfg.NetworkTypes) > 0 {
		var types []webrtc.NetworkType
		for _, t := range cfg.NetworkTypes {
			nt, err := networkTypeFromName(t)
			if err != nil {
				return nil, fmt.Errorf("webrtcbridge: network type %q: %w", t, err)
			}
			types = append(types, nt)
		}
		se.SetNetworkTypes(types)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithInterceptorRegistry(ir), webrtc.WithSettingEngine(se))

	b := &Bridge{
		api:        api,
		iceCfg:     webrtc.Configuration{ICEServers: servers},
		registry:   newPeerRegistry(),
		input:      input,
		sessions:   make(map[string]*Session),
		videoCodec: videoCodec,
	}
	return b, nil
}

// networkTypeFromName maps config.Config.NetworkTypes' string entries onto
// webrtc.NetworkType constants; pion exposes no string parser for these.
func networkTypeFromName(name string) (webrtc.NetworkType, error) {
	switch name {
	case "udp4":
		return webrtc.NetworkTypeUDP4, nil
	case "udp6":
		return webrtc.NetworkTypeUDP6, nil
	case "tcp4":
		return webrtc.NetworkTypeTCP4, nil
	case "tcp6":
		return webrtc.NetworkTypeTCP6, nil
	default:
		return 0, fmt.Errorf("unknown network type %q", name)
	}
}

func registerCodec(me *webrtc.MediaEngine, codec Codec) error {
	switch codec {
	case CodecAV1:
		return me.RegisterCodec(webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeAV1, ClockRate: 90000},
			PayloadType:        97,
		}, webrtc.RTPCodecTypeVideo)
	case CodecH265:
		return me.RegisterCodec(webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH265, ClockRate: 90000},
			PayloadType:        98,
		}, webrtc.RTPCodecTypeVideo)
	default:
		return me.RegisterCodec(webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeH264,
				ClockRate:   90000,
				SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
			},
			PayloadType: 96,
		}, webrtc.RTPCodecTypeVideo)
	}
}

// OnPLI installs a callback invoked whenever any viewer's connection sends a
// PLI/FIR, so the caller can forward an IDR request to the streaming engine.
func (b *Bridge) OnPLI(fn func()) { b.onPLI = fn }

// Registry exposes the viewer registry for an owning httpapi handler to
// register joins/leaves and controller claims against.
func (b *Bridge) Registry() *peerRegistry { return b.registry }

// WriteVideo forwards one pre-packetized RTP packet (from internal/nal's
// Payloader) to every connected viewer's video track.
func (b *Bridge) WriteVideo(pkt *rtp.Packet) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.sessions {
		s.writeVideo(pkt)
	}
}

// WriteAudio forwards one Opus RTP packet to every connected viewer's audio
// track.
func (b *Bridge) WriteAudio(pkt *rtp.Packet) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.sessions {
		s.writeAudio(pkt)
	}
}

// Session is one browser viewer's PeerConnection plus its media tracks and
// input data channels.
type Session struct {
	bridge *Bridge
	peerID string
	pc     *webrtc.PeerConnection

	videoTrack *webrtc.TrackLocalStaticRTP
	audioTrack *webrtc.TrackLocalStaticRTP

	offerMu    sync.Mutex
	generation atomic.Uint64
}

// NewSession creates a peer connection for a new viewer, wires its media
// tracks, registers it as a spectator, and installs the mouse/keyboard/
// controller data channel handlers.
func (b *Bridge) NewSession() (*Session, error) {
	pc, err := b.api.NewPeerConnection(b.iceCfg)
	if err != nil {
		return nil, fmt.Errorf("webrtcbridge: create peer connection: %w", err)
	}

	peer := b.registry.AddSpectator()

	s := &Session{bridge: b, peerID: peer.ID, pc: pc}

	videoTrack, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: b.videoCodec.mimeType(), ClockRate: 90000}, "video", "moonlight-go")
	if err != nil {
		return nil, fmt.Errorf("webrtcbridge: create video track: %w", err)
	}
	if _, err := pc.AddTrack(videoTrack); err != nil {
		return nil, fmt.Errorf("webrtcbridge: add video track: %w", err)
	}
	s.videoTrack = videoTrack

	audioTrack, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, "audio", "moonlight-go")
	if err != nil {
		return nil, fmt.Errorf("webrtcbridge: create audio track: %w", err)
	}
	if _, err := pc.AddTrack(audioTrack); err != nil {
		return nil, fmt.Errorf("webrtcbridge: add audio track: %w", err)
	}
	s.audioTrack = audioTrack

	s.setupDataChannels()
	s.setupPLIHandler()

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Info("peer connection state changed", "peer", peer.ID, "state", state.String())
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			b.removeSession(peer.ID)
		}
	})

	b.mu.Lock()
	b.sessions[peer.ID] = s
	b.mu.Unlock()

	return s, nil
}

func (b *Bridge) removeSession(peerID string) {
	b.mu.Lock()
	s, ok := b.sessions[peerID]
	delete(b.sessions, peerID)
	b.mu.Unlock()
	if ok {
		s.pc.Close()
	}
	b.registry.RemovePeer(peerID)
}

// PeerID identifies this viewer within the bridge's registry.
func (s *Session) PeerID() string { return s.peerID }

func (s *Session) writeVideo(pkt *rtp.Packet) {
	if err := s.videoTrack.WriteRTP(pkt); err != nil {
		log.Warn("write video RTP failed", "peer", s.peerID, logging.KeyError, err)
	}
}

func (s *Session) writeAudio(pkt *rtp.Packet) {
	if err := s.audioTrack.WriteRTP(pkt); err != nil {
		log.Warn("write audio RTP failed", "peer", s.peerID, logging.KeyError, err)
	}
}

// setupPLIHandler drains RTCP from both tracks' senders, forwarding any
// PictureLossIndication/FullIntraRequest to the bridge's registered callback.
func (s *Session) setupPLIHandler() {
	for _, sender := range s.pc.GetSenders() {
		go s.drainRTCP(sender)
	}
}

func (s *Session) drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		n, _, err := sender.Read(buf)
		if err != nil {
			return
		}
		packets, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			continue
		}
		for _, p := range packets {
			switch p.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				if s.bridge.onPLI != nil {
					s.bridge.onPLI()
				}
			}
		}
	}
}

// HandleOffer sets the browser's offer as the remote description and
// returns an answer once ICE gathering completes. Rejected up front if the
// offer's video section doesn't list the bridge's configured codec, since
// letting pion negotiate down to nothing produces a confusing track-less
// answer instead of a clear error.
func (s *Session) HandleOffer(offerSDP string) (string, error) {
	if err := s.checkVideoCodecOffered(offerSDP); err != nil {
		return "", err
	}

	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}); err != nil {
		return "", fmt.Errorf("webrtcbridge: set remote description: %w", err)
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("webrtcbridge: create answer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("webrtcbridge: set local description: %w", err)
	}
	<-gatherComplete

	return s.pc.LocalDescription().SDP, nil
}

// SendOffer generates and signals a new offer — used for renegotiation when
// a track becomes available after the initial handshake (e.g. audio once
// AudioDecoder.setup fires). Concurrent calls serialize through offerMu,
// and each call advances the session's generation counter; HandleAnswer
// rejects an answer carrying any generation other than the latest.
func (s *Session) SendOffer() (string, error) {
	s.offerMu.Lock()
	defer s.offerMu.Unlock()

	gen := s.generation.Add(1)

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("webrtcbridge: create offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("webrtcbridge: set local description: %w", err)
	}
	<-gatherComplete

	if s.generation.Load() != gen {
		return "", fmt.Errorf("webrtcbridge: renegotiation superseded")
	}
	return s.pc.LocalDescription().SDP, nil
}

// HandleAnswer applies a browser's answer to an offer produced by
// SendOffer. Ignored if a newer SendOffer has since started.
func (s *Session) HandleAnswer(answerSDP string, generation uint64) error {
	if s.generation.Load() != generation {
		return fmt.Errorf("webrtcbridge: stale answer for generation %d (current %d)", generation, s.generation.Load())
	}
	return s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answerSDP})
}

// checkVideoCodecOffered parses the offer's video media section and
// confirms at least one rtpmap line names this bridge's configured codec.
// A browser that never registered that codec (e.g. a Safari client offered
// an AV1-configured bridge) gets a clear error instead of a silent
// video-less negotiation.
func (s *Session) checkVideoCodecOffered(offerSDP string) error {
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(offerSDP)); err != nil {
		return fmt.Errorf("webrtcbridge: parse offer: %w", err)
	}

	want := strings.ToUpper(s.bridge.videoCodec.rtpmapName())
	for _, media := range parsed.MediaDescriptions {
		if media.MediaName.Media != "video" {
			continue
		}
		for _, attr := range media.Attributes {
			if attr.Key != "rtpmap" {
				continue
			}
			if fields := strings.Fields(attr.Value); len(fields) == 2 {
				encoding := strings.SplitN(fields[1], "/", 2)[0]
				if strings.ToUpper(encoding) == want {
					return nil
				}
			}
		}
	}

	return fmt.Errorf("webrtcbridge: offer does not include the configured video codec %s", want)
}

// AddICECandidate forwards one trickled ICE candidate from the browser.
func (s *Session) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return s.pc.AddICECandidate(candidate)
}

// OnICECandidate registers a callback for locally-gathered candidates that
// must be signalled back to the browser.
func (s *Session) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	s.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			fn(c.ToJSON())
		}
	})
}

// Close tears down the peer connection and releases the viewer slot.
func (s *Session) Close() error {
	s.bridge.removeSession(s.peerID)
	return nil
}
