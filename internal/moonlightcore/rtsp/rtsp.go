// Package rtsp drives the RTSP handshake that negotiates stream ports and
// encryption parameters with a GameStream/Sunshine host before the video,
// audio, and control UDP/TCP streams come up.
package rtsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPort is the RTSP port GameStream hosts listen on.
	DefaultPort = 48010
	// RequestTimeout bounds every RTSP round trip.
	RequestTimeout = 10 * time.Second
)

// streamIDs enumerates the three SETUP targets in handshake order.
var streamIDs = []string{"video", "audio", "control"}

// Handshaker drives the RTSP request/response exchange with one host.
type Handshaker struct {
	conn      net.Conn
	reader    *bufio.Reader
	cseq      int
	sessionID string
	host      string
	port      int
}

// Response is a parsed RTSP status line plus headers and body.
type Response struct {
	StatusCode int
	StatusText string
	Headers    map[string]string
	Body       string
}

// StreamPorts holds the server-side ports negotiated during SETUP.
type StreamPorts struct {
	VideoPort   int
	AudioPort   int
	ControlPort int
}

// NewHandshaker builds a Handshaker targeting host:port. A zero port falls
// back to DefaultPort.
func NewHandshaker(host string, port int) *Handshaker {
	if port == 0 {
		port = DefaultPort
	}
	return &Handshaker{host: host, port: port}
}

// Connect opens the underlying TCP connection.
func (h *Handshaker) Connect() error {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", h.host, h.port), RequestTimeout)
	if err != nil {
		return fmt.Errorf("rtsp: connect: %w", err)
	}
	h.conn = conn
	h.reader = bufio.NewReader(conn)
	return nil
}

// Close tears down the connection. Safe to call more than once.
func (h *Handshaker) Close() {
	if h.conn != nil {
		h.conn.Close()
		h.conn = nil
	}
}

// Announce performs the RTSP ANNOUNCE request carrying the client's SDP offer.
func (h *Handshaker) Announce(sdp string) (*Response, error) {
	return h.exchange("ANNOUNCE", "streamid=control",
		map[string]string{"Content-Type": "application/sdp"}, sdp)
}

// Describe performs the RTSP DESCRIBE request.
func (h *Handshaker) Describe() (*Response, error) {
	return h.exchange("DESCRIBE", "streamid=control",
		map[string]string{"Accept": "application/sdp"}, "")
}

// Setup performs one SETUP request per stream (video, audio, control) and
// returns the server-negotiated ports. The session ID the host hands back
// on the first SETUP is reused for every subsequent request.
func (h *Handshaker) Setup() (*StreamPorts, error) {
	ports := &StreamPorts{}
	for _, id := range streamIDs {
		resp, err := h.exchange("SETUP", "streamid="+id, nil, "")
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != 200 {
			return nil, fmt.Errorf("rtsp: SETUP %s failed: %d %s", id, resp.StatusCode, resp.StatusText)
		}
		if h.sessionID == "" {
			h.sessionID = resp.Headers["Session"]
		}

		port := parseServerPort(resp.Headers["Transport"])
		switch id {
		case "video":
			ports.VideoPort = port
		case "audio":
			ports.AudioPort = port
		case "control":
			ports.ControlPort = port
		}
	}
	return ports, nil
}

// Play performs the RTSP PLAY request that starts media flowing.
func (h *Handshaker) Play() (*Response, error) {
	return h.exchange("PLAY", "streamid=control", nil, "")
}

// Teardown performs the RTSP TEARDOWN request.
func (h *Handshaker) Teardown() (*Response, error) {
	return h.exchange("TEARDOWN", "streamid=control", nil, "")
}

// exchange sends one RTSP request and parses the response.
func (h *Handshaker) exchange(method, uri string, headers map[string]string, body string) (*Response, error) {
	if h.conn == nil {
		return nil, errors.New("rtsp: not connected")
	}
	h.cseq++

	var req strings.Builder
	fmt.Fprintf(&req, "%s rtsp://%s:%d/%s RTSP/1.0\r\n", method, h.host, h.port, uri)
	fmt.Fprintf(&req, "CSeq: %d\r\n", h.cseq)
	if h.sessionID != "" {
		fmt.Fprintf(&req, "Session: %s\r\n", h.sessionID)
	}
	for k, v := range headers {
		fmt.Fprintf(&req, "%s: %s\r\n", k, v)
	}
	if body != "" {
		fmt.Fprintf(&req, "Content-Length: %d\r\n", len(body))
	}
	req.WriteString("\r\n")
	req.WriteString(body)

	h.conn.SetDeadline(time.Now().Add(RequestTimeout))
	if _, err := h.conn.Write([]byte(req.String())); err != nil {
		return nil, fmt.Errorf("rtsp: send %s: %w", method, err)
	}
	return h.readResponse()
}

func (h *Handshaker) readResponse() (*Response, error) {
	resp := &Response{Headers: make(map[string]string)}

	statusLine, err := h.reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("rtsp: read status line: %w", err)
	}
	parts := strings.SplitN(strings.TrimSpace(statusLine), " ", 3)
	if len(parts) < 3 || !strings.HasPrefix(parts[0], "RTSP/") {
		return nil, fmt.Errorf("rtsp: malformed status line %q", statusLine)
	}
	resp.StatusCode, _ = strconv.Atoi(parts[1])
	resp.StatusText = parts[2]

	var contentLength int
	for {
		line, err := h.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("rtsp: read header: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if idx := strings.Index(line, ":"); idx > 0 {
			key := strings.TrimSpace(line[:idx])
			value := strings.TrimSpace(line[idx+1:])
			resp.Headers[key] = value
			if strings.EqualFold(key, "Content-Length") {
				contentLength, _ = strconv.Atoi(value)
			}
		}
	}

	if contentLength > 0 {
		body := make([]byte, contentLength)
		if _, err := io.ReadFull(h.reader, body); err != nil {
			return nil, fmt.Errorf("rtsp: read body: %w", err)
		}
		resp.Body = string(body)
	}
	return resp, nil
}

// parseServerPort extracts server_port from a Transport header such as
// "RTP/AVP/UDP;unicast;server_port=48000-48001".
func parseServerPort(transport string) int {
	for _, part := range strings.Split(transport, ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "server_port=") {
			continue
		}
		portStr := strings.TrimPrefix(part, "server_port=")
		if idx := strings.Index(portStr, "-"); idx > 0 {
			portStr = portStr[:idx]
		}
		port, _ := strconv.Atoi(portStr)
		return port
	}
	return 0
}

// BuildSDP builds the client's SDP offer advertising viewport, frame rate,
// packet size, supported codecs, and (if non-empty) the remote-input key
// used to encrypt the control/video/audio streams.
func BuildSDP(clientVersion, clientWidth, clientHeight, fps, packetSize int,
	videoFormats, audioConfig uint32, gcmSupported bool, riKeyID uint32, riKey []byte) string {

	var sdp strings.Builder
	sdp.WriteString("v=0\r\n")
	sdp.WriteString("o=- 0 0 IN IP4 0.0.0.0\r\n")
	sdp.WriteString("s=NVIDIA Streaming Client\r\n")
	sdp.WriteString("c=IN IP4 0.0.0.0\r\n")
	sdp.WriteString("t=0 0\r\n")

	fmt.Fprintf(&sdp, "m=video %d\r\n", 48000)
	fmt.Fprintf(&sdp, "a=x-nv-video[0].clientViewportWd:%d\r\n", clientWidth)
	fmt.Fprintf(&sdp, "a=x-nv-video[0].clientViewportHt:%d\r\n", clientHeight)
	fmt.Fprintf(&sdp, "a=x-nv-video[0].maxFPS:%d\r\n", fps)
	fmt.Fprintf(&sdp, "a=x-nv-video[0].packetSize:%d\r\n", packetSize)

	if videoFormats&0x0001 != 0 {
		sdp.WriteString("a=x-nv-video[0].clientSupportHevc:0\r\n")
	}
	if videoFormats&0x0100 != 0 {
		sdp.WriteString("a=x-nv-video[0].clientSupportHevc:1\r\n")
	}
	if videoFormats&0x0200 != 0 {
		sdp.WriteString("a=x-nv-video[0].clientSupportAv1:1\r\n")
	}

	fmt.Fprintf(&sdp, "m=audio %d\r\n", 48001)
	fmt.Fprintf(&sdp, "a=x-nv-audio.surround:%d\r\n", audioConfig)

	if len(riKey) > 0 {
		fmt.Fprintf(&sdp, "a=x-nv-rikeyid:%d\r\n", riKeyID)
		fmt.Fprintf(&sdp, "a=x-nv-rikey:%x\r\n", riKey)
	}
	if gcmSupported {
		sdp.WriteString("a=x-nv-gcmSupport:1\r\n")
	}
	fmt.Fprintf(&sdp, "a=x-nv-clientVersion:%d\r\n", clientVersion)

	return sdp.String()
}

// ParseSDP extracts the "a=key:value" attribute lines from a host's SDP
// response into a flat map.
func ParseSDP(sdp string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(sdp, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "a=") {
			continue
		}
		attr := strings.TrimPrefix(line, "a=")
		if idx := strings.Index(attr, ":"); idx > 0 {
			result[attr[:idx]] = attr[idx+1:]
		}
	}
	return result
}
