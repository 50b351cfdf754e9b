package httpapi

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/nimbusdeck/moonlight-go/internal/logging"
	"github.com/nimbusdeck/moonlight-go/internal/webrtcbridge"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// signalMessage is the envelope carried over the /ws connection while a
// viewer's WebRTC session is negotiated: offer/answer SDP and trickled ICE
// candidates in, answers/candidates/errors out.
type signalMessage struct {
	Type       string                   `json:"type"`
	SDP        string                   `json:"sdp,omitempty"`
	PeerID     string                   `json:"peer_id,omitempty"`
	Candidate  *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Generation uint64                   `json:"generation,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// handleSignalling upgrades to a WebSocket and attaches the connection to
// the active stream's bridge as a new viewer. Each viewer gets its own
// webrtcbridge.Session; closing the socket tears the peer connection down.
func (s *Server) handleSignalling(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		http.Error(w, "no active stream", http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", logging.KeyError, err)
		return
	}

	peerSession, err := stream.bridge.NewSession()
	if err != nil {
		conn.WriteJSON(signalMessage{Type: "error", Error: err.Error()})
		conn.Close()
		return
	}

	c := &signalConn{conn: conn, peer: peerSession, registry: stream.bridge.Registry()}

	peerSession.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		c.writeJSON(signalMessage{Type: "candidate", Candidate: &cand})
	})

	c.writeJSON(signalMessage{Type: "peer_id", PeerID: peerSession.PeerID()})

	c.readLoop()
}

type signalConn struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	peer     *webrtcbridge.Session
	registry interface {
		ClaimController(peerID string) error
	}
}

func (c *signalConn) writeJSON(msg signalMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Warn("websocket write failed", logging.KeyError, err)
	}
}

func (c *signalConn) readLoop() {
	defer func() {
		c.peer.Close()
		c.conn.Close()
	}()

	for {
		var msg signalMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "offer":
			answer, err := c.peer.HandleOffer(msg.SDP)
			if err != nil {
				c.writeJSON(signalMessage{Type: "error", Error: err.Error()})
				continue
			}
			c.writeJSON(signalMessage{Type: "answer", SDP: answer})

		case "answer":
			if err := c.peer.HandleAnswer(msg.SDP, msg.Generation); err != nil {
				c.writeJSON(signalMessage{Type: "error", Error: err.Error()})
			}

		case "candidate":
			if msg.Candidate == nil {
				continue
			}
			if err := c.peer.AddICECandidate(*msg.Candidate); err != nil {
				log.Warn("add ICE candidate failed", logging.KeyError, err)
			}

		case "claim_control":
			if err := c.registry.ClaimController(c.peer.PeerID()); err != nil {
				c.writeJSON(signalMessage{Type: "error", Error: err.Error()})
			}

		default:
			log.Warn("unknown signalling message type", "type", msg.Type)
		}
	}
}
