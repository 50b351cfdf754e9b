package webrtcbridge

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role is a browser viewer's permission level within a bridged stream.
// At most one viewer holds RoleController at a time; everyone else is a
// read-only RoleSpectator.
type Role string

const (
	RoleController Role = "controller"
	RoleSpectator  Role = "spectator"
)

// Peer is one browser client attached to the bridge via its own
// PeerConnection.
type Peer struct {
	ID       string
	Role     Role
	JoinedAt time.Time
}

// peerRegistry tracks the viewers attached to a single bridged stream and
// decides which one, if any, may drive input. Input gating lives here
// rather than in internal/session, which only ever sees one authorized
// input source regardless of how many browsers are watching.
type peerRegistry struct {
	mu         sync.RWMutex
	peers      map[string]*Peer
	controller *Peer

	onPeerJoined       func(*Peer)
	onPeerLeft         func(*Peer)
	onControllerChange func(*Peer)
}

func newPeerRegistry() *peerRegistry {
	return &peerRegistry{peers: make(map[string]*Peer)}
}

// AddSpectator registers a new viewer with no input rights.
func (r *peerRegistry) AddSpectator() *Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer := &Peer{ID: uuid.NewString(), Role: RoleSpectator, JoinedAt: time.Now()}
	r.peers[peer.ID] = peer
	if r.onPeerJoined != nil {
		go r.onPeerJoined(peer)
	}
	return peer
}

// ClaimController promotes peerID to sole controller, demoting whoever
// held it before. The first peer to join is not granted control
// automatically — an explicit claim keeps the policy symmetric for every
// viewer.
func (r *peerRegistry) ClaimController(peerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, ok := r.peers[peerID]
	if !ok {
		return errors.New("webrtcbridge: unknown peer")
	}
	if r.controller != nil {
		r.controller.Role = RoleSpectator
	}
	peer.Role = RoleController
	r.controller = peer

	if r.onControllerChange != nil {
		go r.onControllerChange(peer)
	}
	return nil
}

// RemovePeer drops a viewer, releasing control if it held it.
func (r *peerRegistry) RemovePeer(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, ok := r.peers[peerID]
	if !ok {
		return
	}
	delete(r.peers, peerID)
	if r.controller == peer {
		r.controller = nil
	}
	if r.onPeerLeft != nil {
		go r.onPeerLeft(peer)
	}
}

// CanSendInput reports whether peerID currently holds input rights.
func (r *peerRegistry) CanSendInput(peerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.controller != nil && r.controller.ID == peerID
}

// Peers returns every connected viewer.
func (r *peerRegistry) Peers() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Count returns the number of connected viewers.
func (r *peerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

func (r *peerRegistry) OnPeerJoined(fn func(*Peer))       { r.onPeerJoined = fn }
func (r *peerRegistry) OnPeerLeft(fn func(*Peer))         { r.onPeerLeft = fn }
func (r *peerRegistry) OnControllerChange(fn func(*Peer)) { r.onControllerChange = fn }
