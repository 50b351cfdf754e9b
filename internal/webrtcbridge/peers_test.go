package webrtcbridge

import "testing"

func TestAddSpectator_AssignsSpectatorRoleAndUniqueID(t *testing.T) {
	r := newPeerRegistry()
	p1 := r.AddSpectator()
	p2 := r.AddSpectator()

	if p1.Role != RoleSpectator || p2.Role != RoleSpectator {
		t.Fatalf("expected both new peers to be spectators, got %v and %v", p1.Role, p2.Role)
	}
	if p1.ID == p2.ID {
		t.Fatalf("expected distinct peer IDs, got %q twice", p1.ID)
	}
	if r.Count() != 2 {
		t.Fatalf("expected 2 peers, got %d", r.Count())
	}
}

func TestClaimController_DemotesPreviousController(t *testing.T) {
	r := newPeerRegistry()
	p1 := r.AddSpectator()
	p2 := r.AddSpectator()

	if err := r.ClaimController(p1.ID); err != nil {
		t.Fatalf("ClaimController(p1) failed: %v", err)
	}
	if !r.CanSendInput(p1.ID) {
		t.Fatalf("expected p1 to hold control")
	}

	if err := r.ClaimController(p2.ID); err != nil {
		t.Fatalf("ClaimController(p2) failed: %v", err)
	}
	if r.CanSendInput(p1.ID) {
		t.Fatalf("expected p1 to lose control once p2 claims it")
	}
	if !r.CanSendInput(p2.ID) {
		t.Fatalf("expected p2 to hold control")
	}
	if p1.Role != RoleSpectator {
		t.Fatalf("expected p1 demoted to spectator, got %v", p1.Role)
	}
}

func TestClaimController_UnknownPeerReturnsError(t *testing.T) {
	r := newPeerRegistry()
	if err := r.ClaimController("nonexistent"); err == nil {
		t.Fatalf("expected an error for an unknown peer ID")
	}
}

func TestRemovePeer_ReleasesControlAndDropsPeer(t *testing.T) {
	r := newPeerRegistry()
	p := r.AddSpectator()
	if err := r.ClaimController(p.ID); err != nil {
		t.Fatalf("ClaimController failed: %v", err)
	}

	r.RemovePeer(p.ID)

	if r.Count() != 0 {
		t.Fatalf("expected 0 peers after removal, got %d", r.Count())
	}
	if r.CanSendInput(p.ID) {
		t.Fatalf("expected a removed peer to lose input rights")
	}
}

func TestRemovePeer_UnknownPeerIsANoop(t *testing.T) {
	r := newPeerRegistry()
	r.AddSpectator()
	r.RemovePeer("nonexistent")
	if r.Count() != 1 {
		t.Fatalf("expected the unrelated removal to leave the existing peer intact, got count %d", r.Count())
	}
}

func TestCanSendInput_FalseWithNoController(t *testing.T) {
	r := newPeerRegistry()
	p := r.AddSpectator()
	if r.CanSendInput(p.ID) {
		t.Fatalf("expected a fresh spectator to have no input rights")
	}
}

func TestOnPeerJoined_FiresForNewSpectator(t *testing.T) {
	r := newPeerRegistry()
	joined := make(chan *Peer, 1)
	r.OnPeerJoined(func(p *Peer) { joined <- p })

	p := r.AddSpectator()
	got := <-joined
	if got.ID != p.ID {
		t.Fatalf("expected callback peer ID %q, got %q", p.ID, got.ID)
	}
}

func TestOnControllerChange_FiresOnClaim(t *testing.T) {
	r := newPeerRegistry()
	changed := make(chan *Peer, 1)
	r.OnControllerChange(func(p *Peer) { changed <- p })

	p := r.AddSpectator()
	if err := r.ClaimController(p.ID); err != nil {
		t.Fatalf("ClaimController failed: %v", err)
	}
	got := <-changed
	if got.ID != p.ID {
		t.Fatalf("expected callback peer ID %q, got %q", p.ID, got.ID)
	}
}
