package control

import (
	"bytes"
	"testing"

	"github.com/nimbusdeck/moonlight-go/internal/moonlightcore/types"
)

type noopCallbacks struct{}

func (noopCallbacks) StageStarting(types.Stage)                        {}
func (noopCallbacks) StageComplete(types.Stage)                        {}
func (noopCallbacks) StageFailed(types.Stage, error)                   {}
func (noopCallbacks) ConnectionStarted()                               {}
func (noopCallbacks) ConnectionTerminated(int)                         {}
func (noopCallbacks) ConnectionStatusUpdate(types.ConnectionStatus)    {}
func (noopCallbacks) SetHDRMode(bool)                                  {}
func (noopCallbacks) Rumble(uint16, uint16, uint16)                    {}
func (noopCallbacks) RumbleTriggers(uint16, uint16, uint16)            {}
func (noopCallbacks) SetMotionEventState(uint16, types.MotionType, uint16) {}
func (noopCallbacks) SetControllerLED(uint16, uint8, uint8, uint8)     {}

func newTestStream(t *testing.T) *Stream {
	t.Helper()
	cfg := types.StreamConfiguration{
		RemoteInputAesKey: bytes.Repeat([]byte{0x42}, 16),
	}
	s, err := NewStream(cfg, noopCallbacks{}, [4]int{7, 1, 431, 0}, true)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	return s
}

func TestNewStream_EnablesEncryptionAboveVersionThreshold(t *testing.T) {
	s := newTestStream(t)
	if !s.encrypted {
		t.Fatalf("expected encryption to be enabled for app version 7.1.431")
	}
	if s.cryptoCtx == nil {
		t.Fatalf("expected a crypto context to be built for an encrypted stream")
	}
}

func TestNewStream_NoEncryptionBelowVersionThreshold(t *testing.T) {
	cfg := types.StreamConfiguration{RemoteInputAesKey: bytes.Repeat([]byte{0x42}, 16)}
	s, err := NewStream(cfg, noopCallbacks{}, [4]int{5, 0, 0, 0}, false)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	if s.encrypted {
		t.Fatalf("expected no encryption for app version 5.0.0")
	}
	if s.cryptoCtx != nil {
		t.Fatalf("expected no crypto context when encryption is disabled")
	}
}

func TestBuildEncryptedPacket_RoundTripsThroughDecrypt(t *testing.T) {
	s := newTestStream(t)

	payload := []byte("hello control stream")
	packet, err := s.buildEncryptedPacket(0x1234, payload)
	if err != nil {
		t.Fatalf("buildEncryptedPacket: %v", err)
	}

	// The host-originated IV differs only in its origin byte, so decrypting
	// a client-originated packet with decryptMessage (which builds an 'H'
	// IV) must fail the GCM tag check rather than silently succeed.
	encryptedBody := packet
	if _, err := s.decryptMessage(encryptedBody); err == nil {
		t.Fatalf("expected decrypting a client-originated packet with a host IV to fail authentication")
	}

	// A packet built with a matching ('C','C') IV convention round-trips.
	plaintext, err := s.cryptoCtx.DecryptGCM(
		encryptedBody[8+s.cryptoCtx.GCMOverhead():],
		ivFor(s.currentSeq, 'C'),
		encryptedBody[8:8+s.cryptoCtx.GCMOverhead()],
		nil,
	)
	if err != nil {
		t.Fatalf("DecryptGCM: %v", err)
	}

	ptype := uint16(plaintext[0]) | uint16(plaintext[1])<<8
	if ptype != 0x1234 {
		t.Fatalf("decrypted ptype = %#x, want %#x", ptype, 0x1234)
	}
	if string(plaintext[4:]) != string(payload) {
		t.Fatalf("decrypted payload = %q, want %q", plaintext[4:], payload)
	}
}

func ivFor(seq uint32, origin byte) []byte {
	iv := make([]byte, 12)
	iv[0] = byte(seq)
	iv[1] = byte(seq >> 8)
	iv[2] = byte(seq >> 16)
	iv[3] = byte(seq >> 24)
	iv[10] = origin
	iv[11] = 'C'
	return iv
}
