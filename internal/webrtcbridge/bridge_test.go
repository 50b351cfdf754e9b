package webrtcbridge

import (
	"fmt"
	"testing"
)

func offerWithVideoCodec(codec string) string {
	return fmt.Sprintf("v=0\r\n"+
		"o=- 0 0 IN IP4 127.0.0.1\r\n"+
		"s=-\r\n"+
		"t=0 0\r\n"+
		"m=video 9 UDP/TLS/RTP/SAVPF 96 97\r\n"+
		"a=rtpmap:96 %s/90000\r\n"+
		"a=rtpmap:97 VP8/90000\r\n", codec)
}

func TestCheckVideoCodecOffered_AcceptsMatchingCodec(t *testing.T) {
	s := &Session{bridge: &Bridge{videoCodec: CodecH264}}
	if err := s.checkVideoCodecOffered(offerWithVideoCodec("H264")); err != nil {
		t.Fatalf("expected matching codec to be accepted, got %v", err)
	}
}

func TestCheckVideoCodecOffered_RejectsMissingCodec(t *testing.T) {
	s := &Session{bridge: &Bridge{videoCodec: CodecAV1}}
	if err := s.checkVideoCodecOffered(offerWithVideoCodec("H264")); err == nil {
		t.Fatalf("expected an offer missing AV1 to be rejected")
	}
}

func TestCheckVideoCodecOffered_CaseInsensitive(t *testing.T) {
	s := &Session{bridge: &Bridge{videoCodec: CodecH265}}
	if err := s.checkVideoCodecOffered(offerWithVideoCodec("h265")); err != nil {
		t.Fatalf("expected case-insensitive codec match to be accepted, got %v", err)
	}
}
