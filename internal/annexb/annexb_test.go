package annexb

import (
	"bytes"
	"testing"
)

func TestSplit_NoStartCodes(t *testing.T) {
	if chunks := Split([]byte{1, 2, 3, 4}); chunks != nil {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestSplit_Empty(t *testing.T) {
	if chunks := Split(nil); chunks != nil {
		t.Fatalf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestSplit_LeadingGarbageDiscarded(t *testing.T) {
	buf := append([]byte{0xAA, 0xBB}, []byte{0, 0, 1, 0x67, 0x42}...)
	chunks := Split(buf)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !bytes.Equal(chunks[0].Payload, []byte{0x67, 0x42}) {
		t.Fatalf("unexpected payload: %x", chunks[0].Payload)
	}
	if chunks[0].StartCode != Short {
		t.Fatalf("expected short start code, got %v", chunks[0].StartCode)
	}
}

func TestSplit_ThreeNALsSPSPPSIDR(t *testing.T) {
	// S2: SPS, PPS, IDR separated by long start codes.
	buf := []byte{
		0, 0, 0, 1, 0x67, 0x42, 0x00, 0x1E,
		0, 0, 0, 1, 0x68, 0xCE, 0x3C, 0x80,
		0, 0, 0, 1, 0x65, 0xB8,
	}
	chunks := Split(buf)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantTypes := []byte{7, 8, 5}
	for i, c := range chunks {
		if c.StartCode != Long {
			t.Fatalf("chunk %d: expected long start code", i)
		}
		nalType := c.Payload[0] & 0x1F
		if nalType != wantTypes[i] {
			t.Fatalf("chunk %d: expected type %d, got %d", i, wantTypes[i], nalType)
		}
	}
}

func TestSplit_StartCodeAtEOFYieldsEmptyChunk(t *testing.T) {
	buf := []byte{0, 0, 1}
	chunks := Split(buf)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if len(chunks[0].Payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(chunks[0].Payload))
	}
}

func TestSplit_RoundTripPreservesPayloads(t *testing.T) {
	payloads := [][]byte{
		{0x67, 0x42, 0x00, 0x1E, 0xAB, 0xCD},
		{0x68, 0xCE},
		{0x65, 0xB8, 0x00, 0x11, 0x22, 0x33, 0x44},
	}
	var buf []byte
	for i, p := range payloads {
		if i%2 == 0 {
			buf = append(buf, 0, 0, 0, 1)
		} else {
			buf = append(buf, 0, 0, 1)
		}
		buf = append(buf, p...)
	}

	chunks := Split(buf)
	if len(chunks) != len(payloads) {
		t.Fatalf("expected %d chunks, got %d", len(payloads), len(chunks))
	}
	for i, want := range payloads {
		if !bytes.Equal(chunks[i].Payload, want) {
			t.Fatalf("chunk %d: payload mismatch: got %x want %x", i, chunks[i].Payload, want)
		}
	}
}
