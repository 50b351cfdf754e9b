package nal

import (
	"bytes"
	"testing"
)

func TestPayloadAccessUnit_SingleNAL(t *testing.T) {
	p := &Payloader{Codec: CodecH264, MaxPayload: 1200, PayloadType: 96}
	nal := append([]byte{0x67}, bytes.Repeat([]byte{0xAB}, 50)...)

	pkts := p.PayloadAccessUnit([]Unit{{Data: nal}}, 0)
	if len(pkts) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(pkts))
	}
	if !pkts[0].Marker {
		t.Fatalf("expected marker on the only packet")
	}
	if !bytes.Equal(pkts[0].Payload, nal) {
		t.Fatalf("single-NAL packet should carry the NAL unmodified")
	}
}

func TestPayloadAccessUnit_S3_1500ByteIDRSplitsIntoTwoFUA(t *testing.T) {
	// 1500-byte IDR (type 5), M=1200: expect two FU-A fragments.
	header := byte(0x65) // forbidden=0, ref_idc=3, type=5
	body := bytes.Repeat([]byte{0x11}, 1499)
	nal := append([]byte{header}, body...)

	p := &Payloader{Codec: CodecH264, MaxPayload: 1200, PayloadType: 96}
	pkts := p.PayloadAccessUnit([]Unit{{Data: nal}}, 0)

	if len(pkts) != 2 {
		t.Fatalf("expected 2 FU-A packets, got %d", len(pkts))
	}

	fu0Header := pkts[0].Payload[1]
	fu1Header := pkts[1].Payload[1]
	if fu0Header&0x80 == 0 || fu0Header&0x40 != 0 {
		t.Fatalf("first fragment should have S=1,E=0, got header %08b", fu0Header)
	}
	if fu1Header&0x80 != 0 || fu1Header&0x40 == 0 {
		t.Fatalf("second fragment should have S=0,E=1, got header %08b", fu1Header)
	}
	if pkts[0].Marker {
		t.Fatalf("only the last packet of the access unit should carry the marker bit")
	}
	if !pkts[1].Marker {
		t.Fatalf("last packet of the access unit must carry the marker bit")
	}

	indicatorType := pkts[0].Payload[0] & 0x1F
	if indicatorType != h264TypeFUA {
		t.Fatalf("expected FU-A indicator type %d, got %d", h264TypeFUA, indicatorType)
	}
	fuType := fu0Header & 0x1F
	if fuType != 5 {
		t.Fatalf("FU header type should copy original NAL type 5, got %d", fuType)
	}

	reassembled := append(append([]byte{}, pkts[0].Payload[2:]...), pkts[1].Payload[2:]...)
	if !bytes.Equal(reassembled, body) {
		t.Fatalf("reassembled FU-A payload does not match original NAL body")
	}
}

func TestPayloadAccessUnit_MarkerOnlyOnLastPacketOfAccessUnit(t *testing.T) {
	p := &Payloader{Codec: CodecH264, MaxPayload: 1200, PayloadType: 96}
	units := []Unit{
		{Data: []byte{0x67, 0x01, 0x02}},
		{Data: []byte{0x68, 0x03, 0x04}},
		{Data: []byte{0x65, 0x05, 0x06}},
	}
	pkts := p.PayloadAccessUnit(units, 0)
	if len(pkts) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(pkts))
	}
	for i, pkt := range pkts {
		if i < len(pkts)-1 && pkt.Marker {
			t.Fatalf("packet %d should not carry the marker bit", i)
		}
	}
	if !pkts[len(pkts)-1].Marker {
		t.Fatalf("final packet must carry the marker bit")
	}
}

func TestPayloadAccessUnit_TimestampSharedPerUnitAndMonotonic(t *testing.T) {
	p := &Payloader{Codec: CodecH264, MaxPayload: 1200, PayloadType: 96}

	unit1 := []Unit{{Data: []byte{0x67, 1}}, {Data: []byte{0x68, 2}}}
	pkts1 := p.PayloadAccessUnit(unit1, 0)
	for _, pk := range pkts1 {
		if pk.Timestamp != pkts1[0].Timestamp {
			t.Fatalf("all packets in one access unit must share a timestamp")
		}
	}

	unit2 := []Unit{{Data: []byte{0x65, 3}}}
	pkts2 := p.PayloadAccessUnit(unit2, 33)
	if pkts2[0].Timestamp < pkts1[0].Timestamp {
		t.Fatalf("timestamp must be non-decreasing across access units")
	}
	wantTS := uint32(33 * 90000 / 1000)
	if pkts2[0].Timestamp != wantTS {
		t.Fatalf("expected 90kHz-scaled timestamp %d, got %d", wantTS, pkts2[0].Timestamp)
	}
}

func TestPayloadAccessUnit_SequenceWrapsAt65536(t *testing.T) {
	p := &Payloader{Codec: CodecH264, MaxPayload: 1200, PayloadType: 96, seq: 65535}
	pkts := p.PayloadAccessUnit([]Unit{{Data: []byte{0x67, 1}}, {Data: []byte{0x68, 2}}}, 0)
	if pkts[0].SequenceNumber != 65535 {
		t.Fatalf("expected first sequence number 65535, got %d", pkts[0].SequenceNumber)
	}
	if pkts[1].SequenceNumber != 0 {
		t.Fatalf("expected sequence number to wrap to 0, got %d", pkts[1].SequenceNumber)
	}
}

func TestPayloadAccessUnit_DropsH264SEI(t *testing.T) {
	p := &Payloader{Codec: CodecH264, MaxPayload: 1200, PayloadType: 96}
	pkts := p.PayloadAccessUnit([]Unit{{Data: []byte{0x06, 0x01, 0x02}}}, 0)
	if len(pkts) != 0 {
		t.Fatalf("expected SEI to be dropped, got %d packets", len(pkts))
	}
}

func TestPayloadAccessUnit_DropsH265SEIUniformly(t *testing.T) {
	// type 39 (PREFIX_SEI): byte0 bits: 0|100111|0 -> 0b0_100111_0 = 0x4E
	p := &Payloader{Codec: CodecH265, MaxPayload: 1200, PayloadType: 98}
	pkts := p.PayloadAccessUnit([]Unit{{Data: []byte{0x4E, 0x01, 0xAA}}}, 0)
	if len(pkts) != 0 {
		t.Fatalf("expected H.265 SEI to be dropped (uniform policy), got %d packets", len(pkts))
	}
}

func TestPayloadAccessUnit_MalformedHeaderDropped(t *testing.T) {
	p := &Payloader{Codec: CodecH264, MaxPayload: 1200, PayloadType: 96}
	pkts := p.PayloadAccessUnit([]Unit{{Data: []byte{0x87, 0x01}}}, 0) // forbidden_zero_bit set
	if len(pkts) != 0 {
		t.Fatalf("expected malformed NAL to be dropped, got %d packets", len(pkts))
	}
}
