// Package nal parses H.264/H.265 NAL unit headers and packetizes access
// units into RTP payloads per RFC 6184 (H.264) / RFC 7798 (H.265).
package nal

import (
	"github.com/pion/rtp"

	"github.com/nimbusdeck/moonlight-go/internal/logging"
)

var log = logging.L("nal")

// Codec selects which NAL header format and fragmentation NAL types a
// Payloader uses.
type Codec int

const (
	CodecH264 Codec = iota
	CodecH265
)

// Unit is one complete NAL unit (header byte(s) plus body) belonging to a
// single access unit, as produced by annexb.Split.
type Unit struct {
	Data []byte
}

// clockRate90kHz is the RTP timestamp scale used for both H.264 and H.265
// video per RFC 6184/7798.
const clockRate90kHz = 90000

// Payloader turns access units (groups of NAL units sharing one
// presentation time) into a sequence of RTP packets. It is not safe for
// concurrent use; one Payloader serves one outbound video track.
type Payloader struct {
	Codec      Codec
	MaxPayload int // M in the payloader contract, typically 1200
	PayloadType uint8
	SSRC        uint32

	// AggregationEnabled toggles STAP-A/AP packing of small NALs. Disabled
	// in simple mode per the payloader contract.
	AggregationEnabled bool

	seq        uint16
	lastTS     uint32
	haveLastTS bool
}

// PayloadAccessUnit packetizes units sharing one access unit, captured at
// presentationTimeMs, into RTP packets. Sequence numbers continue from the
// previous call; the marker bit is set only on the final packet.
func (p *Payloader) PayloadAccessUnit(units []Unit, presentationTimeMs uint32) []*rtp.Packet {
	ts := scaleTimestamp90kHz(presentationTimeMs)
	if p.haveLastTS && ts < p.lastTS {
		ts = p.lastTS
	}
	p.lastTS = ts
	p.haveLastTS = true

	var bodies [][]byte
	if p.AggregationEnabled {
		bodies = p.packAggregated(units)
	} else {
		for _, u := range units {
			bodies = append(bodies, p.packSingle(u)...)
		}
	}

	packets := make([]*rtp.Packet, 0, len(bodies))
	for i, body := range bodies {
		if body == nil {
			continue
		}
		marker := i == len(bodies)-1
		packets = append(packets, &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         marker,
				PayloadType:    p.PayloadType,
				SequenceNumber: p.seq,
				Timestamp:      ts,
				SSRC:           p.SSRC,
			},
			Payload: body,
		})
		p.seq++ // wraps at 2^16 by virtue of uint16 overflow
	}
	return packets
}

func scaleTimestamp90kHz(presentationTimeMs uint32) uint32 {
	return uint32((uint64(presentationTimeMs) * clockRate90kHz) / 1000)
}

// packSingle handles one NAL unit: forwarded as-is, dropped (malformed or
// policy-dropped SEI), or fragmented into FU-A/FU packets.
func (p *Payloader) packSingle(u Unit) [][]byte {
	if len(u.Data) == 0 {
		return nil
	}

	switch p.Codec {
	case CodecH264:
		return p.packSingleH264(u.Data)
	default:
		return p.packSingleH265(u.Data)
	}
}

func (p *Payloader) packSingleH264(data []byte) [][]byte {
	h := ParseH264Header(data[0])
	if h.ForbiddenZero {
		log.Warn("dropping H.264 NAL with forbidden_zero_bit set")
		return nil
	}
	if h.isSEI() {
		return nil
	}
	if h.IsReservedOrUnspecified() {
		return [][]byte{data}
	}
	if len(data) <= p.MaxPayload {
		return [][]byte{data}
	}
	return fragmentH264(data, h, p.MaxPayload)
}

func (p *Payloader) packSingleH265(data []byte) [][]byte {
	if len(data) < 2 {
		log.Warn("dropping truncated H.265 NAL")
		return nil
	}
	h := ParseH265Header(data[0], data[1])
	if h.ForbiddenZero {
		log.Warn("dropping H.265 NAL with forbidden_zero_bit set")
		return nil
	}
	if h.isSEI() {
		return nil
	}
	if h.IsReservedOrUnspecified() {
		return [][]byte{data}
	}
	if len(data) <= p.MaxPayload {
		return [][]byte{data}
	}
	return fragmentH265(data, h, p.MaxPayload)
}

// fragmentH264 splits an oversized NAL into FU-A packets. Each fragment is
// a 2-byte framing overhead (FU indicator + FU header) followed by a slice
// of the NAL body (excluding the original 1-byte header).
func fragmentH264(data []byte, h H264Header, maxPayload int) [][]byte {
	const fuOverhead = 2
	body := data[1:]
	chunkSize := maxPayload - fuOverhead
	if chunkSize <= 0 {
		log.Warn("MaxPayload too small for FU-A framing; dropping NAL")
		return nil
	}

	indicator := H264Header{ForbiddenZero: false, RefIDC: h.RefIDC, Type: h264TypeFUA}.byte()

	var out [][]byte
	for off := 0; off < len(body); off += chunkSize {
		end := off + chunkSize
		if end > len(body) {
			end = len(body)
		}
		fuHeader := h.Type
		if off == 0 {
			fuHeader |= 0x80 // S
		}
		if end == len(body) {
			fuHeader |= 0x40 // E
		}
		frag := make([]byte, 0, 2+end-off)
		frag = append(frag, indicator, fuHeader)
		frag = append(frag, body[off:end]...)
		out = append(out, frag)
	}
	return out
}

// fragmentH265 splits an oversized NAL into FU packets: a 2-byte payload
// header (type=49) plus a 1-byte FU header plus the NAL body.
func fragmentH265(data []byte, h H265Header, maxPayload int) [][]byte {
	const fuOverhead = 3
	body := data[2:]
	chunkSize := maxPayload - fuOverhead
	if chunkSize <= 0 {
		log.Warn("MaxPayload too small for FU framing; dropping NAL")
		return nil
	}

	payloadHeader := H265Header{Type: h265TypeFU, LayerID: h.LayerID, TIDPlusOne: h.TIDPlusOne}.bytes()

	var out [][]byte
	for off := 0; off < len(body); off += chunkSize {
		end := off + chunkSize
		if end > len(body) {
			end = len(body)
		}
		fuHeader := h.Type
		if off == 0 {
			fuHeader |= 0x80 // S
		}
		if end == len(body) {
			fuHeader |= 0x40 // E
		}
		frag := make([]byte, 0, 3+end-off)
		frag = append(frag, payloadHeader[0], payloadHeader[1], fuHeader)
		frag = append(frag, body[off:end]...)
		out = append(out, frag)
	}
	return out
}

// packAggregated bundles consecutive small NALs into STAP-A/AP packets
// where the combined size (each NAL's own 2+N framing bytes included)
// still fits MaxPayload; larger NALs fall back to single-NAL or
// fragmented packing. Unused while AggregationEnabled is false (the simple
// mode this module runs in) but retained as the contract's aggregation
// path.
func (p *Payloader) packAggregated(units []Unit) [][]byte {
	indicatorSize := len(p.aggregationIndicator())

	var out [][]byte
	var agg [][]byte
	aggSize := indicatorSize

	flush := func() {
		if len(agg) == 0 {
			return
		}
		if len(agg) == 1 {
			out = append(out, agg[0])
			agg = nil
			aggSize = indicatorSize
			return
		}
		body := append([]byte{}, p.aggregationIndicator()...)
		for _, n := range agg {
			var lenBuf [2]byte
			lenBuf[0] = byte(len(n) >> 8)
			lenBuf[1] = byte(len(n))
			body = append(body, lenBuf[0], lenBuf[1])
			body = append(body, n...)
		}
		out = append(out, body)
		agg = nil
		aggSize = indicatorSize
	}

	for _, u := range units {
		singles := p.packSingle(u)
		for _, s := range singles {
			if len(s) > p.MaxPayload {
				flush()
				out = append(out, s)
				continue
			}
			if aggSize+2+len(s) > p.MaxPayload {
				flush()
			}
			agg = append(agg, s)
			aggSize += 2 + len(s)
		}
	}
	flush()
	return out
}

func (p *Payloader) aggregationIndicator() []byte {
	if p.Codec == CodecH264 {
		return []byte{H264Header{Type: h264TypeSTAPA}.byte()}
	}
	b := H265Header{Type: h265TypeAP}.bytes()
	return b[:]
}
