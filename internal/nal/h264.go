package nal

// H264Header is the 1-byte NAL header: forbidden_zero_bit(1) |
// nal_ref_idc(2) | nal_unit_type(5).
type H264Header struct {
	ForbiddenZero bool
	RefIDC        uint8
	Type          uint8
}

const (
	h264TypeSTAPA = 24
	h264TypeFUA   = 28
	h264TypeSEI   = 6
)

// ParseH264Header decodes the first byte of an H.264 NAL unit.
func ParseH264Header(b byte) H264Header {
	return H264Header{
		ForbiddenZero: b&0x80 != 0,
		RefIDC:        (b >> 5) & 0x03,
		Type:          b & 0x1F,
	}
}

func (h H264Header) byte() byte {
	var b byte
	if h.ForbiddenZero {
		b |= 0x80
	}
	b |= (h.RefIDC & 0x03) << 5
	b |= h.Type & 0x1F
	return b
}

// IsSingleNAL reports whether this H.264 NAL type carries a complete NAL
// in one unit (types 1-23), as opposed to an aggregation or fragmentation
// indicator.
func (h H264Header) IsSingleNAL() bool { return h.Type >= 1 && h.Type <= 23 }

func (h H264Header) isSEI() bool { return h.Type == h264TypeSEI }

// IsReservedOrUnspecified reports the types the payloader must forward
// unmodified per the forwarding failure-semantics rule.
func (h H264Header) IsReservedOrUnspecified() bool {
	switch h.Type {
	case 0, 29, 30, 31:
		return true
	}
	return h.Type >= 25 && h.Type <= 27
}
