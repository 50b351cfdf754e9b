// Package annexb splits an Annex-B byte stream (the start-code-prefixed
// framing used by H.264/H.265 elementary streams) into individual NAL unit
// chunks.
package annexb

import (
	"github.com/nimbusdeck/moonlight-go/internal/logging"
)

var log = logging.L("annexb")

// StartCodeLen identifies which of the two Annex-B start code forms preceded
// a chunk's payload.
type StartCodeLen int

const (
	// Short is the 3-byte start code 00 00 01.
	Short StartCodeLen = 3
	// Long is the 4-byte start code 00 00 00 01.
	Long StartCodeLen = 4
)

// Range is a byte offset/length pair into the buffer a Chunk was split from.
type Range struct {
	Offset int
	Length int
}

// Chunk is one NAL unit recovered from an Annex-B byte stream. Payload is a
// copy, not a slice of the source buffer, since downstream RTP
// packetization mutates it in place (header rewrites, FU fragmentation).
type Chunk struct {
	StartCode      StartCodeLen
	StartCodeRange Range
	PayloadRange   Range
	Payload        []byte
}

// Split scans buf for Annex-B start codes and returns one Chunk per NAL
// unit. Leading bytes before the first start code are discarded with a
// warning. A buffer with no start codes yields zero chunks. A start code
// immediately followed by EOF yields one chunk with an empty Payload; the
// caller is expected to drop those (matching the higher layer's handling of
// the corresponding C reference behavior).
func Split(buf []byte) []Chunk {
	starts := findStartCodes(buf)
	if len(starts) == 0 {
		return nil
	}

	if starts[0].offset > 0 {
		log.Warn("discarding leading bytes before first Annex-B start code", "bytes", starts[0].offset)
	}

	chunks := make([]Chunk, 0, len(starts))
	for i, sc := range starts {
		payloadStart := sc.offset + sc.length
		payloadEnd := len(buf)
		if i+1 < len(starts) {
			payloadEnd = starts[i+1].offset
		}

		payload := append([]byte(nil), buf[payloadStart:payloadEnd]...)

		scLen := Short
		if sc.length == 4 {
			scLen = Long
		}

		chunks = append(chunks, Chunk{
			StartCode:      scLen,
			StartCodeRange: Range{Offset: sc.offset, Length: sc.length},
			PayloadRange:   Range{Offset: payloadStart, Length: payloadEnd - payloadStart},
			Payload:        payload,
		})
	}
	return chunks
}

type startCode struct {
	offset int
	length int
}

// findStartCodes locates every 00 00 01 or 00 00 00 01 sequence in buf. A
// run of 00 00 01 preceded by one more zero byte is the long form; the
// extra byte is folded into that match rather than reported separately.
func findStartCodes(buf []byte) []startCode {
	var out []startCode
	i := 0
	for i+2 < len(buf) {
		if buf[i] != 0 || buf[i+1] != 0 || buf[i+2] != 1 {
			i++
			continue
		}
		if i > 0 && buf[i-1] == 0 {
			out = append(out, startCode{offset: i - 1, length: 4})
		} else {
			out = append(out, startCode{offset: i, length: 3})
		}
		i += 3
	}
	return out
}
