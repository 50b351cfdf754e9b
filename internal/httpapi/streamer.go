package httpapi

import (
	"sync"

	"github.com/pion/rtp"

	"github.com/nimbusdeck/moonlight-go/internal/annexb"
	"github.com/nimbusdeck/moonlight-go/internal/logging"
	"github.com/nimbusdeck/moonlight-go/internal/moonlightcore/limelight"
	"github.com/nimbusdeck/moonlight-go/internal/nal"
	"github.com/nimbusdeck/moonlight-go/internal/protocol"
	"github.com/nimbusdeck/moonlight-go/internal/session"
	"github.com/nimbusdeck/moonlight-go/internal/webrtcbridge"
)

const maxRTPPayload = 1200

// bridgeStreamer implements session.VideoDecoder (and, through audioAdapter,
// session.AudioDecoder) by re-packetizing the engine's decode units as RTP and fan-out writing
// them to every viewer attached to a webrtcbridge.Bridge. It never decodes
// anything itself: the browser does that, so this is a pure relay.
type bridgeStreamer struct {
	bridge *webrtcbridge.Bridge

	mu        sync.Mutex
	payloader *nal.Payloader

	audioSSRC uint32
	audioSeq  uint16
}

var _ session.VideoDecoder = (*bridgeStreamer)(nil)
var _ session.AudioDecoder = (*audioAdapter)(nil)

func (b *bridgeStreamer) Setup(format limelight.VideoFormat, width, height, redrawRate, flags int) error {
	codec := nal.CodecH264
	if format == limelight.VideoFormatH265 {
		codec = nal.CodecH265
	}

	b.mu.Lock()
	b.payloader = &nal.Payloader{Codec: codec, MaxPayload: maxRTPPayload, PayloadType: 96, SSRC: 1}
	b.mu.Unlock()
	return nil
}

func (b *bridgeStreamer) SubmitDecodeUnit(unit *limelight.DecodeUnit) session.DecodeResult {
	b.mu.Lock()
	payloader := b.payloader
	b.mu.Unlock()
	if payloader == nil {
		return session.DecodeNeedsIdr
	}

	var units []nal.Unit
	for _, bd := range unit.BufferList {
		data := bd.Data[bd.Offset : bd.Offset+bd.Length]
		for _, chunk := range annexb.Split(data) {
			if len(chunk.Payload) == 0 {
				continue
			}
			units = append(units, nal.Unit{Data: chunk.Payload})
		}
	}
	if len(units) == 0 {
		return session.DecodeDrop
	}

	packets := payloader.PayloadAccessUnit(units, uint32(unit.PresentationTimeMs))
	for _, pkt := range packets {
		b.bridge.WriteVideo(pkt)
	}
	return session.DecodeOk
}

// audioAdapter is a distinct defined type over bridgeStreamer so the audio
// path's Setup(AudioConfiguration, ...) can coexist with the video path's
// Setup(VideoFormat, width, height, ...) — two methods named Setup with
// different signatures can't live on one type.
type audioAdapter bridgeStreamer

func (a *audioAdapter) Setup(audioConfig limelight.AudioConfiguration, opusConfig *limelight.OpusConfig, flags int) error {
	return nil
}

func (a *audioAdapter) DecodeAndPlaySample(data []byte) {
	(*bridgeStreamer)(a).decodeAndPlaySample(data)
}

func (b *bridgeStreamer) decodeAndPlaySample(data []byte) {
	b.mu.Lock()
	b.audioSeq++
	seq := b.audioSeq
	ssrc := b.audioSSRC
	b.mu.Unlock()

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    111,
			SequenceNumber: seq,
			SSRC:           ssrc,
		},
		Payload: data,
	}
	b.bridge.WriteAudio(pkt)
}

// lifecycleLogger implements session.ConnectionListener, logging stage
// transitions and connection state without surfacing anything to viewers:
// browsers only learn about the stream through the bridge's media tracks
// and data channels, never the engine's own lifecycle events directly.
type lifecycleLogger struct{}

func (l *lifecycleLogger) StageStarting(stage limelight.Stage) {
	log.Info("stage starting", logging.KeyStage, protocol.StageName(int(stage)))
}

func (l *lifecycleLogger) StageComplete(stage limelight.Stage) {
	log.Info("stage complete", logging.KeyStage, protocol.StageName(int(stage)))
}

func (l *lifecycleLogger) StageFailed(stage limelight.Stage, err error) {
	log.Error("stage failed", logging.KeyStage, protocol.StageName(int(stage)), logging.KeyError, err)
}

func (l *lifecycleLogger) ConnectionStarted() {
	log.Info("connection started")
}

func (l *lifecycleLogger) ConnectionTerminated(code int) {
	log.Info("connection terminated", "code", code)
}

func (l *lifecycleLogger) ConnectionStatusUpdate(status limelight.ConnectionStatus) {
	log.Info("connection status update", "status", status)
}
