package session

import (
	"github.com/nimbusdeck/moonlight-go/internal/logging"
	"github.com/nimbusdeck/moonlight-go/internal/moonlightcore/limelight"
)

// decoderBridge, audioBridge and connectionBridge satisfy the engine's
// limelight.DecoderCallbacks / AudioCallbacks / ConnectionCallbacks
// interfaces on behalf of a *Session. They are distinct named types (rather
// than Session itself implementing the interfaces) because the engine's
// callback contracts reuse the names Start/Stop, which Session already uses
// for its own public start/stop API with different signatures.
type decoderBridge Session
type audioBridge Session
type connectionBridge Session

func (d *decoderBridge) session() *Session { return (*Session)(d) }
func (a *audioBridge) session() *Session   { return (*Session)(a) }
func (c *connectionBridge) session() *Session { return (*Session)(c) }

// --- decoderBridge: limelight.DecoderCallbacks -------------------------

func (d *decoderBridge) Setup(format limelight.VideoFormat, width, height, fps int, _ interface{}, flags int) error {
	s := d.session()
	s.handlerMu.Lock()
	v := s.video
	s.handlerMu.Unlock()
	if v == nil {
		return nil
	}
	return v.Setup(format, width, height, fps, flags)
}

func (d *decoderBridge) Start()   {}
func (d *decoderBridge) Stop()    {}
func (d *decoderBridge) Cleanup() {}

func (d *decoderBridge) SubmitDecodeUnit(unit *limelight.DecodeUnit) int {
	s := d.session()
	s.handlerMu.Lock()
	v := s.video
	s.handlerMu.Unlock()
	if v == nil {
		return 0
	}

	switch v.SubmitDecodeUnit(unit) {
	case DecodeNeedsIdr:
		log.Warn("video decoder requested IDR", logging.KeyStage, "video")
		go s.RequestIDR()
	case DecodeDrop:
	}
	return 0
}

func (d *decoderBridge) Capabilities() int { return 0 }

// --- audioBridge: limelight.AudioCallbacks -----------------------------

func (a *audioBridge) Init(audioConfig limelight.AudioConfiguration, opusConfig *limelight.OpusConfig, _ interface{}, flags int) error {
	s := a.session()
	s.handlerMu.Lock()
	ad := s.audio
	s.handlerMu.Unlock()
	if ad == nil {
		return nil
	}
	return ad.Setup(audioConfig, opusConfig, flags)
}

func (a *audioBridge) Start()   {}
func (a *audioBridge) Stop()    {}
func (a *audioBridge) Cleanup() {}

func (a *audioBridge) DecodeAndPlaySample(data []byte) {
	s := a.session()
	s.handlerMu.Lock()
	ad := s.audio
	s.handlerMu.Unlock()
	if ad != nil {
		ad.DecodeAndPlaySample(data)
	}
}

func (a *audioBridge) Capabilities() int { return 0 }

// --- connectionBridge: limelight.ConnectionCallbacks -------------------

func (c *connectionBridge) StageStarting(stage limelight.Stage) {
	s := c.session()
	s.handlerMu.Lock()
	l := s.listener
	s.handlerMu.Unlock()
	if l != nil {
		l.StageStarting(stage)
	}
}

func (c *connectionBridge) StageComplete(stage limelight.Stage) {
	s := c.session()
	s.handlerMu.Lock()
	l := s.listener
	s.handlerMu.Unlock()
	if l != nil {
		l.StageComplete(stage)
	}
}

func (c *connectionBridge) StageFailed(stage limelight.Stage, err error) {
	s := c.session()
	s.handlerMu.Lock()
	l := s.listener
	s.handlerMu.Unlock()
	if l != nil {
		l.StageFailed(stage, err)
	}
}

func (c *connectionBridge) ConnectionStarted() {
	s := c.session()
	s.handlerMu.Lock()
	l := s.listener
	s.handlerMu.Unlock()
	if l != nil {
		l.ConnectionStarted()
	}
}

func (c *connectionBridge) ConnectionTerminated(code int) {
	s := c.session()
	s.handlerMu.Lock()
	l := s.listener
	s.handlerMu.Unlock()
	if l != nil {
		l.ConnectionTerminated(code)
	}
}

func (c *connectionBridge) ConnectionStatusUpdate(status limelight.ConnectionStatus) {
	s := c.session()
	s.handlerMu.Lock()
	l := s.listener
	s.handlerMu.Unlock()
	if l != nil {
		l.ConnectionStatusUpdate(status)
	}
}

func (c *connectionBridge) SetHDRMode(bool)                                          {}
func (c *connectionBridge) Rumble(uint16, uint16, uint16)                            {}
func (c *connectionBridge) RumbleTriggers(uint16, uint16, uint16)                    {}
func (c *connectionBridge) SetMotionEventState(uint16, limelight.MotionType, uint16) {}
func (c *connectionBridge) SetControllerLED(uint16, uint8, uint8, uint8)             {}
