// Package session owns the process-singleton streaming engine: it acquires
// an exclusive gate, translates typed Start/Stop/input calls into the
// underlying moonlightcore engine, and demultiplexes the engine's
// video/audio/connection callbacks into the caller's handler objects
// without holding a lock across those calls.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nimbusdeck/moonlight-go/internal/logging"
	"github.com/nimbusdeck/moonlight-go/internal/moonlightcore/limelight"
	"github.com/nimbusdeck/moonlight-go/internal/sunshine"
)

var log = logging.L("session")

// acquired is the process-wide singleton gate (spec §4.3). Exactly one
// Session may be started at a time for the life of the process.
var acquired atomic.Bool

// DecodeResult is a VideoDecoder's verdict on one decode unit.
type DecodeResult int

const (
	DecodeOk DecodeResult = iota
	DecodeNeedsIdr
	DecodeDrop
)

// VideoDecoder receives decoded video access units from the engine.
type VideoDecoder interface {
	Setup(format limelight.VideoFormat, width, height, redrawRate, flags int) error
	SubmitDecodeUnit(unit *limelight.DecodeUnit) DecodeResult
}

// AudioDecoder receives decoded Opus samples from the engine.
type AudioDecoder interface {
	Setup(audioConfig limelight.AudioConfiguration, opusConfig *limelight.OpusConfig, flags int) error
	DecodeAndPlaySample(data []byte)
}

// ConnectionListener observes connection lifecycle and stage transitions.
type ConnectionListener interface {
	StageStarting(stage limelight.Stage)
	StageComplete(stage limelight.Stage)
	StageFailed(stage limelight.Stage, err error)
	ConnectionStarted()
	ConnectionTerminated(code int)
	ConnectionStatusUpdate(status limelight.ConnectionStatus)
}

// InputHandler is notified of engine-rejected input so a caller can surface
// it without the Session itself owning UI concerns. Most callers pass nil;
// Session's Send* methods already return EventSendError directly.
type InputHandler interface {
	InputRejected(err error)
}

// Config bundles everything Start needs to bring the engine up.
type Config struct {
	ServerInfo   limelight.ServerInformation
	StreamConfig limelight.StreamConfiguration
	VideoDecoder VideoDecoder
	AudioDecoder AudioDecoder
	Listener     ConnectionListener
	InputHandler InputHandler
}

// Session owns one streaming engine client. The zero value is not usable;
// construct with New.
type Session struct {
	// mu serializes Start/Stop so the non-reentrant engine never sees
	// overlapping calls.
	mu      sync.Mutex
	started bool
	client  *limelight.Client

	handlerMu sync.Mutex
	video     VideoDecoder
	audio     AudioDecoder
	listener  ConnectionListener
	input     InputHandler
}

// New acquires the process-wide singleton gate. Callers must call Release
// to give it back; failing to do so leaves the process unable to start
// another session.
func New() (*Session, error) {
	if !acquired.CompareAndSwap(false, true) {
		return nil, sunshine.NewInstanceAlreadyExists()
	}
	return &Session{}, nil
}

// Start installs the callback tables, launches the engine connection, and
// returns once the RTSP handshake and stream bring-up have completed.
func (s *Session) Start(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return sunshine.NewConnectionAlreadyExists()
	}

	s.handlerMu.Lock()
	s.video = cfg.VideoDecoder
	s.audio = cfg.AudioDecoder
	s.listener = cfg.Listener
	s.input = cfg.InputHandler
	s.handlerMu.Unlock()

	s.client = limelight.NewClient(cfg.StreamConfig, cfg.ServerInfo,
		(*decoderBridge)(s), (*audioBridge)(s), (*connectionBridge)(s))

	if err := s.client.Start(ctx); err != nil {
		s.handlerMu.Lock()
		s.video, s.audio, s.listener, s.input = nil, nil, nil, nil
		s.handlerMu.Unlock()
		return err
	}

	s.started = true
	return nil
}

// Stop tears down the engine connection and clears the installed handlers.
// Safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.client.Stop()
	s.started = false

	s.handlerMu.Lock()
	s.video, s.audio, s.listener, s.input = nil, nil, nil, nil
	s.handlerMu.Unlock()
}

// Release drops the process-wide singleton gate. Call once after the
// Session is no longer needed (typically via defer immediately after New).
func (s *Session) Release() {
	s.Stop()
	acquired.Store(false)
}

// RequestIDR asks the engine for a fresh keyframe: invoked whenever the
// video decoder returns DecodeNeedsIdr.
func (s *Session) RequestIDR() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.client.RequestIDRFrame()
	}
}

// --- Input injection ---------------------------------------------------

func (s *Session) eventSendErr(err error) error {
	if err == nil {
		return nil
	}
	wrapped := sunshine.NewEventSendError(err)
	s.handlerMu.Lock()
	h := s.input
	s.handlerMu.Unlock()
	if h != nil {
		h.InputRejected(wrapped)
	}
	return wrapped
}

func (s *Session) SendMouseMove(dx, dy int16) error {
	return s.eventSendErr(s.client.SendMouseMove(dx, dy))
}

func (s *Session) SendMouseButton(action uint8, button int) error {
	return s.eventSendErr(s.client.SendMouseButton(action, button))
}

func (s *Session) SendMousePosition(x, y, refW, refH int16) error {
	return s.eventSendErr(s.client.SendMousePosition(x, y, refW, refH))
}

func (s *Session) SendScroll(dy int16) error {
	return s.eventSendErr(s.client.SendScroll(dy))
}

func (s *Session) SendHScroll(dx int16) error {
	return s.eventSendErr(s.client.SendHScroll(dx))
}

func (s *Session) SendKeyboardEventNonStandard(keycode int16, action, modifiers, flags uint8) error {
	return s.eventSendErr(s.client.SendKeyboard(keycode, action, modifiers, flags))
}

func (s *Session) SendText(utf8 string) error {
	return s.eventSendErr(s.client.SendUTF8Text(utf8))
}

func (s *Session) SendControllerArrival(controllerNumber uint8, activeGamepadMask uint16, controllerType uint8, supportedButtons uint32, capabilities uint16) error {
	return s.eventSendErr(s.client.SendControllerArrival(controllerNumber, activeGamepadMask, controllerType, supportedButtons, capabilities))
}

func (s *Session) SendControllerState(controllerNumber, activeGamepadMask int16, buttonFlags int, leftTrigger, rightTrigger uint8, leftStickX, leftStickY, rightStickX, rightStickY int16) error {
	return s.eventSendErr(s.client.SendMultiController(controllerNumber, activeGamepadMask, buttonFlags, leftTrigger, rightTrigger, leftStickX, leftStickY, rightStickX, rightStickY))
}

func (s *Session) SendTouch(eventType uint8, pointerID uint32, x, y, pressure, contactMajor, contactMinor float32, rotation uint16) error {
	return s.eventSendErr(s.client.SendTouch(eventType, pointerID, x, y, pressure, contactMajor, contactMinor, rotation))
}
