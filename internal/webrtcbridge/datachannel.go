package webrtcbridge

import (
	"encoding/binary"

	"github.com/pion/webrtc/v4"

	"github.com/nimbusdeck/moonlight-go/internal/logging"
)

// Binary framing for the mouse/keyboard data channels, per the wire format
// this bridge exposes to browser clients:
//
//	mouse:    [type:u8] [payload...]
//	  type=0: move         [dx:i16][dy:i16]
//	  type=1: button       [pressed:u8][button:u8]
//	  type=2: position     [x:u16][y:u16][ref_w:u16][ref_h:u16]
//	  type=3: scroll       [dy:i16]
//	keyboard: [type:u8] [payload...]
//	  type=0: key          [pressed:u8][modifiers:u8][keycode:u16]
//	  type=1: text         [utf8 bytes]
const (
	mouseMove     = 0
	mouseButton   = 1
	mousePosition = 2
	mouseScroll   = 3

	keyboardKey  = 0
	keyboardText = 1
)

var (
	dcOrderedReliable = webrtc.DataChannelInit{}
)

func unorderedUnreliableChannel() *webrtc.DataChannelInit {
	ordered := false
	maxRetransmits := uint16(0)
	return &webrtc.DataChannelInit{Ordered: &ordered, MaxRetransmits: &maxRetransmits}
}

// setupDataChannels creates the mouse/keyboard/controller channels and
// wires their OnMessage handlers to parse and forward to the bridge's
// InputDispatcher, gated by whether this viewer currently holds control.
func (s *Session) setupDataChannels() {
	mouse, err := s.pc.CreateDataChannel("mouse", unorderedUnreliableChannel())
	if err != nil {
		log.Warn("create mouse data channel failed", "peer", s.peerID, logging.KeyError, err)
	} else {
		mouse.OnMessage(func(msg webrtc.DataChannelMessage) { s.handleMouse(msg.Data) })
	}

	keyboard, err := s.pc.CreateDataChannel("keyboard", &dcOrderedReliable)
	if err != nil {
		log.Warn("create keyboard data channel failed", "peer", s.peerID, logging.KeyError, err)
	} else {
		keyboard.OnMessage(func(msg webrtc.DataChannelMessage) { s.handleKeyboard(msg.Data) })
	}

	controller, err := s.pc.CreateDataChannel("controller", unorderedUnreliableChannel())
	if err != nil {
		log.Warn("create controller data channel failed", "peer", s.peerID, logging.KeyError, err)
	} else {
		controller.OnMessage(func(msg webrtc.DataChannelMessage) { s.handleController(msg.Data) })
	}
}

func (s *Session) authorized() bool {
	return s.bridge.registry.CanSendInput(s.peerID)
}

func (s *Session) handleMouse(data []byte) {
	if !s.authorized() || len(data) < 1 {
		return
	}
	dispatcher := s.bridge.input
	if dispatcher == nil {
		return
	}

	payload := data[1:]
	switch data[0] {
	case mouseMove:
		if len(payload) < 4 {
			return
		}
		dx := int16(binary.BigEndian.Uint16(payload[0:2]))
		dy := int16(binary.BigEndian.Uint16(payload[2:4]))
		dispatcher.MouseMove(dx, dy)
	case mouseButton:
		if len(payload) < 2 {
			return
		}
		dispatcher.MouseButton(payload[0] != 0, payload[1])
	case mousePosition:
		if len(payload) < 8 {
			return
		}
		x := binary.BigEndian.Uint16(payload[0:2])
		y := binary.BigEndian.Uint16(payload[2:4])
		refW := binary.BigEndian.Uint16(payload[4:6])
		refH := binary.BigEndian.Uint16(payload[6:8])
		dispatcher.MousePosition(x, y, refW, refH)
	case mouseScroll:
		if len(payload) < 2 {
			return
		}
		dy := int16(binary.BigEndian.Uint16(payload[0:2]))
		dispatcher.MouseScroll(dy)
	default:
		log.Warn("unknown mouse event type", "peer", s.peerID, "type", data[0])
	}
}

func (s *Session) handleKeyboard(data []byte) {
	if !s.authorized() || len(data) < 1 {
		return
	}
	dispatcher := s.bridge.input
	if dispatcher == nil {
		return
	}

	payload := data[1:]
	switch data[0] {
	case keyboardKey:
		if len(payload) < 4 {
			return
		}
		pressed := payload[0] != 0
		modifiers := payload[1]
		keycode := binary.BigEndian.Uint16(payload[2:4])
		dispatcher.KeyEvent(pressed, modifiers, keycode)
	case keyboardText:
		dispatcher.Text(string(payload))
	default:
		log.Warn("unknown keyboard event type", "peer", s.peerID, "type", data[0])
	}
}

// handleController forwards raw controller arrival/state/rumble-ack frames
// straight to the dispatcher: the engine-facing Send* calls already accept
// these fields individually, so the frame layout mirrors
// internal/moonlightcore/limelight.Client's SendControllerArrival/
// SendMultiController parameters rather than inventing a second encoding.
func (s *Session) handleController(data []byte) {
	if !s.authorized() || len(data) < 1 {
		return
	}
	if s.bridge.input == nil {
		return
	}
	s.bridge.input.ControllerFrame(data)
}
