package httpapi

import (
	"encoding/binary"

	"github.com/nimbusdeck/moonlight-go/internal/logging"
	"github.com/nimbusdeck/moonlight-go/internal/moonlightcore/limelight"
	"github.com/nimbusdeck/moonlight-go/internal/session"
)

// Controller frame types carried over the webrtcbridge "controller" data
// channel, matching internal/moonlightcore/limelight.Client's arrival/state
// parameter lists rather than inventing a second encoding:
//
//	[type:u8] [payload...]
//	  type=0: arrival  [number:u8][activeGamepadMask:u16][type:u8][supportedButtons:u32][capabilities:u16]
//	  type=1: state    [number:i16][activeGamepadMask:i16][buttonFlags:u32][leftTrigger:u8][rightTrigger:u8][lx:i16][ly:i16][rx:i16][ry:i16]
const (
	controllerArrival = 0
	controllerState   = 1
)

// sessionInputDispatcher implements webrtcbridge.InputDispatcher by
// translating parsed wire events into internal/session.Session calls. It is
// the single authorized input source the engine sees, regardless of how
// many viewers are attached to the bridge.
type sessionInputDispatcher struct {
	sess *session.Session
}

func (d *sessionInputDispatcher) MouseMove(dx, dy int16) {
	if err := d.sess.SendMouseMove(dx, dy); err != nil {
		log.Warn("mouse move rejected", logging.KeyError, err)
	}
}

func (d *sessionInputDispatcher) MouseButton(pressed bool, button uint8) {
	action := uint8(limelight.MouseActionRelease)
	if pressed {
		action = uint8(limelight.MouseActionPress)
	}
	if err := d.sess.SendMouseButton(action, int(button)); err != nil {
		log.Warn("mouse button rejected", logging.KeyError, err)
	}
}

func (d *sessionInputDispatcher) MousePosition(x, y, refW, refH uint16) {
	if err := d.sess.SendMousePosition(int16(x), int16(y), int16(refW), int16(refH)); err != nil {
		log.Warn("mouse position rejected", logging.KeyError, err)
	}
}

func (d *sessionInputDispatcher) MouseScroll(dy int16) {
	if err := d.sess.SendScroll(dy); err != nil {
		log.Warn("mouse scroll rejected", logging.KeyError, err)
	}
}

func (d *sessionInputDispatcher) KeyEvent(pressed bool, modifiers uint8, keycode uint16) {
	action := uint8(limelight.KeyActionUp)
	if pressed {
		action = uint8(limelight.KeyActionDown)
	}
	if err := d.sess.SendKeyboardEventNonStandard(int16(keycode), action, modifiers, 0); err != nil {
		log.Warn("key event rejected", logging.KeyError, err)
	}
}

func (d *sessionInputDispatcher) Text(utf8 string) {
	if err := d.sess.SendText(utf8); err != nil {
		log.Warn("text input rejected", logging.KeyError, err)
	}
}

func (d *sessionInputDispatcher) ControllerFrame(data []byte) {
	if len(data) < 1 {
		return
	}
	payload := data[1:]
	switch data[0] {
	case controllerArrival:
		if len(payload) < 10 {
			return
		}
		number := payload[0]
		mask := binary.BigEndian.Uint16(payload[1:3])
		ctype := payload[3]
		buttons := binary.BigEndian.Uint32(payload[4:8])
		caps := binary.BigEndian.Uint16(payload[8:10])
		if err := d.sess.SendControllerArrival(number, mask, ctype, buttons, caps); err != nil {
			log.Warn("controller arrival rejected", logging.KeyError, err)
		}
	case controllerState:
		if len(payload) < 16 {
			return
		}
		number := int16(binary.BigEndian.Uint16(payload[0:2]))
		mask := int16(binary.BigEndian.Uint16(payload[2:4]))
		buttonFlags := int(binary.BigEndian.Uint32(payload[4:8]))
		leftTrigger := payload[8]
		rightTrigger := payload[9]
		lx := int16(binary.BigEndian.Uint16(payload[10:12]))
		ly := int16(binary.BigEndian.Uint16(payload[12:14]))
		rx := int16(binary.BigEndian.Uint16(payload[14:16]))
		var ry int16
		if len(payload) >= 18 {
			ry = int16(binary.BigEndian.Uint16(payload[16:18]))
		}
		if err := d.sess.SendControllerState(number, mask, buttonFlags, leftTrigger, rightTrigger, lx, ly, rx, ry); err != nil {
			log.Warn("controller state rejected", logging.KeyError, err)
		}
	default:
		log.Warn("unknown controller frame type", "type", data[0])
	}
}
