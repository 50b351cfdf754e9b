package webrtcbridge

import (
	"encoding/binary"
	"testing"
)

type fakeDispatcher struct {
	moves      [][2]int16
	buttons    []struct {
		pressed bool
		button  uint8
	}
	positions []struct{ x, y, refW, refH uint16 }
	scrolls   []int16
	keys      []struct {
		pressed   bool
		modifiers uint8
		keycode   uint16
	}
	texts      []string
	controller [][]byte
}

func (f *fakeDispatcher) MouseMove(dx, dy int16) { f.moves = append(f.moves, [2]int16{dx, dy}) }
func (f *fakeDispatcher) MouseButton(pressed bool, button uint8) {
	f.buttons = append(f.buttons, struct {
		pressed bool
		button  uint8
	}{pressed, button})
}
func (f *fakeDispatcher) MousePosition(x, y, refW, refH uint16) {
	f.positions = append(f.positions, struct{ x, y, refW, refH uint16 }{x, y, refW, refH})
}
func (f *fakeDispatcher) MouseScroll(dy int16) { f.scrolls = append(f.scrolls, dy) }
func (f *fakeDispatcher) KeyEvent(pressed bool, modifiers uint8, keycode uint16) {
	f.keys = append(f.keys, struct {
		pressed   bool
		modifiers uint8
		keycode   uint16
	}{pressed, modifiers, keycode})
}
func (f *fakeDispatcher) Text(utf8 string)            { f.texts = append(f.texts, utf8) }
func (f *fakeDispatcher) ControllerFrame(data []byte) { f.controller = append(f.controller, data) }

func newTestSession(authorized bool) (*Session, *fakeDispatcher) {
	dispatcher := &fakeDispatcher{}
	bridge := &Bridge{registry: newPeerRegistry(), input: dispatcher}
	peer := bridge.registry.AddSpectator()
	if authorized {
		bridge.registry.ClaimController(peer.ID)
	}
	return &Session{bridge: bridge, peerID: peer.ID}, dispatcher
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func TestHandleMouse_MoveDispatchesDeltas(t *testing.T) {
	s, d := newTestSession(true)
	frame := append([]byte{mouseMove}, append(be16(uint16(int16(-5))), be16(uint16(int16(10)))...)...)
	s.handleMouse(frame)

	if len(d.moves) != 1 || d.moves[0][0] != -5 || d.moves[0][1] != 10 {
		t.Fatalf("unexpected moves: %+v", d.moves)
	}
}

func TestHandleMouse_ButtonDispatchesPressedAndButton(t *testing.T) {
	s, d := newTestSession(true)
	frame := []byte{mouseButton, 1, 2}
	s.handleMouse(frame)

	if len(d.buttons) != 1 || !d.buttons[0].pressed || d.buttons[0].button != 2 {
		t.Fatalf("unexpected buttons: %+v", d.buttons)
	}
}

func TestHandleMouse_PositionDispatchesAllFourFields(t *testing.T) {
	s, d := newTestSession(true)
	frame := append([]byte{mousePosition}, be16(100)...)
	frame = append(frame, be16(200)...)
	frame = append(frame, be16(1920)...)
	frame = append(frame, be16(1080)...)
	s.handleMouse(frame)

	if len(d.positions) != 1 {
		t.Fatalf("expected one position event, got %d", len(d.positions))
	}
	p := d.positions[0]
	if p.x != 100 || p.y != 200 || p.refW != 1920 || p.refH != 1080 {
		t.Fatalf("unexpected position: %+v", p)
	}
}

func TestHandleMouse_ScrollDispatchesDelta(t *testing.T) {
	s, d := newTestSession(true)
	frame := append([]byte{mouseScroll}, be16(uint16(int16(-3)))...)
	s.handleMouse(frame)

	if len(d.scrolls) != 1 || d.scrolls[0] != -3 {
		t.Fatalf("unexpected scrolls: %+v", d.scrolls)
	}
}

func TestHandleMouse_UnauthorizedPeerIsDropped(t *testing.T) {
	s, d := newTestSession(false)
	frame := []byte{mouseButton, 1, 1}
	s.handleMouse(frame)

	if len(d.buttons) != 0 {
		t.Fatalf("expected an unauthorized peer's input to be dropped, got %+v", d.buttons)
	}
}

func TestHandleMouse_TruncatedPayloadIsDropped(t *testing.T) {
	s, d := newTestSession(true)
	s.handleMouse([]byte{mouseMove, 0x01}) // too short for dx/dy

	if len(d.moves) != 0 {
		t.Fatalf("expected a truncated move frame to be dropped, got %+v", d.moves)
	}
}

func TestHandleKeyboard_KeyDispatchesPressedModifiersAndKeycode(t *testing.T) {
	s, d := newTestSession(true)
	frame := append([]byte{keyboardKey, 1, 0x03}, be16(65)...)
	s.handleKeyboard(frame)

	if len(d.keys) != 1 {
		t.Fatalf("expected one key event, got %d", len(d.keys))
	}
	k := d.keys[0]
	if !k.pressed || k.modifiers != 0x03 || k.keycode != 65 {
		t.Fatalf("unexpected key event: %+v", k)
	}
}

func TestHandleKeyboard_TextDispatchesUTF8Payload(t *testing.T) {
	s, d := newTestSession(true)
	frame := append([]byte{keyboardText}, []byte("hello")...)
	s.handleKeyboard(frame)

	if len(d.texts) != 1 || d.texts[0] != "hello" {
		t.Fatalf("unexpected texts: %+v", d.texts)
	}
}

func TestHandleKeyboard_UnauthorizedPeerIsDropped(t *testing.T) {
	s, d := newTestSession(false)
	s.handleKeyboard(append([]byte{keyboardText}, []byte("hi")...))

	if len(d.texts) != 0 {
		t.Fatalf("expected unauthorized text input to be dropped, got %+v", d.texts)
	}
}

func TestHandleController_ForwardsRawFrameWhenAuthorized(t *testing.T) {
	s, d := newTestSession(true)
	frame := []byte{0, 1, 2, 3}
	s.handleController(frame)

	if len(d.controller) != 1 || string(d.controller[0]) != string(frame) {
		t.Fatalf("expected the raw controller frame forwarded, got %+v", d.controller)
	}
}

func TestHandleController_UnauthorizedPeerIsDropped(t *testing.T) {
	s, d := newTestSession(false)
	s.handleController([]byte{0, 1, 2, 3})

	if len(d.controller) != 0 {
		t.Fatalf("expected unauthorized controller input to be dropped, got %+v", d.controller)
	}
}
