package session

import (
	"errors"
	"testing"

	"github.com/nimbusdeck/moonlight-go/internal/moonlightcore/limelight"
	"github.com/nimbusdeck/moonlight-go/internal/sunshine"
)

func TestNew_SecondAcquireFailsWithInstanceAlreadyExists(t *testing.T) {
	acquired.Store(false)
	defer acquired.Store(false)

	first, err := New()
	if err != nil {
		t.Fatalf("first New() failed: %v", err)
	}
	defer first.Release()

	_, err = New()
	if !sunshine.IsKind(err, sunshine.KindInstanceAlreadyExists) {
		t.Fatalf("expected InstanceAlreadyExists, got %v", err)
	}
}

func TestRelease_AllowsReacquire(t *testing.T) {
	acquired.Store(false)
	defer acquired.Store(false)

	s, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	s.Release()

	again, err := New()
	if err != nil {
		t.Fatalf("expected re-acquire to succeed after Release, got %v", err)
	}
	again.Release()
}

func TestStop_IsIdempotent(t *testing.T) {
	acquired.Store(false)
	defer acquired.Store(false)

	s, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Release()

	s.Stop()
	s.Stop()
}

type fakeVideoDecoder struct {
	submitted []*limelight.DecodeUnit
	verdict   DecodeResult
}

func (f *fakeVideoDecoder) Setup(limelight.VideoFormat, int, int, int, int) error { return nil }

func (f *fakeVideoDecoder) SubmitDecodeUnit(unit *limelight.DecodeUnit) DecodeResult {
	f.submitted = append(f.submitted, unit)
	return f.verdict
}

func TestDecoderBridge_DispatchesToVideoDecoder(t *testing.T) {
	s := &Session{}
	video := &fakeVideoDecoder{}
	s.video = video

	bridge := (*decoderBridge)(s)
	unit := &limelight.DecodeUnit{FrameNumber: 7}
	if rc := bridge.SubmitDecodeUnit(unit); rc != 0 {
		t.Fatalf("expected SubmitDecodeUnit to return 0, got %d", rc)
	}
	if len(video.submitted) != 1 || video.submitted[0] != unit {
		t.Fatalf("expected decode unit forwarded to the video decoder")
	}
}

func TestDecoderBridge_NoDecoderInstalledIsANoop(t *testing.T) {
	s := &Session{}
	bridge := (*decoderBridge)(s)
	if rc := bridge.SubmitDecodeUnit(&limelight.DecodeUnit{}); rc != 0 {
		t.Fatalf("expected 0 with no decoder installed, got %d", rc)
	}
}

type fakeInputHandler struct{ lastErr error }

func (f *fakeInputHandler) InputRejected(err error) { f.lastErr = err }

func TestEventSendErr_WrapsCauseAndNotifiesHandler(t *testing.T) {
	s := &Session{}
	handler := &fakeInputHandler{}
	s.input = handler

	cause := errors.New("not connected")
	wrapped := s.eventSendErr(cause)

	if !sunshine.IsKind(wrapped, sunshine.KindEventSendError) {
		t.Fatalf("expected EventSendError, got %v", wrapped)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected wrapped error to unwrap to the original cause")
	}
	if handler.lastErr != wrapped {
		t.Fatalf("expected input handler to be notified with the wrapped error")
	}
}

func TestEventSendErr_NilCauseIsNil(t *testing.T) {
	s := &Session{}
	if err := s.eventSendErr(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
