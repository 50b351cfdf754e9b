package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/nimbusdeck/moonlight-go/internal/sunshine"
	"github.com/nimbusdeck/moonlight-go/internal/webrtcbridge"
)

func TestWriteError_MapsNotPairedToUnauthorized(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, &sunshine.Error{Kind: sunshine.KindNotPaired, Message: "not paired"})
	if w.Code != 401 {
		t.Fatalf("expected 401 for NotPaired, got %d", w.Code)
	}
}

func TestWriteError_MapsConnectionAlreadyExistsToConflict(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, sunshine.NewConnectionAlreadyExists())
	if w.Code != 409 {
		t.Fatalf("expected 409 for ConnectionAlreadyExists, got %d", w.Code)
	}
}

func TestWriteError_UnknownErrorIsInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, errStub("boom"))
	if w.Code != 500 {
		t.Fatalf("expected 500 for a plain error, got %d", w.Code)
	}
}

type errStub string

func (e errStub) Error() string { return string(e) }

func TestCodecFromName_MapsKnownNamesAndDefaultsToH264(t *testing.T) {
	cases := map[string]webrtcbridge.Codec{
		"av1":     webrtcbridge.CodecAV1,
		"h265":    webrtcbridge.CodecH265,
		"hevc":    webrtcbridge.CodecH265,
		"h264":    webrtcbridge.CodecH264,
		"unknown": webrtcbridge.CodecH264,
	}
	for name, want := range cases {
		if got := codecFromName(name); got != want {
			t.Fatalf("codecFromName(%q) = %v, want %v", name, got, want)
		}
	}
}
