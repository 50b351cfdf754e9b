package sunshine

import "testing"

func TestParseRoot_StatusCodeAndChildren(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="utf-8"?>
<root status_code="200">
	<hostname>living-room-pc</hostname>
	<appversion>7.1.431.0</appversion>
	<ServerCodecModeSupport>259</ServerCodecModeSupport>
</root>`)

	r, err := parseRoot(body)
	if err != nil {
		t.Fatalf("parseRoot failed: %v", err)
	}
	if err := r.checkStatus(); err != nil {
		t.Fatalf("expected status 200 to pass checkStatus, got %v", err)
	}

	hostname, ok := r.child("hostname")
	if !ok || hostname != "living-room-pc" {
		t.Fatalf("expected hostname child, got %q ok=%v", hostname, ok)
	}

	codecSupport, ok := r.childInt("ServerCodecModeSupport")
	if !ok || codecSupport != 259 {
		t.Fatalf("expected ServerCodecModeSupport=259, got %d ok=%v", codecSupport, ok)
	}
}

func TestParseRoot_NonOkStatusReturnsHostRejected(t *testing.T) {
	body := []byte(`<root status_code="400" status_message="pin incorrect"></root>`)

	r, err := parseRoot(body)
	if err != nil {
		t.Fatalf("parseRoot failed: %v", err)
	}
	err = r.checkStatus()
	if !IsKind(err, KindHostRejected) {
		t.Fatalf("expected HostRejected, got %v", err)
	}
	se := err.(*Error)
	if se.Code != 400 || se.Message != "pin incorrect" {
		t.Fatalf("expected code=400 message=%q, got code=%d message=%q", "pin incorrect", se.Code, se.Message)
	}
}

func TestParseRoot_MalformedXMLReturnsParseError(t *testing.T) {
	_, err := parseRoot([]byte(`<root status_code="200">`))
	if !IsKind(err, KindParse) {
		t.Fatalf("expected Parse error, got %v", err)
	}
}

func TestRootResponse_ChildAttr(t *testing.T) {
	body := []byte(`<root status_code="200">
	<App id="123"></App>
</root>`)
	r, err := parseRoot(body)
	if err != nil {
		t.Fatalf("parseRoot failed: %v", err)
	}
	val, ok := r.childAttr("App", "id")
	if !ok || val != "123" {
		t.Fatalf("expected id=123, got %q ok=%v", val, ok)
	}
}

func TestRootResponse_ChildrenAll_PreservesOrder(t *testing.T) {
	body := []byte(`<root status_code="200">
	<App><AppTitle>Game A</AppTitle></App>
	<App><AppTitle>Game B</AppTitle></App>
	<App><AppTitle>Game C</AppTitle></App>
</root>`)
	r, err := parseRoot(body)
	if err != nil {
		t.Fatalf("parseRoot failed: %v", err)
	}
	apps := r.childrenAll("App")
	if len(apps) != 3 {
		t.Fatalf("expected 3 App children, got %d", len(apps))
	}
}

func TestRootResponse_MissingChildIsNotOk(t *testing.T) {
	r := &rootResponse{}
	if _, ok := r.child("nonexistent"); ok {
		t.Fatalf("expected ok=false for missing child")
	}
	if _, ok := r.childInt("nonexistent"); ok {
		t.Fatalf("expected ok=false for missing int child")
	}
}
