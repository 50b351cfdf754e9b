package sunshine

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
)

func newTestClient(t *testing.T, host string, port int) *Client {
	t.Helper()
	id, err := LoadOrCreateIdentity(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity failed: %v", err)
	}
	return NewClient(host, port, 0, id)
}

func testServerAddr(t *testing.T, srv *httptest.Server) (string, int) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host:port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return host, port
}

func TestServerInfo_ParsesFieldsFromHTTPEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<root status_code="200">
	<hostname>test-host</hostname>
	<appversion>7.1.431.0</appversion>
	<PairStatus>0</PairStatus>
	<currentgame>0</currentgame>
	<ServerCodecModeSupport>259</ServerCodecModeSupport>
	<ExternalPort>47989</ExternalPort>
</root>`))
	}))
	defer srv.Close()

	host, port := testServerAddr(t, srv)
	c := newTestClient(t, host, port)

	info, err := c.ServerInfo(context.Background())
	if err != nil {
		t.Fatalf("ServerInfo failed: %v", err)
	}
	if info.Hostname != "test-host" {
		t.Fatalf("expected hostname test-host, got %q", info.Hostname)
	}
	if info.Paired() {
		t.Fatalf("expected PairStatus=0 to report Paired()=false")
	}
	if !info.usesModernPairing() {
		t.Fatalf("expected ServerCodecModeSupport bit 0 set to report modern pairing")
	}
	if info.ExternalPort != 47989 {
		t.Fatalf("expected ExternalPort 47989, got %d", info.ExternalPort)
	}
}

func TestServerInfo_LegacyPairingWhenBitZeroUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<root status_code="200"><ServerCodecModeSupport>258</ServerCodecModeSupport></root>`))
	}))
	defer srv.Close()

	host, port := testServerAddr(t, srv)
	c := newTestClient(t, host, port)

	info, err := c.ServerInfo(context.Background())
	if err != nil {
		t.Fatalf("ServerInfo failed: %v", err)
	}
	if info.usesModernPairing() {
		t.Fatalf("expected bit 0 unset (258 is even) to report legacy pairing")
	}
}

func TestServerInfo_NonOKStatusReturnsHostRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<root status_code="401" status_message="unauthorized"></root>`))
	}))
	defer srv.Close()

	host, port := testServerAddr(t, srv)
	c := newTestClient(t, host, port)

	_, err := c.ServerInfo(context.Background())
	if !IsKind(err, KindHostRejected) {
		t.Fatalf("expected HostRejected, got %v", err)
	}
}

func TestAppList_WithoutPinnedCertificateReturnsNotPaired(t *testing.T) {
	c := newTestClient(t, "127.0.0.1", 1)
	_, err := c.AppList(context.Background())
	if !IsKind(err, KindNotPaired) {
		t.Fatalf("expected NotPaired before a certificate is pinned, got %v", err)
	}
}

func TestAppList_ParsesRepeatedAppElements(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<root status_code="200">
	<App><ID>1</ID><AppTitle>Game A</AppTitle><IsHdrSupported>1</IsHdrSupported></App>
	<App><ID>2</ID><AppTitle>Game B</AppTitle><IsHdrSupported>0</IsHdrSupported></App>
</root>`))
	}))
	defer srv.Close()

	host, port := testServerAddr(t, srv)
	c := newTestClient(t, host, port)
	c.httpsClient = srv.Client()
	c.httpsPort = port

	apps, err := c.AppList(context.Background())
	if err != nil {
		t.Fatalf("AppList failed: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("expected 2 apps, got %d", len(apps))
	}
	if apps[0].ID != 1 || apps[0].Name != "Game A" || !apps[0].IsHDRSupported {
		t.Fatalf("unexpected first app: %+v", apps[0])
	}
	if apps[1].ID != 2 || apps[1].IsHDRSupported {
		t.Fatalf("unexpected second app: %+v", apps[1])
	}
}

func TestUniqueID_MatchesIdentity(t *testing.T) {
	c := newTestClient(t, "127.0.0.1", 1)
	if c.UniqueID() == "" {
		t.Fatalf("expected a non-empty UniqueID")
	}
}
