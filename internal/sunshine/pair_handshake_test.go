package sunshine

import (
	"context"
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"hash"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
)

// mockHost is a faithful-enough five-phase pairing host: it derives its own
// aes_key from the salt and its own configured PIN, stores the
// server_challenge and the client certificate signature it actually
// received, and only resolves whether the client's phase-3 hash was correct
// once phase 4 hands it the missing client_secret — exactly the deferred
// check a real GameStream/Sunshine host performs. Nothing here reuses a
// value the client under test computed; an incorrect client never reaches
// "paired".
type mockHost struct {
	mu sync.Mutex

	pin      string
	modern   bool
	identity *Identity

	salt            []byte
	aesKey          []byte
	clientCertSig   []byte
	serverChallenge []byte
	serverSecret    []byte
	clientHash      []byte

	paired       bool
	unpairCalled bool
}

func newMockHost(t *testing.T, pin string, modern bool) *mockHost {
	t.Helper()
	id, _, _, err := generateIdentity()
	if err != nil {
		t.Fatalf("generateIdentity: %v", err)
	}
	return &mockHost{pin: pin, modern: modern, identity: id}
}

func (h *mockHost) newHash() hash.Hash {
	if h.modern {
		return sha256.New()
	}
	return sha1.New()
}

func (h *mockHost) handler(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	q := r.URL.Query()
	switch {
	case r.URL.Path == "/unpair":
		h.unpairCalled = true
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
	case r.URL.Path == "/serverinfo":
		codecSupport := 0
		if h.modern {
			codecSupport = 1
		}
		pairStatus := 0
		if h.paired {
			pairStatus = 1
		}
		fmt.Fprintf(w, `<root status_code="200"><ServerCodecModeSupport>%d</ServerCodecModeSupport><PairStatus>%d</PairStatus></root>`, codecSupport, pairStatus)
	case q.Get("phrase") == "pairchallenge":
		fmt.Fprint(w, `<root status_code="200"><paired>1</paired></root>`)
	case q.Get("salt") != "" && q.Get("clientcert") != "":
		h.handleGetServerCert(w, q)
	case q.Get("clientchallenge") != "":
		h.handleClientChallenge(w, q)
	case q.Get("serverchallengeresp") != "":
		h.handleServerChallengeResp(w, q)
	case q.Get("clientpairingsecret") != "":
		h.handleClientPairingSecret(w, q)
	default:
		w.Write([]byte(`<root status_code="404"></root>`))
	}
}

func (h *mockHost) handleGetServerCert(w http.ResponseWriter, q url.Values) {
	salt, err := hex.DecodeString(q.Get("salt"))
	if err != nil {
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}
	h.salt = salt
	h.aesKey = derivePairingKey(h.pin, salt, h.modern)

	certPEM, err := hex.DecodeString(q.Get("clientcert"))
	if err != nil {
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}
	clientCert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}
	h.clientCertSig = clientCert.Signature

	fmt.Fprintf(w, `<root status_code="200"><paired>1</paired><plaincert>%s</plaincert></root>`,
		hex.EncodeToString(h.identity.CertPEM()))
}

func (h *mockHost) handleClientChallenge(w http.ResponseWriter, q url.Values) {
	encChallenge, err := hex.DecodeString(q.Get("clientchallenge"))
	if err != nil {
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}
	clientChallenge, err := aesECBDecrypt(h.aesKey, encChallenge)
	if err != nil {
		// Wrong PIN on the client side: the host can't make sense of the
		// challenge it was handed, so it rejects outright, same as a real
		// host would.
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}

	serverChallenge := make([]byte, pairChallengeLength)
	if _, err := rand.Read(serverChallenge); err != nil {
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}
	h.serverChallenge = serverChallenge

	serverSecret := make([]byte, pairSecretLength)
	if _, err := rand.Read(serverSecret); err != nil {
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}
	h.serverSecret = serverSecret

	hh := h.newHash()
	hh.Write(clientChallenge)
	hh.Write(h.identity.Cert.Signature)
	hh.Write(serverSecret)
	serverResponse := hh.Sum(nil)

	payload := append(append([]byte{}, serverChallenge...), serverResponse...)
	encResp, err := aesECBEncrypt(h.aesKey, payload)
	if err != nil {
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}
	fmt.Fprintf(w, `<root status_code="200"><paired>1</paired><challengeresponse>%s</challengeresponse></root>`,
		hex.EncodeToString(encResp))
}

func (h *mockHost) handleServerChallengeResp(w http.ResponseWriter, q url.Values) {
	encHash, err := hex.DecodeString(q.Get("serverchallengeresp"))
	if err != nil {
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}
	clientHash, err := aesECBDecrypt(h.aesKey, encHash)
	if err != nil {
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}
	// The host cannot validate clientHash yet: it doesn't learn client_secret
	// until phase 4. It stores it and always reports success here, same as
	// the real protocol's deferred check.
	h.clientHash = clientHash

	secretHash := sha256.Sum256(h.serverSecret)
	sig, err := rsa.SignPKCS1v15(rand.Reader, h.identity.Key, crypto.SHA256, secretHash[:])
	if err != nil {
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}
	pairingSecret := append(append([]byte{}, h.serverSecret...), sig...)
	fmt.Fprintf(w, `<root status_code="200"><paired>1</paired><pairingsecret>%s</pairingsecret></root>`,
		hex.EncodeToString(pairingSecret))
}

func (h *mockHost) handleClientPairingSecret(w http.ResponseWriter, q url.Values) {
	data, err := hex.DecodeString(q.Get("clientpairingsecret"))
	if err != nil || len(data) <= pairSecretLength {
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}
	clientSecret := data[:pairSecretLength]

	hh := h.newHash()
	hh.Write(h.serverChallenge)
	hh.Write(h.clientCertSig)
	hh.Write(clientSecret)
	expected := hh.Sum(nil)

	if !hmac.Equal(expected, h.clientHash) {
		fmt.Fprint(w, `<root status_code="200"><paired>0</paired></root>`)
		return
	}
	h.paired = true
	fmt.Fprint(w, `<root status_code="200"><paired>1</paired></root>`)
}

// startMockHost wires one plain-HTTP listener (phases 1-4, unpair,
// serverinfo) and one mTLS listener presenting the host's own identity
// (phase 5, pairchallenge) against the same mockHost state.
func startMockHost(t *testing.T, h *mockHost) (plainPort, tlsPort int) {
	t.Helper()

	plain := httptest.NewServer(http.HandlerFunc(h.handler))
	t.Cleanup(plain.Close)

	tlsSrv := httptest.NewUnstartedServer(http.HandlerFunc(h.handler))
	tlsSrv.TLS = &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{h.identity.DER},
			PrivateKey:  h.identity.Key,
		}},
		ClientAuth: tls.RequireAnyClientCert,
	}
	tlsSrv.StartTLS()
	t.Cleanup(tlsSrv.Close)

	return mustPort(t, plain.URL), mustPort(t, tlsSrv.URL)
}

func mustPort(t *testing.T, rawURL string) int {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	_, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host:port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return port
}

func TestPair_FiveHandshakeRoundTripSucceedsAgainstFaithfulMockHost(t *testing.T) {
	for _, modern := range []bool{true, false} {
		host := newMockHost(t, "1234", modern)
		plainPort, tlsPort := startMockHost(t, host)

		id, err := LoadOrCreateIdentity(t.TempDir())
		if err != nil {
			t.Fatalf("LoadOrCreateIdentity: %v", err)
		}
		c := NewClient("127.0.0.1", plainPort, tlsPort, id)

		cert, err := c.Pair(context.Background(), "1234", "test-device")
		if err != nil {
			t.Fatalf("Pair failed (modern=%v): %v", modern, err)
		}
		if cert == nil {
			t.Fatalf("expected a non-nil server certificate (modern=%v)", modern)
		}
		if !host.paired {
			t.Fatalf("expected the mock host to record paired=true (modern=%v)", modern)
		}
		if host.unpairCalled {
			t.Fatalf("did not expect unpair to be called on a successful pairing (modern=%v)", modern)
		}
	}
}

func TestPair_WrongPINFailsWithPairingAuthFailedAndCallsUnpair(t *testing.T) {
	host := newMockHost(t, "1234", true)
	plainPort, tlsPort := startMockHost(t, host)

	id, err := LoadOrCreateIdentity(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity: %v", err)
	}
	c := NewClient("127.0.0.1", plainPort, tlsPort, id)

	_, err = c.Pair(context.Background(), "0000", "test-device")
	if err == nil {
		t.Fatalf("expected pairing with the wrong PIN to fail")
	}
	if !IsKind(err, KindPairingAuthFailed) {
		t.Fatalf("expected KindPairingAuthFailed, got %v", err)
	}
	if !host.unpairCalled {
		t.Fatalf("expected the client to call unpair after a failed pairing")
	}
	if host.paired {
		t.Fatalf("expected the mock host to never record paired=true")
	}
}
