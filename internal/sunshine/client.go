// Package sunshine implements the host control-plane client and the
// five-phase PIN pairing handshake for a GameStream/Sunshine host.
package sunshine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimbusdeck/moonlight-go/internal/logging"
)

var log = logging.L("sunshine")

const (
	connectTimeout  = 5 * time.Second
	requestTimeout  = 7 * time.Second
	longPollTimeout = 90 * time.Second
)

// App is one entry from applist.
type App struct {
	ID             uint32
	Name           string
	IsHDRSupported bool
}

// ServerInfo is the parsed payload of a serverinfo response.
type ServerInfo struct {
	AppVersion             string
	GfeVersion             string
	UniqueID               string
	MAC                    string
	CurrentGame            int
	State                  string
	PairStatus             int
	ServerCodecModeSupport uint32
	MaxLumaPixelsHEVC      uint64
	Hostname               string
	ExternalPort           int
	SupportedDisplayModes  []string
}

// Paired reports whether the host already considers this client paired.
func (s *ServerInfo) Paired() bool { return s.PairStatus == 1 }

// usesModernPairing decides the legacy-SHA1 vs modern-SHA256 key derivation
// split named in the pairing phase-1 spec: bit 0 of server_codec_mode_support
// marks AES-256/SHA-256-capable (post-GFE 7.1) hosts.
func (s *ServerInfo) usesModernPairing() bool {
	return s.ServerCodecModeSupport&0x1 != 0
}

// Client talks to one host's HTTP (unpaired, port 47989) and mTLS HTTPS
// (paired, port 47984) endpoints.
type Client struct {
	host      string
	httpPort  int
	httpsPort int

	identity *Identity

	httpClient  *http.Client
	httpsClient *http.Client // nil until a server certificate is pinned

	uniqueID string
}

// NewClient constructs a client for the given host using identity as the
// mTLS client certificate source.
func NewClient(host string, httpPort, httpsPort int, identity *Identity) *Client {
	return &Client{
		host:      host,
		httpPort:  httpPort,
		httpsPort: httpsPort,
		identity:  identity,
		uniqueID:  identity.UniqueID(),
		httpClient: &http.Client{
			Transport: &http.Transport{DialContext: dialWithTimeout(connectTimeout)},
		},
	}
}

// PinServerCertificate configures the mTLS transport once a server
// certificate has been captured (pairing phase 1) or reloaded from the
// store. Hostname verification is disabled per the host's self-signed,
// CN-mismatched certificates; trust is instead pinned to exactly this cert.
func (c *Client) PinServerCertificate(serverCert *x509.Certificate) error {
	pool := x509.NewCertPool()
	pool.AddCert(serverCert)

	clientCert := tls.Certificate{
		Certificate: [][]byte{c.identity.DER},
		PrivateKey:  c.identity.Key,
	}

	c.httpsClient = &http.Client{
		Transport: &http.Transport{
			DialContext: dialWithTimeout(connectTimeout),
			TLSClientConfig: &tls.Config{
				Certificates:       []tls.Certificate{clientCert},
				RootCAs:            pool,
				InsecureSkipVerify: true, // disable hostname verification; trust is the pinned cert above
				VerifyPeerCertificate: pinnedCertVerifier(serverCert),
			},
		},
	}
	return nil
}

// pinnedCertVerifier replaces hostname/chain verification with an exact
// match against the one pinned certificate.
func pinnedCertVerifier(pinned *x509.Certificate) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		for _, raw := range rawCerts {
			if string(raw) == string(pinned.Raw) {
				return nil
			}
		}
		return fmt.Errorf("server certificate does not match pinned certificate")
	}
}

func dialWithTimeout(d time.Duration) func(context.Context, string, string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: d}
	return dialer.DialContext
}

func (c *Client) httpURL(path string) string  { return fmt.Sprintf("http://%s:%d/%s", c.host, c.httpPort, path) }
func (c *Client) httpsURL(path string) string { return fmt.Sprintf("https://%s:%d/%s", c.host, c.httpsPort, path) }

func (c *Client) baseParams() url.Values {
	v := url.Values{}
	v.Set("uniqueid", c.uniqueID)
	v.Set("uuid", strings.ReplaceAll(uuid.NewString(), "-", ""))
	return v
}

// doXML issues a GET against rawURL with a per-request timeout and parses
// the XML <root> envelope, surfacing transport errors as Network and
// non-200 status codes as HostRejected.
func (c *Client) doXML(ctx context.Context, client *http.Client, rawURL string, params url.Values, timeout time.Duration) (*rootResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := rawURL
	if len(params) > 0 {
		full += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, newNetwork(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, newNetwork(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newNetwork(err)
	}

	root, err := parseRoot(body)
	if err != nil {
		return nil, err
	}
	if err := root.checkStatus(); err != nil {
		return nil, err
	}
	return root, nil
}

// doRaw issues a GET and returns the raw response body, still enforcing the
// status_code check via a throwaway parse of the envelope.
func (c *Client) doRaw(ctx context.Context, client *http.Client, rawURL string, params url.Values, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := rawURL
	if len(params) > 0 {
		full += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, newNetwork(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, newNetwork(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newNetwork(err)
	}

	root, err := parseRoot(body)
	if err != nil {
		return nil, err
	}
	if err := root.checkStatus(); err != nil {
		return nil, err
	}
	return body, nil
}

// httpsOrErr returns the mTLS client, failing with NotPaired if none has
// been pinned yet.
func (c *Client) httpsOrErr() (*http.Client, error) {
	if c.httpsClient == nil {
		return nil, newNotPaired()
	}
	return c.httpsClient, nil
}

// ServerInfo fetches serverinfo. Uses plain HTTP before pairing, mTLS HTTPS
// once paired, per the op table's "HTTP if unpaired else HTTPS" rule.
func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	client := c.httpClient
	rawURL := c.httpURL("serverinfo")
	if c.httpsClient != nil {
		client = c.httpsClient
		rawURL = c.httpsURL("serverinfo")
	}

	root, err := c.doXML(ctx, client, rawURL, c.baseParams(), requestTimeout)
	if err != nil {
		return nil, err
	}
	return parseServerInfo(root), nil
}

func parseServerInfo(root *rootResponse) *ServerInfo {
	info := &ServerInfo{}
	info.AppVersion, _ = root.child("appversion")
	info.GfeVersion, _ = root.child("GfeVersion")
	info.UniqueID, _ = root.child("uniqueid")
	info.MAC, _ = root.child("mac")
	info.Hostname, _ = root.child("hostname")
	info.State, _ = root.child("state")
	info.CurrentGame, _ = root.childInt("currentgame")
	info.PairStatus, _ = root.childInt("PairStatus")
	info.ExternalPort, _ = root.childInt("ExternalPort")

	if v, ok := root.child("ServerCodecModeSupport"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			info.ServerCodecModeSupport = uint32(n)
		}
	}
	if v, ok := root.child("MaxLumaPixelsHEVC"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			info.MaxLumaPixelsHEVC = n
		}
	}
	if v, ok := root.child("DisplayModes"); ok {
		info.SupportedDisplayModes = strings.Split(v, ",")
	}
	return info
}

// VerifyPaired reports whether the host confirms this client is paired.
func (c *Client) VerifyPaired(ctx context.Context) (bool, error) {
	info, err := c.ServerInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.Paired(), nil
}

// Unpair removes pairing state on the host side.
func (c *Client) Unpair(ctx context.Context) error {
	_, err := c.doXML(ctx, c.httpClient, c.httpURL("unpair"), c.baseParams(), requestTimeout)
	return err
}

// appListResponse is a dedicated envelope for applist, whose repeated <App>
// children carry their own nested tags rather than flat chardata.
type appListResponse struct {
	XMLName xml.Name `xml:"root"`
	Apps    []struct {
		ID             string `xml:"ID"`
		Title          string `xml:"AppTitle"`
		IsHDRSupported string `xml:"IsHdrSupported"`
	} `xml:"App"`
}

// AppList retrieves the host's application list.
func (c *Client) AppList(ctx context.Context) ([]App, error) {
	client, err := c.httpsOrErr()
	if err != nil {
		return nil, err
	}

	body, err := c.doRaw(ctx, client, c.httpsURL("applist"), c.baseParams(), requestTimeout)
	if err != nil {
		return nil, err
	}

	var resp appListResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, newParse("parse applist", err)
	}

	apps := make([]App, 0, len(resp.Apps))
	for _, a := range resp.Apps {
		id, _ := strconv.ParseUint(a.ID, 10, 32)
		apps = append(apps, App{ID: uint32(id), Name: a.Title, IsHDRSupported: a.IsHDRSupported == "1"})
	}
	return apps, nil
}

// RequestAppImage fetches the raw PNG bytes for an app's boxart
// (appasset?appid=<id>&AssetType=2&AssetIdx=0).
func (c *Client) RequestAppImage(ctx context.Context, appID uint32) ([]byte, error) {
	client, err := c.httpsOrErr()
	if err != nil {
		return nil, err
	}

	params := c.baseParams()
	params.Set("appid", strconv.FormatUint(uint64(appID), 10))
	params.Set("AssetType", "2")
	params.Set("AssetIdx", "0")

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	full := c.httpsURL("appasset") + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, newNetwork(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, newNetwork(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newNetwork(err)
	}
	return data, nil
}

// LaunchConfig carries the parameters needed to launch or resume a session.
type LaunchConfig struct {
	AppID         uint32
	Width, Height int
	FPS           int
	BitrateKbps   int
	RIKey         [16]byte
	RIKeyID       uint32
	LocalAudio    bool
	Gamepads      int
}

func (c *Client) launchParams(cfg LaunchConfig) url.Values {
	params := c.baseParams()
	params.Set("appid", strconv.FormatUint(uint64(cfg.AppID), 10))
	params.Set("mode", fmt.Sprintf("%dx%dx%d", cfg.Width, cfg.Height, cfg.FPS))
	params.Set("additionalStates", "1")
	params.Set("sops", "1")
	params.Set("rikey", strings.ToUpper(hex.EncodeToString(cfg.RIKey[:])))
	params.Set("rikeyid", strconv.FormatUint(uint64(cfg.RIKeyID), 10))
	if cfg.LocalAudio {
		params.Set("localAudioPlayMode", "1")
	} else {
		params.Set("localAudioPlayMode", "0")
	}
	params.Set("remoteControllersBitmap", strconv.Itoa(cfg.Gamepads))
	params.Set("gcmap", strconv.Itoa(cfg.Gamepads))
	params.Set("gcpersist", "0")
	return params
}

// Launch starts a session for the given app, returning the RTSP session URL.
func (c *Client) Launch(ctx context.Context, cfg LaunchConfig) (string, error) {
	client, err := c.httpsOrErr()
	if err != nil {
		return "", err
	}
	root, err := c.doXML(ctx, client, c.httpsURL("launch"), c.launchParams(cfg), longPollTimeout)
	if err != nil {
		return "", err
	}
	url, _ := root.child("sessionUrl0")
	return url, nil
}

// Resume reattaches to an already-running session.
func (c *Client) Resume(ctx context.Context, cfg LaunchConfig) (string, error) {
	client, err := c.httpsOrErr()
	if err != nil {
		return "", err
	}
	root, err := c.doXML(ctx, client, c.httpsURL("resume"), c.launchParams(cfg), longPollTimeout)
	if err != nil {
		return "", err
	}
	url, _ := root.child("sessionUrl0")
	return url, nil
}

// Cancel terminates the currently running session.
func (c *Client) Cancel(ctx context.Context) (bool, error) {
	client, err := c.httpsOrErr()
	if err != nil {
		return false, err
	}
	root, err := c.doXML(ctx, client, c.httpsURL("cancel"), c.baseParams(), requestTimeout)
	if err != nil {
		return false, err
	}
	v, _ := root.child("cancel")
	return v == "1", nil
}

// UniqueID returns the client's stable uniqueid.
func (c *Client) UniqueID() string { return c.uniqueID }
