package sunshine

import (
	"context"
	"crypto"
	"crypto/aes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"hash"

	"github.com/nimbusdeck/moonlight-go/internal/logging"
)

const (
	pairSaltLength      = 16
	pairChallengeLength = 16
	pairSecretLength    = 16
)

// pairSession holds the ephemeral state threaded through the five pairing
// phases. It does not outlive a single Pair call.
type pairSession struct {
	deviceName string
	salt       [pairSaltLength]byte
	aesKey     []byte // always 16 bytes (AES-128); derived via SHA-1 or SHA-256 depending on modern
	modern     bool

	clientChallenge []byte
	serverChallenge []byte
	clientSecret    []byte

	serverCert *x509.Certificate
}

// Pair runs the five-phase PIN pairing handshake: getservercert,
// clientchallenge, serverchallengeresp, clientpairingsecret, pairchallenge.
// On success the client's HTTPS transport is pinned to the negotiated server
// certificate, which the caller should persist alongside the client
// identity. Any phase failing to report paired=1, or a server pairing
// secret whose RSA signature does not verify against the server's own
// certificate, aborts the pairing and unpairs the host.
func (c *Client) Pair(ctx context.Context, pin, deviceName string) (*x509.Certificate, error) {
	info, err := c.ServerInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("sunshine: fetch serverinfo before pairing: %w", err)
	}

	sess := &pairSession{deviceName: deviceName, modern: info.usesModernPairing()}
	if _, err := rand.Read(sess.salt[:]); err != nil {
		return nil, fmt.Errorf("sunshine: generate pairing salt: %w", err)
	}
	sess.aesKey = derivePairingKey(pin, sess.salt[:], sess.modern)

	if err := c.pairGetServerCert(ctx, sess); err != nil {
		return nil, c.abortPairing(ctx, err)
	}
	if err := c.pairClientChallenge(ctx, sess); err != nil {
		return nil, c.abortPairing(ctx, err)
	}
	if err := c.pairServerChallengeResp(ctx, sess); err != nil {
		return nil, c.abortPairing(ctx, err)
	}
	if err := c.pairClientSecret(ctx, sess); err != nil {
		return nil, c.abortPairing(ctx, err)
	}
	if err := c.PinServerCertificate(sess.serverCert); err != nil {
		return nil, fmt.Errorf("sunshine: pin server certificate: %w", err)
	}
	if err := c.pairChallenge(ctx, sess); err != nil {
		return nil, c.abortPairing(ctx, err)
	}

	return sess.serverCert, nil
}

// abortPairing unpairs the host on any phase failure and folds the unpair
// attempt's own error (if any) into the log rather than the returned error,
// since the original failure is what the caller needs to see.
func (c *Client) abortPairing(ctx context.Context, cause error) error {
	if unpairErr := c.Unpair(ctx); unpairErr != nil {
		log.Warn("unpair after failed pairing also failed", logging.KeyError, unpairErr)
	}
	return cause
}

// pairGetServerCert is phase 1: send our salt and client certificate,
// receive the host's pairing certificate.
func (c *Client) pairGetServerCert(ctx context.Context, sess *pairSession) error {
	params := c.baseParams()
	params.Set("devicename", sess.deviceName)
	params.Set("updateState", "1")
	params.Set("phrase", "getservercert")
	params.Set("salt", hex.EncodeToString(sess.salt[:]))
	params.Set("clientcert", hex.EncodeToString(c.identity.CertPEM()))

	root, err := c.doXML(ctx, c.httpClient, c.httpURL("pair"), params, requestTimeout)
	if err != nil {
		return err
	}
	if v, _ := root.child("paired"); v != "1" {
		return newPairingAuthFailed("getservercert rejected by host")
	}

	plainCert, ok := root.child("plaincert")
	if !ok {
		return newParse("pair response missing plaincert", nil)
	}
	certPEM, err := hex.DecodeString(plainCert)
	if err != nil {
		return newParse("decode plaincert hex", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return newParse("plaincert is not PEM", nil)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return newParse("parse server certificate", err)
	}
	sess.serverCert = cert
	return nil
}

// pairClientChallenge is phase 2: send an AES-encrypted random challenge,
// decrypt the host's response to recover its echoed challenge.
func (c *Client) pairClientChallenge(ctx context.Context, sess *pairSession) error {
	challenge := make([]byte, pairChallengeLength)
	if _, err := rand.Read(challenge); err != nil {
		return fmt.Errorf("sunshine: generate client challenge: %w", err)
	}
	sess.clientChallenge = challenge

	encrypted, err := aesECBEncrypt(sess.aesKey, challenge)
	if err != nil {
		return fmt.Errorf("sunshine: encrypt client challenge: %w", err)
	}

	params := c.baseParams()
	params.Set("devicename", sess.deviceName)
	params.Set("updateState", "1")
	params.Set("clientchallenge", hex.EncodeToString(encrypted))

	root, err := c.doXML(ctx, c.httpClient, c.httpURL("pair"), params, requestTimeout)
	if err != nil {
		return err
	}
	if v, _ := root.child("paired"); v != "1" {
		return newPairingAuthFailed("clientchallenge rejected by host")
	}
	// challengeresponse decrypts to concat(server_challenge[16],
	// server_response[16+20]); server_challenge is what phase 3 folds into
	// client_hash to prove the client saw this exchange, not the client's
	// own phase-2 challenge.
	respHex, ok := root.child("challengeresponse")
	if !ok {
		return newParse("pair response missing challengeresponse", nil)
	}
	encResp, err := hex.DecodeString(respHex)
	if err != nil {
		return newParse("decode challengeresponse hex", err)
	}
	decResp, err := aesECBDecrypt(sess.aesKey, encResp)
	if err != nil {
		return newPairingAuthFailed(fmt.Sprintf("decrypt challengeresponse: %v", err))
	}
	if len(decResp) < pairChallengeLength {
		return newPairingAuthFailed("challengeresponse too short to contain server_challenge")
	}
	sess.serverChallenge = decResp[:pairChallengeLength]
	return nil
}

// pairServerChallengeResp is phase 3: prove possession of the client
// certificate's private key by hashing it together with a fresh client
// secret, then exchange for the host's pairing secret.
func (c *Client) pairServerChallengeResp(ctx context.Context, sess *pairSession) error {
	clientSecret := make([]byte, pairSecretLength)
	if _, err := rand.Read(clientSecret); err != nil {
		return fmt.Errorf("sunshine: generate client secret: %w", err)
	}
	sess.clientSecret = clientSecret

	var h hash.Hash
	if sess.modern {
		h = sha256.New()
	} else {
		h = sha1.New()
	}
	h.Write(sess.serverChallenge)
	h.Write(c.identity.Cert.Signature)
	h.Write(clientSecret)
	responseHash := h.Sum(nil)

	encrypted, err := aesECBEncrypt(sess.aesKey, responseHash)
	if err != nil {
		return fmt.Errorf("sunshine: encrypt serverchallengeresp: %w", err)
	}

	params := c.baseParams()
	params.Set("devicename", sess.deviceName)
	params.Set("updateState", "1")
	params.Set("serverchallengeresp", hex.EncodeToString(encrypted))

	root, err := c.doXML(ctx, c.httpClient, c.httpURL("pair"), params, requestTimeout)
	if err != nil {
		return err
	}
	if v, _ := root.child("paired"); v != "1" {
		return newPairingAuthFailed("serverchallengeresp rejected by host")
	}

	secretHex, ok := root.child("pairingsecret")
	if !ok {
		return newParse("pair response missing pairingsecret", nil)
	}
	pairingSecret, err := hex.DecodeString(secretHex)
	if err != nil {
		return newParse("decode pairingsecret hex", err)
	}
	if len(pairingSecret) <= pairSecretLength {
		return newPairingAuthFailed("pairingsecret too short to contain a signature")
	}

	serverSecret := pairingSecret[:pairSecretLength]
	serverSignature := pairingSecret[pairSecretLength:]

	serverPubKey, ok := sess.serverCert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return newPairingAuthFailed("server certificate does not carry an RSA public key")
	}
	secretHash := sha256.Sum256(serverSecret)
	if err := rsa.VerifyPKCS1v15(serverPubKey, crypto.SHA256, secretHash[:], serverSignature); err != nil {
		return newPairingAuthFailed("server pairing secret signature does not verify against server certificate")
	}

	return nil
}

// pairClientSecret is phase 4: send our own secret and its RSA signature,
// proven against the client certificate the host already received.
func (c *Client) pairClientSecret(ctx context.Context, sess *pairSession) error {
	secretHash := sha256.Sum256(sess.clientSecret)
	signature, err := rsa.SignPKCS1v15(rand.Reader, c.identity.Key, crypto.SHA256, secretHash[:])
	if err != nil {
		return fmt.Errorf("sunshine: sign client secret: %w", err)
	}

	clientPairingSecret := append(append([]byte{}, sess.clientSecret...), signature...)

	params := c.baseParams()
	params.Set("devicename", sess.deviceName)
	params.Set("updateState", "1")
	params.Set("clientpairingsecret", hex.EncodeToString(clientPairingSecret))

	root, err := c.doXML(ctx, c.httpClient, c.httpURL("pair"), params, requestTimeout)
	if err != nil {
		return err
	}
	if v, _ := root.child("paired"); v != "1" {
		return newPairingAuthFailed("clientpairingsecret rejected by host")
	}
	return nil
}

// pairChallenge is phase 5: the host confirms pairing over the mTLS channel
// that was just pinned, proving the certificate exchange produced a working
// bidirectional TLS identity.
func (c *Client) pairChallenge(ctx context.Context, sess *pairSession) error {
	client, err := c.httpsOrErr()
	if err != nil {
		return fmt.Errorf("sunshine: https transport not ready for pairchallenge: %w", err)
	}

	params := c.baseParams()
	params.Set("devicename", sess.deviceName)
	params.Set("updateState", "1")
	params.Set("phrase", "pairchallenge")

	root, err := c.doXML(ctx, client, c.httpsURL("pair"), params, requestTimeout)
	if err != nil {
		return err
	}
	if v, _ := root.child("paired"); v != "1" {
		return newPairingAuthFailed("pairchallenge rejected over mTLS")
	}
	return nil
}

// derivePairingKey derives the AES-128 key used for phases 2-3 from the PIN
// and salt. The key is always 16 bytes: SHA-1 truncated to 16 bytes for
// hosts predating the server_codec_mode_support modern-pairing bit, SHA-256
// truncated to the same 16 bytes for hosts that advertise it.
func derivePairingKey(pin string, salt []byte, modern bool) []byte {
	if modern {
		h := sha256.Sum256(append(append([]byte{}, salt...), pin...))
		return h[:16]
	}
	h := sha1.Sum(append(append([]byte{}, salt...), pin...))
	return h[:16]
}

// aesECBEncrypt encrypts plaintext under AES-ECB, always appending a full
// block of PKCS7-style padding (even when plaintext is already block-sized)
// to match the host's expectations.
func aesECBEncrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+padLen)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}

	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += aes.BlockSize {
		block.Encrypt(out[i:i+aes.BlockSize], padded[i:i+aes.BlockSize])
	}
	return out, nil
}

// aesECBDecrypt decrypts and strips PKCS7-style padding.
func aesECBDecrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("sunshine: ciphertext not a multiple of the AES block size")
	}

	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += aes.BlockSize {
		block.Decrypt(out[i:i+aes.BlockSize], ciphertext[i:i+aes.BlockSize])
	}

	if len(out) == 0 {
		return out, nil
	}
	padLen := int(out[len(out)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(out) {
		return nil, fmt.Errorf("sunshine: invalid AES-ECB padding")
	}
	return out[:len(out)-padLen], nil
}
