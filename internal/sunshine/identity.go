package sunshine

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

// Identity is this client's persisted RSA-2048 / X.509 key pair, used both
// as the mTLS client certificate and as the source of the derived uniqueid.
type Identity struct {
	Key  *rsa.PrivateKey
	Cert *x509.Certificate
	// DER is Cert's raw encoding, retained so UniqueID doesn't re-derive it.
	DER []byte
}

// LoadOrCreateIdentity loads client.key/client.crt from dir, generating and
// persisting a fresh RSA-2048 identity if either is missing.
func LoadOrCreateIdentity(dir string) (*Identity, error) {
	keyPath := filepath.Join(dir, "client.key")
	certPath := filepath.Join(dir, "client.crt")

	keyPEM, keyErr := os.ReadFile(keyPath)
	certPEM, certErr := os.ReadFile(certPath)
	if keyErr == nil && certErr == nil {
		id, err := parseIdentity(keyPEM, certPEM)
		if err == nil {
			return id, nil
		}
		// Fall through to regeneration if the persisted files are corrupt.
	}

	id, keyPEMOut, certPEMOut, err := generateIdentity()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("sunshine: mkdir %s: %w", dir, err)
	}
	if err := os.WriteFile(keyPath, keyPEMOut, 0o600); err != nil {
		return nil, fmt.Errorf("sunshine: write %s: %w", keyPath, err)
	}
	if err := os.WriteFile(certPath, certPEMOut, 0o644); err != nil {
		return nil, fmt.Errorf("sunshine: write %s: %w", certPath, err)
	}

	return id, nil
}

func generateIdentity() (*Identity, []byte, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sunshine: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sunshine: generate serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "NVIDIA GameStream Client"},
		NotBefore:    time.Now().Add(-24 * time.Hour),
		NotAfter:     time.Now().AddDate(20, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		SignatureAlgorithm: x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sunshine: create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sunshine: parse generated certificate: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	return &Identity{Key: key, Cert: cert, DER: der}, keyPEM, certPEM, nil
}

func parseIdentity(keyPEM, certPEM []byte) (*Identity, error) {
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, newParse("no PEM block in client.key", nil)
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, newParse("parse client.key", err)
	}

	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, newParse("no PEM block in client.crt", nil)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, newParse("parse client.crt", err)
	}

	return &Identity{Key: key, Cert: cert, DER: certBlock.Bytes}, nil
}

// UniqueID is the lowercase-hex SHA-256 prefix (first 16 chars) of the
// client certificate's DER encoding, stable across restarts.
func (id *Identity) UniqueID() string {
	sum := sha256.Sum256(id.DER)
	return hex.EncodeToString(sum[:])[:16]
}

// CertPEM returns the PEM-encoded client certificate.
func (id *Identity) CertPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: id.DER})
}
