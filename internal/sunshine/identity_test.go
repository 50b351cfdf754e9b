package sunshine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreateIdentity_GeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()

	id, err := LoadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity failed: %v", err)
	}
	if id.Key == nil || id.Cert == nil {
		t.Fatalf("expected a populated key/cert pair")
	}
	if id.Key.N.BitLen() != 2048 {
		t.Fatalf("expected a 2048-bit RSA key, got %d bits", id.Key.N.BitLen())
	}

	for _, name := range []string{"client.key", "client.crt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to be persisted: %v", name, err)
		}
	}
}

func TestLoadOrCreateIdentity_ReloadsPersistedIdentity(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("first LoadOrCreateIdentity failed: %v", err)
	}

	second, err := LoadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("second LoadOrCreateIdentity failed: %v", err)
	}

	if first.UniqueID() != second.UniqueID() {
		t.Fatalf("expected reloaded identity to have the same UniqueID, got %q vs %q",
			first.UniqueID(), second.UniqueID())
	}
}

func TestUniqueID_IsSixteenLowercaseHexChars(t *testing.T) {
	dir := t.TempDir()
	id, err := LoadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity failed: %v", err)
	}

	uid := id.UniqueID()
	if len(uid) != 16 {
		t.Fatalf("expected a 16-character UniqueID, got %q (len %d)", uid, len(uid))
	}
	for _, r := range uid {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			t.Fatalf("expected lowercase hex, got %q", uid)
		}
	}
}

func TestCertPEM_RoundTripsThroughParseIdentity(t *testing.T) {
	dir := t.TempDir()
	id, err := LoadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity failed: %v", err)
	}

	keyPEM, err := os.ReadFile(filepath.Join(dir, "client.key"))
	if err != nil {
		t.Fatalf("read persisted client.key: %v", err)
	}

	reparsed, err := parseIdentity(keyPEM, id.CertPEM())
	if err != nil {
		t.Fatalf("parseIdentity(CertPEM()) failed: %v", err)
	}
	if reparsed.UniqueID() != id.UniqueID() {
		t.Fatalf("expected UniqueID to round-trip through CertPEM/parseIdentity")
	}
}
