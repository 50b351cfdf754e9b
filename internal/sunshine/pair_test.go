package sunshine

import (
	"bytes"
	"crypto/aes"
	"testing"
)

func TestDerivePairingKey_LegacyIsSixteenBytes(t *testing.T) {
	key := derivePairingKey("1234", []byte("salt1234salt5678"), false)
	if len(key) != 16 {
		t.Fatalf("expected a 16-byte legacy key, got %d bytes", len(key))
	}
}

func TestDerivePairingKey_ModernIsAlsoSixteenBytes(t *testing.T) {
	key := derivePairingKey("1234", []byte("salt1234salt5678"), true)
	if len(key) != 16 {
		t.Fatalf("expected a 16-byte AES-128 key even for modern (SHA-256) derivation, got %d bytes", len(key))
	}
}

func TestDerivePairingKey_DifferentSaltsProduceDifferentKeys(t *testing.T) {
	k1 := derivePairingKey("1234", []byte("salt1234salt5678"), true)
	k2 := derivePairingKey("1234", []byte("different-salt!!"), true)
	if bytes.Equal(k1, k2) {
		t.Fatalf("expected different salts to produce different keys")
	}
}

func TestAESECB_RoundTripsArbitraryLengths(t *testing.T) {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}

	for _, n := range []int{0, 1, 15, 16, 17, 32, 100} {
		plaintext := bytes.Repeat([]byte{0x42}, n)
		ciphertext, err := aesECBEncrypt(key, plaintext)
		if err != nil {
			t.Fatalf("encrypt (n=%d) failed: %v", n, err)
		}
		if len(ciphertext)%16 != 0 {
			t.Fatalf("expected ciphertext length to be block-aligned, got %d for n=%d", len(ciphertext), n)
		}

		decrypted, err := aesECBDecrypt(key, ciphertext)
		if err != nil {
			t.Fatalf("decrypt (n=%d) failed: %v", n, err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Fatalf("round trip mismatch for n=%d: got %v, want %v", n, decrypted, plaintext)
		}
	}
}

func TestAESECBEncrypt_AlwaysAddsAFullPaddingBlockWhenAlreadyAligned(t *testing.T) {
	key := make([]byte, 16)
	plaintext := bytes.Repeat([]byte{0x01}, 16) // already block-aligned

	ciphertext, err := aesECBEncrypt(key, plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if len(ciphertext) != 32 {
		t.Fatalf("expected a full extra padding block appended, got ciphertext length %d", len(ciphertext))
	}
}

func TestAESECBDecrypt_RejectsNonBlockAlignedCiphertext(t *testing.T) {
	key := make([]byte, 16)
	if _, err := aesECBDecrypt(key, make([]byte, 17)); err == nil {
		t.Fatalf("expected an error for non-block-aligned ciphertext")
	}
}

func TestAESECBDecrypt_RejectsInvalidPadding(t *testing.T) {
	key := make([]byte, 16)
	cipher, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes.NewCipher failed: %v", err)
	}

	// A single block whose last byte is 0: not a legal PKCS7 pad length.
	plaintext := make([]byte, 16)
	ciphertext := make([]byte, 16)
	cipher.Encrypt(ciphertext, plaintext)

	if _, err := aesECBDecrypt(key, ciphertext); err == nil {
		t.Fatalf("expected a zero pad length to be rejected")
	}
}
