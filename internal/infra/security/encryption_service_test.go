//go:build !integration

package security

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptionService(t *testing.T) {
	t.Run("rejects bad key sizes", func(t *testing.T) {
		for _, k := range []string{"", "short", strings.Repeat("x", 33)} {
			if _, err := NewEncryptionService(k); err == nil {
				t.Errorf("key of len %d accepted", len(k))
			}
		}
	})

	t.Run("sealed token opens to the same plaintext", func(t *testing.T) {
		// --- Arrange ---
		svc, err := NewEncryptionService(testKey)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		secret := `{"token":"tok-A"}`

		// --- Act ---
		a, _ := svc.Encrypt(secret)
		b, _ := svc.Encrypt(secret)
		got, err := svc.Decrypt(a)

		// --- Assert ---
		if err != nil || got != secret {
			t.Fatalf("decrypt: %q, %v", got, err)
		}
		if a == b {
			t.Errorf("nonce reuse: identical ciphertexts")
		}
		if strings.Contains(a, "tok-A") {
			t.Errorf("plaintext visible in ciphertext")
		}
	})

	t.Run("tampered or foreign ciphertext fails", func(t *testing.T) {
		svc, _ := NewEncryptionService(testKey)
		other, _ := NewEncryptionService(strings.Repeat("k", 32))
		ct, _ := svc.Encrypt("secret")

		if _, err := other.Decrypt(ct); err == nil {
			t.Errorf("foreign key opened the box")
		}
		if _, err := svc.Decrypt("AAAA"); !errors.Is(err, ErrCiphertextTooShort) {
			t.Errorf("want ErrCiphertextTooShort, got %v", err)
		}
		if _, err := svc.Decrypt("%%%"); err == nil {
			t.Errorf("expected base64 error")
		}
	})
}
