package encryption_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/encryption"
)

func TestAgeEncryptor_RoundTrip(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "keys", "quarantine.key")
	enc := encryption.NewAgeEncryptor(keyPath)

	plaintext := []byte("content that must not survive in the clear")

	var ciphertext bytes.Buffer
	n, err := enc.Encrypt(bytes.NewReader(plaintext), &ciphertext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if n != int64(len(plaintext)) {
		t.Errorf("Encrypt() consumed %d bytes, want %d", n, len(plaintext))
	}
	if bytes.Contains(ciphertext.Bytes(), plaintext) {
		t.Error("ciphertext contains the plaintext")
	}

	var restored bytes.Buffer
	n, err = enc.Decrypt(bytes.NewReader(ciphertext.Bytes()), &restored)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if n != int64(len(plaintext)) {
		t.Errorf("Decrypt() produced %d bytes, want %d", n, len(plaintext))
	}
	if !bytes.Equal(restored.Bytes(), plaintext) {
		t.Errorf("round trip = %q, want %q", restored.Bytes(), plaintext)
	}
}

func TestAgeEncryptor_KeyPersistence(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "quarantine.key")

	first := encryption.NewAgeEncryptor(keyPath)
	var ciphertext bytes.Buffer
	if _, err := first.Encrypt(bytes.NewReader([]byte("held across restarts")), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("identity file was not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("identity file mode = %o, want 600", perm)
	}

	// A fresh encryptor over the same key file can decrypt.
	second := encryption.NewAgeEncryptor(keyPath)
	var restored bytes.Buffer
	if _, err := second.Decrypt(bytes.NewReader(ciphertext.Bytes()), &restored); err != nil {
		t.Fatalf("Decrypt() with reloaded identity error = %v", err)
	}
	if restored.String() != "held across restarts" {
		t.Errorf("round trip = %q", restored.String())
	}
}

func TestNoneEncryptor_Passthrough(t *testing.T) {
	enc := encryption.NewNoneEncryptor()
	plaintext := []byte("passes straight through")

	var out bytes.Buffer
	n, err := enc.Encrypt(bytes.NewReader(plaintext), &out)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if n != int64(len(plaintext)) || !bytes.Equal(out.Bytes(), plaintext) {
		t.Errorf("Encrypt() = %d bytes %q", n, out.Bytes())
	}

	var back bytes.Buffer
	n, err = enc.Decrypt(bytes.NewReader(out.Bytes()), &back)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if n != int64(len(plaintext)) || !bytes.Equal(back.Bytes(), plaintext) {
		t.Errorf("Decrypt() = %d bytes %q", n, back.Bytes())
	}
}
