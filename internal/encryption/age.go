// Package encryption neutralizes quarantined content on disk.
package encryption

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
)

// AgeEncryptor implements guard.Encryptor using filippo.io/age with an
// X25519 key pair. Quarantined copies are stored as age ciphertext so an
// isolated file is inert: nothing can open or execute it in place.
//
// The identity is generated on first use and kept in a 0600 file under
// the application base directory. This is neutralization, not secrecy:
// the key lives next to the quarantine area on purpose, so restore never
// depends on user-supplied material.
type AgeEncryptor struct {
	keyPath string
}

var _ guard.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates an encryptor whose identity lives at keyPath.
func NewAgeEncryptor(keyPath string) *AgeEncryptor {
	return &AgeEncryptor{keyPath: keyPath}
}

// Encrypt reads plaintext from r and writes age ciphertext to w.
// Returns the number of plaintext bytes consumed.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) (int64, error) {
	identity, err := e.loadOrCreateIdentity()
	if err != nil {
		return 0, err
	}

	encWriter, err := age.Encrypt(w, identity.Recipient())
	if err != nil {
		return 0, fmt.Errorf("creating encrypted writer: %w", err)
	}

	n, err := io.Copy(encWriter, r)
	if err != nil {
		return n, fmt.Errorf("encrypting data: %w", err)
	}

	if err := encWriter.Close(); err != nil {
		return n, fmt.Errorf("finalizing encryption: %w", err)
	}
	return n, nil
}

// Decrypt reads age ciphertext from r and writes plaintext to w.
// Returns the number of plaintext bytes produced.
func (e *AgeEncryptor) Decrypt(r io.Reader, w io.Writer) (int64, error) {
	identity, err := e.loadOrCreateIdentity()
	if err != nil {
		return 0, err
	}

	decReader, err := age.Decrypt(r, identity)
	if err != nil {
		return 0, fmt.Errorf("opening encrypted content: %w", err)
	}

	n, err := io.Copy(w, decReader)
	if err != nil {
		return n, fmt.Errorf("decrypting data: %w", err)
	}
	return n, nil
}

// loadOrCreateIdentity reads the stored identity, generating a fresh one
// when the key file does not exist yet.
func (e *AgeEncryptor) loadOrCreateIdentity() (*age.X25519Identity, error) {
	data, err := os.ReadFile(e.keyPath)
	if err == nil {
		identity, parseErr := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if parseErr != nil {
			return nil, fmt.Errorf("parsing key file %s: %w", e.keyPath, parseErr)
		}
		return identity, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(e.keyPath), 0700); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(e.keyPath, []byte(identity.String()+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	return identity, nil
}
