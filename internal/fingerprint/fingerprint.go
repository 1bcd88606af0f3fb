// Package fingerprint computes content hashes for scanned files.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
)

// copyBuffer bounds memory use while hashing; files are streamed, never
// loaded whole.
const copyBuffer = 64 * 1024

// SHA256 fingerprints files with a streaming SHA-256 digest.
type SHA256 struct{}

var _ guard.Fingerprinter = (*SHA256)(nil)

// NewSHA256 creates the default fingerprinter.
func NewSHA256() *SHA256 { return &SHA256{} }

// Hash returns the SHA-256 digest of the file's content as lowercase hex.
func (SHA256) Hash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, copyBuffer)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
