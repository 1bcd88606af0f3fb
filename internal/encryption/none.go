package encryption

import (
	"fmt"
	"io"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
)

// NoneEncryptor passes content through unchanged. Quarantined copies are
// relocated but remain readable on disk.
type NoneEncryptor struct{}

var _ guard.Encryptor = (*NoneEncryptor)(nil)

func NewNoneEncryptor() *NoneEncryptor { return &NoneEncryptor{} }

func (*NoneEncryptor) Encrypt(r io.Reader, w io.Writer) (int64, error) {
	n, err := io.Copy(w, r)
	if err != nil {
		return n, fmt.Errorf("copying data: %w", err)
	}
	return n, nil
}

func (*NoneEncryptor) Decrypt(r io.Reader, w io.Writer) (int64, error) {
	n, err := io.Copy(w, r)
	if err != nil {
		return n, fmt.Errorf("copying data: %w", err)
	}
	return n, nil
}
