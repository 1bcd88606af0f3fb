package encryption

import (
	"fmt"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/config"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
)

// NewEncryptorFromConfig creates an Encryptor based on the encryption config type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (guard.Encryptor, error) {
	switch cfg.Type {
	case "", "age":
		if cfg.KeyPath == "" {
			return nil, fmt.Errorf("key_path required for age encryption")
		}
		return NewAgeEncryptor(cfg.KeyPath), nil
	case "none":
		return NewNoneEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %s", cfg.Type)
	}
}
