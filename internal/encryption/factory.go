package encryption

import (
	"errors"
	"fmt"

	"cfs-go/internal/cfs"
	"cfs-go/internal/config"
)

// NewEncryptorFromConfig returns the encryptor used for database snapshots.
// The age encryptor needs both key paths even before `cfs keys init` has
// created the files, since that command writes to them.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (cfs.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, errors.New("age snapshot encryption needs public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown snapshot encryption type %q (want age or test)", cfg.Type)
	}
}
