package testutil

import (
	"cfs-go/internal/cfs"
	"cfs-go/internal/encryption"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() cfs.Encryptor {
	return encryption.NewTestEncryptor()
}
