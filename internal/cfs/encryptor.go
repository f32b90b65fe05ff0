package cfs

import "io"

// Encryptor protects database snapshots written to the object store.
// Encryption uses the public key only. Decryption requires a passphrase to
// unlock the private key, producing a DecryptionContext.
type Encryptor interface {
	// Setup generates a key pair, stores the public key in plaintext and the
	// private key encrypted with passphrase. Called by `cfs keys init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
