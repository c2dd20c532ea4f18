package crypto

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"io"
	"os"

	"filippo.io/age"

	"credbroker/internal/domain"
)

// Key files hold an ed25519 seed encrypted with an age scrypt
// recipient, so an owner's approval key never touches disk in
// plaintext. The signing tool runs fully offline against these files.

// WriteKeyFile encrypts the key's seed under the passphrase and writes
// it with owner-only permissions.
func WriteKeyFile(path string, key ed25519.PrivateKey, passphrase string) error {
	if len(key) != ed25519.PrivateKeySize {
		return fmt.Errorf("invalid ed25519 private key length %d", len(key))
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("building scrypt recipient: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(key.Seed()); err != nil {
		return fmt.Errorf("encrypting key seed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing key encryption: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

// ReadKeyFile decrypts a key file. A wrong passphrase surfaces as
// ErrKeyDecryption, never as a partial key.
func ReadKeyFile(path, passphrase string) (ed25519.PrivateKey, error) {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("building scrypt identity: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyDecryption, err)
	}
	seed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyDecryption, err)
	}
	key, err := ParsePrivateKey(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyDecryption, err)
	}
	return key, nil
}
