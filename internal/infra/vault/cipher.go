package vault

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
)

// Cipher seals secret values with an age scrypt identity derived from a
// key string that lives only in process memory (or behind whatever
// key-management callback supplied it). At rest a secret is always the
// age ciphertext, never plaintext.
type Cipher struct {
	recipient *age.ScryptRecipient
	identity  *age.ScryptIdentity
}

func NewCipher(key string) (*Cipher, error) {
	if key == "" {
		return nil, errors.New("vault encryption key is required")
	}
	recipient, err := age.NewScryptRecipient(key)
	if err != nil {
		return nil, fmt.Errorf("building vault recipient: %w", err)
	}
	identity, err := age.NewScryptIdentity(key)
	if err != nil {
		return nil, fmt.Errorf("building vault identity: %w", err)
	}
	return &Cipher{recipient: recipient, identity: identity}, nil
}

// SetWorkFactor tunes the scrypt cost (log2 N). The default suits
// interactive passphrases; machine-generated high-entropy keys can run
// lower for throughput.
func (c *Cipher) SetWorkFactor(logN int) {
	c.recipient.SetWorkFactor(logN)
}

func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, c.recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encrypting secret: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), c.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting secret: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypting secret: %w", err)
	}
	return plaintext, nil
}
