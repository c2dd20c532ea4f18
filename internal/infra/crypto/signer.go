package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"credbroker/internal/domain"
)

// Sign signs a canonical payload and returns the base64 signature. The
// signature scheme is ed25519 system-wide.
func Sign(key ed25519.PrivateKey, payload []byte) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", errors.New("invalid ed25519 private key length")
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(key, payload)), nil
}

// Verify checks a base64 ed25519 signature over a canonical payload.
func Verify(pubKey ed25519.PublicKey, payload []byte, sigB64 string) error {
	if len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: invalid ed25519 public key length %d", domain.ErrInvalidSignature, len(pubKey))
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return fmt.Errorf("%w: invalid signature encoding", domain.ErrInvalidSignature)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: invalid ed25519 signature length %d", domain.ErrInvalidSignature, len(sig))
	}
	if !ed25519.Verify(pubKey, payload, sig) {
		return fmt.Errorf("%w: signature verification failed", domain.ErrInvalidSignature)
	}
	return nil
}

func GenerateKey() (ed25519.PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating ed25519 key: %w", err)
	}
	return key, nil
}

// ParsePrivateKey accepts either a 32-byte seed or a full 64-byte
// private key.
func ParsePrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, errors.New("invalid ed25519 private key length")
	}
}

func ParsePrivateKeyHex(value string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid hex private key: %w", err)
	}
	return ParsePrivateKey(raw)
}

func ParsePrivateKeyBase64(value string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 private key: %w", err)
	}
	return ParsePrivateKey(raw)
}

func ParsePublicKeyHex(value string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid hex public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.New("invalid ed25519 public key length")
	}
	return ed25519.PublicKey(raw), nil
}
