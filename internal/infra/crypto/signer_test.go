package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"testing"

	"credbroker/internal/domain"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	payload := []byte(`{"req_id":"REQ-20251110-120000-abc123def456"}`)

	sig, err := Sign(key, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := Verify(key.Public().(ed25519.PublicKey), payload, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sig, err := Sign(key, []byte("payload"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	err = Verify(key.Public().(ed25519.PublicKey), []byte("payloaX"), sig)
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_WrongKey(t *testing.T) {
	key, _ := GenerateKey()
	other, _ := GenerateKey()
	sig, err := Sign(key, []byte("payload"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	err = Verify(other.Public().(ed25519.PublicKey), []byte("payload"), sig)
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_MalformedSignature(t *testing.T) {
	key, _ := GenerateKey()
	err := Verify(key.Public().(ed25519.PublicKey), []byte("payload"), "not base64!!")
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestParsePrivateKey_SeedAndFull(t *testing.T) {
	key, _ := GenerateKey()

	fromSeed, err := ParsePrivateKey(key.Seed())
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}
	fromFull, err := ParsePrivateKey(key)
	if err != nil {
		t.Fatalf("parse full key: %v", err)
	}
	if !fromSeed.Equal(fromFull) {
		t.Fatal("seed and full parse produced different keys")
	}

	if _, err := ParsePrivateKey(make([]byte, 16)); err == nil {
		t.Fatal("expected short key to be rejected")
	}
}

func TestParsePublicKeyHex(t *testing.T) {
	key, _ := GenerateKey()
	pub := key.Public().(ed25519.PublicKey)

	parsed, err := ParsePublicKeyHex(hex.EncodeToString(pub))
	if err != nil {
		t.Fatalf("parse public key: %v", err)
	}
	if !parsed.Equal(pub) {
		t.Fatal("parsed public key differs")
	}

	if _, err := ParsePublicKeyHex("abcd"); err == nil {
		t.Fatal("expected short public key to be rejected")
	}
}
