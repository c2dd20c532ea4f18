package vault

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// newTestCipher lowers the scrypt cost so tests stay fast.
func newTestCipher(t *testing.T, key string) *Cipher {
	t.Helper()
	cipher, err := NewCipher(key)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	cipher.SetWorkFactor(10)
	return cipher
}

func TestCipher_RoundTripProperty(t *testing.T) {
	cipher := newTestCipher(t, "test-master-key")

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("decrypt inverts encrypt for any payload", prop.ForAll(
		func(plaintext []byte) bool {
			ciphertext, err := cipher.Encrypt(plaintext)
			if err != nil {
				return false
			}
			decrypted, err := cipher.Decrypt(ciphertext)
			if err != nil {
				return false
			}
			return bytes.Equal(decrypted, plaintext)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

func TestCipher_CiphertextIsNotPlaintext(t *testing.T) {
	cipher := newTestCipher(t, "test-master-key")
	secret := []byte("hunter2-postgres-password")
	ciphertext, err := cipher.Encrypt(secret)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(ciphertext, secret) {
		t.Fatal("ciphertext contains the plaintext")
	}
}

func TestCipher_WrongKeyFails(t *testing.T) {
	right := newTestCipher(t, "right-key")
	wrong := newTestCipher(t, "wrong-key")

	ciphertext, err := right.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := wrong.Decrypt(ciphertext); err == nil {
		t.Fatal("decryption with the wrong key succeeded")
	}
}

func TestCipher_TamperDetected(t *testing.T) {
	cipher := newTestCipher(t, "test-master-key")
	ciphertext, err := cipher.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	ciphertext[len(ciphertext)-1] ^= 0x01
	if _, err := cipher.Decrypt(ciphertext); err == nil {
		t.Fatal("tampered ciphertext decrypted")
	}
}
