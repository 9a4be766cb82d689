// Package secret encrypts host credentials at rest. Keys are derived from
// DRIFTWATCH_ENCRYPTION_KEY (or JWT_SECRET as a fallback) so a stolen
// database dump does not expose SSH passwords or private keys.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

var kdfSalt = []byte("driftwatch-credential-salt")

func key() []byte {
	s := os.Getenv("DRIFTWATCH_ENCRYPTION_KEY")
	if s == "" {
		s = os.Getenv("JWT_SECRET")
	}
	if s == "" {
		s = "change-me-secret"
	}
	return pbkdf2.Key([]byte(s), kdfSalt, 100000, 32, sha256.New)
}

// Encrypt seals plaintext with AES-GCM and returns it base64-encoded.
// Empty input stays empty so optional credentials round-trip as-is.
func Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	block, err := aes.NewCipher(key())
	if err != nil {
		return "", errors.Wrap(err, "init cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.Wrap(err, "init gcm")
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, "generate nonce")
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered or foreign ciphertext fails.
func Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.Wrap(err, "decode ciphertext")
	}
	block, err := aes.NewCipher(key())
	if err != nil {
		return "", errors.Wrap(err, "init cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.Wrap(err, "init gcm")
	}
	if len(raw) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.Wrap(err, "decrypt credential")
	}
	return string(plain), nil
}
