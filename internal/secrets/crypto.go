package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"os"
	"strings"
)

// API keys written to the config file can be encrypted at rest with
// AES-256-GCM. The key comes from QUILL_SECRET_KEY; when it is unset, values
// pass through unchanged so plain-text configs keep working.

const encPrefix = "aes-gcm:"

// SecretKeyEnv names the environment variable holding the at-rest key.
const SecretKeyEnv = "QUILL_SECRET_KEY"

// EncryptValue encrypts a config value with the QUILL_SECRET_KEY.
// Returns "aes-gcm:" + base64(nonce + ciphertext + tag), or the plaintext
// unchanged when no secret key is configured.
func EncryptValue(plaintext string) (string, error) {
	key := os.Getenv(SecretKeyEnv)
	if key == "" || plaintext == "" {
		return plaintext, nil
	}

	keyBytes, err := deriveKey(key)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptValue reverses EncryptValue. Values without the "aes-gcm:" prefix
// are returned as-is, so plain-text and encrypted keys can coexist.
func DecryptValue(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	key := os.Getenv(SecretKeyEnv)
	if key == "" {
		return "", errors.New("value is encrypted but " + SecretKeyEnv + " is not set")
	}

	keyBytes, err := deriveKey(key)
	if err != nil {
		return "", err
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", errors.New("corrupted encrypted value")
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("corrupted encrypted value")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", errors.New("decrypt failed: invalid key or corrupted data")
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether a value carries the encryption prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encPrefix)
}

// deriveKey converts the input string to a 32-byte AES key.
// Accepts hex-encoded (64 chars), base64-encoded (44 chars), or raw 32 bytes.
func deriveKey(input string) ([]byte, error) {
	if len(input) == 64 {
		if b, err := hex.DecodeString(input); err == nil {
			return b, nil
		}
	}
	if len(input) == 44 && strings.HasSuffix(input, "=") {
		if b, err := base64.StdEncoding.DecodeString(input); err == nil && len(b) == 32 {
			return b, nil
		}
	}
	if len(input) == 32 {
		return []byte(input), nil
	}
	return nil, errors.New("secret key must be 32 bytes (hex-encoded 64 chars, base64 44 chars, or raw 32 bytes)")
}
